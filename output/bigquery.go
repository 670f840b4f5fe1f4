package output

import (
	"context"
	"fmt"
	"log"
	"sort"

	"cloud.google.com/go/bigquery"
	"github.com/carbocation/pfx"
	"github.com/carbocation/prsedm/scheduler"
	"github.com/carbocation/prsedm/score"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// PartitionValue is one pPS of a row.
type PartitionValue struct {
	Partition string  `bigquery:"partition"`
	Score     float64 `bigquery:"score"`
}

// BigQueryRow mirrors a TSV line. Partitions are a repeated record so that
// flags with different partitions share one table.
type BigQueryRow struct {
	RunID      string               `bigquery:"run_id"`
	SampleID   string               `bigquery:"sample_id"`
	Flag       string               `bigquery:"flag"`
	Status     string               `bigquery:"status"`
	Component  bigquery.NullString  `bigquery:"component"`
	Raw        bigquery.NullFloat64 `bigquery:"raw"`
	Normalized bigquery.NullFloat64 `bigquery:"normalized"`
	Partitions []PartitionValue     `bigquery:"partitions"`
	Observed   bigquery.NullInt64   `bigquery:"observed"`
	Imputed    bigquery.NullInt64   `bigquery:"imputed"`
	Excluded   bigquery.NullInt64   `bigquery:"excluded"`
	Fallback   bigquery.NullInt64   `bigquery:"fallback"`
	HLA        bigquery.NullString  `bigquery:"hla"`
	Message    bigquery.NullString  `bigquery:"message"`
}

// NewRunID labels the rows of one upload.
func NewRunID() string {
	return uuid.New().String()
}

// BigQueryRows converts a result into insertable rows, in result order.
func BigQueryRows(runID string, res *scheduler.Result) []*BigQueryRow {
	out := make([]*BigQueryRow, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, bigQueryRow(runID, row))
	}

	return out
}

func bigQueryRow(runID string, row score.Row) *BigQueryRow {
	out := &BigQueryRow{
		RunID:    runID,
		SampleID: row.Sample,
		Flag:     row.Flag,
	}

	if row.Failed() {
		out.Status = StatusFailed
		out.Component = bigquery.NullString{StringVal: string(row.Failure.Component), Valid: row.Failure.Component != ""}
		out.Message = bigquery.NullString{StringVal: row.Failure.Err.Error(), Valid: true}
		return out
	}

	s := row.Score
	out.Status = StatusOK
	out.Raw = bigquery.NullFloat64{Float64: s.Raw, Valid: true}
	out.Normalized = bigquery.NullFloat64{Float64: s.Normalized.Float64, Valid: s.Normalized.Valid}
	out.Observed = bigquery.NullInt64{Int64: int64(s.Provenance.Observed), Valid: true}
	out.Imputed = bigquery.NullInt64{Int64: int64(s.Provenance.Imputed), Valid: true}
	out.Excluded = bigquery.NullInt64{Int64: int64(s.Provenance.Excluded), Valid: true}
	out.Fallback = bigquery.NullInt64{Int64: int64(s.Provenance.Fallback), Valid: true}
	out.HLA = bigquery.NullString{StringVal: s.Provenance.HLA, Valid: s.Provenance.HLA != ""}

	names := make([]string, 0, len(s.Partitions))
	for p := range s.Partitions {
		names = append(names, p)
	}
	sort.Strings(names)
	for _, p := range names {
		out.Partitions = append(out.Partitions, PartitionValue{Partition: p, Score: s.Partitions[p]})
	}

	return out
}

// BigQuerySink appends rows to an existing table, or creates the table from
// BigQueryRow's schema if it does not exist.
type BigQuerySink struct {
	Client    *bigquery.Client
	Dataset   string
	Table     string
	BatchSize int
}

func NewBigQuerySink(ctx context.Context, project, dataset, table string, opts ...option.ClientOption) (*BigQuerySink, error) {
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to BigQuery: %v", err)
	}

	return &BigQuerySink{Client: client, Dataset: dataset, Table: table, BatchSize: 500}, nil
}

func (s *BigQuerySink) Close() error {
	return s.Client.Close()
}

// Write uploads every row of res under runID and returns the number of rows
// inserted.
func (s *BigQuerySink) Write(ctx context.Context, runID string, res *scheduler.Result) (int, error) {
	table := s.Client.Dataset(s.Dataset).Table(s.Table)

	if _, err := table.Metadata(ctx); err != nil {
		schema, err := bigquery.InferSchema(BigQueryRow{})
		if err != nil {
			return 0, pfx.Err(err)
		}
		if err := table.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
			return 0, pfx.Err(err)
		}
		log.Printf("Created BigQuery table %s.%s\n", s.Dataset, s.Table)
	}

	rows := BigQueryRows(runID, res)
	batch := s.BatchSize
	if batch < 1 {
		batch = len(rows)
	}

	inserter := table.Inserter()
	inserted := 0
	for start := 0; start < len(rows); start += batch {
		end := start + batch
		if end > len(rows) {
			end = len(rows)
		}
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return inserted, pfx.Err(err)
		}
		inserted = end
	}

	log.Printf("Inserted %d rows into %s.%s with run_id %s\n", inserted, s.Dataset, s.Table, runID)

	return inserted, nil
}
