// Package output writes scored rows as TSV or to BigQuery and summarizes
// them.
package output

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"github.com/carbocation/pfx"
	"github.com/carbocation/prsedm/scheduler"
	"github.com/carbocation/prsedm/score"
)

const NA = "NA"

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Columns returns the TSV header: the fixed leading columns, one column per
// partition of any requested flag (sorted), then the provenance columns.
func Columns(res *scheduler.Result) []string {
	cols := []string{"sample_id", "flag", "status", "component", "raw", "normalized"}
	cols = append(cols, partitionColumns(res)...)
	return append(cols, "observed", "imputed", "excluded", "fallback", "hla", "message")
}

func partitionColumns(res *scheduler.Result) []string {
	seen := make(map[string]struct{})
	for _, parts := range res.Partitions {
		for _, p := range parts {
			seen[p] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)

	return out
}

// WriteTSV writes one line per row in result order. A failed row carries NA in
// every numeric cell, so a reader can never mistake it for a score.
func WriteTSV(w io.Writer, res *scheduler.Result) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	partitions := partitionColumns(res)
	if err := cw.Write(Columns(res)); err != nil {
		return pfx.Err(err)
	}

	for _, row := range res.Rows {
		if err := cw.Write(Record(row, partitions)); err != nil {
			return pfx.Err(err)
		}
	}

	cw.Flush()

	return pfx.Err(cw.Error())
}

// Record formats one row against the given partition columns.
func Record(row score.Row, partitions []string) []string {
	out := make([]string, 0, 12+len(partitions))
	out = append(out, row.Sample, row.Flag)

	if row.Failed() {
		out = append(out, StatusFailed, string(row.Failure.Component), NA, NA)
		for range partitions {
			out = append(out, NA)
		}
		return append(out, NA, NA, NA, NA, NA, row.Failure.Err.Error())
	}

	s := row.Score
	out = append(out, StatusOK, "", formatFloat(s.Raw))
	if s.Normalized.Valid {
		out = append(out, formatFloat(s.Normalized.Float64))
	} else {
		out = append(out, NA)
	}

	for _, p := range partitions {
		if v, exists := s.Partitions[p]; exists {
			out = append(out, formatFloat(v))
		} else {
			out = append(out, NA)
		}
	}

	hla := s.Provenance.HLA
	if hla == "" {
		hla = NA
	}

	return append(out,
		strconv.Itoa(s.Provenance.Observed),
		strconv.Itoa(s.Provenance.Imputed),
		strconv.Itoa(s.Provenance.Excluded),
		strconv.Itoa(s.Provenance.Fallback),
		hla,
		"",
	)
}

// formatFloat prints the shortest representation that parses back to the
// same value.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
