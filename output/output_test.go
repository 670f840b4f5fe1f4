package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/carbocation/prsedm/catalog"
	"github.com/carbocation/prsedm/prserr"
	"github.com/carbocation/prsedm/scheduler"
	"github.com/carbocation/prsedm/score"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"
)

func testResult() *scheduler.Result {
	failure := prserr.Scope(prserr.New(prserr.ErrHLAUnresolved, "no modeled haplotype"), "T1D", "S2")

	return &scheduler.Result{
		Flags:   []string{"T1D", "BMI"},
		Samples: []string{"S1", "S2"},
		Partitions: map[string][]string{
			"T1D": {catalog.DefaultHLAPartition, "beta"},
			"BMI": nil,
		},
		Bounds: map[string]score.Bounds{
			"T1D": {Min: -1, Max: 5.5, HLAMin: -1, HLAMax: 3.5},
			"BMI": {Min: 0, Max: 2},
		},
		Rows: []score.Row{
			{Sample: "S1", Flag: "T1D", Score: &score.SampleScore{
				Raw:        1.25,
				Normalized: null.FloatFrom(0.25),
				Partitions: map[string]float64{catalog.DefaultHLAPartition: 1, "beta": 0.25},
				Provenance: score.Provenance{Observed: 3, Imputed: 1, HLA: "resolved"},
			}},
			{Sample: "S2", Flag: "T1D", Failure: &score.SampleFailure{Component: prserr.ComponentHLA, Err: failure}},
			{Sample: "S1", Flag: "BMI", Score: &score.SampleScore{Raw: 0.1, Partitions: map[string]float64{}, Provenance: score.Provenance{Observed: 1}}},
			{Sample: "S2", Flag: "BMI", Score: &score.SampleScore{Raw: 0.3, Partitions: map[string]float64{}, Provenance: score.Provenance{Observed: 1}}},
		},
	}
}

func TestWriteTSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTSV(&buf, testResult()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)

	assert.Equal(t, "sample_id\tflag\tstatus\tcomponent\traw\tnormalized\tHLA_DRDQ\tbeta\tobserved\timputed\texcluded\tfallback\thla\tmessage", lines[0])
	assert.Equal(t, "S1\tT1D\tok\t\t1.25\t0.25\t1\t0.25\t3\t1\t0\t0\tresolved\t", lines[1])

	failed := strings.Split(lines[2], "\t")
	require.Len(t, failed, 14)
	assert.Equal(t, []string{"S2", "T1D", "failed", "hla", "NA", "NA", "NA", "NA", "NA", "NA", "NA", "NA", "NA"}, failed[:13])
	assert.Contains(t, failed[13], "HLA unresolved")
	assert.Contains(t, failed[13], "[sample S2]")

	// Partitions the flag does not define, and normalization that was off
	assert.Equal(t, "S1\tBMI\tok\t\t0.1\tNA\tNA\tNA\t1\t0\t0\t0\tNA\t", lines[3])
}

func TestWriteTSVIsStable(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, WriteTSV(&a, testResult()))
	require.NoError(t, WriteTSV(&b, testResult()))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestFormatFloatRoundTrips(t *testing.T) {
	assert.Equal(t, "0.1", formatFloat(0.1))
	assert.Equal(t, "0.30000000000000004", formatFloat(0.1+0.2))
	assert.Equal(t, "-2", formatFloat(-2))
	assert.Equal(t, "1e-09", formatFloat(1e-9))
}

func TestBigQueryRows(t *testing.T) {
	runID := NewRunID()
	_, err := uuid.Parse(runID)
	require.NoError(t, err)

	rows := BigQueryRows(runID, testResult())
	require.Len(t, rows, 4)

	ok := rows[0]
	assert.Equal(t, runID, ok.RunID)
	assert.Equal(t, StatusOK, ok.Status)
	assert.False(t, ok.Component.Valid)
	assert.Equal(t, 1.25, ok.Raw.Float64)
	assert.True(t, ok.Normalized.Valid)
	assert.Equal(t, []PartitionValue{{Partition: catalog.DefaultHLAPartition, Score: 1}, {Partition: "beta", Score: 0.25}}, ok.Partitions)
	assert.Equal(t, int64(1), ok.Imputed.Int64)
	assert.Equal(t, "resolved", ok.HLA.StringVal)

	failed := rows[1]
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, "hla", failed.Component.StringVal)
	assert.False(t, failed.Raw.Valid)
	assert.False(t, failed.Observed.Valid)
	assert.Empty(t, failed.Partitions)
	assert.True(t, failed.Message.Valid)

	assert.False(t, rows[2].Normalized.Valid)
	assert.False(t, rows[2].HLA.Valid)
}

func TestSummarize(t *testing.T) {
	summaries, err := Summarize(testResult())
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	t1d := summaries[0]
	assert.Equal(t, "T1D", t1d.Flag)
	assert.Equal(t, 1, t1d.N)
	assert.Equal(t, 1, t1d.Failed)
	assert.Equal(t, 1.25, t1d.Mean)
	assert.Equal(t, 0.0, t1d.SD)

	bmi := summaries[1]
	assert.Equal(t, 2, bmi.N)
	assert.InDelta(t, 0.2, bmi.Mean, 1e-12)
	assert.InDelta(t, 0.1, bmi.Min, 1e-12)
	assert.InDelta(t, 0.3, bmi.Max, 1e-12)
	assert.InDelta(t, 0.1414213562, bmi.SD, 1e-9)
	assert.Contains(t, bmi.String(), "2 scored")
}

func TestSummarizeAllFailed(t *testing.T) {
	res := testResult()
	res.Flags = []string{"T1D"}
	res.Rows = res.Rows[1:2]

	summaries, err := Summarize(res)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 0, summaries[0].N)
	assert.Contains(t, summaries[0].String(), "no scored samples")
}

func TestWriteBounds(t *testing.T) {
	res := testResult()

	var buf bytes.Buffer
	require.NoError(t, WriteBounds(&buf, res.Flags, res.Bounds))
	assert.Equal(t, "flag\tmin\tmax\thla_min\thla_max\nT1D\t-1\t5.5\t-1\t3.5\nBMI\t0\t2\t0\t0\n", buf.String())
}
