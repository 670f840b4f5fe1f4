package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/carbocation/prsedm/impute"
	"github.com/carbocation/prsedm/prserr"
	"github.com/carbocation/prsedm/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valid() Run {
	r := Default()
	r.RequestedFlags = []string{"T1D_GRS2"}
	r.CatalogDB = "prs.db"
	r.CatalogMeta = "prs_meta.json"
	r.Genotypes = "cohort.vcf.gz"

	return r
}

func TestDefaultsAreValid(t *testing.T) {
	r := valid()
	require.NoError(t, r.Validate())

	assert.Equal(t, "GT", r.ColumnKind)
	assert.Equal(t, "hg19", r.GenomeBuild)
	assert.True(t, r.RequireCompleteData)
	assert.GreaterOrEqual(t, r.TaskCount, 1)
	assert.Equal(t, 0, r.ChunkSize)
}

func TestFileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
genomeBuild: hg38
columnKind: GP
requestedFlags: [T1D_GRS2, T2D_PPS]
imputationEnabled: true
referencePanel: panel.tsv
chunkSize: 500
bigQuery:
  project: p
  dataset: d
  table: t
`), 0o644))

	t.Setenv("PRSEDM_CHUNK_SIZE", "250")
	t.Setenv("PRSEDM_HLA_UNRESOLVED_POLICY", "neutral")
	t.Setenv("PRSEDM_BIGQUERY_TABLE", "scores")

	r, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "hg38", r.GenomeBuild)
	assert.Equal(t, "GP", r.ColumnKind)
	assert.Equal(t, []string{"T1D_GRS2", "T2D_PPS"}, r.RequestedFlags)
	assert.True(t, r.ImputationEnabled)
	assert.Equal(t, 250, r.ChunkSize)
	assert.Equal(t, "neutral", r.HLAUnresolvedPolicy)
	assert.Equal(t, BigQuery{Project: "p", Dataset: "d", Table: "scores"}, r.BigQuery)
	assert.True(t, r.BigQuery.Enabled())

	// Untouched keys keep their defaults
	assert.True(t, r.RequireCompleteData)
	assert.Equal(t, "fail", r.MissingFrequencyPolicy)
}

func TestUnknownKeyIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("genomeBiuld: hg38\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().GenomeBuild, r.GenomeBuild)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*Run)
		kind   error
	}{
		{"unknown kind", func(r *Run) { r.ColumnKind = "HDS" }, nil},
		{"unknown build", func(r *Run) { r.GenomeBuild = "hg18" }, prserr.ErrUnsupportedBuild},
		{"no flags", func(r *Run) { r.RequestedFlags = nil }, nil},
		{"no catalog", func(r *Run) { r.CatalogDB = "" }, nil},
		{"db without meta", func(r *Run) { r.CatalogMeta = "" }, nil},
		{"no genotypes", func(r *Run) { r.Genotypes = "" }, nil},
		{"two genotype sources", func(r *Run) { r.GenotypeMapping = "mapping.txt" }, nil},
		{"imputation without panel", func(r *Run) { r.ImputationEnabled = true }, nil},
		{"zero tasks", func(r *Run) { r.TaskCount = 0 }, nil},
		{"negative chunk", func(r *Run) { r.ChunkSize = -1 }, nil},
		{"negative batch", func(r *Run) { r.SampleBatchSize = -5 }, nil},
		{"bad frequency policy", func(r *Run) { r.MissingFrequencyPolicy = "mean" }, nil},
		{"bad HLA policy", func(r *Run) { r.HLAUnresolvedPolicy = "average" }, nil},
		{"HLA tables with many score files", func(r *Run) { r.HLA.Tags = "dq.tsv"; r.ScoreFiles = []string{"a.tsv", "b.tsv"} }, nil},
		{"normalization on incomplete data", func(r *Run) { r.NormalizationEnabled = true; r.RequireCompleteData = false }, prserr.ErrBoundsInvalid},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := valid()
			c.modify(&r)
			err := r.Validate()
			require.Error(t, err)
			if c.kind != nil {
				assert.True(t, errors.Is(err, c.kind), err.Error())
			}
		})
	}

	// Normalization is fine when imputing, even without complete data
	r := valid()
	r.NormalizationEnabled = true
	r.RequireCompleteData = false
	r.ImputationEnabled = true
	r.ReferencePanel = "panel.vcf.gz"
	assert.NoError(t, r.Validate())

	// Serial runs ignore the task count
	r = valid()
	r.ParallelismEnabled = false
	r.TaskCount = 0
	assert.NoError(t, r.Validate())
}

func TestEngineAndScheduler(t *testing.T) {
	r := valid()
	r.ImputationEnabled = true
	r.MissingFrequencyPolicy = "zero"
	r.HLAUnresolvedPolicy = "neutral"
	r.FailFast = true
	r.ChunkSize = 100

	engine, err := r.Engine(nil)
	require.NoError(t, err)
	assert.True(t, engine.Enabled)
	assert.Equal(t, impute.PolicyZero, engine.MissingFrequency)

	cfg, err := r.Scheduler()
	require.NoError(t, err)
	assert.Equal(t, score.HLAPolicyNeutral, cfg.HLAPolicy)
	assert.True(t, cfg.FailFast)
	assert.Equal(t, 100, cfg.ChunkSize)
	assert.Equal(t, []string{"T1D_GRS2"}, cfg.Flags)
}
