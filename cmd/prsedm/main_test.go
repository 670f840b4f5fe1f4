package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carbocation/prsedm/catalog"
	"github.com/carbocation/prsedm/config"
	"github.com/carbocation/prsedm/scheduler"
	"github.com/carbocation/prsedm/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func writeFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))

	return path
}

func TestFlagsOverrideEnvironmentAndFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "run.yaml",
		"genomeBuild: hg38",
		"chunkSize: 500",
		"sampleBatchSize: 100",
	)
	t.Setenv("PRSEDM_CHUNK_SIZE", "10")

	var got config.Run
	cmd := &cli.Command{
		Name:  "score",
		Flags: scoreFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var err error
			got, err = runConfig(cmd)
			return err
		},
	}

	err := cmd.Run(context.Background(), []string{"score",
		"--config", cfgPath,
		"--build", "hg19",
		"--flag", "T1D_GRS2", "--flag", "T2D_PPS",
		"--tasks", "3",
		"--normalize",
		"--hla-unresolved", "neutral",
	})
	require.NoError(t, err)

	assert.Equal(t, "hg19", got.GenomeBuild)
	assert.Equal(t, 10, got.ChunkSize)
	assert.Equal(t, 100, got.SampleBatchSize)
	assert.Equal(t, 3, got.TaskCount)
	assert.Equal(t, []string{"T1D_GRS2", "T2D_PPS"}, got.RequestedFlags)
	assert.True(t, got.NormalizationEnabled)
	assert.Equal(t, "neutral", got.HLAUnresolvedPolicy)

	// Flags that were not given keep lower-precedence values
	assert.True(t, got.RequireCompleteData)
	assert.Equal(t, "GT", got.ColumnKind)
}

func TestLoadCatalogFromScoreFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "t1d_grs.tsv",
		"contig_id\tposition_hg19\tposition_hg38\trsid\teffect_allele\tother_allele\tbeta\tgroup",
		"1\t114377568\t113834946\trs2476601\tA\tG\t0.7\timmune",
		"11\t2182224\t2160994\trs689\tT\tA\t-0.3\tbeta_cell",
	)

	r := config.Default()
	r.ScoreFiles = []string{path}
	r.RequestedFlags = []string{"t1d_grs"}

	client, err := storageClient(context.Background(), r)
	require.NoError(t, err)
	assert.Nil(t, client)

	cat, err := loadCatalog(context.Background(), r, client)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1d_grs"}, cat.ListAvailable())

	def, err := cat.Resolve("t1d_grs")
	require.NoError(t, err)
	assert.Equal(t, catalog.MethodGrouped, def.Method)
	assert.Equal(t, []string{"beta_cell", "immune"}, def.Partitions())
}

func TestLoadPanelTable(t *testing.T) {
	dir := t.TempDir()
	scorePath := writeFile(t, dir, "bmi.tsv",
		"contig_id\tposition_hg19\tposition_hg38\trsid\teffect_allele\tother_allele\tbeta\tgroup",
		"16\t53803574\t53769662\trs9939609\tA\tT\t0.08\t",
	)
	panelPath := writeFile(t, dir, "panel.tsv",
		"contig\tposition\tref\talt\taf",
		"16\t53803574\tT\tA\t0.41",
	)

	r := config.Default()
	r.ScoreFiles = []string{scorePath}
	r.RequestedFlags = []string{"bmi"}
	r.ImputationEnabled = true
	r.ReferencePanel = panelPath

	cat, err := loadCatalog(context.Background(), r, nil)
	require.NoError(t, err)

	panel, err := loadPanel(context.Background(), r, cat, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, panel.Len())

	def, err := cat.Resolve("bmi")
	require.NoError(t, err)
	p, ok := panel.Frequency(def.Variants[0])
	require.True(t, ok)
	assert.Equal(t, 0.41, p)

	// Imputation off: no panel is read
	r.ImputationEnabled = false
	panel, err = loadPanel(context.Background(), r, cat, nil)
	require.NoError(t, err)
	assert.Nil(t, panel)
}

func TestIsVCF(t *testing.T) {
	assert.True(t, isVCF("gs://bucket/panel.vcf.gz"))
	assert.True(t, isVCF("chr6.BCF"))
	assert.False(t, isVCF("panel.tsv.gz"))
}

func oneRowResult() *scheduler.Result {
	return &scheduler.Result{
		Flags:      []string{"BMI"},
		Samples:    []string{"S1"},
		Partitions: map[string][]string{"BMI": nil},
		Bounds:     map[string]score.Bounds{"BMI": {Min: 0, Max: 2}},
		Rows: []score.Row{
			{Sample: "S1", Flag: "BMI", Score: &score.SampleScore{Raw: 1.5}},
		},
	}
}

func TestWriteTSVToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.tsv")
	require.NoError(t, writeTSV(path, oneRowResult()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "S1\tBMI")
	assert.Contains(t, string(data), "1.5")
}

func TestWriteTSVReportsFullDisk(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full is not available")
	}

	assert.Error(t, writeTSV("/dev/full", oneRowResult()))
}
