package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))

	return path
}

func TestLoadScoreFileWithHLATables(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	scorePath := writeFile(t, dir, "t1d_grs.tsv",
		"contig_id\tposition_hg19\tposition_hg38\trsid\teffect_allele\tother_allele\tbeta\tgroup",
		"1\t114377568\t113834946\trs2476601\tA\tG\t0.7\timmune",
		"11\t2182224\t2160994\trs689\tT\tA\t0.3\tbeta_cell",
	)

	def, err := LoadScoreFile(ctx, scorePath, "PRSEDM", BuildHg19, nil)
	require.NoError(t, err)
	assert.Equal(t, "t1d_grs", def.Flag)
	assert.Equal(t, MethodGrouped, def.Method)
	require.Len(t, def.Variants, 2)
	assert.Equal(t, 2182224, def.Variants[1].Position)
	assert.Equal(t, "A", def.Variants[1].OtherAllele)

	paths := HLATablePaths{
		Tags: writeFile(t, dir, "dq.tsv",
			"contig_id\tposition_hg19\tposition_hg38\trsid\teffect_allele\tother_allele\ttag",
			"6\t32658079\t32690302\trs2187668\tA\tG\tDR3",
			"6\t32681049\tNA\trs7454108\tG\tA\tDQ8",
		),
		Interactions: writeFile(t, dir, "int.tsv",
			"a1\ta2\tbeta",
			"DR3\tDQ8\t3.87",
			"NULL\tDR3\t1.2",
		),
		Ranks: writeFile(t, dir, "rank.tsv",
			"haplotype\trank",
			"DQ8\t1",
			"DR3\t2",
		),
	}
	require.NoError(t, LoadHLATables(ctx, def, paths, nil))

	assert.Equal(t, MethodHLAInteraction, def.Method)
	assert.Equal(t, 3.87, def.HLA.Pairs[HaplotypePair{A: "DR3", B: "DQ8"}])
	assert.Equal(t, 1.2, def.HLA.Singles["DR3"])
	assert.Equal(t, 2, def.HLA.Ranks["DR3"])
	assert.Empty(t, def.HLA.Frequencies)
	assert.Equal(t, []string{"DQ8", "DR3"}, def.HLA.Haplotypes())

	// The DQ8 tag has no hg38 position, so the definition is hg19-only.
	hg38, err := LoadScoreFile(ctx, scorePath, "PRSEDM", BuildHg38, nil)
	require.NoError(t, err)
	require.NoError(t, LoadHLATables(ctx, hg38, paths, nil))

	cat := New(BuildHg38)
	require.NoError(t, cat.Register(hg38))
	_, err = cat.Resolve("t1d_grs")
	assert.Error(t, err)
}

func TestFlagFromPath(t *testing.T) {
	assert.Equal(t, "t1d_grs", FlagFromPath("/data/t1d_grs.tsv.gz"))
	assert.Equal(t, "CAD", FlagFromPath("CAD"))
}
