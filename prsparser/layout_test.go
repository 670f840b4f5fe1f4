package prsparser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLayout(t *testing.T) {
	row := []string{"1:751756:C:T", "C", "1.4113e-06", "1", "751756", "C", "T"}
	parser, err := New("AVKNG2018", "hg19")
	require.NoError(t, err)

	parsedRow, err := parser.ParseRow(row)
	require.NoError(t, err)

	assert.Equal(t, Allele("C"), parsedRow.Allele1)
	assert.Equal(t, Allele("T"), parsedRow.Allele2)
	assert.Equal(t, "1", parsedRow.Chromosome)
	assert.Equal(t, Allele("C"), parsedRow.EffectAllele)
	assert.Equal(t, Allele("T"), parsedRow.OtherAllele())
	assert.Equal(t, 751756, parsedRow.Position)
	assert.Equal(t, 1.4113e-06, parsedRow.Score)
	assert.Equal(t, "1:751756:C:T", parsedRow.SNP)
}

func TestLDPredLayout(t *testing.T) {
	row := []string{"chrom_1", "751756", "1:751756:C:T", "C", "T", "NA", "1.4113e-06"}
	parser, err := New("LDPRED", "hg19")
	require.NoError(t, err)

	parsedRow, err := parser.ParseRow(row)
	require.NoError(t, err)

	assert.Equal(t, "1", parsedRow.Chromosome)
	assert.Equal(t, Allele("T"), parsedRow.EffectAllele)
	assert.Equal(t, 751756, parsedRow.Position)
	assert.Equal(t, 1.4113e-06, parsedRow.Score)
}

func TestSignFlip(t *testing.T) {
	row := []string{"chrom_1", "751756", "1:751756:C:T", "C", "T", "NA", "-1.4113e-06"}
	parser, err := New("LDPRED", "hg19")
	require.NoError(t, err)

	parsedRow, err := parser.ParseRow(row)
	require.NoError(t, err)

	assert.Equal(t, Allele("C"), parsedRow.EffectAllele)
	assert.Equal(t, 1.4113e-06, parsedRow.Score)
}

func TestPRSEDMLayoutPicksBuild(t *testing.T) {
	input := strings.Join([]string{
		"contig_id\tposition_hg19\tposition_hg38\trsid\teffect_allele\tother_allele\tbeta\tgroup",
		"6\t32658079\t32690302\trs9273363\tA\tC\t0.2\tbeta_cell,HLA",
		"1\t114377568\tNA\trs2476601\tA\tG\t0.7\t",
		"",
	}, "\n")

	hg38, err := New("PRSEDM", "hg38")
	require.NoError(t, err)
	rows, err := hg38.ReadAll(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 32690302, rows[0].Position)
	assert.Equal(t, []string{"beta_cell", "HLA"}, rows[0].Partitions)
	assert.Equal(t, Allele("C"), rows[0].OtherAllele())
	assert.Equal(t, 0, rows[1].Position)
	assert.Empty(t, rows[1].Partitions)

	hg19, err := New("PRSEDM", "hg19")
	require.NoError(t, err)
	rows, err = hg19.ReadAll(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 114377568, rows[1].Position)
}

func TestUnknownLayout(t *testing.T) {
	_, err := New("NOPE", "hg19")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AVKNG2018, LDPRED, PRSEDM")

	_, err = New("PRSEDM", "hg17")
	require.Error(t, err)
}
