package genotype

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/carbocation/prsedm/catalog"
	"github.com/carbocation/prsedm/prserr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var threeSamples = []string{"S1", "S2", "S3"}

func TestMemoryQueryMultiallelic(t *testing.T) {
	src := NewMemory(HardCall, threeSamples, Record{
		Contig:   "1",
		Position: 100,
		Alleles:  []string{"A", "C", "T"},
		GT:       [][]int{{0, 2}, {1, 2}, {-1, 0}},
	})
	ctx := context.Background()

	call, err := src.Query(ctx, catalog.VariantSpec{Contig: "chr1", Position: 100, EffectAllele: "T", OtherAllele: "A"})
	require.NoError(t, err)
	require.True(t, call.Found)
	assert.Equal(t, 1.0, call.Dosages[0])
	assert.Equal(t, 1.0, call.Dosages[1])
	assert.True(t, call.Absent(2))

	// Specified alt not present in the record
	call, err = src.Query(ctx, catalog.VariantSpec{Contig: "1", Position: 100, EffectAllele: "G", OtherAllele: "A"})
	require.NoError(t, err)
	assert.False(t, call.Found)
	assert.True(t, call.Absent(0))

	// Nothing at this position
	call, err = src.Query(ctx, catalog.VariantSpec{Contig: "1", Position: 101, EffectAllele: "T"})
	require.NoError(t, err)
	assert.False(t, call.Found)
}

func TestMemoryQueryPicksMatchingRecord(t *testing.T) {
	src := NewMemory(Dosage, threeSamples,
		Record{Contig: "2", Position: 50, Alleles: []string{"G", "GA"}, GP: [][]float64{{1, 0, 0}, {1, 0, 0}, {1, 0, 0}}},
		Record{Contig: "2", Position: 50, Alleles: []string{"G", "T"}, GP: [][]float64{{0, 1, 0}, {0, 0, 1}, {1, 0, 0}}},
	)

	call, err := src.Query(context.Background(), catalog.VariantSpec{Contig: "2", Position: 50, EffectAllele: "T", OtherAllele: "G"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 0}, call.Dosages)
}

func TestMemoryQueryBalancedWhenOtherAlleleUnknown(t *testing.T) {
	// Both records carry G as an allele. The second has a G frequency of
	// 0.5, which is more balanced than the first.
	src := NewMemory(HardCall, threeSamples[:2],
		Record{Contig: "3", Position: 7, Alleles: []string{"G", "A"}, GT: [][]int{{0, 0}, {0, 0}}},
		Record{Contig: "3", Position: 7, Alleles: []string{"C", "G"}, GT: [][]int{{0, 1}, {1, 0}}},
	)

	call, err := src.Query(context.Background(), catalog.VariantSpec{Contig: "3", Position: 7, EffectAllele: "G"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, call.Dosages)
}

func TestMemoryOpener(t *testing.T) {
	chr1 := NewMemory(HardCall, threeSamples)
	opener := &MemoryOpener{
		Mapping:  map[string]*Memory{"1": chr1, "2": NewMemory(HardCall, threeSamples)},
		Failures: map[string]error{"6": errors.New("index is truncated")},
	}
	ctx := context.Background()

	samples, err := opener.Samples(ctx)
	require.NoError(t, err)
	assert.Equal(t, threeSamples, samples)

	src, err := opener.Open(ctx, "chr1")
	require.NoError(t, err)
	assert.Same(t, chr1, src)
	assert.Equal(t, 1, opener.Opens("chr1"))

	_, err = opener.Open(ctx, "6")
	assert.True(t, errors.Is(err, prserr.ErrGenotypeSource))

	_, err = opener.Open(ctx, "9")
	assert.True(t, errors.Is(err, prserr.ErrGenotypeSource))
}

func TestMemoryOpenerSampleMismatch(t *testing.T) {
	opener := &MemoryOpener{Mapping: map[string]*Memory{
		"1": NewMemory(HardCall, []string{"S1", "S2"}),
		"2": NewMemory(HardCall, []string{"S2", "S1"}),
	}}

	_, err := opener.Samples(context.Background())
	assert.True(t, errors.Is(err, prserr.ErrGenotypeSource))
}

func TestCallAbsent(t *testing.T) {
	c := Call{Found: true, Dosages: []float64{1, math.NaN()}}
	assert.False(t, c.Absent(0))
	assert.True(t, c.Absent(1))
	assert.True(t, c.Absent(2))
}
