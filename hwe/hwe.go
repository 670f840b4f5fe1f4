// Package hwe holds the Hardy-Weinberg arithmetic used to impute missing
// genotypes and to check that a reference panel site is fit for it.
package hwe

import (
	"fmt"
	"math"
)

// ExpectedDosage is the mean of Binomial(2, p): the expected number of copies
// of an allele with frequency p in a diploid genotype.
func ExpectedDosage(p float64) float64 {
	return 2 * p
}

// GenotypeFrequencies returns the p², 2pq, q² frequencies of genotypes with
// two, one and zero copies of an allele with frequency p.
func GenotypeFrequencies(p float64) (two, one, zero float64) {
	q := 1 - p
	return p * p, 2 * p * q, q * q
}

// Counts tallies genotypes at a biallelic site by copies of the allele of
// interest.
type Counts struct {
	Two  int64
	One  int64
	Zero int64
}

// Add tallies one diploid genotype carrying copies (0, 1 or 2) of A.
func (c *Counts) Add(copies int) error {
	switch copies {
	case 0:
		c.Zero++
	case 1:
		c.One++
	case 2:
		c.Two++
	default:
		return fmt.Errorf("a diploid genotype cannot carry %d copies", copies)
	}

	return nil
}

func (c Counts) N() int64 {
	return c.Two + c.One + c.Zero
}

// AlleleFrequency is the frequency of A among observed alleles, NaN when no
// genotype was observed.
func (c Counts) AlleleFrequency() float64 {
	if c.N() == 0 {
		return math.NaN()
	}

	return float64(2*c.Two+c.One) / float64(2*c.N())
}

// Exact is the exact HWE P-value of the counts.
func (c Counts) Exact() float64 {
	return Exact(c.Two, c.One, c.Zero)
}

// Fast is the chi-square approximation, refined by the exact test when it
// falls below cutoff.
func (c Counts) Fast(cutoff float64) float64 {
	return Fast(float64(c.Two), float64(c.One), float64(c.Zero), cutoff)
}
