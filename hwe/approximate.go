package hwe

import (
	"math"

	"github.com/tokenme/probab/dst"
)

// Approximate is the 1 degree of freedom chi-square P-value for departure
// from Hardy-Weinberg proportions.
func Approximate(AA, Aa, aa float64) (p float64) {
	// ChiSquareCDF panics outside its domain; such inputs report P=0.
	defer func() { recover() }()

	p = 1.0 - dst.ChiSquareCDF(1)(chiSquare(AA, Aa, aa))

	return
}

// chiSquare compares observed genotypes with the counts expected from the
// observed allele frequency.
func chiSquare(AA, Aa, aa float64) float64 {
	A := AA*2 + Aa
	a := aa*2 + Aa

	// A monomorphic site would yield NaN. Its chi square is 0 (P=1).
	if A == 0 || a == 0 {
		return 0.0
	}

	N := AA + Aa + aa
	alleles := A + a

	// Allele frequencies depend on number of observed alleles of each type,
	// not the number of samples with those alleles.
	eAA, eAa, eaa := GenotypeFrequencies(A / alleles)
	eAA, eAa, eaa = eAA*N, eAa*N, eaa*N

	return math.Pow(eAA-AA, 2)/eAA +
		math.Pow(eAa-Aa, 2)/eAa +
		math.Pow(eaa-aa, 2)/eaa
}
