package hwe

import (
	"math"
	"math/big"

	"github.com/BenLubar/memoize"
)

var memoizedExactFor = memoize.Memoize(exactFor).(func(int64, int64, int64) float64)
var memoizedFactorial = memoize.Memoize(factorial).(func(int64, int64) *big.Int)
var memoizedExact = memoize.Memoize(Exact).(func(int64, int64, int64) float64)
var memoizedApproximate = memoize.Memoize(Approximate).(func(float64, float64, float64) float64)

// Exact computes an exact Hardy-Weinberg equilibrium P-value following
// Wigginton, Cutler and Abecasis (2005), itself based on RA Fisher's method.
// It is safe to call from concurrent goroutines. See
// http://courses.washington.edu/b516/lectures_2009/HWE_Lecture.pdf slides
// 21-22 and https://www.cog-genomics.org/software/stats for sanity checks.
func Exact(AA, Aa, aa int64) float64 {
	// Enforce AA common, aa rare
	if aa > AA {
		AA, aa = aa, AA
	}

	// The P value is the sum of all configurations with the same allele
	// counts whose probability is no greater than the observed one.
	baseP := memoizedExactFor(AA, Aa, aa)
	sumP := baseP

	// Left tail: more heterozygotes
	for hAA, hAa, haa := AA-1, Aa+2, aa-1; haa >= 0; hAA, hAa, haa = hAA-1, hAa+2, haa-1 {
		next := memoizedExactFor(hAA, hAa, haa)
		if next > baseP {
			continue
		}
		if next <= math.SmallestNonzeroFloat64 {
			break
		}
		sumP += next
	}

	// Right tail: fewer heterozygotes
	for hAA, hAa, haa := AA+1, Aa-2, aa+1; hAa >= 0; hAA, hAa, haa = hAA+1, hAa-2, haa+1 {
		next := memoizedExactFor(hAA, hAa, haa)
		if next > baseP {
			continue
		}
		if next <= math.SmallestNonzeroFloat64 {
			break
		}
		sumP += next
	}

	return sumP
}

// Fast uses the chi-square approximation and only pays for the exact test
// when the approximate P value falls below cutoff.
func Fast(AA, Aa, aa, cutoff float64) float64 {
	p := memoizedApproximate(AA, Aa, aa)
	if p < cutoff {
		return memoizedExact(int64(AA), int64(Aa), int64(aa))
	}

	return p
}

// exactFor yields the probability of observing exactly Aa heterozygotes in a
// sample of AA+Aa+aa individuals with Aa+2*aa minor alleles.
func exactFor(AA, Aa, aa int64) float64 {
	A := AA*2 + Aa
	a := aa*2 + Aa
	N := AA + Aa + aa

	var num, denom big.Int

	num.Exp(big.NewInt(2), big.NewInt(Aa), nil)
	num.Mul(&num, memoizedFactorial(1, A))
	num.Mul(&num, memoizedFactorial(1, a))

	denom.Set(memoizedFactorial(N+1, 2*N))
	denom.Mul(&denom, memoizedFactorial(1, AA))
	denom.Mul(&denom, memoizedFactorial(1, Aa))
	denom.Mul(&denom, memoizedFactorial(1, aa))

	final, _ := new(big.Rat).SetFrac(&num, &denom).Float64()

	return final
}

func factorial(a, b int64) *big.Int {
	return big.NewInt(1).MulRange(a, b)
}
