package genotype

import (
	"math"
	"strconv"
	"strings"

	"github.com/carbocation/prsedm/catalog"
)

// AlleleIndex returns the index of allele among alleles (ref first), or -1.
func AlleleIndex(alleles []string, allele string) int {
	for i, a := range alleles {
		if strings.EqualFold(a, allele) {
			return i
		}
	}

	return -1
}

// HardCallDosage counts copies of the allele with index effect in a called
// genotype. Any missing allele (negative index) makes the value absent.
func HardCallDosage(gt []int, effect int) float64 {
	if len(gt) == 0 {
		return math.NaN()
	}

	count := 0.0
	for _, g := range gt {
		if g < 0 {
			return math.NaN()
		}
		if g == effect {
			count++
		}
	}

	return count
}

// UnphasedDosage is the expected count of allele effect for a diploid
// sample given genotype probabilities in VCF/BGEN order, where genotype
// (j,k), j<=k, lives at index k(k+1)/2+j.
func UnphasedDosage(probs []float64, nAlleles, effect int) float64 {
	if len(probs) != nAlleles*(nAlleles+1)/2 {
		return math.NaN()
	}

	expected := 0.0
	total := 0.0
	for k := 0; k < nAlleles; k++ {
		for j := 0; j <= k; j++ {
			p := probs[k*(k+1)/2+j]
			if math.IsNaN(p) {
				return math.NaN()
			}
			total += p

			copies := 0.0
			if j == effect {
				copies++
			}
			if k == effect {
				copies++
			}
			expected += p * copies
		}
	}

	if total <= 0 {
		return math.NaN()
	}

	return expected
}

// PhasedDosage sums, over haplotypes, the probability that each carries
// allele effect. probs holds ploidy blocks of nAlleles values; blocks of
// nAlleles-1 values (last allele implied) are also accepted.
func PhasedDosage(probs []float64, ploidy, nAlleles, effect int) float64 {
	if ploidy <= 0 {
		return math.NaN()
	}

	width := len(probs) / ploidy
	if width*ploidy != len(probs) || (width != nAlleles && width != nAlleles-1) {
		return math.NaN()
	}

	expected := 0.0
	for h := 0; h < ploidy; h++ {
		block := probs[h*width : (h+1)*width]
		if effect < width {
			expected += block[effect]
			continue
		}

		// Implied final allele
		rest := 1.0
		for _, p := range block {
			rest -= p
		}
		expected += rest
	}

	return expected
}

// parseFloats parses a comma-separated VCF field such as GP. Missing values
// (".") become NaN.
func parseFloats(field string) []float64 {
	if field == "" {
		return nil
	}

	parts := strings.Split(field, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			v = math.NaN()
		}
		out[i] = v
	}

	return out
}

// record is one candidate genotype record at a position, reduced to what
// allele matching needs.
type record struct {
	alleles []string

	// dosages returns per-sample counts of the allele at the given index.
	dosages func(effect int) []float64
}

// selectRecord picks the record that represents v among those sharing its
// position. A record qualifies when it carries the effect allele and, when v
// names one, the other allele. If v has no other allele and several records
// qualify, the one whose effect-allele frequency is closest to 0.5 wins.
// ok is false when nothing qualifies.
func selectRecord(records []record, v catalog.VariantSpec) (best []float64, ok bool) {
	bestBalance := -1.0

	for _, r := range records {
		effect := AlleleIndex(r.alleles, v.EffectAllele)
		if effect < 0 {
			continue
		}

		if v.OtherAllele != "" {
			if AlleleIndex(r.alleles, v.OtherAllele) < 0 {
				continue
			}
			return r.dosages(effect), true
		}

		d := r.dosages(effect)
		af := meanDosage(d) / 2
		balance := math.Min(af, 1-af)
		if math.IsNaN(balance) {
			balance = 0
		}
		if balance > bestBalance {
			best, bestBalance, ok = d, balance, true
		}
	}

	return best, ok
}

func meanDosage(d []float64) float64 {
	sum, n := 0.0, 0
	for _, x := range d {
		if math.IsNaN(x) {
			continue
		}
		sum += x
		n++
	}
	if n == 0 {
		return math.NaN()
	}

	return sum / float64(n)
}
