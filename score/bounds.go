package score

import (
	"fmt"
	"math"

	"github.com/carbocation/prsedm/catalog"
	"github.com/carbocation/prsedm/hla"
	"github.com/carbocation/prsedm/prserr"
	"gonum.org/v1/gonum/floats"
)

// Bounds is the theoretical raw-score envelope of a definition. Every value
// the active imputation policy can substitute (2p, or an explicit zero) lies
// within [0, 2] copies, so the envelope is the same whether a sample's
// variants were observed or imputed.
type Bounds struct {
	Min float64
	Max float64

	// HLA envelope, already included in Min and Max.
	HLAMin float64
	HLAMax float64
}

// ComputeBounds sums each additive weight at zero and at two effect-allele
// copies, keeping the smaller in Min and the larger in Max, then adds the
// extremes of the HLA interaction term.
func ComputeBounds(def *catalog.ScoreDefinition) Bounds {
	var lo, hi []float64
	for _, v := range def.Variants {
		if v.Weight < 0 {
			lo = append(lo, 2*v.Weight)
		} else if v.Weight > 0 {
			hi = append(hi, 2*v.Weight)
		}
	}

	b := Bounds{Min: floats.SumCompensated(lo), Max: floats.SumCompensated(hi)}
	if def.HLA != nil {
		b.HLAMin, b.HLAMax = hla.Envelope(def.HLA)
		b.Min += b.HLAMin
		b.Max += b.HLAMax
	}

	return b
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%g, %g]", b.Min, b.Max)
}

// boundsTolerance absorbs rounding in long sums that land on an edge of the
// envelope.
const boundsTolerance = 1e-9

// Normalize rescales raw into [0, 1]. A zero-width envelope fails with
// DegenerateBounds; a raw score outside the envelope fails with BoundsInvalid
// rather than produce an out-of-range value.
func (b Bounds) Normalize(raw float64) (float64, error) {
	width := b.Max - b.Min
	if width == 0 || math.IsNaN(width) {
		return 0, prserr.New(prserr.ErrDegenerateBounds, "minimum and maximum are both %g", b.Min)
	}

	out := (raw - b.Min) / width
	eps := boundsTolerance * math.Max(1, math.Abs(width))
	switch {
	case math.IsNaN(out):
		return 0, prserr.New(prserr.ErrBoundsInvalid, "raw score is NaN")
	case out < 0 && out > -eps:
		out = 0
	case out > 1 && out < 1+eps:
		out = 1
	case out < 0 || out > 1:
		return 0, prserr.New(prserr.ErrBoundsInvalid, "raw score %g is outside %s", raw, b)
	}

	return out, nil
}

// MatchesStored reports whether the catalog's stored bounds, where present,
// agree with b.
func (b Bounds) MatchesStored(def *catalog.ScoreDefinition) bool {
	near := func(stored, computed float64) bool {
		return math.Abs(stored-computed) <= boundsTolerance*math.Max(1, math.Abs(computed))
	}

	if def.StoredMin.Valid && !near(def.StoredMin.Float64, b.Min) {
		return false
	}
	if def.StoredMax.Valid && !near(def.StoredMax.Float64, b.Max) {
		return false
	}

	return true
}
