// Package score aggregates variant contributions and HLA interaction terms
// into per-sample scores and rescales them into [0, 1]. It performs no I/O.
package score

import (
	"fmt"
	"sort"

	"github.com/carbocation/prsedm/catalog"
	"github.com/carbocation/prsedm/hla"
	"github.com/carbocation/prsedm/impute"
	"gonum.org/v1/gonum/floats"
)

// Provenance counts how a sample's variant values were obtained and how its
// HLA term was resolved.
type Provenance struct {
	Observed int
	Imputed  int
	Excluded int
	Fallback int

	// HLA is "" for flags without an interaction model, otherwise one of
	// unambiguous, resolved, unresolved or neutral.
	HLA string
}

const HLANeutral = "neutral"

// HLAPolicy decides what an unresolvable HLA genotype does to a score.
type HLAPolicy string

const (
	// HLAPolicyFail fails the sample's score with component hla.
	HLAPolicyFail HLAPolicy = "fail"

	// HLAPolicyNeutral scores the interaction term as zero and records
	// "neutral" in the provenance.
	HLAPolicyNeutral HLAPolicy = "neutral"
)

func ParseHLAPolicy(s string) (HLAPolicy, error) {
	switch p := HLAPolicy(s); p {
	case HLAPolicyFail, HLAPolicyNeutral:
		return p, nil
	case "":
		return HLAPolicyFail, nil
	}

	return "", fmt.Errorf("unknown HLA unresolved policy %q (expected fail or neutral)", s)
}

// Partial accumulates one sample's contributions from one unit of work. The
// first error recorded sticks; later contributions are still summed but the
// score will not be reported.
type Partial struct {
	Raw        float64
	Partitions map[string]float64
	Provenance Provenance
	Err        error
}

func NewPartial() *Partial {
	return &Partial{Partitions: make(map[string]float64)}
}

// Contribution is the additive term of one variant.
func Contribution(weight, dosage float64) float64 {
	return weight * dosage
}

// AddVariant adds weight*dosage to the raw score and to each partition the
// variant belongs to, and counts the outcome.
func (p *Partial) AddVariant(v catalog.VariantSpec, dosage float64, outcome impute.Outcome) {
	switch outcome {
	case impute.Observed:
		p.Provenance.Observed++
	case impute.Imputed:
		p.Provenance.Imputed++
	case impute.Excluded:
		p.Provenance.Excluded++
		return
	case impute.Fallback:
		p.Provenance.Fallback++
	}

	c := Contribution(v.Weight, dosage)
	p.Raw += c
	for _, part := range v.Partitions {
		p.Partitions[part] += c
	}
}

// AddHLA resolves the sample's haplotype pair from its tag dosages (in
// model.Tags order) and adds the interaction term.
func (p *Partial) AddHLA(model *catalog.HLAModel, tagDosages []float64, policy HLAPolicy) {
	r := hla.Resolve(model, hla.Calls(model, tagDosages))
	term, err := hla.Term(model, r)
	if err != nil {
		if policy == HLAPolicyNeutral {
			p.Provenance.HLA = HLANeutral
			return
		}
		p.Provenance.HLA = r.Kind.String()
		p.Fail(err)
		return
	}

	p.Provenance.HLA = r.Kind.String()
	p.Raw += term
	p.Partitions[model.Partition] += term
}

// Fail records err unless an earlier error is already recorded.
func (p *Partial) Fail(err error) {
	if p.Err == nil {
		p.Err = err
	}
}

// Merge combines partials in the order given. Sums are compensated so that
// the result does not depend on how the variants were split into units, and
// the order is fixed by the caller so that repeated runs are identical.
func Merge(parts []*Partial) *Partial {
	out := NewPartial()

	raws := make([]float64, 0, len(parts))
	keys := make(map[string]struct{})
	for _, part := range parts {
		raws = append(raws, part.Raw)
		for k := range part.Partitions {
			keys[k] = struct{}{}
		}

		out.Provenance.Observed += part.Provenance.Observed
		out.Provenance.Imputed += part.Provenance.Imputed
		out.Provenance.Excluded += part.Provenance.Excluded
		out.Provenance.Fallback += part.Provenance.Fallback
		if out.Provenance.HLA == "" {
			out.Provenance.HLA = part.Provenance.HLA
		}
		if part.Err != nil {
			out.Fail(part.Err)
		}
	}
	out.Raw = floats.SumCompensated(raws)

	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	terms := make([]float64, 0, len(parts))
	for _, k := range names {
		terms = terms[:0]
		for _, part := range parts {
			if v, exists := part.Partitions[k]; exists {
				terms = append(terms, v)
			}
		}
		out.Partitions[k] = floats.SumCompensated(terms)
	}

	return out
}

// Failed builds a Partial that only carries an error, for every sample of a
// unit that could not run.
func Failed(err error) *Partial {
	p := NewPartial()
	p.Err = err

	return p
}
