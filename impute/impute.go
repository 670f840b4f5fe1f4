package impute

import (
	"fmt"

	"github.com/carbocation/prsedm/catalog"
	"github.com/carbocation/prsedm/hwe"
	"github.com/carbocation/prsedm/prserr"
)

// Policy decides what happens to a missing variant that has no reference
// frequency.
type Policy string

const (
	// PolicyFail fails the flag for every sample missing the variant.
	PolicyFail Policy = "fail"

	// PolicyDrop leaves the variant out of those samples' scores.
	PolicyDrop Policy = "drop"

	// PolicyZero substitutes an explicit zero contribution.
	PolicyZero Policy = "zero"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyFail, PolicyDrop, PolicyZero:
		return p, nil
	case "":
		return PolicyFail, nil
	}

	return "", fmt.Errorf("unknown missing-frequency policy %q (expected fail, drop or zero)", s)
}

// Outcome records how a sample's value for one variant was obtained.
type Outcome int

const (
	Observed Outcome = iota
	Imputed
	Excluded
	Fallback
)

func (o Outcome) String() string {
	switch o {
	case Observed:
		return "observed"
	case Imputed:
		return "imputed"
	case Excluded:
		return "excluded"
	case Fallback:
		return "fallback"
	}

	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Impute is the expected effect-allele count of a genotype drawn under HWE
// from a population with effect-allele frequency p.
func Impute(p float64) float64 {
	return hwe.ExpectedDosage(p)
}

// Engine applies an imputation policy to missing variants. It holds only
// read-only state.
type Engine struct {
	Enabled             bool
	Panel               *Panel
	MissingFrequency    Policy
	RequireCompleteData bool
}

// Fill decides the value substituted for v in a sample that lacks it.
// Errors carry NoReferenceFrequency or MissingVariantNotImputed and are
// scoped to that sample and flag by the caller.
func (e *Engine) Fill(v catalog.VariantSpec) (float64, Outcome, error) {
	if !e.Enabled {
		if e.RequireCompleteData {
			return 0, Excluded, locusErr(prserr.ErrMissingVariantNotImputed, v, "imputation is disabled")
		}
		return 0, Excluded, nil
	}

	if p, ok := e.Panel.Frequency(v); ok {
		return Impute(p), Imputed, nil
	}

	switch e.MissingFrequency {
	case PolicyDrop:
		return 0, Excluded, nil
	case PolicyZero:
		return 0, Fallback, nil
	}

	return 0, Excluded, locusErr(prserr.ErrNoReferenceFrequency, v, "the reference panel has no frequency for this allele")
}

func locusErr(kind error, v catalog.VariantSpec, message string) error {
	e := prserr.New(kind, "%s (%s): %s", v.RSID, v.String(), message)
	e.Chromosome = v.Contig
	e.Position = uint32(v.Position)

	return e
}
