// Package genotype reads expected effect-allele counts for score variants
// from VCF/BCF (tabix), BGEN (BGI) or in-memory containers.
package genotype

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/carbocation/prsedm/catalog"
)

// Kind selects how a sample's value is read from a record.
type Kind string

const (
	// HardCall counts effect alleles in the called genotype (GT).
	HardCall Kind = "GT"

	// Dosage takes the expectation over genotype probabilities (GP, or DS
	// for biallelic VCF records, or the BGEN probabilities).
	Dosage Kind = "GP"
)

func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(s) {
	case "GT", "HARD-CALL", "HARDCALL":
		return HardCall, nil
	case "GP", "DS", "DOSAGE":
		return Dosage, nil
	}

	return "", fmt.Errorf("unknown column kind %q (expected GT or GP)", s)
}

// Call holds one variant's expected effect-allele count for every sample of
// a source, in source sample order. Found is false when the source has no
// record carrying the effect allele; individual samples without a value are
// NaN.
type Call struct {
	Found   bool
	Dosages []float64
}

// Absent reports whether sample i has no value.
func (c Call) Absent(i int) bool {
	return !c.Found || i >= len(c.Dosages) || math.IsNaN(c.Dosages[i])
}

// Source is one open genotype container. A Source is used by a single
// goroutine; concurrent batch units each open their own.
type Source interface {
	Samples() []string
	Query(ctx context.Context, v catalog.VariantSpec) (Call, error)
	Close() error
}

// Opener hands out Sources by contig.
type Opener interface {
	// Samples returns the cohort's sample ids, verifying that every
	// container agrees on them.
	Samples(ctx context.Context) ([]string, error)

	// Open returns a Source that covers contig.
	Open(ctx context.Context, contig string) (Source, error)
}

func absentCall(nSamples int) Call {
	return Call{Found: false, Dosages: nanSlice(nSamples)}
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}

	return out
}
