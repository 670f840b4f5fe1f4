// Package hla turns tag-SNP dosages into haplotype-pair calls and computes
// the interaction term of an hla_int score. Everything here is a pure
// function of its inputs.
package hla

import (
	"fmt"
	"math"
	"sort"

	"github.com/carbocation/prsedm/catalog"
	"github.com/carbocation/prsedm/prserr"
)

// Kind tags a Resolution.
type Kind int

const (
	// Unresolvable: no modeled haplotype is compatible with the tags.
	Unresolvable Kind = iota

	// Unambiguous: exactly one haplotype pair is compatible.
	Unambiguous

	// Resolved: more calls than ploidy allows, weighted by population
	// haplotype frequencies.
	Resolved
)

func (k Kind) String() string {
	switch k {
	case Unresolvable:
		return "unresolved"
	case Unambiguous:
		return "unambiguous"
	case Resolved:
		return "resolved"
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// Candidate is one haplotype-pair hypothesis with its posterior weight.
type Candidate struct {
	Pair   catalog.HaplotypePair
	Weight float64
}

// Resolution is the outcome for one sample. Candidate weights sum to 1 unless
// Kind is Unresolvable, in which case there are none.
type Resolution struct {
	Kind       Kind
	Candidates []Candidate
}

// Calls converts tag dosages (in model.Tags order; NaN for absent) into
// haplotype copy counts. A dosage is rounded to the nearest whole number of
// copies; tags naming the same haplotype are collapsed by taking the largest
// count, so redundant tags do not multiply a call.
func Calls(model *catalog.HLAModel, dosages []float64) map[string]int {
	out := make(map[string]int)
	for i, tag := range model.Tags {
		if i >= len(dosages) || math.IsNaN(dosages[i]) {
			continue
		}

		copies := int(math.Round(dosages[i]))
		if copies <= 0 {
			continue
		}
		if copies > out[tag.Haplotype] {
			out[tag.Haplotype] = copies
		}
	}

	return out
}

// Resolve enumerates the haplotype pairs compatible with calls. With no
// calls the sample is Unresolvable; with one call the second haplotype is
// catalog.NoCall; with two calls the pair is Unambiguous. With more calls
// than a diploid genome carries, every unordered pair drawn from the calls
// is a candidate, weighted by the product of its haplotype frequencies and
// renormalized to sum to 1. If none of those haplotypes has a known
// frequency the candidates are weighted uniformly.
func Resolve(model *catalog.HLAModel, calls map[string]int) Resolution {
	haplotypes := orderedCalls(model, calls)

	// Expand to the multiset of called copies
	var copies []string
	for _, h := range haplotypes {
		for i := 0; i < calls[h]; i++ {
			copies = append(copies, h)
		}
	}

	switch len(copies) {
	case 0:
		return Resolution{Kind: Unresolvable}
	case 1:
		return Resolution{Kind: Unambiguous, Candidates: []Candidate{{Pair: catalog.HaplotypePair{A: copies[0], B: catalog.NoCall}, Weight: 1}}}
	case 2:
		return Resolution{Kind: Unambiguous, Candidates: []Candidate{{Pair: catalog.HaplotypePair{A: copies[0], B: copies[1]}, Weight: 1}}}
	}

	// Unordered pairs from the multiset: (a,b) with a before b in canonical
	// order, and (a,a) when a was called at least twice.
	var candidates []Candidate
	for i, a := range haplotypes {
		for _, b := range haplotypes[i:] {
			if a == b && calls[a] < 2 {
				continue
			}
			candidates = append(candidates, Candidate{
				Pair:   catalog.HaplotypePair{A: a, B: b},
				Weight: model.Frequencies[a] * model.Frequencies[b],
			})
		}
	}

	return Resolution{Kind: Resolved, Candidates: Renormalize(candidates)}
}

// Renormalize scales candidate weights to sum to 1, falling back to uniform
// weights when they sum to zero (or are not finite).
func Renormalize(candidates []Candidate) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)

	total := 0.0
	for _, c := range out {
		total += c.Weight
	}

	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		for i := range out {
			out[i].Weight = 1 / float64(len(out))
		}
		return out
	}

	for i := range out {
		out[i].Weight /= total
	}

	return out
}

// PairWeight looks up the interaction weight of a pair, in either order. A
// pair absent from the table, or listed with weight 0, scores the sum of its
// haplotypes' single weights; NoCall and unlisted haplotypes contribute zero.
func PairWeight(model *catalog.HLAModel, pair catalog.HaplotypePair) float64 {
	if w := model.Pairs[pair]; w != 0 {
		return w
	}
	if w := model.Pairs[catalog.HaplotypePair{A: pair.B, B: pair.A}]; w != 0 {
		return w
	}

	return model.Singles[pair.A] + model.Singles[pair.B]
}

// Term is the probability-weighted interaction weight over the candidates,
// summed in candidate order.
func Term(model *catalog.HLAModel, r Resolution) (float64, error) {
	if r.Kind == Unresolvable || len(r.Candidates) == 0 {
		return 0, prserr.New(prserr.ErrHLAUnresolved, "no modeled haplotype is compatible with the tag genotypes")
	}

	term := 0.0
	for _, c := range r.Candidates {
		term += c.Weight * PairWeight(model, c.Pair)
	}

	return term, nil
}

// Envelope is the smallest and largest interaction term any sample can
// receive. Mixtures of candidates are convex combinations of pair weights,
// so the extremes are attained by single pairs: every pair of modeled
// haplotypes, plus each haplotype with NoCall.
func Envelope(model *catalog.HLAModel) (min, max float64) {
	haplotypes := model.Haplotypes()
	if len(haplotypes) == 0 {
		return 0, 0
	}

	min, max = math.Inf(1), math.Inf(-1)
	consider := func(w float64) {
		min = math.Min(min, w)
		max = math.Max(max, w)
	}

	for i, a := range haplotypes {
		consider(PairWeight(model, catalog.HaplotypePair{A: a, B: catalog.NoCall}))
		for _, b := range haplotypes[i:] {
			consider(PairWeight(model, catalog.HaplotypePair{A: a, B: b}))
		}
	}

	return min, max
}

// orderedCalls sorts called haplotypes by rank, then by name. Unranked
// haplotypes sort last.
func orderedCalls(model *catalog.HLAModel, calls map[string]int) []string {
	out := make([]string, 0, len(calls))
	for h, n := range calls {
		if n > 0 {
			out = append(out, h)
		}
	}

	rank := func(h string) int {
		if r, exists := model.Ranks[h]; exists {
			return r
		}
		return math.MaxInt32
	}

	sort.Slice(out, func(i, j int) bool {
		ri, rj := rank(out[i]), rank(out[j])
		if ri != rj {
			return ri < rj
		}
		return out[i] < out[j]
	})

	return out
}
