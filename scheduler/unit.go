package scheduler

import (
	"context"
	"math"

	"github.com/carbocation/prsedm/chrpos"
	"github.com/carbocation/prsedm/genotype"
	"github.com/carbocation/prsedm/impute"
	"github.com/carbocation/prsedm/prserr"
	"github.com/carbocation/prsedm/score"
)

// worker holds the read-only state every unit needs. Nothing in it is
// mutated once the run starts.
type worker struct {
	opener    genotype.Opener
	engine    *impute.Engine
	hlaPolicy score.HLAPolicy
}

// run computes one partial per sample of the unit's batch. An error means
// the unit could not be scored at all (typically a genotype source
// failure); per-sample problems are recorded in the partials instead.
func (w worker) run(ctx context.Context, u Unit) ([]*score.Partial, error) {
	parts := make([]*score.Partial, u.SampleEnd-u.SampleStart)
	for i := range parts {
		parts[i] = score.NewPartial()
	}

	if u.HLA != nil {
		return parts, w.runHLA(ctx, u, parts)
	}

	src, err := w.opener.Open(ctx, u.Contig)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	for _, v := range u.Variants {
		call, err := src.Query(ctx, v)
		if err != nil {
			return nil, prserr.Wrap(prserr.ErrGenotypeSource, err, "querying %s", v)
		}

		// A missing variant is filled identically for every sample that
		// lacks it, so decide it once.
		var filled bool
		var fill float64
		var outcome impute.Outcome
		var fillErr error

		for i, p := range parts {
			sample := u.SampleStart + i
			if !call.Absent(sample) {
				p.AddVariant(v, call.Dosages[sample], impute.Observed)
				continue
			}

			if !filled {
				fill, outcome, fillErr = w.engine.Fill(v)
				filled = true
			}
			if fillErr != nil {
				p.Fail(fillErr)
				continue
			}
			p.AddVariant(v, fill, outcome)
		}
	}

	return parts, nil
}

// runHLA reads the tag dosages of every sample in the batch and adds the
// interaction term. Tags may span contigs; each contig is opened once.
func (w worker) runHLA(ctx context.Context, u Unit, parts []*score.Partial) error {
	tags := u.HLA.Tags
	dosages := make([][]float64, len(parts))
	for i := range dosages {
		dosages[i] = make([]float64, len(tags))
	}

	sources := make(map[string]genotype.Source)
	defer func() {
		for _, src := range sources {
			src.Close()
		}
	}()

	for t, tag := range tags {
		contig := chrpos.Normalize(tag.Variant.Contig)
		src, exists := sources[contig]
		if !exists {
			var err error
			src, err = w.opener.Open(ctx, tag.Variant.Contig)
			if err != nil {
				return err
			}
			sources[contig] = src
		}

		call, err := src.Query(ctx, tag.Variant)
		if err != nil {
			return prserr.Wrap(prserr.ErrGenotypeSource, err, "querying HLA tag %s", tag.Variant)
		}

		for i := range parts {
			// Absent tags stay NaN and contribute no haplotype call.
			if call.Absent(u.SampleStart + i) {
				dosages[i][t] = math.NaN()
				continue
			}
			dosages[i][t] = call.Dosages[u.SampleStart+i]
		}
	}

	for i, p := range parts {
		p.AddHLA(u.HLA, dosages[i], w.hlaPolicy)
	}

	return nil
}
