package scheduler

import (
	"context"
	"log"
	"runtime"
	"strconv"
	"sync/atomic"

	"github.com/carbocation/pfx"
	"github.com/carbocation/prsedm/catalog"
	"github.com/carbocation/prsedm/genotype"
	"github.com/carbocation/prsedm/impute"
	"github.com/carbocation/prsedm/prserr"
	"github.com/carbocation/prsedm/score"
	"golang.org/x/sync/errgroup"
	"gopkg.in/guregu/null.v3"
)

// Config is the part of a run's configuration the scheduler acts on.
type Config struct {
	Flags           []string
	ChunkSize       int
	SampleBatchSize int
	Parallel        bool
	TaskCount       int
	FailFast        bool
	Normalize       bool
	HLAPolicy       score.HLAPolicy
}

func (c Config) workers() int {
	if !c.Parallel {
		return 1
	}
	if c.TaskCount < 1 {
		return runtime.NumCPU()
	}

	return c.TaskCount
}

// Result holds one row per requested flag and sample, flags in request order
// and samples in cohort order.
type Result struct {
	Flags      []string
	Samples    []string
	Partitions map[string][]string
	Bounds     map[string]score.Bounds
	Rows       []score.Row
}

// Run scores every requested flag for the opener's cohort.
//
// Units run on a pool of workers pulling from a queue. Each unit writes its
// partials into its own slot, and the merge walks the slots in unit order,
// so the result never depends on which worker finished first. Without
// FailFast a unit failure is recorded against every sample of its batch for
// that flag and sibling units carry on; with FailFast the first failure
// (including any per-sample failure) cancels the queue and is returned as a
// WorkerFailure.
func Run(ctx context.Context, cfg Config, cat *catalog.Catalog, opener genotype.Opener, engine *impute.Engine) (*Result, error) {
	if cfg.Normalize && !engine.Enabled && !engine.RequireCompleteData {
		return nil, prserr.New(prserr.ErrBoundsInvalid, "normalization without imputation requires complete data")
	}

	samples, err := opener.Samples(ctx)
	if err != nil {
		return nil, pfx.Err(err)
	}

	plan, err := NewPlan(cat, cfg.Flags, samples, cfg.ChunkSize, cfg.SampleBatchSize)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Flags:      plan.Flags,
		Samples:    samples,
		Partitions: make(map[string][]string, len(plan.Flags)),
		Bounds:     make(map[string]score.Bounds, len(plan.Flags)),
	}
	finalizers := make(map[string]score.Finalizer, len(plan.Flags))
	for _, flag := range plan.Flags {
		def := plan.Defs[flag]
		f := score.NewFinalizer(def, cfg.Normalize)
		if !f.Bounds.MatchesStored(def) {
			log.Printf("%s: stored bounds [%s, %s] differ from computed bounds %s; using computed bounds\n", flag, stored(def.StoredMin), stored(def.StoredMax), f.Bounds)
		}
		finalizers[flag] = f
		result.Bounds[flag] = f.Bounds
		result.Partitions[flag] = def.Partitions()
	}

	log.Printf("Scoring %d flags for %d samples in %d units on %d workers\n", len(plan.Flags), len(samples), len(plan.Units), cfg.workers())

	partials, unitErrs, err := execute(ctx, cfg, plan, worker{opener: opener, engine: engine, hlaPolicy: cfg.HLAPolicy})
	if err != nil {
		return nil, err
	}

	for _, flag := range plan.Flags {
		units := plan.byFlag[flag]
		for s, sample := range samples {
			var parts []*score.Partial
			for _, idx := range units {
				u := plan.Units[idx]
				if !u.covers(s) {
					continue
				}
				if unitErrs[idx] != nil {
					parts = append(parts, score.Failed(unitErrs[idx]))
					continue
				}
				parts = append(parts, partials[idx][s-u.SampleStart])
			}

			result.Rows = append(result.Rows, finalizers[flag].Row(sample, score.Merge(parts)))
		}
	}

	return result, nil
}

// execute runs every unit of the plan. partials[i] and unitErrs[i] belong to
// plan.Units[i].
func execute(ctx context.Context, cfg Config, plan *Plan, w worker) ([][]*score.Partial, []error, error) {
	partials := make([][]*score.Partial, len(plan.Units))
	unitErrs := make([]error, len(plan.Units))

	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan int)

	// Dispatcher. Stops handing out units once the context is canceled;
	// units already running finish, units received afterwards are skipped.
	g.Go(func() error {
		defer close(queue)
		for i := range plan.Units {
			if gctx.Err() != nil {
				return nil
			}
			select {
			case queue <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	var processed int64
	total := len(plan.Units)
	every := total / 10
	if every < 1 {
		every = 1
	}

	for n := 0; n < cfg.workers(); n++ {
		g.Go(func() error {
			for idx := range queue {
				if gctx.Err() != nil {
					continue
				}
				u := plan.Units[idx]
				parts, err := w.run(gctx, u)
				if err != nil {
					if cfg.FailFast {
						return prserr.WorkerFailure(idx, err)
					}
					unitErrs[idx] = err
					log.Printf("Unit %d (%s, contig %s, samples %d-%d) failed: %v\n", idx, u.Flag, u.Contig, u.SampleStart, u.SampleEnd, err)
				} else {
					partials[idx] = parts
					if cfg.FailFast {
						for _, p := range parts {
							if p.Err != nil {
								return prserr.WorkerFailure(idx, p.Err)
							}
						}
					}
				}

				if done := atomic.AddInt64(&processed, 1); done%int64(every) == 0 || done == int64(total) {
					log.Println("Processed", done, "of", total, "units")
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// A canceled parent leaves units unrun.
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	return partials, unitErrs, nil
}

func stored(f null.Float) string {
	if !f.Valid {
		return "NA"
	}

	return strconv.FormatFloat(f.Float64, 'g', -1, 64)
}
