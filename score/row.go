package score

import (
	"github.com/carbocation/prsedm/catalog"
	"github.com/carbocation/prsedm/prserr"
	"gopkg.in/guregu/null.v3"
)

// SampleScore is a complete score for one sample and flag.
type SampleScore struct {
	Raw        float64
	Normalized null.Float // invalid when normalization is off
	Partitions map[string]float64
	Provenance Provenance
}

// SampleFailure explains why a sample has no score for a flag.
type SampleFailure struct {
	Component prserr.Component
	Err       error
}

// Row is one output row. Exactly one of Score and Failure is set.
type Row struct {
	Sample  string
	Flag    string
	Score   *SampleScore
	Failure *SampleFailure
}

func (r Row) Failed() bool {
	return r.Failure != nil
}

// Finalizer turns merged partials into rows for one definition.
type Finalizer struct {
	Def       *catalog.ScoreDefinition
	Bounds    Bounds
	Normalize bool
}

func NewFinalizer(def *catalog.ScoreDefinition, normalize bool) Finalizer {
	return Finalizer{Def: def, Bounds: ComputeBounds(def), Normalize: normalize}
}

// Row produces either a complete score or a failure; never a partly filled
// row. Every partition of the definition is present in the score, zero if
// no variant of that partition contributed.
func (f Finalizer) Row(sample string, p *Partial) Row {
	row := Row{Sample: sample, Flag: f.Def.Flag}

	if p.Err != nil {
		return f.fail(row, p.Err)
	}

	s := &SampleScore{
		Raw:        p.Raw,
		Partitions: make(map[string]float64),
		Provenance: p.Provenance,
	}
	for _, part := range f.Def.Partitions() {
		s.Partitions[part] = p.Partitions[part]
	}

	if f.Normalize {
		if p.Provenance.Excluded > 0 {
			return f.fail(row, prserr.New(prserr.ErrBoundsInvalid, "%d variants were excluded from this sample's score, so the envelope does not apply", p.Provenance.Excluded))
		}

		normalized, err := f.Bounds.Normalize(p.Raw)
		if err != nil {
			return f.fail(row, err)
		}
		s.Normalized = null.FloatFrom(normalized)
	}

	row.Score = s

	return row
}

func (f Finalizer) fail(row Row, err error) Row {
	err = prserr.Scope(err, row.Flag, row.Sample)
	row.Failure = &SampleFailure{Component: prserr.ComponentOf(err), Err: err}

	return row
}
