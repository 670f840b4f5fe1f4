// Package prserr defines the failure taxonomy shared by every stage of a
// scoring run. Each failure carries a Kind, which callers test with
// errors.Is, and the Component responsible for it, which is reported
// alongside failed output rows.
package prserr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind sentinels. Compare with errors.Is.
var (
	ErrUnknownScoreFlag         = errors.New("unknown score flag")
	ErrUnsupportedBuild         = errors.New("unsupported genome build")
	ErrGenotypeSource           = errors.New("genotype source error")
	ErrNoReferenceFrequency     = errors.New("no reference frequency")
	ErrMissingVariantNotImputed = errors.New("missing variant not imputed")
	ErrHLAUnresolved            = errors.New("HLA unresolved")
	ErrDegenerateBounds         = errors.New("degenerate bounds")
	ErrBoundsInvalid            = errors.New("bounds invalid")
	ErrWorkerFailure            = errors.New("worker failure")
)

type Component string

const (
	ComponentCatalog    Component = "catalog"
	ComponentGenotype   Component = "genotype"
	ComponentImputation Component = "imputation"
	ComponentHLA        Component = "hla"
	ComponentBounds     Component = "bounds"
)

// Error is modeled on the ErrorInfo values that the genotype readers return:
// it pins a failure to a locus where one is known, and adds the scoring
// context (flag, sample) that the output surface needs.
type Error struct {
	Kind       error
	Component  Component
	Flag       string
	Sample     string
	Chromosome string
	Position   uint32
	Message    string
	Err        error
}

func (e *Error) Error() string {
	b := strings.Builder{}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("error")
	}

	if e.Flag != "" {
		fmt.Fprintf(&b, " [flag %s]", e.Flag)
	}
	if e.Sample != "" {
		fmt.Fprintf(&b, " [sample %s]", e.Sample)
	}
	if e.Chromosome != "" {
		fmt.Fprintf(&b, " at %s:%d", e.Chromosome, e.Position)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

// Is reports a match against the Kind sentinel. The wrapped cause is reached
// through Unwrap.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error of the given kind. The component is inferred from the
// kind when it is unambiguous.
func New(kind error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:      kind,
		Component: componentFor(kind),
		Message:   fmt.Sprintf(format, args...),
	}
}

// Wrap annotates err with a kind. A nil err yields nil.
func Wrap(kind error, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	e := New(kind, format, args...)
	e.Err = err

	return e
}

// ComponentOf reports the component that produced err, or "" if err is not
// part of the taxonomy.
func ComponentOf(err error) Component {
	var e *Error
	for errors.As(err, &e) {
		if e.Component != "" {
			return e.Component
		}
		err = e.Err
		if err == nil {
			break
		}
	}

	return ""
}

// WorkerFailure wraps an error that escaped a batch unit.
func WorkerFailure(unit int, err error) *Error {
	return &Error{
		Kind:      ErrWorkerFailure,
		Component: ComponentOf(err),
		Message:   fmt.Sprintf("unit %d", unit),
		Err:       err,
	}
}

func componentFor(kind error) Component {
	switch kind {
	case ErrUnknownScoreFlag, ErrUnsupportedBuild:
		return ComponentCatalog
	case ErrGenotypeSource:
		return ComponentGenotype
	case ErrNoReferenceFrequency, ErrMissingVariantNotImputed:
		return ComponentImputation
	case ErrHLAUnresolved:
		return ComponentHLA
	case ErrDegenerateBounds, ErrBoundsInvalid:
		return ComponentBounds
	}

	return ""
}

// Scope attaches the flag and sample an error applies to. Errors outside
// the taxonomy are returned unchanged. The input is never modified, so one
// error can be scoped to many samples.
func Scope(err error, flag, sample string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}

	scoped := *e
	if scoped.Flag == "" {
		scoped.Flag = flag
	}
	if scoped.Sample == "" {
		scoped.Sample = sample
	}

	return &scoped
}
