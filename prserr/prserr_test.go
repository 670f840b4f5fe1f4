package prserr

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindMatching(t *testing.T) {
	err := New(ErrNoReferenceFrequency, "no AF for %s:%d", "1", 100)
	assert.True(t, errors.Is(err, ErrNoReferenceFrequency))
	assert.False(t, errors.Is(err, ErrHLAUnresolved))
	assert.Equal(t, ComponentImputation, err.Component)
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(ErrGenotypeSource, io.ErrUnexpectedEOF, "reading chunk")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGenotypeSource))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Equal(t, ComponentGenotype, ComponentOf(err))

	assert.NoError(t, Wrap(ErrGenotypeSource, nil, "nothing"))
}

func TestWorkerFailureCarriesComponent(t *testing.T) {
	inner := New(ErrHLAUnresolved, "no candidates")
	wrapped := fmt.Errorf("unit body: %w", inner)

	wf := WorkerFailure(3, wrapped)
	assert.True(t, errors.Is(wf, ErrWorkerFailure))
	assert.True(t, errors.Is(wf, ErrHLAUnresolved))
	assert.Equal(t, ComponentHLA, wf.Component)
	assert.Contains(t, wf.Error(), "unit 3")
}

func TestErrorString(t *testing.T) {
	e := New(ErrMissingVariantNotImputed, "imputation disabled")
	e.Flag = "T1D_GRS2"
	e.Sample = "S1"
	e.Chromosome = "6"
	e.Position = 32000000

	assert.Equal(t, "missing variant not imputed [flag T1D_GRS2] [sample S1] at 6:32000000: imputation disabled", e.Error())
}

func TestScopeDoesNotMutate(t *testing.T) {
	shared := New(ErrGenotypeSource, "contig 2 unreadable")

	a := Scope(shared, "T1D_GRS2", "S1")
	b := Scope(shared, "T1D_GRS2", "S2")

	assert.Empty(t, shared.Sample)
	assert.Contains(t, a.Error(), "[sample S1]")
	assert.Contains(t, b.Error(), "[sample S2]")
	assert.True(t, errors.Is(b, ErrGenotypeSource))
	assert.Equal(t, ComponentGenotype, ComponentOf(b))

	plain := errors.New("plain")
	assert.Equal(t, plain, Scope(plain, "F", "S"))
}
