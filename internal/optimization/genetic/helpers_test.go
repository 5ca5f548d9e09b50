package genetic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/gaviz/internal/optimization"
)

// newTestEngine builds an engine and fails the test on a config error
func newTestEngine(t *testing.T, cfg optimization.Config, opts ...Option) *Engine {
	t.Helper()

	e, err := New(cfg, opts...)
	require.NoError(t, err)
	require.NotNil(t, e)
	return e
}

// setPopulation overwrites the active population and re-evaluates it
func setPopulation(t *testing.T, e *Engine, pop []optimization.Individual) {
	t.Helper()

	require.Len(t, pop, e.config.PopSize)
	for i, ind := range pop {
		writeRow(e.buf.active, i, ind)
	}
	e.evaluate()
}

// assertFloat64SlicesEqual checks if two float64 slices are approximately equal
func assertFloat64SlicesEqual(t *testing.T, got, want []float64, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

// assertBounded checks every individual lies in the search domain
func assertBounded(t *testing.T, pop []optimization.Individual) {
	t.Helper()

	for i, ind := range pop {
		if !ind.InBounds() {
			t.Fatalf("individual %d out of bounds: %+v", i, ind)
		}
	}
}
