package genetic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/gaviz/internal/optimization"
)

func cornerPopulation() []optimization.Individual {
	return []optimization.Individual{
		{X: 0, Y: 0},
		{X: 10, Y: 10},
		{X: 0, Y: 10},
		{X: 10, Y: 0},
		{X: 2.5, Y: 7.5},
		{X: 9.9, Y: 0.1},
	}
}

func TestSpin(t *testing.T) {
	cum := []float64{1, 3, 5, 11}

	tests := []struct {
		name string
		u    float64
		want int
	}{
		{name: "lower end", u: 1, want: 0},
		{name: "inside first band", u: 2, want: 1},
		{name: "on a boundary", u: 3, want: 1},
		{name: "just past a boundary", u: 3.0001, want: 2},
		{name: "upper end", u: 11, want: 3},
		{name: "past the end clamps", u: 12, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, spin(cum, tt.u))
		})
	}
}

func TestSelectionPreservesSize(t *testing.T) {
	cfg := defaultConfig()
	cfg.PopSize = 6
	e := newTestEngine(t, cfg)

	pop := cornerPopulation()
	setPopulation(t, e, pop)

	for i := 0; i < 20; i++ {
		e.selection()
		selected := e.Population()
		require.Len(t, selected, cfg.PopSize)
		for _, ind := range selected {
			assert.Contains(t, pop, ind)
		}
		setPopulation(t, e, pop)
	}
}

func TestSelectionBias(t *testing.T) {
	cfg := defaultConfig()
	cfg.PopSize = 4
	cfg.MutRate = 0

	// Fitness is x alone so the weights are easy to read off:
	// min = 1, adj = 1, cum = [1, 3, 5, 11]
	e := newTestEngine(t, cfg, WithFitness(func(x, y float64) float64 { return x }))

	pop := []optimization.Individual{
		{X: 1, Y: 0.1},
		{X: 1, Y: 0.2},
		{X: 1, Y: 0.3},
		{X: 5, Y: 0.4},
	}

	const trials = 5000
	counts := make(map[optimization.Individual]int)
	for i := 0; i < trials; i++ {
		setPopulation(t, e, pop)
		e.selection()
		for _, ind := range e.Population() {
			counts[ind]++
		}
	}

	draws := float64(trials * cfg.PopSize)
	assert.Equal(t, 0, counts[pop[0]], "the first slot only covers the lower end of the wheel")
	assert.InDelta(t, 0.2, float64(counts[pop[1]])/draws, 0.02)
	assert.InDelta(t, 0.2, float64(counts[pop[2]])/draws, 0.02)
	assert.InDelta(t, 0.6, float64(counts[pop[3]])/draws, 0.02)
}

func TestSelectionNegativeFitness(t *testing.T) {
	cfg := defaultConfig()
	cfg.PopSize = 4

	// min = -2, adj = 2, cum = [2, 2, 6, 10]: slot 1 carries no weight
	e := newTestEngine(t, cfg, WithFitness(func(x, y float64) float64 { return x - 3 }))

	pop := []optimization.Individual{
		{X: 4, Y: 0.1},
		{X: 1, Y: 0.2},
		{X: 5, Y: 0.3},
		{X: 5, Y: 0.4},
	}

	for i := 0; i < 200; i++ {
		setPopulation(t, e, pop)
		e.selection()
		for _, ind := range e.Population() {
			assert.NotEqual(t, pop[0], ind)
			assert.NotEqual(t, pop[1], ind)
		}
	}
}

func TestSelectionFlatZeroFitness(t *testing.T) {
	cfg := defaultConfig()
	cfg.PopSize = 4
	e := newTestEngine(t, cfg, WithFitness(func(x, y float64) float64 { return 0 }))

	pop := cornerPopulation()[:4]
	setPopulation(t, e, pop)
	e.selection()

	// A flat zero wheel has no width; every draw lands on the first slot
	for _, ind := range e.Population() {
		assert.Equal(t, pop[0], ind)
	}
}

func TestCrossoverNoOp(t *testing.T) {
	cfg := defaultConfig()
	cfg.PopSize = 6
	cfg.CrossRate = 0
	e := newTestEngine(t, cfg)

	pop := cornerPopulation()
	setPopulation(t, e, pop)

	e.crossover()
	assert.Equal(t, pop, e.Population())
}

func TestCrossoverBlendsPairs(t *testing.T) {
	cfg := defaultConfig()
	cfg.PopSize = 6
	cfg.CrossRate = 1
	e := newTestEngine(t, cfg)

	pop := []optimization.Individual{
		{X: 1, Y: 2},
		{X: 9, Y: 6},
		{X: 3, Y: 8},
		{X: 7, Y: 0},
		{X: 0, Y: 10},
		{X: 10, Y: 5},
	}
	setPopulation(t, e, pop)

	e.crossover()
	got := e.Population()
	require.Len(t, got, cfg.PopSize)
	assertBounded(t, got)

	// One alpha is shared by every pair of the call
	alpha := (got[0].X - pop[1].X) / (pop[0].X - pop[1].X)
	assert.GreaterOrEqual(t, alpha, 0.0)
	assert.LessOrEqual(t, alpha, 1.0)

	for i := 0; i < len(pop); i += 2 {
		a, b := pop[i], pop[i+1]
		want := []float64{
			alpha*a.X + (1-alpha)*b.X,
			alpha*a.Y + (1-alpha)*b.Y,
			alpha*b.X + (1-alpha)*a.X,
			alpha*b.Y + (1-alpha)*a.Y,
		}
		assertFloat64SlicesEqual(t, []float64{got[i].X, got[i].Y, got[i+1].X, got[i+1].Y}, want, 1e-9)

		// Blending keeps the pair's centroid
		assert.InDelta(t, a.X+b.X, got[i].X+got[i+1].X, 1e-9)
		assert.InDelta(t, a.Y+b.Y, got[i].Y+got[i+1].Y, 1e-9)
	}
}

func TestMutateNoOp(t *testing.T) {
	cfg := defaultConfig()
	cfg.PopSize = 6
	cfg.MutRate = 0
	e := newTestEngine(t, cfg)

	pop := cornerPopulation()
	setPopulation(t, e, pop)

	e.mutate()
	assert.Equal(t, pop, e.Population())
}

func TestMutateBounded(t *testing.T) {
	cfg := defaultConfig()
	cfg.PopSize = 6
	cfg.MutRate = 1
	e := newTestEngine(t, cfg)

	pop := cornerPopulation()
	for round := 0; round < 50; round++ {
		setPopulation(t, e, pop)
		e.mutate()

		got := e.Population()
		require.Len(t, got, cfg.PopSize)
		assertBounded(t, got)
		for i := range got {
			assert.LessOrEqual(t, math.Abs(got[i].X-pop[i].X), mutationSpan)
			assert.LessOrEqual(t, math.Abs(got[i].Y-pop[i].Y), mutationSpan)
		}
	}
}

func TestBlend(t *testing.T) {
	a := optimization.Individual{X: 2, Y: 4}
	b := optimization.Individual{X: 6, Y: 0}

	assert.Equal(t, a, blend(a, b, 1))
	assert.Equal(t, b, blend(a, b, 0))
	assert.Equal(t, optimization.Individual{X: 4, Y: 2}, blend(a, b, 0.5))
}

func TestBufferSwap(t *testing.T) {
	buf := newPopulationBuffers(2)
	writeRow(buf.active, 0, optimization.Individual{X: 1, Y: 2})
	writeRow(buf.spare, 0, optimization.Individual{X: 3, Y: 4})

	buf.swap()
	assert.Equal(t, optimization.Individual{X: 3, Y: 4}, buf.get(0))
	assert.Equal(t, 2, buf.size())

	buf.swap()
	assert.Equal(t, []optimization.Individual{{X: 1, Y: 2}, {X: 0, Y: 0}}, buf.snapshot())
}
