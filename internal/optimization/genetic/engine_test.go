package genetic

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/copyleftdev/gaviz/internal/optimization"
)

func defaultConfig() optimization.Config {
	return optimization.Config{
		TMax:      20,
		PopSize:   10,
		CrossRate: 0.3,
		MutRate:   0.05,
		Seed:      42,
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *optimization.Config)
		wantErr bool
	}{
		{name: "valid configuration", mutate: func(c *optimization.Config) {}},
		{name: "smallest population", mutate: func(c *optimization.Config) { c.PopSize = 2 }},
		{name: "rates at the edges", mutate: func(c *optimization.Config) { c.CrossRate, c.MutRate = 1, 0 }},
		{name: "odd population", mutate: func(c *optimization.Config) { c.PopSize = 7 }, wantErr: true},
		{name: "zero population", mutate: func(c *optimization.Config) { c.PopSize = 0 }, wantErr: true},
		{name: "negative population", mutate: func(c *optimization.Config) { c.PopSize = -2 }, wantErr: true},
		{name: "zero tmax", mutate: func(c *optimization.Config) { c.TMax = 0 }, wantErr: true},
		{name: "cross rate above one", mutate: func(c *optimization.Config) { c.CrossRate = 1.5 }, wantErr: true},
		{name: "negative mutation rate", mutate: func(c *optimization.Config) { c.MutRate = -0.1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)

			e, err := New(cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, optimization.ErrInvalidConfig)
				optErr, ok := optimization.IsOptimizationError(err)
				require.True(t, ok)
				assert.Equal(t, "genetic", optErr.Component)
				assert.Nil(t, e)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, e)

			pop := e.Population()
			assert.Len(t, pop, cfg.PopSize)
			assertBounded(t, pop)

			assert.True(t, e.IsRunning())
			assert.Equal(t, 0, e.CurrentGeneration())
			assert.Equal(t, 0, e.Statistics().Len())
			assert.Equal(t, cfg, e.Config())

			// Fitness is evaluated against the initial population
			fitness := e.Fitness()
			require.Len(t, fitness, cfg.PopSize)
			for i, ind := range pop {
				assert.Equal(t, optimization.Benchmark(ind.X, ind.Y), fitness[i])
			}
		})
	}
}

func TestNewWithOptions(t *testing.T) {
	cfg := defaultConfig()
	cfg.Seed = 0

	constant := func(x, y float64) float64 { return 1.5 }
	e := newTestEngine(t, cfg,
		WithRand(rand.New(rand.NewSource(3))),
		WithFitness(constant),
		WithLogger(zap.NewNop()),
		WithFitness(nil),
		WithLogger(nil),
	)

	for _, f := range e.Fitness() {
		assert.Equal(t, 1.5, f)
	}

	// An injected source takes precedence over the seed
	other := newTestEngine(t, cfg, WithRand(rand.New(rand.NewSource(3))))
	assert.Equal(t, e.Population(), other.Population())
}

func TestEvaluate(t *testing.T) {
	cfg := defaultConfig()
	cfg.PopSize = 4
	e := newTestEngine(t, cfg)

	setPopulation(t, e, []optimization.Individual{
		{X: 0, Y: 0},
		{X: 9, Y: 9},
		{X: 10, Y: 0},
		{X: 7.97, Y: 7.97},
	})

	fitness := e.Fitness()
	assert.Equal(t, 0.0, fitness[0])
	assert.InDelta(t, 9*math.Sin(9)*math.Sin(9), fitness[1], 1e-12)
	assert.Equal(t, math.Sqrt(9)*math.Sin(9)*math.Sqrt(9)*math.Sin(9), fitness[1])
	assert.Equal(t, 0.0, fitness[2])
	assert.Greater(t, fitness[3], 7.8)

	// Evaluation is a pure function of the coordinates
	e.evaluate()
	assert.Equal(t, fitness, e.Fitness())
}

func TestNewLargeTMax(t *testing.T) {
	cfg := defaultConfig()
	cfg.TMax = 1 << 60

	var e *Engine
	require.NotPanics(t, func() { e = newTestEngine(t, cfg) })

	e.Step()
	assert.True(t, e.IsRunning())
	assert.Equal(t, 1, e.Statistics().Len())
}

func TestTermination(t *testing.T) {
	const generations = 5

	cfg := defaultConfig()
	cfg.TMax = generations
	e := newTestEngine(t, cfg)

	for i := 0; i < generations; i++ {
		require.True(t, e.IsRunning(), "engine stopped early at generation %d", i)
		e.Step()
		assert.Equal(t, i+1, e.CurrentGeneration())
	}

	assert.False(t, e.IsRunning())
	assert.Equal(t, generations, e.CurrentGeneration())

	stats := e.Statistics()
	assert.Equal(t, generations, stats.Len())
	assert.Len(t, stats.Avg, generations)
	assert.Len(t, stats.Max, generations)

	// A finished engine ignores further steps
	pop := e.Population()
	fitness := e.Fitness()
	e.Step()
	assert.Equal(t, generations, e.CurrentGeneration())
	assert.Equal(t, pop, e.Population())
	assert.Equal(t, fitness, e.Fitness())
	assert.Equal(t, stats, e.Statistics())
}

func TestStepStatistics(t *testing.T) {
	e := newTestEngine(t, defaultConfig())

	for e.IsRunning() {
		e.Step()

		assertBounded(t, e.Population())

		stats := e.Statistics()
		last := stats.Len() - 1
		fitness := e.Fitness()

		assert.LessOrEqual(t, stats.Min[last], stats.Avg[last])
		assert.LessOrEqual(t, stats.Avg[last], stats.Max[last])
		assert.Equal(t, stats.Max[last], e.Best().Fitness)

		sum := 0.0
		for _, f := range fitness {
			sum += f
		}
		assert.InDelta(t, sum/float64(len(fitness)), stats.Avg[last], 1e-12)
	}
}

func TestStatisticsAreCopies(t *testing.T) {
	e := newTestEngine(t, defaultConfig())
	e.Step()

	stats := e.Statistics()
	stats.Max[0] = math.Inf(1)
	assert.NotEqual(t, math.Inf(1), e.Statistics().Max[0])

	pop := e.Population()
	pop[0] = optimization.Individual{X: -1, Y: -1}
	assert.True(t, e.Population()[0].InBounds())
}

func TestBest(t *testing.T) {
	cfg := defaultConfig()
	cfg.PopSize = 4
	e := newTestEngine(t, cfg)

	setPopulation(t, e, []optimization.Individual{
		{X: 1, Y: 1},
		{X: 7.9, Y: 8},
		{X: 4.9, Y: 4.9},
		{X: 0, Y: 0},
	})

	best := e.Best()
	assert.Equal(t, optimization.Individual{X: 7.9, Y: 8}, best.Individual)
	assert.Equal(t, optimization.Benchmark(7.9, 8), best.Fitness)
}

func TestSeedReproducibility(t *testing.T) {
	a := newTestEngine(t, defaultConfig())
	b := newTestEngine(t, defaultConfig())

	for a.IsRunning() {
		a.Step()
		b.Step()
	}

	assert.Equal(t, a.Population(), b.Population())
	assert.Equal(t, a.Statistics(), b.Statistics())
}

func TestAssertBoundedPanics(t *testing.T) {
	e := newTestEngine(t, defaultConfig())
	writeRow(e.buf.active, 3, optimization.Individual{X: 10.5, Y: 2})

	require.Panics(t, func() { e.assertBounded("mutate") })
}

// TestGoldenSingleGeneration pins one generation of seed 20240611 with both
// operator rates at zero, so the selected population is the whole change.
func TestGoldenSingleGeneration(t *testing.T) {
	const seed = 20240611

	// Initial population of the seed, shared by both sizes
	initial := []optimization.Individual{
		{X: 3.5594431561769238, Y: 7.839450890001139},
		{X: 3.78651275275411, Y: 3.8622579540228346},
		{X: 3.635210396106807, Y: 7.928737745676133},
		{X: 0.21337699102952445, Y: 3.214646734963304},
		{X: 8.595746480502502, Y: 7.812395006747925},
		{X: 6.6285143147337955, Y: 6.557989344134035},
	}

	tests := []struct {
		name     string
		popSize  int
		fitness  []float64
		selected []int
		min      float64
		avg      float64
		max      float64
	}{
		{
			name:     "pair",
			popSize:  2,
			fitness:  []float64{-2.143367555848618, 1.5169809525528493},
			selected: []int{1, 1},
			min:      1.5169809525528493,
			avg:      1.5169809525528493,
			max:      1.5169809525528493,
		},
		{
			// Slot 2 has zero width on the wheel and slot 0 only covers its
			// lower end
			name:     "six",
			popSize:  6,
			fitness:  []float64{-2.143367555848618, 1.5169809525528493, -2.5366515875089055, -0.0128010488862636, 6.036554990689768, 0.6056243713381404},
			selected: []int{1, 4, 1, 3, 4, 1},
			min:      -0.0128010488862636,
			avg:      2.7685419650253036,
			max:      6.036554990689768,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, optimization.Config{
				TMax:      1,
				PopSize:   tt.popSize,
				CrossRate: 0,
				MutRate:   0,
				Seed:      seed,
			})

			assert.Equal(t, initial[:tt.popSize], e.Population())
			assertFloat64SlicesEqual(t, e.Fitness(), tt.fitness, 1e-12)

			e.Step()

			assert.False(t, e.IsRunning())
			assert.Equal(t, 1, e.CurrentGeneration())

			want := make([]optimization.Individual, tt.popSize)
			for i, j := range tt.selected {
				want[i] = initial[j]
			}
			assert.Equal(t, want, e.Population())

			stats := e.Statistics()
			require.Equal(t, 1, stats.Len())
			assert.InDelta(t, tt.min, stats.Min[0], 1e-12)
			assert.InDelta(t, tt.avg, stats.Avg[0], 1e-12)
			assert.InDelta(t, tt.max, stats.Max[0], 1e-12)
		})
	}
}

func TestRunImprovesAverageFitness(t *testing.T) {
	e := newTestEngine(t, optimization.Config{
		TMax:      100,
		PopSize:   100,
		CrossRate: 0.3,
		MutRate:   0.05,
		Seed:      1,
	})

	initialAvg := 0.0
	for _, f := range e.Fitness() {
		initialAvg += f
	}
	initialAvg /= 100

	for e.IsRunning() {
		e.Step()
	}

	stats := e.Statistics()
	assert.Greater(t, stats.Avg[stats.Len()-1], initialAvg)
	assertBounded(t, e.Population())
}
