// Package genetic implements a single-population, real-coded genetic
// algorithm over the [0,10]² domain.
package genetic

import (
	"math/rand"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/gaviz/internal/optimization"
)

// Engine owns the population, the fitness vector and the run state of a
// genetic algorithm run. It advances one generation per Step.
//
// An Engine is not safe for concurrent use; callers that share it between
// goroutines must serialize access.
type Engine struct {
	// Configuration
	config optimization.Config

	// Fitness function, optimization.Benchmark unless overridden
	fitnessFn optimization.FitnessFunction

	// Random number generator
	rng *rand.Rand

	logger *zap.Logger

	// Population double buffer and the fitness of the active population
	buf     *populationBuffers
	fitness []float64

	// Cumulative roulette scale, reused across generations
	cum []float64

	// Run state
	t       int
	running bool
	stats   optimization.Statistics
}

var _ optimization.Optimizer = (*Engine)(nil)

// Option customizes an Engine at construction
type Option func(*Engine)

// WithRand injects the random source. It takes precedence over Config.Seed.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = rng
	}
}

// WithFitness replaces the benchmark fitness function
func WithFitness(fn optimization.FitnessFunction) Option {
	return func(e *Engine) {
		if fn != nil {
			e.fitnessFn = fn
		}
	}
}

// WithLogger sets the logger used for per-generation diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New validates config, draws a uniform random population over [0,10]² and
// evaluates it so the first generation selects on real fitness.
func New(config optimization.Config, opts ...Option) (*Engine, error) {
	if err := config.Validate(); err != nil {
		if e, ok := optimization.IsOptimizationError(err); ok {
			return nil, e.WithComponent("genetic")
		}
		return nil, err
	}

	e := &Engine{
		config:    config,
		fitnessFn: optimization.Benchmark,
		logger:    zap.NewNop(),
		buf:       newPopulationBuffers(config.PopSize),
		fitness:   make([]float64, config.PopSize),
		cum:       make([]float64, config.PopSize),
		running:   true,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.rng == nil {
		seed := config.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		e.rng = rand.New(rand.NewSource(seed))
	}

	for i := 0; i < config.PopSize; i++ {
		x := uniform(e.rng, optimization.Lower, optimization.Upper)
		y := uniform(e.rng, optimization.Lower, optimization.Upper)
		writeRow(e.buf.active, i, optimization.Individual{X: x, Y: y})
	}
	e.evaluate()

	e.logger.Debug("engine initialized",
		zap.Int("tmax", config.TMax),
		zap.Int("popsize", config.PopSize),
		zap.Float64("cross_rate", config.CrossRate),
		zap.Float64("mut_rate", config.MutRate),
	)

	return e, nil
}

// Step advances exactly one generation. It does nothing once the
// generation budget is spent.
func (e *Engine) Step() {
	if !e.running {
		return
	}

	e.selection()
	e.crossover()
	e.assertBounded("crossover")
	e.mutate()
	e.assertBounded("mutate")
	e.evaluate()
	e.record()

	e.t++
	if e.t == e.config.TMax {
		e.running = false
	}

	last := e.stats.Len() - 1
	e.logger.Debug("generation completed",
		zap.Int("generation", e.t),
		zap.Float64("min", e.stats.Min[last]),
		zap.Float64("avg", e.stats.Avg[last]),
		zap.Float64("max", e.stats.Max[last]),
	)
	if !e.running {
		e.logger.Info("run finished",
			zap.Int("generations", e.t),
			zap.Float64("max", e.stats.Max[last]),
		)
	}
}

// evaluate recomputes the fitness vector for the active population
func (e *Engine) evaluate() {
	for i := range e.fitness {
		ind := e.buf.get(i)
		e.fitness[i] = e.fitnessFn(ind.X, ind.Y)
	}
}

// record appends the min, mean and max fitness of the current generation
func (e *Engine) record() {
	e.stats.Min = append(e.stats.Min, floats.Min(e.fitness))
	e.stats.Avg = append(e.stats.Avg, stat.Mean(e.fitness, nil))
	e.stats.Max = append(e.stats.Max, floats.Max(e.fitness))
}

// assertBounded panics if an operator left an individual outside the domain.
// Reaching it means a bounding bug, not bad input.
func (e *Engine) assertBounded(op string) {
	for i := 0; i < e.buf.size(); i++ {
		if ind := e.buf.get(i); !ind.InBounds() {
			panic(optimization.NewErrorf("individual %d out of bounds: (%v, %v)", i, ind.X, ind.Y).
				WithComponent("genetic").
				WithOperation(op))
		}
	}
}

// IsRunning reports whether generations remain in the budget
func (e *Engine) IsRunning() bool {
	return e.running
}

// CurrentGeneration returns the number of completed generations
func (e *Engine) CurrentGeneration() int {
	return e.t
}

// Config returns the configuration the engine was built with
func (e *Engine) Config() optimization.Config {
	return e.config
}

// Population returns a copy of the current population
func (e *Engine) Population() []optimization.Individual {
	return e.buf.snapshot()
}

// Fitness returns a copy of the fitness vector of the current population
func (e *Engine) Fitness() []float64 {
	return append([]float64(nil), e.fitness...)
}

// Statistics returns copies of the min, avg and max sequences
func (e *Engine) Statistics() optimization.Statistics {
	return optimization.Statistics{
		Min: append([]float64(nil), e.stats.Min...),
		Avg: append([]float64(nil), e.stats.Avg...),
		Max: append([]float64(nil), e.stats.Max...),
	}
}

// Best returns the fittest individual of the current population
func (e *Engine) Best() optimization.Solution {
	i := floats.MaxIdx(e.fitness)
	return optimization.Solution{
		Individual: e.buf.get(i),
		Fitness:    e.fitness[i],
	}
}
