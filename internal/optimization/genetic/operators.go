package genetic

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/gaviz/internal/optimization"
)

// mutationSpan is the half-width of the uniform perturbation added by mutate
const mutationSpan = 3.0

// selection replaces the population by roulette wheel draws over the
// current fitness vector.
//
// The scale is shifted by adj = -min when the minimum fitness is negative
// and by adj = min otherwise, and the first slot holds adj alone. Individual
// 0 therefore only wins a draw that lands exactly on the lower end.
func (e *Engine) selection() {
	n := e.config.PopSize
	minFit := floats.Min(e.fitness)

	adj := minFit
	if minFit < 0 {
		adj = -minFit
	}

	cum := e.cum
	cum[0] = adj
	for i := 1; i < n; i++ {
		cum[i] = cum[i-1] + e.fitness[i] + adj
	}

	for i := 0; i < n; i++ {
		u := uniform(e.rng, cum[0], cum[n-1])
		writeRow(e.buf.spare, i, e.buf.get(spin(cum, u)))
	}
	e.buf.swap()
}

// spin returns the first index whose cumulative weight reaches u,
// clamped to the last slot.
func spin(cum []float64, u float64) int {
	j := 0
	for u > cum[j] && j < len(cum)-1 {
		j++
	}
	return j
}

// crossover blends adjacent pairs with a single alpha drawn per call
func (e *Engine) crossover() {
	alpha := e.rng.Float64()

	for i := 0; i+1 < e.config.PopSize; i += 2 {
		a, b := e.buf.get(i), e.buf.get(i+1)
		if e.rng.Float64() < e.config.CrossRate {
			a, b = blend(a, b, alpha), blend(b, a, alpha)
		}
		writeRow(e.buf.spare, i, optimization.Bound(a))
		writeRow(e.buf.spare, i+1, optimization.Bound(b))
	}
	e.buf.swap()
}

// blend returns alpha*a + (1-alpha)*b
func blend(a, b optimization.Individual, alpha float64) optimization.Individual {
	return optimization.Individual{
		X: alpha*a.X + (1-alpha)*b.X,
		Y: alpha*a.Y + (1-alpha)*b.Y,
	}
}

// mutate perturbs each coordinate in place with probability MutRate
func (e *Engine) mutate() {
	for i := 0; i < e.config.PopSize; i++ {
		ind := e.buf.get(i)
		if e.rng.Float64() < e.config.MutRate {
			ind.X += uniform(e.rng, -mutationSpan, mutationSpan)
		}
		if e.rng.Float64() < e.config.MutRate {
			ind.Y += uniform(e.rng, -mutationSpan, mutationSpan)
		}
		writeRow(e.buf.active, i, optimization.Bound(ind))
	}
}

// uniform draws from [lo, hi)
func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}
