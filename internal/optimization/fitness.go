package optimization

import (
	"math"

	"gonum.org/v1/gonum/optimize"
)

// Benchmark is the default fitness function,
// sqrt(x)*sin(x)*sqrt(y)*sin(y) on [0,10]².
func Benchmark(x, y float64) float64 {
	return math.Sqrt(x) * math.Sin(x) * math.Sqrt(y) * math.Sin(y)
}

// globalMaxGuess is the known neighbourhood of the benchmark maximum
var globalMaxGuess = []float64{7.97, 7.97}

// GlobalMaximum locates the maximum of the benchmark numerically, starting
// from its known neighbourhood. Reports use it as the reference point.
func GlobalMaximum() (Solution, error) {
	return LocateMaximum(Benchmark, Individual{X: globalMaxGuess[0], Y: globalMaxGuess[1]})
}

// LocateMaximum runs a bounded Nelder-Mead search for a local maximum of fn
// starting at start.
func LocateMaximum(fn FitnessFunction, start Individual) (Solution, error) {
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			// Negate because we're minimizing
			return -fn(clamp(x[0]), clamp(x[1]))
		},
	}

	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Relative:   1e-10,
			Iterations: 100,
		},
	}

	method := &optimize.NelderMead{
		Reflection:  1.0,
		Expansion:   2.0,
		Contraction: 0.5,
		Shrink:      0.5,
		SimplexSize: 0.2,
	}

	result, err := optimize.Minimize(problem, []float64{start.X, start.Y}, settings, method)
	if err != nil {
		return Solution{}, WrapError(err, "maximum search failed").WithOperation("locate_maximum")
	}

	best := Individual{X: clamp(result.X[0]), Y: clamp(result.X[1])}
	return Solution{Individual: best, Fitness: fn(best.X, best.Y)}, nil
}

// Bound clamps both coordinates of an individual into [Lower, Upper]
func Bound(i Individual) Individual {
	return Individual{X: clamp(i.X), Y: clamp(i.Y)}
}

func clamp(v float64) float64 {
	if v < Lower {
		return Lower
	}
	if v > Upper {
		return Upper
	}
	return v
}
