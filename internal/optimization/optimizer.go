package optimization

// Lower and Upper bound every coordinate of the search domain.
const (
	Lower = 0.0
	Upper = 10.0
)

// Optimizer defines the interface the run service and drivers use to advance
// and inspect a genetic algorithm run.
type Optimizer interface {
	// Step advances exactly one generation; it is a no-op once the run is finished.
	Step()

	// IsRunning reports whether the generation budget has not yet been spent
	IsRunning() bool

	// CurrentGeneration returns the number of completed generations
	CurrentGeneration() int

	// Population returns a copy of the current population
	Population() []Individual

	// Statistics returns the per-generation fitness summary
	Statistics() Statistics

	// Best returns the fittest individual of the current population
	Best() Solution
}

// Config contains the immutable settings of a genetic algorithm run
type Config struct {
	// Generation budget
	TMax int

	// Number of individuals, must be even
	PopSize int

	// Probability that an adjacent pair is blended
	CrossRate float64

	// Probability that a single coordinate is perturbed
	MutRate float64

	// Random seed for reproducibility, 0 picks a time based seed
	Seed int64
}

// Validate checks the configuration and returns an error wrapping
// ErrInvalidConfig when a setting is out of range.
func (c Config) Validate() error {
	switch {
	case c.TMax <= 0:
		return WrapErrorf(ErrInvalidConfig, "tmax must be positive, got %d", c.TMax).WithOperation("validate")
	case c.PopSize <= 0:
		return WrapErrorf(ErrInvalidConfig, "popsize must be positive, got %d", c.PopSize).WithOperation("validate")
	case c.PopSize%2 != 0:
		return WrapErrorf(ErrInvalidConfig, "popsize must be even, got %d", c.PopSize).WithOperation("validate")
	case c.CrossRate < 0 || c.CrossRate > 1:
		return WrapErrorf(ErrInvalidConfig, "cross rate must be in [0,1], got %v", c.CrossRate).WithOperation("validate")
	case c.MutRate < 0 || c.MutRate > 1:
		return WrapErrorf(ErrInvalidConfig, "mutation rate must be in [0,1], got %v", c.MutRate).WithOperation("validate")
	}
	return nil
}

// Individual is a point of the search domain
type Individual struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// InBounds reports whether both coordinates lie in [Lower, Upper]
func (i Individual) InBounds() bool {
	return i.X >= Lower && i.X <= Upper && i.Y >= Lower && i.Y <= Upper
}

// Solution pairs an individual with its fitness
type Solution struct {
	Individual
	Fitness float64 `json:"fitness"`
}

// Statistics holds one min/avg/max fitness triple per completed generation
type Statistics struct {
	Min []float64 `json:"min"`
	Avg []float64 `json:"avg"`
	Max []float64 `json:"max"`
}

// Len returns the number of recorded generations
func (s Statistics) Len() int {
	return len(s.Min)
}

// FitnessFunction scores an individual; higher is better
type FitnessFunction func(x, y float64) float64
