package genetic

import (
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/gaviz/internal/optimization"
)

// populationBuffers holds the active population and a spare matrix of the
// same shape. Phases that replace the population write into the spare and
// swap, so no phase reads rows it has already overwritten.
type populationBuffers struct {
	active *mat.Dense
	spare  *mat.Dense
}

// newPopulationBuffers allocates two size×2 population matrices
func newPopulationBuffers(size int) *populationBuffers {
	return &populationBuffers{
		active: mat.NewDense(size, 2, nil),
		spare:  mat.NewDense(size, 2, nil),
	}
}

// swap makes the spare buffer the active population
func (b *populationBuffers) swap() {
	b.active, b.spare = b.spare, b.active
}

// size returns the number of rows in each buffer
func (b *populationBuffers) size() int {
	r, _ := b.active.Dims()
	return r
}

// get reads individual i of the active population
func (b *populationBuffers) get(i int) optimization.Individual {
	return readRow(b.active, i)
}

// snapshot copies the active population into a fresh slice
func (b *populationBuffers) snapshot() []optimization.Individual {
	n := b.size()
	pop := make([]optimization.Individual, n)
	for i := 0; i < n; i++ {
		pop[i] = readRow(b.active, i)
	}
	return pop
}

func readRow(m *mat.Dense, i int) optimization.Individual {
	row := m.RawRowView(i)
	return optimization.Individual{X: row[0], Y: row[1]}
}

func writeRow(m *mat.Dense, i int, ind optimization.Individual) {
	row := m.RawRowView(i)
	row[0], row[1] = ind.X, ind.Y
}
