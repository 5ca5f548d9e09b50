// Package report renders the end-of-run summary and charts of a genetic
// algorithm run: the min/avg/max convergence curve and a scatter of the
// current population.
package report

import (
	"fmt"
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/copyleftdev/gaviz/internal/errors"
	"github.com/copyleftdev/gaviz/internal/optimization"
)

// Chart dimensions
const (
	ChartWidth  = 10 * vg.Inch
	ChartHeight = 7 * vg.Inch
)

var (
	minColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	avgColor = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	maxColor = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	popColor = color.RGBA{R: 31, G: 119, B: 180, A: 200}
	refColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// ErrNoGenerations is returned when a chart is requested before any step
var ErrNoGenerations error = errors.New("no completed generations")

// Summary returns the plain-text end-of-run report.
func Summary(cfg optimization.Config, stats optimization.Statistics, best optimization.Solution) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generations: %d\n", cfg.TMax)
	fmt.Fprintf(&b, "Population size: %d\n", cfg.PopSize)
	fmt.Fprintf(&b, "Crossover rate: %g\n", cfg.CrossRate)
	fmt.Fprintf(&b, "Mutation Rate: %g\n", cfg.MutRate)

	if n := stats.Len(); n > 0 {
		fmt.Fprintf(&b, "Completed generations: %d\n", n)
		fmt.Fprintf(&b, "Final fitness: min=%.4f avg=%.4f max=%.4f\n", stats.Min[n-1], stats.Avg[n-1], stats.Max[n-1])
	}
	fmt.Fprintf(&b, "Best individual: (%.4f, %.4f) fitness=%.4f\n", best.X, best.Y, best.Fitness)

	if ref, err := optimization.GlobalMaximum(); err == nil {
		fmt.Fprintf(&b, "Global max: (%.4f, %.4f) fitness=%.4f gap=%.4f\n", ref.X, ref.Y, ref.Fitness, ref.Fitness-best.Fitness)
	}
	return b.String()
}

// ConvergencePlot builds the "Maximum, Average, Minimum Fitness per
// Generation" line chart.
func ConvergencePlot(stats optimization.Statistics) (*plot.Plot, error) {
	n := stats.Len()
	if n == 0 {
		return nil, ErrNoGenerations
	}

	p := plot.New()
	p.Title.Text = "Maximum, Average, Minimum Fitness per Generation"
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Fitness"

	series := []struct {
		name   string
		values []float64
		color  color.Color
	}{
		{"min", stats.Min, minColor},
		{"avg", stats.Avg, avgColor},
		{"max", stats.Max, maxColor},
	}

	for _, s := range series {
		pts := make(plotter.XYs, n)
		for i := 0; i < n; i++ {
			pts[i].X = float64(i)
			pts[i].Y = s.values[i]
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, errors.Wrapf(err, "build %s line", s.name).WithComponent("report")
		}
		line.Color = s.color

		p.Add(line)
		p.Legend.Add(s.name, line)
	}

	p.Legend.Top = true
	p.Legend.Left = true
	p.Add(plotter.NewGrid())

	return p, nil
}

// PopulationPlot builds a scatter of the population over the search domain
// with the global maximum marked.
func PopulationPlot(population []optimization.Individual, generation int) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Elements in population (Step: %d)", generation)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.X.Min, p.X.Max = optimization.Lower, optimization.Upper
	p.Y.Min, p.Y.Max = optimization.Lower, optimization.Upper

	pts := make(plotter.XYs, len(population))
	for i, ind := range population {
		pts[i].X = ind.X
		pts[i].Y = ind.Y
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, errors.Wrap(err, "build population scatter").WithComponent("report")
	}
	scatter.GlyphStyle.Color = popColor
	scatter.GlyphStyle.Radius = vg.Points(2)
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(scatter)
	p.Legend.Add("population", scatter)

	ref, err := optimization.GlobalMaximum()
	if err != nil {
		return nil, errors.Wrap(err, "locate global max").WithComponent("report")
	}

	marker, err := plotter.NewScatter(plotter.XYs{{X: ref.X, Y: ref.Y}})
	if err != nil {
		return nil, errors.Wrap(err, "build global max marker").WithComponent("report")
	}
	marker.GlyphStyle.Color = refColor
	marker.GlyphStyle.Radius = vg.Points(4)
	marker.GlyphStyle.Shape = draw.CircleGlyph{}

	label, err := plotter.NewLabels(plotter.XYLabels{
		XYs:    plotter.XYs{{X: ref.X, Y: ref.Y}},
		Labels: []string{"Global Max"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "build global max label").WithComponent("report")
	}
	label.Offset = vg.Point{X: -vg.Points(20), Y: vg.Points(8)}

	p.Add(marker, label)
	p.Legend.Add("Global Max", marker)
	p.Legend.Top = true

	return p, nil
}

// WriteConvergenceChart encodes the convergence chart to w in format
// (png, svg, pdf, ...).
func WriteConvergenceChart(w io.Writer, stats optimization.Statistics, format string) error {
	p, err := ConvergencePlot(stats)
	if err != nil {
		return err
	}
	return write(w, p, format)
}

// WritePopulationChart encodes the population scatter to w in format.
func WritePopulationChart(w io.Writer, population []optimization.Individual, generation int, format string) error {
	p, err := PopulationPlot(population, generation)
	if err != nil {
		return err
	}
	return write(w, p, format)
}

// SaveConvergenceChart writes the convergence chart to path; the format is
// taken from the file extension.
func SaveConvergenceChart(path string, stats optimization.Statistics) error {
	p, err := ConvergencePlot(stats)
	if err != nil {
		return err
	}
	if err := p.Save(ChartWidth, ChartHeight, path); err != nil {
		return errors.Wrapf(err, "save chart to %s", filepath.Base(path)).WithComponent("report")
	}
	return nil
}

func write(w io.Writer, p *plot.Plot, format string) error {
	wt, err := p.WriterTo(ChartWidth, ChartHeight, format)
	if err != nil {
		return errors.Wrapf(err, "unsupported chart format %q", format).WithComponent("report")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "write chart").WithComponent("report")
	}
	return nil
}
