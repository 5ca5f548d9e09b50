// Command garun runs one genetic algorithm search in the foreground, either
// animating the population in the terminal or logging each generation, and
// writes a convergence chart when it finishes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/copyleftdev/gaviz/internal/config"
	"github.com/copyleftdev/gaviz/internal/display"
	"github.com/copyleftdev/gaviz/internal/errors"
	"github.com/copyleftdev/gaviz/internal/logging"
	"github.com/copyleftdev/gaviz/internal/optimization/genetic"
	"github.com/copyleftdev/gaviz/internal/report"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Run failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	// Log lines would tear the terminal animation
	engineLogger := zap.NewNop()
	if cfg.GA.Display == config.DisplayLog {
		engineLogger = logging.NewZapLogger(logger)
	}

	engine, err := genetic.New(cfg.Optimizer(), genetic.WithLogger(engineLogger))
	if err != nil {
		return errors.Wrap(err, "create engine").WithOperation("run")
	}

	var render func(gen int)
	closeDisplay := func() {}
	switch cfg.GA.Display {
	case config.DisplayTerminal:
		screen, err := tcell.NewScreen()
		if err != nil {
			return errors.Wrap(err, "create screen").WithComponent("display")
		}
		if err := screen.Init(); err != nil {
			return errors.Wrap(err, "init screen").WithComponent("display")
		}

		d, err := display.New(screen)
		if err != nil {
			screen.Fini()
			return err
		}
		closeDisplay = d.Close

		quit := display.WatchQuit(screen)
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-quit:
				cancel()
			case <-ctx.Done():
			}
		}()

		render = func(gen int) { d.Draw(engine.Population(), gen) }
	default:
		render = func(gen int) {
			stats := engine.Statistics()
			last := stats.Len() - 1
			logger.Info("Generation completed", map[string]interface{}{
				"generation": gen,
				"min":        stats.Min[last],
				"avg":        stats.Avg[last],
				"max":        stats.Max[last],
			})
		}
	}

	start := time.Now()
	for engine.IsRunning() {
		engine.Step()
		render(engine.CurrentGeneration())

		if cfg.GA.StepInterval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(cfg.GA.StepInterval):
			}
		}
		if ctx.Err() != nil {
			break
		}
	}

	// The terminal has to be restored before the summary is printed
	closeDisplay()

	stats := engine.Statistics()
	fmt.Print(report.Summary(engine.Config(), stats, engine.Best()))

	logger.Info("Search finished", map[string]interface{}{
		"generations": engine.CurrentGeneration(),
		"interrupted": engine.IsRunning(),
		"elapsed":     time.Since(start).String(),
	})

	if stats.Len() == 0 {
		return nil
	}
	if err := report.SaveConvergenceChart(cfg.GA.ReportPath, stats); err != nil {
		return err
	}
	logger.Info("Convergence chart saved", map[string]interface{}{"path": cfg.GA.ReportPath})
	return nil
}
