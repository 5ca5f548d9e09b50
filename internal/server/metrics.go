package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gaviz_generations_total",
		Help: "Generations stepped across all runs.",
	})

	stepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gaviz_step_duration_seconds",
		Help:    "Wall time of a single generation step.",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
	})

	runsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gaviz_runs_active",
		Help: "Runs currently being stepped.",
	})

	runsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gaviz_runs_finished_total",
		Help: "Runs that left the running state, by final status.",
	}, []string{"status"})

	bestFitness = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gaviz_best_fitness",
		Help:    "Best fitness of the final generation of completed runs.",
		Buckets: prometheus.LinearBuckets(0, 1, 9),
	})
)
