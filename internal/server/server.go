package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/copyleftdev/gaviz/internal/config"
	"github.com/copyleftdev/gaviz/internal/errors"
	"github.com/copyleftdev/gaviz/internal/logging"
	"github.com/copyleftdev/gaviz/internal/optimization"
	"github.com/copyleftdev/gaviz/internal/optimization/genetic"
	"github.com/copyleftdev/gaviz/internal/report"
)

// Run statuses
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var (
	errRunNotFound  = errors.New("run not found")
	errTooManyRuns  = errors.New("too many active runs")
	errRunFinished  = errors.New("run already finished")
	errMissingParam = errors.New("missing required parameters")
)

// Logger defines the logging interface used by the server
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// RunState tracks one genetic algorithm run. mu serializes every access to
// the engine and to the status fields.
type RunState struct {
	ID          string
	Config      optimization.Config
	Status      string
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time

	mu     sync.Mutex
	engine optimization.Optimizer
	cancel context.CancelFunc
}

// runParams are the client supplied settings of a new run; zero values fall
// back to the service defaults.
type runParams struct {
	TMax      int      `json:"tmax"`
	PopSize   int      `json:"popsize"`
	CrossRate *float64 `json:"cross_rate"`
	MutRate   *float64 `json:"mut_rate"`
	Seed      int64    `json:"seed"`
}

type runRef struct {
	ID string `json:"run_id"`
}

// Server hosts genetic algorithm runs over HTTP and JSON-RPC 2.0.
type Server struct {
	cfg    *config.Config
	logger Logger

	runs     map[string]*RunState
	finished []string // Ids of runs whose loop exited, oldest first
	active   int
	runsMu   sync.RWMutex // Protects runs, finished and active

	wg sync.WaitGroup
}

// NewServer creates a new server instance with the given config and logger
func NewServer(cfg *config.Config, logger Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		runs:   make(map[string]*RunState),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/runs", func(r chi.Router) {
		r.Post("/", s.handleStart)
		r.Get("/{id}", s.handleStatus)
		r.Get("/{id}/population", s.handlePopulation)
		r.Get("/{id}/statistics", s.handleStatistics)
		r.Get("/{id}/chart.png", s.handleConvergenceChart)
		r.Get("/{id}/population.png", s.handlePopulationChart)
		r.Delete("/{id}", s.handleCancel)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// startRun validates params, builds the engine and starts stepping it in
// the background.
func (s *Server) startRun(p runParams) (*RunState, error) {
	cfg := s.cfg.Optimizer()
	if p.TMax != 0 {
		cfg.TMax = p.TMax
	}
	if p.PopSize != 0 {
		cfg.PopSize = p.PopSize
	}
	if p.CrossRate != nil {
		cfg.CrossRate = *p.CrossRate
	}
	if p.MutRate != nil {
		cfg.MutRate = *p.MutRate
	}
	if p.Seed != 0 {
		cfg.Seed = p.Seed
	}

	if err := s.cfg.CheckLimits(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid run settings").WithOperation("start")
	}

	id := uuid.NewString()
	runLogger := s.logger.WithFields(map[string]interface{}{"run_id": id})

	engine, err := genetic.New(cfg, genetic.WithLogger(logging.NewZapLogger(runLogger)))
	if err != nil {
		return nil, errors.Wrap(err, "create engine").WithOperation("start")
	}

	s.runsMu.Lock()
	if s.cfg.GA.MaxRuns > 0 && s.active >= s.cfg.GA.MaxRuns {
		s.runsMu.Unlock()
		return nil, errTooManyRuns
	}
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	state := &RunState{
		ID:          id,
		Config:      cfg,
		Status:      StatusPending,
		StartTime:   now,
		LastUpdated: now,
		engine:      engine,
		cancel:      cancel,
	}
	s.runs[id] = state
	s.active++
	s.runsMu.Unlock()

	runsActive.Inc()
	s.wg.Add(1)
	go s.runLoop(ctx, state)

	runLogger.Info("Run started", map[string]interface{}{
		"tmax":       cfg.TMax,
		"popsize":    cfg.PopSize,
		"cross_rate": cfg.CrossRate,
		"mut_rate":   cfg.MutRate,
	})

	return state, nil
}

// runLoop steps the engine at the configured cadence until the generation
// budget is spent or the run is cancelled.
func (s *Server) runLoop(ctx context.Context, state *RunState) {
	defer s.wg.Done()
	defer func() {
		s.runsMu.Lock()
		s.active--
		s.retire(state.ID)
		s.runsMu.Unlock()
		runsActive.Dec()
	}()

	state.mu.Lock()
	if state.Status == StatusPending {
		state.Status = StatusRunning
	}
	state.mu.Unlock()

	var tick <-chan time.Time
	if interval := s.cfg.GA.StepInterval; interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return
		}

		state.mu.Lock()
		if state.Status != StatusRunning {
			state.mu.Unlock()
			return
		}

		start := time.Now()
		state.engine.Step()
		stepDuration.Observe(time.Since(start).Seconds())
		generationsTotal.Inc()

		now := time.Now()
		state.LastUpdated = now
		finished := !state.engine.IsRunning()
		if finished {
			state.Status = StatusCompleted
			state.EndTime = &now
			bestFitness.Observe(state.engine.Best().Fitness)
			runsFinished.WithLabelValues(StatusCompleted).Inc()
		}
		state.mu.Unlock()

		if finished {
			s.logger.Info("Run completed", map[string]interface{}{"run_id": state.ID})
			return
		}
	}
}

// retire queues a finished run and evicts the oldest finished runs beyond
// GA_RETAIN_RUNS. The caller holds runsMu.
func (s *Server) retire(id string) {
	s.finished = append(s.finished, id)

	limit := s.cfg.GA.RetainRuns
	if limit <= 0 {
		return
	}
	for len(s.finished) > limit {
		delete(s.runs, s.finished[0])
		s.logger.Debug("Run evicted", map[string]interface{}{"run_id": s.finished[0]})
		s.finished = s.finished[1:]
	}
}

func (s *Server) lookup(id string) (*RunState, error) {
	s.runsMu.RLock()
	defer s.runsMu.RUnlock()

	state, ok := s.runs[id]
	if !ok {
		return nil, errRunNotFound
	}
	return state, nil
}

// runStatus returns the status view of a run
func (s *Server) runStatus(id string) (map[string]interface{}, error) {
	state, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	best := state.engine.Best()
	response := map[string]interface{}{
		"run_id":      state.ID,
		"status":      state.Status,
		"generation":  state.engine.CurrentGeneration(),
		"tmax":        state.Config.TMax,
		"running":     state.engine.IsRunning(),
		"progress":    float64(state.engine.CurrentGeneration()) / float64(state.Config.TMax),
		"start_time":  state.StartTime.Format(time.RFC3339),
		"last_update": state.LastUpdated.Format(time.RFC3339),
		"config": map[string]interface{}{
			"tmax":       state.Config.TMax,
			"popsize":    state.Config.PopSize,
			"cross_rate": state.Config.CrossRate,
			"mut_rate":   state.Config.MutRate,
			"seed":       state.Config.Seed,
		},
		"best": best,
	}

	if state.EndTime != nil {
		response["end_time"] = state.EndTime.Format(time.RFC3339)
	}

	return response, nil
}

// cancelRun stops a run that has not finished yet
func (s *Server) cancelRun(id string) error {
	state, err := s.lookup(id)
	if err != nil {
		return err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	switch state.Status {
	case StatusCompleted, StatusCancelled:
		return errors.Wrapf(errRunFinished, "cannot cancel run with status %s", state.Status)
	}

	state.cancel()
	now := time.Now()
	state.Status = StatusCancelled
	state.EndTime = &now
	state.LastUpdated = now
	runsFinished.WithLabelValues(StatusCancelled).Inc()

	s.logger.Info("Run cancelled", map[string]interface{}{"run_id": id})
	return nil
}

// snapshot reads population, statistics and generation under the run lock
func (s *Server) snapshot(id string) ([]optimization.Individual, optimization.Statistics, int, error) {
	state, err := s.lookup(id)
	if err != nil {
		return nil, optimization.Statistics{}, 0, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	return state.engine.Population(), state.engine.Statistics(), state.engine.CurrentGeneration(), nil
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string            `json:"jsonrpc"`
		ID      interface{}       `json:"id"`
		Method  string            `json:"method"`
		Params  []json.RawMessage `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, -32700, "Parse error", nil)
		return
	}

	if request.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", request.ID)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "run.start":
		var p runParams
		if err = decodeParam(request.Params, &p); err == nil {
			var state *RunState
			if state, err = s.startRun(p); err == nil {
				result = map[string]interface{}{"run_id": state.ID, "status": StatusPending}
			}
		}
	case "run.status":
		var ref runRef
		if err = decodeParam(request.Params, &ref); err == nil {
			result, err = s.runStatus(ref.ID)
		}
	case "run.cancel":
		var ref runRef
		if err = decodeParam(request.Params, &ref); err == nil {
			if err = s.cancelRun(ref.ID); err == nil {
				result = map[string]interface{}{"run_id": ref.ID, "status": StatusCancelled}
			}
		}
	default:
		s.respondWithError(w, -32601, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, -32000, err.Error(), request.ID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

// decodeParam unmarshals the first positional parameter into v
func decodeParam(params []json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return errMissingParam
	}
	if err := json.Unmarshal(params[0], v); err != nil {
		return errors.Wrap(err, "invalid parameter format, expected object")
	}
	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Warn("RPC error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// Close cancels every run and waits for their loops to exit
func (s *Server) Close() error {
	s.runsMu.RLock()
	for _, state := range s.runs {
		state.cancel()
	}
	s.runsMu.RUnlock()

	s.wg.Wait()
	return nil
}

// httpStatus maps service errors onto HTTP status codes
func httpStatus(err error) int {
	switch {
	case errors.Is(err, errRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, errTooManyRuns):
		return http.StatusTooManyRequests
	case errors.Is(err, errRunFinished):
		return http.StatusConflict
	case errors.Is(err, report.ErrNoGenerations):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatus(err), map[string]interface{}{"error": err.Error()})
}

// handleStart handles POST /api/v1/runs
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var p runParams
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error": fmt.Sprintf("Invalid request body: %v", err),
			})
			return
		}
	}

	state, err := s.startRun(p)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"run_id": state.ID,
		"status": StatusPending,
	})
}

// handleStatus handles GET /api/v1/runs/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.runStatus(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handlePopulation handles GET /api/v1/runs/{id}/population
func (s *Server) handlePopulation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pop, _, generation, err := s.snapshot(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":     id,
		"generation": generation,
		"population": pop,
	})
}

// handleStatistics handles GET /api/v1/runs/{id}/statistics
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	_, stats, generation, err := s.snapshot(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":     id,
		"generation": generation,
		"min":        stats.Min,
		"avg":        stats.Avg,
		"max":        stats.Max,
	})
}

// handleConvergenceChart handles GET /api/v1/runs/{id}/chart.png
func (s *Server) handleConvergenceChart(w http.ResponseWriter, r *http.Request) {
	_, stats, _, err := s.snapshot(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteConvergenceChart(&buf, stats, "png"); err != nil {
		writeError(w, err)
		return
	}
	writePNG(w, &buf)
}

// handlePopulationChart handles GET /api/v1/runs/{id}/population.png
func (s *Server) handlePopulationChart(w http.ResponseWriter, r *http.Request) {
	pop, _, generation, err := s.snapshot(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WritePopulationChart(&buf, pop, generation, "png"); err != nil {
		writeError(w, err)
		return
	}
	writePNG(w, &buf)
}

func writePNG(w http.ResponseWriter, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// handleCancel handles DELETE /api/v1/runs/{id}
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.cancelRun(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": id,
		"status": StatusCancelled,
	})
}
