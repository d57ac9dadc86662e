package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CK6170/rbeval-go/internal/results"
	"github.com/CK6170/rbeval-go/rb"
	"github.com/CK6170/rbeval-go/theta"
)

// Options configures New.
type Options struct {
	Logger *slog.Logger
	// Results records every solve when non-nil.
	Results *results.Store
	// MaxSweepPoints limits a single sweep request; 0 means 10000.
	MaxSweepPoints int
	// WebDir, when set, is served as static content under "/".
	WebDir string
}

type Server struct {
	mux *http.ServeMux

	models  *ModelStore
	results *results.Store
	logger  *slog.Logger

	maxSweep int

	// Sweeps run on ctx; Close cancels it and waits for them.
	ctx    context.Context
	stop   context.CancelFunc
	sweeps sync.WaitGroup

	wsSweep *WSHub
}

func New(models *ModelStore, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.MaxSweepPoints <= 0 {
		opts.MaxSweepPoints = 10000
	}
	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		mux:      http.NewServeMux(),
		models:   models,
		results:  opts.Results,
		logger:   opts.Logger,
		maxSweep: opts.MaxSweepPoints,
		ctx:      ctx,
		stop:     stop,
		wsSweep:  NewWSHub(),
	}

	// API
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/models", s.handleModels)
	s.mux.HandleFunc("/api/solve", s.handleSolve)
	s.mux.HandleFunc("/api/sweep", s.handleSweep)
	s.mux.HandleFunc("/api/sweep/stop", s.handleSweepStop)
	s.mux.HandleFunc("/api/results", s.handleResults)
	s.mux.Handle("/metrics", promhttp.Handler())

	// WS
	s.mux.HandleFunc("/ws/sweep", s.handleWSSweep)

	if opts.WebDir != "" {
		fs := http.FileServer(http.Dir(opts.WebDir))
		s.mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := r.URL.Path
			if p == "/" || strings.HasSuffix(p, ".html") || strings.HasSuffix(p, ".js") || strings.HasSuffix(p, ".css") {
				w.Header().Set("Cache-Control", "no-store")
			}
			fs.ServeHTTP(w, r)
		}))
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// Close cancels running sweeps and waits for them to finish.
func (s *Server) Close() {
	s.stop()
	s.sweeps.Wait()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, APIError{Error: err.Error()})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errModelNotFound), errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, errBusy):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, theta.ErrParameterDimension),
		errors.Is(err, theta.ErrParameterBounds),
		errors.Is(err, theta.ErrNoParameters),
		errors.Is(err, rb.ErrInvalidArgument),
		errors.Is(err, rb.ErrOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func (s *Server) readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	b, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{OK: true, Timestamp: time.Now(), Models: s.models.Len()})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	infos := []ModelInfo{}
	for _, ms := range s.models.List() {
		infos = append(infos, ms.Info())
	}
	s.writeJSON(w, http.StatusOK, infos)
}

func basisCount(n *int) int {
	if n == nil {
		return -1
	}
	return *n
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req SolveRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	ms, err := s.models.Get(req.Model)
	if err != nil {
		s.writeError(w, err)
		return
	}
	name := ms.Config.Name

	start := time.Now()
	res, err := ms.Solve(theta.Parameters(req.Mu), basisCount(req.N))
	solveDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		solveTotal.WithLabelValues(name, "error").Inc()
		s.writeError(w, err)
		return
	}
	solveTotal.WithLabelValues(name, "ok").Inc()
	solveBound.WithLabelValues(name).Observe(res.Bound)

	resp := SolveResponse{Result: res}
	if s.results != nil {
		rec, err := s.results.Save(name, res)
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp.RecordID = rec.ID
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req SweepRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if len(req.Params) == 0 || len(req.Params) > s.maxSweep {
		s.writeError(w, fmt.Errorf("%w: %d sweep points, limit %d", errBadRequest, len(req.Params), s.maxSweep))
		return
	}
	ms, err := s.models.Get(req.Model)
	if err != nil {
		s.writeError(w, err)
		return
	}
	params := make([]theta.Parameters, len(req.Params))
	for i, p := range req.Params {
		params[i] = theta.Parameters(p)
	}

	ctx, cancel := context.WithCancel(s.ctx)
	if err := ms.beginOp("sweep", cancel); err != nil {
		cancel()
		s.writeError(w, err)
		return
	}
	id := uuid.New().String()
	s.sweeps.Add(1)
	go s.runSweep(ctx, cancel, ms, id, params, basisCount(req.N), req.Record)

	s.writeJSON(w, http.StatusAccepted, SweepStartResponse{SweepID: id, Points: len(params)})
}

// runSweep evaluates the sweep and broadcasts one "sweepPoint" message per
// parameter, then "sweepDone" or "sweepError".
func (s *Server) runSweep(ctx context.Context, cancel context.CancelFunc, ms *ModelSession, id string, params []theta.Parameters, n int, record bool) {
	defer s.sweeps.Done()
	defer ms.endOp()
	defer cancel()
	activeSweeps.Inc()
	defer activeSweeps.Dec()

	name := ms.Config.Name
	done := 0
	err := ms.Sweep(ctx, params, n, func(res rb.SweepResult) error {
		sweepPoints.WithLabelValues(name).Inc()
		if record && s.results != nil {
			if _, err := s.results.Save(name, res.Result); err != nil {
				return err
			}
		}
		done++
		s.wsSweep.Broadcast(WSMessage{Type: "sweepPoint", Data: SweepEvent{SweepID: id, Model: name, Total: len(params), SweepResult: res}})
		return nil
	})
	if err != nil {
		s.logger.Warn("sweep stopped", "model", name, "sweep", id, "points", done, "error", err)
		s.wsSweep.Broadcast(WSMessage{Type: "sweepError", Data: SweepDone{SweepID: id, Model: name, Points: done, Error: err.Error()}})
		return
	}
	s.logger.Info("sweep done", "model", name, "sweep", id, "points", done)
	s.wsSweep.Broadcast(WSMessage{Type: "sweepDone", Data: SweepDone{SweepID: id, Model: name, Points: done}})
}

func (s *Server) handleSweepStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req StopRequest
	if err := s.readJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	ms, err := s.models.Get(req.Model)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"stopped": ms.cancelOp()})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if s.results == nil {
		s.writeJSON(w, http.StatusNotFound, APIError{Error: "results are not recorded"})
		return
	}
	q := r.URL.Query()
	if id := q.Get("id"); id != "" {
		rec, err := s.results.Get(id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, rec)
		return
	}
	limit := 0
	if l := q.Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: limit %q", errBadRequest, l))
			return
		}
		limit = v
	}
	recs, err := s.results.List(q.Get("model"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if recs == nil {
		recs = []results.Record{}
	}
	s.writeJSON(w, http.StatusOK, recs)
}
