package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/CK6170/rbeval-go/file"
	"github.com/CK6170/rbeval-go/models"
	"github.com/CK6170/rbeval-go/rb"
	"github.com/CK6170/rbeval-go/theta"
)

var (
	errModelNotFound = errors.New("model not found")
	errBusy          = errors.New("model busy")
)

// ModelSession owns one Evaluation. The Evaluation is not safe for
// concurrent use, so every access goes through mu.
type ModelSession struct {
	mu sync.Mutex

	ID     string
	Config *models.Config
	eval   *rb.Evaluation
	// info is fixed at load time; Info must not wait for a running sweep.
	info ModelInfo

	// One active sweep at a time. opMu is separate from mu so a sweep
	// holding mu can still be cancelled.
	opMu     sync.Mutex
	opCancel context.CancelFunc
	opKind   string
}

// LoadModel opens the model described by cfg.
func LoadModel(cfg *models.Config, logger *slog.Logger) (*ModelSession, error) {
	e, err := file.OpenModel(cfg, logger)
	if err != nil {
		return nil, err
	}
	id := uuid.New().String()
	_, basisErr := e.BasisFunction(0)
	info := ModelInfo{
		ID:          id,
		Name:        cfg.Name,
		NBasis:      e.NBasisFunctions(),
		QA:          e.NumA(),
		QF:          e.NumF(),
		Outputs:     e.NumOutputs(),
		Policy:      cfg.Bound.Policy,
		Parameters:  e.Ranges(),
		BasisLoaded: basisErr == nil,
	}
	return &ModelSession{ID: id, Config: cfg, eval: e, info: info}, nil
}

// Info returns the model description and the running operation, if any.
func (m *ModelSession) Info() ModelInfo {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	info := m.info
	info.Parameters = append([]theta.Range(nil), m.info.Parameters...)
	info.Busy = m.opKind
	return info
}

// Solve runs one online solve and copies the result out under the lock.
// n < 0 means all basis functions.
func (m *ModelSession) Solve(mu theta.Parameters, n int) (rb.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 0 {
		n = m.eval.NBasisFunctions()
	}
	return m.eval.SolveAt(mu, n)
}

// Sweep evaluates params while holding the session lock; solves wait for
// it. Cancelling ctx stops the sweep between points.
func (m *ModelSession) Sweep(ctx context.Context, params []theta.Parameters, n int, fn func(rb.SweepResult) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 0 {
		n = m.eval.NBasisFunctions()
	}
	return m.eval.Sweep(ctx, params, n, fn)
}

// beginOp registers a cancellable operation; only one may run at a time.
func (m *ModelSession) beginOp(kind string, cancel context.CancelFunc) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	if m.opCancel != nil {
		return fmt.Errorf("%w: %s running", errBusy, m.opKind)
	}
	m.opCancel, m.opKind = cancel, kind
	return nil
}

func (m *ModelSession) endOp() {
	m.opMu.Lock()
	m.opCancel, m.opKind = nil, ""
	m.opMu.Unlock()
}

// cancelOp cancels the running operation, if any.
func (m *ModelSession) cancelOp() bool {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	if m.opCancel == nil {
		return false
	}
	m.opCancel()
	return true
}

// ModelStore maps model names to sessions.
type ModelStore struct {
	mu sync.RWMutex
	m  map[string]*ModelSession
}

func NewModelStore() *ModelStore {
	return &ModelStore{m: make(map[string]*ModelSession)}
}

// Put registers s under its configured name, replacing any previous model
// of that name.
func (s *ModelStore) Put(ms *ModelSession) {
	s.mu.Lock()
	s.m[ms.Config.Name] = ms
	s.mu.Unlock()
}

// Get looks a model up by name or id. An empty name selects the only model
// when exactly one is loaded.
func (s *ModelStore) Get(name string) (*ModelSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name == "" && len(s.m) == 1 {
		for _, ms := range s.m {
			return ms, nil
		}
	}
	if ms, ok := s.m[name]; ok {
		return ms, nil
	}
	for _, ms := range s.m {
		if ms.ID == name {
			return ms, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", errModelNotFound, name)
}

// List returns the sessions sorted by name.
func (s *ModelStore) List() []*ModelSession {
	s.mu.RLock()
	out := make([]*ModelSession, 0, len(s.m))
	for _, ms := range s.m {
		out = append(out, ms)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Config.Name < out[j].Config.Name })
	return out
}

func (s *ModelStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
