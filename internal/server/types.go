package server

import (
	"time"

	"github.com/CK6170/rbeval-go/rb"
	"github.com/CK6170/rbeval-go/theta"
)

// APIError is the canonical error envelope returned by JSON endpoints.
type APIError struct {
	Error string `json:"error"`
}

// HealthResponse is returned by /api/health to confirm the server is running.
type HealthResponse struct {
	OK        bool      `json:"ok"`
	Timestamp time.Time `json:"timestamp"`
	Models    int       `json:"models"`
}

// ModelInfo describes one loaded reduced model.
type ModelInfo struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	NBasis      int           `json:"nBasis"`
	QA          int           `json:"qa"`
	QF          int           `json:"qf"`
	Outputs     int           `json:"outputs"`
	Policy      string        `json:"policy"`
	Parameters  []theta.Range `json:"parameters"`
	BasisLoaded bool          `json:"basisLoaded"`
	Busy        string        `json:"busy,omitempty"`
}

// SolveRequest evaluates one parameter. A nil N means all basis functions.
type SolveRequest struct {
	Model string    `json:"model"`
	Mu    []float64 `json:"mu"`
	N     *int      `json:"n,omitempty"`
}

// SolveResponse carries the copied online state and, when results are
// recorded, the record id.
type SolveResponse struct {
	rb.Result
	RecordID string `json:"recordId,omitempty"`
}

// SweepRequest starts an asynchronous sweep. Progress and results are
// streamed on /ws/sweep.
type SweepRequest struct {
	Model  string      `json:"model"`
	Params [][]float64 `json:"params"`
	N      *int        `json:"n,omitempty"`
	Record bool        `json:"record,omitempty"`
}

// SweepStartResponse identifies a started sweep.
type SweepStartResponse struct {
	SweepID string `json:"sweepId"`
	Points  int    `json:"points"`
}

// StopRequest names the model whose running sweep should be cancelled.
type StopRequest struct {
	Model string `json:"model"`
}

// SweepEvent is the data of "sweepPoint" websocket messages.
type SweepEvent struct {
	SweepID string `json:"sweepId"`
	Model   string `json:"model"`
	Total   int    `json:"total"`
	rb.SweepResult
}

// SweepDone is the data of "sweepDone" and "sweepError" websocket messages.
type SweepDone struct {
	SweepID string `json:"sweepId"`
	Model   string `json:"model"`
	Points  int    `json:"points"`
	Error   string `json:"error,omitempty"`
}
