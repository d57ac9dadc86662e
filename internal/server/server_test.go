package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CK6170/rbeval-go/file"
	"github.com/CK6170/rbeval-go/internal/demo"
	"github.com/CK6170/rbeval-go/internal/results"
	"github.com/CK6170/rbeval-go/rb"
	"github.com/CK6170/rbeval-go/theta"
)

func loadDemoModel(t *testing.T) *ModelSession {
	t.Helper()
	dir := t.TempDir()
	opts := demo.Options{NElems: 16, NMax: 3, Tol: 1e-10, TrainPerDim: 3, Binary: true}
	_, err := demo.Build(context.Background(), dir, opts, nil)
	require.NoError(t, err)
	cfg, err := file.LoadConfig(filepath.Join(dir, "rbeval.yaml"))
	require.NoError(t, err)
	ms, err := LoadModel(cfg, nil)
	require.NoError(t, err)
	return ms
}

func newTestServer(t *testing.T, withResults bool) (*Server, *httptest.Server) {
	t.Helper()
	store := NewModelStore()
	store.Put(loadDemoModel(t))
	opts := Options{}
	if withResults {
		rs, err := results.NewStore(filepath.Join(t.TempDir(), "results.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = rs.Close() })
		opts.Results = rs
	}
	s := New(store, opts)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthAndModels(t *testing.T) {
	_, ts := newTestServer(t, false)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[HealthResponse](t, resp)
	assert.True(t, health.OK)
	assert.Equal(t, 1, health.Models)

	resp, err = http.Get(ts.URL + "/api/models")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	infos := decode[[]ModelInfo](t, resp)
	require.Len(t, infos, 1)
	assert.Equal(t, "diffusion-1d", infos[0].Name)
	assert.Equal(t, 3, infos[0].NBasis)
	assert.True(t, infos[0].BasisLoaded)
	assert.Len(t, infos[0].Parameters, 2)
	assert.Empty(t, infos[0].Busy)
}

func TestSolve(t *testing.T) {
	_, ts := newTestServer(t, true)

	resp := postJSON(t, ts.URL+"/api/solve", SolveRequest{Model: "diffusion-1d", Mu: []float64{2, 0.5}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[SolveResponse](t, resp)
	assert.Equal(t, 3, got.N)
	assert.Len(t, got.Solution, 3)
	assert.Len(t, got.Outputs, 1)
	assert.GreaterOrEqual(t, got.Bound, 0.0)
	require.NotEmpty(t, got.RecordID)

	rresp, err := http.Get(ts.URL + "/api/results?id=" + got.RecordID)
	require.NoError(t, err)
	defer rresp.Body.Close()
	require.Equal(t, http.StatusOK, rresp.StatusCode)
	rec := decode[results.Record](t, rresp)
	assert.Equal(t, got.RecordID, rec.ID)
	assert.Equal(t, got.Solution, rec.Solution)

	lresp, err := http.Get(ts.URL + "/api/results?model=diffusion-1d")
	require.NoError(t, err)
	defer lresp.Body.Close()
	require.Equal(t, http.StatusOK, lresp.StatusCode)
	assert.Len(t, decode[[]results.Record](t, lresp), 1)
}

func TestSolve_FewerBasisFunctions(t *testing.T) {
	_, ts := newTestServer(t, false)

	n := 1
	resp := postJSON(t, ts.URL+"/api/solve", SolveRequest{Mu: []float64{1, 1}, N: &n})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[SolveResponse](t, resp)
	assert.Equal(t, 1, got.N)
	assert.Len(t, got.Solution, 1)
	assert.Empty(t, got.RecordID)
}

func TestSolve_Errors(t *testing.T) {
	_, ts := newTestServer(t, false)

	tooMany := 4
	cases := []struct {
		name string
		body any
		want int
	}{
		{"out of range", SolveRequest{Mu: []float64{100, 1}}, http.StatusBadRequest},
		{"wrong dimension", SolveRequest{Mu: []float64{1}}, http.StatusBadRequest},
		{"too many basis functions", SolveRequest{Mu: []float64{1, 1}, N: &tooMany}, http.StatusBadRequest},
		{"unknown model", SolveRequest{Model: "nope", Mu: []float64{1, 1}}, http.StatusNotFound},
		{"malformed body", "not an object", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/solve", tc.body)
			assert.Equal(t, tc.want, resp.StatusCode)
			apiErr := decode[APIError](t, resp)
			assert.NotEmpty(t, apiErr.Error)
		})
	}
}

func TestSolve_MethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, false)

	resp, err := http.Get(ts.URL + "/api/solve")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResults_NotRecorded(t *testing.T) {
	_, ts := newTestServer(t, false)

	resp, err := http.Get(ts.URL + "/api/results")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResults_BadLimit(t *testing.T) {
	_, ts := newTestServer(t, true)

	resp, err := http.Get(ts.URL + "/api/results?limit=abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSweep_StreamsOverWebSocket(t *testing.T) {
	_, ts := newTestServer(t, true)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/sweep"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))

	var hello WSMessage
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "hello", hello.Type)

	params := [][]float64{{1, 1}, {0.5, 2}, {5, 0.2}}
	resp := postJSON(t, ts.URL+"/api/sweep", SweepRequest{Model: "diffusion-1d", Params: params, Record: true})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	start := decode[SweepStartResponse](t, resp)
	assert.Equal(t, 3, start.Points)
	require.NotEmpty(t, start.SweepID)

	var points []SweepEvent
	for {
		var raw struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&raw))
		if raw.Type == "sweepPoint" {
			var ev SweepEvent
			require.NoError(t, json.Unmarshal(raw.Data, &ev))
			points = append(points, ev)
			continue
		}
		require.Equal(t, "sweepDone", raw.Type)
		var done SweepDone
		require.NoError(t, json.Unmarshal(raw.Data, &done))
		assert.Equal(t, start.SweepID, done.SweepID)
		assert.Equal(t, 3, done.Points)
		assert.Empty(t, done.Error)
		break
	}
	require.Len(t, points, 3)
	for i, ev := range points {
		assert.Equal(t, i, ev.Index)
		assert.Equal(t, start.SweepID, ev.SweepID)
		assert.Equal(t, theta.Parameters(params[i]), ev.Params)
	}

	lresp, err := http.Get(ts.URL + "/api/results")
	require.NoError(t, err)
	defer lresp.Body.Close()
	assert.Len(t, decode[[]results.Record](t, lresp), 3)
}

func TestSweep_RejectsEmptyAndOversized(t *testing.T) {
	s, ts := newTestServer(t, false)
	s.maxSweep = 2

	resp := postJSON(t, ts.URL+"/api/sweep", SweepRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/sweep", SweepRequest{Params: [][]float64{{1, 1}, {1, 1}, {1, 1}}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSweepStop_Idle(t *testing.T) {
	_, ts := newTestServer(t, false)

	resp := postJSON(t, ts.URL+"/api/sweep/stop", StopRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]bool{"stopped": false}, decode[map[string]bool](t, resp))
}

func TestModels_RespondDuringSweep(t *testing.T) {
	s, ts := newTestServer(t, false)
	ms, err := s.models.Get("")
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		first := true
		done <- ms.Sweep(context.Background(), []theta.Parameters{{1, 1}, {2, 2}}, -1, func(rb.SweepResult) error {
			if first {
				first = false
				close(entered)
				<-release
			}
			return nil
		})
	}()
	<-entered
	defer func() {
		close(release)
		require.NoError(t, <-done)
	}()

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(ts.URL + "/api/models")
	require.NoError(t, err, "model listing must not wait for the sweep")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	infos := decode[[]ModelInfo](t, resp)
	require.Len(t, infos, 1)
	assert.Equal(t, 3, infos[0].NBasis)

	hresp, err := client.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer hresp.Body.Close()
	assert.Equal(t, http.StatusOK, hresp.StatusCode)
}

func TestModelSession_OneOperationAtATime(t *testing.T) {
	ms := loadDemoModel(t)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, ms.beginOp("sweep", cancel))
	assert.ErrorIs(t, ms.beginOp("sweep", func() {}), errBusy)
	assert.Equal(t, "sweep", ms.Info().Busy)

	assert.True(t, ms.cancelOp())
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	ms.endOp()
	assert.False(t, ms.cancelOp())
	assert.NoError(t, ms.beginOp("sweep", func() {}))
}

func TestModelSession_SweepCancelled(t *testing.T) {
	ms := loadDemoModel(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := ms.Sweep(ctx, []theta.Parameters{{1, 1}, {2, 2}}, -1, func(rb.SweepResult) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestModelStore_Get(t *testing.T) {
	store := NewModelStore()
	_, err := store.Get("")
	assert.ErrorIs(t, err, errModelNotFound)

	ms := loadDemoModel(t)
	store.Put(ms)

	got, err := store.Get("")
	require.NoError(t, err)
	assert.Same(t, ms, got)

	got, err = store.Get(ms.ID)
	require.NoError(t, err)
	assert.Same(t, ms, got)

	_, err = store.Get("other")
	assert.ErrorIs(t, err, errModelNotFound)
	assert.Equal(t, 1, store.Len())
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", errModelNotFound), http.StatusNotFound},
		{sql.ErrNoRows, http.StatusNotFound},
		{errBusy, http.StatusConflict},
		{theta.ErrParameterBounds, http.StatusBadRequest},
		{theta.ErrParameterDimension, http.StatusBadRequest},
		{rb.ErrOutOfRange, http.StatusBadRequest},
		{rb.ErrInvalidArgument, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
