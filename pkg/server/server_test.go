package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snow-ghost/synth/core"
	"github.com/snow-ghost/synth/pkg/config"
	"github.com/snow-ghost/synth/testkit"
	"github.com/snow-ghost/synth/worker"
)

func identityBody(t *testing.T) []byte {
	t.Helper()
	c, err := testkit.Lookup("identity")
	require.NoError(t, err)
	body, err := json.Marshal(worker.RequestDoc{
		Spec:     c.Problem.Spec,
		Examples: c.Problem.Examples,
		Budget:   c.Problem.Budget,
		Bound:    c.Problem.Bound,
		Config:   worker.ConfigDoc{Language: c.Language, Seed: 2},
	})
	require.NoError(t, err)
	return body
}

func TestSynthesizeEndpoint(t *testing.T) {
	s := New(Options{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/synthesize", bytes.NewReader(identityBody(t)))
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "abc")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "abc", resp.Header.Get(RequestIDHeader))
	var doc worker.ResultDoc
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, core.StatusCorrect, doc.Status)

	metrics, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(metrics.Body)
	assert.Contains(t, buf.String(), `synth_runs_total{solver="hillclimb",status="CORRECT"} 1`)
	assert.Contains(t, buf.String(), `synth_http_requests_total{path="/synthesize",status="200"} 1`)
}

func TestHealthAndLanguages(t *testing.T) {
	h := New(Options{}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.ElementsMatch(t, []any{"hillclimb", "random", "smc"}, health["solvers"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/languages", nil))
	assert.Contains(t, rec.Body.String(), `"arith"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Server.RateLimit.RPS = 0.001
	cfg.Server.RateLimit.Burst = 1
	h := New(Options{Config: cfg}).Handler()

	codes := make([]int, 2)
	for i := range codes {
		req := httptest.NewRequest(http.MethodPost, "/synthesize", bytes.NewReader(identityBody(t)))
		req.RemoteAddr = "192.0.2.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes[i] = rec.Code
		assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

type recordingSynth struct {
	got worker.Request
}

func (r *recordingSynth) Synthesize(_ context.Context, req worker.Request) (*worker.Result, error) {
	r.got = req
	return &worker.Result{Status: core.StatusIncorrect}, nil
}

func TestDefaultsFillUnsetOptions(t *testing.T) {
	rec := &recordingSynth{}
	d := &defaults{next: rec, search: config.SearchConfig{
		Solver: "smc", BeamSize: 30, Budget: 700, Bound: 5, Threshold: 0.01, Componentize: true, Seed: 9,
	}}
	_, err := d.Synthesize(context.Background(), worker.Request{
		Problem: core.Problem{Budget: 50},
		Options: worker.Options{Solver: worker.KindRandom},
	})
	require.NoError(t, err)
	assert.Equal(t, worker.KindRandom, rec.got.Options.Solver)
	assert.Equal(t, 30, rec.got.Options.BeamSize)
	assert.Equal(t, int64(9), rec.got.Options.Seed)
	assert.True(t, rec.got.Options.Componentize)
	assert.Equal(t, 50, rec.got.Problem.Budget)
	assert.Equal(t, 5, rec.got.Problem.Bound)
	assert.Equal(t, 0.01, rec.got.Problem.Threshold)
}

func TestUnknownLanguage(t *testing.T) {
	h := New(Options{}).Handler()
	body := strings.Replace(string(identityBody(t)), `"language":"identity"`, `"language":"nope"`, 1)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/synthesize", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
