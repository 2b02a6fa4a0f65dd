package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/openbat/core/control/logging"
	"github.com/kilianp07/openbat/core/scenario"
)

func TestHandlerServesRuns(t *testing.T) {
	cfg := testConfig(t)
	cfg.API.Token = "tok"
	svc := newService(t, cfg)

	sc, err := scenario.Load("testdata/day.yaml")
	require.NoError(t, err)
	run := svc.Simulate(context.Background(), sc)
	require.NoError(t, run.Err)
	require.NoError(t, svc.Close())

	h := svc.Handler(logging.NopStore{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/runs/"+run.ID, nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest("GET", "/api/runs/"+run.ID, nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var rec struct {
		RunID  string `json:"run_id"`
		System string `json:"system"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, run.ID, rec.RunID)
	assert.Equal(t, "A", rec.System)

	req = httptest.NewRequest("GET", "/api/control/logs", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestServeRequiresAddr(t *testing.T) {
	svc := newService(t, testConfig(t))
	defer func() { _ = svc.Close() }()
	assert.Error(t, svc.Serve(context.Background()))
}

func TestWebhookReceivesRun(t *testing.T) {
	var runs atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/hook/runs" {
			runs.Add(1)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Webhook.URL = srv.URL + "/hook"
	svc := newService(t, cfg)
	sc, err := scenario.Load("testdata/day.yaml")
	require.NoError(t, err)
	run := svc.Simulate(context.Background(), sc)
	require.NoError(t, run.Err)
	require.NoError(t, svc.Close())
	assert.Equal(t, int32(1), runs.Load())
}
