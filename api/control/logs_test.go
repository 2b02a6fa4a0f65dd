package control

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilianp07/openbat/core/control/logging"
)

func TestLogHandler(t *testing.T) {
	store, err := logging.NewJSONLStore(filepath.Join(t.TempDir(), "control.jsonl"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	now := time.Now().UTC().Truncate(time.Second)
	recs := []logging.Record{
		{Timestamp: now, Session: "s1", Step: 0, SetpointW: 500},
		{Timestamp: now.Add(time.Second), Session: "s1", Step: 1, SetpointW: 400, WriteError: "timeout"},
		{Timestamp: now.Add(2 * time.Second), Session: "s2", Step: 0, SetpointW: -300},
	}
	for _, r := range recs {
		if err := store.Append(context.Background(), r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	h := NewLogHandler(store, "secret")

	req := httptest.NewRequest("GET", "/api/control/logs?session=s1", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}

	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out []logging.Record
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 records got %d", len(out))
	}

	req = httptest.NewRequest("GET", "/api/control/logs?failed=true", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	out = nil
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].WriteError != "timeout" {
		t.Fatalf("unexpected failed records %+v", out)
	}
}

func TestLogHandlerMethod(t *testing.T) {
	h := NewLogHandler(logging.NopStore{}, "")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/control/logs", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/control/logs", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "[]\n" {
		t.Fatalf("unexpected response %d %q", rr.Code, rr.Body.String())
	}
}

func TestLogHandlerBadQuery(t *testing.T) {
	h := NewLogHandler(logging.NopStore{}, "secret")
	for _, raw := range []string{"start=yesterday", "end=2024-13-01", "failed=maybe"} {
		req := httptest.NewRequest("GET", "/api/control/logs?"+raw, nil)
		req.Header.Set("Authorization", "Bearer secret")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", raw, rr.Code)
		}
	}

	req := httptest.NewRequest("GET", "/api/control/logs?start=2024-01-01T00:00:00Z&failed=false", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("well formed query: expected 200 got %d", rr.Code)
	}
}
