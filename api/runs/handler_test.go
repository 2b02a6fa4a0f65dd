package runs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kilianp07/openbat/core/accounting"
	"github.com/kilianp07/openbat/core/results"
)

func seeded(t *testing.T) results.Store {
	t.Helper()
	store := results.NewMemoryStore()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, sys := range []string{"A", "B", "A"} {
		rec := results.Record{
			RunID:  string(rune('a' + i)),
			System: sys,
			Time:   base.Add(time.Duration(i) * time.Hour),
			Energy: accounting.Report{accounting.GridDemand: 1.5},
			Ideal:  accounting.Report{accounting.GridDemand: 1.0},
		}
		if err := store.Save(context.Background(), rec); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	return store
}

func get(t *testing.T, h http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", url, nil))
	return rr
}

func TestListRuns(t *testing.T) {
	h := NewHandler(seeded(t))
	rr := get(t, h, "/api/runs?system=A")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out []summary
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 || out[0].RunID != "a" || out[1].RunID != "c" {
		t.Fatalf("unexpected runs %#v", out)
	}
	if out[0].ExtraGridMWh != 0.5 {
		t.Fatalf("extra grid %v", out[0].ExtraGridMWh)
	}
}

func TestListRunsFilters(t *testing.T) {
	h := NewHandler(seeded(t))
	rr := get(t, h, "/api/runs?start=2024-06-01T00:30:00Z&limit=1")
	var out []summary
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].RunID != "b" {
		t.Fatalf("unexpected runs %#v", out)
	}
	for _, bad := range []string{"/api/runs?start=yesterday", "/api/runs?limit=-1", "/api/runs?end=x"} {
		if rr := get(t, h, bad); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d", bad, rr.Code)
		}
	}
}

func TestGetRun(t *testing.T) {
	h := NewHandler(seeded(t))
	rr := get(t, h, "/api/runs/b")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out summary
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.System != "B" {
		t.Fatalf("unexpected run %#v", out)
	}
	if rr := get(t, h, "/api/runs/zzz"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}
