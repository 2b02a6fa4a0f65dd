package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	coremetrics "github.com/kilianp07/openbat/core/metrics"
)

type capture struct {
	mu   sync.Mutex
	body string
}

func (c *capture) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.body = string(data)
		c.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (c *capture) get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.body
}

func TestInfluxSink_RecordRun(t *testing.T) {
	c := &capture{}
	srv := c.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "b"})
	defer sink.Close()

	err := sink.RecordRun(coremetrics.RunEvent{
		RunID: "r1", System: "A", Topology: "AC", Steps: 4, FinalSOC: 0.12345,
		EnergyMWh: map[string]float64{"Eg2l": 0.5, "El": 1.25},
		Time:      time.Unix(1700000000, 0),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	body := c.get()
	for _, want := range []string{"run_summary,", "system=A", "topology=AC", "steps=4i", "final_soc=0.123", "Eg2l=0.5", "El=1.25"} {
		if !strings.Contains(body, want) {
			t.Errorf("line %q lacks %q", body, want)
		}
	}
}

func TestInfluxSink_RecordControl(t *testing.T) {
	c := &capture{}
	srv := c.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Org: "org", Bucket: "b"})
	defer sink.Close()

	if err := sink.RecordControl(coremetrics.ControlEvent{Session: "s1", Step: 3, SetpointW: -500, ReadFailed: true}); err != nil {
		t.Fatalf("record: %v", err)
	}
	body := c.get()
	for _, want := range []string{"control_cycle,", "session=s1", "read_failed=true", "setpoint_w=-500"} {
		if !strings.Contains(body, want) {
			t.Errorf("line %q lacks %q", body, want)
		}
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "b"})
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not queried")
	}
}
