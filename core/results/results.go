// Package results keeps summaries of finished simulation runs.
package results

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/openbat/core/accounting"
	"github.com/kilianp07/openbat/core/events"
	"github.com/kilianp07/openbat/core/logger"
	"github.com/kilianp07/openbat/internal/eventbus"
)

// ErrNotFound is returned by Get for unknown run ids.
var ErrNotFound = errors.New("results: run not found")

// Record is the stored summary of one run.
type Record struct {
	RunID           string            `json:"run_id"`
	System          string            `json:"system"`
	Topology        string            `json:"topology"`
	Time            time.Time         `json:"time"`
	Steps           int               `json:"steps"`
	StepSeconds     float64           `json:"step_s"`
	FinalSOC        float64           `json:"final_soc"`
	SelfSufficiency float64           `json:"self_sufficiency"`
	Duration        time.Duration     `json:"duration"`
	Energy          accounting.Report `json:"energy_mwh"`
	Ideal           accounting.Report `json:"ideal_mwh,omitempty"`
}

// ExtraGridMWh is the grid demand caused by conversion and standby losses,
// measured against the lossless reference battery.
func (r Record) ExtraGridMWh() float64 {
	return r.Energy[accounting.GridDemand] - r.Ideal[accounting.GridDemand]
}

// FromEvent builds a Record from a completed run.
func FromEvent(e events.RunCompleted) Record {
	return Record{
		RunID:           e.RunID,
		System:          e.System,
		Topology:        e.Topology.String(),
		Time:            e.Time,
		Steps:           e.Steps,
		StepSeconds:     e.StepSeconds,
		FinalSOC:        e.FinalSOC,
		SelfSufficiency: e.SelfSufficiency,
		Duration:        e.Duration,
		Energy:          e.Report,
		Ideal:           e.Ideal,
	}
}

// Query filters stored records. Zero values match all; Limit 0 returns
// every match. Results are ordered by time, oldest first.
type Query struct {
	System string
	Start  time.Time
	End    time.Time
	Limit  int
}

// Match reports whether r passes the filter.
func (q Query) Match(r Record) bool {
	if q.System != "" && r.System != q.System {
		return false
	}
	if !q.Start.IsZero() && r.Time.Before(q.Start) {
		return false
	}
	return q.End.IsZero() || !r.Time.After(q.End)
}

// Store persists run records. Saving an existing run id replaces it.
type Store interface {
	Save(ctx context.Context, r Record) error
	Get(ctx context.Context, runID string) (Record, error)
	List(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// MemoryStore keeps records in memory.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]Record{}}
}

// Save inserts or replaces r.
func (s *MemoryStore) Save(_ context.Context, r Record) error {
	if r.RunID == "" {
		return errors.New("results: run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[r.RunID] = r
	return nil
}

// Get returns the record of runID.
func (s *MemoryStore) Get(_ context.Context, runID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data[runID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

// List returns the records matching q.
func (s *MemoryStore) List(_ context.Context, q Query) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []Record
	for _, r := range s.data {
		if q.Match(r) {
			res = append(res, r)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Time.Equal(res[j].Time) {
			return res[i].RunID < res[j].RunID
		}
		return res[i].Time.Before(res[j].Time)
	})
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[:q.Limit]
	}
	return res, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// StartRecorder saves every completed run published on bus until ctx is
// cancelled or the bus closes. The returned channel is closed on exit.
func StartRecorder(ctx context.Context, bus eventbus.EventBus, store Store, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || store == nil {
		close(done)
		return done
	}
	log = logger.OrNop(log)
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				e, isRun := ev.(events.RunCompleted)
				if !isRun {
					continue
				}
				if err := store.Save(ctx, FromEvent(e)); err != nil {
					log.Errorf("save run %s: %v", e.RunID, err)
				}
			}
		}
	}()
	return done
}
