// Package logging persists the per cycle records of live control sessions.
package logging

import (
	"context"
	"time"
)

// Record captures one control cycle: the requested power, the setpoint
// written and what was read back.
type Record struct {
	Timestamp     time.Time `json:"timestamp"`
	Session       string    `json:"session"`
	Step          int       `json:"step"`
	TargetW       float64   `json:"target_w"`
	SetpointW     int16     `json:"setpoint_w"`
	SOC           float64   `json:"soc"`
	ACPowerW      float64   `json:"ac_power_w"`
	BatteryPowerW float64   `json:"battery_power_w"`
	WriteError    string    `json:"write_error,omitempty"`
	ReadError     string    `json:"read_error,omitempty"`
}

// Failed reports whether the write or the read of the cycle failed.
func (r Record) Failed() bool { return r.WriteError != "" || r.ReadError != "" }

// Query defines filters for retrieving records. Zero values match all.
type Query struct {
	Start      time.Time
	End        time.Time
	Session    string
	FailedOnly bool
}

func (q Query) match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Session != "" && r.Session != q.Session {
		return false
	}
	return !q.FailedOnly || r.Failed()
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore drops every record.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
