// Package monitoring reports errors to Sentry.
package monitoring

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	coremon "github.com/kilianp07/openbat/core/monitoring"
)

// Config defines settings for Sentry error monitoring. An empty DSN
// disables reporting.
type Config struct {
	DSN              string  `json:"dsn"`
	Environment      string  `json:"environment"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
	Release          string  `json:"release"`
}

// Validate checks the sample rate.
func (c Config) Validate() error {
	if c.TracesSampleRate < 0 || c.TracesSampleRate > 1 {
		return fmt.Errorf("sentry: traces_sample_rate must be within [0,1], got %g", c.TracesSampleRate)
	}
	return nil
}

// NewSentryMonitor initializes Sentry and returns a Monitor. Without a DSN
// it returns the no-op monitor.
func NewSentryMonitor(cfg Config) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
	})
	if err != nil {
		return nil, err
	}
	return &sentryMonitor{hub: sentry.CurrentHub()}, nil
}

type sentryMonitor struct {
	hub *sentry.Hub
}

func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		s.hub.CaptureException(err)
	})
}

func (s *sentryMonitor) CapturePanic(v any, tags map[string]string) {
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		s.hub.Recover(v)
	})
}

func (s *sentryMonitor) Flush(timeout time.Duration) bool { return s.hub.Flush(timeout) }
