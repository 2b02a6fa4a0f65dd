// Package monitoring forwards unexpected errors and panics to an error
// tracker. The package level functions use the monitor set with Init.
package monitoring

import (
	"fmt"
	"sync"
	"time"
)

// Monitor reports errors to an external tracker.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	CapturePanic(v any, tags map[string]string)
	Flush(timeout time.Duration) bool
}

// NopMonitor discards everything.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) CapturePanic(any, map[string]string)       {}
func (NopMonitor) Flush(time.Duration) bool                  { return true }

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init sets the global monitor. A nil monitor restores the no-op one.
func Init(m Monitor) {
	mu.Lock()
	defer mu.Unlock()
	if m == nil {
		m = NopMonitor{}
	}
	current = m
}

func get() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException records err with optional tags. Nil errors are ignored.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	get().CaptureException(err, tags)
}

// Recover must be deferred directly. It reports a panic, flushes and
// panics again so the process still fails.
func Recover(tags map[string]string) {
	if r := recover(); r != nil {
		m := get()
		m.CapturePanic(r, tags)
		m.Flush(2 * time.Second)
		panic(r)
	}
}

// Go runs fn in a goroutine. A panic in fn is reported and returned as an
// error on the channel instead of crashing the process.
func Go(tags map[string]string, fn func() error) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				get().CapturePanic(r, tags)
				done <- fmt.Errorf("panic: %v", r)
			}
			close(done)
		}()
		if err := fn(); err != nil {
			done <- err
		}
	}()
	return done
}

// Flush waits for buffered events up to d.
func Flush(d time.Duration) bool { return get().Flush(d) }
