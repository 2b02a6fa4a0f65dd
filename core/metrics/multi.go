package metrics

import "errors"

// MultiSink fans events out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRun forwards the run to every sink. All sinks are attempted and
// their errors joined.
func (m *MultiSink) RecordRun(ev RunEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordRun(ev))
	}
	return errors.Join(errs...)
}

// RecordControl forwards control cycles to the sinks that support them.
func (m *MultiSink) RecordControl(ev ControlEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(ControlRecorder); ok {
			errs = append(errs, rec.RecordControl(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordFailure forwards failures to the sinks that support them.
func (m *MultiSink) RecordFailure(ev FailureEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(FailureRecorder); ok {
			errs = append(errs, rec.RecordFailure(ev))
		}
	}
	return errors.Join(errs...)
}

// Close closes the sinks that hold a connection.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
