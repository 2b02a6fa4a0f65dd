// Package metrics defines the sink interfaces used to export simulation and
// control results. Sinks are built from configuration through a factory
// registry; several configured sinks are combined into a MultiSink.
package metrics
