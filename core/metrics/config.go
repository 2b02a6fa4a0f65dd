package metrics

import "github.com/kilianp07/openbat/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// Namespace prefixes every exported metric name.
	Namespace string `json:"namespace"`
}
