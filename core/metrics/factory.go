package metrics

import (
	"fmt"

	"github.com/kilianp07/openbat/core/factory"
)

var sinks = factory.NewRegistry[MetricsSink]()

// RegisterMetricsSink makes a sink type available to NewMetricsSink.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinks.Register(name, f)
}

// NewMetricsSink builds one sink per module. No module yields a NopSink and
// several are combined in a MultiSink. When a module fails, the sinks built
// so far are closed.
func NewMetricsSink(mods []factory.ModuleConfig) (MetricsSink, error) {
	built := make([]MetricsSink, 0, len(mods))
	for i, m := range mods {
		s, err := sinks.Create(m)
		if err != nil {
			NewMultiSink(built...).Close()
			return nil, fmt.Errorf("metrics sink %d (%s): %w", i, m.Type, err)
		}
		built = append(built, s)
	}
	switch len(built) {
	case 0:
		return NopSink{}, nil
	case 1:
		return built[0], nil
	}
	return NewMultiSink(built...), nil
}
