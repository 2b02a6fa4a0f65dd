package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/openbat/core/factory"
	coremetrics "github.com/kilianp07/openbat/core/metrics"
)

// init registers the built-in metrics sinks.
func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})

	_ = coremetrics.RegisterMetricsSink("prometheus", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			Namespace string `json:"namespace"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		sink, err := NewPromSinkWithRegistry(coremetrics.Config{Namespace: c.Namespace}, prometheus.DefaultRegisterer)
		if err != nil {
			return nil, err
		}
		return sink, nil
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c), nil
	})
}
