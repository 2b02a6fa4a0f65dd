package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/openbat/core/metrics"
)

// DefaultNamespace prefixes metric names when the config leaves it empty.
const DefaultNamespace = "openbat"

// PromSink exposes simulation runs and control cycles as Prometheus metrics.
type PromSink struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	finalSOC    *prometheus.GaugeVec
	selfSuff    *prometheus.GaugeVec
	energy      *prometheus.GaugeVec
	runDuration *prometheus.HistogramVec

	setpoint   *prometheus.GaugeVec
	soc        *prometheus.GaugeVec
	cycleErrs  *prometheus.CounterVec
	cycleDelay prometheus.Histogram
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The HTTP endpoint is served separately by StartPromServer.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on reg. A nil registerer
// defaults to the global one. Collectors that already exist are reused so
// several sinks may share a registry.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	s := &PromSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "runs_total",
			Help: "Completed simulation runs",
		}, []string{"system", "topology"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "run_failures_total",
			Help: "Simulation runs that stopped with an error",
		}, []string{"system"}),
		finalSOC: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "run_final_soc",
			Help: "State of charge at the end of the last run",
		}, []string{"system"}),
		selfSuff: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "run_self_sufficiency_ratio",
			Help: "Share of the load not supplied by the grid in the last run",
		}, []string{"system"}),
		energy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "run_energy_mwh",
			Help: "Energy per flow category of the last run",
		}, []string{"system", "category"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Name: "run_duration_seconds",
			Help:    "Wall time spent simulating one run",
			Buckets: prometheus.DefBuckets,
		}, []string{"topology"}),
		setpoint: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "control_setpoint_watts",
			Help: "Last setpoint written to the device",
		}, []string{"session"}),
		soc: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "control_soc",
			Help: "Last state of charge read from the device",
		}, []string{"session"}),
		cycleErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "control_errors_total",
			Help: "Failed device operations during control",
		}, []string{"session", "op"}),
		cycleDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Name: "control_cycle_seconds",
			Help:    "Time spent writing and reading one control cycle",
			Buckets: prometheus.DefBuckets,
		}),
	}
	var err error
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	if s.failures, err = register(reg, s.failures); err != nil {
		return nil, err
	}
	if s.finalSOC, err = register(reg, s.finalSOC); err != nil {
		return nil, err
	}
	if s.selfSuff, err = register(reg, s.selfSuff); err != nil {
		return nil, err
	}
	if s.energy, err = register(reg, s.energy); err != nil {
		return nil, err
	}
	if s.runDuration, err = register(reg, s.runDuration); err != nil {
		return nil, err
	}
	if s.setpoint, err = register(reg, s.setpoint); err != nil {
		return nil, err
	}
	if s.soc, err = register(reg, s.soc); err != nil {
		return nil, err
	}
	if s.cycleErrs, err = register(reg, s.cycleErrs); err != nil {
		return nil, err
	}
	if s.cycleDelay, err = register(reg, s.cycleDelay); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRun updates the run counters and the last-run gauges.
func (s *PromSink) RecordRun(ev coremetrics.RunEvent) error {
	s.runs.WithLabelValues(ev.System, ev.Topology).Inc()
	s.finalSOC.WithLabelValues(ev.System).Set(ev.FinalSOC)
	s.selfSuff.WithLabelValues(ev.System).Set(ev.SelfSufficiency)
	for cat, v := range ev.EnergyMWh {
		s.energy.WithLabelValues(ev.System, cat).Set(v)
	}
	s.runDuration.WithLabelValues(ev.Topology).Observe(ev.Duration.Seconds())
	return nil
}

// RecordFailure counts a failed run.
func (s *PromSink) RecordFailure(ev coremetrics.FailureEvent) error {
	s.failures.WithLabelValues(ev.System).Inc()
	return nil
}

// RecordControl tracks the setpoint, the read back SOC and failed device
// operations of a control session.
func (s *PromSink) RecordControl(ev coremetrics.ControlEvent) error {
	s.setpoint.WithLabelValues(ev.Session).Set(ev.SetpointW)
	if ev.WriteFailed {
		s.cycleErrs.WithLabelValues(ev.Session, "write").Inc()
	}
	if ev.ReadFailed {
		s.cycleErrs.WithLabelValues(ev.Session, "read").Inc()
	} else {
		s.soc.WithLabelValues(ev.Session).Set(ev.SOC)
	}
	s.cycleDelay.Observe(ev.Latency.Seconds())
	return nil
}
