// Package app wires the simulation, the live control loop and their
// consumers (metrics, MQTT, result store, error monitoring) together.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/openbat/app/plugins"
	"github.com/kilianp07/openbat/config"
	"github.com/kilianp07/openbat/core/batmod"
	"github.com/kilianp07/openbat/core/control"
	"github.com/kilianp07/openbat/core/control/logging"
	"github.com/kilianp07/openbat/core/events"
	"github.com/kilianp07/openbat/core/factory"
	coremetrics "github.com/kilianp07/openbat/core/metrics"
	coremon "github.com/kilianp07/openbat/core/monitoring"
	coreresults "github.com/kilianp07/openbat/core/results"
	"github.com/kilianp07/openbat/core/scenario"
	"github.com/kilianp07/openbat/core/simulation"
	"github.com/kilianp07/openbat/infra/logger"
	"github.com/kilianp07/openbat/infra/metrics"
	"github.com/kilianp07/openbat/infra/monitoring"
	"github.com/kilianp07/openbat/infra/mqtt"
	"github.com/kilianp07/openbat/infra/results"
	"github.com/kilianp07/openbat/infra/webhook"
	"github.com/kilianp07/openbat/internal/eventbus"
	"github.com/kilianp07/openbat/pkg/export"
)

// Service owns the event bus and its consumers for the lifetime of a
// command.
type Service struct {
	cfg    *config.Config
	bus    *eventbus.Bus
	sink   coremetrics.MetricsSink
	store  coreresults.Store
	client *mqtt.PahoClient
	log    logger.Logger

	cancel context.CancelFunc
	done   []<-chan struct{}
}

// Run is the outcome of one simulation.
type Run struct {
	ID       string
	Scenario string
	Outcome  *simulation.Outcome
	Files    []string
	// Violations lists the expected bounds the outcome missed.
	Violations error
	Err        error
}

// New builds the service from cfg and starts the bus consumers.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	sink, err := coremetrics.NewMetricsSink(sinkModules(cfg.Metrics))
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	store, err := results.New(cfg.Results)
	if err != nil {
		return nil, fmt.Errorf("results store: %w", err)
	}
	var client *mqtt.PahoClient
	if cfg.MQTT.Enabled() {
		if client, err = mqtt.NewPahoClient(cfg.MQTT); err != nil {
			closeStore(store, logg)
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{cfg: cfg, bus: eventbus.New(), sink: sink, store: store, client: client, log: logg, cancel: cancel}
	s.done = append(s.done, metrics.StartEventCollector(ctx, s.bus, sink, false))
	if store != nil {
		s.done = append(s.done, coreresults.StartRecorder(ctx, s.bus, store, logger.New("results")))
	}
	if client != nil {
		s.done = append(s.done, mqtt.StartBridge(ctx, s.bus, client))
	}
	if cfg.Webhook.Enabled() {
		hook, err := webhook.New(cfg.Webhook)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("webhook: %w", err)
		}
		s.done = append(s.done, mqtt.StartBridge(ctx, s.bus, hook))
	}
	return s, nil
}

// sinkModules passes the global namespace to Prometheus sinks that do not
// set their own.
func sinkModules(c config.MetricsConfig) []factory.ModuleConfig {
	out := make([]factory.ModuleConfig, len(c.Sinks))
	for i, m := range c.Sinks {
		out[i] = m
		if m.Type != "prometheus" || c.Namespace == "" {
			continue
		}
		if _, ok := m.Conf["namespace"]; ok {
			continue
		}
		conf := make(map[string]any, len(m.Conf)+1)
		for k, v := range m.Conf {
			conf[k] = v
		}
		conf["namespace"] = c.Namespace
		out[i].Conf = conf
	}
	return out
}

// Bus exposes the event bus, mainly for tests and extra subscribers.
func (s *Service) Bus() eventbus.EventBus { return s.bus }

// Store returns the result store, nil when results are not kept.
func (s *Service) Store() coreresults.Store { return s.store }

// ServeMetrics exposes the default Prometheus registry until ctx is done.
// It is a no-op without a configured address.
func (s *Service) ServeMetrics(ctx context.Context) {
	addr := s.cfg.Metrics.PrometheusAddr
	if addr == "" {
		return
	}
	go func() {
		defer coremon.Recover(map[string]string{"module": "prom-server"})
		if err := metrics.StartPromServer(ctx, addr, nil); err != nil {
			s.log.Errorf("prom server: %v", err)
			coremon.CaptureException(err, map[string]string{"module": "prom-server"})
		}
	}()
}

// Simulate runs sc once, publishes the outcome and writes the configured
// output files.
func (s *Service) Simulate(ctx context.Context, sc *scenario.Scenario) Run {
	run := Run{ID: uuid.NewString(), Scenario: sc.Name}
	fail := func(err error) Run {
		run.Err = err
		s.bus.Publish(events.RunFailed{RunID: run.ID, System: sc.System, Err: err})
		s.log.Errorf("run %s (%s) failed: %v", run.ID, sc.Name, err)
		return run
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	req, err := sc.Request()
	if err != nil {
		return fail(err)
	}
	s.bus.Publish(events.RunStarted{RunID: run.ID, System: sc.System, Topology: req.System.Topology(), Steps: len(req.Load)})

	start := time.Now()
	out, err := simulation.Run(req)
	if err != nil {
		return fail(err)
	}
	run.Outcome = out
	s.bus.Publish(events.RunCompleted{
		RunID:           run.ID,
		System:          out.System,
		Topology:        out.Topology,
		Steps:           len(out.Result.SOC),
		StepSeconds:     out.Step,
		FinalSOC:        out.FinalSOC(),
		SelfSufficiency: out.SelfSufficiency(),
		Report:          out.Balance.Report,
		Ideal:           out.Ideal,
		Duration:        time.Since(start),
		Time:            start,
	})
	s.log.Infof("run %s (%s): final soc %.3f, self sufficiency %.3f", run.ID, sc.Name, out.FinalSOC(), out.SelfSufficiency())

	if run.Violations = sc.Expected.Check(out); run.Violations != nil {
		s.log.Warnf("run %s (%s): %v", run.ID, sc.Name, run.Violations)
	}
	if formats := s.cfg.Simulation.Output.Formats; len(formats) > 0 {
		run.Files, err = export.WriteFiles(s.cfg.Simulation.Output.Dir, sc.Name, run.ID, formats, out)
		if err != nil {
			run.Err = fmt.Errorf("export: %w", err)
		}
	}
	return run
}

// Batch runs the scenarios concurrently, at most Simulation.Workers at a
// time. Runs are returned in input order; one failed run does not stop
// the others.
func (s *Service) Batch(ctx context.Context, scenarios []*scenario.Scenario) []Run {
	runs := make([]Run, len(scenarios))
	var g errgroup.Group
	g.SetLimit(max(1, s.cfg.Simulation.Workers))
	for i, sc := range scenarios {
		g.Go(func() error {
			defer coremon.Recover(map[string]string{"module": "batch", "scenario": sc.Name})
			runs[i] = s.Simulate(ctx, sc)
			return nil
		})
	}
	_ = g.Wait()
	return runs
}

// Control sends the residual power of the configured simulation to the
// live device, one setpoint per control interval.
func (s *Service) Control(ctx context.Context) (control.Summary, error) {
	sc, err := s.cfg.Simulation.Scenario()
	if err != nil {
		return control.Summary{}, err
	}
	req, err := sc.Request()
	if err != nil {
		return control.Summary{}, err
	}
	drive, err := batmod.Residual(req.System, req.PV, req.Load, req.Normalized)
	if err != nil {
		return control.Summary{}, err
	}
	setpoints := control.Setpoints(acResidual(drive))
	if n := s.cfg.Control.Steps; n > 0 && n < len(setpoints) {
		setpoints = setpoints[:n]
	}

	dev, err := plugins.OpenDevice(s.cfg)
	if err != nil {
		return control.Summary{}, fmt.Errorf("device: %w", err)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			s.log.Warnf("close device: %v", err)
		}
	}()
	store, err := logging.NewStore(s.cfg.Logging.Module())
	if err != nil {
		return control.Summary{}, fmt.Errorf("control log: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			s.log.Warnf("close control log: %v", err)
		}
	}()

	loop := &control.Loop{
		Device:   dev,
		Interval: s.cfg.Control.Interval,
		Store:    store,
		Logger:   logger.New("control"),
		Bus:      s.bus,
	}
	if rec, ok := s.sink.(coremetrics.ControlRecorder); ok {
		loop.Metrics = rec
	}
	sum, err := loop.Run(ctx, setpoints)
	if err != nil && !errors.Is(err, context.Canceled) {
		coremon.CaptureException(err, map[string]string{"module": "control", "session": sum.Session})
	}
	return sum, err
}

// acResidual returns the AC residual power of d. PV-coupled systems have
// none, so it is derived from the PV power and the AC demand.
func acResidual(d *batmod.Drive) []float64 {
	if d.Pr != nil {
		return d.Pr
	}
	out := make([]float64, len(d.Pac))
	for i := range out {
		out[i] = d.Ppv[i] - d.Pac[i]
	}
	return out
}

// Drain discharges the live device until it reports an empty battery and
// returns the last SOC read.
func (s *Service) Drain(ctx context.Context) (float64, error) {
	dev, err := plugins.OpenDevice(s.cfg)
	if err != nil {
		return 0, fmt.Errorf("device: %w", err)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			s.log.Warnf("close device: %v", err)
		}
	}()
	return control.Drain(ctx, dev, control.DrainOptions{
		PowerW:   s.cfg.Control.DrainPowerW,
		Interval: s.cfg.Control.DrainInterval,
		Timeout:  s.cfg.Control.DrainTimeout,
		Logger:   logger.New("drain"),
	})
}

// Runs lists stored results.
func (s *Service) Runs(ctx context.Context, q coreresults.Query) ([]coreresults.Record, error) {
	if s.store == nil {
		return nil, errors.New("results are not stored, set results.backend")
	}
	return s.store.List(ctx, q)
}

// Close drains the bus consumers and releases every resource.
func (s *Service) Close() error {
	s.bus.Close()
	for _, d := range s.done {
		<-d
	}
	s.cancel()
	if s.client != nil {
		s.client.Disconnect()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	var err error
	if s.store != nil {
		err = s.store.Close()
	}
	coremon.Flush(2 * time.Second)
	return err
}

func closeStore(store coreresults.Store, log logger.Logger) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		log.Warnf("close results store: %v", err)
	}
}
