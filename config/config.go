// Package config loads the application configuration from a YAML or JSON
// file with K_ prefixed environment overrides.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/openbat/core/factory"
	"github.com/kilianp07/openbat/core/metrics"
	"github.com/kilianp07/openbat/infra/modbus"
	"github.com/kilianp07/openbat/infra/monitoring"
	"github.com/kilianp07/openbat/infra/mqtt"
	"github.com/kilianp07/openbat/infra/results"
	"github.com/kilianp07/openbat/infra/webhook"
)

type Config struct {
	Simulation SimulationConfig  `json:"simulation"`
	Control    ControlConfig     `json:"control"`
	Modbus     modbus.Config     `json:"modbus"`
	MQTT       mqtt.Config       `json:"mqtt"`
	Metrics    MetricsConfig     `json:"metrics"`
	Logging    LoggingConfig     `json:"logging"`
	Results    results.Config    `json:"results"`
	Sentry     monitoring.Config `json:"sentry"`
	Webhook    webhook.Config    `json:"webhook"`
	API        APIConfig         `json:"api"`
}

// APIConfig serves the stored runs and the control logs over HTTP when
// Addr is set. A non-empty Token is required as a bearer token.
type APIConfig struct {
	Addr  string `json:"addr"`
	Token string `json:"token"`
}

// MetricsConfig lists the metrics sinks and the Prometheus listen address.
type MetricsConfig struct {
	Sinks     []factory.ModuleConfig `json:"sinks"`
	Namespace string                 `json:"namespace"`
	// PrometheusAddr serves /metrics when set, e.g. ":9102".
	PrometheusAddr string `json:"prometheus_addr"`
}

// Sink returns the core metrics configuration.
func (c MetricsConfig) Sink() metrics.Config {
	return metrics.Config{Sinks: c.Sinks, Namespace: c.Namespace}
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if path != "" {
		cfg.Simulation.resolve(filepath.Dir(path))
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies the defaults of every section. The modbus and MQTT
// sections keep their zero value when no address or broker is set.
func (c *Config) SetDefaults() {
	c.Simulation.SetDefaults()
	c.Control.SetDefaults()
	if c.Modbus.Address != "" {
		c.Modbus.SetDefaults()
	}
	if c.MQTT.Enabled() {
		c.MQTT.SetDefaults()
	}
	c.Logging.SetDefaults()
	c.Results.SetDefaults()
}

// Validate checks every section and joins the errors.
func (c *Config) Validate() error {
	errs := []error{
		c.Simulation.Validate(),
		c.Control.Validate(),
		c.Logging.Validate(),
		c.Results.Validate(),
		c.Sentry.Validate(),
	}
	if c.Modbus.Address != "" {
		errs = append(errs, c.Modbus.Validate())
	}
	if c.MQTT.Enabled() {
		errs = append(errs, c.MQTT.Validate())
	}
	if c.Webhook.Enabled() {
		errs = append(errs, c.Webhook.Validate())
	}
	return errors.Join(errs...)
}
