package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `simulation:
  parameters: systems.yaml
  system: A
  reference: "1"
  series: /data/profiles.csv
  step_s: 900
  normalized: true
  initial_soc: 0.2
  pv:
    column: ppv
  output:
    formats: [csv, html]
control:
  interval: 500ms
  drain_power_w: 3000
modbus:
  address: 192.168.1.20
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  topic_prefix: "home/bat"
  qos:
    run: 1
metrics:
  prometheus_addr: ":9102"
  sinks:
    - type: "nop"
logging:
  backend: sqlite
  path: control.db
results:
  backend: sqlite
  path: runs.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"parameters", cfg.Simulation.Parameters, filepath.Join(filepath.Dir(path), "systems.yaml")},
		{"series", cfg.Simulation.Series, "/data/profiles.csv"},
		{"system", cfg.Simulation.System, "A"},
		{"step_s", cfg.Simulation.StepSeconds, 900.0},
		{"pv.column", cfg.Simulation.PV.Column, "ppv"},
		{"formats", len(cfg.Simulation.Output.Formats), 2},
		{"interval", cfg.Control.Interval, 500 * time.Millisecond},
		{"drain_power", cfg.Control.DrainPowerW, int16(3000)},
		{"drain_interval", cfg.Control.DrainInterval, time.Second},
		{"modbus.address", cfg.Modbus.Address, "192.168.1.20:1502"},
		{"modbus.unit", cfg.Modbus.UnitID, byte(71)},
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"topic_prefix", cfg.MQTT.TopicPrefix, "home/bat"},
		{"qos", cfg.MQTT.QoS["run"], byte(1)},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"prom_addr", cfg.Metrics.PrometheusAddr, ":9102"},
		{"logging.backend", cfg.Logging.Backend, "sqlite"},
		{"results.path", cfg.Results.Path, "runs.db"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
	sc, err := cfg.Simulation.Scenario()
	if err != nil {
		t.Fatalf("scenario: %v", err)
	}
	if sc.Reference != "1" || !sc.Normalized || sc.InitialSOC != 0.2 {
		t.Fatalf("scenario not copied: %+v", sc)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Simulation.StepSeconds != 60 || cfg.Logging.Backend != "jsonl" || cfg.Results.Backend != "memory" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.MQTT.Enabled() || cfg.Modbus.Address != "" {
		t.Fatalf("optional sections should stay disabled")
	}
	if _, err := cfg.Simulation.Scenario(); err == nil {
		t.Fatalf("expected incomplete simulation section")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.json", `{"simulation": {"system": "A", "step_s": 60}}`)
	t.Setenv("K_SIMULATION__SYSTEM", "D")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Simulation.System != "D" {
		t.Fatalf("env override ignored: %s", cfg.Simulation.System)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"soc":     "simulation:\n  initial_soc: 1.5\n",
		"format":  "simulation:\n  output:\n    formats: [pdf]\n",
		"logging": "logging:\n  backend: mongo\n",
		"results": "results:\n  backend: mongo\n",
		"sentry":  "sentry:\n  traces_sample_rate: 3\n",
		"drain":   "control:\n  drain_power_w: -10\n",
		"webhook": "webhook:\n  url: ftp://example.org/hook\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, "c.yaml", data)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if _, err := Load(writeConfig(t, "c.toml", "")); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestLoggingModule(t *testing.T) {
	c := LoggingConfig{Backend: "jsonl", Path: "x.log", MaxSizeMB: 5}
	m := c.Module()
	if m.Type != "jsonl" || m.Conf["path"] != "x.log" || m.Conf["max_size_mb"] != 5 {
		t.Fatalf("unexpected module %+v", m)
	}
}

func TestLoadWebhookAndAPI(t *testing.T) {
	path := writeConfig(t, "c.yaml", `webhook:
  url: https://example.org/hook
  timeout: 3s
  control: true
  auth:
    client_id: openbat
    auth_url: https://example.org/token
api:
  addr: ":8080"
  token: secret
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Webhook.Enabled() || cfg.Webhook.Timeout != 3*time.Second || !cfg.Webhook.Control {
		t.Fatalf("webhook not decoded: %+v", cfg.Webhook)
	}
	if !cfg.Webhook.Auth.Enabled() || cfg.Webhook.Auth.ClientID != "openbat" {
		t.Fatalf("webhook auth not decoded: %+v", cfg.Webhook.Auth)
	}
	if cfg.API.Addr != ":8080" || cfg.API.Token != "secret" {
		t.Fatalf("api not decoded: %+v", cfg.API)
	}
}
