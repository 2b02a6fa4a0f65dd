package metrics

import (
	"context"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/openbat/core/metrics"
	"github.com/kilianp07/openbat/infra/logger"
)

// InfluxConfig holds the connection settings of an InfluxSink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes run summaries and control cycles as points.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given endpoint. A trailing write
// path on the URL is ignored.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the instance and returns a NopSink when
// the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRun writes one run_summary point with a field per energy category.
func (s *InfluxSink) RecordRun(ev coremetrics.RunEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("run_summary").
		AddTag("run_id", ev.RunID).
		AddTag("system", ev.System).
		AddTag("topology", ev.Topology).
		AddField("steps", ev.Steps).
		AddField("final_soc", round3(ev.FinalSOC)).
		AddField("self_sufficiency", round3(ev.SelfSufficiency)).
		AddField("duration_ms", ev.Duration.Milliseconds())
	cats := make([]string, 0, len(ev.EnergyMWh))
	for cat := range ev.EnergyMWh {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	for _, cat := range cats {
		p.AddField(cat, ev.EnergyMWh[cat])
	}
	p.SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordControl writes one control_cycle point.
func (s *InfluxSink) RecordControl(ev coremetrics.ControlEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("control_cycle").
		AddTag("session", ev.Session).
		AddTag("write_failed", strconv.FormatBool(ev.WriteFailed)).
		AddTag("read_failed", strconv.FormatBool(ev.ReadFailed)).
		AddField("step", ev.Step).
		AddField("target_w", round3(ev.TargetW)).
		AddField("setpoint_w", ev.SetpointW).
		AddField("soc", round3(ev.SOC)).
		AddField("ac_power_w", round3(ev.ACPowerW)).
		AddField("battery_power_w", round3(ev.BatteryPowerW)).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordFailure writes a run_failed point.
func (s *InfluxSink) RecordFailure(ev coremetrics.FailureEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("run_failed").
		AddTag("run_id", ev.RunID).
		AddTag("system", ev.System).
		AddField("reason", ev.Reason).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
