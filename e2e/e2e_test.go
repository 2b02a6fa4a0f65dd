package e2e

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/openbat/app"
	"github.com/kilianp07/openbat/config"
	"github.com/kilianp07/openbat/core/factory"
	coremqtt "github.com/kilianp07/openbat/core/mqtt"
	"github.com/kilianp07/openbat/core/scenario"
	"github.com/kilianp07/openbat/infra/results"
)

const (
	influxOrg    = "e2e_org"
	influxBucket = "e2e_bucket"
	influxToken  = "e2e-token"
)

// junitReport is a minimal JUnit XML report so CI systems can display the
// results.
type junitReport struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name    string  `xml:"name,attr"`
	Failure *string `xml:"failure,omitempty"`
	Time    float64 `xml:"time,attr"`
}

func writeJUnit(path string, rep junitReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	return enc.Encode(rep)
}

func requireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("e2e skipped in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
}

// startInflux starts an initialised InfluxDB 2.7 and returns its base URL.
func startInflux(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "e2e",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "e2e-password",
			"DOCKER_INFLUXDB_INIT_ORG":         influxOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      influxBucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": influxToken,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "8086")
	return cont, fmt.Sprintf("http://%s:%s", host, port.Port())
}

// startMosquitto starts a broker accepting anonymous clients.
func startMosquitto(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "1883")
	return cont, fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

// subscribe collects the run messages published under prefix.
func subscribe(t *testing.T, broker, prefix string) <-chan coremqtt.RunMessage {
	t.Helper()
	out := make(chan coremqtt.RunMessage, 8)
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("e2e-probe")
	client := paho.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(10*time.Second) || tok.Error() != nil {
		t.Fatalf("probe connect: %v", tok.Error())
	}
	t.Cleanup(func() { client.Disconnect(250) })
	sub := client.Subscribe(prefix+"/runs/#", 1, func(_ paho.Client, m paho.Message) {
		var msg coremqtt.RunMessage
		if err := json.Unmarshal(m.Payload(), &msg); err == nil {
			out <- msg
		}
	})
	if !sub.WaitTimeout(10*time.Second) || sub.Error() != nil {
		t.Fatalf("probe subscribe: %v", sub.Error())
	}
	return out
}

// Test_E2E_SimulationPipeline runs a scenario through the service with the
// MQTT bridge, the InfluxDB sink and the SQLite result store attached, then
// reads each of them back.
func Test_E2E_SimulationPipeline(t *testing.T) {
	requireDocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	started := time.Now()

	influxCont, influxURL := startInflux(ctx, t)
	defer influxCont.Terminate(ctx) //nolint:errcheck
	mqttCont, mqttURL := startMosquitto(ctx, t)
	defer mqttCont.Terminate(ctx) //nolint:errcheck
	t.Logf("InfluxDB started at %s", influxURL)
	t.Logf("Mosquitto started at %s", mqttURL)

	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.MQTT.Broker = mqttURL
	cfg.MQTT.TopicPrefix = "e2e"
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "influx", Conf: map[string]any{
		"url": influxURL, "token": influxToken, "org": influxOrg, "bucket": influxBucket,
	}}}
	cfg.Results.Backend = "sqlite"
	cfg.Results.Path = filepath.Join(dir, "runs.db")
	cfg.Logging.Backend = "nop"
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	runs := subscribe(t, mqttURL, "e2e")
	svc, err := app.New(cfg)
	require.NoError(t, err)

	sc, err := scenario.Load("../app/testdata/day.yaml")
	require.NoError(t, err)
	run := svc.Simulate(ctx, sc)
	require.NoError(t, run.Err)
	require.NoError(t, svc.Close())

	select {
	case msg := <-runs:
		assert.Equal(t, run.ID, msg.RunID)
		assert.Equal(t, "A", msg.System)
		assert.InDelta(t, run.Outcome.FinalSOC(), msg.FinalSOC, 1e-9)
		assert.NotEmpty(t, msg.EnergyMWh)
	case <-time.After(30 * time.Second):
		t.Fatal("no run message received")
	}

	probe := NewInfluxProbe(influxURL, influxToken, influxOrg, influxBucket)
	defer probe.Close()
	n, err := probe.Count(ctx, "run_summary", "run_id", run.ID)
	require.NoError(t, err)
	assert.Positive(t, n, "run summary not written to influx")
	soc, err := probe.Field(ctx, "run_summary", run.ID, "final_soc")
	require.NoError(t, err)
	assert.InDelta(t, run.Outcome.FinalSOC(), soc, 1e-3)

	stored, err := results.New(cfg.Results)
	require.NoError(t, err)
	defer stored.Close()
	rec, err := stored.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", rec.System)
	assert.InDelta(t, run.Outcome.SelfSufficiency(), rec.SelfSufficiency, 1e-9)

	rep := junitReport{Name: "e2e", Tests: 1, Cases: []junitTestCase{{Name: t.Name(), Time: time.Since(started).Seconds()}}}
	if err := writeJUnit(filepath.Join(dir, "e2e.xml"), rep); err != nil {
		t.Logf("write junit: %v", err)
	}
}
