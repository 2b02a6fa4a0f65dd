package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremon "github.com/kilianp07/openbat/core/monitoring"
	coremqtt "github.com/kilianp07/openbat/core/mqtt"
	"github.com/kilianp07/openbat/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string          `json:"broker"`
	ClientID    string          `json:"client_id"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	TopicPrefix string          `json:"topic_prefix"`
	UseTLS      bool            `json:"use_tls"`
	ClientCert  string          `json:"client_cert"`
	ClientKey   string          `json:"client_key"`
	CABundle    string          `json:"ca_bundle"`
	AuthMethod  string          `json:"auth_method"`
	QoS         map[string]byte `json:"qos"`
	RetainRuns  bool            `json:"retain_runs"`
	LWTTopic    string          `json:"lwt_topic"`
	LWTPayload  string          `json:"lwt_payload"`
	LWTQoS      byte            `json:"lwt_qos"`
	LWTRetain   bool            `json:"lwt_retain"`
	MaxRetries  int             `json:"max_retries"`
	BackoffMS   int             `json:"backoff_ms"`
	TLSConfig   *tls.Config     `json:"-"`
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return c.Broker != "" }

// SetDefaults fills the client id, the topic prefix and the retry policy.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "openbat-" + uuid.NewString()[:8]
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "openbat"
	}
	c.TopicPrefix = strings.TrimSuffix(c.TopicPrefix, "/")
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// Validate checks the authentication and TLS settings.
func (c Config) Validate() error {
	switch c.AuthMethod {
	case "", "username_password", "certificate", "both":
	default:
		return fmt.Errorf("mqtt: unknown auth_method %q", c.AuthMethod)
	}
	if c.UseTLS && c.TLSConfig == nil && (c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "") {
		return fmt.Errorf("mqtt: tls requires client_cert, client_key and ca_bundle")
	}
	return nil
}

// pahoClient is the subset of paho.Client used here.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// PahoClient publishes run and control messages.
type PahoClient struct {
	cli        pahoClient
	prefix     string
	qos        map[string]byte
	retainRuns bool
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
}

var _ coremqtt.Publisher = (*PahoClient)(nil)

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the broker. When a last will is configured the
// client publishes "online" on the same topic after each connect.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		prefix:     cfg.TopicPrefix,
		qos:        cfg.QoS,
		retainRuns: cfg.RetainRuns,
		logger:     log,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected to %s", cfg.Broker)
		if cfg.LWTTopic == "" {
			return
		}
		if token := c.Publish(cfg.LWTTopic, cfg.LWTQoS, cfg.LWTRetain, "online"); token.Wait() && token.Error() != nil {
			log.Errorf("publish status: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		payload := cfg.LWTPayload
		if payload == "" {
			payload = "offline"
		}
		opts.SetWill(cfg.LWTTopic, payload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// RunTopic is the topic of the run reports of a system.
func (p *PahoClient) RunTopic(system string) string {
	return fmt.Sprintf("%s/runs/%s", p.prefix, system)
}

// ControlTopic is the topic of the samples of a control session.
func (p *PahoClient) ControlTopic(session string) string {
	return fmt.Sprintf("%s/control/%s", p.prefix, session)
}

// PublishRun sends a run report.
func (p *PahoClient) PublishRun(msg coremqtt.RunMessage) error {
	return p.publish(p.RunTopic(msg.System), "run", p.retainRuns, msg)
}

// PublishControl sends one control sample.
func (p *PahoClient) PublishControl(msg coremqtt.ControlMessage) error {
	return p.publish(p.ControlTopic(msg.Session), "control", false, msg)
}

// publish retries with exponential backoff and reports the final failure
// to the error monitor.
func (p *PahoClient) publish(topic, kind string, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	qos := p.qos[kind]
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, retained, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Debugf("published %s message to %s", kind, topic)
			return nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	err = fmt.Errorf("%w: %s: %v", coremqtt.ErrPublish, topic, publishErr)
	coremon.CaptureException(err, map[string]string{"module": "mqtt", "topic": topic})
	return err
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
