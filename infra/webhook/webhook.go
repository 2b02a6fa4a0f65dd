// Package webhook posts run and control messages to an HTTP endpoint,
// optionally authenticated with OAuth2 client credentials.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/openbat/auth"
	coremqtt "github.com/kilianp07/openbat/core/mqtt"
)

// Config describes the endpoint. Runs are posted to URL + "/runs" and
// control samples to URL + "/control" when Control is set.
type Config struct {
	URL     string        `json:"url"`
	Timeout time.Duration `json:"timeout"`
	Control bool          `json:"control"`
	Auth    auth.Conf     `json:"auth"`
}

// Enabled reports whether an endpoint is configured.
func (c Config) Enabled() bool { return c.URL != "" }

// Validate checks the endpoint URL.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("webhook: url must be http or https, got %q", c.URL)
	}
	if c.Timeout < 0 {
		return errors.New("webhook: timeout must not be negative")
	}
	return nil
}

// Publisher implements the run and control publisher over HTTP.
type Publisher struct {
	base    string
	control bool
	client  *http.Client
	creds   *auth.ClientCred
}

var _ coremqtt.Publisher = (*Publisher)(nil)

// New returns a publisher for cfg. The default timeout is 10 s.
func New(cfg Config) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	p := &Publisher{
		base:    strings.TrimSuffix(cfg.URL, "/"),
		control: cfg.Control,
		client:  &http.Client{Timeout: timeout},
	}
	if cfg.Auth.Enabled() {
		p.creds = auth.NewClientCred(cfg.Auth)
	}
	return p, nil
}

func (p *Publisher) PublishRun(msg coremqtt.RunMessage) error {
	return p.post("/runs", msg)
}

// PublishControl posts the sample when control forwarding is enabled.
func (p *Publisher) PublishControl(msg coremqtt.ControlMessage) error {
	if !p.control {
		return nil
	}
	return p.post("/control", msg)
}

func (p *Publisher) post(path string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, p.base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.creds != nil {
		if err := p.creds.SetAuthHeader(req); err != nil {
			return fmt.Errorf("failed to set auth header: %w", err)
		}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, msg)
	}
	return nil
}
