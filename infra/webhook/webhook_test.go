package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/openbat/auth"
	coremqtt "github.com/kilianp07/openbat/core/mqtt"
)

type received struct {
	mu     sync.Mutex
	paths  []string
	auths  []string
	bodies [][]byte
}

func endpoint(t *testing.T, status int) (*httptest.Server, *received) {
	t.Helper()
	rec := &received{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/hook/", func(w http.ResponseWriter, r *http.Request) {
		var raw json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&raw)
		rec.mu.Lock()
		rec.paths = append(rec.paths, r.URL.Path)
		rec.auths = append(rec.auths, r.Header.Get("Authorization"))
		rec.bodies = append(rec.bodies, raw)
		rec.mu.Unlock()
		w.WriteHeader(status)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestPublishRunWithAuth(t *testing.T) {
	srv, rec := endpoint(t, http.StatusAccepted)
	p, err := New(Config{URL: srv.URL + "/hook/", Auth: auth.Conf{ClientID: "id", AuthURL: srv.URL + "/token"}})
	require.NoError(t, err)

	require.NoError(t, p.PublishRun(coremqtt.RunMessage{RunID: "r1", System: "A", FinalSOC: 0.4}))
	require.Len(t, rec.paths, 1)
	assert.Equal(t, "/hook/runs", rec.paths[0])
	assert.Equal(t, "Bearer abc", rec.auths[0])
	var got coremqtt.RunMessage
	require.NoError(t, json.Unmarshal(rec.bodies[0], &got))
	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, 0.4, got.FinalSOC)
}

func TestPublishControlOptIn(t *testing.T) {
	srv, rec := endpoint(t, http.StatusOK)
	p, err := New(Config{URL: srv.URL + "/hook"})
	require.NoError(t, err)
	require.NoError(t, p.PublishControl(coremqtt.ControlMessage{Session: "s"}))
	assert.Empty(t, rec.paths)

	p, err = New(Config{URL: srv.URL + "/hook", Control: true})
	require.NoError(t, err)
	require.NoError(t, p.PublishControl(coremqtt.ControlMessage{Session: "s", Step: 2}))
	require.Len(t, rec.paths, 1)
	assert.Equal(t, "/hook/control", rec.paths[0])
	assert.Empty(t, rec.auths[0])
}

func TestPublishErrorStatus(t *testing.T) {
	srv, _ := endpoint(t, http.StatusInternalServerError)
	p, err := New(Config{URL: srv.URL + "/hook"})
	require.NoError(t, err)
	err = p.PublishRun(coremqtt.RunMessage{RunID: "r1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{URL: "ftp://x"}.Validate())
	assert.NoError(t, Config{URL: "https://example.com/hook"}.Validate())
	_, err := New(Config{URL: "x"})
	assert.Error(t, err)
}
