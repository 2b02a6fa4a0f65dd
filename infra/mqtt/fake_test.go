package mqtt

import (
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

type sent struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeBroker stands in for the paho client. Each publish consumes the next
// queued error, if any.
type fakeBroker struct {
	mu     sync.Mutex
	opts   *paho.ClientOptions
	sent   []sent
	errs   []error
	closed bool
}

// useFakeBroker swaps the client constructor for the duration of the test.
func useFakeBroker(t *testing.T, errs ...error) *fakeBroker {
	t.Helper()
	fb := &fakeBroker{errs: errs}
	orig := newMQTTClient
	newMQTTClient = func(o *paho.ClientOptions) pahoClient {
		fb.opts = o
		return fb
	}
	t.Cleanup(func() { newMQTTClient = orig })
	return fb
}

func (f *fakeBroker) messages() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

func (f *fakeBroker) Connect() paho.Token {
	if f.opts != nil && f.opts.OnConnect != nil {
		f.opts.OnConnect(f)
	}
	return doneToken{}
}

func (f *fakeBroker) Disconnect(uint) {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := sent{topic: topic, qos: qos, retained: retained}
	switch v := payload.(type) {
	case []byte:
		m.payload = v
	case string:
		m.payload = []byte(v)
	}
	f.sent = append(f.sent, m)
	if len(f.errs) == 0 {
		return doneToken{}
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return doneToken{err: err}
}

func (f *fakeBroker) IsConnected() bool      { return !f.closed }
func (f *fakeBroker) IsConnectionOpen() bool { return !f.closed }
func (f *fakeBroker) Subscribe(string, byte, paho.MessageHandler) paho.Token {
	return doneToken{}
}
func (f *fakeBroker) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return doneToken{}
}
func (f *fakeBroker) Unsubscribe(...string) paho.Token        { return doneToken{} }
func (f *fakeBroker) AddRoute(string, paho.MessageHandler)    {}
func (f *fakeBroker) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }

type doneToken struct{ err error }

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }
