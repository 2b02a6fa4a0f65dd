package control

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/openbat/core/control/logging"
	"github.com/kilianp07/openbat/core/events"
	"github.com/kilianp07/openbat/core/metrics"
	"github.com/kilianp07/openbat/internal/eventbus"
)

type mockDevice struct{ mock.Mock }

func (m *mockDevice) WriteSetpoint(ctx context.Context, watts int16) error {
	return m.Called(watts).Error(0)
}

func (m *mockDevice) Read(ctx context.Context) (Readback, error) {
	args := m.Called()
	return args.Get(0).(Readback), args.Error(1)
}

func (m *mockDevice) Close() error { return m.Called().Error(0) }

type memStore struct {
	logging.NopStore
	recs []logging.Record
	err  error
}

func (s *memStore) Append(_ context.Context, r logging.Record) error {
	s.recs = append(s.recs, r)
	return s.err
}

type controlSink struct {
	metrics.NopSink
	events []metrics.ControlEvent
}

func (s *controlSink) RecordControl(ev metrics.ControlEvent) error {
	s.events = append(s.events, ev)
	return nil
}

func TestSaturate(t *testing.T) {
	cases := map[float64]int16{
		0:        0,
		1499.6:   1500,
		-1499.4:  -1499,
		40000:    math.MaxInt16,
		-40000:   math.MinInt16,
		32767.4:  32767,
		-32768.9: math.MinInt16,
	}
	for in, want := range cases {
		if got := Saturate(in); got != want {
			t.Errorf("Saturate(%v) = %d, want %d", in, got, want)
		}
	}
	assert.Equal(t, int16(0), Saturate(math.NaN()))
	assert.Equal(t, int16(math.MaxInt16), Saturate(math.Inf(1)))
}

func TestSetpointsFlipSign(t *testing.T) {
	assert.Equal(t, []float64{-100, 250, 0}, Setpoints([]float64{100, -250, 0}))
}

func TestLoopRecordsEveryCycle(t *testing.T) {
	dev := &mockDevice{}
	dev.On("WriteSetpoint", int16(100)).Return(nil).Once()
	dev.On("WriteSetpoint", int16(math.MinInt16)).Return(errors.New("timeout")).Once()
	dev.On("WriteSetpoint", int16(-5)).Return(nil).Once()
	dev.On("Read").Return(Readback{SOC: 0.4, ACPowerW: 99}, nil).Once()
	dev.On("Read").Return(Readback{SOC: 0.41}, nil).Once()
	dev.On("Read").Return(Readback{}, errors.New("illegal address")).Once()

	store := &memStore{}
	sink := &controlSink{}
	bus := eventbus.New()
	sub := bus.Subscribe()
	loop := &Loop{Device: dev, Store: store, Metrics: sink, Bus: bus, Session: "s1"}

	sum, err := loop.Run(context.Background(), []float64{100, -50000, -5.2})
	require.NoError(t, err)
	dev.AssertExpectations(t)

	assert.Equal(t, Summary{Session: "s1", Steps: 3, WriteFailures: 1, ReadFailures: 1, LastSOC: 0.41}, sum)
	require.Len(t, store.recs, 3)
	assert.Equal(t, 99.0, store.recs[0].ACPowerW)
	assert.Equal(t, "timeout", store.recs[1].WriteError)
	assert.Equal(t, 0.41, store.recs[1].SOC)
	assert.Equal(t, "illegal address", store.recs[2].ReadError)
	assert.Equal(t, 2, store.recs[2].Step)

	require.Len(t, sink.events, 3)
	assert.True(t, sink.events[1].WriteFailed)
	assert.True(t, sink.events[2].ReadFailed)

	first := (<-sub).(events.ControlSample)
	assert.Equal(t, int16(100), first.SetpointW)
	assert.Equal(t, "s1", first.Session)
}

func TestLoopStoreFailureDoesNotStop(t *testing.T) {
	dev := &mockDevice{}
	dev.On("WriteSetpoint", mock.Anything).Return(nil)
	dev.On("Read").Return(Readback{SOC: 0.5}, nil)
	store := &memStore{err: errors.New("disk full")}
	sum, err := (&Loop{Device: dev, Store: store}).Run(context.Background(), []float64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Steps)
	assert.Equal(t, 2, sum.StoreFailures)
	assert.NotEmpty(t, sum.Session)
}

func TestLoopStopsOnCancel(t *testing.T) {
	dev := &mockDevice{}
	dev.On("WriteSetpoint", mock.Anything).Return(nil)
	dev.On("Read").Return(Readback{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := (&Loop{Device: dev, Interval: time.Hour}).Run(ctx, []float64{1, 2, 3})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, sum.Steps)
	dev.AssertNotCalled(t, "WriteSetpoint", mock.Anything)
}

func TestLoopWaitsForInterval(t *testing.T) {
	dev := &mockDevice{}
	dev.On("WriteSetpoint", mock.Anything).Return(nil)
	dev.On("Read").Return(Readback{}, nil)
	start := time.Now()
	sum, err := (&Loop{Device: dev, Interval: 20 * time.Millisecond}).Run(context.Background(), []float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Steps)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestLoopRequiresDevice(t *testing.T) {
	if _, err := (&Loop{}).Run(context.Background(), []float64{1}); err == nil {
		t.Fatal("expected error without device")
	}
}

func TestDrainUntilEmpty(t *testing.T) {
	dev := &mockDevice{}
	dev.On("Read").Return(Readback{SOC: 0.2}, nil).Once()
	dev.On("Read").Return(Readback{}, errors.New("busy")).Once()
	dev.On("Read").Return(Readback{SOC: 0.05}, nil).Once()
	dev.On("Read").Return(Readback{SOC: 0}, nil).Once()
	dev.On("WriteSetpoint", int16(5000)).Return(nil).Twice()

	soc, err := Drain(context.Background(), dev, DrainOptions{PowerW: 5000, Interval: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 0.0, soc)
	dev.AssertExpectations(t)
}

func TestDrainTimeout(t *testing.T) {
	dev := &mockDevice{}
	dev.On("Read").Return(Readback{SOC: 0.9}, nil)
	dev.On("WriteSetpoint", mock.Anything).Return(nil)
	soc, err := Drain(context.Background(), dev, DrainOptions{PowerW: 5000, Interval: 5 * time.Millisecond, Timeout: 20 * time.Millisecond})
	assert.ErrorIs(t, err, ErrDrainTimeout)
	assert.Equal(t, 0.9, soc)
}
