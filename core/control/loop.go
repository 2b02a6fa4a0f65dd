package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/openbat/core/control/logging"
	"github.com/kilianp07/openbat/core/events"
	"github.com/kilianp07/openbat/core/logger"
	"github.com/kilianp07/openbat/core/metrics"
	"github.com/kilianp07/openbat/internal/eventbus"
)

// Summary counts what happened during a session.
type Summary struct {
	Session       string
	Steps         int
	WriteFailures int
	ReadFailures  int
	StoreFailures int
	LastSOC       float64
}

// Loop writes one setpoint per interval to a device. Failures of a single
// write, read or log append are logged and counted; the loop continues with
// the next setpoint.
type Loop struct {
	Device   Device
	Interval time.Duration
	Store    logging.Store
	Logger   logger.Logger
	Metrics  metrics.ControlRecorder
	Bus      eventbus.EventBus
	// Session names the records of this run. A random id is used when empty.
	Session string

	now func() time.Time
}

func (l *Loop) defaults() {
	if l.Store == nil {
		l.Store = logging.NopStore{}
	}
	l.Logger = logger.OrNop(l.Logger)
	if l.Metrics == nil {
		l.Metrics = metrics.NopSink{}
	}
	if l.Session == "" {
		l.Session = uuid.NewString()
	}
	if l.now == nil {
		l.now = time.Now
	}
}

// Run sends setpoints in order. Cancelling ctx stops the loop before the
// next cycle and returns the context error with the partial summary.
func (l *Loop) Run(ctx context.Context, setpoints []float64) (Summary, error) {
	if l.Device == nil {
		return Summary{}, errors.New("control: device is required")
	}
	l.defaults()
	sum := Summary{Session: l.Session}
	l.Logger.Infow("control session started", map[string]any{
		"session": l.Session, "steps": len(setpoints), "interval": l.Interval.String(),
	})

	var tick <-chan time.Time
	if l.Interval > 0 {
		t := time.NewTicker(l.Interval)
		defer t.Stop()
		tick = t.C
	}
	for i, target := range setpoints {
		if i > 0 && tick != nil {
			select {
			case <-ctx.Done():
				return sum, ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return sum, err
		}
		rec := l.cycle(ctx, i, target, &sum)
		sum.Steps++
		if err := l.Store.Append(ctx, rec); err != nil {
			sum.StoreFailures++
			l.Logger.Errorf("control step %d: append log: %v", i, err)
		}
	}
	l.Logger.Infow("control session finished", map[string]any{
		"session": l.Session, "steps": sum.Steps,
		"write_failures": sum.WriteFailures, "read_failures": sum.ReadFailures,
	})
	return sum, nil
}

func (l *Loop) cycle(ctx context.Context, step int, target float64, sum *Summary) logging.Record {
	start := l.now()
	sp := Saturate(target)
	rec := logging.Record{Timestamp: start, Session: l.Session, Step: step, TargetW: target, SetpointW: sp}

	werr := l.Device.WriteSetpoint(ctx, sp)
	if werr != nil {
		sum.WriteFailures++
		rec.WriteError = werr.Error()
		l.Logger.Warnf("control step %d: write setpoint %d W: %v", step, sp, werr)
	}
	rb, rerr := l.Device.Read(ctx)
	if rerr != nil {
		sum.ReadFailures++
		rec.ReadError = rerr.Error()
		l.Logger.Warnf("control step %d: read back: %v", step, rerr)
	} else {
		rec.SOC, rec.ACPowerW, rec.BatteryPowerW = rb.SOC, rb.ACPowerW, rb.BatteryPowerW
		sum.LastSOC = rb.SOC
	}
	latency := l.now().Sub(start)

	if err := l.Metrics.RecordControl(metrics.ControlEvent{
		Session: l.Session, Step: step, TargetW: target, SetpointW: float64(sp),
		SOC: rec.SOC, ACPowerW: rec.ACPowerW, BatteryPowerW: rec.BatteryPowerW,
		WriteFailed: werr != nil, ReadFailed: rerr != nil, Latency: latency, Time: start,
	}); err != nil {
		l.Logger.Debugf("control step %d: record metrics: %v", step, err)
	}
	if l.Bus != nil {
		l.Bus.Publish(events.ControlSample{
			Session: l.Session, Step: step, TargetW: target, SetpointW: sp,
			SOC: rec.SOC, ACPowerW: rec.ACPowerW, BatteryPowerW: rec.BatteryPowerW,
			WriteErr: werr, ReadErr: rerr, Latency: latency, Time: start,
		})
	}
	return rec
}

// Setpoints converts a residual power series into device setpoints. The
// residual is positive for surplus, which the battery absorbs; devices take
// negative setpoints for charging.
func Setpoints(residual []float64) []float64 {
	out := make([]float64, len(residual))
	for i, p := range residual {
		out[i] = -p
	}
	return out
}

// ErrDrainTimeout is returned when a drain does not reach an empty battery
// within its limit.
var ErrDrainTimeout = errors.New("control: battery not empty before timeout")

// DrainOptions configures Drain.
type DrainOptions struct {
	PowerW   int16         // discharge setpoint written every interval
	Interval time.Duration // pause between cycles
	Timeout  time.Duration // zero means no limit besides ctx
	Logger   logger.Logger
}

// Drain discharges the device until it reports an empty battery. Read
// failures are logged and retried on the next cycle.
func Drain(ctx context.Context, dev Device, opt DrainOptions) (float64, error) {
	log := logger.OrNop(opt.Logger)
	if opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opt.Timeout)
		defer cancel()
	}
	soc := -1.0
	for {
		rb, err := dev.Read(ctx)
		if err != nil {
			log.Warnf("drain: read: %v", err)
		} else {
			soc = rb.SOC
			if soc <= 0 {
				log.Infof("drain: battery empty")
				return soc, nil
			}
			if err := dev.WriteSetpoint(ctx, opt.PowerW); err != nil {
				log.Warnf("drain: write setpoint: %v", err)
			}
			log.Debugf("drain: soc %.3f", soc)
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return soc, fmt.Errorf("%w (soc %.3f)", ErrDrainTimeout, soc)
			}
			return soc, ctx.Err()
		case <-time.After(opt.Interval):
		}
	}
}
