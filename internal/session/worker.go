package session

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"codeberg.org/okkola/labdaq/internal/calibration"
	"codeberg.org/okkola/labdaq/internal/descriptor"
	"codeberg.org/okkola/labdaq/internal/sample"
	"github.com/benbjohnson/clock"
)

// pausedPollInterval is how often a paused worker re-checks its pause flag.
const pausedPollInterval = 50 * time.Millisecond

// rawReading carries one raw value plus the settings snapshot it was read
// under, so the conversion stage never mixes a reading with newer settings.
type rawReading struct {
	channel descriptor.Channel
	ts      time.Time
	raw     float64
	snap    DeviceSettings
}

// worker samples one device. It runs as a goroutine pair: the poll loop
// talks to the instrument and the convert loop drains the bounded hand-off
// queue through the calibration engine, so a slow conversion delays delivery
// but never the next transport read. Backpressure blocks; nothing is dropped.
type worker struct {
	deviceID string
	desc     *descriptor.DeviceDescriptor
	dev      Device
	engine   *calibration.Engine
	settings *SettingsStore
	clk      clock.Clock

	rawq   chan rawReading
	out    chan<- sample.Sample
	events chan<- Event

	state  atomic.Int32
	paused atomic.Bool

	lastTS time.Time
}

func newWorker(desc *descriptor.DeviceDescriptor, dev Device, engine *calibration.Engine,
	settings *SettingsStore, clk clock.Clock, queueDepth int,
	out chan<- sample.Sample, events chan<- Event,
) *worker {
	w := &worker{
		deviceID: desc.Name,
		desc:     desc,
		dev:      dev,
		engine:   engine,
		settings: settings,
		clk:      clk,
		rawq:     make(chan rawReading, queueDepth),
		out:      out,
		events:   events,
	}
	w.state.Store(int32(StateIdle))

	return w
}

func (w *worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

func (w *worker) setState(s WorkerState) {
	w.state.Store(int32(s))
}

// run is the poll loop. It owns the raw queue's write side and closes it on
// exit, which in turn lets the convert loop drain and finish.
func (w *worker) run(ctx context.Context) {
	defer close(w.rawq)

	w.setState(StateConfiguring)
	if err := w.configure(ctx); err != nil {
		w.fail(err)
		return
	}
	w.emit(Event{Kind: EventWorkerStarted})

	for {
		if ctx.Err() != nil {
			w.stop()
			return
		}

		if w.paused.Load() {
			w.setState(StatePaused)
			if !w.sleep(ctx, pausedPollInterval) {
				w.stop()
				return
			}
			continue
		}
		w.setState(StateSampling)

		// One snapshot per cycle: settings changes land on cycle boundaries.
		snap := w.settings.Get(w.deviceID)
		cycleStart := w.clk.Now()

		readings, err := w.readCycle(ctx, snap)
		if err != nil {
			if ctx.Err() != nil {
				w.stop()
				return
			}
			w.fail(err)
			return
		}

		for _, r := range readings {
			select {
			case w.rawq <- r:
			case <-ctx.Done():
				w.stop()
				return
			}
		}

		if snap.RateHz > 0 {
			period := time.Duration(float64(time.Second) / snap.RateHz)
			if wait := period - w.clk.Since(cycleStart); wait > 0 {
				if !w.sleep(ctx, wait) {
					w.stop()
					return
				}
			}
		}
	}
}

// convert is the drain loop. It runs until the poll loop closes the raw
// queue.
func (w *worker) convert(ctx context.Context) {
	for r := range w.rawq {
		res := w.engine.Convert(r.raw, r.channel, calibration.Params{
			Gain:        r.snap.Gain,
			Calibration: r.snap.Calibration,
		})

		s := sample.Sample{
			DeviceID:  w.deviceID,
			Channel:   r.channel.Index,
			Timestamp: r.ts,
			Raw:       r.raw,
			Value:     res.Value,
			Unit:      res.Unit,
			Valid:     res.Valid,
		}
		if !res.Valid {
			w.emit(Event{Kind: EventDomainViolation, Detail: s.String()})
		}

		select {
		case w.out <- s:
		case <-ctx.Done():
			return
		}
	}
}

// configure sends the descriptor's configure command when it needs no
// operator-supplied value. Templates with a {value} placeholder wait for an
// explicit settings-driven configure instead.
func (w *worker) configure(ctx context.Context) error {
	cmd, ok := w.desc.Command(descriptor.OpConfigure)
	if !ok || strings.Contains(cmd.Template, "{value}") {
		return nil
	}

	return w.dev.Configure(ctx, "")
}

// readCycle reads every enabled channel once. Bulk read is used when the
// device offers it and no channel restriction is in force.
func (w *worker) readCycle(ctx context.Context, snap DeviceSettings) ([]rawReading, error) {
	channels := w.enabledChannels(snap)

	if w.dev.Supports(descriptor.OpBulkRead) && len(channels) == len(w.desc.Channels) {
		values, err := w.dev.BulkRead(ctx)
		if err != nil {
			return nil, err
		}
		readings := make([]rawReading, 0, len(channels))
		for _, ch := range channels {
			readings = append(readings, rawReading{
				channel: ch, ts: w.stamp(), raw: values[ch.Index], snap: snap,
			})
		}
		return readings, nil
	}

	readings := make([]rawReading, 0, len(channels))
	for _, ch := range channels {
		raw, err := w.dev.Read(ctx, ch.Index)
		if err != nil {
			return nil, err
		}
		readings = append(readings, rawReading{channel: ch, ts: w.stamp(), raw: raw, snap: snap})
	}

	return readings, nil
}

func (w *worker) enabledChannels(snap DeviceSettings) []descriptor.Channel {
	if len(snap.EnabledChannels) == 0 {
		return w.desc.Channels
	}

	channels := make([]descriptor.Channel, 0, len(snap.EnabledChannels))
	for _, index := range snap.EnabledChannels {
		if ch, ok := w.desc.ChannelByIndex(index); ok {
			channels = append(channels, ch)
		}
	}
	return channels
}

// stamp returns a strictly increasing per-device timestamp even when the
// clock resolution is coarser than the read rate.
func (w *worker) stamp() time.Time {
	ts := w.clk.Now()
	if !ts.After(w.lastTS) {
		ts = w.lastTS.Add(time.Nanosecond)
	}
	w.lastTS = ts

	return ts
}

func (w *worker) sleep(ctx context.Context, d time.Duration) bool {
	t := w.clk.Timer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *worker) stop() {
	w.setState(StateStopped)
	w.emit(Event{Kind: EventWorkerStopped})
}

func (w *worker) fail(err error) {
	w.setState(StateErrored)
	w.emit(Event{Kind: EventDeviceErrored, Err: err})
}

// emit sends a diagnostic without ever blocking the measurement path; when
// nobody drains the event channel the event is dropped.
func (w *worker) emit(e Event) {
	e.DeviceID = w.deviceID
	e.Time = w.clk.Now()

	select {
	case w.events <- e:
	default:
	}
}
