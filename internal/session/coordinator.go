// Package session runs measurement sessions: one sampler worker per device,
// a shared settings store, and a merged stream of converted samples. A
// failing device transitions to Errored and its stream goes quiet; every
// other worker keeps sampling.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/okkola/labdaq/internal/calibration"
	"codeberg.org/okkola/labdaq/internal/descriptor"
	"codeberg.org/okkola/labdaq/internal/driver"
	"codeberg.org/okkola/labdaq/internal/errors"
	"codeberg.org/okkola/labdaq/internal/sample"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Session is one running acquisition across a set of devices. Sessions are
// not restartable: Stop ends the sample stream for good.
type Session struct {
	id       string
	cfg      Config
	engine   *calibration.Engine
	store    *SettingsStore
	workers  map[string]*worker
	devices  map[string]Device
	// Workers produce into internal; the forwarder goroutine owns samples
	// and is the only closer, so a force-abandoned shutdown can still
	// terminate the consumer-facing stream.
	internal   chan sample.Sample
	samples    chan sample.Sample
	streamDone chan struct{}

	events   chan Event
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  atomic.Bool
	stopErr  error

	evMu     sync.Mutex
	evClosed bool
}

// Start validates the configuration, opens every device and spawns the
// worker pairs. Duplicate device ids or invalid settings fail the whole
// start with no workers spawned. A device that fails to open does not:
// it is reported Errored and the rest of the session proceeds.
func Start(ctx context.Context, cfg Config, engine *calibration.Engine,
	descriptors []*descriptor.DeviceDescriptor, initial map[string]DeviceSettings,
) (*Session, error) {
	errFactory := errors.New()
	cfg = cfg.withDefaults()

	if len(descriptors) == 0 {
		return nil, errFactory.WithMessage(ErrConfigInvalid, "no devices")
	}

	seen := make(map[string]struct{}, len(descriptors))
	for _, d := range descriptors {
		if _, dup := seen[d.Name]; dup {
			return nil, errFactory.WithData(ErrConfigInvalid, fmt.Sprintf("duplicate device id %q", d.Name))
		}
		seen[d.Name] = struct{}{}
	}

	for id, s := range initial {
		desc := findDescriptor(descriptors, id)
		if desc == nil {
			return nil, errFactory.WithData(ErrConfigInvalid, fmt.Sprintf("settings for unknown device %q", id))
		}
		if err := s.validate(desc, engine.Registry()); err != nil {
			return nil, err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:         uuid.NewString(),
		cfg:        cfg,
		engine:     engine,
		store:      NewSettingsStore(initial),
		workers:    make(map[string]*worker, len(descriptors)),
		devices:    make(map[string]Device, len(descriptors)),
		internal:   make(chan sample.Sample),
		samples:    make(chan sample.Sample, sampleBuffer),
		streamDone: make(chan struct{}),
		events:     make(chan Event, eventBuffer),
		cancel:     cancel,
	}

	for _, desc := range descriptors {
		desc := desc
		notify := func(err error, next time.Duration) {
			s.emit(Event{
				Kind:     EventCommRetry,
				DeviceID: desc.Name,
				Detail:   fmt.Sprintf("retrying in %s", next),
				Err:      err,
			})
		}

		dev, err := cfg.OpenDevice(desc, notify)
		if err != nil {
			// Opening is a per-device failure, isolated like any other.
			w := newWorker(desc, nil, engine, s.store, cfg.Clock, cfg.QueueDepth, s.internal, s.events)
			w.setState(StateErrored)
			s.workers[desc.Name] = w
			s.emit(Event{Kind: EventDeviceErrored, DeviceID: desc.Name, Err: err})
			continue
		}

		w := newWorker(desc, dev, engine, s.store, cfg.Clock, cfg.QueueDepth, s.internal, s.events)
		s.workers[desc.Name] = w
		s.devices[desc.Name] = dev

		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			w.run(runCtx)
		}()
		go func() {
			defer s.wg.Done()
			w.convert(runCtx)
		}()
	}

	go s.forward()
	go func() {
		s.wg.Wait()
		close(s.internal)

		s.evMu.Lock()
		s.evClosed = true
		close(s.events)
		s.evMu.Unlock()
	}()

	return s, nil
}

// forward pumps worker output onto the consumer-facing sample channel. It is
// the sole closer of that channel: normally when every worker has finished,
// or immediately when a timed-out Stop abandons the workers, in which case
// late samples are discarded so abandoned workers can still drain and exit.
func (s *Session) forward() {
	streamDone := s.streamDone
	closed := false

	for {
		select {
		case smp, ok := <-s.internal:
			if !ok {
				if !closed {
					close(s.samples)
				}
				return
			}
			if closed {
				continue
			}
			select {
			case s.samples <- smp:
			case <-streamDone:
				closed = true
				close(s.samples)
				streamDone = nil
			}
		case <-streamDone:
			closed = true
			close(s.samples)
			streamDone = nil
		}
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Samples is the merged stream of converted samples from every device,
// strictly ordered per device, closed when the session ends.
func (s *Session) Samples() <-chan sample.Sample {
	return s.samples
}

// Events is the session's diagnostic stream.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Settings returns the live settings snapshot for one device.
func (s *Session) Settings(deviceID string) (DeviceSettings, error) {
	errFactory := errors.New()

	if _, ok := s.workers[deviceID]; !ok {
		return DeviceSettings{}, errFactory.WithData(ErrUnknownDevice, deviceID)
	}

	return s.store.Get(deviceID), nil
}

// UpdateSettings atomically swaps one device's settings. Workers observe the
// change at their next cycle boundary; in-flight cycles finish under the old
// snapshot.
func (s *Session) UpdateSettings(deviceID string, settings DeviceSettings) error {
	errFactory := errors.New()

	if s.stopped.Load() {
		return errFactory.New(ErrStopped)
	}
	w, ok := s.workers[deviceID]
	if !ok {
		return errFactory.WithData(ErrUnknownDevice, deviceID)
	}
	if err := settings.validate(w.desc, s.engine.Registry()); err != nil {
		return err
	}

	s.store.Put(deviceID, settings)
	s.emit(Event{Kind: EventSettingsUpdated, DeviceID: deviceID})

	return nil
}

// Pause suspends sampling for one device; the device stays open.
func (s *Session) Pause(deviceID string) error {
	return s.setPaused(deviceID, true)
}

// Resume restarts sampling for a paused device.
func (s *Session) Resume(deviceID string) error {
	return s.setPaused(deviceID, false)
}

func (s *Session) setPaused(deviceID string, paused bool) error {
	errFactory := errors.New()

	if s.stopped.Load() {
		return errFactory.New(ErrStopped)
	}
	w, ok := s.workers[deviceID]
	if !ok {
		return errFactory.WithData(ErrUnknownDevice, deviceID)
	}
	w.paused.Store(paused)

	return nil
}

// DeviceStates reports the current worker state of every device.
func (s *Session) DeviceStates() map[string]WorkerState {
	states := make(map[string]WorkerState, len(s.workers))
	for id, w := range s.workers {
		states[id] = w.State()
	}
	return states
}

// Stop cancels every worker, waits up to the shutdown timeout, then tears
// the devices down regardless. Workers still running past the timeout are
// abandoned with a worker_shutdown_timeout diagnostic. Safe to call more
// than once.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		errFactory := errors.New()

		s.stopped.Store(true)
		s.cancel()

		finished := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(finished)
		}()

		select {
		case <-finished:
		case <-time.After(s.cfg.ShutdownTimeout):
			for id, w := range s.workers {
				if state := w.State(); state != StateStopped && state != StateErrored {
					s.emit(Event{Kind: EventShutdownTimeout, DeviceID: id})
					s.stopErr = multierr.Append(s.stopErr,
						errFactory.WithData(ErrShutdownTimeout, id))
				}
			}
			// Force-abandon: terminate the consumer-facing stream even
			// though some workers never acknowledged the cancellation.
			close(s.streamDone)
		}

		for id, dev := range s.devices {
			if err := dev.Close(); err != nil {
				s.stopErr = multierr.Append(s.stopErr,
					errFactory.WithMessage(ErrDeviceTeardown, fmt.Sprintf("%s: %v", id, err)))
			}
		}
	})

	return s.stopErr
}

// emit never blocks: diagnostics yield to the measurement path. Events
// arriving after the session ended are dropped.
func (s *Session) emit(e Event) {
	if e.Time.IsZero() {
		e.Time = s.cfg.Clock.Now()
	}

	s.evMu.Lock()
	defer s.evMu.Unlock()
	if s.evClosed {
		return
	}

	select {
	case s.events <- e:
	default:
	}
}

func findDescriptor(descriptors []*descriptor.DeviceDescriptor, id string) *descriptor.DeviceDescriptor {
	for _, d := range descriptors {
		if d.Name == id {
			return d
		}
	}
	return nil
}

// openDriver is the production OpenDeviceFunc, backed by the descriptor's
// transport.
func openDriver(desc *descriptor.DeviceDescriptor, notify RetryNotify) (Device, error) {
	return driver.Open(desc, driver.WithRetryNotify(func(err error, next time.Duration) {
		notify(err, next)
	}))
}
