package session

import (
	"context"
	"time"

	"codeberg.org/okkola/labdaq/internal/descriptor"
	"github.com/benbjohnson/clock"
)

// Device is the slice of the driver surface a sampler worker needs. The
// concrete driver satisfies it; tests substitute scripted devices.
type Device interface {
	Supports(op descriptor.Operation) bool
	Read(ctx context.Context, channel int) (float64, error)
	BulkRead(ctx context.Context) (map[int]float64, error)
	Configure(ctx context.Context, value string) error
	Close() error
}

// RetryNotify is invoked by a device for every retried wire exchange.
type RetryNotify func(err error, next time.Duration)

// OpenDeviceFunc acquires a device for one descriptor. The notify callback
// must be honored so communication retries surface as session events.
type OpenDeviceFunc func(desc *descriptor.DeviceDescriptor, notify RetryNotify) (Device, error)

const (
	defaultQueueDepth      = 16
	defaultShutdownTimeout = 5 * time.Second
	eventBuffer            = 64
	sampleBuffer           = 64
)

// Config tunes a measurement session. The zero value is usable: real clock,
// real drivers, default depths.
type Config struct {
	// QueueDepth bounds each worker's raw hand-off queue.
	QueueDepth int
	// ShutdownTimeout bounds how long Stop waits for workers to finish.
	ShutdownTimeout time.Duration
	// Clock paces the workers; inject a mock in tests.
	Clock clock.Clock
	// OpenDevice acquires hardware; nil means the real driver stack.
	OpenDevice OpenDeviceFunc
}

func (c Config) withDefaults() Config {
	if c.QueueDepth <= 0 {
		c.QueueDepth = defaultQueueDepth
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.OpenDevice == nil {
		c.OpenDevice = openDriver
	}
	return c
}
