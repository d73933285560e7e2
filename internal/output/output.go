// Package output defines where converted samples go once the session has
// produced them. Sinks are interchangeable; the daemon fans every batch out
// to all of them.
package output

import (
	"codeberg.org/okkola/labdaq/internal/sample"
	"go.uber.org/multierr"
)

// Output consumes batches of converted samples. Publish must be safe for a
// single caller; the fan-out serializes batches.
type Output interface {
	Publish(samples []sample.Sample) error
	Close() error
}

// Fanout forwards every batch to all configured sinks. One failing sink
// never stops delivery to the others; errors are aggregated.
type Fanout struct {
	sinks []Output
}

// NewFanout builds a fan-out over the given sinks.
func NewFanout(sinks ...Output) *Fanout {
	return &Fanout{sinks: sinks}
}

// Publish delivers the batch to every sink.
func (f *Fanout) Publish(samples []sample.Sample) error {
	var err error
	for _, sink := range f.sinks {
		err = multierr.Append(err, sink.Publish(samples))
	}
	return err
}

// Close closes every sink, collecting all errors.
func (f *Fanout) Close() error {
	var err error
	for _, sink := range f.sinks {
		err = multierr.Append(err, sink.Close())
	}
	return err
}
