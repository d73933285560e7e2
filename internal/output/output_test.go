package output_test

import (
	"bytes"
	"testing"
	"time"

	"codeberg.org/okkola/labdaq/internal/errors"
	"codeberg.org/okkola/labdaq/internal/output"
	"codeberg.org/okkola/labdaq/internal/output/console"
	"codeberg.org/okkola/labdaq/internal/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakySink struct {
	published int
	fail      bool
}

func (s *flakySink) Publish([]sample.Sample) error {
	if s.fail {
		return errors.New().New(output.ErrPublishFailed)
	}
	s.published++
	return nil
}

func (s *flakySink) Close() error { return nil }

func testSamples() []sample.Sample {
	return []sample.Sample{
		{
			DeviceID:  "dvm-1",
			Channel:   0,
			Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			Raw:       0.5,
			Value:     0.05,
			Unit:      "V",
			Valid:     true,
		},
	}
}

func TestFanoutDeliversToAllSinks(t *testing.T) {
	a, b := &flakySink{}, &flakySink{}
	f := output.NewFanout(a, b)

	require.NoError(t, f.Publish(testSamples()))
	assert.Equal(t, 1, a.published)
	assert.Equal(t, 1, b.published)
}

func TestFanoutFailingSinkDoesNotStopOthers(t *testing.T) {
	bad, good := &flakySink{fail: true}, &flakySink{}
	f := output.NewFanout(bad, good)

	err := f.Publish(testSamples())
	require.Error(t, err)
	assert.Equal(t, 1, good.published)
}

func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	sink := console.New(&buf)

	samples := testSamples()
	samples = append(samples, sample.Sample{
		DeviceID: "bridge-1", Channel: 2, Timestamp: time.Now(),
		Raw: 15000, Value: 0, Unit: "K", Valid: false,
	})

	require.NoError(t, sink.Publish(samples))
	out := buf.String()
	assert.Contains(t, out, "dvm-1")
	assert.Contains(t, out, "V")
	assert.Contains(t, out, "[invalid]")
	require.NoError(t, sink.Close())
}
