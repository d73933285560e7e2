package descriptor_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/okkola/labdaq/internal/descriptor"
	"codeberg.org/okkola/labdaq/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResolver knows a single R→T calibration over [50, 10000] Ohm.
type fakeResolver struct{}

func (fakeResolver) Resolve(name string) (float64, float64, string, bool) {
	if name == "cernox-test" {
		return 50, 10000, "K", true
	}
	return 0, 0, "", false
}

const validDoc = `
name: bridge-1
model: AVS-47
transport:
  kind: sim
  address: bench
commands:
  - operation: read
    template: "RES? {channel}"
    reply: '^R=([0-9Ee.+-]+)$'
  - operation: configure
    template: "RANGE {value}"
channels:
  - index: 0
    unit: K
    min: 100
    max: 9000
    calibration: cernox-test
  - index: 1
    unit: V
    min: -10
    max: 10
    scale: 0.001
`

func TestParseValid(t *testing.T) {
	d, err := descriptor.Parse([]byte(validDoc), fakeResolver{})
	require.NoError(t, err)

	assert.Equal(t, "bridge-1", d.Name)
	assert.Equal(t, "sim", d.Transport.Kind)
	require.Len(t, d.Channels, 2)
	assert.Equal(t, 1.0, d.Channels[0].Scale) // defaulted
	assert.Equal(t, 0.001, d.Channels[1].Scale)

	cmd, ok := d.Command(descriptor.OpRead)
	require.True(t, ok)
	assert.Equal(t, "RES? {channel}", cmd.Template)

	_, ok = d.Command(descriptor.OpWrite)
	assert.False(t, ok)

	assert.Equal(t,
		[]descriptor.Operation{descriptor.OpRead, descriptor.OpConfigure},
		d.Capabilities())
}

func TestMarshalRoundTrip(t *testing.T) {
	d, err := descriptor.Parse([]byte(validDoc), fakeResolver{})
	require.NoError(t, err)

	data, err := d.Marshal()
	require.NoError(t, err)

	again, err := descriptor.Parse(data, fakeResolver{})
	require.NoError(t, err)
	assert.Equal(t, d, again)
}

func TestParseRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *descriptor.DeviceDescriptor)
		code    errors.ErrorCode
	}{
		{
			"missing name",
			func(d *descriptor.DeviceDescriptor) { d.Name = "" },
			descriptor.ErrMissingField,
		},
		{
			"missing transport address",
			func(d *descriptor.DeviceDescriptor) { d.Transport.Address = "" },
			descriptor.ErrMissingField,
		},
		{
			"no channels",
			func(d *descriptor.DeviceDescriptor) { d.Channels = nil },
			descriptor.ErrNoChannels,
		},
		{
			"no read command",
			func(d *descriptor.DeviceDescriptor) { d.Commands = d.Commands[1:] },
			descriptor.ErrNoReadCommand,
		},
		{
			"duplicate channel index",
			func(d *descriptor.DeviceDescriptor) { d.Channels[1].Index = 0 },
			descriptor.ErrDuplicateChannel,
		},
		{
			"duplicate operation",
			func(d *descriptor.DeviceDescriptor) {
				d.Commands = append(d.Commands, d.Commands[0])
			},
			descriptor.ErrDuplicateOperation,
		},
		{
			"inverted range",
			func(d *descriptor.DeviceDescriptor) { d.Channels[1].Min = 20 },
			descriptor.ErrInvalidRange,
		},
		{
			"unknown unit",
			func(d *descriptor.DeviceDescriptor) { d.Channels[1].Unit = "furlongs" },
			descriptor.ErrUnknownUnit,
		},
		{
			"undefined placeholder",
			func(d *descriptor.DeviceDescriptor) {
				d.Commands[0].Template = "RES? {register}"
			},
			descriptor.ErrMalformedTemplate,
		},
		{
			"bad reply pattern",
			func(d *descriptor.DeviceDescriptor) { d.Commands[0].Reply = "R=([0-9" },
			descriptor.ErrBadReplyPattern,
		},
		{
			"reply pattern without capture group",
			func(d *descriptor.DeviceDescriptor) { d.Commands[0].Reply = "R=[0-9.]+" },
			descriptor.ErrBadReplyPattern,
		},
		{
			"unknown operation",
			func(d *descriptor.DeviceDescriptor) { d.Commands[0].Operation = "reboot" },
			descriptor.ErrUnknownOperation,
		},
		{
			"unknown calibration",
			func(d *descriptor.DeviceDescriptor) { d.Channels[0].Calibration = "mystery" },
			descriptor.ErrUnknownCalibration,
		},
		{
			"range outside calibration domain",
			func(d *descriptor.DeviceDescriptor) { d.Channels[0].Max = 15000 },
			descriptor.ErrCalibrationDomain,
		},
		{
			"calibration unit mismatch",
			func(d *descriptor.DeviceDescriptor) { d.Channels[0].Unit = "mK" },
			descriptor.ErrCalibrationUnit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := descriptor.Parse([]byte(validDoc), fakeResolver{})
			require.NoError(t, err)
			tt.mutate(d)

			data, err := d.Marshal()
			require.NoError(t, err)

			_, err = descriptor.Parse(data, fakeResolver{})
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestWriteTemplateMustReferenceValue(t *testing.T) {
	d, err := descriptor.Parse([]byte(validDoc), fakeResolver{})
	require.NoError(t, err)
	d.Commands = append(d.Commands, descriptor.CommandSpec{
		Operation: descriptor.OpWrite,
		Template:  "SET {channel}",
	})

	data, err := d.Marshal()
	require.NoError(t, err)

	_, err = descriptor.Parse(data, fakeResolver{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, descriptor.ErrMalformedTemplate))
}

func TestParseNotYAML(t *testing.T) {
	_, err := descriptor.Parse([]byte("{not yaml"), fakeResolver{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, descriptor.ErrNotYAML))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeDoc := func(name, doc string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o644))
	}
	writeDoc("bridge.yaml", validDoc)
	writeDoc("notes.txt", "ignored")

	descriptors, err := descriptor.LoadDir(dir, fakeResolver{})
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	assert.Equal(t, "bridge-1", descriptors[0].Name)
}

func TestLoadDirDuplicateDeviceName(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yaml"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(validDoc), 0o644))
	}

	_, err := descriptor.LoadDir(dir, fakeResolver{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, descriptor.ErrDuplicateID))
}

func TestLoadDirEmpty(t *testing.T) {
	_, err := descriptor.LoadDir(t.TempDir(), fakeResolver{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, descriptor.ErrEmptyDir))
}
