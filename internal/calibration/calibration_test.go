package calibration_test

import (
	"math"
	"testing"

	"codeberg.org/okkola/labdaq/internal/calibration"
	"codeberg.org/okkola/labdaq/internal/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinsRegistered(t *testing.T) {
	registry := calibration.DefaultRegistry()

	assert.Equal(t, []string{"cernox-cx1050", "dipstick-ruo2"}, registry.Names())

	min, max, unit, ok := registry.Resolve("cernox-cx1050")
	require.True(t, ok)
	assert.Equal(t, "K", unit)
	assert.Less(t, min, max)
}

func TestRegisterDuplicate(t *testing.T) {
	registry := calibration.NewRegistry()
	fn := calibration.NewLinear("shunt", "A", calibration.Domain{Min: 0, Max: 10}, 0.5, 0)

	require.NoError(t, registry.Register(fn))
	err := registry.Register(fn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shunt")
}

func TestEvaluateDeterministic(t *testing.T) {
	registry := calibration.DefaultRegistry()
	fn, ok := registry.Lookup("cernox-cx1050")
	require.True(t, ok)

	first, okFirst := fn.Evaluate(1500)
	require.True(t, okFirst)
	for i := 0; i < 100; i++ {
		again, okAgain := fn.Evaluate(1500)
		require.True(t, okAgain)
		assert.Equal(t, first, again)
	}
}

func TestEvaluateOutsideDomain(t *testing.T) {
	registry := calibration.DefaultRegistry()
	fn, ok := registry.Lookup("dipstick-ruo2")
	require.True(t, ok)

	v, ok := fn.Evaluate(20000)
	assert.False(t, ok)
	assert.True(t, math.IsNaN(v))

	v, ok = fn.Evaluate(1)
	assert.False(t, ok)
	assert.True(t, math.IsNaN(v))
}

func TestCernoxMonotonicDecreasing(t *testing.T) {
	registry := calibration.DefaultRegistry()
	fn, ok := registry.Lookup("cernox-cx1050")
	require.True(t, ok)

	// Resistance up, temperature down, across all three fitted segments.
	prev := math.Inf(1)
	for r := 60.0; r < 9800; r *= 1.05 {
		temp, ok := fn.Evaluate(r)
		require.True(t, ok, "r=%g", r)
		assert.Less(t, temp, prev, "r=%g", r)
		assert.Greater(t, temp, 0.5, "r=%g", r)
		assert.Less(t, temp, 400.0, "r=%g", r)
		prev = temp
	}
}

func TestDipstickKnownPoints(t *testing.T) {
	registry := calibration.DefaultRegistry()
	fn, ok := registry.Lookup("dipstick-ruo2")
	require.True(t, ok)

	// Segment boundaries documented with the fit.
	low, ok := fn.Evaluate(9816)
	require.True(t, ok)
	assert.InDelta(t, 4.2, low, 0.5)

	high, ok := fn.Evaluate(45.775)
	require.True(t, ok)
	assert.InDelta(t, 295.3, high, 15)
}

func TestConvertUncalibratedAppliesScaleAndGain(t *testing.T) {
	engine := calibration.NewEngine(calibration.NewRegistry())
	ch := descriptor.Channel{Index: 0, Unit: "V", Min: -10, Max: 10, Scale: 1}

	res := engine.Convert(5.0, ch, calibration.Params{Gain: 100})
	assert.True(t, res.Valid)
	assert.Equal(t, "V", res.Unit)
	assert.InDelta(t, 0.05, res.Value, 1e-12)
}

func TestConvertUncalibratedOutOfRangeFlagged(t *testing.T) {
	engine := calibration.NewEngine(calibration.NewRegistry())
	ch := descriptor.Channel{Index: 0, Unit: "V", Min: -1, Max: 1, Scale: 1}

	res := engine.Convert(5.0, ch, calibration.Params{})
	assert.False(t, res.Valid)
	assert.InDelta(t, 5.0, res.Value, 1e-12)
}

func TestConvertCalibratedDomainViolation(t *testing.T) {
	engine := calibration.NewEngine(calibration.DefaultRegistry())
	ch := descriptor.Channel{Index: 1, Unit: "K", Min: 100, Max: 9000, Scale: 1, Calibration: "cernox-cx1050"}

	inRange := engine.Convert(3000, ch, calibration.Params{})
	assert.True(t, inRange.Valid)
	assert.Equal(t, "K", inRange.Unit)
	assert.Greater(t, inRange.Value, 0.0)

	outOfRange := engine.Convert(15000, ch, calibration.Params{})
	assert.False(t, outOfRange.Valid)
	assert.True(t, math.IsNaN(outOfRange.Value))
	assert.Equal(t, "K", outOfRange.Unit)
}

func TestConvertSettingsOverrideCalibration(t *testing.T) {
	registry := calibration.NewRegistry()
	require.NoError(t, registry.Register(calibration.NewLinear("probe-a", "K", calibration.Domain{Min: 0, Max: 100}, 2, 1)))
	engine := calibration.NewEngine(registry)
	ch := descriptor.Channel{Index: 0, Unit: "K", Min: 0, Max: 100, Scale: 1}

	res := engine.Convert(10, ch, calibration.Params{Calibration: "probe-a"})
	assert.True(t, res.Valid)
	assert.InDelta(t, 21.0, res.Value, 1e-12)

	unknown := engine.Convert(10, ch, calibration.Params{Calibration: "probe-b"})
	assert.False(t, unknown.Valid)
}
