package calibration

import (
	"math"

	"codeberg.org/okkola/labdaq/internal/descriptor"
)

// Engine is the pure conversion stage turning raw instrument values into
// physical quantities. It holds no mutable state: replaying a raw stream
// through the same registry always reproduces the same output.
type Engine struct {
	registry *Registry
}

// NewEngine returns an engine backed by the given function registry.
func NewEngine(registry *Registry) *Engine {
	return &Engine{registry: registry}
}

// Registry exposes the engine's function registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Convert maps one raw value from the given channel to a physical quantity
// under the live parameters p. The raw value is first corrected to the
// channel's scaled units (bridge multiplier over amplifier gain); an
// uncalibrated channel then publishes the corrected value in the channel
// unit, a calibrated one evaluates its function. Out-of-domain values are
// never dropped: they come back with Valid=false and a NaN value.
func (e *Engine) Convert(raw float64, ch descriptor.Channel, p Params) Result {
	gain := p.Gain
	if gain == 0 {
		gain = 1
	}
	corrected := raw * ch.Scale / gain

	name := ch.Calibration
	if p.Calibration != "" {
		name = p.Calibration
	}

	if name == "" {
		valid := corrected >= ch.Min && corrected <= ch.Max
		return Result{Value: corrected, Unit: ch.Unit, Valid: valid}
	}

	fn, ok := e.registry.Lookup(name)
	if !ok {
		// Unreachable for descriptor-referenced names (validated at load
		// time); a bad settings override lands here.
		return Result{Value: math.NaN(), Unit: ch.Unit, Valid: false}
	}

	value, ok := fn.Evaluate(corrected)
	if !ok {
		return Result{Value: math.NaN(), Unit: fn.Unit(), Valid: false}
	}

	return Result{Value: value, Unit: fn.Unit(), Valid: true}
}
