package calibration

// Domain is the closed raw-value interval on which a calibration function is
// defined. Outside it, evaluation reports not-ok instead of extrapolating.
type Domain struct {
	Min float64
	Max float64
}

// Contains reports whether raw lies inside the domain.
func (d Domain) Contains(raw float64) bool {
	return raw >= d.Min && raw <= d.Max
}

// Function is a named, pure, referentially transparent mapping from a raw
// instrument value to a physical quantity. Implementations must be
// deterministic: same raw value, same result, every call.
type Function interface {
	Name() string
	Unit() string
	Domain() Domain
	// Evaluate returns the physical value for raw, with ok=false (and a NaN
	// value) when raw lies outside the declared domain.
	Evaluate(raw float64) (value float64, ok bool)
}

// Params carries the live settings that parameterize conversion of a single
// sample. The zero value means unity gain and the channel's own calibration.
type Params struct {
	// Gain divides the raw value before scaling, correcting for an amplifier
	// between instrument and acquisition (0 is treated as 1).
	Gain float64
	// Calibration overrides the channel's calibration reference when set.
	Calibration string
}

// Result is the outcome of converting one raw value.
type Result struct {
	Value float64
	Unit  string
	Valid bool
}
