package calibration

import "math"

// segment is one piece of a piecewise Chebyshev fit. Fits are expressed in
// log10 resistance space, the form thermometer calibration tables use; ZL and
// ZU bound the fitted log10 range. When pow10 is set the series yields
// log10(T) rather than T.
type segment struct {
	rMin, rMax float64
	coeffs     []float64
	zl, zu     float64
	pow10      bool
}

func (s segment) evaluate(raw float64) float64 {
	z := math.Log10(raw)
	k := ((z - s.zl) - (s.zu - z)) / (s.zu - s.zl)
	// Guard acos against rounding just past ±1 at segment edges.
	if k > 1 {
		k = 1
	} else if k < -1 {
		k = -1
	}

	t := 0.0
	for i, c := range s.coeffs {
		t += c * math.Cos(float64(i)*math.Acos(k))
	}
	if s.pow10 {
		return math.Pow(10, t)
	}
	return t
}

// piecewiseChebyshev is a calibration function assembled from adjacent
// Chebyshev segments covering one contiguous raw domain.
type piecewiseChebyshev struct {
	name     string
	unit     string
	domain   Domain
	segments []segment
}

func (p *piecewiseChebyshev) Name() string   { return p.name }
func (p *piecewiseChebyshev) Unit() string   { return p.unit }
func (p *piecewiseChebyshev) Domain() Domain { return p.domain }

func (p *piecewiseChebyshev) Evaluate(raw float64) (float64, bool) {
	if !p.domain.Contains(raw) {
		return math.NaN(), false
	}
	for _, s := range p.segments {
		if raw >= s.rMin && raw <= s.rMax {
			return s.evaluate(raw), true
		}
	}
	return math.NaN(), false
}

// linear is a parametric calibration of the form value = raw*slope + offset,
// for sensors calibrated with a straight-line fit.
type linear struct {
	name   string
	unit   string
	domain Domain
	slope  float64
	offset float64
}

func (l *linear) Name() string   { return l.name }
func (l *linear) Unit() string   { return l.unit }
func (l *linear) Domain() Domain { return l.domain }

func (l *linear) Evaluate(raw float64) (float64, bool) {
	if !l.domain.Contains(raw) {
		return math.NaN(), false
	}
	return raw*l.slope + l.offset, true
}

// NewLinear builds a named linear calibration function.
func NewLinear(name, unit string, domain Domain, slope, offset float64) Function {
	return &linear{name: name, unit: unit, domain: domain, slope: slope, offset: offset}
}
