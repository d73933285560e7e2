package descriptor

// Operation names a logical driver operation defined by a CommandSpec.
type Operation string

const (
	OpRead      Operation = "read"
	OpWrite     Operation = "write"
	OpConfigure Operation = "configure"
	OpBulkRead  Operation = "bulk_read"
)

// IsValid returns whether the operation is one a driver can dispatch.
func (o Operation) IsValid() bool {
	switch o {
	case OpRead, OpWrite, OpConfigure, OpBulkRead:
		return true
	default:
		return false
	}
}

// CalibrationResolver answers load-time questions about named calibration
// functions so that descriptor validation is total: a descriptor that loads
// can never hit an unknown calibration at runtime.
type CalibrationResolver interface {
	// Resolve returns the raw-value domain and output unit of the named
	// function, or ok=false when no such function is registered.
	Resolve(name string) (min, max float64, unit string, ok bool)
}
