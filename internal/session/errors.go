package session

import "codeberg.org/okkola/labdaq/internal/errors"

const (
	// Configuration errors
	ErrConfigInvalid = errors.ErrorCode("session_config_invalid")
	ErrUnknownDevice = errors.ErrorCode("session_unknown_device")

	// Lifecycle errors
	ErrStopped         = errors.ErrorCode("session_stopped")
	ErrShutdownTimeout = errors.ErrorCode("worker_shutdown_timeout")
	ErrDeviceTeardown  = errors.ErrorCode("session_device_teardown_failed")
)
