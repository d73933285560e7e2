package session

import "time"

// EventKind classifies a session diagnostic event.
type EventKind string

const (
	EventWorkerStarted   EventKind = "worker_started"
	EventWorkerStopped   EventKind = "worker_stopped"
	EventDeviceErrored   EventKind = "device_errored"
	EventCommRetry       EventKind = "comm_retry"
	EventDomainViolation EventKind = "domain_violation"
	EventSettingsUpdated EventKind = "settings_updated"
	EventShutdownTimeout EventKind = "worker_shutdown_timeout"
)

// Event is one diagnostic emitted on the session's event channel. Events are
// advisory: the sample stream alone carries the measurement data.
type Event struct {
	Kind     EventKind
	DeviceID string
	Time     time.Time
	Detail   string
	Err      error
}

// WorkerState is the lifecycle state of one sampler worker.
type WorkerState int32

const (
	StateIdle WorkerState = iota
	StateConfiguring
	StateSampling
	StatePaused
	StateStopped
	StateErrored
)

func (s WorkerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfiguring:
		return "configuring"
	case StateSampling:
		return "sampling"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}
