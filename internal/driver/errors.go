package driver

import "codeberg.org/okkola/labdaq/internal/errors"

const (
	// Capability errors
	ErrUnsupportedCapability = errors.ErrorCode("unsupported_capability")
	ErrUnknownChannel        = errors.ErrorCode("driver_unknown_channel")

	// Wire errors
	ErrCommunication = errors.ErrorCode("communication_failed")
	ErrReplyParse    = errors.ErrorCode("driver_reply_parse_failed")

	// Lifecycle errors
	ErrOpenTransport = errors.ErrorCode("driver_open_transport_failed")
	ErrCloseFailed   = errors.ErrorCode("driver_close_failed")
)
