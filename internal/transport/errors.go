package transport

import "codeberg.org/okkola/labdaq/internal/errors"

const (
	ErrUnknownKind    = errors.ErrorCode("transport_unknown_kind")
	ErrConnectFailed  = errors.ErrorCode("transport_connect_failed")
	ErrExchangeFailed = errors.ErrorCode("transport_exchange_failed")
	ErrClosed         = errors.ErrorCode("transport_closed")
	ErrBadAddress     = errors.ErrorCode("transport_bad_address")
)
