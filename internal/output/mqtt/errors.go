package mqtt

import "codeberg.org/okkola/labdaq/internal/errors"

const (
	ErrInvalidBroker = errors.ErrorCode("mqtt_invalid_broker")
	ErrConnectFailed = errors.ErrorCode("mqtt_connect_failed")
	ErrPublishFailed = errors.ErrorCode("mqtt_publish_failed")
)
