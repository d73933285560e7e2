package output

import "codeberg.org/okkola/labdaq/internal/errors"

const (
	ErrPublishFailed = errors.ErrorCode("output_publish_failed")
	ErrCloseFailed   = errors.ErrorCode("output_close_failed")
)
