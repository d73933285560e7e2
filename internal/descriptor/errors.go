package descriptor

import "codeberg.org/okkola/labdaq/internal/errors"

const (
	// Load errors
	ErrReadFailed  = errors.ErrorCode("descriptor_read_failed")
	ErrNotYAML     = errors.ErrorCode("descriptor_not_yaml")
	ErrEmptyDir    = errors.ErrorCode("descriptor_dir_empty")
	ErrDuplicateID = errors.ErrorCode("descriptor_duplicate_device")

	// Validation errors
	ErrMissingField        = errors.ErrorCode("descriptor_missing_field")
	ErrNoChannels          = errors.ErrorCode("descriptor_no_channels")
	ErrNoReadCommand       = errors.ErrorCode("descriptor_no_read_command")
	ErrDuplicateChannel    = errors.ErrorCode("descriptor_duplicate_channel")
	ErrDuplicateOperation  = errors.ErrorCode("descriptor_duplicate_operation")
	ErrInvalidRange        = errors.ErrorCode("descriptor_invalid_range")
	ErrUnknownUnit         = errors.ErrorCode("descriptor_unknown_unit")
	ErrMalformedTemplate   = errors.ErrorCode("descriptor_malformed_template")
	ErrBadReplyPattern     = errors.ErrorCode("descriptor_bad_reply_pattern")
	ErrUnknownOperation    = errors.ErrorCode("descriptor_unknown_operation")
	ErrUnknownCalibration  = errors.ErrorCode("descriptor_unknown_calibration")
	ErrCalibrationDomain   = errors.ErrorCode("descriptor_calibration_domain")
	ErrCalibrationUnit     = errors.ErrorCode("descriptor_calibration_unit")
)
