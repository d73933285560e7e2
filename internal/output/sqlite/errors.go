package sqlite

import "codeberg.org/okkola/labdaq/internal/errors"

const (
	ErrInvalidDBPath     = errors.ErrorCode("archive_invalid_db_path")
	ErrStorageInit       = errors.ErrorCode("archive_storage_init_failed")
	ErrTransactionFailed = errors.ErrorCode("archive_transaction_failed")
	ErrStorageClose      = errors.ErrorCode("archive_storage_close_failed")
)
