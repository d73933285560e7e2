package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/okkola/labdaq/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryWrapPreservesCause(t *testing.T) {
	errFactory := errors.New()

	cause := fmt.Errorf("connection refused")
	err := errFactory.Wrap(errors.ErrOperationFailed, cause)

	require.Error(t, err)
	assert.Equal(t, errors.ErrOperationFailed, err.Code())
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWithDataAppearsInMessage(t *testing.T) {
	errFactory := errors.New()

	err := errFactory.WithData(errors.ErrResourceNotFound, "lockin-1")

	assert.Contains(t, err.Error(), "lockin-1")
	assert.Equal(t, "lockin-1", err.GetData())
}

func TestHasCode(t *testing.T) {
	errFactory := errors.New()

	inner := errFactory.New(errors.ErrTimeout)
	outer := errFactory.Wrap(errors.ErrOperationFailed, inner)

	assert.True(t, errors.HasCode(outer, errors.ErrTimeout))
	assert.True(t, errors.HasCode(outer, errors.ErrOperationFailed))
	assert.False(t, errors.HasCode(outer, errors.ErrInternal))
}

func TestUnknownCodeFallsBackToCodeString(t *testing.T) {
	errFactory := errors.New()

	err := errFactory.New(errors.ErrorCode("descriptor_exploded"))

	assert.Equal(t, "descriptor_exploded", err.Error())
}
