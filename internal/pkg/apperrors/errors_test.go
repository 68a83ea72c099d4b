package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewValidationErrorWrapsSentinel(t *testing.T) {
	err := NewValidationError("amount", "must be between 1000 and 100000")

	assert.True(t, errors.Is(err, ErrValidation))

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "amount", ve.Field)
	assert.Contains(t, err.Error(), "amount")
}

func TestWrapDatabaseError(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapDatabaseError(cause, "failed to load installment")

	assert.True(t, errors.Is(err, ErrDatabase))
	assert.True(t, errors.Is(err, cause))

	var appErr *AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, "DB_ERROR", appErr.Code)
}
