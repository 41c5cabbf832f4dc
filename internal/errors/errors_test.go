package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundError_IsNotFoundError(t *testing.T) {
	err := NewNotFoundError("cart item not found")

	notFoundErr, ok := IsNotFoundError(err)
	assert.True(t, ok)
	assert.Equal(t, "cart item not found", notFoundErr.Message)
	assert.Equal(t, "cart item not found", err.Error())
}

func TestNotFoundError_IsNotFoundError_WithOtherError(t *testing.T) {
	notFoundErr, ok := IsNotFoundError(errors.New("some other error"))
	assert.False(t, ok)
	assert.Nil(t, notFoundErr)
}

func TestNotFoundError_Wrapped(t *testing.T) {
	err := fmt.Errorf("loading record: %w", NewNotFoundError("record not found"))

	nfe, ok := IsNotFoundError(err)
	assert.True(t, ok)
	assert.Equal(t, "record not found", nfe.Message)
}

func TestValidationError_Creation(t *testing.T) {
	details := []ValidationDetail{
		{Field: "quantity", Message: "quantity must be between 1 and 4"},
		{Field: "checkInDate", Message: "checkInDate is required"},
	}

	err := NewValidationError("validation failed", details...)

	assert.Equal(t, "validation failed", err.Error())
	assert.Len(t, err.Details, 2)

	ve, ok := IsValidationError(err)
	assert.True(t, ok)
	assert.Equal(t, "quantity", ve.Details[0].Field)
}

func TestConflictAndForbiddenErrors(t *testing.T) {
	_, ok := IsConflictError(NewConflictError("checkout already in progress"))
	assert.True(t, ok)

	_, ok = IsForbiddenError(NewForbiddenError("record belongs to another user"))
	assert.True(t, ok)

	_, ok = IsConflictError(NewForbiddenError("nope"))
	assert.False(t, ok)
}

func TestDeadlockError(t *testing.T) {
	de, ok := IsDeadlockError(NewDeadlockError("max retries exceeded"))
	assert.True(t, ok)
	assert.Equal(t, "max retries exceeded", de.Error())
}

func TestAvailabilityError(t *testing.T) {
	err := fmt.Errorf("adding item: %w", NewAvailabilityError("no slots left", 7, "2025-06-01"))

	ae, ok := IsAvailabilityError(err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), ae.ServiceID)
	assert.Equal(t, "2025-06-01", ae.Date)
}

func TestInternalError_Creation(t *testing.T) {
	cause := errors.New("redis unavailable")
	err := NewInternalError("failed to save cart", cause)

	assert.Equal(t, cause, err.Cause)
	assert.Contains(t, err.Error(), "failed to save cart")
	assert.Contains(t, err.Error(), "redis unavailable")
	assert.True(t, errors.Is(err, cause))
}

func TestInternalError_NilCause(t *testing.T) {
	err := NewInternalError("no cause", nil)

	assert.Equal(t, "no cause", err.Error())
	assert.Nil(t, err.Unwrap())
}
