package errors

import (
	// Go Internal Packages
	"fmt"
	"testing"

	// External Packages
	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("handler: %w", InsufficientBalanceErr())

	assert.Equal(t, Insufficient, KindOf(err))
	assert.True(t, IsKind(Insufficient, err))
	assert.True(t, Is(err, ErrInsufficientFunds))
	assert.Equal(t, "insufficient balance", Message(err))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Other, KindOf(New("boom")))
	assert.False(t, IsKind(Invalid, nil))
	assert.Equal(t, "internal error", Message(New("boom")))
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(InvalidBodyErr(New("bad json"))))
	assert.False(t, Retryable(NotFoundErr("transaction", nil)))
	assert.True(t, Retryable(StorageErr("settle", New("timeout"))))
	assert.True(t, Retryable(New("unclassified")))
}

func TestValidationErrs(t *testing.T) {
	ve := ValidationErrs()
	assert.NoError(t, ve.Err())

	ve.Add("amount", "must be at least 10.00")
	ve.Add("client.name", "cannot be empty")
	ve.Add("amount", "must have at most 2 decimal places")

	assert.Equal(t, 2, ve.Len())
	assert.EqualError(t, ve.Err(),
		"amount must be at least 10.00, must have at most 2 decimal places; client.name cannot be empty")
}

func TestEmptyParamErr(t *testing.T) {
	err := EmptyParamErr("pixKey")
	assert.True(t, IsKind(Invalid, err))
	assert.Contains(t, err.Error(), "pixKey cannot be empty")
}
