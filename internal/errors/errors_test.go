package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorUnwrapsReason(t *testing.T) {
	err := fmt.Errorf("checkout: %w", Invalid(ErrBidTooLow))

	assert.True(t, IsValidation(err))
	assert.True(t, errors.Is(err, ErrBidTooLow))
	assert.False(t, errors.Is(err, ErrAuctionEnded))
	assert.Contains(t, err.Error(), "bid must exceed")
}

func TestInconsistencyIsExtractedThroughWrapping(t *testing.T) {
	err := fmt.Errorf("settle ticket: %w", Inconsistent(KindOversold, "ticket type %d has %d left", 7, 0))

	f, ok := AsInconsistency(err)
	assert.True(t, ok)
	assert.Equal(t, KindOversold, f.Kind)
	assert.Equal(t, "ticket type 7 has 0 left", f.Detail)
	assert.False(t, IsValidation(err))
}

func TestTransientAndAuthenticity(t *testing.T) {
	base := errors.New("connection reset")
	err := Transient("create payment session", base)
	assert.True(t, IsTransient(err))
	assert.True(t, errors.Is(err, base))

	_, ok := AsAuthenticity(&AuthenticityError{Err: errors.New("bad signature")})
	assert.True(t, ok)
	_, ok = AsAuthenticity(err)
	assert.False(t, ok)
}
