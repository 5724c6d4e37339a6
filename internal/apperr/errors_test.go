package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByKind(t *testing.T) {
	err := New(KindSlotUnavailable, "slot 09:00 is taken")

	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.NotErrorIs(t, err, ErrInsufficientCredits)
}

func TestKindOfWrapped(t *testing.T) {
	inner := Wrap(KindLedgerFailure, "transfer failed", errors.New("connection reset"))
	wrapped := fmt.Errorf("booking: %w", inner)

	assert.Equal(t, KindLedgerFailure, KindOf(wrapped))
	assert.Equal(t, "transfer failed", MessageOf(wrapped))
	assert.ErrorIs(t, wrapped, ErrLedgerFailure)
	assert.Equal(t, "transfer failed: connection reset", inner.Error())
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, "boom", MessageOf(errors.New("boom")))
	assert.Equal(t, "", MessageOf(nil))
}

func TestNewf(t *testing.T) {
	err := Newf(KindTooEarly, "call opens at %s", "08:30")
	assert.Equal(t, "call opens at 08:30", err.Error())
}
