package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByKind(t *testing.T) {
	err := InvalidState("cannot deliver from %s", "DRAFT")
	wrapped := fmt.Errorf("commitment: mark delivered: %w", err)

	assert.ErrorIs(t, wrapped, ErrInvalidState)
	assert.NotErrorIs(t, wrapped, ErrConflict)
	assert.Equal(t, KindInvalidState, KindOf(wrapped))
}

func TestKindOfInfrastructureError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("connection reset")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Wrap(KindConflict, cause, "open change request exists")

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "duplicate key")
}
