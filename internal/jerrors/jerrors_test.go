package jerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKind(t *testing.T) {
	err := New(InvalidParameter, "lsh.config", "hash_num must be >= 1")
	assert.True(t, Is(err, InvalidParameter))
	assert.False(t, Is(err, LengthUnmatch))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(Storage, "table.pack", cause, "flush failed")
	assert.True(t, Is(err, Storage))
	assert.ErrorIs(t, err, cause)
}

func TestErrorMessageIncludesOp(t *testing.T) {
	err := New(ArrayRange, "lsh.set_row", "table index %d out of range", 9)
	assert.Contains(t, err.Error(), "lsh.set_row")
	assert.Contains(t, err.Error(), "array_range")
}
