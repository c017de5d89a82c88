package hashutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringIsDeterministic(t *testing.T) {
	assert.Equal(t, String("feature-a"), String("feature-a"))
	assert.NotEqual(t, String("feature-a"), String("feature-b"))
}

func TestModIsWithinRange(t *testing.T) {
	for _, key := range []string{"a", "b", "user:123", ""} {
		m := Mod(key, 7)
		assert.GreaterOrEqual(t, m, 0)
		assert.Less(t, m, 7)
	}
}

func TestModPanicsOnNonPositiveN(t *testing.T) {
	assert.Panics(t, func() { Mod("x", 0) })
}
