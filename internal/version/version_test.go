package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStampOrdering(t *testing.T) {
	a := Stamp{Owner: "a", Version: 5}
	b := Stamp{Owner: "a", Version: 6}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.True(t, b.GreaterOrEqual(a))
	assert.True(t, a.GreaterOrEqual(a))
}

func TestStampOrderingCrossOwner(t *testing.T) {
	a := Stamp{Owner: "a", Version: 100}
	b := Stamp{Owner: "b", Version: 1}
	assert.True(t, a.Less(b), "owner 'b' sorts after 'a' lexicographically")
}

func TestClockMergeIsPointwiseMax(t *testing.T) {
	c1 := NewClock()
	c1.Observe("owner-a", 3)
	c1.Observe("owner-b", 1)

	c2 := NewClock()
	c2.Observe("owner-a", 2)
	c2.Observe("owner-b", 5)
	c2.Observe("owner-c", 9)

	c1.Merge(c2)

	assert.EqualValues(t, 3, c1.Get("owner-a"))
	assert.EqualValues(t, 5, c1.Get("owner-b"))
	assert.EqualValues(t, 9, c1.Get("owner-c"))
}

func TestEmptyClockHasSeenNothing(t *testing.T) {
	c := NewClock()
	assert.EqualValues(t, 0, c.Get("anyone"))
	assert.False(t, c.Covers("anyone", 1))
	assert.True(t, c.Covers("anyone", 0))
}

func TestClockFromMapRoundTrip(t *testing.T) {
	m := map[Owner]Version{"a": 7, "b": 2}
	c := FromMap(m)
	snap := c.Snapshot()
	assert.Equal(t, m, snap)
}
