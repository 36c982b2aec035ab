package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingEvictsOldest(t *testing.T) {
	r := newRing[int](3)
	for i := 1; i <= 5; i++ {
		r.push(i)
	}

	assert.Equal(t, 3, r.len())
	assert.Equal(t, []int{3, 4, 5}, r.items())
}

func TestRingPartial(t *testing.T) {
	r := newRing[string](4)
	r.push("a")
	r.push("b")

	assert.Equal(t, []string{"a", "b"}, r.items())
}

func TestRingClear(t *testing.T) {
	r := newRing[int](2)
	r.push(1)
	r.push(2)
	r.push(3)

	r.clear()
	assert.Equal(t, 0, r.len())
	assert.Empty(t, r.items())

	r.push(9)
	assert.Equal(t, []int{9}, r.items())
}

func TestRingZeroCapacity(t *testing.T) {
	r := newRing[int](0)
	r.push(1)
	assert.Equal(t, 0, r.len())
}

func TestLastN(t *testing.T) {
	items := []int{1, 2, 3, 4}
	assert.Equal(t, []int{3, 4}, lastN(items, 2))
	assert.Equal(t, items, lastN(items, 0))
	assert.Equal(t, items, lastN(items, 10))
}
