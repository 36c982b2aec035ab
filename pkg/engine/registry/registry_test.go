package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	r := New[string, int]()
	assert.NotNil(t, r)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Keys())
}

func TestRegisterAndGet(t *testing.T) {
	r := New[string, int]()

	r.Register("one", 1)
	r.Register("two", 2)

	v, ok := r.Get("one")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = r.Get("three")
	assert.False(t, ok)
	assert.Equal(t, 0, v)
}

func TestRegisterOverwriteKeepsPosition(t *testing.T) {
	r := New[string, string]()

	r.Register("a", "old")
	r.Register("b", "b")
	r.Register("a", "new")

	v, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "new", v)
	assert.Equal(t, []string{"a", "b"}, r.Keys())
	assert.Equal(t, []string{"new", "b"}, r.Values())
}

func TestKeysInsertionOrder(t *testing.T) {
	r := New[string, int]()
	for i, k := range []string{"zeta", "alpha", "mid"} {
		r.Register(k, i)
	}

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, r.Keys())
	assert.Equal(t, []int{0, 1, 2}, r.Values())
}

func TestDelete(t *testing.T) {
	r := New[string, int]()
	r.Register("a", 1)
	r.Register("b", 2)
	r.Register("c", 3)

	assert.True(t, r.Delete("b"))
	assert.False(t, r.Delete("b"))

	assert.False(t, r.Has("b"))
	assert.Equal(t, []string{"a", "c"}, r.Keys())
	assert.Equal(t, 2, r.Len())
}

func TestDeleteThenRegisterMovesToEnd(t *testing.T) {
	r := New[string, int]()
	r.Register("a", 1)
	r.Register("b", 2)

	r.Delete("a")
	r.Register("a", 3)

	assert.Equal(t, []string{"b", "a"}, r.Keys())
}

func TestClear(t *testing.T) {
	r := New[string, int]()
	r.Register("a", 1)
	r.Register("b", 2)

	r.Clear()

	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Keys())
	r.Register("c", 3)
	assert.Equal(t, []string{"c"}, r.Keys())
}

func TestRange(t *testing.T) {
	r := New[string, int]()
	r.Register("one", 1)
	r.Register("two", 2)
	r.Register("three", 3)

	var visited []string
	r.Range(func(k string, v int) bool {
		visited = append(visited, fmt.Sprintf("%s=%d", k, v))
		return true
	})

	assert.Equal(t, []string{"one=1", "two=2", "three=3"}, visited)
}

func TestRangeReverse(t *testing.T) {
	r := New[string, int]()
	r.Register("first", 1)
	r.Register("second", 2)
	r.Register("third", 3)

	var visited []string
	r.RangeReverse(func(k string, _ int) bool {
		visited = append(visited, k)
		return true
	})

	assert.Equal(t, []string{"third", "second", "first"}, visited)
}

func TestRangeEarlyStop(t *testing.T) {
	r := New[string, int]()
	r.Register("one", 1)
	r.Register("two", 2)

	count := 0
	r.Range(func(string, int) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)

	count = 0
	r.RangeReverse(func(string, int) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}

func TestRangeAllowsMutation(t *testing.T) {
	r := New[string, int]()
	r.Register("one", 1)
	r.Register("two", 2)

	visited := 0
	r.Range(func(k string, _ int) bool {
		visited++
		r.Delete(k)
		r.Register(k+"-copy", 0)
		return true
	})

	assert.Equal(t, 2, visited)
	assert.Equal(t, []string{"one-copy", "two-copy"}, r.Keys())
}

func TestConcurrentRegister(t *testing.T) {
	r := New[int, int]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r.Register(n, n*2)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, r.Len())
	assert.Len(t, r.Keys(), 100)
	for i := 0; i < 100; i++ {
		v, ok := r.Get(i)
		assert.True(t, ok)
		assert.Equal(t, i*2, v)
	}
}

func TestConcurrentReadWrite(t *testing.T) {
	r := New[string, int]()
	r.Register("shared", 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			r.Register(fmt.Sprintf("k%d", n), n)
		}(i)
		go func() {
			defer wg.Done()
			_, _ = r.Get("shared")
			_ = r.Keys()
			r.Range(func(string, int) bool { return true })
		}()
	}
	wg.Wait()

	assert.Equal(t, 51, r.Len())
}
