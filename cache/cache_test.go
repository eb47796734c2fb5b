package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	a := Key([]byte("hello"), "ocr=false")
	assert.Len(t, a, 64)
	assert.Equal(t, a, Key([]byte("hello"), "ocr=false"))
	assert.NotEqual(t, a, Key([]byte("hello"), "ocr=true"))
	assert.NotEqual(t, a, Key([]byte("hellp"), "ocr=false"))
	// the separator keeps content and fingerprint apart
	assert.NotEqual(t, Key([]byte("ab"), "c"), Key([]byte("a"), "bc"))
}

func TestGetAdd(t *testing.T) {
	c, err := New[string](2)
	require.NoError(t, err)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Add("a", "1")
	c.Add("b", "2")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	// "b" is now least recently used
	c.Add("c", "3")
	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)

	c.Purge()
	assert.Zero(t, c.Len())
}

func TestNilCache(t *testing.T) {
	var c *Cache[int]
	c.Add("a", 1)
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
	c.Purge()
}

func TestNewInvalidSize(t *testing.T) {
	_, err := New[int](0)
	assert.Error(t, err)
}

func TestConcurrentUse(t *testing.T) {
	c, err := New[int](64)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				k := fmt.Sprint(i, "-", j%10)
				c.Add(k, j)
				c.Get(k)
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}
