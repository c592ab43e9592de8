package cache

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidCapacity(t *testing.T) {
	_, err := New[string]("test", 0)
	assert.Error(t, err)

	_, err = New[string]("test", -1)
	assert.Error(t, err)
}

func TestGetAdd(t *testing.T) {
	c, err := New[string]("test", 2)
	require.NoError(t, err)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Add("a", "1")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestDoMemoizes(t *testing.T) {
	c, err := New[string]("test", 4)
	require.NoError(t, err)

	calls := 0
	compute := func() (string, error) {
		calls++
		return "value", nil
	}

	for i := 0; i < 5; i++ {
		v, err := c.Do("key", compute)
		require.NoError(t, err)
		assert.Equal(t, "value", v)
	}

	// The underlying call fires at most once per distinct key.
	assert.Equal(t, 1, calls)
}

func TestDoDoesNotCacheErrors(t *testing.T) {
	c, err := New[string]("test", 4)
	require.NoError(t, err)

	calls := 0
	fail := func() (string, error) {
		calls++
		return "", errors.New("backend down")
	}

	_, err = c.Do("key", fail)
	assert.Error(t, err)
	_, err = c.Do("key", fail)
	assert.Error(t, err)

	// Errors are retried, not memoized.
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, c.Len())
}

func TestEvictsOldestWhenFull(t *testing.T) {
	c, err := New[int]("test", 2)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		c.Add(fmt.Sprintf("k%d", i), i)
	}

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("k0")
	assert.False(t, ok, "oldest entry should be evicted")
	v, ok := c.Get("k2")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}
