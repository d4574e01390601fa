package replay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LRUCache(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("a token can be added once", func(t *testing.T) {
		c, err := NewLRUCache(WithClock(clock))
		require.NoError(t, err)

		assert.False(t, c.TryFind("a.b.c"))
		assert.True(t, c.TryAdd("a.b.c", now.Add(time.Hour)))
		assert.True(t, c.TryFind("a.b.c"))
		assert.False(t, c.TryAdd("a.b.c", now.Add(time.Hour)))
	})

	t.Run("an expired token is forgotten", func(t *testing.T) {
		c, err := NewLRUCache(WithClock(clock))
		require.NoError(t, err)

		require.True(t, c.TryAdd("a.b.c", now))
		assert.False(t, c.TryFind("a.b.c"))
		assert.True(t, c.TryAdd("a.b.c", now.Add(time.Minute)))
	})

	t.Run("a token without expiry is kept", func(t *testing.T) {
		c, err := NewLRUCache(WithClock(clock))
		require.NoError(t, err)

		require.True(t, c.TryAdd("a.b.c", time.Time{}))
		assert.True(t, c.TryFind("a.b.c"))
	})

	t.Run("the oldest token is evicted when full", func(t *testing.T) {
		c, err := NewLRUCache(WithSize(2), WithClock(clock))
		require.NoError(t, err)

		require.True(t, c.TryAdd("one", now.Add(time.Hour)))
		require.True(t, c.TryAdd("two", now.Add(time.Hour)))
		require.True(t, c.TryAdd("three", now.Add(time.Hour)))

		assert.Equal(t, 2, c.Len())
		assert.False(t, c.TryFind("one"))
		assert.True(t, c.TryFind("three"))
	})

	t.Run("empty tokens are rejected", func(t *testing.T) {
		c, err := NewLRUCache()
		require.NoError(t, err)
		assert.False(t, c.TryAdd("", now))
		assert.False(t, c.TryFind(""))
	})

	t.Run("it validates its options", func(t *testing.T) {
		_, err := NewLRUCache(WithSize(0))
		assert.EqualError(t, err, "invalid option: size must be positive")

		_, err = NewLRUCache(WithClock(nil))
		assert.EqualError(t, err, "invalid option: clock cannot be nil")
	})
}
