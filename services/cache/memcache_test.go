package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// This test requires a running memcached instance
// If memcached is not available, the test will be skipped
func TestMemcacheService(t *testing.T) {
	mc := NewMemcacheService("localhost:11211")
	if err := mc.Ping(); err != nil {
		t.Skip("Memcached is not available, skipping test")
	}

	err := mc.Set("test_key", []byte("test_value"), 1*time.Second)
	assert.NoError(t, err)

	value, err := mc.Get("test_key")
	assert.NoError(t, err)
	assert.Equal(t, "test_value", string(value))

	err = mc.Delete("test_key")
	assert.NoError(t, err)

	_, err = mc.Get("test_key")
	assert.ErrorIs(t, err, ErrMiss)

	// deleting twice is fine
	assert.NoError(t, mc.Delete("test_key"))
}

func TestSeenStoreWithMemcache(t *testing.T) {
	mc := NewMemcacheService("localhost:11211")
	if err := mc.Ping(); err != nil {
		t.Skip("Memcached is not available, skipping test")
	}

	store := NewSeenStore(mc, time.Minute)
	id := "memcache-test-" + time.Now().Format("150405.000000")
	assert.False(t, store.Seen(id))
	require.NoError(t, store.Mark(id, "uuid-1"))
	assert.True(t, store.Seen(id))
	require.NoError(t, mc.Delete(SeenKey(id)))
	assert.False(t, store.Seen(id))
}
