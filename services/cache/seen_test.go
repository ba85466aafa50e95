package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockCacheService is a mock implementation of CacheService
type MockCacheService struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

// Ensure MockCacheService implements CacheService
var _ CacheService = (*MockCacheService)(nil)

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Duration),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, ErrMiss
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.data[key] = value
	m.ttls[key] = expiration
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	delete(m.data, key)
	return nil
}

func TestSeenStore(t *testing.T) {
	mock := NewMockCacheService()
	store := NewSeenStore(mock, time.Hour)

	assert.False(t, store.Seen("AT1"))
	require.NoError(t, store.Mark("AT1", "uuid-1"))
	assert.True(t, store.Seen("AT1"))
	assert.False(t, store.Seen("AT2"))

	assert.Equal(t, []byte("uuid-1"), mock.data["seen:AT1"])
	assert.Equal(t, time.Hour, mock.ttls["seen:AT1"])

	require.NoError(t, mock.Delete(SeenKey("AT1")))
	assert.False(t, store.Seen("AT1"))
}

func TestSeenStoreCacheFailure(t *testing.T) {
	mock := NewMockCacheService()
	mock.data["seen:AT1"] = []byte("uuid-1")
	mock.getErr = errors.New("connection refused")

	store := NewSeenStore(mock, time.Hour)
	assert.False(t, store.Seen("AT1"))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, err := c.Get("k")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set("k", []byte("v"), time.Minute))
	require.NoError(t, c.Set("forever", []byte("x"), 0))

	v, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))

	now = now.Add(time.Minute)
	_, err = c.Get("k")
	assert.ErrorIs(t, err, ErrMiss)

	v, err = c.Get("forever")
	require.NoError(t, err)
	assert.Equal(t, "x", string(v))

	require.NoError(t, c.Delete("forever"))
	_, err = c.Get("forever")
	assert.ErrorIs(t, err, ErrMiss)
}
