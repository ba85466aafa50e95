package cache

import (
	"errors"
	"time"

	"github.com/miruna26/aicore-data-collection/logger"
)

const seenKeyPrefix = "seen:"

// SeenStore remembers which listings were already materialized so repeated
// crawl rounds skip them until the entry expires
type SeenStore struct {
	cache CacheService
	ttl   time.Duration
}

// NewSeenStore creates a store keeping entries for ttl
func NewSeenStore(cache CacheService, ttl time.Duration) *SeenStore {
	return &SeenStore{cache: cache, ttl: ttl}
}

// SeenKey returns the cache key for a listing id
func SeenKey(id string) string {
	return seenKeyPrefix + id
}

// Seen reports whether id was marked. Cache failures count as unseen.
func (s *SeenStore) Seen(id string) bool {
	_, err := s.cache.Get(SeenKey(id))
	if err == nil {
		return true
	}
	if !errors.Is(err, ErrMiss) {
		logger.ForCache().Warn().
			Str("vehicle_id", id).
			Err(err).
			Msg("Seen lookup failed, treating listing as new")
	}
	return false
}

// Mark records id with the store's ttl, storing the uuid it was saved under
func (s *SeenStore) Mark(id, uuid string) error {
	return s.cache.Set(SeenKey(id), []byte(uuid), s.ttl)
}
