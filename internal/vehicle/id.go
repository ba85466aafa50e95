package vehicle

import (
	"math/rand"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces surrogate ids
type IDGenerator func() string

// DefaultIDGenerator returns a random v4 UUID
func DefaultIDGenerator() string {
	return uuid.NewString()
}

// NewSeededIDGenerator returns a generator producing the same v4 UUID sequence
// for the same seed.
func NewSeededIDGenerator(seed int64) IDGenerator {
	var mu sync.Mutex
	src := rand.New(rand.NewSource(seed))

	return func() string {
		mu.Lock()
		defer mu.Unlock()

		id, err := uuid.NewRandomFromReader(src)
		if err != nil {
			return uuid.NewString()
		}
		return id.String()
	}
}
