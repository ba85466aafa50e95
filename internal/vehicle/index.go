package vehicle

import "sync"

// Index maps source ids to their single Vehicle and tracks listing URLs
// already visited. It is safe for concurrent use; the vehicles it hands out
// are not.
type Index struct {
	mu    sync.RWMutex
	byID  map[string]*Vehicle
	order []string
	urls  map[string]struct{}
	opts  []Option
}

// NewIndex creates an empty index; opts are applied to every vehicle it creates
func NewIndex(opts ...Option) *Index {
	return &Index{
		byID: make(map[string]*Vehicle),
		urls: make(map[string]struct{}),
		opts: opts,
	}
}

// GetOrCreate returns the vehicle for id, creating it on first sight.
// created is true when the vehicle is new.
func (idx *Index) GetOrCreate(id string) (v *Vehicle, created bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if v, ok := idx.byID[id]; ok {
		return v, false
	}
	v = New(id, idx.opts...)
	idx.byID[id] = v
	idx.order = append(idx.order, id)
	return v, true
}

// Get returns the vehicle for id if present
func (idx *Index) Get(id string) (*Vehicle, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	v, ok := idx.byID[id]
	return v, ok
}

// MarkURL returns true if the URL was newly added, false if already present
func (idx *Index) MarkURL(url string) bool {
	if url == "" {
		return false
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.urls[url]; exists {
		return false
	}
	idx.urls[url] = struct{}{}
	return true
}

// SeenURL returns true if the URL has already been visited
func (idx *Index) SeenURL(url string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, exists := idx.urls[url]
	return exists
}

// Vehicles returns the vehicles in discovery order
func (idx *Index) Vehicles() []*Vehicle {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]*Vehicle, 0, len(idx.order))
	for _, id := range idx.order {
		out = append(out, idx.byID[id])
	}
	return out
}

// Len returns the number of vehicles tracked
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.order)
}
