package dedupe

import "sync"

const (
	// DefaultCapacity is the soft cap before the cache trims itself.
	DefaultCapacity = 10000
	// DefaultTrimTo is the number of most recent keys kept on overflow.
	DefaultTrimTo = 5000
)

// Cache is a bounded, insertion-ordered set of processed-delivery keys.
//
// It is a noise filter, not a correctness mechanism: it only suppresses
// redundant reprocessing work within one process lifetime. True idempotency
// must come from the store's create-if-absent semantics. Eviction drops the
// oldest keys first and is O(1) amortized.
type Cache struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	order    []string
	head     int
	capacity int
	trimTo   int
}

func NewCache(capacity, trimTo int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if trimTo <= 0 || trimTo > capacity {
		trimTo = capacity / 2
	}
	return &Cache{
		seen:     make(map[string]struct{}, capacity),
		order:    make([]string, 0, capacity),
		capacity: capacity,
		trimTo:   trimTo,
	}
}

func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[key]
	return ok
}

// Add records a key as processed, evicting oldest entries once the cache
// grows past its capacity.
func (c *Cache) Add(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[key]; ok {
		return
	}
	c.seen[key] = struct{}{}
	c.order = append(c.order, key)

	if len(c.seen) <= c.capacity {
		return
	}
	for len(c.seen) > c.trimTo {
		delete(c.seen, c.order[c.head])
		c.head++
	}
	// Compact the backing slice once the dead prefix dominates it.
	if c.head > len(c.order)/2 {
		c.order = append([]string(nil), c.order[c.head:]...)
		c.head = 0
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
