package radamsa

import (
	"sync"
	"sync/atomic"
)

// SeedCounter issues implicit seeds: 0, 1, 2, ... shared by every caller
// holding the same counter. Each value is handed out once until the counter
// wraps after 2^32 draws, after which values repeat.
//
// Issue order across goroutines follows the atomic increment, not wall-clock
// call order.
type SeedCounter struct {
	next atomic.Uint32
}

// NewSeedCounter returns a counter whose first implicit seed is 0.
func NewSeedCounter() *SeedCounter {
	return &SeedCounter{}
}

// NewSeedCounterFrom returns a counter whose first implicit seed is start.
func NewSeedCounterFrom(start uint32) *SeedCounter {
	c := &SeedCounter{}
	c.next.Store(start)
	return c
}

// Next returns the current value and advances the counter.
func (c *SeedCounter) Next() uint32 {
	return c.next.Add(1) - 1
}

// Peek returns the value the next call to Next will return.
func (c *SeedCounter) Peek() uint32 {
	return c.next.Load()
}

// Resolve returns *explicit when set, leaving the counter untouched,
// and draws from the counter otherwise.
func (c *SeedCounter) Resolve(explicit *uint32) uint32 {
	if explicit != nil {
		return *explicit
	}
	return c.Next()
}

var (
	defaultSeeds     *SeedCounter
	defaultSeedsOnce sync.Once
)

// DefaultSeeds returns the process-wide counter used by Mutators created
// without WithSeedCounter. It is created on first use and never reset.
func DefaultSeeds() *SeedCounter {
	defaultSeedsOnce.Do(func() {
		defaultSeeds = NewSeedCounter()
	})
	return defaultSeeds
}
