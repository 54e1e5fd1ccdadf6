// Package cache is the in-process response cache shared by all requests.
//
// Entries expire at the earlier of their absolute deadline and their sliding
// deadline; reading an entry pushes the sliding deadline forward. Writers
// call Invalidate for every key a mutation affects before they return, which
// is what gives readers read-after-write behaviour.
package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	// PriorityNeverRemove entries leave only by expiry or invalidation.
	PriorityNeverRemove
)

type EntryOptions struct {
	AbsoluteTTL time.Duration
	SlidingTTL  time.Duration
	Priority    Priority
}

// DefaultEntryOptions are used by GetOrCompute.
var DefaultEntryOptions = EntryOptions{
	AbsoluteTTL: 30 * time.Second,
	SlidingTTL:  15 * time.Second,
	Priority:    PriorityHigh,
}

const shardCount = 16

type entry struct {
	value    any
	absolute time.Time
	sliding  time.Duration
	deadline time.Time
	priority Priority
}

func (e *entry) expiresAt() time.Time {
	if e.sliding > 0 && e.deadline.Before(e.absolute) {
		return e.deadline
	}
	return e.absolute
}

func (e *entry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt())
}

type shard struct {
	mu    sync.Mutex
	items map[string]*entry
	// epoch moves on every invalidation so in-flight computations started
	// before a write do not repopulate the shard with stale values.
	epoch uint64
}

type Stats struct {
	Hits   uint64
	Misses uint64
	// Evictions counts entries dropped to respect capacity.
	Evictions uint64
	// Expirations counts expired entries removed by Get, Sweep or eviction.
	Expirations uint64
}

type Cache struct {
	shards        [shardCount]*shard
	shardCapacity int
	entryOptions  EntryOptions
	now           func() time.Time

	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64
}

type Option func(*Cache)

// WithCapacity bounds the number of entries; zero means unbounded.
func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.shardCapacity = (n + shardCount - 1) / shardCount
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithEntryOptions(o EntryOptions) Option {
	return func(c *Cache) { c.entryOptions = o }
}

func New(opts ...Option) *Cache {
	c := &Cache{entryOptions: DefaultEntryOptions, now: time.Now}
	for i := range c.shards {
		c.shards[i] = &shard{items: make(map[string]*entry)}
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cache) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%shardCount]
}

// Get returns a live entry and slides its deadline.
func (c *Cache) Get(key string) (any, bool) {
	s := c.shardFor(key)
	now := c.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		return nil, false
	}
	if e.expired(now) {
		delete(s.items, key)
		c.expirations.Add(1)
		return nil, false
	}
	if e.sliding > 0 {
		e.deadline = now.Add(e.sliding)
	}
	return e.value, true
}

// Set stores value under key, evicting if the shard is over capacity.
func (c *Cache) Set(key string, value any, o EntryOptions) {
	s := c.shardFor(key)
	s.mu.Lock()
	c.setLocked(s, key, value, o)
	s.mu.Unlock()
}

func (c *Cache) setLocked(s *shard, key string, value any, o EntryOptions) {
	now := c.now()
	e := &entry{value: value, sliding: o.SlidingTTL, priority: o.Priority}
	if o.AbsoluteTTL > 0 {
		e.absolute = now.Add(o.AbsoluteTTL)
	} else {
		e.absolute = now.Add(o.SlidingTTL)
	}
	if o.SlidingTTL > 0 {
		e.deadline = now.Add(o.SlidingTTL)
	}
	s.items[key] = e

	if c.shardCapacity > 0 && len(s.items) > c.shardCapacity {
		c.evictLocked(s, now, key)
	}
}

// evictLocked drops expired entries, then the lowest-priority entries with
// the nearest expiry until the shard fits. keep is never chosen.
func (c *Cache) evictLocked(s *shard, now time.Time, keep string) {
	for k, e := range s.items {
		if e.expired(now) {
			delete(s.items, k)
			c.expirations.Add(1)
		}
	}
	for len(s.items) > c.shardCapacity {
		victim := ""
		var ve *entry
		for k, e := range s.items {
			if k == keep || e.priority == PriorityNeverRemove {
				continue
			}
			if ve == nil || e.priority < ve.priority ||
				(e.priority == ve.priority && e.expiresAt().Before(ve.expiresAt())) {
				victim, ve = k, e
			}
		}
		if ve == nil {
			return
		}
		delete(s.items, victim)
		c.evictions.Add(1)
	}
}

// Invalidate removes the keys immediately.
func (c *Cache) Invalidate(keys ...string) {
	for _, key := range keys {
		s := c.shardFor(key)
		s.mu.Lock()
		delete(s.items, key)
		s.epoch++
		s.mu.Unlock()
	}
}

// Len counts stored entries, including ones not yet swept.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += len(s.items)
		s.mu.Unlock()
	}
	return n
}

// Sweep removes expired entries and reports how many went.
func (c *Cache) Sweep() int {
	now := c.now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.items {
			if e.expired(now) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	c.expirations.Add(uint64(removed))
	return removed
}

// Run sweeps every interval until ctx is done.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Sweep()
		}
	}
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
	}
}

// GetOrCompute returns the cached value for key or computes, stores and
// returns it. compute runs without any lock held, so concurrent misses on
// one key may each call it. Errors are returned and not cached.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, compute func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			c.hits.Add(1)
			return typed, nil
		}
	}
	c.misses.Add(1)

	s := c.shardFor(key)
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	v, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	s.mu.Lock()
	if s.epoch == epoch {
		c.setLocked(s, key, v, c.entryOptions)
	}
	s.mu.Unlock()
	return v, nil
}
