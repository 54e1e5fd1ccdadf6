package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)} }

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func counter(v *int) func(context.Context) (int, error) {
	return func(context.Context) (int, error) {
		*v++
		return *v, nil
	}
}

func TestGetOrCompute_HitAndMiss(t *testing.T) {
	c := New()
	ctx := context.Background()
	calls := 0

	v, err := GetOrCompute(ctx, c, "k", counter(&calls))
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = GetOrCompute(ctx, c, "k", counter(&calls))
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, calls)
	assert.Equal(t, Stats{Hits: 1, Misses: 1}, c.Stats())
}

func TestGetOrCompute_SlidingExpiry(t *testing.T) {
	clk := newFakeClock()
	c := New(WithClock(clk.Now))
	ctx := context.Background()
	calls := 0

	_, _ = GetOrCompute(ctx, c, "k", counter(&calls))

	// Accessed every 10s: sliding (15s) keeps it alive until absolute (30s).
	for i := 0; i < 2; i++ {
		clk.Advance(10 * time.Second)
		v, _ := GetOrCompute(ctx, c, "k", counter(&calls))
		assert.Equal(t, 1, v)
	}
	clk.Advance(10 * time.Second)
	v, _ := GetOrCompute(ctx, c, "k", counter(&calls))
	assert.Equal(t, 2, v, "absolute expiry wins over sliding refresh")

	clk.Advance(16 * time.Second)
	v, _ = GetOrCompute(ctx, c, "k", counter(&calls))
	assert.Equal(t, 3, v, "idle longer than sliding ttl")
}

func TestInvalidate_ForcesCompute(t *testing.T) {
	c := New()
	ctx := context.Background()
	calls := 0

	_, _ = GetOrCompute(ctx, c, "k", counter(&calls))
	c.Invalidate("k", "missing")

	v, err := GetOrCompute(ctx, c, "k", counter(&calls))
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestGetOrCompute_ErrorNotCached(t *testing.T) {
	c := New()
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := GetOrCompute(ctx, c, "k", func(context.Context) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

func TestGetOrCompute_InvalidationDuringComputeIsNotStored(t *testing.T) {
	c := New()
	ctx := context.Background()

	v, err := GetOrCompute(ctx, c, "k", func(context.Context) (string, error) {
		c.Invalidate("k") // a write lands while the read is in flight
		return "stale", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "stale", v)

	v, err = GetOrCompute(ctx, c, "k", func(context.Context) (string, error) { return "fresh", nil })
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
}

func TestGetOrCompute_TypeMismatchRecomputes(t *testing.T) {
	c := New()
	c.Set("k", "text", DefaultEntryOptions)

	v, err := GetOrCompute(context.Background(), c, "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func sameShardKeys(c *Cache, n int) []string {
	target := c.shardFor("seed")
	keys := []string{"seed"}
	for i := 0; len(keys) < n; i++ {
		k := fmt.Sprintf("k%d", i)
		if c.shardFor(k) == target {
			keys = append(keys, k)
		}
	}
	return keys
}

func TestSet_EvictsLowestPriorityFirst(t *testing.T) {
	clk := newFakeClock()
	c := New(WithCapacity(2*shardCount), WithClock(clk.Now))
	keys := sameShardKeys(c, 3)

	c.Set(keys[0], 0, EntryOptions{AbsoluteTTL: time.Minute, Priority: PriorityHigh})
	c.Set(keys[1], 1, EntryOptions{AbsoluteTTL: time.Minute, Priority: PriorityLow})
	c.Set(keys[2], 2, EntryOptions{AbsoluteTTL: time.Minute, Priority: PriorityNormal})

	_, ok := c.Get(keys[1])
	assert.False(t, ok, "low priority evicted")
	_, ok = c.Get(keys[0])
	assert.True(t, ok)
	_, ok = c.Get(keys[2])
	assert.True(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestSet_NeverRemoveSurvivesPressure(t *testing.T) {
	c := New(WithCapacity(shardCount))
	keys := sameShardKeys(c, 2)

	c.Set(keys[0], 0, EntryOptions{AbsoluteTTL: time.Minute, Priority: PriorityNeverRemove})
	c.Set(keys[1], 1, EntryOptions{AbsoluteTTL: time.Minute, Priority: PriorityLow})

	_, ok := c.Get(keys[0])
	assert.True(t, ok)
	_, ok = c.Get(keys[1])
	assert.True(t, ok, "the entry being written is never its own victim")
}

func TestSweep(t *testing.T) {
	clk := newFakeClock()
	c := New(WithClock(clk.Now))
	c.Set("a", 1, EntryOptions{AbsoluteTTL: time.Second})
	c.Set("b", 2, EntryOptions{AbsoluteTTL: time.Hour})

	clk.Advance(2 * time.Second)
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
}

func TestStats_CountsExpirationsOnEveryPath(t *testing.T) {
	clk := newFakeClock()
	c := New(WithCapacity(2*shardCount), WithClock(clk.Now))
	keys := sameShardKeys(c, 3)

	// removed while making room
	c.Set(keys[0], 0, EntryOptions{AbsoluteTTL: time.Second})
	clk.Advance(2 * time.Second)
	c.Set(keys[1], 1, EntryOptions{AbsoluteTTL: time.Minute})
	c.Set(keys[2], 2, EntryOptions{AbsoluteTTL: time.Minute})
	assert.Equal(t, Stats{Expirations: 1}, c.Stats())

	// removed by a read, then by a sweep
	clk = newFakeClock()
	c = New(WithClock(clk.Now))
	c.Set("read", 3, EntryOptions{AbsoluteTTL: time.Second})
	c.Set("swept", 4, EntryOptions{AbsoluteTTL: time.Second})
	clk.Advance(2 * time.Second)
	_, ok := c.Get("read")
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Expirations)
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, Stats{Expirations: 2}, c.Stats())
}

func TestRun_StopsOnCancel(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(WithCapacity(64))
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", (i+j)%10)
				_, err := GetOrCompute(ctx, c, key, func(context.Context) (int, error) { return j, nil })
				assert.NoError(t, err)
				if j%7 == 0 {
					c.Invalidate(key)
				}
			}
		}(i)
	}
	wg.Wait()
}
