package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 5, 22, 9, 15, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestTTLCache_ExpiryWithSimulatedClock(t *testing.T) {
	tests := []struct {
		name    string
		advance time.Duration
		found   bool
	}{
		{name: "read at 0.5s returns value", advance: 500 * time.Millisecond, found: true},
		{name: "read at 1.1s is absent", advance: 1100 * time.Millisecond, found: false},
		{name: "read exactly at expiry is absent", advance: time.Second, found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			c := NewTTLCache(time.Hour, 0, WithClock(clock.Now))

			value := map[string]int{"strike": 24950}
			c.Set("k", value, time.Second)
			clock.Advance(tt.advance)

			got, ok := c.Get("k")
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, value, got)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestTTLCache_DefaultTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewTTLCache(10*time.Second, 0, WithClock(clock.Now))

	c.Set("k", "v")
	clock.Advance(9 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestTTLCache_DeleteAndKeys(t *testing.T) {
	clock := newFakeClock()
	c := NewTTLCache(time.Minute, 0, WithClock(clock.Now))

	c.Set("b", 2)
	c.Set("a", 1)
	c.Set("short", 3, time.Second)

	assert.Equal(t, []string{"a", "b", "short"}, c.Keys())

	clock.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, c.Keys())

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.False(t, c.Delete("short"), "expired entry does not count as existing")
	assert.Equal(t, []string{"b"}, c.Keys())
}

func TestTTLCache_PurgeAndFlush(t *testing.T) {
	clock := newFakeClock()
	c := NewTTLCache(time.Minute, 0, WithClock(clock.Now))

	c.Set("a", 1, time.Second)
	c.Set("b", 2, time.Second)
	c.Set("c", 3)

	clock.Advance(time.Second)
	assert.Equal(t, 2, c.Purge())

	c.Flush()
	assert.Empty(t, c.Keys())
}

func TestTTLCache_SweeperRemovesExpired(t *testing.T) {
	c := NewTTLCache(time.Minute, 5*time.Millisecond)
	defer c.Close()

	c.Set("k", "v", time.Millisecond)

	require.Eventually(t, func() bool {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return len(c.items) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestTTLCache_ConcurrentAccess(t *testing.T) {
	c := NewTTLCache(time.Minute, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.Set("k", j)
				c.Get("k")
				c.Keys()
			}
		}(i)
	}
	wg.Wait()

	_, ok := c.Get("k")
	assert.True(t, ok)
}
