package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC)}
}

func TestLRUCache_BasicOperations(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)

	t.Run("SetAndGet", func(t *testing.T) {
		cache.Set("key1", []byte("value1"), 0)
		val, ok := cache.Get("key1")
		assert.True(t, ok)
		assert.Equal(t, []byte("value1"), val)
	})

	t.Run("GetNonExistent", func(t *testing.T) {
		val, ok := cache.Get("nonexistent")
		assert.False(t, ok)
		assert.Nil(t, val)
	})

	t.Run("UpdateExisting", func(t *testing.T) {
		cache.Set("key2", []byte("original"), 0)
		cache.Set("key2", []byte("updated"), 0)
		val, ok := cache.Get("key2")
		assert.True(t, ok)
		assert.Equal(t, []byte("updated"), val)
	})
}

func TestLRUCache_Expiration(t *testing.T) {
	clock := newClock()
	cache := newLRUCache(10, time.Hour, clock.Now)

	cache.Set("short", []byte("a"), time.Minute)
	cache.Set("default", []byte("b"), 0)

	clock.Advance(59 * time.Second)
	_, ok := cache.Get("short")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = cache.Get("short")
	assert.False(t, ok)
	_, ok = cache.Get("default")
	assert.True(t, ok)

	cache.Set("other", []byte("c"), time.Minute)
	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, cache.CleanupExpired())
	assert.Equal(t, 1, cache.Size())
}

func TestLRUCache_Eviction(t *testing.T) {
	cache := NewLRUCache(3, time.Minute)
	cache.Set("key1", []byte("1"), 0)
	cache.Set("key2", []byte("2"), 0)
	cache.Set("key3", []byte("3"), 0)

	cache.Get("key1")
	cache.Set("key4", []byte("4"), 0)
	assert.Equal(t, 3, cache.Size())

	_, ok := cache.Get("key2")
	assert.False(t, ok)
	for _, key := range []string{"key1", "key3", "key4"} {
		_, ok := cache.Get(key)
		assert.True(t, ok, key)
	}
}

func TestLRUCache_Invalidate(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)
	cache.Set("rules:USD:a", []byte("1"), 0)
	cache.Set("rules:USD:b", []byte("2"), 0)
	cache.Set("rules:EUR:a", []byte("3"), 0)

	assert.Equal(t, 1, cache.Invalidate("rules:EUR:a"))
	assert.Equal(t, 0, cache.Invalidate("rules:EUR:a"))
	assert.Equal(t, 2, cache.Invalidate("rules:USD:*"))
	assert.Equal(t, 0, cache.Size())

	cache.Set("x", []byte("1"), 0)
	cache.Clear()
	assert.Equal(t, 0, cache.Size())
}

func TestLRUCache_Concurrent(t *testing.T) {
	cache := NewLRUCache(50, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", (n*100+j)%80)
				cache.Set(key, []byte(key), 0)
				cache.Get(key)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, cache.Size(), 50)
}

func TestService(t *testing.T) {
	svc := NewService(ServiceConfig{Capacity: 2, CleanupInterval: 10 * time.Millisecond})
	defer svc.Close()

	ctx := context.Background()
	require.NoError(t, svc.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, svc.Set(ctx, "b", []byte("2"), 0))

	val, ok := svc.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, []byte("1"), val)

	_, ok = svc.Get(ctx, "c")
	assert.False(t, ok)

	require.NoError(t, svc.Invalidate(ctx, "*"))
	assert.Equal(t, 0, svc.Size())

	stats := svc.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Zero(t, stats.Forgotten)
	assert.Zero(t, stats.Entries)
}

func TestService_CountsForgottenExtractions(t *testing.T) {
	svc := NewService(ServiceConfig{})
	defer svc.Close()

	ctx := context.Background()
	require.NoError(t, svc.Set(ctx, RulesKey("NO PARKING", 1, "USD"), []byte("{}"), 0))
	require.NoError(t, svc.Set(ctx, RulesKey("2 HOUR PARKING", 1, "USD"), []byte("{}"), 0))
	require.NoError(t, svc.Set(ctx, "reading:abc", []byte("{}"), 0))

	require.NoError(t, svc.Invalidate(ctx, RulesKeyPrefix+"*"))
	stats := svc.Stats()
	assert.Equal(t, int64(2), stats.Forgotten)
	assert.Equal(t, 1, stats.Entries)
}

func TestService_SweepsExpired(t *testing.T) {
	svc := NewService(ServiceConfig{CleanupInterval: 5 * time.Millisecond})
	defer svc.Close()

	require.NoError(t, svc.Set(context.Background(), "a", []byte("1"), time.Millisecond))
	assert.Eventually(t, func() bool { return svc.Stats().Swept == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, svc.Size())
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := NewRedisCache(context.Background(), RedisConfig{
		URL:        "redis://" + mr.Addr(),
		KeyPrefix:  "test:",
		DefaultTTL: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })
	return mr, rc
}

func TestRedisCache(t *testing.T) {
	mr, rc := newRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "rules:USD:a", []byte(`[{"kind":{"type":"free"}}]`), 0))
	assert.True(t, mr.Exists("test:rules:USD:a"))
	assert.Equal(t, time.Minute, mr.TTL("test:rules:USD:a"))

	val, ok := rc.Get(ctx, "rules:USD:a")
	require.True(t, ok)
	assert.JSONEq(t, `[{"kind":{"type":"free"}}]`, string(val))

	mr.FastForward(2 * time.Minute)
	_, ok = rc.Get(ctx, "rules:USD:a")
	assert.False(t, ok)
}

func TestRedisCache_Invalidate(t *testing.T) {
	mr, rc := newRedis(t)
	ctx := context.Background()

	for _, key := range []string{"rules:USD:a", "rules:USD:b", "rules:EUR:a"} {
		require.NoError(t, rc.Set(ctx, key, []byte("x"), time.Hour))
	}
	require.NoError(t, mr.Set("other:rules:USD:c", "x"))

	require.NoError(t, rc.Invalidate(ctx, "rules:USD:*"))
	assert.False(t, mr.Exists("test:rules:USD:a"))
	assert.False(t, mr.Exists("test:rules:USD:b"))
	assert.True(t, mr.Exists("test:rules:EUR:a"))
	assert.True(t, mr.Exists("other:rules:USD:c"))

	require.NoError(t, rc.Invalidate(ctx, "rules:EUR:a"))
	assert.False(t, mr.Exists("test:rules:EUR:a"))
}

func TestRedisCache_ConnectionFailure(t *testing.T) {
	_, err := NewRedisCache(context.Background(), RedisConfig{URL: "not a url"})
	assert.Error(t, err)

	mr, rc := newRedis(t)
	mr.Close()
	_, ok := rc.Get(context.Background(), "rules:USD:a")
	assert.False(t, ok)
	assert.Error(t, rc.Set(context.Background(), "rules:USD:a", []byte("x"), 0))
}

func TestTieredCache(t *testing.T) {
	ctx := context.Background()
	l1 := NewService(DefaultServiceConfig())
	defer l1.Close()
	mr, l2 := newRedis(t)

	tiered := NewTieredCache(l1, l2)
	require.NoError(t, tiered.Set(ctx, "rules:USD:a", []byte("v"), 0))
	assert.True(t, mr.Exists("test:rules:USD:a"))

	// Only L2 holds the entry: it is promoted on read.
	l1.lru.Clear()
	val, ok := tiered.Get(ctx, "rules:USD:a")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), val)
	assert.Equal(t, 1, l1.Size())

	require.NoError(t, tiered.Invalidate(ctx, "rules:*"))
	_, ok = tiered.Get(ctx, "rules:USD:a")
	assert.False(t, ok)
}

func TestTieredCache_MemoryOnly(t *testing.T) {
	ctx := context.Background()
	l1 := NewService(DefaultServiceConfig())
	defer l1.Close()

	tiered := NewTieredCache(l1, nil)
	require.NoError(t, tiered.Set(ctx, "k", []byte("v"), 0))
	_, ok := tiered.Get(ctx, "k")
	assert.True(t, ok)
	_, ok = tiered.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestRulesKey(t *testing.T) {
	a := RulesKey("NO PARKING\n7AM-9AM", 1, "USD")
	assert.Equal(t, a, RulesKey("NO PARKING\n7AM-9AM", 1, "USD"))
	assert.NotEqual(t, a, RulesKey("  NO PARKING\n7AM-9AM\n", 1, "USD"))
	assert.NotEqual(t, RulesKey("NO PARKING", 0.6, "USD"), RulesKey("NO PARKING", 0.6004, "USD"))
	assert.NotEqual(t, a, RulesKey("NO PARKING 7AM-9AM", 1, "USD"))
	assert.NotEqual(t, a, RulesKey("NO PARKING\n7AM-9AM", 0.8, "USD"))
	assert.NotEqual(t, a, RulesKey("NO PARKING\n7AM-9AM", 1, "EUR"))
	assert.Regexp(t, `^rules:USD:[0-9a-f]{32}$`, a)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `a\*b\?c\[d\]`, escapeGlob("a*b?c[d]"))
}
