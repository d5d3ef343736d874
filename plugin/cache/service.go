package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ServiceConfig sizes the in-process extraction cache.
type ServiceConfig struct {
	Capacity        int
	DefaultTTL      time.Duration
	CleanupInterval time.Duration // how often expired extractions are swept
}

// DefaultServiceConfig holds room for a day of sign lookups on one device.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Capacity:        256,
		DefaultTTL:      time.Hour,
		CleanupInterval: time.Minute,
	}
}

// Stats counts what happened to cached extractions since the service started.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Swept     int64 `json:"swept"`     // expired entries removed by the sweeper
	Forgotten int64 `json:"forgotten"` // extraction entries dropped by invalidation
	Entries   int   `json:"entries"`
}

// Service is the L1 cache in front of extraction. It sweeps expired entries in
// the background until Close.
type Service struct {
	lru *LRUCache

	hits      atomic.Int64
	misses    atomic.Int64
	swept     atomic.Int64
	forgotten atomic.Int64

	stop context.CancelFunc
	wg   sync.WaitGroup
}

// NewService starts an extraction cache. Zero fields fall back to
// DefaultServiceConfig.
func NewService(cfg ServiceConfig) *Service {
	defaults := DefaultServiceConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaults.Capacity
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = defaults.DefaultTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}

	ctx, stop := context.WithCancel(context.Background())
	s := &Service{
		lru:  NewLRUCache(cfg.Capacity, cfg.DefaultTTL),
		stop: stop,
	}
	s.wg.Add(1)
	go s.sweep(ctx, cfg.CleanupInterval)
	return s
}

func (s *Service) Close() {
	s.stop()
	s.wg.Wait()
}

func (s *Service) Get(_ context.Context, key string) ([]byte, bool) {
	value, ok := s.lru.Get(key)
	if ok {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
	return value, ok
}

func (s *Service) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.lru.Set(key, value, ttl)
	return nil
}

// Invalidate drops entries matching pattern. Dropped extraction entries are
// counted as forgotten.
func (s *Service) Invalidate(_ context.Context, pattern string) error {
	n := s.lru.Invalidate(pattern)
	if strings.HasPrefix(pattern, RulesKeyPrefix) {
		s.forgotten.Add(int64(n))
	}
	return nil
}

// Size returns the number of live entries.
func (s *Service) Size() int {
	return s.lru.Size()
}

// Stats returns a snapshot of the counters.
func (s *Service) Stats() Stats {
	return Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Swept:     s.swept.Load(),
		Forgotten: s.forgotten.Load(),
		Entries:   s.lru.Size(),
	}
}

func (s *Service) sweep(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.swept.Add(int64(s.lru.CleanupExpired()))
		}
	}
}

var _ CacheService = (*Service)(nil)
