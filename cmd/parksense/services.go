package main

import (
	"context"
	"log/slog"

	parkerrors "github.com/hrygo/parksense/internal/errors"
	"github.com/hrygo/parksense/internal/observability"
	"github.com/hrygo/parksense/plugin/cache"
	"github.com/hrygo/parksense/plugin/ocr"
	"github.com/hrygo/parksense/plugin/parking/policy"
	"github.com/hrygo/parksense/server/service/sign"
)

// services are the long-lived collaborators a command runs against.
type services struct {
	sign    sign.Service
	cache   *cache.Service
	metrics *observability.Metrics
	closers []func()
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// newServices wires the sign service from the profile: the LRU cache, Redis
// as a second tier when configured, the confirmation policy and tesseract.
func (a *app) newServices(ctx context.Context) (*services, error) {
	p := a.profile
	s := &services{metrics: observability.NewMetrics()}

	l1 := cache.NewService(cache.ServiceConfig{
		Capacity:   p.CacheCapacity,
		DefaultTTL: p.CacheTTL,
	})
	s.cache = l1
	s.closers = append(s.closers, l1.Close)

	var l2 cache.CacheService
	if p.IsRedisEnabled() {
		cfg := cache.DefaultRedisConfig()
		cfg.URL = p.RedisURL
		cfg.DefaultTTL = p.CacheTTL
		redisCache, err := cache.NewRedisCache(ctx, cfg)
		if err != nil {
			a.logger.Warn("redis cache disabled",
				slog.String(observability.LogFieldErrorCode, string(parkerrors.ErrCodeCacheUnavailable)),
				slog.Any("error", err),
			)
		} else {
			l2 = redisCache
			s.closers = append(s.closers, func() { _ = redisCache.Close() })
		}
	}

	confirm := policy.Default()
	if p.ConfirmPolicy != "" {
		compiled, err := policy.New(p.ConfirmPolicy)
		if err != nil {
			s.Close()
			return nil, parkerrors.PolicyInvalid(err)
		}
		confirm = compiled
	}

	lead := p.ReminderLead
	if lead == 0 {
		lead = sign.NoLead
	}
	cfg := sign.Config{
		Currency:    p.Currency,
		Location:    p.Location(),
		Lead:        lead,
		Concurrency: p.BatchConcurrency,
		CacheTTL:    p.CacheTTL,
		Policy:      confirm,
		Cache:       cache.NewTieredCache(l1, l2),
		Logger:      a.logger,
		Metrics:     s.metrics,
	}
	if p.OCREnabled {
		cfg.OCR = ocr.NewClient(&ocr.Config{
			TesseractPath: p.TesseractPath,
			DataPath:      p.TessdataPath,
			Languages:     p.OCRLanguages,
			RateLimit:     p.OCRRateLimit,
			Preprocess:    !p.OCRRawImage,
		})
	}
	s.sign = sign.NewService(cfg)
	return s, nil
}

// logMetrics reports per-operation timings at debug level.
func (a *app) logMetrics(s *services) {
	snapshot := s.metrics.Snapshot()
	for _, op := range snapshot.Operations {
		a.logger.Debug("operation stats",
			slog.String(observability.LogFieldOperation, op.Operation),
			slog.Int64("count", op.Count),
			slog.Int64("failures", op.Failures),
			slog.Int64(observability.LogFieldDuration, op.AverageDuration),
		)
	}
	if snapshot.CacheHits+snapshot.CacheMisses > 0 {
		stats := s.cache.Stats()
		a.logger.Debug("cache stats",
			slog.Float64("hit_rate", snapshot.CacheHitRate()),
			slog.Int64("l1_hits", stats.Hits),
			slog.Int64("l1_swept", stats.Swept),
			slog.Int64("l1_forgotten", stats.Forgotten),
			slog.Int("l1_entries", stats.Entries),
		)
	}
}
