package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// TieredCache checks a fast local tier before a shared one:
//   - L1: in-memory LRU, always on
//   - L2: Redis, optional
//
// An L2 hit is copied into L1.
type TieredCache struct {
	l1 CacheService
	l2 CacheService
}

// NewTieredCache combines the tiers. l2 may be nil.
func NewTieredCache(l1, l2 CacheService) *TieredCache {
	return &TieredCache{l1: l1, l2: l2}
}

// Get checks L1, then L2.
func (t *TieredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, ok := t.l1.Get(ctx, key); ok {
		return value, true
	}
	if t.l2 == nil {
		return nil, false
	}

	value, ok := t.l2.Get(ctx, key)
	if !ok {
		return nil, false
	}
	if err := t.l1.Set(ctx, key, value, 0); err != nil {
		slog.WarnContext(ctx, "failed to promote cache entry", "key", key, "error", err)
	}
	return value, true
}

// Set writes both tiers. An L2 failure is returned after L1 is written.
func (t *TieredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.l1.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	if t.l2 != nil {
		if err := t.l2.Set(ctx, key, value, ttl); err != nil {
			return errors.Wrap(err, "L2 cache")
		}
	}
	return nil
}

// Invalidate clears the pattern from both tiers.
func (t *TieredCache) Invalidate(ctx context.Context, pattern string) error {
	if err := t.l1.Invalidate(ctx, pattern); err != nil {
		return err
	}
	if t.l2 != nil {
		return t.l2.Invalidate(ctx, pattern)
	}
	return nil
}

var _ CacheService = (*TieredCache)(nil)

// RulesKeyPrefix prefixes every extraction cache key.
const RulesKeyPrefix = "rules:"

// RulesKey is the cache key of the rules extracted from text at an OCR
// quality and fine currency. The text and quality are hashed exactly as
// extraction sees them, since both end up in the extracted rules.
func RulesKey(text string, quality float64, currency string) string {
	return RulesKeyPrefix + currency + ":" + KeyHash(text+"|"+strconv.FormatFloat(quality, 'g', -1, 64))
}

// KeyHash returns a short SHA-256 digest of key.
func KeyHash(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])[:32]
}

func cutWildcard(pattern string) (string, bool) {
	return strings.CutSuffix(pattern, "*")
}

// escapeGlob escapes Redis glob metacharacters in a literal prefix.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
