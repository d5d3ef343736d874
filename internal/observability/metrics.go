package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics counts sign service calls per operation and extraction cache use.
type Metrics struct {
	mu         sync.Mutex
	operations map[string]*OperationMetrics

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
}

// OperationMetrics holds the counters of one operation.
type OperationMetrics struct {
	count         atomic.Int64
	failures      atomic.Int64
	totalDuration atomic.Int64 // milliseconds
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{operations: make(map[string]*OperationMetrics)}
}

// Record counts one call of operation.
func (m *Metrics) Record(operation string, duration time.Duration, err error) {
	om := m.operation(operation)
	om.count.Add(1)
	om.totalDuration.Add(duration.Milliseconds())
	if err != nil {
		om.failures.Add(1)
	}
}

// RecordCache counts one cache lookup.
func (m *Metrics) RecordCache(hit bool) {
	if hit {
		m.cacheHits.Add(1)
	} else {
		m.cacheMisses.Add(1)
	}
}

func (m *Metrics) operation(name string) *OperationMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	om, ok := m.operations[name]
	if !ok {
		om = &OperationMetrics{}
		m.operations[name] = om
	}
	return om
}

// Snapshot returns a point-in-time copy of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	ops := make([]OperationSnapshot, 0, len(m.operations))
	for name, om := range m.operations {
		s := OperationSnapshot{
			Operation:     name,
			Count:         om.count.Load(),
			Failures:      om.failures.Load(),
			TotalDuration: om.totalDuration.Load(),
		}
		if s.Count > 0 {
			s.AverageDuration = s.TotalDuration / s.Count
		}
		ops = append(ops, s)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Operation < ops[j].Operation })

	return MetricsSnapshot{
		Operations:  ops,
		CacheHits:   m.cacheHits.Load(),
		CacheMisses: m.cacheMisses.Load(),
	}
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Operations  []OperationSnapshot
	CacheHits   int64
	CacheMisses int64
}

// OperationSnapshot is the counters of one operation. Durations are in
// milliseconds.
type OperationSnapshot struct {
	Operation       string
	Count           int64
	Failures        int64
	TotalDuration   int64
	AverageDuration int64
}

// CacheHitRate returns the share of lookups served from cache (0-1).
func (s MetricsSnapshot) CacheHitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}
