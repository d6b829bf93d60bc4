// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector for engine-level monitoring.
// Exposes named counters in a thread-safe map with dynamic registration.

package control

import (
	"sort"
	"sync"
	"time"
)

// MetricsRegistry holds named counters and free-form values.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]int64
	values   map[string]any
	updated  time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]int64),
		values:   make(map[string]any),
	}
}

// Add increments counter key by delta and returns the new value.
func (mr *MetricsRegistry) Add(key string, delta int64) int64 {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.counters[key] += delta
	mr.updated = time.Now()
	return mr.counters[key]
}

// Inc is Add(key, 1).
func (mr *MetricsRegistry) Inc(key string) { mr.Add(key, 1) }

// Counter returns the value of counter key, zero if never touched.
func (mr *MetricsRegistry) Counter(key string) int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.counters[key]
}

// Set sets or updates a free-form metric.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.values[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Updated returns the time of the last change.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}

// Keys returns the sorted names of all counters.
func (mr *MetricsRegistry) Keys() []string {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	keys := make([]string, 0, len(mr.counters))
	for k := range mr.counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetSnapshot returns counters and values merged into one map.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.counters)+len(mr.values))
	for k, v := range mr.values {
		out[k] = v
	}
	for k, v := range mr.counters {
		out[k] = v
	}
	return out
}
