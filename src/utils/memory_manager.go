package utils

import (
	"runtime"
	"sort"
	"sync"

	"options-observer/src/models"
)

// -----------------------------------------------------------------------------
// MetricsManager keeps one ring of cycle metrics per cycle kind.
// -----------------------------------------------------------------------------

type MetricsManager struct {
	streams  map[string]*RingBuffer[models.MCycleMetrics]
	capacity int
	mu       sync.RWMutex
}

// MetricsSummary is served by the metrics endpoint.
type MetricsSummary struct {
	Cycles        map[string][]models.MCycleMetrics `json:"cycles"`
	Failures      map[string]int                    `json:"failures"`
	Skipped       map[string]int                    `json:"skipped"`
	HeapAllocMB   float64                           `json:"heapAllocMB"`
	NumGoroutines int                               `json:"goroutines"`
}

// -----------------------------------------------------------------------------

func NewMetricsManager(capacity int) *MetricsManager {
	return &MetricsManager{
		streams:  make(map[string]*RingBuffer[models.MCycleMetrics]),
		capacity: capacity,
	}
}

// -----------------------------------------------------------------------------

func (mm *MetricsManager) Record(m models.MCycleMetrics) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	rb, ok := mm.streams[m.Kind]
	if !ok {
		rb = NewRingBuffer[models.MCycleMetrics](mm.capacity)
		mm.streams[m.Kind] = rb
	}
	rb.Append(m)
}

// -----------------------------------------------------------------------------

// Latest returns up to n newest entries of one kind, oldest first.
func (mm *MetricsManager) Latest(kind string, n int) []models.MCycleMetrics {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	rb, ok := mm.streams[kind]
	if !ok {
		return []models.MCycleMetrics{}
	}
	return rb.GetLatest(n)
}

// -----------------------------------------------------------------------------

// Kinds lists recorded cycle kinds in name order.
func (mm *MetricsManager) Kinds() []string {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	kinds := make([]string, 0, len(mm.streams))
	for k := range mm.streams {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// -----------------------------------------------------------------------------

func (mm *MetricsManager) Summary() MetricsSummary {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	s := MetricsSummary{
		Cycles:        make(map[string][]models.MCycleMetrics, len(mm.streams)),
		Failures:      make(map[string]int, len(mm.streams)),
		Skipped:       make(map[string]int, len(mm.streams)),
		HeapAllocMB:   GetProcessMemoryMB(),
		NumGoroutines: runtime.NumGoroutine(),
	}
	for kind, rb := range mm.streams {
		all := rb.GetAll()
		s.Cycles[kind] = all
		for _, m := range all {
			if m.Error != "" {
				s.Failures[kind]++
			}
			if m.Skipped {
				s.Skipped[kind]++
			}
		}
	}
	return s
}

// -----------------------------------------------------------------------------

// GetProcessMemoryMB gets current heap usage in MB
func GetProcessMemoryMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.HeapAlloc) / 1024 / 1024
}
