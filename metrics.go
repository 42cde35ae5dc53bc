package qfilter

import (
	"sync"
	"time"
)

// RunMetrics records the size of a run and how its shots were split.
type RunMetrics struct {
	mu              sync.RWMutex
	Backend         string
	Depth           int
	Size            int
	GateCounts      map[string]int
	Shots           int
	FilteredShots   int
	UnfilteredShots int
	Outcomes        int
	Duration        time.Duration
}

func newRunMetrics(backend string, c *Circuit) *RunMetrics {
	return &RunMetrics{
		Backend:    backend,
		Depth:      c.Depth(),
		Size:       c.Size(),
		GateCounts: c.Counts(),
	}
}

func (m *RunMetrics) recordExecution(startTime time.Time, h Histogram) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Duration = time.Since(startTime)
	m.Shots = h.Total()
	m.Outcomes = len(h)
}

func (m *RunMetrics) recordSplit(rec *Reconstruction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FilteredShots = rec.FilteredShots
	m.UnfilteredShots = rec.UnfilteredShots
}

// FilteredFraction is the share of shots that landed with ancilla=1.
func (m *RunMetrics) FilteredFraction() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Shots == 0 {
		return 0
	}
	return float64(m.FilteredShots) / float64(m.Shots)
}

func (m *RunMetrics) ExportMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	gates := make(map[string]int, len(m.GateCounts))
	for k, v := range m.GateCounts {
		gates[k] = v
	}

	return map[string]interface{}{
		"backend":          m.Backend,
		"depth":            m.Depth,
		"size":             m.Size,
		"gates":            gates,
		"shots":            m.Shots,
		"filtered_shots":   m.FilteredShots,
		"unfiltered_shots": m.UnfilteredShots,
		"outcomes":         m.Outcomes,
		"duration_ms":      m.Duration.Milliseconds(),
	}
}
