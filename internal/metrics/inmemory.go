package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	// Flows is keyed by "flow/outcome".
	Flows map[string]uint64
	// Stages is keyed by "flow/step/status".
	Stages map[string]uint64

	FlowDurationCount   uint64
	FlowDurationTotalNs int64
	RateLimited         uint64
	// Events is keyed by publish result.
	Events map[string]uint64
}

// Flow returns the counter for a flow and outcome.
func (s Snapshot) Flow(flow, outcome string) uint64 {
	return s.Flows[flow+"/"+outcome]
}

// Stage returns the counter for a flow stage and status.
func (s Snapshot) Stage(flow string, step int, status string) uint64 {
	return s.Stages[stageKey(flow, step, status)]
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu     sync.Mutex
	flows  map[string]uint64
	stages map[string]uint64
	events map[string]uint64

	flowDurationCount   uint64
	flowDurationTotalNs int64
	rateLimited         uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		flows:  make(map[string]uint64),
		stages: make(map[string]uint64),
		events: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	flows := make(map[string]uint64, len(m.flows))
	for k, v := range m.flows {
		flows[k] = v
	}
	stages := make(map[string]uint64, len(m.stages))
	for k, v := range m.stages {
		stages[k] = v
	}
	events := make(map[string]uint64, len(m.events))
	for k, v := range m.events {
		events[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		Flows:               flows,
		Stages:              stages,
		FlowDurationCount:   atomic.LoadUint64(&m.flowDurationCount),
		FlowDurationTotalNs: atomic.LoadInt64(&m.flowDurationTotalNs),
		RateLimited:         atomic.LoadUint64(&m.rateLimited),
		Events:              events,
	}
}

// IncFlow increments the flow outcome counter.
func (m *InMemoryRecorder) IncFlow(flow, outcome string) {
	m.mu.Lock()
	m.flows[flow+"/"+outcome]++
	m.mu.Unlock()
}

// ObserveStage increments the stage counter.
func (m *InMemoryRecorder) ObserveStage(flow string, step int, status string) {
	m.mu.Lock()
	m.stages[stageKey(flow, step, status)]++
	m.mu.Unlock()
}

// ObserveFlowDuration records flow duration.
func (m *InMemoryRecorder) ObserveFlowDuration(flow string, duration time.Duration) {
	atomic.AddUint64(&m.flowDurationCount, 1)
	atomic.AddInt64(&m.flowDurationTotalNs, duration.Nanoseconds())
}

// IncRateLimited increments the rejected request counter.
func (m *InMemoryRecorder) IncRateLimited() {
	atomic.AddUint64(&m.rateLimited, 1)
}

// IncEventPublished counts flow event publish attempts by result.
func (m *InMemoryRecorder) IncEventPublished(result string) {
	m.mu.Lock()
	m.events[result]++
	m.mu.Unlock()
}

func stageKey(flow string, step int, status string) string {
	return fmt.Sprintf("%s/%d/%s", flow, step, status)
}
