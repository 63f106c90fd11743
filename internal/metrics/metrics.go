// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Flow names.
const (
	FlowLogin    = "login"
	FlowRegister = "register"
)

// Flow outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Event publish results.
const (
	EventPublished = "success"
	EventDropped   = "dropped"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Flow metrics
	IncFlow(flow, outcome string)
	ObserveStage(flow string, step int, status string)
	ObserveFlowDuration(flow string, duration time.Duration)

	// Rate limiting
	IncRateLimited()

	// Flow event feed
	IncEventPublished(result string)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
