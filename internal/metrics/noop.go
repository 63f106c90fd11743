package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncFlow is a no-op.
func (n *NoopRecorder) IncFlow(flow, outcome string) {}

// ObserveStage is a no-op.
func (n *NoopRecorder) ObserveStage(flow string, step int, status string) {}

// ObserveFlowDuration is a no-op.
func (n *NoopRecorder) ObserveFlowDuration(flow string, duration time.Duration) {}

// IncRateLimited is a no-op.
func (n *NoopRecorder) IncRateLimited() {}

// IncEventPublished is a no-op.
func (n *NoopRecorder) IncEventPublished(result string) {}
