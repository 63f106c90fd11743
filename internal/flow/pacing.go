package flow

import "time"

// Kind classifies a stage for pacing purposes.
type Kind int

// Pacing kinds.
const (
	// KindStage is a stage that ran and let the flow continue.
	KindStage Kind = iota
	// KindError is the stage that stopped the flow.
	KindError
)

// Reference pacing used by the visualizer front end.
const (
	DefaultStageDelay = 800 * time.Millisecond
	DefaultErrorDelay = 500 * time.Millisecond
)

// Pacing returns how long a pipeline pauses after emitting a stage of the given kind.
// The pause only slows emission down; it never reorders stages.
type Pacing func(kind Kind) time.Duration

// DefaultPacing returns the reference delays.
func DefaultPacing() Pacing {
	return FixedPacing(DefaultStageDelay, DefaultErrorDelay)
}

// FixedPacing returns a strategy with the given per-kind delays.
func FixedPacing(stage, failure time.Duration) Pacing {
	return func(kind Kind) time.Duration {
		if kind == KindError {
			return failure
		}
		return stage
	}
}

// NoPacing disables delays, e.g. in tests.
func NoPacing(Kind) time.Duration { return 0 }
