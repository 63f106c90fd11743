package events

import (
	"testing"

	"github.com/blockchat/blockchat/internal/metrics"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*FlowEvent)
		wantErr bool
	}{
		{"valid failure", func(*FlowEvent) {}, false},
		{"valid success", func(e *FlowEvent) { e.Outcome, e.FailedStep = metrics.OutcomeSuccess, 0 }, false},
		{"valid error", func(e *FlowEvent) { e.Outcome, e.Status = metrics.OutcomeError, 500 }, false},
		{"valid id", func(e *FlowEvent) { e.ID = "01ARZ3NDEKTSV4RRFFQ69G5FAV" }, false},
		{"invalid id", func(e *FlowEvent) { e.ID = "not-a-ulid" }, true},
		{"unknown flow", func(e *FlowEvent) { e.Flow = "logout" }, true},
		{"unknown outcome", func(e *FlowEvent) { e.Outcome = "maybe" }, true},
		{"success with failed step", func(e *FlowEvent) { e.Outcome = metrics.OutcomeSuccess }, true},
		{"failure without step", func(e *FlowEvent) { e.FailedStep = 0 }, true},
		{"failure past last step", func(e *FlowEvent) { e.FailedStep = 8 }, true},
		{"bad status", func(e *FlowEvent) { e.Status = 42 }, true},
		{"short hash", func(e *FlowEvent) { e.VisitorHash = "abc" }, true},
		{"non hex hash", func(e *FlowEvent) { e.VisitorHash = "zzzzzzzzzzzzzzzz" }, true},
		{"missing time", func(e *FlowEvent) { e.FinishedAt = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev := validEvent()
			tt.mutate(&ev)
			if err := Validate(ev); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
