package events

import (
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/blockchat/blockchat/internal/flow"
	"github.com/blockchat/blockchat/internal/metrics"
)

const visitorHashLength = 16

// Validate checks a flow event before it is written to the stream.
func Validate(event FlowEvent) error {
	if event.ID != "" {
		if _, err := ulid.ParseStrict(event.ID); err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
	}

	switch event.Flow {
	case metrics.FlowLogin, metrics.FlowRegister:
	default:
		return fmt.Errorf("unknown flow %q", event.Flow)
	}

	switch event.Outcome {
	case metrics.OutcomeSuccess:
		if event.FailedStep != 0 {
			return fmt.Errorf("successful flow cannot have failed_step")
		}
	case metrics.OutcomeFailure, metrics.OutcomeError:
		if event.FailedStep < 1 || event.FailedStep > flow.Steps {
			return fmt.Errorf("failed_step must be between 1 and %d", flow.Steps)
		}
	default:
		return fmt.Errorf("unknown outcome %q", event.Outcome)
	}

	if event.Status < 100 || event.Status > 599 {
		return fmt.Errorf("status out of range")
	}
	if len(event.VisitorHash) != visitorHashLength || !isHex(event.VisitorHash) {
		return fmt.Errorf("visitor_hash must be %d hex chars", visitorHashLength)
	}
	if event.FinishedAt <= 0 {
		return fmt.Errorf("finished_at must be set")
	}
	return nil
}

func isHex(value string) bool {
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F') {
			continue
		}
		return false
	}
	return true
}
