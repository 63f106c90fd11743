package service

import (
	"net/http"

	"github.com/blockchat/blockchat/internal/flow"
)

// Kind classifies why a flow stopped.
type Kind int

// Flow failure kinds.
const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindAuth
	KindConflict
	KindInternal
)

// HTTPStatus maps a failure kind to its response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound, KindAuth:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindConflict:
		return "conflict"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// FlowError is returned when a pipeline stops before its final stage.
// Trace always holds a full set of stage records.
type FlowError struct {
	Kind Kind
	// Message is the client-facing message.
	Message string
	Trace   []flow.StageRecord
	// Err is the underlying cause, if any. It is never shown to clients
	// except through Message on internal failures.
	Err error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// FailedStep returns the step of the error record in the trace, or the last
// step when the flow failed after its trace was already complete.
func (e *FlowError) FailedStep() int {
	for _, rec := range e.Trace {
		if rec.Status() == flow.StatusError {
			return rec.Step()
		}
	}
	return flow.Steps
}
