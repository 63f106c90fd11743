package flow

import (
	"errors"
	"fmt"
)

// Steps is the number of stages in every authentication trace.
const Steps = 7

// Trace builder errors.
var (
	ErrStepOutOfRange = errors.New("step out of range")
	ErrStepOrder      = errors.New("steps must be appended once and in increasing order")
	ErrAfterFailure   = errors.New("only inactive stages may follow a failed stage")
)

// Trace accumulates the stage records of a single pipeline invocation.
// It is not safe for concurrent use; each request owns its own trace.
type Trace struct {
	total   int
	records []StageRecord
	failed  bool
}

// NewTrace returns an empty trace of Steps stages.
func NewTrace() *Trace {
	return &Trace{total: Steps, records: make([]StageRecord, 0, Steps)}
}

// Append adds rec as the next stage.
func (t *Trace) Append(rec StageRecord) error {
	if rec.step < 1 || rec.step > t.total {
		return fmt.Errorf("%w: %d", ErrStepOutOfRange, rec.step)
	}
	if rec.step != t.Next() {
		return fmt.Errorf("%w: got %d, want %d", ErrStepOrder, rec.step, t.Next())
	}
	if t.failed && rec.status != StatusInactive {
		return fmt.Errorf("%w: step %d", ErrAfterFailure, rec.step)
	}
	if rec.status == StatusInactive {
		rec.detail = nil
	}

	t.records = append(t.records, rec)
	if rec.status == StatusError {
		t.failed = true
	}
	return nil
}

// PadInactive appends inactive records for steps from..to inclusive.
func (t *Trace) PadInactive(from, to int) error {
	for step := from; step <= to; step++ {
		if err := t.Append(Inactive(step)); err != nil {
			return err
		}
	}
	return nil
}

// Fail appends rec as an error stage and pads every later stage inactive.
func (t *Trace) Fail(rec StageRecord) error {
	rec.status = StatusError
	if rec.detail == nil {
		rec.detail = &Detail{}
	}
	if err := t.Append(rec); err != nil {
		return err
	}
	return t.PadInactive(rec.step+1, t.total)
}

// Next returns the step number expected by the next Append.
func (t *Trace) Next() int {
	return len(t.records) + 1
}

// Failed reports whether an error stage has been recorded.
func (t *Trace) Failed() bool {
	return t.failed
}

// Complete reports whether every stage has been recorded.
func (t *Trace) Complete() bool {
	return len(t.records) == t.total
}

// Records returns a copy of the recorded stages.
func (t *Trace) Records() []StageRecord {
	out := make([]StageRecord, len(t.records))
	copy(out, t.records)
	return out
}
