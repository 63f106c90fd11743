// Package flow records the staged trace of an authentication pipeline.
//
// A trace is a fixed-length, ordered list of stage records. Pipelines append
// one record per stage as the stage's work completes; when a stage fails, the
// remaining stages are padded as inactive so the trace always has the same
// shape regardless of where the flow stopped.
package flow

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Status is the visual state of a stage.
type Status string

// Stage statuses.
const (
	StatusActive   Status = "active"
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
	StatusInactive Status = "inactive"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusSuccess, StatusError, StatusInactive:
		return true
	}
	return false
}

// MaskedPassword replaces passwords in echoed request data.
const MaskedPassword = "••••••••"

// Echo is the redacted copy of request input shown on a stage.
type Echo struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Detail carries the content of a stage that actually ran.
type Detail struct {
	Title  string
	Text   string
	Result string
	Data   *Echo
}

// StageRecord is one entry of a trace.
//
// A record is either ran (active, success or error, with a Detail) or
// inactive (step and status only). The detail is unexported so the only way
// to build an inactive record with content is not to have one.
type StageRecord struct {
	step   int
	status Status
	detail *Detail
}

// Active builds a record for an informational stage that always runs.
func Active(step int, title, text string) StageRecord {
	return StageRecord{step: step, status: StatusActive, detail: &Detail{Title: title, Text: text}}
}

// Success builds a record for a stage whose check passed.
func Success(step int, title, text, result string) StageRecord {
	return StageRecord{step: step, status: StatusSuccess, detail: &Detail{Title: title, Text: text, Result: result}}
}

// Failure builds a record for the stage that stopped the flow.
func Failure(step int, title, text, result string) StageRecord {
	return StageRecord{step: step, status: StatusError, detail: &Detail{Title: title, Text: text, Result: result}}
}

// Inactive builds a record for a stage that never ran.
func Inactive(step int) StageRecord {
	return StageRecord{step: step, status: StatusInactive}
}

// WithData returns a copy of the record carrying echoed input.
// Inactive records are returned unchanged.
func (r StageRecord) WithData(data Echo) StageRecord {
	if r.detail == nil {
		return r
	}
	d := *r.detail
	d.Data = &data
	r.detail = &d
	return r
}

// Step returns the 1-based stage number.
func (r StageRecord) Step() int { return r.step }

// Status returns the stage status.
func (r StageRecord) Status() Status { return r.status }

// Detail returns the stage content, or false for inactive stages.
func (r StageRecord) Detail() (Detail, bool) {
	if r.detail == nil {
		return Detail{}, false
	}
	return *r.detail, true
}

// Title returns the stage title; empty for inactive stages.
func (r StageRecord) Title() string {
	if r.detail == nil {
		return ""
	}
	return r.detail.Title
}

// Result returns the stage outcome text; empty when there is none.
func (r StageRecord) Result() string {
	if r.detail == nil {
		return ""
	}
	return r.detail.Result
}

type stageJSON struct {
	Step   int    `json:"step"`
	Title  string `json:"title,omitempty"`
	Text   string `json:"text,omitempty"`
	Status Status `json:"status"`
	Result string `json:"result,omitempty"`
	Data   *Echo  `json:"data,omitempty"`
}

// MarshalJSON encodes the record in the wire shape consumed by the front end.
func (r StageRecord) MarshalJSON() ([]byte, error) {
	out := stageJSON{Step: r.step, Status: r.status}
	if r.detail != nil {
		out.Title = r.detail.Title
		out.Text = r.detail.Text
		out.Result = r.detail.Result
		out.Data = r.detail.Data
	}
	return json.Marshal(out)
}

// ErrInactiveWithContent is returned when decoding an inactive stage that has content.
var ErrInactiveWithContent = errors.New("inactive stage must not carry title, text or result")

// UnmarshalJSON decodes a record and rejects payloads that break the
// inactive-stage shape.
func (r *StageRecord) UnmarshalJSON(b []byte) error {
	var in stageJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	if !in.Status.IsValid() {
		return fmt.Errorf("unknown stage status %q", in.Status)
	}

	r.step = in.Step
	r.status = in.Status
	r.detail = nil

	if in.Status == StatusInactive {
		if in.Title != "" || in.Text != "" || in.Result != "" || in.Data != nil {
			return ErrInactiveWithContent
		}
		return nil
	}

	r.detail = &Detail{Title: in.Title, Text: in.Text, Result: in.Result, Data: in.Data}
	return nil
}
