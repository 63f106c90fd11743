// Package service provides the login and register pipelines.
//
// Each pipeline runs seven stages in order and records one stage per step in
// a flow.Trace. The stage for step N is recorded only after step N's work has
// finished, and a paced pause follows so a front end can replay the trace in
// real time.
package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/blockchat/blockchat/internal/auth"
	"github.com/blockchat/blockchat/internal/flow"
	"github.com/blockchat/blockchat/internal/metrics"
	"github.com/blockchat/blockchat/internal/repository"
)

const serverErrorResult = "✗ Server error"

// AuthService runs the login and register pipelines against a credential store.
type AuthService struct {
	store   repository.Store
	issuer  auth.TokenIssuer
	pacing  flow.Pacing
	metrics metrics.Recorder
	sleep   func(time.Duration)
	now     func() time.Time
}

// NewAuthService creates a new AuthService. A nil issuer, pacing or recorder
// falls back to opaque tokens, the reference delays and a no-op recorder.
func NewAuthService(store repository.Store, issuer auth.TokenIssuer, pacing flow.Pacing, recorder metrics.Recorder) *AuthService {
	if issuer == nil {
		issuer = auth.NewOpaqueIssuer()
	}
	if pacing == nil {
		pacing = flow.DefaultPacing()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &AuthService{
		store:   store,
		issuer:  issuer,
		pacing:  pacing,
		metrics: recorder,
		sleep:   time.Sleep,
		now:     time.Now,
	}
}

// run is a single pipeline invocation. After the first builder error every
// later call is a no-op and the error is reported once by the pipeline.
type run struct {
	svc     *AuthService
	name    string
	trace   *flow.Trace
	started time.Time
	err     error
}

func (s *AuthService) begin(name string) *run {
	return &run{svc: s, name: name, trace: flow.NewTrace(), started: s.now()}
}

// emit records a stage that let the flow continue.
func (r *run) emit(rec flow.StageRecord) {
	if r.err != nil {
		return
	}
	if err := r.trace.Append(rec); err != nil {
		r.err = err
		return
	}
	r.svc.metrics.ObserveStage(r.name, rec.Step(), string(rec.Status()))
	if rec.Step() < flow.Steps {
		r.pause(flow.KindStage)
	}
}

// stop records rec as the failing stage, pads the rest and builds the error.
func (r *run) stop(kind Kind, rec flow.StageRecord, message string, cause error) *FlowError {
	if r.err == nil {
		if err := r.trace.Fail(rec); err != nil {
			r.err = err
		} else {
			r.svc.metrics.ObserveStage(r.name, rec.Step(), string(flow.StatusError))
			r.pause(flow.KindError)
		}
	}
	if r.err != nil {
		kind = KindInternal
		message = "Server error: " + r.err.Error()
		cause = errors.Join(cause, r.err)
	}

	outcome := metrics.OutcomeFailure
	if kind == KindInternal {
		outcome = metrics.OutcomeError
	}
	r.finish(outcome)

	return &FlowError{Kind: kind, Message: message, Trace: r.trace.Records(), Err: cause}
}

// internal stops the flow at rec's step because of an unexpected failure.
func (r *run) internal(rec flow.StageRecord, cause error) *FlowError {
	title, text := "", ""
	if d, ok := rec.Detail(); ok {
		title, text = d.Title, d.Text
	}
	failed := flow.Failure(rec.Step(), title, text, serverErrorResult)
	return r.stop(KindInternal, failed, "Server error: "+cause.Error(), cause)
}

// done checks the trace after the last stage and reports the outcome.
func (r *run) done() error {
	if r.err == nil && !r.trace.Complete() {
		r.err = fmt.Errorf("trace ended at step %d", r.trace.Next()-1)
	}
	if r.err != nil {
		r.finish(metrics.OutcomeError)
		return &FlowError{
			Kind:    KindInternal,
			Message: "Server error: " + r.err.Error(),
			Trace:   r.trace.Records(),
			Err:     r.err,
		}
	}
	r.finish(metrics.OutcomeSuccess)
	return nil
}

func (r *run) finish(outcome string) {
	r.svc.metrics.IncFlow(r.name, outcome)
	r.svc.metrics.ObserveFlowDuration(r.name, r.svc.now().Sub(r.started))
}

func (r *run) pause(kind flow.Kind) {
	if d := r.svc.pacing(kind); d > 0 {
		r.svc.sleep(d)
	}
}
