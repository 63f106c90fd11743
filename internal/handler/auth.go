package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/blockchat/blockchat/internal/events"
	"github.com/blockchat/blockchat/internal/handler/dto"
	"github.com/blockchat/blockchat/internal/metrics"
	"github.com/blockchat/blockchat/internal/middleware"
	"github.com/blockchat/blockchat/internal/service"
)

// AuthFlows runs the login and register pipelines.
type AuthFlows interface {
	Login(ctx context.Context, input service.LoginInput) (*service.LoginResult, error)
	Register(ctx context.Context, input service.RegisterInput) (*service.RegisterResult, error)
}

// EventPublisher receives a summary of every finished flow.
type EventPublisher interface {
	PublishAsync(event events.FlowEvent)
}

// AuthHandler handles HTTP requests for login and registration.
type AuthHandler struct {
	svc    AuthFlows
	logger *slog.Logger
	events EventPublisher
	now    func() time.Time
}

// NewAuthHandler creates a new AuthHandler.
// Pass nil for publisher when the event feed is disabled.
func NewAuthHandler(svc AuthFlows, logger *slog.Logger, publisher EventPublisher) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		svc:    svc,
		logger: logger,
		events: publisher,
		now:    time.Now,
	}
}

// Login handles POST /api/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.svc.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.handleFlowError(w, r, metrics.FlowLogin, err)
		return
	}

	middleware.LoggerFrom(r.Context(), h.logger).Info("login_completed",
		slog.Int64("user_id", res.User.ID),
		slog.String("session_id", res.SessionID),
	)
	h.publish(r, events.FlowEvent{
		Flow:    metrics.FlowLogin,
		Outcome: metrics.OutcomeSuccess,
		Status:  http.StatusOK,
		UserID:  res.User.ID,
	})

	user := res.User
	writeJSON(w, http.StatusOK, dto.FlowResponse{
		Success:   true,
		Message:   res.Message,
		User:      &user,
		Token:     res.Token,
		SessionID: res.SessionID,
		FlowSteps: res.Trace,
	})
}

// Register handles POST /api/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.svc.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Confirm:  req.Confirm,
	})
	if err != nil {
		h.handleFlowError(w, r, metrics.FlowRegister, err)
		return
	}

	middleware.LoggerFrom(r.Context(), h.logger).Info("register_completed",
		slog.Int64("user_id", res.User.ID),
	)
	h.publish(r, events.FlowEvent{
		Flow:    metrics.FlowRegister,
		Outcome: metrics.OutcomeSuccess,
		Status:  http.StatusCreated,
		UserID:  res.User.ID,
	})

	user := res.User
	writeJSON(w, http.StatusCreated, dto.FlowResponse{
		Success:   true,
		Message:   res.Message,
		User:      &user,
		FlowSteps: res.Trace,
	})
}

// decode reads a JSON body into dst. A missing or malformed body leaves dst
// empty so the pipeline still runs and reports missing fields. It returns
// false only when the body exceeded the size limit and a response was written.
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: "Request body too large"})
			return false
		}
		middleware.LoggerFrom(r.Context(), h.logger).Debug("request_body_unreadable", slog.String("error", err.Error()))
		return true
	}
	if len(body) == 0 {
		return true
	}

	// Wrongly typed fields are handled like a missing body: the flow still
	// runs and reports missing fields instead of failing with a 500.
	if err := json.Unmarshal(body, dst); err != nil {
		middleware.LoggerFrom(r.Context(), h.logger).Debug("request_body_invalid", slog.String("error", err.Error()))
		resetTo(dst)
	}
	return true
}

// resetTo zeroes a request DTO after a partial decode.
func resetTo(dst any) {
	switch v := dst.(type) {
	case *dto.LoginRequest:
		*v = dto.LoginRequest{}
	case *dto.RegisterRequest:
		*v = dto.RegisterRequest{}
	}
}

// handleFlowError maps pipeline failures to HTTP responses.
func (h *AuthHandler) handleFlowError(w http.ResponseWriter, r *http.Request, flowName string, err error) {
	logger := middleware.LoggerFrom(r.Context(), h.logger)
	event := flowName + "_failed"

	var fe *service.FlowError
	if !errors.As(err, &fe) {
		logger.Error("internal_error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Server error"})
		return
	}

	attrs := []any{
		slog.String("kind", fe.Kind.String()),
		slog.Int("failed_step", fe.FailedStep()),
		slog.Int("status_code", fe.Kind.HTTPStatus()),
	}
	if fe.Err != nil {
		attrs = append(attrs, slog.String("error", fe.Err.Error()))
	}
	outcome := metrics.OutcomeFailure
	if fe.Kind == service.KindInternal {
		outcome = metrics.OutcomeError
		logger.Error(event, attrs...)
	} else {
		logger.Info(event, attrs...)
	}
	h.publish(r, events.FlowEvent{
		Flow:       flowName,
		Outcome:    outcome,
		Status:     fe.Kind.HTTPStatus(),
		FailedStep: fe.FailedStep(),
	})

	writeJSON(w, fe.Kind.HTTPStatus(), dto.FlowResponse{
		Success:   false,
		Message:   fe.Message,
		FlowSteps: fe.Trace,
	})
}

// publish hands a finished flow to the event feed, if one is configured.
func (h *AuthHandler) publish(r *http.Request, event events.FlowEvent) {
	if h.events == nil {
		return
	}

	now := h.now()
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}

	event.VisitorHash = events.VisitorHash(ip, r.UserAgent(), now)
	event.RequestID = middleware.GetRequestID(r.Context())
	event.FinishedAt = now.UnixMilli()
	h.events.PublishAsync(event)
}
