package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/blockchat/blockchat/internal/events"
	"github.com/blockchat/blockchat/internal/handler/dto"
	"github.com/blockchat/blockchat/internal/middleware"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 100
)

// EventReader reads the newest flow events.
type EventReader interface {
	Recent(ctx context.Context, count int64) ([]events.FlowEvent, error)
}

// EventsHandler serves the flow event feed.
type EventsHandler struct {
	reader EventReader
	logger *slog.Logger
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(reader EventReader, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{reader: reader, logger: logger}
}

// EventsResponse lists flow events, newest first.
type EventsResponse struct {
	Events []events.FlowEvent `json:"events"`
}

// Recent handles GET /api/events?limit=N.
func (h *EventsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxEventLimit {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error: "limit must be between 1 and " + strconv.Itoa(maxEventLimit),
			})
			return
		}
		limit = n
	}

	list, err := h.reader.Recent(r.Context(), int64(limit))
	if err != nil {
		middleware.LoggerFrom(r.Context(), h.logger).Error("events_read_failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "Event feed unavailable"})
		return
	}
	if list == nil {
		list = []events.FlowEvent{}
	}

	writeJSON(w, http.StatusOK, EventsResponse{Events: list})
}
