package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"static-server/internal/models"
	"static-server/internal/service"
)

const maxEventBodyBytes = 4 << 10

// EventHandler handles HTTP requests for game events
type EventHandler struct {
	eventService *service.EventService
	logger       *slog.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler(eventService *service.EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		eventService: eventService,
		logger:       logger,
	}
}

// RecordEvent handles POST /events
func (h *EventHandler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxEventBodyBytes)

	var event models.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err := h.eventService.RecordEvent(r.Context(), clientID(r), &event)
	switch {
	case errors.Is(err, service.ErrRateLimitExceeded):
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	case errors.Is(err, service.ErrInvalidEvent):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		h.logger.Error("error recording event", "error", err)
		http.Error(w, "failed to record event", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	resp := models.EventResponse{Type: event.Type, Recorded: true}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("error encoding response", "error", err)
	}
}

// clientID identifies the submitter by remote IP for rate limiting
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
