package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"static-server/internal/metrics"
	"static-server/internal/models"
)

var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrInvalidEvent      = errors.New("invalid event")
)

// EventService records game events into the game counters
type EventService struct {
	game        *metrics.GameMetrics
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

// NewEventService creates a new event service
func NewEventService(game *metrics.GameMetrics, rateLimiter *RateLimiter, logger *slog.Logger) *EventService {
	return &EventService{
		game:        game,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// RecordEvent validates an event from clientID and updates the counters
func (s *EventService) RecordEvent(ctx context.Context, clientID string, event *models.Event) error {
	if err := s.rateLimiter.CheckSubmissionRate(ctx, clientID); err != nil {
		return err
	}

	if err := validateEvent(event); err != nil {
		return err
	}

	switch event.Type {
	case models.EventStart:
		s.game.IncrementStarts()
	case models.EventComplete:
		s.game.RecordCompletion(*event.Score)
	}

	s.logger.Debug("game event recorded", "client", clientID, "type", event.Type)
	return nil
}

func validateEvent(event *models.Event) error {
	switch event.Type {
	case models.EventStart:
		return nil
	case models.EventComplete:
		if event.Score == nil {
			return fmt.Errorf("%w: score is required for %q", ErrInvalidEvent, event.Type)
		}
		if *event.Score < 0 {
			return fmt.Errorf("%w: score must not be negative", ErrInvalidEvent)
		}
		return nil
	case "":
		return fmt.Errorf("%w: type is required", ErrInvalidEvent)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, event.Type)
	}
}
