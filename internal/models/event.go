package models

// EventType identifies what happened in a game session
type EventType string

const (
	EventStart    EventType = "start"
	EventComplete EventType = "complete"
)

// Event represents a game event posted by a page served from the root
type Event struct {
	Type  EventType `json:"type"`
	Score *int      `json:"score,omitempty"`
}

// EventResponse is returned after an event has been recorded
type EventResponse struct {
	Type     EventType `json:"type"`
	Recorded bool      `json:"recorded"`
}
