package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names a match lifecycle event
type EventType string

const (
	EventTypeMatchCreated  EventType = "MatchCreated"
	EventTypeMatchTimedOut EventType = "MatchTimedOut"
	EventTypeMatchExtended EventType = "MatchExtended"
	EventTypeMatchEnded    EventType = "MatchEnded"
)

// MatchEvent is the envelope published for every lifecycle transition
type MatchEvent struct {
	EventID   string          `json:"eventId"`
	EventType EventType       `json:"eventType"`
	MatchID   string          `json:"matchId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// MatchCreatedPayload is emitted when two participants are paired
type MatchCreatedPayload struct {
	ParticipantA  string    `json:"participant_a"`
	ParticipantB  string    `json:"participant_b"`
	StartedAt     time.Time `json:"started_at"`
	EndsAt        time.Time `json:"ends_at"`
	CooldownUntil time.Time `json:"cooldown_until"`
}

// MatchTimedOutPayload is emitted when the countdown elapses and the
// decision window opens
type MatchTimedOutPayload struct {
	DecisionEndsAt time.Time `json:"decision_ends_at"`
}

// MatchExtendedPayload is emitted after both participants paid for more time
type MatchExtendedPayload struct {
	EndsAt      time.Time `json:"ends_at"`
	TriggeredBy string    `json:"triggered_by"`
}

// MatchEndedPayload is emitted when a session is removed
type MatchEndedPayload struct {
	Reason   string        `json:"reason"`
	Duration time.Duration `json:"duration_ns"`
}

// New builds an envelope with a fresh id. Payload marshal failures are not
// possible for the payload structs above, so the error is dropped.
func New(eventType EventType, matchID string, at time.Time, payload any) MatchEvent {
	data, _ := json.Marshal(payload)
	return MatchEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		MatchID:   matchID,
		Timestamp: at,
		Payload:   data,
	}
}
