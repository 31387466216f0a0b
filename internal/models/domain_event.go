package models

import (
	"time"

	"github.com/google/uuid"
)

// Domain event types, one per state transition this service owns.
const (
	EventTypeRsvpConfirmed   = "rsvp.confirmed"
	EventTypeRsvpWaitlisted  = "rsvp.waitlisted"
	EventTypeRsvpCancelled   = "rsvp.cancelled"
	EventTypeRsvpPromoted    = "rsvp.promoted"
	EventTypeCheckinRecorded = "checkin.recorded"
)

// DomainEvent is the outbound record of a single committed state
// transition. Downstream consumers (achievements, webhooks, realtime
// feeds) own the full payload contract; this service guarantees exactly
// one event per transition, published only after the owning transaction
// commits.
type DomainEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	RsvpID     int64     `json:"rsvp_id,omitempty"`
	CheckinID  string    `json:"checkin_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewDomainEvent stamps a fresh event envelope.
func NewDomainEvent(eventType, eventID, userID string) DomainEvent {
	return DomainEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		EventID:    eventID,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}
