package rsvp

import (
	"context"
	"fmt"
	"time"

	"ms-rsvp/internal/models"
)

// AdmissionGate decides confirmed vs. waitlisted for a new RSVP under
// the event's capacity limit. Admit must run inside a transaction while
// the caller holds the per-event lock; the count-then-insert below is
// only safe under that serialization.
type AdmissionGate struct{}

// Admit counts the event's confirmed RSVPs, compares against
// max_attendees (unlimited when nil) and inserts the new row with the
// resulting status. The inserted row, with its generated id, is
// returned.
func (g AdmissionGate) Admit(ctx context.Context, s Store, event *models.Event, userID string) (*models.Rsvp, error) {
	status := models.RsvpStatusConfirmed
	if !event.Unlimited() {
		confirmed, err := s.CountByStatus(ctx, event.ID, models.RsvpStatusConfirmed)
		if err != nil {
			return nil, fmt.Errorf("count confirmed rsvps for event %s: %w", event.ID, err)
		}
		if confirmed >= *event.MaxAttendees {
			status = models.RsvpStatusWaitlisted
		}
	}

	r := &models.Rsvp{
		EventID: event.ID,
		UserID:  userID,
		Status:  status,
		RsvpAt:  time.Now().UTC(),
	}
	if err := s.InsertRsvp(ctx, r); err != nil {
		return nil, fmt.Errorf("insert rsvp for event %s: %w", event.ID, err)
	}
	return r, nil
}
