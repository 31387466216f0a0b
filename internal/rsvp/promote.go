package rsvp

import (
	"context"
	"fmt"

	"ms-rsvp/internal/models"
)

// WaitlistPromoter moves the longest-waiting waitlisted RSVP into the
// confirmed slot a cancellation just freed. Promote runs in the same
// transaction as the cancellation, under the same per-event lock as the
// admission gate; two concurrent cancellations therefore never pick the
// same candidate or promote out of order.
type WaitlistPromoter struct{}

// Promote flips the earliest-waiting RSVP (smallest rsvp_at, id) to
// confirmed and returns it. Returns nil with no error when the waitlist
// is empty, so duplicate triggers are harmless.
func (p WaitlistPromoter) Promote(ctx context.Context, s Store, eventID string) (*models.Rsvp, error) {
	next, err := s.NextWaitlisted(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("select next waitlisted for event %s: %w", eventID, err)
	}
	if next == nil {
		return nil, nil
	}

	if err := s.ConfirmRsvp(ctx, next.ID); err != nil {
		return nil, fmt.Errorf("confirm rsvp %d: %w", next.ID, err)
	}
	next.Status = models.RsvpStatusConfirmed
	return next, nil
}
