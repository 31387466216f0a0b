package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	RsvpStatusConfirmed  = "confirmed"
	RsvpStatusWaitlisted = "waitlisted"
	RsvpStatusCancelled  = "cancelled"
)

// Rsvp is one user's signup for one event. Rows are never deleted;
// cancellation flips status and stamps cancelled_at. The autoincrement
// id doubles as the tiebreaker for RSVPs created in the same instant,
// so waitlist order is always (rsvp_at, id) ascending.
type Rsvp struct {
	bun.BaseModel `bun:"table:rsvps"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	EventID     string    `bun:"event_id,notnull" json:"event_id"`
	UserID      string    `bun:"user_id,notnull" json:"user_id"`
	Status      string    `bun:"status,notnull" json:"status"`
	RsvpAt      time.Time `bun:"rsvp_at,notnull" json:"rsvp_at"`
	CancelledAt time.Time `bun:"cancelled_at,nullzero" json:"cancelled_at,omitempty"`
}

// Active reports whether the RSVP still holds or waits for a slot.
func (r *Rsvp) Active() bool {
	return r.Status != RsvpStatusCancelled
}

// RsvpStatusView is what status reads return: the row plus, for a
// waitlisted RSVP, its 1-based queue position derived at read time.
// The position is never stored, so promotions never renumber anything.
type RsvpStatusView struct {
	Rsvp             *Rsvp `json:"rsvp"`
	WaitlistPosition int   `json:"waitlist_position,omitempty"`
}

// RsvpSummary is the per-event attendance snapshot. Capacity is nil
// for events without a max_attendees limit.
type RsvpSummary struct {
	EventID    string `json:"event_id"`
	Confirmed  int    `json:"confirmed"`
	Waitlisted int    `json:"waitlisted"`
	Capacity   *int   `json:"capacity"`
}
