package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	EventStatusPublished = "published"
	EventStatusCancelled = "cancelled"
)

// Event rows are owned by the events service. This service only reads
// id, status and max_attendees; it never writes the table.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID           string    `bun:"id,pk" json:"id"`
	Title        string    `bun:"title,notnull" json:"title"`
	Status       string    `bun:"status,notnull" json:"status"`
	MaxAttendees *int      `bun:"max_attendees" json:"max_attendees,omitempty"`
	StartAt      time.Time `bun:"start_at,notnull" json:"start_at"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// Unlimited reports whether the event has no capacity limit.
func (e *Event) Unlimited() bool {
	return e.MaxAttendees == nil
}
