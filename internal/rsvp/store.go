package rsvp

import (
	"context"
	"time"

	"ms-rsvp/internal/models"
)

// Store is the set of queries the RSVP core runs. The same interface is
// served by the root connection and by a transaction, so the admission
// gate and the promoter run identically inside or outside a tx.
type Store interface {
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	ActiveRsvp(ctx context.Context, eventID, userID string) (*models.Rsvp, error)
	CountByStatus(ctx context.Context, eventID, status string) (int, error)
	InsertRsvp(ctx context.Context, r *models.Rsvp) error
	CancelRsvp(ctx context.Context, id int64, at time.Time) error
	ConfirmRsvp(ctx context.Context, id int64) error
	NextWaitlisted(ctx context.Context, eventID string) (*models.Rsvp, error)
	WaitlistPosition(ctx context.Context, r *models.Rsvp) (int, error)
}

// DBLayer adds the transactional boundary. Every mutating operation of
// the service runs its read-modify-write inside one RunInTx call.
type DBLayer interface {
	Store
	RunInTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

// EventLock serializes admissions and promotions per event.
type EventLock interface {
	AcquireEventLock(ctx context.Context, eventID, token string) (bool, error)
	ReleaseEventLock(ctx context.Context, eventID, token string) error
}

// Publisher delivers committed domain events to the outbound queue.
type Publisher interface {
	PublishDomainEvent(ev models.DomainEvent) error
}
