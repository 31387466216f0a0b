package checkin

import (
	"context"

	"ms-rsvp/internal/models"
)

// Store is the set of queries the check-in core runs, served by the
// root connection or by a transaction.
type Store interface {
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	CodeByToken(ctx context.Context, code string) (*models.CheckinCode, error)
	CodeByID(ctx context.Context, id string) (*models.CheckinCode, error)
	InsertCode(ctx context.Context, c *models.CheckinCode) error
	ListCodesByEvent(ctx context.Context, eventID string) ([]models.CheckinCode, error)
	// ConsumeCodeUse is the race-closing step: a single conditional
	// increment that reports false once the cap is reached.
	ConsumeCodeUse(ctx context.Context, codeID string) (bool, error)
	GetCheckin(ctx context.Context, eventID, userID string) (*models.Checkin, error)
	InsertCheckin(ctx context.Context, c *models.Checkin) error
}

// DBLayer adds the transactional boundary: the usage increment and the
// check-in insert commit or roll back together.
type DBLayer interface {
	Store
	RunInTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

// Publisher delivers committed domain events to the outbound queue.
type Publisher interface {
	PublishDomainEvent(ev models.DomainEvent) error
}
