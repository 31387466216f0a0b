package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-rsvp/internal/domain"
	"ms-rsvp/internal/models"
	"ms-rsvp/internal/rsvp"
)

// DB is the bun-backed RSVP store. The embedded Store runs against the
// root connection; RunInTx hands callbacks a Store bound to the
// transaction instead, so the same queries run either way.
type DB struct {
	*Store
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Store: &Store{db: bunDB}, Bun: bunDB}
}

func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, s rsvp.Store) error) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Store{db: tx})
	})
}

// Store implements rsvp.Store over either a *bun.DB or a bun.Tx.
type Store struct {
	db bun.IDB
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	var event models.Event
	err := s.db.NewSelect().
		Model(&event).
		Where("id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", eventID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ActiveRsvp returns the user's non-cancelled RSVP for the event, or
// nil when there is none.
func (s *Store) ActiveRsvp(ctx context.Context, eventID, userID string) (*models.Rsvp, error) {
	var r models.Rsvp
	err := s.db.NewSelect().
		Model(&r).
		Where("event_id = ?", eventID).
		Where("user_id = ?", userID).
		Where("status != ?", models.RsvpStatusCancelled).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) CountByStatus(ctx context.Context, eventID, status string) (int, error) {
	return s.db.NewSelect().
		Model((*models.Rsvp)(nil)).
		Where("event_id = ?", eventID).
		Where("status = ?", status).
		Count(ctx)
}

func (s *Store) InsertRsvp(ctx context.Context, r *models.Rsvp) error {
	_, err := s.db.NewInsert().Model(r).Exec(ctx)
	return err
}

// CancelRsvp flips the row to cancelled. The row stays in place for
// audit and idempotent re-query.
func (s *Store) CancelRsvp(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.NewUpdate().
		Model((*models.Rsvp)(nil)).
		Set("status = ?", models.RsvpStatusCancelled).
		Set("cancelled_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// ConfirmRsvp promotes a waitlisted row. The status guard keeps a
// retried promotion from touching rows that already moved on.
func (s *Store) ConfirmRsvp(ctx context.Context, id int64) error {
	_, err := s.db.NewUpdate().
		Model((*models.Rsvp)(nil)).
		Set("status = ?", models.RsvpStatusConfirmed).
		Where("id = ?", id).
		Where("status = ?", models.RsvpStatusWaitlisted).
		Exec(ctx)
	return err
}

// NextWaitlisted returns the longest-waiting waitlisted RSVP for the
// event, ordered by (rsvp_at, id), or nil when the waitlist is empty.
func (s *Store) NextWaitlisted(ctx context.Context, eventID string) (*models.Rsvp, error) {
	var r models.Rsvp
	err := s.db.NewSelect().
		Model(&r).
		Where("event_id = ?", eventID).
		Where("status = ?", models.RsvpStatusWaitlisted).
		Order("rsvp_at ASC", "id ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// WaitlistPosition derives the 1-based rank of a waitlisted RSVP among
// the event's waitlisted rows in (rsvp_at, id) order. Counting rows at
// or before the target includes the row itself, which is exactly the
// rank.
func (s *Store) WaitlistPosition(ctx context.Context, r *models.Rsvp) (int, error) {
	return s.db.NewSelect().
		Model((*models.Rsvp)(nil)).
		Where("event_id = ?", r.EventID).
		Where("status = ?", models.RsvpStatusWaitlisted).
		Where("rsvp_at < ? OR (rsvp_at = ? AND id <= ?)", r.RsvpAt, r.RsvpAt, r.ID).
		Count(ctx)
}
