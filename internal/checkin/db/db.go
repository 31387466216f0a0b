package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"ms-rsvp/internal/checkin"
	"ms-rsvp/internal/domain"
	"ms-rsvp/internal/models"
)

// DB is the bun-backed check-in store.
type DB struct {
	*Store
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Store: &Store{db: bunDB}, Bun: bunDB}
}

func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, s checkin.Store) error) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Store{db: tx})
	})
}

// Store implements checkin.Store over either a *bun.DB or a bun.Tx.
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

func (s *Store) CodeByToken(ctx context.Context, code string) (*models.CheckinCode, error) {
	var c models.CheckinCode
	err := s.db.NewSelect().
		Model(&c).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checkin code %s: %w", code, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CodeByID(ctx context.Context, id string) (*models.CheckinCode, error) {
	var c models.CheckinCode
	err := s.db.NewSelect().
		Model(&c).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checkin code %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) InsertCode(ctx context.Context, c *models.CheckinCode) error {
	_, err := s.db.NewInsert().Model(c).Exec(ctx)
	return err
}

func (s *Store) ListCodesByEvent(ctx context.Context, eventID string) ([]models.CheckinCode, error) {
	var codes []models.CheckinCode
	err := s.db.NewSelect().
		Model(&codes).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// ConsumeCodeUse increments current_uses by one, but only while under
// the cap (or when the cap is null). Zero affected rows means the cap
// is spent; the caller must not insert the check-in then. The guard
// lives in the WHERE clause so concurrent redemptions can never push
// current_uses past max_uses.
func (s *Store) ConsumeCodeUse(ctx context.Context, codeID string) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*models.CheckinCode)(nil)).
		Set("current_uses = current_uses + 1").
		Where("id = ?", codeID).
		Where("max_uses IS NULL OR current_uses < max_uses").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetCheckin returns the user's check-in for the event, or nil when
// they have not checked in.
func (s *Store) GetCheckin(ctx context.Context, eventID, userID string) (*models.Checkin, error) {
	var c models.Checkin
	err := s.db.NewSelect().
		Model(&c).
		Where("event_id = ?", eventID).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertCheckin writes the row. The unique (event_id, user_id) index is
// the real guard against two concurrent redemptions by the same user;
// a violation surfaces as ErrAlreadyCheckedIn.
func (s *Store) InsertCheckin(ctx context.Context, c *models.Checkin) error {
	_, err := s.db.NewInsert().Model(c).Exec(ctx)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("user %s at event %s: %w", c.UserID, c.EventID, domain.ErrAlreadyCheckedIn)
	}
	return err
}

// isUniqueViolation covers Postgres and the SQLite used in tests.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
