package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	CheckinMethodCode   = "code"
	CheckinMethodManual = "manual"
)

// CheckinCode is an opaque door token for one event. max_uses nil means
// unlimited redemptions; expires_at nil means no expiry. current_uses
// only ever grows, and only through the conditional increment in the
// checkin store.
type CheckinCode struct {
	bun.BaseModel `bun:"table:checkin_codes"`

	ID          string     `bun:"id,pk" json:"id"`
	EventID     string     `bun:"event_id,notnull" json:"event_id"`
	Code        string     `bun:"code,unique,notnull" json:"code"`
	MaxUses     *int       `bun:"max_uses" json:"max_uses,omitempty"`
	CurrentUses int        `bun:"current_uses,notnull,default:0" json:"current_uses"`
	ExpiresAt   *time.Time `bun:"expires_at" json:"expires_at,omitempty"`
	CreatedBy   string     `bun:"created_by,notnull" json:"created_by"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// Expired reports whether the code's expiry, if any, has passed.
func (c *CheckinCode) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// Exhausted reports whether the usage cap, if any, has been reached.
func (c *CheckinCode) Exhausted() bool {
	return c.MaxUses != nil && c.CurrentUses >= *c.MaxUses
}

// Checkin records one user's attendance at one event. The
// (event_id, user_id) pair is unique at the storage level, which is
// what makes concurrent redemptions by the same user collapse to a
// single row. Rows are immutable once written.
type Checkin struct {
	bun.BaseModel `bun:"table:checkins"`

	ID            string    `bun:"id,pk" json:"id"`
	EventID       string    `bun:"event_id,notnull,unique:checkins_event_user" json:"event_id"`
	UserID        string    `bun:"user_id,notnull,unique:checkins_event_user" json:"user_id"`
	CheckinCodeID string    `bun:"checkin_code_id,notnull" json:"checkin_code_id"`
	Method        string    `bun:"method,notnull" json:"method"`
	CheckedInAt   time.Time `bun:"checked_in_at,notnull" json:"checked_in_at"`
}
