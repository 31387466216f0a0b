package db_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-rsvp/internal/checkin"
	"ms-rsvp/internal/checkin/db"
	"ms-rsvp/internal/domain"
	"ms-rsvp/internal/models"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	require.NoError(t, bunDB.ResetModel(ctx, (*models.Event)(nil)))
	require.NoError(t, bunDB.ResetModel(ctx, (*models.CheckinCode)(nil)))
	require.NoError(t, bunDB.ResetModel(ctx, (*models.Checkin)(nil)))

	t.Cleanup(func() { bunDB.Close() })
	return db.New(bunDB)
}

func intPtr(n int) *int { return &n }

func seedEvent(t *testing.T, store *db.DB, id string) {
	t.Helper()
	event := &models.Event{
		ID:        id,
		Title:     "Test Event",
		Status:    models.EventStatusPublished,
		StartAt:   time.Now().Add(24 * time.Hour).UTC(),
		CreatedAt: time.Now().UTC(),
	}
	_, err := store.Bun.NewInsert().Model(event).Exec(context.Background())
	require.NoError(t, err)
}

func seedCode(t *testing.T, store *db.DB, id, eventID string, maxUses *int) {
	t.Helper()
	code := &models.CheckinCode{
		ID:        id,
		EventID:   eventID,
		Code:      "GTH-" + id,
		MaxUses:   maxUses,
		CreatedBy: "organizer1",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.InsertCode(context.Background(), code))
}

func TestCodeByTokenNotFound(t *testing.T) {
	store := setupTestDB(t)

	_, err := store.CodeByToken(context.Background(), "GTH-NOPE")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConsumeCodeUseStopsAtCap(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	seedEvent(t, store, "ev1")
	seedCode(t, store, "code1", "ev1", intPtr(2))

	for i := 0; i < 2; i++ {
		ok, err := store.ConsumeCodeUse(ctx, "code1")
		require.NoError(t, err)
		assert.True(t, ok, "use %d should be within the cap", i+1)
	}

	ok, err := store.ConsumeCodeUse(ctx, "code1")
	require.NoError(t, err)
	assert.False(t, ok, "cap of 2 must reject the third use")

	code, err := store.CodeByID(ctx, "code1")
	require.NoError(t, err)
	assert.Equal(t, 2, code.CurrentUses, "current_uses must never pass max_uses")
}

func TestConsumeCodeUseUnlimited(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	seedEvent(t, store, "ev1")
	seedCode(t, store, "code1", "ev1", nil)

	for i := 0; i < 10; i++ {
		ok, err := store.ConsumeCodeUse(ctx, "code1")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	code, err := store.CodeByID(ctx, "code1")
	require.NoError(t, err)
	assert.Equal(t, 10, code.CurrentUses)
}

func TestInsertCheckinDuplicateUser(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	seedEvent(t, store, "ev1")

	first := &models.Checkin{
		ID: "chk1", EventID: "ev1", UserID: "u1",
		CheckinCodeID: "code1", Method: models.CheckinMethodCode,
		CheckedInAt: time.Now().UTC(),
	}
	require.NoError(t, store.InsertCheckin(ctx, first))

	second := &models.Checkin{
		ID: "chk2", EventID: "ev1", UserID: "u1",
		CheckinCodeID: "code1", Method: models.CheckinMethodCode,
		CheckedInAt: time.Now().UTC(),
	}
	err := store.InsertCheckin(ctx, second)

	assert.ErrorIs(t, err, domain.ErrAlreadyCheckedIn)
}

func TestInsertCheckinSameUserOtherEvent(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	seedEvent(t, store, "ev1")
	seedEvent(t, store, "ev2")

	for i, eventID := range []string{"ev1", "ev2"} {
		c := &models.Checkin{
			ID: "chk" + eventID, EventID: eventID, UserID: "u1",
			CheckinCodeID: "code1", Method: models.CheckinMethodCode,
			CheckedInAt: time.Now().UTC(),
		}
		require.NoError(t, store.InsertCheckin(ctx, c), "insert %d", i+1)
	}
}

func TestRecordConsumesCapPerUser(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	seedEvent(t, store, "ev1")
	seedCode(t, store, "code1", "ev1", intPtr(1))
	svc := checkin.NewCheckinService(store, nil)

	// One use left: the first redemption wins, the second hits the cap.
	_, err := svc.Record(ctx, "ev1", "alice", "code1", models.CheckinMethodCode)
	require.NoError(t, err)

	_, err = svc.Record(ctx, "ev1", "bob", "code1", models.CheckinMethodCode)
	assert.ErrorIs(t, err, domain.ErrCodeUsageExceeded)

	// The failed redemption rolled back: no row, no consumed use beyond 1.
	chk, err := store.GetCheckin(ctx, "ev1", "bob")
	require.NoError(t, err)
	assert.Nil(t, chk)

	code, err := store.CodeByID(ctx, "code1")
	require.NoError(t, err)
	assert.Equal(t, 1, code.CurrentUses)
}

func TestRecordSameUserTwice(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	seedEvent(t, store, "ev1")
	seedCode(t, store, "code1", "ev1", intPtr(10))
	svc := checkin.NewCheckinService(store, nil)

	_, err := svc.Record(ctx, "ev1", "alice", "code1", models.CheckinMethodCode)
	require.NoError(t, err)

	_, err = svc.Record(ctx, "ev1", "alice", "code1", models.CheckinMethodCode)
	assert.ErrorIs(t, err, domain.ErrAlreadyCheckedIn)

	// The duplicate attempt must not burn a use.
	code, err := store.CodeByID(ctx, "code1")
	require.NoError(t, err)
	assert.Equal(t, 1, code.CurrentUses)
}

func TestRecordConcurrentRedemptionsSingleWinner(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	seedEvent(t, store, "ev1")
	seedCode(t, store, "code1", "ev1", intPtr(1))
	svc := checkin.NewCheckinService(store, nil)

	// One connection serializes the transactions the way Postgres row
	// locks would; the cap must hold no matter which redemption wins.
	store.Bun.SetMaxOpenConns(1)

	users := []string{"alice", "bob"}
	errs := make([]error, len(users))
	var wg sync.WaitGroup
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Record(ctx, "ev1", users[i], "code1", models.CheckinMethodCode)
		}(i)
	}
	wg.Wait()

	var wins, capped int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrCodeUsageExceeded):
			capped++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one redemption may win the last use")
	assert.Equal(t, 1, capped)

	code, err := store.CodeByID(ctx, "code1")
	require.NoError(t, err)
	assert.Equal(t, 1, code.CurrentUses)
}

func TestRecordConcurrentSameUserChecksInOnce(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	seedEvent(t, store, "ev1")
	seedCode(t, store, "code1", "ev1", intPtr(10))
	svc := checkin.NewCheckinService(store, nil)

	store.Bun.SetMaxOpenConns(1)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Record(ctx, "ev1", "alice", "code1", models.CheckinMethodCode)
		}(i)
	}
	wg.Wait()

	var wins, dupes int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrAlreadyCheckedIn):
			dupes++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, dupes)

	count, err := store.Bun.NewSelect().
		Model((*models.Checkin)(nil)).
		Where("event_id = ?", "ev1").
		Where("user_id = ?", "alice").
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "at most one checkin row per (event, user)")

	code, err := store.CodeByID(ctx, "code1")
	require.NoError(t, err)
	assert.Equal(t, 1, code.CurrentUses, "the losing attempt must not burn a use")
}

func TestListCodesByEventOrdersByCreation(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	seedEvent(t, store, "ev1")

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"older", "newer"} {
		code := &models.CheckinCode{
			ID:        id,
			EventID:   "ev1",
			Code:      "GTH-" + id,
			CreatedBy: "organizer1",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, store.InsertCode(ctx, code))
	}

	codes, err := store.ListCodesByEvent(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, codes, 2)
	assert.Equal(t, "older", codes[0].ID)
	assert.Equal(t, "newer", codes[1].ID)
}
