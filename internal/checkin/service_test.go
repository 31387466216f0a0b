package checkin_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-rsvp/internal/checkin"
	"ms-rsvp/internal/domain"
	"ms-rsvp/internal/models"
)

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) RunInTx(ctx context.Context, fn func(ctx context.Context, s checkin.Store) error) error {
	return fn(ctx, m)
}

func (m *MockDBLayer) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockDBLayer) CodeByToken(ctx context.Context, code string) (*models.CheckinCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckinCode), args.Error(1)
}

func (m *MockDBLayer) CodeByID(ctx context.Context, id string) (*models.CheckinCode, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckinCode), args.Error(1)
}

func (m *MockDBLayer) InsertCode(ctx context.Context, c *models.CheckinCode) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockDBLayer) ListCodesByEvent(ctx context.Context, eventID string) ([]models.CheckinCode, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CheckinCode), args.Error(1)
}

func (m *MockDBLayer) ConsumeCodeUse(ctx context.Context, codeID string) (bool, error) {
	args := m.Called(ctx, codeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDBLayer) GetCheckin(ctx context.Context, eventID, userID string) (*models.Checkin, error) {
	args := m.Called(ctx, eventID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Checkin), args.Error(1)
}

func (m *MockDBLayer) InsertCheckin(ctx context.Context, c *models.Checkin) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishDomainEvent(ev models.DomainEvent) error {
	args := m.Called(ev)
	return args.Error(0)
}

func intPtr(n int) *int { return &n }

func timePtr(t time.Time) *time.Time { return &t }

func publishedEvent(eventType string) interface{} {
	return mock.MatchedBy(func(ev models.DomainEvent) bool {
		return ev.Type == eventType
	})
}

func activeCode() *models.CheckinCode {
	return &models.CheckinCode{
		ID:      "code1",
		EventID: "ev1",
		Code:    "GTH-SUMMER25",
		MaxUses: intPtr(100),
	}
}

func TestValidateOK(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := checkin.NewCheckinService(mockDB, nil)

	code := activeCode()
	mockDB.On("CodeByToken", mock.Anything, "GTH-SUMMER25").Return(code, nil)
	mockDB.On("GetEvent", mock.Anything, "ev1").
		Return(&models.Event{ID: "ev1", Status: models.EventStatusPublished}, nil)

	got, err := svc.Validate(context.Background(), "GTH-SUMMER25")

	require.NoError(t, err)
	assert.Equal(t, "code1", got.ID)
}

func TestValidateUnknownCode(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := checkin.NewCheckinService(mockDB, nil)

	mockDB.On("CodeByToken", mock.Anything, "GTH-NOPE").Return(nil, domain.ErrNotFound)

	_, err := svc.Validate(context.Background(), "GTH-NOPE")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestValidateExpiredCode(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := checkin.NewCheckinService(mockDB, nil)

	code := activeCode()
	code.ExpiresAt = timePtr(time.Now().Add(-time.Hour))
	mockDB.On("CodeByToken", mock.Anything, "GTH-SUMMER25").Return(code, nil)

	_, err := svc.Validate(context.Background(), "GTH-SUMMER25")

	assert.ErrorIs(t, err, domain.ErrCodeExpired)
}

func TestValidateExhaustedCode(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := checkin.NewCheckinService(mockDB, nil)

	code := activeCode()
	code.MaxUses = intPtr(3)
	code.CurrentUses = 3
	mockDB.On("CodeByToken", mock.Anything, "GTH-SUMMER25").Return(code, nil)

	_, err := svc.Validate(context.Background(), "GTH-SUMMER25")

	assert.ErrorIs(t, err, domain.ErrCodeUsageExceeded)
}

func TestValidateCancelledEvent(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := checkin.NewCheckinService(mockDB, nil)

	mockDB.On("CodeByToken", mock.Anything, "GTH-SUMMER25").Return(activeCode(), nil)
	mockDB.On("GetEvent", mock.Anything, "ev1").
		Return(&models.Event{ID: "ev1", Status: models.EventStatusCancelled}, nil)

	_, err := svc.Validate(context.Background(), "GTH-SUMMER25")

	assert.ErrorIs(t, err, domain.ErrEventCancelled)
}

func TestRecordSuccess(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockPub := new(MockPublisher)
	svc := checkin.NewCheckinService(mockDB, mockPub)

	mockDB.On("CodeByID", mock.Anything, "code1").Return(activeCode(), nil)
	mockDB.On("GetCheckin", mock.Anything, "ev1", "u1").Return(nil, nil)
	mockDB.On("ConsumeCodeUse", mock.Anything, "code1").Return(true, nil)
	mockDB.On("InsertCheckin", mock.Anything, mock.AnythingOfType("*models.Checkin")).Return(nil)
	mockPub.On("PublishDomainEvent", publishedEvent(models.EventTypeCheckinRecorded)).Return(nil)

	result, err := svc.Record(context.Background(), "ev1", "u1", "code1", models.CheckinMethodCode)

	require.NoError(t, err)
	assert.Equal(t, "u1", result.Checkin.UserID)
	assert.Equal(t, models.CheckinMethodCode, result.Checkin.Method)
	assert.Len(t, result.Events, 1)
	mockDB.AssertExpectations(t)
	mockPub.AssertExpectations(t)
}

func TestRecordAlreadyCheckedIn(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockPub := new(MockPublisher)
	svc := checkin.NewCheckinService(mockDB, mockPub)

	mockDB.On("CodeByID", mock.Anything, "code1").Return(activeCode(), nil)
	mockDB.On("GetCheckin", mock.Anything, "ev1", "u1").
		Return(&models.Checkin{ID: "chk1", EventID: "ev1", UserID: "u1"}, nil)

	_, err := svc.Record(context.Background(), "ev1", "u1", "code1", models.CheckinMethodCode)

	assert.ErrorIs(t, err, domain.ErrAlreadyCheckedIn)
	mockDB.AssertNotCalled(t, "ConsumeCodeUse", mock.Anything, mock.Anything)
	mockPub.AssertNotCalled(t, "PublishDomainEvent", mock.Anything)
}

func TestRecordUsageCapConsumed(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockPub := new(MockPublisher)
	svc := checkin.NewCheckinService(mockDB, mockPub)

	mockDB.On("CodeByID", mock.Anything, "code1").Return(activeCode(), nil)
	mockDB.On("GetCheckin", mock.Anything, "ev1", "u1").Return(nil, nil)
	mockDB.On("ConsumeCodeUse", mock.Anything, "code1").Return(false, nil)

	_, err := svc.Record(context.Background(), "ev1", "u1", "code1", models.CheckinMethodCode)

	assert.ErrorIs(t, err, domain.ErrCodeUsageExceeded)
	mockDB.AssertNotCalled(t, "InsertCheckin", mock.Anything, mock.Anything)
	mockPub.AssertNotCalled(t, "PublishDomainEvent", mock.Anything)
}

func TestRecordCodeForOtherEvent(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := checkin.NewCheckinService(mockDB, nil)

	code := activeCode()
	code.EventID = "ev2"
	mockDB.On("CodeByID", mock.Anything, "code1").Return(code, nil)

	_, err := svc.Record(context.Background(), "ev1", "u1", "code1", models.CheckinMethodCode)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordExpiredAtWriteTime(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := checkin.NewCheckinService(mockDB, nil)

	code := activeCode()
	code.ExpiresAt = timePtr(time.Now().Add(-time.Minute))
	mockDB.On("CodeByID", mock.Anything, "code1").Return(code, nil)

	_, err := svc.Record(context.Background(), "ev1", "u1", "code1", models.CheckinMethodCode)

	assert.ErrorIs(t, err, domain.ErrCodeExpired)
	mockDB.AssertNotCalled(t, "ConsumeCodeUse", mock.Anything, mock.Anything)
}

func TestCreateCode(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := checkin.NewCheckinService(mockDB, nil)

	mockDB.On("GetEvent", mock.Anything, "ev1").
		Return(&models.Event{ID: "ev1", Status: models.EventStatusPublished}, nil)
	mockDB.On("InsertCode", mock.Anything, mock.AnythingOfType("*models.CheckinCode")).Return(nil)

	code, err := svc.CreateCode(context.Background(), "ev1", "organizer1", intPtr(50), nil)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(code.Code, "GTH-"))
	assert.NotEmpty(t, code.ID)
	assert.Equal(t, "organizer1", code.CreatedBy)
	mockDB.AssertExpectations(t)
}

func TestCreateCodeCancelledEvent(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := checkin.NewCheckinService(mockDB, nil)

	mockDB.On("GetEvent", mock.Anything, "ev1").
		Return(&models.Event{ID: "ev1", Status: models.EventStatusCancelled}, nil)

	_, err := svc.CreateCode(context.Background(), "ev1", "organizer1", nil, nil)

	assert.ErrorIs(t, err, domain.ErrEventCancelled)
	mockDB.AssertNotCalled(t, "InsertCode", mock.Anything, mock.Anything)
}

func TestListCodesUnknownEvent(t *testing.T) {
	mockDB := new(MockDBLayer)
	svc := checkin.NewCheckinService(mockDB, nil)

	mockDB.On("GetEvent", mock.Anything, "missing").Return(nil, domain.ErrNotFound)

	_, err := svc.ListCodes(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
