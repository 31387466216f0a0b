package checkin

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"ms-rsvp/internal/domain"
	"ms-rsvp/internal/models"
	"ms-rsvp/internal/utils"
)

// CheckinService validates redemption codes and records attendance.
// Validate is advisory; Record re-checks everything at write time
// inside one transaction, so a code that passed Validate moments
// earlier can still fail Record when the cap was consumed in between.
type CheckinService struct {
	DB     DBLayer
	Kafka  Publisher
	Logger *log.Logger
}

func NewCheckinService(db DBLayer, kafka Publisher) *CheckinService {
	return &CheckinService{DB: db, Kafka: kafka, Logger: log.Default()}
}

// RecordResult carries the new check-in row plus the single domain
// event describing it.
type RecordResult struct {
	Checkin *models.Checkin      `json:"checkin"`
	Events  []models.DomainEvent `json:"-"`
}

// Validate checks a code's existence, expiry, remaining uses and the
// event's status. It takes no locks and mutates nothing.
func (s *CheckinService) Validate(ctx context.Context, code string) (*models.CheckinCode, error) {
	c, err := s.DB.CodeByToken(ctx, code)
	if err != nil {
		return nil, err
	}
	if c.Expired(time.Now()) {
		return nil, fmt.Errorf("code %s: %w", code, domain.ErrCodeExpired)
	}
	if c.Exhausted() {
		return nil, fmt.Errorf("code %s: %w", code, domain.ErrCodeUsageExceeded)
	}

	event, err := s.DB.GetEvent(ctx, c.EventID)
	if err != nil {
		return nil, err
	}
	if event.Status == models.EventStatusCancelled {
		return nil, fmt.Errorf("event %s: %w", event.ID, domain.ErrEventCancelled)
	}
	return c, nil
}

// Record writes the check-in and consumes one code use as a single
// atomic unit. The (event, user) uniqueness is enforced by the storage
// constraint, not just the pre-read, closing the double-redeem race.
func (s *CheckinService) Record(ctx context.Context, eventID, userID, codeID, method string) (*RecordResult, error) {
	result := &RecordResult{}

	err := s.DB.RunInTx(ctx, func(ctx context.Context, store Store) error {
		code, err := store.CodeByID(ctx, codeID)
		if err != nil {
			return err
		}
		if code.EventID != eventID {
			return fmt.Errorf("code %s for event %s: %w", codeID, eventID, domain.ErrNotFound)
		}
		if code.Expired(time.Now()) {
			return fmt.Errorf("code %s: %w", codeID, domain.ErrCodeExpired)
		}

		existing, err := store.GetCheckin(ctx, eventID, userID)
		if err != nil {
			return fmt.Errorf("check existing checkin: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("user %s at event %s: %w", userID, eventID, domain.ErrAlreadyCheckedIn)
		}

		consumed, err := store.ConsumeCodeUse(ctx, codeID)
		if err != nil {
			return fmt.Errorf("consume use of code %s: %w", codeID, err)
		}
		if !consumed {
			return fmt.Errorf("code %s: %w", codeID, domain.ErrCodeUsageExceeded)
		}

		c := &models.Checkin{
			ID:            uuid.NewString(),
			EventID:       eventID,
			UserID:        userID,
			CheckinCodeID: codeID,
			Method:        method,
			CheckedInAt:   time.Now().UTC(),
		}
		if err := store.InsertCheckin(ctx, c); err != nil {
			return err
		}

		ev := models.NewDomainEvent(models.EventTypeCheckinRecorded, eventID, userID)
		ev.CheckinID = c.ID
		result.Checkin = c
		result.Events = []models.DomainEvent{ev}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(result.Events)
	return result, nil
}

// CreateCode issues a fresh door token for an event. maxUses and
// expiresAt are both optional.
func (s *CheckinService) CreateCode(ctx context.Context, eventID, createdBy string, maxUses *int, expiresAt *time.Time) (*models.CheckinCode, error) {
	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status == models.EventStatusCancelled {
		return nil, fmt.Errorf("event %s: %w", eventID, domain.ErrEventCancelled)
	}

	c := &models.CheckinCode{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Code:      utils.GenerateCheckinCode(),
		MaxUses:   maxUses,
		ExpiresAt: expiresAt,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.DB.InsertCode(ctx, c); err != nil {
		return nil, fmt.Errorf("insert checkin code: %w", err)
	}
	return c, nil
}

// ListCodes returns every code issued for the event.
func (s *CheckinService) ListCodes(ctx context.Context, eventID string) ([]models.CheckinCode, error) {
	if _, err := s.DB.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.DB.ListCodesByEvent(ctx, eventID)
}

func (s *CheckinService) publish(events []models.DomainEvent) {
	if s.Kafka == nil {
		return
	}
	for _, ev := range events {
		if err := s.Kafka.PublishDomainEvent(ev); err != nil {
			s.Logger.Printf("KAFKA: publish %s for event %s failed: %v", ev.Type, ev.EventID, err)
		}
	}
}
