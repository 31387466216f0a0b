package rsvp

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"ms-rsvp/internal/domain"
	"ms-rsvp/internal/models"
)

// RsvpService is the per-user RSVP lifecycle facade. Mutations acquire
// the per-event lock, run inside one transaction, and publish their
// domain events only after that transaction commits.
type RsvpService struct {
	DB     DBLayer
	Lock   EventLock
	Kafka  Publisher
	Logger *log.Logger

	gate     AdmissionGate
	promoter WaitlistPromoter

	maxAttempts  int
	retryBackoff time.Duration
}

func NewRsvpService(db DBLayer, lock EventLock, kafka Publisher, maxAttempts int, retryBackoff time.Duration) *RsvpService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RsvpService{
		DB:           db,
		Lock:         lock,
		Kafka:        kafka,
		Logger:       log.Default(),
		maxAttempts:  maxAttempts,
		retryBackoff: retryBackoff,
	}
}

// CreateRsvpResult carries the row plus the domain events describing
// what changed. The idempotent repeat path carries no events, since
// nothing transitioned.
type CreateRsvpResult struct {
	Rsvp   *models.Rsvp         `json:"rsvp"`
	Events []models.DomainEvent `json:"-"`
}

// CancelRsvpResult reports which waitlisted user, if any, took over the
// freed slot.
type CancelRsvpResult struct {
	PromotedUserID string               `json:"promoted_user_id,omitempty"`
	Events         []models.DomainEvent `json:"-"`
}

// GetStatus returns the caller's active RSVP for the event, with the
// derived waitlist position when waiting, or nil when none exists.
func (s *RsvpService) GetStatus(ctx context.Context, eventID, userID string) (*models.RsvpStatusView, error) {
	r, err := s.DB.ActiveRsvp(ctx, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("load rsvp for event %s: %w", eventID, err)
	}
	if r == nil {
		return nil, nil
	}

	view := &models.RsvpStatusView{Rsvp: r}
	if r.Status == models.RsvpStatusWaitlisted {
		pos, err := s.DB.WaitlistPosition(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("derive waitlist position for rsvp %d: %w", r.ID, err)
		}
		view.WaitlistPosition = pos
	}
	return view, nil
}

// GetSummary returns the latest committed confirmed/waitlisted counts
// and the event's capacity. Nothing is cached.
func (s *RsvpService) GetSummary(ctx context.Context, eventID string) (*models.RsvpSummary, error) {
	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	confirmed, err := s.DB.CountByStatus(ctx, eventID, models.RsvpStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("count confirmed for event %s: %w", eventID, err)
	}
	waitlisted, err := s.DB.CountByStatus(ctx, eventID, models.RsvpStatusWaitlisted)
	if err != nil {
		return nil, fmt.Errorf("count waitlisted for event %s: %w", eventID, err)
	}

	return &models.RsvpSummary{
		EventID:    eventID,
		Confirmed:  confirmed,
		Waitlisted: waitlisted,
		Capacity:   event.MaxAttendees,
	}, nil
}

// CreateRsvp admits the user to the event, waitlisting when the event
// is full. A repeated call for an already-active RSVP returns the
// existing row unchanged.
func (s *RsvpService) CreateRsvp(ctx context.Context, eventID, userID string) (*CreateRsvpResult, error) {
	result := &CreateRsvpResult{}

	err := s.withEventLock(ctx, eventID, func(ctx context.Context) error {
		return s.DB.RunInTx(ctx, func(ctx context.Context, store Store) error {
			event, err := store.GetEvent(ctx, eventID)
			if err != nil {
				return err
			}
			if event.Status == models.EventStatusCancelled {
				return fmt.Errorf("event %s: %w", eventID, domain.ErrEventCancelled)
			}

			existing, err := store.ActiveRsvp(ctx, eventID, userID)
			if err != nil {
				return fmt.Errorf("check existing rsvp: %w", err)
			}
			if existing != nil {
				// Repeat signup: hand back the row as-is, no transition.
				result.Rsvp = existing
				result.Events = nil
				return nil
			}

			created, err := s.gate.Admit(ctx, store, event, userID)
			if err != nil {
				return err
			}

			ev := models.NewDomainEvent(transitionFor(created.Status), eventID, userID)
			ev.RsvpID = created.ID
			result.Rsvp = created
			result.Events = []models.DomainEvent{ev}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(result.Events)
	return result, nil
}

// CancelRsvp cancels the caller's active RSVP. When the cancelled RSVP
// held a confirmed slot, the longest-waiting waitlisted user is
// promoted in the same transaction.
func (s *RsvpService) CancelRsvp(ctx context.Context, eventID, userID string) (*CancelRsvpResult, error) {
	result := &CancelRsvpResult{}

	err := s.withEventLock(ctx, eventID, func(ctx context.Context) error {
		return s.DB.RunInTx(ctx, func(ctx context.Context, store Store) error {
			result.PromotedUserID = ""
			result.Events = nil

			existing, err := store.ActiveRsvp(ctx, eventID, userID)
			if err != nil {
				return fmt.Errorf("check existing rsvp: %w", err)
			}
			if existing == nil {
				return fmt.Errorf("rsvp for event %s: %w", eventID, domain.ErrNotFound)
			}

			if err := store.CancelRsvp(ctx, existing.ID, time.Now().UTC()); err != nil {
				return fmt.Errorf("cancel rsvp %d: %w", existing.ID, err)
			}

			cancelled := models.NewDomainEvent(models.EventTypeRsvpCancelled, eventID, userID)
			cancelled.RsvpID = existing.ID
			result.Events = append(result.Events, cancelled)

			if existing.Status != models.RsvpStatusConfirmed {
				return nil
			}

			promoted, err := s.promoter.Promote(ctx, store, eventID)
			if err != nil {
				return err
			}
			if promoted != nil {
				result.PromotedUserID = promoted.UserID
				ev := models.NewDomainEvent(models.EventTypeRsvpPromoted, eventID, promoted.UserID)
				ev.RsvpID = promoted.ID
				result.Events = append(result.Events, ev)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(result.Events)
	return result, nil
}

// withEventLock runs fn while holding the per-event lock, retrying a
// bounded number of times when another operation holds it, then
// surfacing ErrConflict.
func (s *RsvpService) withEventLock(ctx context.Context, eventID string, fn func(ctx context.Context) error) error {
	token := uuid.NewString()

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		ok, err := s.Lock.AcquireEventLock(ctx, eventID, token)
		if err != nil {
			return fmt.Errorf("acquire lock for event %s: %w", eventID, err)
		}
		if !ok {
			time.Sleep(s.retryBackoff * time.Duration(attempt+1))
			continue
		}

		fnErr := fn(ctx)
		if relErr := s.Lock.ReleaseEventLock(ctx, eventID, token); relErr != nil {
			s.Logger.Printf("RSVP: failed to release lock for event %s: %v", eventID, relErr)
		}
		return fnErr
	}

	return fmt.Errorf("event %s busy after %d attempts: %w", eventID, s.maxAttempts, domain.ErrConflict)
}

// publish delivers post-commit events. Failures are logged, never
// propagated: the state change has already committed and the queue is
// at-least-once anyway.
func (s *RsvpService) publish(events []models.DomainEvent) {
	if s.Kafka == nil {
		return
	}
	for _, ev := range events {
		if err := s.Kafka.PublishDomainEvent(ev); err != nil {
			s.Logger.Printf("KAFKA: publish %s for event %s failed: %v", ev.Type, ev.EventID, err)
		}
	}
}

func transitionFor(status string) string {
	if status == models.RsvpStatusWaitlisted {
		return models.EventTypeRsvpWaitlisted
	}
	return models.EventTypeRsvpConfirmed
}
