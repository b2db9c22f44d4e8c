package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/rsvp/internal/models"
	"github.com/charlesng35/rsvp/internal/waitlist"
	"github.com/charlesng35/rsvp/pkg/logger"
	"github.com/charlesng35/rsvp/pkg/metrics"
)

// CreateRSVPInput describes an RSVP made by actor, possibly on behalf of
// someone else.
type CreateRSVPInput struct {
	// UserEmail selects the attendee. Empty means the actor.
	UserEmail string
	Note      string
	// UseAnonymous books a placeholder seat when UserEmail has no account.
	UseAnonymous bool
}

// RSVPOutcome is the committed RSVP together with the event state it produced.
type RSVPOutcome struct {
	RSVP   *models.RSVP    `json:"rsvp,omitempty"`
	Event  *EventDetail    `json:"event"`
	Result waitlist.Result `json:"-"`
}

// RSVPService adds and withdraws RSVPs. All writes go through the event
// mutation pipeline so the waitlist is recomputed atomically with them.
type RSVPService struct {
	db        *gorm.DB
	events    *EventService
	users     *UserService
	audit     *AuditService
	publisher *Publisher
	now       func() time.Time
	log       *zap.Logger
}

// NewRSVPService constructs an RSVPService.
func NewRSVPService(db *gorm.DB, events *EventService, users *UserService, audit *AuditService) (*RSVPService, error) {
	if db == nil {
		return nil, errors.New("rsvp service: db is required")
	}
	if events == nil || users == nil {
		return nil, errors.New("rsvp service: event and user services are required")
	}
	return &RSVPService{
		db:        db,
		events:    events,
		users:     users,
		audit:     audit,
		publisher: events.publisher,
		now:       time.Now,
		log:       logger.WithModule("rsvp"),
	}, nil
}

// Create RSVPs the attendee to the event. The RSVP is never rejected for
// capacity; it lands on the waitlist instead.
func (s *RSVPService) Create(ctx context.Context, eventID string, actor *models.User, input CreateRSVPInput) (*RSVPOutcome, error) {
	ctx = ensureContext(ctx)
	if actor == nil {
		return nil, errors.New("rsvp service: actor is required")
	}

	attendee, note, err := s.resolveAttendee(ctx, actor, input)
	if err != nil {
		metrics.Operations.WithLabelValues("create", "error").Inc()
		return nil, err
	}

	var rsvp models.RSVP
	event, result, err := s.events.mutator.apply(ctx, eventID, func(tx *gorm.DB, event *models.Event) error {
		if !event.CanRSVP(actor) {
			return ErrEventClosed
		}

		if !attendee.IsAnonymousUser() {
			var existing models.RSVP
			err := tx.Where("event_id = ? AND user_id = ?", event.ID, attendee.ID).
				Order("cancelled ASC, created_at DESC").
				First(&existing).Error
			switch {
			case err == nil && !existing.Cancelled:
				return ErrDuplicateRSVP
			case err == nil:
				return s.reactivate(tx, &existing, actor, note, &rsvp)
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return fmt.Errorf("lookup rsvp: %w", err)
			}
		}

		rsvp = models.RSVP{
			EventID:  event.ID,
			UserID:   attendee.ID,
			RSVPByID: stringPtr(actor.ID),
			Note:     note,
		}
		rsvp.CreatedAt = s.now().UTC()
		if err := tx.Create(&rsvp).Error; err != nil {
			return fmt.Errorf("create rsvp: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.Operations.WithLabelValues("create", "error").Inc()
		return nil, err
	}
	metrics.Operations.WithLabelValues("create", "success").Inc()

	entry := actorEntry(actor, "rsvp.create", "rsvp", rsvp.ID)
	entry.Metadata = map[string]any{"event_id": event.ID, "user_id": attendee.ID}
	recordAudit(s.audit, ctx, entry)

	s.publisher.publish(ctx, event, "rsvp.created", rsvp.ID, result)
	return s.outcome(ctx, event, rsvp.ID, result)
}

// reactivate revives a cancelled RSVP at the back of the queue.
func (s *RSVPService) reactivate(tx *gorm.DB, existing *models.RSVP, actor *models.User, note string, out *models.RSVP) error {
	now := s.now().UTC()
	if err := tx.Model(existing).Updates(map[string]any{
		"cancelled":  false,
		"waitlisted": false,
		"note":       note,
		"rsvp_by_id": actor.ID,
		"created_at": now,
	}).Error; err != nil {
		return fmt.Errorf("reactivate rsvp: %w", err)
	}
	existing.Cancelled = false
	existing.Waitlisted = false
	existing.Note = note
	existing.RSVPByID = stringPtr(actor.ID)
	existing.CreatedAt = now
	*out = *existing
	return nil
}

// resolveAttendee picks the user the RSVP is for and the note to store.
func (s *RSVPService) resolveAttendee(ctx context.Context, actor *models.User, input CreateRSVPInput) (*models.User, string, error) {
	note := strings.TrimSpace(input.Note)
	email := normaliseEmail(input.UserEmail)
	if email == "" || email == normaliseEmail(actor.Email) {
		return actor, note, nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return user, note, nil
	}
	if !errors.Is(err, ErrUserNotFound) || !input.UseAnonymous {
		return nil, "", err
	}

	anonymous, err := s.users.Anonymous(ctx)
	if err != nil {
		return nil, "", err
	}
	if note != "" {
		note = fmt.Sprintf("%s (%s)", email, note)
	} else {
		note = email
	}
	return anonymous, note, nil
}

// Cancel withdraws an RSVP. Placeholder RSVPs of the anonymous user are
// deleted; everything else is kept and flagged cancelled. Whoever is first
// on the waitlist moves up.
func (s *RSVPService) Cancel(ctx context.Context, eventID, rsvpID string, actor *models.User) (*RSVPOutcome, error) {
	ctx = ensureContext(ctx)

	var removed bool
	event, result, err := s.events.mutator.apply(ctx, eventID, func(tx *gorm.DB, event *models.Event) error {
		if !event.CanRSVP(actor) {
			return ErrEventClosed
		}

		var rsvp models.RSVP
		if err := tx.Preload("User").
			Where("id = ? AND event_id = ?", rsvpID, event.ID).
			First(&rsvp).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRSVPNotFound
			}
			return fmt.Errorf("load rsvp: %w", err)
		}
		if !rsvp.CanCancel(actor) {
			return ErrCannotCancel
		}
		if rsvp.Cancelled {
			return nil
		}

		if rsvp.User != nil && rsvp.User.IsAnonymousUser() {
			removed = true
			return tx.Delete(&rsvp).Error
		}
		return tx.Model(&rsvp).Update("cancelled", true).Error
	})
	if err != nil {
		metrics.Operations.WithLabelValues("cancel", "error").Inc()
		return nil, err
	}
	metrics.Operations.WithLabelValues("cancel", "success").Inc()

	entry := actorEntry(actor, "rsvp.cancel", "rsvp", rsvpID)
	entry.Metadata = map[string]any{"event_id": event.ID, "deleted": removed, "promoted": len(result.Promoted)}
	recordAudit(s.audit, ctx, entry)

	s.publisher.publish(ctx, event, "rsvp.cancelled", rsvpID, result)

	subject := rsvpID
	if removed {
		subject = ""
	}
	return s.outcome(ctx, event, subject, result)
}

// Get returns one RSVP of an event with its users.
func (s *RSVPService) Get(ctx context.Context, eventID, rsvpID string) (*models.RSVP, error) {
	ctx = ensureContext(ctx)
	var rsvp models.RSVP
	if err := s.db.WithContext(ctx).
		Preload("User").
		Preload("RSVPBy").
		Where("id = ? AND event_id = ?", rsvpID, eventID).
		First(&rsvp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRSVPNotFound
		}
		return nil, fmt.Errorf("rsvp service: get: %w", err)
	}
	return &rsvp, nil
}

// List returns every RSVP of the event sorted attending first, then
// waitlisted, then cancelled, each in queue order.
func (s *RSVPService) List(ctx context.Context, eventID string) ([]models.RSVP, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Event{}).Where("id = ?", eventID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("rsvp service: lookup event: %w", err)
	}
	if count == 0 {
		return nil, ErrEventNotFound
	}

	var rsvps []models.RSVP
	if err := s.db.WithContext(ctx).
		Preload("User").
		Preload("RSVPBy").
		Where("event_id = ?", eventID).
		Find(&rsvps).Error; err != nil {
		return nil, fmt.Errorf("rsvp service: list: %w", err)
	}
	return waitlist.All(rsvps), nil
}

func (s *RSVPService) outcome(ctx context.Context, event *models.Event, rsvpID string, result waitlist.Result) (*RSVPOutcome, error) {
	detail, err := s.events.Get(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	out := &RSVPOutcome{Event: detail, Result: result}
	if rsvpID != "" {
		for i := range detail.RSVPs {
			if detail.RSVPs[i].ID == rsvpID {
				r := detail.RSVPs[i]
				out.RSVP = &r
				break
			}
		}
	}
	return out, nil
}
