package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/rsvp/internal/models"
	"github.com/charlesng35/rsvp/internal/waitlist"
	"github.com/charlesng35/rsvp/pkg/metrics"
)

const defaultMutationAttempts = 5

// eventMutator runs every change to an event's RSVP list as
// load -> claim version -> mutate -> recompute -> persist inside one
// transaction. Writers in this process queue on the per-event lock; writers
// elsewhere are caught by the compare-and-swap on events.version and retried.
// Claiming the version first takes the event row lock before any RSVP row,
// so concurrent writers queue on the same row instead of deadlocking.
type eventMutator struct {
	db          *gorm.DB
	locker      *waitlist.Locker
	maxAttempts int
	// afterLoad runs between loading the event and claiming its version.
	afterLoad func(tx *gorm.DB, event *models.Event) error
}

// mutationFunc edits the event or its RSVPs through tx. Returning an error
// rolls the transaction back and stops retrying.
type mutationFunc func(tx *gorm.DB, event *models.Event) error

func newEventMutator(db *gorm.DB, locker *waitlist.Locker) *eventMutator {
	if locker == nil {
		locker = waitlist.NewLocker()
	}
	return &eventMutator{db: db, locker: locker, maxAttempts: defaultMutationAttempts}
}

// apply returns the event as committed, including its recomputed RSVPs, and
// the waitlist transitions caused by the change.
func (m *eventMutator) apply(ctx context.Context, eventID string, fn mutationFunc) (*models.Event, waitlist.Result, error) {
	ctx = ensureContext(ctx)

	unlock := m.locker.Lock(eventID)
	defer unlock()

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		event, result, err := m.attempt(ctx, eventID, fn)
		if errors.Is(err, errVersionConflict) || isTransientTxError(err) {
			metrics.RecomputeConflicts.Inc()
			continue
		}
		if err != nil {
			return nil, waitlist.Result{}, err
		}
		return event, result, nil
	}
	return nil, waitlist.Result{}, ErrConcurrentUpdate
}

func (m *eventMutator) attempt(ctx context.Context, eventID string, fn mutationFunc) (*models.Event, waitlist.Result, error) {
	var (
		event  models.Event
		result waitlist.Result
	)

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&event, "id = ?", eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return fmt.Errorf("load event: %w", err)
		}
		loadedVersion := event.Version

		if m.afterLoad != nil {
			if err := m.afterLoad(tx, &event); err != nil {
				return err
			}
		}

		res := tx.Model(&models.Event{}).
			Where("id = ? AND version = ?", event.ID, loadedVersion).
			Update("version", gorm.Expr("version + 1"))
		if res.Error != nil {
			return fmt.Errorf("bump version: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errVersionConflict
		}
		event.Version = loadedVersion + 1

		if fn != nil {
			if err := fn(tx, &event); err != nil {
				return err
			}
		}

		var rsvps []models.RSVP
		if err := tx.Where("event_id = ?", event.ID).Order("created_at ASC, id ASC").Find(&rsvps).Error; err != nil {
			return fmt.Errorf("load rsvps: %w", err)
		}

		result = waitlist.Recompute(rsvps, event.RSVPLimit)
		if err := persistTransitions(tx, result); err != nil {
			return err
		}

		event.RSVPs = rsvps
		return nil
	})
	if err != nil {
		return nil, waitlist.Result{}, err
	}
	return &event, result, nil
}

func persistTransitions(tx *gorm.DB, result waitlist.Result) error {
	if len(result.Promoted) > 0 {
		if err := tx.Model(&models.RSVP{}).Where("id IN ?", result.Promoted).Update("waitlisted", false).Error; err != nil {
			return fmt.Errorf("promote rsvps: %w", err)
		}
	}
	if len(result.Demoted) > 0 {
		if err := tx.Model(&models.RSVP{}).Where("id IN ?", result.Demoted).Update("waitlisted", true).Error; err != nil {
			return fmt.Errorf("waitlist rsvps: %w", err)
		}
	}
	return nil
}
