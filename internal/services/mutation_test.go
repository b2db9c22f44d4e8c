package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/rsvp/internal/models"
)

// bumpVersion simulates a writer in another process committing between our
// load and our compare-and-swap.
func bumpVersion(tx *gorm.DB, eventID string) error {
	return tx.Model(&models.Event{}).Where("id = ?", eventID).Update("version", gorm.Expr("version + 1")).Error
}

func TestEventMutatorRetriesOnVersionConflict(t *testing.T) {
	env := newTestEnv(t)
	owner := mustCreateUser(t, env.db, "owner@example.com")
	event := env.mustCreateEvent(t, owner, 0)

	loads := 0
	env.events.mutator.afterLoad = func(tx *gorm.DB, e *models.Event) error {
		loads++
		if loads == 1 {
			return bumpVersion(tx, e.ID)
		}
		return nil
	}

	calls := 0
	updated, _, err := env.events.mutator.apply(context.Background(), event.ID, func(tx *gorm.DB, e *models.Event) error {
		calls++
		// the version is already claimed when the change runs
		require.Equal(t, int64(2), e.Version)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, loads)
	require.Equal(t, 1, calls)
	require.Equal(t, int64(2), updated.Version)
}

func TestEventMutatorGivesUpAfterMaxAttempts(t *testing.T) {
	env := newTestEnv(t)
	owner := mustCreateUser(t, env.db, "owner@example.com")
	event := env.mustCreateEvent(t, owner, 0)

	loads := 0
	env.events.mutator.afterLoad = func(tx *gorm.DB, e *models.Event) error {
		loads++
		return bumpVersion(tx, e.ID)
	}

	calls := 0
	_, _, err := env.events.mutator.apply(context.Background(), event.ID, func(tx *gorm.DB, e *models.Event) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, ErrConcurrentUpdate)
	require.Equal(t, defaultMutationAttempts, loads)
	require.Zero(t, calls)

	var reloaded models.Event
	require.NoError(t, env.db.First(&reloaded, "id = ?", event.ID).Error)
	require.Equal(t, int64(1), reloaded.Version)
}

func TestEventMutatorRetriesDeadlocks(t *testing.T) {
	env := newTestEnv(t)
	owner := mustCreateUser(t, env.db, "owner@example.com")
	event := env.mustCreateEvent(t, owner, 0)

	calls := 0
	updated, _, err := env.events.mutator.apply(context.Background(), event.ID, func(tx *gorm.DB, e *models.Event) error {
		calls++
		if calls == 1 {
			return fmt.Errorf("promote rsvps: %w", &pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Equal(t, int64(2), updated.Version)
}

func TestIsTransientTxError(t *testing.T) {
	require.True(t, isTransientTxError(&pgconn.PgError{Code: "40001"}))
	require.True(t, isTransientTxError(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40P01"})))
	require.True(t, isTransientTxError(&mysql.MySQLError{Number: 1213}))
	require.False(t, isTransientTxError(&pgconn.PgError{Code: "23505"}))
	require.False(t, isTransientTxError(&mysql.MySQLError{Number: 1062}))
	require.False(t, isTransientTxError(errors.New("deadlock")))
	require.False(t, isTransientTxError(nil))
}

func TestEventMutatorRollsBackOnError(t *testing.T) {
	env := newTestEnv(t)
	owner := mustCreateUser(t, env.db, "owner@example.com")
	event := env.mustCreateEvent(t, owner, 0)

	boom := errors.New("boom")
	_, _, err := env.events.mutator.apply(context.Background(), event.ID, func(tx *gorm.DB, e *models.Event) error {
		require.NoError(t, tx.Create(&models.RSVP{EventID: e.ID, UserID: owner.ID}).Error)
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, env.db.Model(&models.RSVP{}).Where("event_id = ?", event.ID).Count(&count).Error)
	require.Zero(t, count)

	_, _, err = env.events.mutator.apply(context.Background(), "missing", nil)
	require.ErrorIs(t, err, ErrEventNotFound)
}
