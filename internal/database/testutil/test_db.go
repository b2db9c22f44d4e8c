// Package testutil opens throwaway databases and seeds community fixtures
// for tests.
package testutil

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/rsvp/internal/database"
	"github.com/charlesng35/rsvp/internal/models"
)

// TestDBOption customises MustOpenTestDB.
type TestDBOption func(*testDB)

type testDB struct {
	migrate bool
	seed    bool
	members []string
}

// WithAutoMigrate creates the schema without seed rows.
func WithAutoMigrate() TestDBOption {
	return func(o *testDB) { o.migrate = true }
}

// WithSeedData creates the schema and the anonymous member.
func WithSeedData() TestDBOption {
	return func(o *testDB) {
		o.migrate = true
		o.seed = true
	}
}

// WithMembers adds approved members with the given emails on top of the
// seed data.
func WithMembers(emails ...string) TestDBOption {
	return func(o *testDB) {
		o.migrate = true
		o.seed = true
		o.members = append(o.members, emails...)
	}
}

// MustOpenTestDB opens a private in-memory SQLite database that is closed
// when the test ends.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	var o testDB
	for _, opt := range opts {
		opt(&o)
	}

	db, err := database.Open(database.Config{Driver: "sqlite", Name: "test-" + uuid.NewString()})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	switch {
	case o.seed:
		require.NoError(t, database.AutoMigrateAndSeed(db))
	case o.migrate:
		require.NoError(t, database.AutoMigrate(db))
	}
	for _, email := range o.members {
		SeedMember(t, db, email, models.RoleApprovedUser)
	}

	return db
}

// SeedMember inserts an active member named after the local part of email.
func SeedMember(t *testing.T, db *gorm.DB, email string, roles ...string) *models.User {
	t.Helper()
	name, _, _ := strings.Cut(email, "@")
	user := &models.User{Email: email, Name: name, IsActive: true, Roles: roles}
	require.NoError(t, db.Create(user).Error)
	return user
}

// SeedEvent inserts an event directly, skipping the service layer.
func SeedEvent(t *testing.T, db *gorm.DB, name string, startsAt time.Time, limit int) *models.Event {
	t.Helper()
	event := &models.Event{Name: name, StartsAt: startsAt, RSVPLimit: limit}
	require.NoError(t, db.Create(event).Error)
	return event
}

// SeedRSVP inserts an RSVP at an explicit queue position with the given
// waitlist flag, as a stale or corrupted row would look.
func SeedRSVP(t *testing.T, db *gorm.DB, event *models.Event, user *models.User, joined time.Time, waitlisted bool) *models.RSVP {
	t.Helper()
	rsvp := &models.RSVP{
		BaseModel:  models.BaseModel{CreatedAt: joined},
		EventID:    event.ID,
		UserID:     user.ID,
		Waitlisted: waitlisted,
	}
	require.NoError(t, db.Create(rsvp).Error)
	return rsvp
}
