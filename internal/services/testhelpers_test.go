package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/rsvp/internal/database/testutil"
	"github.com/charlesng35/rsvp/internal/models"
	"github.com/charlesng35/rsvp/internal/realtime"
	"github.com/charlesng35/rsvp/internal/waitlist"
	"github.com/charlesng35/rsvp/pkg/mail"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

// stepClock hands out strictly increasing timestamps.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type testEnv struct {
	db            *gorm.DB
	hub           *realtime.Hub
	mailer        *recordingMailer
	clock         *stepClock
	audit         *AuditService
	notifications *NotificationService
	users         *UserService
	events        *EventService
	rsvps         *RSVPService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	hub := realtime.NewHub()
	mailer := &recordingMailer{}
	clock := newStepClock()

	audit, err := NewAuditService(db)
	require.NoError(t, err)
	notifications, err := NewNotificationService(db, hub)
	require.NoError(t, err)
	users, err := NewUserService(db, audit, UserServiceConfig{Mailer: mailer, Notifications: notifications, BaseURL: "https://rsvp.test/"})
	require.NoError(t, err)

	publisher := NewPublisher(db, PublisherConfig{
		Hub:           hub,
		Notifications: notifications,
		Mailer:        mailer,
		BaseURL:       "https://rsvp.test",
		Location:      time.UTC,
	})
	events, err := NewEventService(db, audit, EventServiceConfig{
		DefaultDuration: 2 * time.Hour,
		Location:        time.UTC,
		Locker:          waitlist.NewLocker(),
		Publisher:       publisher,
	})
	require.NoError(t, err)
	events.now = clock.Now

	rsvps, err := NewRSVPService(db, events, users, audit)
	require.NoError(t, err)
	rsvps.now = clock.Now

	return &testEnv{
		db:            db,
		hub:           hub,
		mailer:        mailer,
		clock:         clock,
		audit:         audit,
		notifications: notifications,
		users:         users,
		events:        events,
		rsvps:         rsvps,
	}
}

func mustCreateUser(t *testing.T, db *gorm.DB, email string, roles ...string) *models.User {
	t.Helper()
	return testutil.SeedMember(t, db, email, roles...)
}

func (e *testEnv) mustCreateEvent(t *testing.T, creator *models.User, limit int) *models.Event {
	t.Helper()
	event, err := e.events.Create(context.Background(), creator, CreateEventInput{
		Name:      "Sunday Ride",
		StartsAt:  time.Now().Add(48 * time.Hour),
		RSVPLimit: limit,
	})
	require.NoError(t, err)
	return event
}

func (e *testEnv) mustRSVP(t *testing.T, eventID string, actor *models.User) *RSVPOutcome {
	t.Helper()
	out, err := e.rsvps.Create(context.Background(), eventID, actor, CreateRSVPInput{})
	require.NoError(t, err)
	require.NotNil(t, out.RSVP)
	return out
}
