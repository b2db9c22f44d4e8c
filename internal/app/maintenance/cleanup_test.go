package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/rsvp/internal/cache"
	"github.com/charlesng35/rsvp/internal/database/testutil"
	"github.com/charlesng35/rsvp/internal/models"
	"github.com/charlesng35/rsvp/internal/monitoring"
	"github.com/charlesng35/rsvp/internal/services"
)

type fixture struct {
	db            *gorm.DB
	events        *services.EventService
	notifications *services.NotificationService
	audit         *services.AuditService
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	audit, err := services.NewAuditService(db)
	require.NoError(t, err)
	notifications, err := services.NewNotificationService(db, nil)
	require.NoError(t, err)
	events, err := services.NewEventService(db, audit, services.EventServiceConfig{})
	require.NoError(t, err)

	return fixture{db: db, events: events, notifications: notifications, audit: audit}
}

func TestCleanerRunOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	user := testutil.SeedMember(t, f.db, "member@example.com")

	past, err := f.events.Create(ctx, nil, services.CreateEventInput{Name: "Past", StartsAt: now.Add(-24 * time.Hour)})
	require.NoError(t, err)
	upcoming, err := f.events.Create(ctx, nil, services.CreateEventInput{Name: "Upcoming", StartsAt: now.Add(24 * time.Hour)})
	require.NoError(t, err)

	old := now.AddDate(0, 0, -30)
	stale := &models.Notification{UserID: user.ID, Type: "t", Title: "old", IsRead: true}
	unread := &models.Notification{UserID: user.ID, Type: "t", Title: "unread"}
	require.NoError(t, f.db.Create(stale).Error)
	require.NoError(t, f.db.Create(unread).Error)
	require.NoError(t, f.db.Model(&models.Notification{}).Where("id IN ?", []string{stale.ID, unread.ID}).Update("created_at", old).Error)

	var logs []models.AuditLog
	require.NoError(t, f.db.Find(&logs).Error)
	require.NotEmpty(t, logs)
	require.NoError(t, f.db.Model(&models.AuditLog{}).Where("1 = 1").Update("created_at", old).Error)

	require.NoError(t, f.db.Create(&models.CacheEntry{Key: "expired", Value: []byte("x"), ExpiresAt: now.Add(-time.Minute)}).Error)
	require.NoError(t, f.db.Create(&models.CacheEntry{Key: "live", Value: []byte("y"), ExpiresAt: now.Add(time.Hour)}).Error)

	c := NewCleaner(f.events, f.notifications, f.audit,
		WithNow(func() time.Time { return now }),
		WithAuditRetentionDays(7),
		WithNotificationRetentionDays(7),
		WithCachePurger(cache.NewDatabaseStore(f.db)),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)
	require.NoError(t, c.RunOnce(ctx))

	var archived, open models.Event
	require.NoError(t, f.db.First(&archived, "id = ?", past.ID).Error)
	require.True(t, archived.Archived)
	require.NoError(t, f.db.First(&open, "id = ?", upcoming.ID).Error)
	require.False(t, open.Archived)

	var count int64
	require.NoError(t, f.db.Model(&models.Notification{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	require.NoError(t, f.db.Model(&models.AuditLog{}).Count(&count).Error)
	require.Zero(t, count)

	var keys []string
	require.NoError(t, f.db.Model(&models.CacheEntry{}).Pluck("key", &keys).Error)
	require.Equal(t, []string{"live"}, keys)
}

type failingPurger struct{}

func (failingPurger) PurgeExpired(context.Context) (int64, error) {
	return 0, errors.New("purge failed")
}

func TestCleanerRunOnceCollectsErrors(t *testing.T) {
	f := newFixture(t)

	tracker := monitoring.NewJobTracker()
	c := NewCleaner(f.events, nil, nil, WithCachePurger(failingPurger{}), WithJobTracker(tracker))
	err := c.RunOnce(context.Background())
	require.ErrorContains(t, err, "purge failed")

	jobs := tracker.Snapshot()
	require.Len(t, jobs, 2)
	require.Equal(t, "archive_events", jobs[0].Job)
	require.Zero(t, jobs[0].ConsecutiveFailures)
	require.Equal(t, "retention", jobs[1].Job)
	require.Equal(t, uint64(1), jobs[1].ConsecutiveFailures)

	empty := NewCleaner(nil, nil, nil)
	require.NoError(t, empty.RunOnce(context.Background()))
}

func TestCleanerStartRegistersJobs(t *testing.T) {
	f := newFixture(t)
	scheduler := cron.New(cron.WithLogger(cron.DiscardLogger))

	c := NewCleaner(f.events, f.notifications, nil,
		WithCron(scheduler),
		WithArchiveSchedule("@every 1h"),
		WithRetentionSchedule("@daily"),
	)
	require.NoError(t, c.Start())
	t.Cleanup(func() { <-c.Stop().Done() })
	require.Len(t, scheduler.Entries(), 2)

	bad := NewCleaner(f.events, nil, nil,
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
		WithArchiveSchedule("not a schedule"),
	)
	require.Error(t, bad.Start())
}
