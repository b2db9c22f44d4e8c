package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/rsvp/internal/monitoring"
	"github.com/charlesng35/rsvp/internal/services"
	"github.com/charlesng35/rsvp/pkg/logger"
)

const (
	defaultAuditRetentionDays        = 90
	defaultNotificationRetentionDays = 90
	defaultArchiveSpec               = "@hourly"
	defaultRetentionSpec             = "@daily"
)

// ExpiredPurger removes expired cache entries. Redis expires keys on its own
// and needs no purger.
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Cleaner runs the periodic housekeeping jobs: archiving past events,
// pruning read notifications and old audit logs, and purging the database cache.
type Cleaner struct {
	events        *services.EventService
	notifications *services.NotificationService
	audit         *services.AuditService
	cache         ExpiredPurger
	jobs          *monitoring.JobTracker
	cron          *cron.Cron
	now           func() time.Time
	log           *zap.Logger

	auditRetention        int
	notificationRetention int
	archiveSchedule       string
	retentionSchedule     string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used to decide which events are past.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.auditRetention = days
		}
	}
}

// WithNotificationRetentionDays adjusts how long read notifications are kept.
func WithNotificationRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.notificationRetention = days
		}
	}
}

// WithArchiveSchedule overrides the cron specification for archiving past events.
func WithArchiveSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.archiveSchedule = spec
		}
	}
}

// WithRetentionSchedule overrides the cron specification for retention jobs.
func WithRetentionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.retentionSchedule = spec
		}
	}
}

// WithCachePurger enables purging of expired database cache entries.
func WithCachePurger(p ExpiredPurger) Option {
	return func(cleaner *Cleaner) {
		cleaner.cache = p
	}
}

// WithJobTracker reports every run to tracker for the maintenance health probe.
func WithJobTracker(tracker *monitoring.JobTracker) Option {
	return func(cleaner *Cleaner) {
		cleaner.jobs = tracker
	}
}

// NewCleaner constructs a Cleaner. Any nil dependency results in the
// corresponding job being skipped.
func NewCleaner(events *services.EventService, notifications *services.NotificationService, audit *services.AuditService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		events:                events,
		notifications:         notifications,
		audit:                 audit,
		now:                   time.Now,
		auditRetention:        defaultAuditRetentionDays,
		notificationRetention: defaultNotificationRetentionDays,
		archiveSchedule:       defaultArchiveSpec,
		retentionSchedule:     defaultRetentionSpec,
		log:                   logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

// Start registers the jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.events != nil {
		if _, err := c.cron.AddFunc(c.archiveSchedule, func() {
			if err := c.archive(context.Background()); err != nil {
				c.log.Warn("archive past events failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.notifications != nil || c.audit != nil || c.cache != nil {
		if _, err := c.cron.AddFunc(c.retentionSchedule, func() {
			if err := c.prune(context.Background()); err != nil {
				c.log.Warn("retention cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially and returns the
// combined errors.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return multierr.Append(c.archive(ctx), c.prune(ctx))
}

func (c *Cleaner) archive(ctx context.Context) error {
	if c.events == nil {
		return nil
	}
	start := time.Now()
	_, _, err := c.events.ArchivePast(ctx, c.now())
	c.jobs.Record("archive_events", time.Since(start), err)
	return err
}

func (c *Cleaner) prune(ctx context.Context) (errs error) {
	if c.notifications == nil && c.audit == nil && c.cache == nil {
		return nil
	}
	start := time.Now()
	defer func() { c.jobs.Record("retention", time.Since(start), errs) }()

	if c.notifications != nil {
		n, err := c.notifications.CleanupRead(ctx, c.notificationRetention)
		errs = multierr.Append(errs, err)
		if n > 0 {
			c.log.Info("pruned notifications", zap.Int64("count", n))
		}
	}

	if c.audit != nil {
		n, err := c.audit.CleanupOlderThan(ctx, c.auditRetention)
		errs = multierr.Append(errs, err)
		if n > 0 {
			c.log.Info("pruned audit logs", zap.Int64("count", n))
		}
	}

	if c.cache != nil {
		_, err := c.cache.PurgeExpired(ctx)
		errs = multierr.Append(errs, err)
	}
	return errs
}
