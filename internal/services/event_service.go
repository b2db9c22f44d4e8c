package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/rsvp/internal/models"
	"github.com/charlesng35/rsvp/internal/waitlist"
	apperrors "github.com/charlesng35/rsvp/pkg/errors"
	"github.com/charlesng35/rsvp/pkg/logger"
	"github.com/charlesng35/rsvp/pkg/metrics"
)

const defaultEventDuration = 2 * time.Hour

// CreateEventInput describes a new event.
type CreateEventInput struct {
	Name        string
	Description string
	StartsAt    time.Time
	EndsAt      *time.Time
	RSVPLimit   int
}

// PatchEventInput lists the event attributes that may change after creation.
// Nil fields are left alone.
type PatchEventInput struct {
	Name        *string
	Description *string
	StartsAt    *time.Time
	EndsAt      *time.Time
	RSVPLimit   *int
	Archived    *bool
	Cancelled   *bool
}

// ListEventsOptions filters event listings. Archived events are listed
// newest first, everything else in start order.
type ListEventsOptions struct {
	Start    *time.Time
	End      *time.Time
	Archived *bool
}

// EventSummary is an event with its derived schedule and head counts.
type EventSummary struct {
	models.Event
	Title          string    `json:"title"`
	End            time.Time `json:"end"`
	AttendingCount int       `json:"attending_count"`
	WaitlistCount  int       `json:"waitlist_count"`
}

// EventDetail adds the sorted RSVP views to an EventSummary.
type EventDetail struct {
	EventSummary
	RSVPs     []models.RSVP `json:"rsvps"`
	Attending []models.RSVP `json:"attending"`
	Waitlist  []models.RSVP `json:"waitlist"`
}

// AttendanceRecord marks whether a user attended one past event.
type AttendanceRecord struct {
	EventID  string `json:"event_id"`
	Year     int    `json:"year"`
	Month    string `json:"month"`
	Weekday  string `json:"weekday"`
	Attended bool   `json:"attended"`
}

// EventServiceConfig captures scheduling defaults.
type EventServiceConfig struct {
	DefaultDuration time.Duration
	Location        *time.Location
	Locker          *waitlist.Locker
	Publisher       *Publisher
}

// EventService manages events and owns the per-event mutation pipeline
// shared with RSVPService.
type EventService struct {
	db              *gorm.DB
	audit           *AuditService
	mutator         *eventMutator
	publisher       *Publisher
	defaultDuration time.Duration
	loc             *time.Location
	now             func() time.Time
	log             *zap.Logger
}

// NewEventService constructs an EventService.
func NewEventService(db *gorm.DB, audit *AuditService, cfg EventServiceConfig) (*EventService, error) {
	if db == nil {
		return nil, errors.New("event service: db is required")
	}
	duration := cfg.DefaultDuration
	if duration <= 0 {
		duration = defaultEventDuration
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &EventService{
		db:              db,
		audit:           audit,
		mutator:         newEventMutator(db, cfg.Locker),
		publisher:       cfg.Publisher,
		defaultDuration: duration,
		loc:             loc,
		now:             time.Now,
		log:             logger.WithModule("events"),
	}, nil
}

// Location returns the timezone events are displayed in.
func (s *EventService) Location() *time.Location {
	return s.loc
}

// Create stores a new event owned by actor.
func (s *EventService) Create(ctx context.Context, actor *models.User, input CreateEventInput) (*models.Event, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("name is required")
	}
	if input.StartsAt.IsZero() {
		return nil, apperrors.NewBadRequest("starts_at is required")
	}
	if input.RSVPLimit < 0 {
		return nil, apperrors.NewBadRequest("rsvp_limit must not be negative")
	}
	if input.EndsAt != nil && !input.EndsAt.After(input.StartsAt) {
		return nil, apperrors.NewBadRequest("ends_at must be after starts_at")
	}

	event := &models.Event{
		Name:        name,
		Slug:        s.slugFor(name, input.StartsAt),
		Description: strings.TrimSpace(input.Description),
		StartsAt:    input.StartsAt.UTC(),
		RSVPLimit:   input.RSVPLimit,
	}
	if input.EndsAt != nil {
		end := input.EndsAt.UTC()
		event.EndsAt = &end
	}
	if actor != nil {
		event.CreatedByID = stringPtr(actor.ID)
	}

	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, fmt.Errorf("event service: create: %w", err)
	}

	recordAudit(s.audit, ctx, actorEntry(actor, "event.create", "event", event.ID))
	s.log.Info("event created", zap.String("event_id", event.ID), zap.String("slug", event.Slug))
	return event, nil
}

// slugFor builds a URL and calendar friendly identifier from the name and local start date.
func (s *EventService) slugFor(name string, startsAt time.Time) string {
	return slug.Make(name + " " + startsAt.In(s.loc).Format("2006-01-02"))
}

// List returns events matching opts with head counts.
func (s *EventService) List(ctx context.Context, opts ListEventsOptions) ([]EventSummary, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Event{})
	if opts.Start != nil {
		query = query.Where("starts_at >= ?", opts.Start.UTC())
	}
	if opts.End != nil {
		query = query.Where("starts_at < ?", opts.End.UTC())
	}
	order := "starts_at ASC"
	if opts.Archived != nil {
		query = query.Where("archived = ?", *opts.Archived)
		if *opts.Archived {
			order = "starts_at DESC"
		}
	}

	var events []models.Event
	if err := query.Order(order).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("event service: list: %w", err)
	}
	if len(events) == 0 {
		return []EventSummary{}, nil
	}

	ids := make([]string, 0, len(events))
	for i := range events {
		ids = append(ids, events[i].ID)
	}
	attending, err := s.countRSVPs(ctx, ids, false)
	if err != nil {
		return nil, err
	}
	waiting, err := s.countRSVPs(ctx, ids, true)
	if err != nil {
		return nil, err
	}

	out := make([]EventSummary, 0, len(events))
	for i := range events {
		summary := s.summarise(&events[i])
		summary.AttendingCount = attending[events[i].ID]
		summary.WaitlistCount = waiting[events[i].ID]
		out = append(out, summary)
	}
	return out, nil
}

func (s *EventService) countRSVPs(ctx context.Context, eventIDs []string, waitlisted bool) (map[string]int, error) {
	var rows []struct {
		EventID string
		N       int
	}
	if err := s.db.WithContext(ctx).
		Model(&models.RSVP{}).
		Select("event_id, COUNT(*) AS n").
		Where("event_id IN ? AND cancelled = ? AND waitlisted = ?", eventIDs, false, waitlisted).
		Group("event_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("event service: count rsvps: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.EventID] = row.N
	}
	return counts, nil
}

// Get loads an event with its RSVPs sorted into attending and waitlist views.
func (s *EventService) Get(ctx context.Context, id string) (*EventDetail, error) {
	ctx = ensureContext(ctx)

	var event models.Event
	if err := s.db.WithContext(ctx).
		Preload("CreatedBy").
		Preload("RSVPs.User").
		Preload("RSVPs.RSVPBy").
		First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("event service: get: %w", err)
	}
	return s.detail(&event), nil
}

func (s *EventService) summarise(event *models.Event) EventSummary {
	return EventSummary{
		Event: *event,
		Title: event.Title(s.loc),
		End:   event.End(s.defaultDuration),
	}
}

func (s *EventService) detail(event *models.Event) *EventDetail {
	summary := s.summarise(event)
	attending := waitlist.Active(event.RSVPs)
	waiting := waitlist.Waitlisted(event.RSVPs)
	summary.AttendingCount = len(attending)
	summary.WaitlistCount = len(waiting)
	return &EventDetail{
		EventSummary: summary,
		RSVPs:        waitlist.All(event.RSVPs),
		Attending:    attending,
		Waitlist:     waiting,
	}
}

// Patch updates an event. A change of rsvp_limit reshuffles the waitlist
// under the same lock and version check as RSVP changes.
func (s *EventService) Patch(ctx context.Context, actor *models.User, id string, input PatchEventInput) (*EventDetail, error) {
	ctx = ensureContext(ctx)

	if input.RSVPLimit != nil && *input.RSVPLimit < 0 {
		return nil, apperrors.NewBadRequest("rsvp_limit must not be negative")
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, apperrors.NewBadRequest("name must not be empty")
	}

	event, result, err := s.mutator.apply(ctx, id, func(tx *gorm.DB, event *models.Event) error {
		if actor != nil && !event.CanEdit(actor) {
			return apperrors.ErrForbidden
		}
		updates := s.patchUpdates(event, input)
		if len(updates) == 0 {
			return nil
		}
		if end := event.End(s.defaultDuration); event.EndsAt != nil && !end.After(event.StartsAt) {
			return apperrors.NewBadRequest("ends_at must be after starts_at")
		}
		return tx.Model(event).Updates(updates).Error
	})
	if err != nil {
		metrics.Operations.WithLabelValues("event.patch", "error").Inc()
		return nil, err
	}
	metrics.Operations.WithLabelValues("event.patch", "success").Inc()

	entry := actorEntry(actor, "event.update", "event", event.ID)
	entry.Metadata = map[string]any{"promoted": len(result.Promoted), "demoted": len(result.Demoted)}
	recordAudit(s.audit, ctx, entry)

	s.publisher.publish(ctx, event, "event.updated", "", result)
	return s.Get(ctx, event.ID)
}

// patchUpdates applies input to event in memory and returns the column map to persist.
func (s *EventService) patchUpdates(event *models.Event, input PatchEventInput) map[string]any {
	updates := map[string]any{}
	if input.Name != nil {
		event.Name = strings.TrimSpace(*input.Name)
		updates["name"] = event.Name
	}
	if input.Description != nil {
		event.Description = strings.TrimSpace(*input.Description)
		updates["description"] = event.Description
	}
	if input.StartsAt != nil {
		event.StartsAt = input.StartsAt.UTC()
		updates["starts_at"] = event.StartsAt
	}
	if input.Name != nil || input.StartsAt != nil {
		event.Slug = s.slugFor(event.Name, event.StartsAt)
		updates["slug"] = event.Slug
	}
	if input.EndsAt != nil {
		end := input.EndsAt.UTC()
		event.EndsAt = &end
		updates["ends_at"] = end
	}
	if input.RSVPLimit != nil {
		event.RSVPLimit = *input.RSVPLimit
		updates["rsvp_limit"] = event.RSVPLimit
	}
	if input.Archived != nil {
		event.Archived = *input.Archived
		updates["archived"] = event.Archived
	}
	if input.Cancelled != nil {
		event.Cancelled = *input.Cancelled
		updates["cancelled"] = event.Cancelled
	}
	return updates
}

// CancelEvent marks an event cancelled without a permission check.
func (s *EventService) CancelEvent(ctx context.Context, id string) error {
	cancelled := true
	_, err := s.Patch(ctx, nil, id, PatchEventInput{Cancelled: &cancelled})
	return err
}

// ArchivePast archives events that started before now and un-archives the
// rest, returning how many rows changed in each direction.
func (s *EventService) ArchivePast(ctx context.Context, now time.Time) (archived, restored int64, err error) {
	ctx = ensureContext(ctx)

	res := s.db.WithContext(ctx).Model(&models.Event{}).
		Where("starts_at < ? AND archived = ?", now.UTC(), false).
		Update("archived", true)
	if res.Error != nil {
		return 0, 0, fmt.Errorf("event service: archive past: %w", res.Error)
	}
	archived = res.RowsAffected

	res = s.db.WithContext(ctx).Model(&models.Event{}).
		Where("starts_at >= ? AND archived = ?", now.UTC(), true).
		Update("archived", false)
	if res.Error != nil {
		return archived, 0, fmt.Errorf("event service: unarchive upcoming: %w", res.Error)
	}
	restored = res.RowsAffected

	if archived > 0 || restored > 0 {
		s.log.Info("archive pass", zap.Int64("archived", archived), zap.Int64("restored", restored))
	}
	return archived, restored, nil
}

// RecomputeAll re-runs the waitlist over every event and returns how many
// events had RSVPs change state.
func (s *EventService) RecomputeAll(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)

	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Event{}).Order("starts_at ASC").Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("event service: list ids: %w", err)
	}

	changed := 0
	for _, id := range ids {
		event, result, err := s.mutator.apply(ctx, id, nil)
		if err != nil {
			metrics.Operations.WithLabelValues("recompute", "error").Inc()
			return changed, fmt.Errorf("event service: recompute %s: %w", id, err)
		}
		metrics.Operations.WithLabelValues("recompute", "success").Inc()
		if result.Changed() {
			changed++
			s.publisher.publish(ctx, event, "rsvps.recomputed", "", result)
		}
	}
	return changed, nil
}

// Attendance reports, for every past event that was not cancelled, whether
// the user held an attending RSVP.
func (s *EventService) Attendance(ctx context.Context, userID string) ([]AttendanceRecord, error) {
	ctx = ensureContext(ctx)

	var events []models.Event
	if err := s.db.WithContext(ctx).
		Where("cancelled = ? AND starts_at < ?", false, s.now().UTC()).
		Order("starts_at ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("event service: attendance events: %w", err)
	}

	var attendedIDs []string
	if err := s.db.WithContext(ctx).Model(&models.RSVP{}).
		Where("user_id = ? AND cancelled = ? AND waitlisted = ?", userID, false, false).
		Pluck("event_id", &attendedIDs).Error; err != nil {
		return nil, fmt.Errorf("event service: attendance rsvps: %w", err)
	}
	attended := make(map[string]struct{}, len(attendedIDs))
	for _, id := range attendedIDs {
		attended[id] = struct{}{}
	}

	out := make([]AttendanceRecord, 0, len(events))
	for i := range events {
		start := events[i].StartsAt.In(s.loc)
		_, ok := attended[events[i].ID]
		out = append(out, AttendanceRecord{
			EventID:  events[i].ID,
			Year:     start.Year(),
			Month:    start.Format("01-Jan"),
			Weekday:  fmt.Sprintf("%d-%s", int(start.Weekday()), start.Weekday()),
			Attended: ok,
		})
	}
	return out, nil
}
