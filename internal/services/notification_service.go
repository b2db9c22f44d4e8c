package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/rsvp/internal/models"
	"github.com/charlesng35/rsvp/internal/realtime"
	apperrors "github.com/charlesng35/rsvp/pkg/errors"
)

// Notification kinds stored in notifications.type.
const (
	NotificationWaitlistPromoted = "rsvp.promoted"
	NotificationWaitlistDemoted  = "rsvp.waitlisted"
	NotificationAccountApproved  = "user.approved"
)

// Realtime events published on the notifications stream.
const (
	notificationCreated = "notification.created"
	notificationRead    = "notification.read"
	notificationReadAll = "notification.read_all"
	notificationDeleted = "notification.deleted"
)

const (
	defaultNotificationPage = 25
	maxNotificationPage     = 100
)

var kindSeverity = map[string]string{
	NotificationWaitlistPromoted: "success",
	NotificationWaitlistDemoted:  "warning",
	NotificationAccountApproved:  "success",
}

// NotificationDTO is a notification as returned to its owner.
type NotificationDTO struct {
	ID        string               `json:"id"`
	UserID    string               `json:"user_id"`
	Type      string               `json:"type"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Severity  string               `json:"severity"`
	ActionURL string               `json:"action_url,omitempty"`
	EventID   string               `json:"event_id,omitempty"`
	Metadata  map[string]any       `json:"metadata,omitempty"`
	IsRead    bool                 `json:"is_read"`
	CreatedAt time.Time            `json:"created_at"`
	ReadAt    *time.Time           `json:"read_at,omitempty"`
	Raw       *models.Notification `json:"-"`
}

// CreateNotificationInput describes one notification. Severity defaults per
// kind.
type CreateNotificationInput struct {
	UserID    string
	Type      string
	Title     string
	Message   string
	Severity  string
	ActionURL string
	Metadata  map[string]any
	IsRead    bool
}

// ListNotificationsInput pages through one member's notifications, optionally
// only those about one event.
type ListNotificationsInput struct {
	UserID     string
	EventID    string
	UnreadOnly bool
	Limit      int
	Offset     int
}

// NotificationEventPayload is the data of a notifications stream message.
type NotificationEventPayload struct {
	Notification   *NotificationDTO `json:"notification,omitempty"`
	NotificationID string           `json:"notification_id,omitempty"`
}

// WaitlistChange is a member moving across the waitlist boundary of an event.
type WaitlistChange struct {
	UserID     string
	EventID    string
	EventTitle string
	Link       string
	Promoted   bool
}

// Text returns the heading and body shown for the change.
func (w WaitlistChange) Text() (heading, body string) {
	if w.Promoted {
		return "You are off the waitlist",
			fmt.Sprintf("A spot opened up and you are now attending %s.", w.EventTitle)
	}
	return "You are on the waitlist",
		fmt.Sprintf("The RSVP limit of %s changed and you are now on the waitlist.", w.EventTitle)
}

// NotificationService stores in-app notifications and pushes them to the
// owner's realtime connections.
type NotificationService struct {
	db  *gorm.DB
	hub *realtime.Hub
	now func() time.Time
}

// NewNotificationService constructs a NotificationService. hub may be nil.
func NewNotificationService(db *gorm.DB, hub *realtime.Hub) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db, hub: hub, now: time.Now}, nil
}

// NotifyWaitlistChange records a promotion or demotion for the member.
func (s *NotificationService) NotifyWaitlistChange(ctx context.Context, change WaitlistChange) (*NotificationDTO, error) {
	kind := NotificationWaitlistDemoted
	if change.Promoted {
		kind = NotificationWaitlistPromoted
	}
	heading, body := change.Text()
	return s.Create(ctx, CreateNotificationInput{
		UserID:    change.UserID,
		Type:      kind,
		Title:     heading,
		Message:   body,
		ActionURL: change.Link,
		Metadata:  map[string]any{"event_id": change.EventID},
	})
}

// NotifyAccountApproved tells a member they may now see events and RSVP.
func (s *NotificationService) NotifyAccountApproved(ctx context.Context, userID string) (*NotificationDTO, error) {
	return s.Create(ctx, CreateNotificationInput{
		UserID:  userID,
		Type:    NotificationAccountApproved,
		Title:   "Your account has been approved",
		Message: "You can now see events and RSVP.",
	})
}

// ListForUser returns the member's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) ([]NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}

	limit := input.Limit
	if limit <= 0 || limit > maxNotificationPage {
		limit = defaultNotificationPage
	}

	query := s.owned(ctx, userID)
	if eventID := strings.TrimSpace(input.EventID); eventID != "" {
		query = query.Where("event_id = ?", eventID)
	}
	if input.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var rows []models.Notification
	if err := query.Order("created_at DESC").Limit(limit).Offset(max(0, input.Offset)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list: %w", err)
	}

	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, toNotificationDTO(row))
	}
	return items, nil
}

// Create stores a notification and pushes it to the owner.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	row, err := s.buildNotification(input)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("notification service: create: %w", err)
	}

	dto := toNotificationDTO(row)
	s.push(row.UserID, notificationCreated, &NotificationEventPayload{Notification: &dto})
	return &dto, nil
}

// MarkRead flags one of the member's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	var row models.Notification
	if err := s.owned(ctx, userID).Where("id = ?", notificationID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("notification service: load: %w", err)
	}

	now := s.now().UTC()
	if !row.IsRead {
		if err := s.markRead(ctx, userID, now, row.ID); err != nil {
			return nil, err
		}
		row.IsRead = true
		row.ReadAt = &now
	}

	dto := toNotificationDTO(row)
	s.push(userID, notificationRead, &NotificationEventPayload{Notification: &dto, NotificationID: row.ID})
	return &dto, nil
}

// MarkAllRead flags every unread notification of the member.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	ctx = ensureContext(ctx)
	if err := s.markRead(ctx, userID, s.now().UTC()); err != nil {
		return err
	}
	s.push(userID, notificationReadAll, nil)
	return nil
}

// Delete removes one of the member's notifications.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	ctx = ensureContext(ctx)
	res := s.owned(ctx, userID).Where("id = ?", notificationID).Delete(&models.Notification{})
	if res.Error != nil {
		return fmt.Errorf("notification service: delete: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	s.push(userID, notificationDeleted, &NotificationEventPayload{NotificationID: notificationID})
	return nil
}

// UnreadCount returns how many notifications the member has not read.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	var count int64
	if err := s.owned(ctx, userID).Where("is_read = ?", false).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: count unread: %w", err)
	}
	return count, nil
}

// CleanupRead removes read notifications older than retentionDays.
func (s *NotificationService) CleanupRead(ctx context.Context, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)
	if retentionDays <= 0 {
		return 0, errors.New("notification service: retentionDays must be positive")
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	res := s.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("notification service: cleanup: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *NotificationService) owned(ctx context.Context, userID string) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
}

// markRead flags the given notifications, or all unread ones when ids is empty.
func (s *NotificationService) markRead(ctx context.Context, userID string, at time.Time, ids ...string) error {
	query := s.owned(ctx, userID).Where("is_read = ?", false)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	if err := query.Updates(map[string]any{"is_read": true, "read_at": at}).Error; err != nil {
		return fmt.Errorf("notification service: mark read: %w", err)
	}
	return nil
}

func (s *NotificationService) buildNotification(input CreateNotificationInput) (models.Notification, error) {
	row := models.Notification{
		UserID:    strings.TrimSpace(input.UserID),
		Type:      strings.TrimSpace(input.Type),
		Title:     strings.TrimSpace(input.Title),
		Message:   strings.TrimSpace(input.Message),
		Severity:  strings.TrimSpace(input.Severity),
		ActionURL: strings.TrimSpace(input.ActionURL),
		IsRead:    input.IsRead,
	}
	switch {
	case row.UserID == "":
		return row, errors.New("notification service: user id is required")
	case row.Type == "":
		return row, errors.New("notification service: type is required")
	}
	if row.Severity == "" {
		row.Severity = defaultIfEmpty(kindSeverity[row.Type], "info")
	}
	if id, ok := input.Metadata["event_id"].(string); ok && id != "" {
		row.EventID = &id
	}
	if input.Metadata != nil {
		data, err := json.Marshal(input.Metadata)
		if err != nil {
			return row, fmt.Errorf("notification service: marshal metadata: %w", err)
		}
		row.Metadata = datatypes.JSON(data)
	}
	if row.IsRead {
		now := s.now().UTC()
		row.ReadAt = &now
	}
	return row, nil
}

func (s *NotificationService) push(userID, event string, payload *NotificationEventPayload) {
	if s.hub == nil {
		return
	}
	msg := realtime.Message{Stream: realtime.StreamNotifications, Event: event}
	if payload != nil {
		msg.Data = payload
	}
	s.hub.BroadcastToUser(realtime.StreamNotifications, userID, msg)
}

func toNotificationDTO(row models.Notification) NotificationDTO {
	dto := NotificationDTO{
		ID:        row.ID,
		UserID:    row.UserID,
		Type:      row.Type,
		Title:     row.Title,
		Message:   row.Message,
		Severity:  defaultIfEmpty(row.Severity, "info"),
		ActionURL: row.ActionURL,
		IsRead:    row.IsRead,
		CreatedAt: row.CreatedAt,
		ReadAt:    row.ReadAt,
		Raw:       &row,
	}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &dto.Metadata); err != nil {
			dto.Metadata = nil
		}
	}
	if row.EventID != nil {
		dto.EventID = *row.EventID
	}
	return dto
}
