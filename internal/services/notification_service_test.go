package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/rsvp/internal/database/testutil"
	"github.com/charlesng35/rsvp/internal/models"
	"github.com/charlesng35/rsvp/internal/realtime"
	apperrors "github.com/charlesng35/rsvp/pkg/errors"
)

func TestNotificationServiceCreateAndList(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := mustCreateUser(t, db, "alice@example.com")

	svc, err := NewNotificationService(db, realtime.NewHub())
	require.NoError(t, err)

	ctx := context.Background()
	dto, err := svc.Create(ctx, CreateNotificationInput{
		UserID:   user.ID,
		Type:     "event.reminder",
		Title:    "Starts soon",
		Message:  "Doors open at six",
		Metadata: map[string]any{"event_id": "event-1"},
	})
	require.NoError(t, err)
	require.Equal(t, "event.reminder", dto.Type)
	require.Equal(t, "info", dto.Severity)

	items, err := svc.ListForUser(ctx, ListNotificationsInput{UserID: user.ID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, dto.ID, items[0].ID)
	require.False(t, items[0].IsRead)
	require.Equal(t, "event-1", items[0].EventID)

	count, err := svc.UnreadCount(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	_, err = svc.Create(ctx, CreateNotificationInput{Type: "x"})
	require.Error(t, err)
	_, err = svc.Create(ctx, CreateNotificationInput{UserID: user.ID, Type: "  "})
	require.Error(t, err)
}

func TestNotificationServiceWaitlistChanges(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := mustCreateUser(t, db, "erin@example.com")

	hub := realtime.NewHub()
	conn := dialHub(t, hub, user.ID, realtime.StreamNotifications)

	svc, err := NewNotificationService(db, hub)
	require.NoError(t, err)
	ctx := context.Background()

	change := WaitlistChange{
		UserID:     user.ID,
		EventID:    "evt-7",
		EventTitle: "Climbing (Sat 1 Mar)",
		Link:       "https://rsvp.example.com/events/evt-7",
	}
	demoted, err := svc.NotifyWaitlistChange(ctx, change)
	require.NoError(t, err)
	require.Equal(t, NotificationWaitlistDemoted, demoted.Type)
	require.Equal(t, "warning", demoted.Severity)
	require.Equal(t, "You are on the waitlist", demoted.Title)

	change.Promoted = true
	promoted, err := svc.NotifyWaitlistChange(ctx, change)
	require.NoError(t, err)
	require.Equal(t, NotificationWaitlistPromoted, promoted.Type)
	require.Equal(t, "success", promoted.Severity)
	require.Contains(t, promoted.Message, "Climbing (Sat 1 Mar)")
	require.Equal(t, "evt-7", promoted.EventID)
	require.Equal(t, change.Link, promoted.ActionURL)

	other := change
	other.EventID = "evt-8"
	_, err = svc.NotifyWaitlistChange(ctx, other)
	require.NoError(t, err)
	forEvent, err := svc.ListForUser(ctx, ListNotificationsInput{UserID: user.ID, EventID: "evt-7"})
	require.NoError(t, err)
	require.Len(t, forEvent, 2)

	for _, want := range []string{demoted.ID, promoted.ID} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg struct {
			Event string                   `json:"event"`
			Data  NotificationEventPayload `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		require.Equal(t, "notification.created", msg.Event)
		require.Equal(t, want, msg.Data.Notification.ID)
	}

	approved, err := svc.NotifyAccountApproved(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, NotificationAccountApproved, approved.Type)
	require.Equal(t, "success", approved.Severity)
	require.Empty(t, approved.EventID)
}

func dialHub(t *testing.T, hub *realtime.Hub, userID, stream string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(userID, []string{stream}, nil, w, r)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return hub.Subscribers(stream) == 1 }, time.Second, 10*time.Millisecond)
	return conn
}

func TestNotificationServiceMarkRead(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := mustCreateUser(t, db, "bob@example.com")

	svc, err := NewNotificationService(db, nil)
	require.NoError(t, err)

	ctx := context.Background()
	dto, err := svc.Create(ctx, CreateNotificationInput{
		UserID: user.ID,
		Type:   NotificationAccountApproved,
		Title:  "Approved",
	})
	require.NoError(t, err)

	read, err := svc.MarkRead(ctx, user.ID, dto.ID)
	require.NoError(t, err)
	require.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)

	_, err = svc.MarkRead(ctx, "someone-else", dto.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestNotificationServiceDeleteAndMarkAll(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := mustCreateUser(t, db, "charlie@example.com")

	svc, err := NewNotificationService(db, realtime.NewHub())
	require.NoError(t, err)

	ctx := context.Background()
	first, err := svc.Create(ctx, CreateNotificationInput{UserID: user.ID, Type: NotificationWaitlistPromoted, Title: "In"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateNotificationInput{UserID: user.ID, Type: NotificationWaitlistDemoted, Title: "Out"})
	require.NoError(t, err)

	unread, err := svc.ListForUser(ctx, ListNotificationsInput{UserID: user.ID, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 2)

	require.NoError(t, svc.MarkAllRead(ctx, user.ID))

	unread, err = svc.ListForUser(ctx, ListNotificationsInput{UserID: user.ID, UnreadOnly: true})
	require.NoError(t, err)
	require.Empty(t, unread)

	items, err := svc.ListForUser(ctx, ListNotificationsInput{UserID: user.ID})
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		require.True(t, item.IsRead)
	}

	require.NoError(t, svc.Delete(ctx, user.ID, first.ID))
	require.ErrorIs(t, svc.Delete(ctx, user.ID, first.ID), apperrors.ErrNotFound)

	items, err = svc.ListForUser(ctx, ListNotificationsInput{UserID: user.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestNotificationServiceCleanupRead(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := mustCreateUser(t, db, "dana@example.com")

	svc, err := NewNotificationService(db, nil)
	require.NoError(t, err)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	oldRead := models.Notification{UserID: user.ID, Type: "t", Title: "old read", IsRead: true}
	oldRead.CreatedAt = now.AddDate(0, 0, -120)
	oldUnread := models.Notification{UserID: user.ID, Type: "t", Title: "old unread"}
	oldUnread.CreatedAt = now.AddDate(0, 0, -120)
	freshRead := models.Notification{UserID: user.ID, Type: "t", Title: "fresh read", IsRead: true}
	freshRead.CreatedAt = now.AddDate(0, 0, -1)
	require.NoError(t, db.Create(&oldRead).Error)
	require.NoError(t, db.Create(&oldUnread).Error)
	require.NoError(t, db.Create(&freshRead).Error)

	removed, err := svc.CleanupRead(context.Background(), 90)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	var remaining int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&remaining).Error)
	require.Equal(t, int64(2), remaining)
}
