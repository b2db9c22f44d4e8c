package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/rsvp/internal/models"
)

func TestRSVPServiceWaitlistPromotion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := mustCreateUser(t, env.db, "owner@example.com", models.RoleApprovedUser)
	u1 := mustCreateUser(t, env.db, "one@example.com", models.RoleApprovedUser)
	u2 := mustCreateUser(t, env.db, "two@example.com", models.RoleApprovedUser)
	u3 := mustCreateUser(t, env.db, "three@example.com", models.RoleApprovedUser)

	event := env.mustCreateEvent(t, owner, 2)
	r1 := env.mustRSVP(t, event.ID, u1)
	r2 := env.mustRSVP(t, event.ID, u2)
	r3 := env.mustRSVP(t, event.ID, u3)

	require.False(t, r1.RSVP.Waitlisted)
	require.False(t, r2.RSVP.Waitlisted)
	require.True(t, r3.RSVP.Waitlisted)
	require.Len(t, r3.Event.Attending, 2)
	require.Len(t, r3.Event.Waitlist, 1)
	// the new RSVP's own placement is not a transition worth notifying
	items, err := env.notifications.ListForUser(ctx, ListNotificationsInput{UserID: u3.ID})
	require.NoError(t, err)
	require.Empty(t, items)

	out, err := env.rsvps.Cancel(ctx, event.ID, r1.RSVP.ID, u1)
	require.NoError(t, err)
	require.Equal(t, []string{r3.RSVP.ID}, out.Result.Promoted)
	require.NotNil(t, out.RSVP)
	require.True(t, out.RSVP.Cancelled)

	attending := out.Event.Attending
	require.Len(t, attending, 2)
	require.Equal(t, r2.RSVP.ID, attending[0].ID)
	require.Equal(t, r3.RSVP.ID, attending[1].ID)
	require.Empty(t, out.Event.Waitlist)
	require.Len(t, out.Event.RSVPs, 3)
	require.Equal(t, r1.RSVP.ID, out.Event.RSVPs[2].ID)

	items, err = env.notifications.ListForUser(ctx, ListNotificationsInput{UserID: u3.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, NotificationWaitlistPromoted, items[0].Type)
	require.Equal(t, event.ID, items[0].Metadata["event_id"])

	sent := env.mailer.messages()
	require.Len(t, sent, 1)
	require.Equal(t, []string{"three@example.com"}, sent[0].To)
	require.True(t, strings.HasSuffix(sent[0].Subject, "you're in!"))
	require.Contains(t, sent[0].Body, "https://rsvp.test/events/"+event.ID)
}

func TestRSVPServiceDuplicateAndReactivate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := mustCreateUser(t, env.db, "owner@example.com", models.RoleApprovedUser)
	a := mustCreateUser(t, env.db, "a@example.com", models.RoleApprovedUser)
	b := mustCreateUser(t, env.db, "b@example.com", models.RoleApprovedUser)

	event := env.mustCreateEvent(t, owner, 1)
	first := env.mustRSVP(t, event.ID, a)
	env.mustRSVP(t, event.ID, b)

	_, err := env.rsvps.Create(ctx, event.ID, a, CreateRSVPInput{})
	require.ErrorIs(t, err, ErrDuplicateRSVP)

	_, err = env.rsvps.Cancel(ctx, event.ID, first.RSVP.ID, a)
	require.NoError(t, err)

	again, err := env.rsvps.Create(ctx, event.ID, a, CreateRSVPInput{Note: "back in"})
	require.NoError(t, err)
	require.Equal(t, first.RSVP.ID, again.RSVP.ID)
	require.False(t, again.RSVP.Cancelled)
	require.Equal(t, "back in", again.RSVP.Note)
	// reactivation joins the back of the queue
	require.True(t, again.RSVP.Waitlisted)
	require.True(t, again.RSVP.CreatedAt.After(first.RSVP.CreatedAt))
	require.Equal(t, b.ID, again.Event.Attending[0].UserID)

	var count int64
	require.NoError(t, env.db.Model(&models.RSVP{}).Where("event_id = ?", event.ID).Count(&count).Error)
	require.Equal(t, int64(2), count)
}

func TestRSVPServiceOnBehalfAndAnonymous(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := mustCreateUser(t, env.db, "admin@example.com", models.RoleAdmin)
	friend := mustCreateUser(t, env.db, "friend@example.com", models.RoleApprovedUser)
	event := env.mustCreateEvent(t, admin, 0)

	out, err := env.rsvps.Create(ctx, event.ID, admin, CreateRSVPInput{UserEmail: "FRIEND@example.com"})
	require.NoError(t, err)
	require.Equal(t, friend.ID, out.RSVP.UserID)
	require.NotNil(t, out.RSVP.RSVPByID)
	require.Equal(t, admin.ID, *out.RSVP.RSVPByID)

	_, err = env.rsvps.Create(ctx, event.ID, admin, CreateRSVPInput{UserEmail: "guest@example.org"})
	require.ErrorIs(t, err, ErrUserNotFound)

	guest, err := env.rsvps.Create(ctx, event.ID, admin, CreateRSVPInput{
		UserEmail:    "Guest@example.org",
		Note:         "plus one",
		UseAnonymous: true,
	})
	require.NoError(t, err)
	require.Equal(t, "guest@example.org (plus one)", guest.RSVP.Note)
	require.NotNil(t, guest.RSVP.User)
	require.True(t, guest.RSVP.User.IsAnonymousUser())

	second, err := env.rsvps.Create(ctx, event.ID, admin, CreateRSVPInput{UserEmail: "other@example.org", UseAnonymous: true})
	require.NoError(t, err)
	require.Equal(t, "other@example.org", second.RSVP.Note)
	require.NotEqual(t, guest.RSVP.ID, second.RSVP.ID)

	cancelled, err := env.rsvps.Cancel(ctx, event.ID, guest.RSVP.ID, admin)
	require.NoError(t, err)
	require.Nil(t, cancelled.RSVP)

	_, err = env.rsvps.Get(ctx, event.ID, guest.RSVP.ID)
	require.ErrorIs(t, err, ErrRSVPNotFound)

	list, err := env.rsvps.List(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	// anonymous users never receive notifications
	anon, err := env.users.Anonymous(ctx)
	require.NoError(t, err)
	count, err := env.notifications.UnreadCount(ctx, anon.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestRSVPServiceClosedEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := mustCreateUser(t, env.db, "admin@example.com", models.RoleAdmin)
	bob := mustCreateUser(t, env.db, "bob@example.com", models.RoleApprovedUser)
	event := env.mustCreateEvent(t, admin, 0)

	require.NoError(t, env.events.CancelEvent(ctx, event.ID))

	_, err := env.rsvps.Create(ctx, event.ID, bob, CreateRSVPInput{})
	require.ErrorIs(t, err, ErrEventClosed)

	out, err := env.rsvps.Create(ctx, event.ID, admin, CreateRSVPInput{})
	require.NoError(t, err)
	require.NotNil(t, out.RSVP)

	_, err = env.rsvps.Create(ctx, "missing", bob, CreateRSVPInput{})
	require.ErrorIs(t, err, ErrEventNotFound)
	_, err = env.rsvps.List(ctx, "missing")
	require.ErrorIs(t, err, ErrEventNotFound)
}

func TestRSVPServiceCancelOnClosedEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := mustCreateUser(t, env.db, "admin@example.com", models.RoleAdmin)
	alice := mustCreateUser(t, env.db, "alice@example.com", models.RoleApprovedUser)
	bob := mustCreateUser(t, env.db, "bob@example.com", models.RoleApprovedUser)
	event := env.mustCreateEvent(t, admin, 1)

	attending := env.mustRSVP(t, event.ID, alice)
	waiting := env.mustRSVP(t, event.ID, bob)
	require.True(t, waiting.RSVP.Waitlisted)

	archive := true
	_, err := env.events.Patch(ctx, admin, event.ID, PatchEventInput{Archived: &archive})
	require.NoError(t, err)

	_, err = env.rsvps.Cancel(ctx, event.ID, attending.RSVP.ID, alice)
	require.ErrorIs(t, err, ErrEventClosed)

	detail, err := env.events.Get(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, detail.Attending, 1)
	require.Equal(t, attending.RSVP.ID, detail.Attending[0].ID)
	require.Len(t, detail.Waitlist, 1)
	require.Empty(t, env.mailer.messages())

	out, err := env.rsvps.Cancel(ctx, event.ID, attending.RSVP.ID, admin)
	require.NoError(t, err)
	require.Equal(t, []string{waiting.RSVP.ID}, out.Result.Promoted)
}

func TestRSVPServiceCancelPermissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := mustCreateUser(t, env.db, "admin@example.com", models.RoleAdmin)
	alice := mustCreateUser(t, env.db, "alice@example.com", models.RoleApprovedUser)
	mallory := mustCreateUser(t, env.db, "mallory@example.com", models.RoleApprovedUser)
	event := env.mustCreateEvent(t, admin, 0)

	mine := env.mustRSVP(t, event.ID, alice)

	_, err := env.rsvps.Cancel(ctx, event.ID, mine.RSVP.ID, mallory)
	require.ErrorIs(t, err, ErrCannotCancel)

	_, err = env.rsvps.Cancel(ctx, event.ID, "missing", alice)
	require.ErrorIs(t, err, ErrRSVPNotFound)

	out, err := env.rsvps.Cancel(ctx, event.ID, mine.RSVP.ID, admin)
	require.NoError(t, err)
	require.True(t, out.RSVP.Cancelled)

	// cancelling twice is harmless
	_, err = env.rsvps.Cancel(ctx, event.ID, mine.RSVP.ID, alice)
	require.NoError(t, err)
}

func TestRSVPServiceConcurrentCreatesRespectLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := mustCreateUser(t, env.db, "owner@example.com", models.RoleApprovedUser)
	event := env.mustCreateEvent(t, owner, 3)

	const attendees = 10
	users := make([]*models.User, attendees)
	for i := range users {
		users[i] = mustCreateUser(t, env.db, fmt.Sprintf("user%d@example.com", i), models.RoleApprovedUser)
	}

	var wg sync.WaitGroup
	errs := make(chan error, attendees)
	for _, user := range users {
		wg.Add(1)
		go func(u *models.User) {
			defer wg.Done()
			_, err := env.rsvps.Create(ctx, event.ID, u, CreateRSVPInput{})
			errs <- err
		}(user)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	detail, err := env.events.Get(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, detail.Attending, 3)
	require.Len(t, detail.Waitlist, attendees-3)
	require.Equal(t, int64(1+attendees), detail.Version)

	for i := 1; i < len(detail.Waitlist); i++ {
		require.False(t, detail.Waitlist[i].CreatedAt.Before(detail.Waitlist[i-1].CreatedAt))
	}
}
