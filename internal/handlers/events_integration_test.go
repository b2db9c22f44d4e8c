package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/rsvp/internal/handlers/testutil"
	"github.com/charlesng35/rsvp/internal/models"
	"github.com/charlesng35/rsvp/internal/services"
)

func createEvent(t *testing.T, env *testutil.Env, token string, body map[string]any) services.EventDetail {
	t.Helper()
	resp := env.Expect(http.MethodPost, "/api/events", body, token, http.StatusCreated)
	var detail services.EventDetail
	testutil.DecodeInto(t, resp.Data, &detail)
	return detail
}

func rsvp(t *testing.T, env *testutil.Env, eventID, token string, body map[string]any) services.RSVPOutcome {
	t.Helper()
	if body == nil {
		body = map[string]any{}
	}
	resp := env.Expect(http.MethodPost, "/api/events/"+eventID+"/rsvps", body, token, http.StatusCreated)
	var outcome services.RSVPOutcome
	testutil.DecodeInto(t, resp.Data, &outcome)
	return outcome
}

func TestEventHandlerCreateGetAndList(t *testing.T) {
	env := testutil.NewEnv(t)
	member := env.CreateMember("host@example.com")
	token := env.Token(member)

	starts := time.Date(2030, 4, 7, 6, 0, 0, 0, time.UTC)
	detail := createEvent(t, env, token, map[string]any{
		"name":        "Sunday Ride",
		"description": "Easy loop",
		"starts_at":   starts,
		"rsvp_limit":  2,
	})
	require.NotEmpty(t, detail.ID)
	require.Equal(t, "sunday-ride-2030-04-07", detail.Slug)
	require.Equal(t, int64(1), detail.Version)
	require.Equal(t, starts.Add(2*time.Hour), detail.End.UTC())
	require.NotNil(t, detail.CreatedByID)
	require.Equal(t, member.ID, *detail.CreatedByID)

	got := env.Expect(http.MethodGet, "/api/events/"+detail.ID, nil, token, http.StatusOK)
	var fetched services.EventDetail
	testutil.DecodeInto(t, got.Data, &fetched)
	require.Equal(t, "Sunday Ride", fetched.Name)
	require.Empty(t, fetched.RSVPs)

	createEvent(t, env, token, map[string]any{"name": "Later", "starts_at": starts.AddDate(0, 1, 0)})

	list := env.Expect(http.MethodGet, "/api/events?start=2030-05-01", nil, token, http.StatusOK)
	var summaries []services.EventSummary
	testutil.DecodeInto(t, list.Data, &summaries)
	require.Len(t, summaries, 1)
	require.Equal(t, "Later", summaries[0].Name)

	list = env.Expect(http.MethodGet, "/api/events?archived=false", nil, token, http.StatusOK)
	testutil.DecodeInto(t, list.Data, &summaries)
	require.Len(t, summaries, 2)
	require.Equal(t, "Sunday Ride", summaries[0].Name)

	env.Expect(http.MethodGet, "/api/events?archived=maybe", nil, token, http.StatusBadRequest)
	env.Expect(http.MethodGet, "/api/events?start=yesterday", nil, token, http.StatusBadRequest)
	missing := env.Expect(http.MethodGet, "/api/events/does-not-exist", nil, token, http.StatusNotFound)
	require.Equal(t, "EVENT_NOT_FOUND", missing.Error.Code)
}

func TestEventHandlerValidation(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Token(env.CreateMember("host@example.com"))

	unnamed := env.Expect(http.MethodPost, "/api/events", map[string]any{"starts_at": time.Now()}, token, http.StatusBadRequest)
	require.Equal(t, "name is required", unnamed.Error.Message)
	unscheduled := env.Expect(http.MethodPost, "/api/events", map[string]any{"name": "x"}, token, http.StatusBadRequest)
	require.Equal(t, "start time is required", unscheduled.Error.Message)
	negative := env.Expect(http.MethodPost, "/api/events", map[string]any{
		"name":       "x",
		"starts_at":  time.Now(),
		"rsvp_limit": -1,
	}, token, http.StatusBadRequest)
	require.Equal(t, "RSVP limit cannot be negative", negative.Error.Message)

	env.Expect(http.MethodPost, "/api/events", map[string]any{"name": "x", "starts_at": time.Now()}, "", http.StatusUnauthorized)
}

func TestRSVPHandlerWaitlistPromotion(t *testing.T) {
	env := testutil.NewEnv(t)
	host := env.CreateMember("host@example.com")
	alice := env.CreateMember("alice@example.com")
	bob := env.CreateMember("bob@example.com")

	event := createEvent(t, env, env.Token(host), map[string]any{
		"name":       "Track Night",
		"starts_at":  time.Now().Add(48 * time.Hour),
		"rsvp_limit": 1,
	})

	first := rsvp(t, env, event.ID, env.Token(alice), map[string]any{"note": "bringing snacks"})
	require.NotNil(t, first.RSVP)
	require.False(t, first.RSVP.Waitlisted)
	require.Equal(t, "bringing snacks", first.RSVP.Note)
	require.Equal(t, 1, first.Event.AttendingCount)

	second := rsvp(t, env, event.ID, env.Token(bob), nil)
	require.True(t, second.RSVP.Waitlisted)
	require.Equal(t, 1, second.Event.WaitlistCount)
	require.Equal(t, int64(3), second.Event.Version)

	dup := env.Expect(http.MethodPost, "/api/events/"+event.ID+"/rsvps", map[string]any{}, env.Token(bob), http.StatusConflict)
	require.Equal(t, "DUPLICATE_RSVP", dup.Error.Code)

	// Bob may not withdraw Alice's seat.
	forbidden := env.Expect(http.MethodDelete, "/api/events/"+event.ID+"/rsvps/"+first.RSVP.ID, nil, env.Token(bob), http.StatusForbidden)
	require.Equal(t, "RSVP_CANCEL_FORBIDDEN", forbidden.Error.Code)

	cancelled := env.Expect(http.MethodDelete, "/api/events/"+event.ID+"/rsvps/"+first.RSVP.ID, nil, env.Token(alice), http.StatusOK)
	var outcome services.RSVPOutcome
	testutil.DecodeInto(t, cancelled.Data, &outcome)
	require.True(t, outcome.RSVP.Cancelled)
	require.Len(t, outcome.Event.Attending, 1)
	require.Equal(t, bob.ID, outcome.Event.Attending[0].UserID)
	require.Empty(t, outcome.Event.Waitlist)

	var promoted []string
	for _, msg := range env.Mailer.Messages() {
		promoted = append(promoted, msg.To...)
	}
	require.Equal(t, []string{bob.Email}, promoted)

	notes := env.Expect(http.MethodGet, "/api/notifications", nil, env.Token(bob), http.StatusOK)
	var items []services.NotificationDTO
	testutil.DecodeInto(t, notes.Data, &items)
	require.Len(t, items, 1)
	require.Equal(t, services.NotificationWaitlistPromoted, items[0].Type)

	list := env.Expect(http.MethodGet, "/api/events/"+event.ID+"/rsvps", nil, env.Token(host), http.StatusOK)
	var rsvps []models.RSVP
	testutil.DecodeInto(t, list.Data, &rsvps)
	require.Len(t, rsvps, 2)
	require.Equal(t, bob.ID, rsvps[0].UserID)
	require.True(t, rsvps[1].Cancelled)

	one := env.Expect(http.MethodGet, "/api/events/"+event.ID+"/rsvps/"+second.RSVP.ID, nil, env.Token(host), http.StatusOK)
	var single models.RSVP
	testutil.DecodeInto(t, one.Data, &single)
	require.False(t, single.Waitlisted)
	require.NotNil(t, single.User)
	require.Equal(t, bob.Email, single.User.Email)
}

func TestRSVPHandlerOnBehalfAndAnonymous(t *testing.T) {
	env := testutil.NewEnv(t)
	host := env.CreateMember("host@example.com")
	friend := env.CreateMember("friend@example.com")
	event := createEvent(t, env, env.Token(host), map[string]any{"name": "Picnic", "starts_at": time.Now().Add(time.Hour)})

	forFriend := rsvp(t, env, event.ID, env.Token(host), map[string]any{"user_email": friend.Email})
	require.Equal(t, friend.ID, forFriend.RSVP.UserID)
	require.NotNil(t, forFriend.RSVP.RSVPByID)
	require.Equal(t, host.ID, *forFriend.RSVP.RSVPByID)

	unknown := env.Expect(http.MethodPost, "/api/events/"+event.ID+"/rsvps", map[string]any{"user_email": "guest@example.org"}, env.Token(host), http.StatusNotFound)
	require.Equal(t, "USER_NOT_FOUND", unknown.Error.Code)

	guest := rsvp(t, env, event.ID, env.Token(host), map[string]any{
		"user_email":    "guest@example.org",
		"note":          "plus one",
		"use_anonymous": true,
	})
	require.Equal(t, "guest@example.org (plus one)", guest.RSVP.Note)
	require.Equal(t, 2, guest.Event.AttendingCount)

	bad := env.Expect(http.MethodPost, "/api/events/"+event.ID+"/rsvps", map[string]any{"user_email": "not-an-email"}, env.Token(host), http.StatusBadRequest)
	require.Equal(t, "guest email must be a valid email address", bad.Error.Message)
}

func TestRSVPHandlerClosedEvent(t *testing.T) {
	env := testutil.NewEnv(t)
	host := env.CreateMember("host@example.com")
	admin := env.CreateAdmin("admin@example.com")
	event := createEvent(t, env, env.Token(host), map[string]any{"name": "Gone", "starts_at": time.Now().Add(time.Hour)})

	env.Expect(http.MethodPatch, "/api/events/"+event.ID, map[string]any{"cancelled": true}, env.Token(host), http.StatusOK)

	closed := env.Expect(http.MethodPost, "/api/events/"+event.ID+"/rsvps", map[string]any{}, env.Token(host), http.StatusForbidden)
	require.Equal(t, "EVENT_CLOSED", closed.Error.Code)

	own := rsvp(t, env, event.ID, env.Token(admin), nil)
	path := "/api/events/" + event.ID + "/rsvps/" + own.RSVP.ID
	denied := env.Expect(http.MethodDelete, path, nil, env.Token(host), http.StatusForbidden)
	require.Equal(t, "EVENT_CLOSED", denied.Error.Code)
	env.Expect(http.MethodDelete, path, nil, env.Token(admin), http.StatusOK)
}

func TestEventHandlerPatch(t *testing.T) {
	env := testutil.NewEnv(t)
	host := env.CreateMember("host@example.com")
	other := env.CreateMember("other@example.com")
	admin := env.CreateAdmin("admin@example.com")
	event := createEvent(t, env, env.Token(host), map[string]any{"name": "Swim", "starts_at": time.Now().Add(time.Hour), "rsvp_limit": 1})

	rsvp(t, env, event.ID, env.Token(host), nil)
	waiting := rsvp(t, env, event.ID, env.Token(other), nil)
	require.True(t, waiting.RSVP.Waitlisted)

	env.Expect(http.MethodPatch, "/api/events/"+event.ID, map[string]any{"description": "nope"}, env.Token(other), http.StatusForbidden)
	env.Expect(http.MethodPatch, "/api/events/"+event.ID, map[string]any{"rsvp_limit": -2}, env.Token(host), http.StatusBadRequest)

	patched := env.Expect(http.MethodPatch, "/api/events/"+event.ID, map[string]any{"rsvp_limit": 0}, env.Token(admin), http.StatusOK)
	var detail services.EventDetail
	testutil.DecodeInto(t, patched.Data, &detail)
	require.Equal(t, 0, detail.RSVPLimit)
	require.Len(t, detail.Attending, 2)
	require.Empty(t, detail.Waitlist)
}

func TestEventHandlerAttendance(t *testing.T) {
	env := testutil.NewEnv(t)
	member := env.CreateMember("rider@example.com")
	other := env.CreateMember("other@example.com")
	token := env.Token(member)

	past := createEvent(t, env, token, map[string]any{"name": "Past", "starts_at": time.Date(2024, 3, 3, 6, 0, 0, 0, time.UTC)})
	rsvp(t, env, past.ID, token, nil)

	resp := env.Expect(http.MethodGet, "/api/users/me/attendance", nil, token, http.StatusOK)
	var records []services.AttendanceRecord
	testutil.DecodeInto(t, resp.Data, &records)
	require.Len(t, records, 1)
	require.True(t, records[0].Attended)
	require.Equal(t, "03-Mar", records[0].Month)
	require.Equal(t, "0-Sunday", records[0].Weekday)

	resp = env.Expect(http.MethodGet, "/api/users/"+other.ID+"/attendance", nil, token, http.StatusOK)
	testutil.DecodeInto(t, resp.Data, &records)
	require.Len(t, records, 1)
	require.False(t, records[0].Attended)

	env.Expect(http.MethodGet, "/api/users/missing/attendance", nil, token, http.StatusNotFound)
}
