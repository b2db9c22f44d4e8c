package main

import (
	"bytes"
	"context"
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/rsvp/internal/database/testutil"
	"github.com/charlesng35/rsvp/internal/models"
	"github.com/charlesng35/rsvp/internal/services"
)

func newTestServices(t *testing.T) (*gorm.DB, *services.Container) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	svc, err := services.NewContainer(db, services.ContainerConfig{
		Location:        time.UTC,
		DefaultDuration: 2 * time.Hour,
	})
	require.NoError(t, err)
	return db, svc
}

func createEvent(t *testing.T, svc *services.Container, name string, start time.Time, limit int) *models.Event {
	t.Helper()
	event, err := svc.Events.Create(context.Background(), nil, services.CreateEventInput{
		Name:      name,
		StartsAt:  start,
		RSVPLimit: limit,
	})
	require.NoError(t, err)
	return event
}

func TestExecuteUnknownCommand(t *testing.T) {
	_, svc := newTestServices(t)
	var out bytes.Buffer

	err := execute(context.Background(), svc, []string{"drop-tables"}, &out)
	require.EqualError(t, err, `unknown command "drop-tables"`)
	require.Contains(t, out.String(), "recompute-waitlists")

	require.Error(t, execute(context.Background(), svc, nil, &out))
}

func TestArchiveEvents(t *testing.T) {
	db, svc := newTestServices(t)
	past := createEvent(t, svc, "Past ride", time.Date(2020, 1, 5, 7, 0, 0, 0, time.UTC), 0)
	future := createEvent(t, svc, "Future ride", time.Date(2099, 1, 5, 7, 0, 0, 0, time.UTC), 0)
	require.NoError(t, db.Model(future).Update("archived", true).Error)

	var out bytes.Buffer
	require.NoError(t, execute(context.Background(), svc, []string{"archive-events"}, &out))
	require.Equal(t, "archived 1 events, restored 1\n", out.String())

	var pastEvent, futureEvent models.Event
	require.NoError(t, db.First(&pastEvent, "id = ?", past.ID).Error)
	require.True(t, pastEvent.Archived)
	require.NoError(t, db.First(&futureEvent, "id = ?", future.ID).Error)
	require.False(t, futureEvent.Archived)
}

func TestCancelEvent(t *testing.T) {
	db, svc := newTestServices(t)
	event := createEvent(t, svc, "Trek", time.Date(2099, 2, 1, 6, 0, 0, 0, time.UTC), 0)

	var out bytes.Buffer
	require.Error(t, execute(context.Background(), svc, []string{"cancel-event"}, &out))

	require.NoError(t, execute(context.Background(), svc, []string{"cancel-event", event.ID}, &out))
	require.Contains(t, out.String(), "event "+event.ID+" cancelled")

	var reloaded models.Event
	require.NoError(t, db.First(&reloaded, "id = ?", event.ID).Error)
	require.True(t, reloaded.Cancelled)
	require.Equal(t, int64(2), reloaded.Version)
}

func TestAddRole(t *testing.T) {
	db, svc := newTestServices(t)
	alice := testutil.SeedMember(t, db, "alice@example.com")
	testutil.SeedMember(t, db, "bob@example.com")

	var out bytes.Buffer
	err := execute(context.Background(), svc, []string{"add-role", "--roles", models.RoleApprovedUser}, &out)
	require.EqualError(t, err, "add-role needs exactly one of --users or --all")

	err = execute(context.Background(), svc, []string{"add-role", "--roles", "admin", "--users", "alice@example.com", "--all"}, &out)
	require.Error(t, err)

	out.Reset()
	require.NoError(t, execute(context.Background(), svc, []string{"add-role", "--roles", "admin, social-admin", "--users", "alice@example.com"}, &out))
	require.Equal(t, "updated 1 users\n", out.String())

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, "id = ?", alice.ID).Error)
	require.True(t, reloaded.HasRole(models.RoleAdmin))
	require.True(t, reloaded.HasRole(models.RoleSocialAdmin))

	out.Reset()
	require.NoError(t, execute(context.Background(), svc, []string{"add-role", "--roles", models.RoleApprovedUser, "--all"}, &out))
	require.Equal(t, "updated 2 users\n", out.String())

	var anon models.User
	require.NoError(t, db.First(&anon, "email = ?", models.AnonymousEmail).Error)
	require.False(t, anon.HasRole(models.RoleApprovedUser))

	err = execute(context.Background(), svc, []string{"add-role", "--roles", "admin", "--users", "nobody@example.com"}, &out)
	require.Error(t, err)
}

func TestRecomputeWaitlists(t *testing.T) {
	db, svc := newTestServices(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, execute(ctx, svc, []string{"recompute-waitlists"}, &out))
	require.Equal(t, "recomputed waitlists, 0 events changed\n", out.String())

	// A lost update left both later members admitted past the limit of one.
	event := testutil.SeedEvent(t, db, "Picnic", time.Date(2099, 3, 1, 10, 0, 0, 0, time.UTC), 1)
	joined := time.Date(2099, 2, 1, 9, 0, 0, 0, time.UTC)
	alice := testutil.SeedRSVP(t, db, event, testutil.SeedMember(t, db, "alice@example.com"), joined, false)
	bob := testutil.SeedRSVP(t, db, event, testutil.SeedMember(t, db, "bob@example.com"), joined.Add(time.Hour), false)
	carol := testutil.SeedRSVP(t, db, event, testutil.SeedMember(t, db, "carol@example.com"), joined.Add(2*time.Hour), false)
	testutil.SeedEvent(t, db, "Quiz", time.Date(2099, 3, 2, 19, 0, 0, 0, time.UTC), 0)

	out.Reset()
	require.NoError(t, execute(ctx, svc, []string{"recompute-waitlists"}, &out))
	require.Equal(t, "recomputed waitlists, 1 events changed\n", out.String())

	waitlisted := map[string]bool{}
	var rsvps []models.RSVP
	require.NoError(t, db.Where("event_id = ?", event.ID).Find(&rsvps).Error)
	for _, r := range rsvps {
		waitlisted[r.ID] = r.Waitlisted
	}
	require.Equal(t, map[string]bool{alice.ID: false, bob.ID: true, carol.ID: true}, waitlisted)

	out.Reset()
	require.NoError(t, execute(ctx, svc, []string{"recompute-waitlists"}, &out))
	require.Equal(t, "recomputed waitlists, 0 events changed\n", out.String())
}

func TestRunHelpAndMissingCommand(t *testing.T) {
	var out bytes.Buffer
	require.ErrorIs(t, run(context.Background(), []string{"-h"}, &out), flag.ErrHelp)
	require.Contains(t, out.String(), "usage: rsvpctl")

	require.EqualError(t, run(context.Background(), nil, &out), "no command given")
}

func TestSplitList(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	require.Nil(t, splitList(""))
}
