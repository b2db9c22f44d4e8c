package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charlesng35/rsvp/internal/services"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, svc *services.Container, args []string, out io.Writer) error
}

var commands = []command{
	{"archive-events", "archive events that already started, un-archive the rest", archiveEvents},
	{"cancel-event", "cancel-event <id>: mark an event cancelled", cancelEvent},
	{"add-role", "add-role --roles a,b [--users x,y | --all]: grant roles to members", addRole},
	{"recompute-waitlists", "re-run the waitlist for every event", recomputeWaitlists},
}

// now is replaced in tests.
var now = time.Now

func execute(ctx context.Context, svc *services.Container, args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return errors.New("no command given")
	}
	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(ctx, svc, args[1:], out)
		}
	}
	printUsage(out)
	return fmt.Errorf("unknown command %q", args[0])
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "usage: rsvpctl [-config dir] <command> [args]")
	fmt.Fprintln(out)
	for _, cmd := range commands {
		fmt.Fprintf(out, "  %-20s %s\n", cmd.name, cmd.summary)
	}
}

func archiveEvents(ctx context.Context, svc *services.Container, _ []string, out io.Writer) error {
	archived, restored, err := svc.Events.ArchivePast(ctx, now())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "archived %d events, restored %d\n", archived, restored)
	return nil
}

func cancelEvent(ctx context.Context, svc *services.Container, args []string, out io.Writer) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return errors.New("cancel-event takes exactly one event id")
	}
	id := strings.TrimSpace(args[0])
	if err := svc.Events.CancelEvent(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "event %s cancelled\n", id)
	return nil
}

func addRole(ctx context.Context, svc *services.Container, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add-role", flag.ContinueOnError)
	fs.SetOutput(out)

	var (
		roles string
		users string
		all   bool
	)
	fs.StringVar(&roles, "roles", "", "Comma separated roles to grant")
	fs.StringVar(&users, "users", "", "Comma separated member emails")
	fs.BoolVar(&all, "all", false, "Grant to every member")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if all == (users != "") {
		return errors.New("add-role needs exactly one of --users or --all")
	}

	changed, err := svc.Users.AddRoles(ctx, splitList(users), all, splitList(roles))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "updated %d users\n", changed)
	return nil
}

func recomputeWaitlists(ctx context.Context, svc *services.Container, _ []string, out io.Writer) error {
	changed, err := svc.Events.RecomputeAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "recomputed waitlists, %d events changed\n", changed)
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
