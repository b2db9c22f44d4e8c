package realtime

import "strings"

// Named realtime streams.
const (
	// StreamNotifications delivers a user's in-app notifications.
	StreamNotifications = "notifications"
	// StreamEventRSVPs carries RSVP and waitlist changes for all events.
	// EventStream narrows it to one event.
	StreamEventRSVPs = "events.rsvps"
)

const scopeSeparator = ":"

// Streams lists every stream a client may subscribe to.
func Streams() []string {
	return []string{StreamNotifications, StreamEventRSVPs}
}

// EventStream is the stream of RSVP changes for a single event.
func EventStream(eventID string) string {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return ""
	}
	return StreamEventRSVPs + scopeSeparator + strings.ToLower(eventID)
}

// BaseStream strips the scope from a stream name, so that
// "events.rsvps:<id>" reports "events.rsvps".
func BaseStream(stream string) string {
	base, _, _ := strings.Cut(normalizeStream(stream), scopeSeparator)
	return base
}
