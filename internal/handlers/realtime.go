package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/rsvp/internal/middleware"
	"github.com/charlesng35/rsvp/internal/models"
	"github.com/charlesng35/rsvp/internal/realtime"
	"github.com/charlesng35/rsvp/pkg/errors"
	"github.com/charlesng35/rsvp/pkg/response"
)

// RealtimeHandler upgrades signed-in requests to websocket streams.
type RealtimeHandler struct {
	hub        *realtime.Hub
	privateApp bool
}

// NewRealtimeHandler builds the handler. With privateApp set, members
// awaiting approval only receive their own notifications.
func NewRealtimeHandler(hub *realtime.Hub, privateApp bool) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, privateApp: privateApp}
}

// Stream subscribes the caller to the requested streams, or to their
// notifications when none are named. ?event=<id> follows a single event.
// Runs behind the authenticator.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	streams := requestedStreams(c)
	if len(streams) == 0 {
		streams = []string{realtime.StreamNotifications}
	}

	allowed := h.streamsFor(user)
	for _, stream := range streams {
		base := realtime.BaseStream(stream)
		if !knownStream(base) {
			response.Error(c, errors.ErrNotFound)
			return
		}
		if _, ok := allowed[base]; !ok {
			response.Error(c, errors.ErrApprovalPending)
			return
		}
	}

	h.hub.Serve(user.ID, streams, allowed, c.Writer, c.Request)
}

func (h *RealtimeHandler) streamsFor(user *models.User) map[string]struct{} {
	allowed := map[string]struct{}{realtime.StreamNotifications: {}}
	if !h.privateApp || user.IsApproved() || user.IsAdmin() || user.IsAnonymousUser() {
		allowed[realtime.StreamEventRSVPs] = struct{}{}
	}
	return allowed
}

func knownStream(base string) bool {
	for _, s := range realtime.Streams() {
		if s == base {
			return true
		}
	}
	return false
}

// requestedStreams collects /ws/:stream, ?stream=, ?streams=a,b and ?event=.
func requestedStreams(c *gin.Context) []string {
	candidates := append([]string{c.Param("stream")}, c.QueryArray("stream")...)
	if raw := c.Query("streams"); raw != "" {
		candidates = append(candidates, strings.Split(raw, ",")...)
	}
	for _, id := range c.QueryArray("event") {
		candidates = append(candidates, realtime.EventStream(id))
	}

	seen := make(map[string]struct{}, len(candidates))
	var out []string
	for _, s := range candidates {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
