package checks

import (
	"context"
	"fmt"

	"github.com/charlesng35/rsvp/internal/monitoring"
)

// ConnectionCounter exposes the number of live realtime connections.
type ConnectionCounter interface {
	Connections() int
}

// Realtime is a liveness probe reporting the websocket hub's connection count.
func Realtime(hub ConnectionCounter) monitoring.Check {
	return monitoring.NewCheck("realtime", func(context.Context) monitoring.ProbeResult {
		if hub == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "realtime hub unavailable"}
		}
		return monitoring.ProbeResult{
			Status:  monitoring.StatusUp,
			Details: fmt.Sprintf("%d connections", hub.Connections()),
		}
	})
}
