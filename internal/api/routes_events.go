package api

import (
	"github.com/charlesng35/rsvp/internal/handlers"
)

func registerEventRoutes(groups routeGroups, events *handlers.EventHandler, rsvps *handlers.RSVPHandler) {
	group := groups.member.Group("/events")
	{
		group.GET("", events.List)
		group.POST("", events.Create)
		group.GET("/:id", events.Get)
		group.PATCH("/:id", events.Patch)

		group.GET("/:id/rsvps", rsvps.List)
		group.POST("/:id/rsvps", rsvps.Create)
		group.GET("/:id/rsvps/:rsvp_id", rsvps.Get)
		group.DELETE("/:id/rsvps/:rsvp_id", rsvps.Cancel)
	}
}
