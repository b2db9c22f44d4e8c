package api

import (
	"github.com/charlesng35/rsvp/internal/handlers"
)

func registerUserRoutes(groups routeGroups, users *handlers.UserHandler, events *handlers.EventHandler) {
	member := groups.member.Group("/users")
	{
		member.GET("", users.List)
		member.GET("/:id", users.Get)
		member.GET("/:id/attendance", events.Attendance)
	}

	groups.signedIn.PATCH("/users/me", users.UpdateMe)

	admin := groups.admin.Group("/users")
	{
		admin.GET("/pending", users.Pending)
		admin.POST("/approve", users.Approve)
	}
}
