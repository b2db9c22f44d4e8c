package api

import (
	"github.com/charlesng35/rsvp/internal/handlers"
)

func registerNotificationRoutes(groups routeGroups, handler *handlers.NotificationHandler) {
	group := groups.signedIn.Group("/notifications")
	{
		group.GET("", handler.List)
		group.GET("/unread-count", handler.UnreadCount)
		group.POST("/read-all", handler.MarkAllRead)
		group.POST("/:id/read", handler.MarkRead)
		group.DELETE("/:id", handler.Delete)
	}
}
