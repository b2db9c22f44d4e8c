package api

import (
	"github.com/charlesng35/rsvp/internal/handlers"
)

func registerPostRoutes(groups routeGroups, handler *handlers.PostHandler) {
	public := groups.public.Group("/posts", groups.auth.Optional())
	{
		public.GET("", handler.List)
		public.GET("/:id", handler.Get)
	}

	member := groups.member.Group("/posts")
	{
		member.GET("/drafts", handler.Drafts)
		member.POST("", handler.Create)
		member.PUT("/:id", handler.Update)
		member.DELETE("/:id", handler.Delete)
	}
}
