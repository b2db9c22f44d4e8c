package api

import (
	"github.com/charlesng35/rsvp/internal/handlers"
)

func registerAuthRoutes(groups routeGroups, handler *handlers.AuthHandler) {
	public := groups.public.Group("/auth")
	{
		public.GET("/login", handler.Login)
		public.GET("/callback", handler.Callback)
		public.POST("/dev-login", handler.DevLogin)
		public.POST("/logout", handler.Logout)
	}

	// Pending members may still see who they are signed in as.
	groups.signedIn.GET("/auth/me", handler.Me)
}
