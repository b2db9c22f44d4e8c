package api

import (
	"github.com/charlesng35/rsvp/internal/handlers"
)

func registerSocialRoutes(groups routeGroups, handler *handlers.SocialHandler) {
	groups.member.GET("/social", handler.List)
}
