package api

import (
	"github.com/charlesng35/rsvp/internal/handlers"
)

func registerSecurityRoutes(groups routeGroups, handler *handlers.SecurityHandler) {
	groups.admin.GET("/security/audit", handler.Audit)
}
