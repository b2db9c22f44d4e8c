package api

import (
	"github.com/charlesng35/rsvp/internal/handlers"
)

func registerAuditRoutes(groups routeGroups, handler *handlers.AuditHandler) {
	groups.admin.GET("/audit", handler.List)
}
