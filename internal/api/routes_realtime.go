package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/rsvp/internal/handlers"
	"github.com/charlesng35/rsvp/internal/middleware"
)

func registerRealtimeRoutes(r *gin.Engine, authn *middleware.Authenticator, handler *handlers.RealtimeHandler) {
	ws := r.Group("/ws", authn.Required())
	ws.GET("", handler.Stream)
	ws.GET("/:stream", handler.Stream)
}
