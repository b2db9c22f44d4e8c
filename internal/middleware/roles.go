package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/rsvp/pkg/errors"
	"github.com/charlesng35/rsvp/pkg/metrics"
	"github.com/charlesng35/rsvp/pkg/response"
)

// RequireApproved blocks users without the approved role when the app is private.
// Admins and the bot account always pass.
func RequireApproved(privateApp bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !privateApp {
			c.Next()
			return
		}
		user := CurrentUser(c)
		if user == nil {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !user.IsApproved() && !user.IsAdmin() && !user.IsAnonymousUser() {
			metrics.AuthAttempts.WithLabelValues("approval", "pending").Inc()
			response.Error(c, errors.ErrApprovalPending)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRole allows the request when the user has any of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !user.HasAnyRole(roles...) {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
