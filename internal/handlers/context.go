package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/rsvp/internal/middleware"
	"github.com/charlesng35/rsvp/internal/models"
	"github.com/charlesng35/rsvp/pkg/errors"
	"github.com/charlesng35/rsvp/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// requireUser returns the authenticated user or writes a 401 and returns nil.
func requireUser(c *gin.Context) *models.User {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, errors.ErrUnauthorized)
		return nil
	}
	return user
}
