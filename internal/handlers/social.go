package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/rsvp/internal/services"
	"github.com/charlesng35/rsvp/pkg/response"
)

// SocialHandler lists the community's social media presence.
type SocialHandler struct {
	social *services.SocialService
}

// NewSocialHandler constructs a SocialHandler.
func NewSocialHandler(social *services.SocialService) *SocialHandler {
	return &SocialHandler{social: social}
}

// GET /api/social
func (h *SocialHandler) List(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	entries, err := h.social.List(user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, entries)
}
