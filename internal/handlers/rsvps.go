package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/rsvp/internal/services"
	"github.com/charlesng35/rsvp/pkg/response"
)

// RSVPHandler exposes the RSVPs of one event.
type RSVPHandler struct {
	rsvps *services.RSVPService
}

// NewRSVPHandler constructs an RSVPHandler.
func NewRSVPHandler(rsvps *services.RSVPService) *RSVPHandler {
	return &RSVPHandler{rsvps: rsvps}
}

type createRSVPRequest struct {
	UserEmail    string `json:"user_email" validate:"omitempty,email"`
	Note         string `json:"note" validate:"omitempty,max=500"`
	UseAnonymous bool   `json:"use_anonymous"`
}

// GET /api/events/:id/rsvps
func (h *RSVPHandler) List(c *gin.Context) {
	rsvps, err := h.rsvps.List(requestContext(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rsvps)
}

// POST /api/events/:id/rsvps
func (h *RSVPHandler) Create(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var req createRSVPRequest
	if !bindAndValidate(c, &req) {
		return
	}

	outcome, err := h.rsvps.Create(requestContext(c), strings.TrimSpace(c.Param("id")), user, services.CreateRSVPInput{
		UserEmail:    req.UserEmail,
		Note:         req.Note,
		UseAnonymous: req.UseAnonymous,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, outcome)
}

// GET /api/events/:id/rsvps/:rsvp_id
func (h *RSVPHandler) Get(c *gin.Context) {
	rsvp, err := h.rsvps.Get(requestContext(c), strings.TrimSpace(c.Param("id")), strings.TrimSpace(c.Param("rsvp_id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rsvp)
}

// DELETE /api/events/:id/rsvps/:rsvp_id
func (h *RSVPHandler) Cancel(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	outcome, err := h.rsvps.Cancel(requestContext(c), strings.TrimSpace(c.Param("id")), strings.TrimSpace(c.Param("rsvp_id")), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, outcome)
}
