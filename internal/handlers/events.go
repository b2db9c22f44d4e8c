package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/rsvp/internal/services"
	"github.com/charlesng35/rsvp/pkg/errors"
	"github.com/charlesng35/rsvp/pkg/response"
)

// EventHandler exposes event CRUD and attendance endpoints.
type EventHandler struct {
	events *services.EventService
	users  *services.UserService
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(events *services.EventService, users *services.UserService) *EventHandler {
	return &EventHandler{events: events, users: users}
}

type createEventRequest struct {
	Name        string     `json:"name" validate:"required,max=200"`
	Description string     `json:"description" validate:"omitempty,max=5000"`
	StartsAt    time.Time  `json:"starts_at" validate:"required"`
	EndsAt      *time.Time `json:"ends_at"`
	RSVPLimit   int        `json:"rsvp_limit" validate:"min=0"`
}

type patchEventRequest struct {
	Name        *string    `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	RSVPLimit   *int       `json:"rsvp_limit" validate:"omitempty,min=0"`
	Archived    *bool      `json:"archived"`
	Cancelled   *bool      `json:"cancelled"`
}

// GET /api/events
func (h *EventHandler) List(c *gin.Context) {
	var opts services.ListEventsOptions

	start, err := h.parseTimeQuery(c, "start")
	if err != nil {
		response.Error(c, err)
		return
	}
	end, err := h.parseTimeQuery(c, "end")
	if err != nil {
		response.Error(c, err)
		return
	}
	opts.Start, opts.End = start, end

	if raw := strings.TrimSpace(c.Query("archived")); raw != "" {
		archived, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, errors.NewBadRequest("archived must be a boolean"))
			return
		}
		opts.Archived = &archived
	}

	events, err := h.events.List(requestContext(c), opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, events)
}

// parseTimeQuery accepts RFC 3339 timestamps or plain dates in the event timezone.
func (h *EventHandler) parseTimeQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts, nil
	}
	ts, err := time.ParseInLocation("2006-01-02", raw, h.events.Location())
	if err != nil {
		return nil, errors.NewBadRequest(key + " must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	}
	return &ts, nil
}

// POST /api/events
func (h *EventHandler) Create(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var req createEventRequest
	if !bindAndValidate(c, &req) {
		return
	}

	event, err := h.events.Create(requestContext(c), user, services.CreateEventInput{
		Name:        req.Name,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		RSVPLimit:   req.RSVPLimit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	detail, err := h.events.Get(requestContext(c), event.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, detail)
}

// GET /api/events/:id
func (h *EventHandler) Get(c *gin.Context) {
	detail, err := h.events.Get(requestContext(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, detail)
}

// PATCH /api/events/:id
func (h *EventHandler) Patch(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var req patchEventRequest
	if !bindAndValidate(c, &req) {
		return
	}

	detail, err := h.events.Patch(requestContext(c), user, strings.TrimSpace(c.Param("id")), services.PatchEventInput{
		Name:        req.Name,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		RSVPLimit:   req.RSVPLimit,
		Archived:    req.Archived,
		Cancelled:   req.Cancelled,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, detail)
}

// GET /api/users/:id/attendance
func (h *EventHandler) Attendance(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	userID := strings.TrimSpace(c.Param("id"))
	if userID == "" || userID == "me" {
		userID = user.ID
	} else if _, err := h.users.GetByID(requestContext(c), userID); err != nil {
		response.Error(c, err)
		return
	}

	records, err := h.events.Attendance(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, records)
}
