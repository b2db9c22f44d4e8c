package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/rsvp/internal/models"
	"github.com/charlesng35/rsvp/internal/services"
	"github.com/charlesng35/rsvp/pkg/response"
)

// UserHandler exposes the member directory, profiles and approvals.
type UserHandler struct {
	users *services.UserService
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type approveUserRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type updateProfileRequest struct {
	Nick       *string    `json:"nick" validate:"omitempty,max=60"`
	UPIID      *string    `json:"upi_id" validate:"omitempty,max=120"`
	BloodGroup *string    `json:"blood_group" validate:"omitempty,max=8"`
	DOB        *time.Time `json:"dob"`
	HideDOB    *bool      `json:"hide_dob"`
}

// userView hides the date of birth of members who asked for it.
type userView struct {
	models.User
	DOB *time.Time `json:"dob,omitempty"`
}

func viewUser(user *models.User, viewer *models.User) userView {
	view := userView{User: *user, DOB: user.DOB}
	if user.HideDOB && (viewer == nil || viewer.ID != user.ID) && !viewer.IsAdmin() {
		view.DOB = nil
	}
	return view
}

// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	viewer := requireUser(c)
	if viewer == nil {
		return
	}
	users, err := h.users.ListApproved(requestContext(c), c.Query("role"), c.Query("gender"))
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]userView, 0, len(users))
	for i := range users {
		out = append(out, viewUser(&users[i], viewer))
	}
	response.Success(c, http.StatusOK, out)
}

// GET /api/users/pending
func (h *UserHandler) Pending(c *gin.Context) {
	users, err := h.users.ListPendingApproval(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, users)
}

// POST /api/users/approve
func (h *UserHandler) Approve(c *gin.Context) {
	actor := requireUser(c)
	if actor == nil {
		return
	}
	var req approveUserRequest
	if !bindAndValidate(c, &req) {
		return
	}
	user, err := h.users.Approve(requestContext(c), actor, req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	viewer := requireUser(c)
	if viewer == nil {
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "me" {
		id = viewer.ID
	}
	user, err := h.users.GetByID(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, viewUser(user, viewer))
}

// PATCH /api/users/me
func (h *UserHandler) UpdateMe(c *gin.Context) {
	actor := requireUser(c)
	if actor == nil {
		return
	}
	var req updateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}
	user, err := h.users.UpdateProfile(requestContext(c), actor, actor.ID, services.UpdateProfileInput{
		Nick:       req.Nick,
		UPIID:      req.UPIID,
		BloodGroup: req.BloodGroup,
		DOB:        req.DOB,
		HideDOB:    req.HideDOB,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}
