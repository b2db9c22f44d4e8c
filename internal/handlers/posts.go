package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/rsvp/internal/middleware"
	"github.com/charlesng35/rsvp/internal/models"
	"github.com/charlesng35/rsvp/internal/services"
	"github.com/charlesng35/rsvp/pkg/errors"
	"github.com/charlesng35/rsvp/pkg/response"
)

// PostHandler exposes member posts. Reads work without signing in but only
// show public posts.
type PostHandler struct {
	posts      *services.PostService
	privateApp bool
}

// NewPostHandler constructs a PostHandler.
func NewPostHandler(posts *services.PostService, privateApp bool) *PostHandler {
	return &PostHandler{posts: posts, privateApp: privateApp}
}

type postRequest struct {
	Title        string   `json:"title" validate:"required,max=200"`
	Content      string   `json:"content"`
	Public       bool     `json:"public"`
	Draft        bool     `json:"draft"`
	Archived     bool     `json:"archived"`
	AuthorEmails []string `json:"author_emails" validate:"omitempty,dive,email"`
}

func (r postRequest) input() services.PostInput {
	return services.PostInput{
		Title:        r.Title,
		Content:      r.Content,
		Public:       r.Public,
		Draft:        r.Draft,
		Archived:     r.Archived,
		AuthorEmails: r.AuthorEmails,
	}
}

type postView struct {
	models.Post
	AuthorNames string `json:"author_names"`
}

func viewPost(post *models.Post) postView {
	return postView{Post: *post, AuthorNames: post.AuthorNames()}
}

func viewPosts(posts []models.Post) []postView {
	out := make([]postView, 0, len(posts))
	for i := range posts {
		out = append(out, viewPost(&posts[i]))
	}
	return out
}

// member reports whether the caller may read non-public posts.
func (h *PostHandler) member(user *models.User) bool {
	if user == nil || user.IsAnonymousUser() {
		return false
	}
	return !h.privateApp || user.IsApproved() || user.IsAdmin()
}

// GET /api/posts
func (h *PostHandler) List(c *gin.Context) {
	var (
		posts []models.Post
		err   error
	)
	if h.member(middleware.CurrentUser(c)) {
		posts, err = h.posts.ListPublished(requestContext(c), c.Query("all") == "1")
	} else {
		posts, err = h.posts.ListPublic(requestContext(c))
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, viewPosts(posts))
}

// GET /api/posts/drafts
func (h *PostHandler) Drafts(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	posts, err := h.posts.ListDrafts(requestContext(c), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, viewPosts(posts))
}

// GET /api/posts/:id
func (h *PostHandler) Get(c *gin.Context) {
	post, err := h.posts.Get(requestContext(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}

	user := middleware.CurrentUser(c)
	switch {
	case post.Draft && !post.CanEdit(user):
		response.Error(c, services.ErrPostNotFound)
		return
	case !post.Public && !h.member(user):
		response.Error(c, services.ErrPostNotFound)
		return
	}
	response.Success(c, http.StatusOK, viewPost(post))
}

// POST /api/posts
func (h *PostHandler) Create(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var req postRequest
	if !bindAndValidate(c, &req) {
		return
	}
	post, err := h.posts.Create(requestContext(c), user, req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, viewPost(post))
}

// PUT /api/posts/:id
func (h *PostHandler) Update(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var req postRequest
	if !bindAndValidate(c, &req) {
		return
	}
	post, err := h.posts.Update(requestContext(c), user, strings.TrimSpace(c.Param("id")), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, viewPost(post))
}

// DELETE /api/posts/:id
func (h *PostHandler) Delete(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	if user.IsAnonymousUser() {
		response.Error(c, errors.ErrForbidden)
		return
	}
	if err := h.posts.Delete(requestContext(c), user, strings.TrimSpace(c.Param("id"))); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
