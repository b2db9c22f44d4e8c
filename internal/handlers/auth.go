package handlers

import (
	stdErrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/rsvp/internal/auth"
	"github.com/charlesng35/rsvp/internal/middleware"
	"github.com/charlesng35/rsvp/internal/models"
	"github.com/charlesng35/rsvp/internal/services"
	"github.com/charlesng35/rsvp/pkg/errors"
	"github.com/charlesng35/rsvp/pkg/logger"
	"github.com/charlesng35/rsvp/pkg/metrics"
	"github.com/charlesng35/rsvp/pkg/response"
)

// AuthConfig tunes the login flows exposed by AuthHandler.
type AuthConfig struct {
	PrivateApp   bool
	DevLogin     bool
	SecureCookie bool
}

// AuthHandler manages authentication flows (login/callback/logout/me).
type AuthHandler struct {
	users *services.UserService
	jwt   *iauth.JWTService
	oidc  *iauth.OIDCLogin
	cfg   AuthConfig
	log   *zap.Logger
}

// NewAuthHandler constructs an AuthHandler. A nil oidc disables provider login.
func NewAuthHandler(users *services.UserService, jwt *iauth.JWTService, oidc *iauth.OIDCLogin, cfg AuthConfig) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwt, oidc: oidc, cfg: cfg, log: logger.WithModule("auth")}
}

type devLoginRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"omitempty,max=120"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"`
	ReturnURL   string       `json:"return_url,omitempty"`
	User        *models.User `json:"user"`
}

// GET /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	if h.oidc == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}
	target, err := h.oidc.Begin(requestContext(c), c.Query("redirect"))
	if err != nil {
		h.log.Warn("oidc login could not start", zap.Error(err))
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}
	c.Redirect(http.StatusFound, target)
}

// GET /api/auth/callback
func (h *AuthHandler) Callback(c *gin.Context) {
	if h.oidc == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}
	identity, state, err := h.oidc.Complete(requestContext(c), c.Request)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("oidc", "failure").Inc()
		if stdErrors.Is(err, iauth.ErrOIDCDisabled) {
			response.Error(c, errors.ErrNotFound)
			return
		}
		h.log.Info("oidc callback rejected", zap.Error(err))
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	h.finishLogin(c, "oidc", identity.Email, identity.Name, state.ReturnURL)
}

// POST /api/auth/dev-login
func (h *AuthHandler) DevLogin(c *gin.Context) {
	if !h.cfg.DevLogin {
		response.Error(c, errors.ErrNotFound)
		return
	}
	var req devLoginRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.finishLogin(c, "dev", req.Email, req.Name, "")
}

// finishLogin provisions the account and, unless it still awaits approval,
// issues an access token as JSON and as a cookie.
func (h *AuthHandler) finishLogin(c *gin.Context, provider, email, name, returnURL string) {
	ctx := requestContext(c)
	user, created, err := h.users.EnsureFromIdentity(ctx, email, name)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues(provider, "failure").Inc()
		response.Error(c, err)
		return
	}
	if !user.IsActive {
		metrics.AuthAttempts.WithLabelValues(provider, "failure").Inc()
		response.Error(c, errors.ErrForbidden)
		return
	}

	if h.cfg.PrivateApp && !user.IsApproved() && !user.IsAdmin() {
		if created {
			if err := h.users.RequestApproval(ctx, user); err != nil {
				h.log.Warn("approval request failed", zap.String("email", user.Email), zap.Error(err))
			}
		}
		metrics.AuthAttempts.WithLabelValues(provider, "pending").Inc()
		response.Error(c, errors.ErrApprovalPending)
		return
	}

	token, err := h.jwt.GenerateAccessToken(iauth.MemberToken(user))
	if err != nil {
		metrics.AuthAttempts.WithLabelValues(provider, "failure").Inc()
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}
	metrics.AuthAttempts.WithLabelValues(provider, "success").Inc()

	ttl := int(h.jwt.TTL().Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookieName, token, ttl, "/", "", h.cfg.SecureCookie, true)

	response.Success(c, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   ttl,
		ReturnURL:   strings.TrimSpace(returnURL),
		User:        user,
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"user":        user,
		"is_admin":    user.IsAdmin(),
		"is_approved": user.IsApproved() || !h.cfg.PrivateApp,
	})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookieName, "", -1, "/", "", h.cfg.SecureCookie, true)
	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}
