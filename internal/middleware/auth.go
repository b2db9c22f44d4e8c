package middleware

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/rsvp/internal/auditctx"
	iauth "github.com/charlesng35/rsvp/internal/auth"
	"github.com/charlesng35/rsvp/internal/models"
	"github.com/charlesng35/rsvp/pkg/errors"
	"github.com/charlesng35/rsvp/pkg/logger"
	"github.com/charlesng35/rsvp/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
	CtxUserKey   = "authUser"

	// TokenCookieName carries the access token for browser clients.
	TokenCookieName = "rsvp_token"
)

// UserResolver loads the account behind a verified token.
type UserResolver interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Anonymous(ctx context.Context) (*models.User, error)
}

// Authenticator resolves the caller from a bearer token, the token cookie or
// the configured bot token.
type Authenticator struct {
	jwt      *iauth.JWTService
	users    UserResolver
	botToken string
}

// NewAuthenticator builds an Authenticator. An empty botToken disables bot access.
func NewAuthenticator(jwt *iauth.JWTService, users UserResolver, botToken string) *Authenticator {
	return &Authenticator{jwt: jwt, users: users, botToken: strings.TrimSpace(botToken)}
}

// Required rejects requests without valid credentials.
func (a *Authenticator) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.authenticate(c) {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Optional resolves the caller when credentials are present and continues either way.
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		a.authenticate(c)
		c.Next()
	}
}

func (a *Authenticator) authenticate(c *gin.Context) bool {
	token, via := credentials(c)
	if token == "" {
		return false
	}
	ctx := c.Request.Context()

	if a.botToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(a.botToken)) == 1 {
		user, err := a.users.Anonymous(ctx)
		if err != nil {
			logger.WithModule("auth").Warn("bot token: anonymous user unavailable", zap.Error(err))
			return false
		}
		setUser(c, user, auditctx.ViaBot)
		return true
	}

	claims, err := a.jwt.ValidateAccessToken(token)
	if err != nil {
		return false
	}
	user, err := a.users.GetByID(ctx, claims.UserID)
	if err != nil || user == nil || !user.IsActive {
		return false
	}

	c.Set(CtxClaimsKey, claims)
	setUser(c, user, via)
	return true
}

// credentials prefers the Authorization header over the session cookie.
// Websocket upgrades may also pass access_token in the query, since browsers
// cannot set headers on them.
func credentials(c *gin.Context) (token, via string) {
	authz := c.GetHeader("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:]), auditctx.ViaBearer
	}
	if cookie, err := c.Cookie(TokenCookieName); err == nil {
		return strings.TrimSpace(cookie), auditctx.ViaSession
	}
	if websocket.IsWebSocketUpgrade(c.Request) {
		if token := strings.TrimSpace(c.Query("access_token")); token != "" {
			return token, auditctx.ViaBearer
		}
	}
	return "", ""
}

func setUser(c *gin.Context, user *models.User, via string) {
	c.Set(CtxUserKey, user)
	c.Set(CtxUserIDKey, user.ID)
	c.Request = c.Request.WithContext(auditctx.WithActor(c.Request.Context(), auditctx.Actor{
		UserID:    user.ID,
		Email:     user.Email,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Via:       via,
	}))
}

// CurrentUser returns the authenticated user, if any.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
