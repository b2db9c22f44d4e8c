package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/rsvp/pkg/crypto"
	"github.com/charlesng35/rsvp/pkg/errors"
	"github.com/charlesng35/rsvp/pkg/logger"
	"github.com/charlesng35/rsvp/pkg/response"
)

const (
	// CSRFCookieName carries the double-submit token to browser clients.
	CSRFCookieName = "rsvp_csrf"
	// CSRFHeaderName must echo the cookie on RSVP, event and post mutations.
	CSRFHeaderName = "X-CSRF-Token"

	csrfTokenLength = 48
	csrfDefaultTTL  = 12 * time.Hour
)

// CSRFConfig tunes the double-submit check.
type CSRFConfig struct {
	// SessionCookie names the cookie holding the browser session. Requests
	// that present a bearer token without it are exempt: browsers never
	// attach Authorization headers on their own.
	SessionCookie string
	TTL           time.Duration
}

type csrfGuard struct {
	sessionCookie string
	maxAge        int
	log           *zap.Logger
}

// CSRF issues a token cookie on safe requests and rejects cookie-backed
// mutations whose X-CSRF-Token header does not match it.
func CSRF(cfg CSRFConfig) gin.HandlerFunc {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = csrfDefaultTTL
	}
	g := &csrfGuard{
		sessionCookie: cfg.SessionCookie,
		maxAge:        int(ttl / time.Second),
		log:           logger.WithModule("csrf"),
	}
	return g.handle
}

func (g *csrfGuard) handle(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		token, err := g.token(c)
		if err != nil {
			response.Error(c, errors.ErrInternalServer.WithInternal(err))
			c.Abort()
			return
		}
		c.Header(CSRFHeaderName, token)
		c.Next()
		return
	}

	if g.bearerOnly(c.Request) {
		c.Next()
		return
	}

	cookie, err := c.Cookie(CSRFCookieName)
	header := strings.TrimSpace(c.GetHeader(CSRFHeaderName))
	if err != nil || !tokensMatch(cookie, header) {
		g.log.Warn("csrf check failed",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Bool("has_cookie", err == nil),
			zap.Bool("has_header", header != ""),
		)
		response.Error(c, errors.ErrCSRFInvalid)
		c.Abort()
		return
	}
	c.Next()
}

// token returns the caller's current token, minting one on first contact.
func (g *csrfGuard) token(c *gin.Context) (string, error) {
	token, err := c.Cookie(CSRFCookieName)
	if err != nil || token == "" {
		if token, err = crypto.GenerateToken(csrfTokenLength); err != nil {
			return "", err
		}
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   g.maxAge,
		Secure:   requestIsHTTPS(c.Request),
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
	return token, nil
}

func (g *csrfGuard) bearerOnly(r *http.Request) bool {
	authz := r.Header.Get("Authorization")
	if len(authz) <= 7 || !strings.EqualFold(authz[:7], "Bearer ") {
		return false
	}
	if g.sessionCookie == "" {
		return true
	}
	_, err := r.Cookie(g.sessionCookie)
	return err != nil
}

func requestIsHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func tokensMatch(a, b string) bool {
	if a == "" || len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
