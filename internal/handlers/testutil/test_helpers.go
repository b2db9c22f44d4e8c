package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/rsvp/internal/api"
	"github.com/charlesng35/rsvp/internal/app"
	iauth "github.com/charlesng35/rsvp/internal/auth"
	sharedtestutil "github.com/charlesng35/rsvp/internal/database/testutil"
	"github.com/charlesng35/rsvp/internal/middleware"
	"github.com/charlesng35/rsvp/internal/models"
	"github.com/charlesng35/rsvp/internal/monitoring"
	"github.com/charlesng35/rsvp/internal/monitoring/checks"
	"github.com/charlesng35/rsvp/internal/realtime"
	"github.com/charlesng35/rsvp/internal/security"
	"github.com/charlesng35/rsvp/internal/services"
	"github.com/charlesng35/rsvp/pkg/mail"
	"github.com/charlesng35/rsvp/pkg/response"
)

// BotToken authenticates as the anonymous user in every Env.
const BotToken = "test-bot-token"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T          *testing.T
	DB         *gorm.DB
	Router     *gin.Engine
	JWT        *iauth.JWTService
	Config     *app.Config
	Services   *services.Container
	Hub        *realtime.Hub
	Mailer     *RecordingMailer
	csrfToken  string
	csrfCookie *http.Cookie
}

// EnvOption tweaks the configuration before the router is built.
type EnvOption func(cfg *app.Config)

// WithPublicApp lets members in without the approved role.
func WithPublicApp() EnvOption {
	return func(cfg *app.Config) { cfg.Auth.PrivateApp = false }
}

// WithSocial configures social platforms and the password secret.
func WithSocial(secret string, platforms ...app.SocialPlatform) EnvOption {
	return func(cfg *app.Config) {
		cfg.Social.Secret = secret
		cfg.Social.Platforms = platforms
	}
}

// NewEnv provisions a fresh handler test environment with migrations and seed data applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithSeedData())

	jwtSecret := "test-suite-super-secret-key-32-bytes!!"
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         jwtSecret,
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	cfg := &app.Config{
		Server: app.ServerConfig{
			BaseURL:   "https://rsvp.test",
			CSRF:      app.CSRFConfig{Enabled: true},
			RateLimit: app.RateLimitConfig{Requests: 10000, Window: time.Minute},
		},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: jwtSecret,
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
			PrivateApp: true,
			DevLogin:   true,
			BotToken:   BotToken,
		},
		Events: app.EventsConfig{DefaultDuration: 2 * time.Hour, Timezone: "UTC"},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	loc, err := cfg.Events.Location()
	require.NoError(t, err)

	hub := realtime.NewHub()
	t.Cleanup(hub.Close)
	mailer := &RecordingMailer{}

	container, err := services.NewContainer(db, services.ContainerConfig{
		Hub:             hub,
		Mailer:          mailer,
		BaseURL:         cfg.Server.BaseURL,
		Location:        loc,
		DefaultDuration: cfg.Events.DefaultDuration,
		SocialPlatforms: cfg.Social.ServicePlatforms(),
		SocialSecret:    cfg.Social.Secret,
	})
	require.NoError(t, err)

	health := monitoring.NewHealthManager(time.Second)
	health.RegisterLiveness(checks.Realtime(hub))
	health.RegisterReadiness(checks.Database(db))

	router, err := api.NewRouter(api.Dependencies{
		Config:    cfg,
		JWT:       jwtSvc,
		Services:  container,
		Hub:       hub,
		Health:    health,
		Security:  security.NewAuditService(db, cfg),
		RateStore: middleware.NewMemoryRateStore(),
	})
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Router:   router,
		JWT:      jwtSvc,
		Config:   cfg,
		Services: container,
		Hub:      hub,
		Mailer:   mailer,
	}
}

// CreateUser inserts an active user carrying roles.
func (e *Env) CreateUser(email string, roles ...string) *models.User {
	e.T.Helper()
	return sharedtestutil.SeedMember(e.T, e.DB, strings.ToLower(email), roles...)
}

// CreateMember inserts an approved user.
func (e *Env) CreateMember(email string) *models.User {
	e.T.Helper()
	return e.CreateUser(email, models.RoleApprovedUser)
}

// CreateAdmin inserts an approved admin.
func (e *Env) CreateAdmin(email string) *models.User {
	e.T.Helper()
	return e.CreateUser(email, models.RoleAdmin, models.RoleApprovedUser)
}

// Token issues an access token for user.
func (e *Env) Token(user *models.User) string {
	e.T.Helper()
	token, err := e.JWT.GenerateAccessToken(iauth.MemberToken(user))
	require.NoError(e.T, err)
	return token
}

// RecordingMailer keeps every message it is asked to send.
type RecordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

// Send implements mail.Mailer.
func (m *RecordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// Messages returns a copy of the sent messages.
func (m *RecordingMailer) Messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

// Expect executes a request, asserts the status and decodes the envelope.
func (e *Env) Expect(method, path string, body any, token string, status int) APIResponse {
	e.T.Helper()
	w := e.Request(method, path, body, token)
	require.Equal(e.T, status, w.Code, w.Body.String())
	return DecodeResponse(e.T, w)
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()
	return e.request(method, path, body, token, false)
}

func (e *Env) request(method, path string, body any, token string, skipCSRF bool) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)
	req.RemoteAddr = "192.0.2.1:1234"

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if !skipCSRF && requiresCSRFAttestation(method) {
		e.ensureCSRFToken()
		if e.csrfCookie != nil {
			req.AddCookie(e.csrfCookie)
		}
		if e.csrfToken != "" {
			req.Header.Set(middleware.CSRFHeaderName, e.csrfToken)
		}
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)

	e.captureCSRF(w.Result())
	return w
}

func (e *Env) ensureCSRFToken() {
	if e.csrfToken != "" && e.csrfCookie != nil {
		return
	}
	resp := e.request(http.MethodGet, "/health", nil, "", true)
	require.Equal(e.T, http.StatusOK, resp.Code, resp.Body.String())
}

func (e *Env) captureCSRF(resp *http.Response) {
	if resp == nil {
		return
	}
	defer resp.Body.Close()

	if token := resp.Header.Get(middleware.CSRFHeaderName); token != "" {
		e.csrfToken = token
	}
	for _, c := range resp.Cookies() {
		if c.Name == middleware.CSRFCookieName {
			// Clone to avoid unintended mutations between tests
			e.csrfCookie = &http.Cookie{
				Name:       c.Name,
				Value:      c.Value,
				Path:       c.Path,
				Domain:     c.Domain,
				Expires:    c.Expires,
				Raw:        c.Raw,
				MaxAge:     c.MaxAge,
				Secure:     c.Secure,
				HttpOnly:   c.HttpOnly,
				SameSite:   c.SameSite,
				RawExpires: c.RawExpires,
			}
			break
		}
	}
}

func requiresCSRFAttestation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
