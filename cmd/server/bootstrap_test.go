package main

import (
	"bytes"
	"context"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/rsvp/internal/app"
	"github.com/charlesng35/rsvp/internal/models"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()
	return &app.Config{
		Server: app.ServerConfig{
			Port:      8000,
			BaseURL:   "http://localhost:8000",
			RateLimit: app.RateLimitConfig{Requests: 100, Window: time.Minute},
		},
		Database: app.DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "rsvp.sqlite"),
		},
		Auth: app.AuthConfig{
			JWT:        app.JWTSettings{Secret: "bootstrap-secret", Issuer: "rsvp", TTL: time.Hour},
			PrivateApp: true,
		},
		Events: app.EventsConfig{DefaultDuration: 2 * time.Hour, Timezone: "UTC"},
		Maintenance: app.MaintenanceConfig{
			ArchiveSchedule:           "@hourly",
			NotificationRetentionDays: 30,
			AuditRetentionDays:        30,
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}
}

func TestBootstrapRuntimeServesReadiness(t *testing.T) {
	cfg := testConfig(t)

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	require.NotNil(t, stack.Services)
	require.Nil(t, stack.Redis)
	require.NotNil(t, stack.RateStore)

	var anon models.User
	require.NoError(t, stack.DB.Where("email = ?", models.AnonymousEmail).First(&anon).Error)

	rec := httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "database")
	require.Contains(t, rec.Body.String(), "maintenance")
	require.Contains(t, rec.Body.String(), "cache")

	rec = httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/login", nil))
	require.Equal(t, http.StatusNotFound, rec.Code, "oidc is disabled")
}

func TestBootstrapRuntimeRejectsBadTimezone(t *testing.T) {
	cfg := testConfig(t)
	cfg.Events.Timezone = "Mars/Olympus"

	_, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "events.timezone")
}

func TestBootstrapRuntimeWithOIDC(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.OIDC = app.OIDCSettings{
		Enabled:      true,
		Issuer:       "https://accounts.example.com",
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8000/api/auth/callback",
		Scopes:       []string{"openid", "email"},
		StateKey:     "00112233445566778899aabbccddeeff",
	}

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	stack.Shutdown(context.Background(), zap.NewNop())
}

func TestEnsureSecretsPresent(t *testing.T) {
	require.Error(t, ensureSecretsPresent(nil))

	cfg := &app.Config{}
	require.ErrorIs(t, ensureSecretsPresent(cfg), app.ErrSecretMissing)

	cfg.Auth.JWT.Secret = "  secret  "
	require.NoError(t, ensureSecretsPresent(cfg))
	require.Equal(t, "secret", cfg.Auth.JWT.Secret)

	cfg.Auth.OIDC.Enabled = true
	cfg.Auth.OIDC.StateKey = "abcd"
	require.ErrorIs(t, ensureSecretsPresent(cfg), app.ErrKeySize)

	cfg.Auth.OIDC.StateKey = "00112233445566778899aabbccddeeff"
	require.NoError(t, ensureSecretsPresent(cfg))
}

func TestLoadApplicationConfigMissingPath(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

func TestRunHelp(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"-h"}, &out)
	require.ErrorIs(t, err, flag.ErrHelp)
	require.Contains(t, out.String(), "-check-config")
}

func TestRunCheckConfig(t *testing.T) {
	dir := t.TempDir()
	yaml := `server:
  port: 9090
events:
  timezone: UTC
social:
  platforms:
    - name: Climbing gym
      type: account
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	var out bytes.Buffer
	err := run(context.Background(), []string{"-check-config", "-config", dir}, &out)
	require.ErrorIs(t, err, app.ErrSecretMissing)
	require.ErrorContains(t, err, "social.secret")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml+"  secret: club-secret\n"), 0o600))
	out.Reset()
	require.NoError(t, run(context.Background(), []string{"-check-config", "-config", filepath.Join(dir, "config.yaml")}, &out))
	require.Contains(t, out.String(), "config ok: port 9090, database sqlite, timezone UTC")
	require.Contains(t, out.String(), "1 social platforms")
	require.Contains(t, out.String(), "generated at startup: auth.jwt.secret, auth.oidc.state_key")
}
