package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/rsvp/internal/app"
	"github.com/charlesng35/rsvp/internal/models"
)

// CheckStatus captures the outcome of a security audit check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

const (
	minJWTSecretLength  = 32
	goodJWTSecretLength = 48
	minBotTokenLength   = 24
	maxAccessTokenTTL   = 30 * 24 * time.Hour
)

// Check contains the result of a single audit verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a simple status summary.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// Failed reports whether any check failed outright.
func (r Result) Failed() bool {
	return r.Summary[string(StatusFail)] > 0
}

// AuditService reviews the deployment's configuration and membership for
// settings that leave the community exposed.
type AuditService struct {
	db  *gorm.DB
	cfg *app.Config
	now func() time.Time
}

// NewAuditService constructs the audit service. Missing inputs degrade the
// affected checks to warnings.
func NewAuditService(db *gorm.DB, cfg *app.Config) *AuditService {
	return &AuditService{
		db:  db,
		cfg: cfg,
		now: time.Now,
	}
}

// WithClock overrides the clock used in results (primarily for testing).
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run executes all audit checks and returns their outcome.
func (s *AuditService) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	checks := []Check{
		s.checkAdminPresent(ctx),
		s.checkJWTSecret(),
		s.checkAccessTokenTTL(),
		s.checkDevLogin(),
		s.checkBotToken(),
		s.checkApprovalMail(),
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}

	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{
		CheckedAt: s.now().UTC(),
		Checks:    checks,
		Summary:   summary,
	}
}

func (s *AuditService) missingConfig(id string) Check {
	return Check{
		ID:          id,
		Status:      StatusWarn,
		Message:     "Configuration not loaded, check skipped.",
		Remediation: "Load configuration before running the security audit.",
	}
}

func (s *AuditService) checkAdminPresent(ctx context.Context) Check {
	const id = "admin_present"
	if s.db == nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Database unavailable, unable to confirm an admin exists.",
			Remediation: "Ensure database connectivity before running the audit.",
		}
	}

	// Roles live in a JSON column, so filter in Go to stay portable across drivers.
	var users []models.User
	if err := s.db.WithContext(ctx).
		Select("id", "email", "roles", "is_active").
		Where("email <> ?", models.AnonymousEmail).
		Find(&users).Error; err != nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Could not load members: %v", err),
			Remediation: "Retry after resolving database errors.",
		}
	}

	admins := 0
	for i := range users {
		if users[i].IsActive && users[i].IsAdmin() {
			admins++
		}
	}

	if admins == 0 {
		status := StatusWarn
		if s.cfg != nil && s.cfg.Auth.PrivateApp {
			status = StatusFail
		}
		return Check{
			ID:          id,
			Status:      status,
			Message:     "No active admin found; nobody can approve new members.",
			Remediation: "Grant the admin role with: rsvpctl add-role --roles admin --users you@example.com",
			Details:     map[string]any{"members": len(users)},
		}
	}

	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: fmt.Sprintf("%d active admin(s).", admins),
		Details: map[string]any{"admins": admins},
	}
}

func (s *AuditService) checkJWTSecret() Check {
	const id = "jwt_secret_strength"
	if s.cfg == nil {
		return s.missingConfig(id)
	}

	length := len(strings.TrimSpace(s.cfg.Auth.JWT.Secret))

	switch {
	case length == 0:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "Missing JWT signing secret.",
			Remediation: fmt.Sprintf("Provide a random signing secret of at least %d bytes.", minJWTSecretLength),
		}
	case length < minJWTSecretLength:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			Remediation: fmt.Sprintf("Use a randomly generated secret of at least %d bytes.", minJWTSecretLength),
		}
	case length < goodJWTSecretLength:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider increasing to %d+ bytes.", length, goodJWTSecretLength),
			Remediation: "Increase the length of RSVP_AUTH_JWT_SECRET.",
			Details:     map[string]any{"length": length},
		}
	default:
		return Check{
			ID:      id,
			Status:  StatusPass,
			Message: fmt.Sprintf("JWT signing secret length is %d bytes.", length),
			Details: map[string]any{"length": length},
		}
	}
}

func (s *AuditService) checkAccessTokenTTL() Check {
	const id = "access_token_ttl"
	if s.cfg == nil {
		return s.missingConfig(id)
	}

	ttl := s.cfg.Auth.JWT.TTL
	if ttl <= 0 {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Access token TTL is not configured; using default duration.",
			Remediation: "Set RSVP_AUTH_JWT_ACCESS_TOKEN_TTL to control session lifetime.",
		}
	}
	if ttl > maxAccessTokenTTL {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Access token TTL (%s) exceeds recommended maximum (%s).", ttl, maxAccessTokenTTL),
			Remediation: "Reduce the access token TTL to limit credential exposure.",
			Details:     map[string]any{"ttl": ttl.String()},
		}
	}

	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: fmt.Sprintf("Access token TTL is %s.", ttl),
		Details: map[string]any{"ttl": ttl.String()},
	}
}

func (s *AuditService) checkDevLogin() Check {
	const id = "dev_login_disabled"
	if s.cfg == nil {
		return s.missingConfig(id)
	}

	if !s.cfg.Auth.DevLogin {
		return Check{ID: id, Status: StatusPass, Message: "Password-less development login is off."}
	}

	// Anyone can sign in as anyone through dev login.
	status := StatusWarn
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(s.cfg.Server.BaseURL)), "https://") {
		status = StatusFail
	}
	return Check{
		ID:          id,
		Status:      status,
		Message:     "Development login is enabled; any email can sign in without a password.",
		Remediation: "Set auth.dev_login to false outside local development.",
	}
}

func (s *AuditService) checkBotToken() Check {
	const id = "bot_token_strength"
	if s.cfg == nil {
		return s.missingConfig(id)
	}

	length := len(strings.TrimSpace(s.cfg.Auth.BotToken))
	switch {
	case length == 0:
		return Check{ID: id, Status: StatusPass, Message: "Bot access is disabled."}
	case length < minBotTokenLength:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("Bot token is too short (%d characters).", length),
			Remediation: fmt.Sprintf("Use a random bot token of at least %d characters.", minBotTokenLength),
		}
	default:
		return Check{
			ID:      id,
			Status:  StatusPass,
			Message: "Bot token configured.",
			Details: map[string]any{"length": length},
		}
	}
}

func (s *AuditService) checkApprovalMail() Check {
	const id = "approval_mail"
	if s.cfg == nil {
		return s.missingConfig(id)
	}

	if s.cfg.Auth.PrivateApp && !s.cfg.Email.SMTP.Enabled {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Private app without SMTP; admins are not emailed about pending members and promoted members get no email.",
			Remediation: "Configure email.smtp so approval requests and waitlist promotions are delivered.",
		}
	}

	return Check{ID: id, Status: StatusPass, Message: "Member emails can be delivered."}
}
