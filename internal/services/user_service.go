package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/rsvp/internal/models"
	apperrors "github.com/charlesng35/rsvp/pkg/errors"
	"github.com/charlesng35/rsvp/pkg/logger"
	"github.com/charlesng35/rsvp/pkg/mail"
)

// UpdateProfileInput enumerates the profile attributes a member may change.
type UpdateProfileInput struct {
	Nick       *string
	UPIID      *string
	BloodGroup *string
	DOB        *time.Time
	HideDOB    *bool
}

// UserServiceConfig wires optional outputs of the UserService.
type UserServiceConfig struct {
	Mailer        mail.Mailer
	Notifications *NotificationService
	BaseURL       string
}

// UserService manages member accounts, roles and approval.
type UserService struct {
	db            *gorm.DB
	audit         *AuditService
	mailer        mail.Mailer
	notifications *NotificationService
	baseURL       string
	now           func() time.Time
	log           *zap.Logger
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, audit *AuditService, cfg UserServiceConfig) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{
		db:            db,
		audit:         audit,
		mailer:        cfg.Mailer,
		notifications: cfg.Notifications,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		now:           time.Now,
		log:           logger.WithModule("users"),
	}, nil
}

// GetByID loads a user by identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// GetByEmail loads a user by case-insensitive email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx = ensureContext(ctx)

	email = normaliseEmail(email)
	if email == "" {
		return nil, ErrUserNotFound
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user by email: %w", err)
	}
	return &user, nil
}

// Anonymous returns the seeded placeholder user.
func (s *UserService) Anonymous(ctx context.Context) (*models.User, error) {
	return s.GetByEmail(ctx, models.AnonymousEmail)
}

// EnsureFromIdentity finds the account for a verified sign-in or creates it.
// The second return value reports whether the account is new.
func (s *UserService) EnsureFromIdentity(ctx context.Context, email, name string) (*models.User, bool, error) {
	ctx = ensureContext(ctx)

	email = normaliseEmail(email)
	if email == "" {
		return nil, false, apperrors.NewBadRequest("email is required")
	}
	if email == models.AnonymousEmail {
		return nil, false, apperrors.ErrForbidden
	}

	now := s.now().UTC()
	user, err := s.GetByEmail(ctx, email)
	switch {
	case err == nil:
		updates := map[string]any{"last_login_at": now}
		if strings.TrimSpace(user.Name) == "" && strings.TrimSpace(name) != "" {
			updates["name"] = strings.TrimSpace(name)
			user.Name = strings.TrimSpace(name)
		}
		if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			return nil, false, fmt.Errorf("user service: record login: %w", err)
		}
		user.LastLoginAt = &now
		return user, false, nil
	case !errors.Is(err, ErrUserNotFound):
		return nil, false, err
	}

	user = &models.User{
		Email:       email,
		Name:        strings.TrimSpace(name),
		IsActive:    true,
		LastLoginAt: &now,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			existing, getErr := s.GetByEmail(ctx, email)
			return existing, false, getErr
		}
		return nil, false, fmt.Errorf("user service: create user: %w", err)
	}

	recordAudit(s.audit, ctx, actorEntry(user, "user.signup", "user", user.ID))
	s.log.Info("user created", zap.String("user_id", user.ID))
	return user, true, nil
}

// ListApproved returns approved members sorted by name, optionally filtered
// by an extra role and by gender.
func (s *UserService) ListApproved(ctx context.Context, role, gender string) ([]models.User, error) {
	return s.listWhere(ctx, func(u *models.User) bool {
		if !u.IsApproved() {
			return false
		}
		if role != "" && !u.HasRole(role) {
			return false
		}
		return gender == "" || strings.EqualFold(u.Gender, gender)
	})
}

// ListPendingApproval returns active members still waiting for approval.
func (s *UserService) ListPendingApproval(ctx context.Context) ([]models.User, error) {
	return s.listWhere(ctx, func(u *models.User) bool {
		return !u.IsApproved() && !u.IsAdmin()
	})
}

// listWhere filters active, non-anonymous users in memory. Roles live in a
// JSON column whose query syntax differs across the supported databases.
func (s *UserService) listWhere(ctx context.Context, keep func(*models.User) bool) ([]models.User, error) {
	ctx = ensureContext(ctx)

	var users []models.User
	if err := s.db.WithContext(ctx).
		Where("is_active = ? AND email <> ?", true, models.AnonymousEmail).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user service: list users: %w", err)
	}

	out := make([]models.User, 0, len(users))
	for i := range users {
		if keep(&users[i]) {
			out = append(out, users[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// Approve grants the approved role and lets the member know.
func (s *UserService) Approve(ctx context.Context, actor *models.User, email string) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !user.AddRoles(models.RoleApprovedUser) {
		return user, nil
	}
	if err := s.db.WithContext(ctx).Model(user).Update("roles", user.Roles).Error; err != nil {
		return nil, fmt.Errorf("user service: approve: %w", err)
	}

	recordAudit(s.audit, ctx, actorEntry(actor, "user.approve", "user", user.ID))

	if s.notifications != nil {
		if _, err := s.notifications.NotifyAccountApproved(ctx, user.ID); err != nil {
			s.log.Warn("approval notification", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	s.sendMail(ctx, mail.Message{
		To:      []string{user.Email},
		Subject: "[RSVP] Your account has been approved",
		Body:    fmt.Sprintf("Hi %s,\n\nYour account has been approved. Sign in at %s\n", user.NickName(), s.baseURL),
	})
	return user, nil
}

// RequestApproval emails every admin about a member waiting for approval.
func (s *UserService) RequestApproval(ctx context.Context, user *models.User) error {
	ctx = ensureContext(ctx)
	if user == nil {
		return nil
	}

	admins, err := s.listWhere(ctx, func(u *models.User) bool { return u.IsAdmin() })
	if err != nil {
		return err
	}
	if len(admins) == 0 {
		s.log.Warn("no admins to approve user", zap.String("user_id", user.ID))
		return nil
	}

	to := make([]string, 0, len(admins))
	for i := range admins {
		to = append(to, admins[i].Email)
	}
	s.sendMail(ctx, mail.Message{
		To:      to,
		Subject: fmt.Sprintf("[RSVP] Approve %s", user.Email),
		Body: fmt.Sprintf("%s <%s> signed up and is waiting for approval.\n\n%s/users/pending\n",
			defaultIfEmpty(user.Name, user.Email), user.Email, s.baseURL),
	})
	return nil
}

// UpdateProfile changes the caller's own profile. Nobody may edit another member's profile.
func (s *UserService) UpdateProfile(ctx context.Context, actor *models.User, id string, input UpdateProfileInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	if actor == nil || actor.ID != id {
		return nil, apperrors.NewForbidden("you can only edit your own profile")
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Nick != nil {
		user.Nick = strings.TrimSpace(*input.Nick)
		updates["nick"] = user.Nick
	}
	if input.UPIID != nil {
		user.UPIID = strings.TrimSpace(*input.UPIID)
		updates["upi_id"] = user.UPIID
	}
	if input.BloodGroup != nil {
		user.BloodGroup = strings.ToUpper(strings.TrimSpace(*input.BloodGroup))
		updates["blood_group"] = user.BloodGroup
	}
	if input.DOB != nil {
		dob := input.DOB.UTC()
		user.DOB = &dob
		updates["dob"] = dob
	}
	if input.HideDOB != nil {
		user.HideDOB = *input.HideDOB
		updates["hide_dob"] = user.HideDOB
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("user service: update profile: %w", err)
	}
	recordAudit(s.audit, ctx, actorEntry(actor, "user.update_profile", "user", user.ID))
	return user, nil
}

// AddRoles grants roles to the listed members, or to every member when all
// is set. It returns how many accounts changed.
func (s *UserService) AddRoles(ctx context.Context, emails []string, all bool, roles []string) (int, error) {
	ctx = ensureContext(ctx)

	roles = normaliseRoles(roles)
	if len(roles) == 0 {
		return 0, apperrors.NewBadRequest("at least one role is required")
	}

	var users []models.User
	query := s.db.WithContext(ctx).Where("email <> ?", models.AnonymousEmail)
	if !all {
		emails = normaliseEmails(emails)
		if len(emails) == 0 {
			return 0, apperrors.NewBadRequest("no users selected")
		}
		query = query.Where("email IN ?", emails)
	}
	if err := query.Find(&users).Error; err != nil {
		return 0, fmt.Errorf("user service: load users: %w", err)
	}
	if !all && len(users) != len(emails) {
		found := make(map[string]struct{}, len(users))
		for i := range users {
			found[users[i].Email] = struct{}{}
		}
		for _, email := range emails {
			if _, ok := found[email]; !ok {
				return 0, ErrUserNotFound.WithMessage(fmt.Sprintf("user %s not found", email))
			}
		}
	}

	changed := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range users {
			if !users[i].AddRoles(roles...) {
				continue
			}
			if err := tx.Model(&users[i]).Update("roles", users[i].Roles).Error; err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("user service: add roles: %w", err)
	}
	return changed, nil
}

func (s *UserService) sendMail(ctx context.Context, msg mail.Message) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Warn("send email", zap.String("subject", msg.Subject), zap.Error(err))
	}
}

func normaliseRoles(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	var out []string
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}
