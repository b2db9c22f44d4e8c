package models

import (
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Well-known role names.
const (
	RoleAdmin        = "admin"
	RoleSocialAdmin  = "social-admin"
	RoleApprovedUser = ".approved-user"
)

// AnonymousEmail identifies the placeholder user that owns RSVPs made for
// people without an account.
const (
	AnonymousEmail = "anonymous@example.com"
	AnonymousName  = "Unknown User"
)

// User is a member who can sign in, create events and RSVP.
type User struct {
	BaseModel

	Email      string                      `gorm:"uniqueIndex;not null" json:"email"`
	Name       string                      `json:"name"`
	Nick       string                      `json:"nick,omitempty"`
	Gender     string                      `gorm:"type:varchar(16);index" json:"gender,omitempty"`
	Phone      string                      `json:"-"`
	BloodGroup string                      `gorm:"type:varchar(8)" json:"blood_group,omitempty"`
	UPIID      string                      `gorm:"column:upi_id" json:"upi_id,omitempty"`
	DOB        *time.Time                  `json:"dob,omitempty"`
	HideDOB    bool                        `gorm:"default:false" json:"hide_dob"`
	Roles      datatypes.JSONSlice[string] `json:"roles"`
	IsActive   bool                        `gorm:"default:true" json:"is_active"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// NickName returns the display name preferred in listings.
func (u *User) NickName() string {
	if u == nil {
		return ""
	}
	if nick := strings.TrimSpace(u.Nick); nick != "" {
		return nick
	}
	return u.Name
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the user carries at least one of roles.
func (u *User) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

func (u *User) IsApproved() bool {
	return u.HasRole(RoleApprovedUser)
}

func (u *User) IsAnonymousUser() bool {
	return u != nil && strings.EqualFold(u.Email, AnonymousEmail)
}

// AddRoles merges roles into the user's role list, keeping it sorted and
// free of duplicates. It reports whether anything changed.
func (u *User) AddRoles(roles ...string) bool {
	set := make(map[string]struct{}, len(u.Roles)+len(roles))
	for _, r := range u.Roles {
		set[r] = struct{}{}
	}
	changed := false
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := set[r]; !ok {
			set[r] = struct{}{}
			changed = true
		}
	}
	if !changed {
		return false
	}

	merged := make([]string, 0, len(set))
	for r := range set {
		merged = append(merged, r)
	}
	sort.Strings(merged)
	u.Roles = merged
	return true
}
