package services

import (
	"strings"

	"github.com/charlesng35/rsvp/internal/models"
	"github.com/charlesng35/rsvp/pkg/crypto"
)

// Social platform kinds.
const (
	SocialAccount = "account"
	SocialPage    = "page"

	socialPasswordLength = 32
)

// SocialPlatform is a configured social media presence.
type SocialPlatform struct {
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

// SocialEntry is a platform as shown to one user. Password is only
// filled in for shared accounts and social admins.
type SocialEntry struct {
	SocialPlatform
	Password string `json:"password,omitempty"`
}

// SocialService lists the community's social media accounts and derives
// the shared passwords for those admins who run them.
type SocialService struct {
	platforms []SocialPlatform
	secret    string
}

// NewSocialService constructs a SocialService.
func NewSocialService(platforms []SocialPlatform, secret string) *SocialService {
	return &SocialService{platforms: platforms, secret: secret}
}

// List returns every platform for user.
func (s *SocialService) List(user *models.User) ([]SocialEntry, error) {
	showPasswords := s.secret != "" && user.HasAnyRole(models.RoleAdmin, models.RoleSocialAdmin)

	out := make([]SocialEntry, 0, len(s.platforms))
	for _, p := range s.platforms {
		entry := SocialEntry{SocialPlatform: p}
		if entry.Type == "" {
			entry.Type = SocialPage
		}
		if showPasswords && strings.EqualFold(entry.Type, SocialAccount) {
			password, err := crypto.DerivePassword(strings.ToLower(p.Name), s.secret, socialPasswordLength)
			if err != nil {
				return nil, err
			}
			entry.Password = password
		}
		out = append(out, entry)
	}
	return out, nil
}
