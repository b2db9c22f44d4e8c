package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/rsvp/internal/models"
	"github.com/charlesng35/rsvp/pkg/crypto"
)

func TestSocialServiceList(t *testing.T) {
	platforms := []SocialPlatform{
		{Name: "Instagram", URL: "https://instagram.com/club", Type: SocialAccount},
		{Name: "Blog", URL: "https://club.example.com"},
	}
	svc := NewSocialService(platforms, "s3cret")

	member := &models.User{Email: "m@example.com", Roles: []string{models.RoleApprovedUser}}
	entries, err := svc.List(member)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Empty(t, entries[0].Password)
	require.Equal(t, SocialPage, entries[1].Type)

	socialAdmin := &models.User{Email: "s@example.com", Roles: []string{models.RoleSocialAdmin}}
	entries, err = svc.List(socialAdmin)
	require.NoError(t, err)

	want, err := crypto.DerivePassword("instagram", "s3cret", 32)
	require.NoError(t, err)
	require.Equal(t, want, entries[0].Password)
	require.Len(t, entries[0].Password, 32)
	require.Empty(t, entries[1].Password)

	noSecret := NewSocialService(platforms, "")
	entries, err = noSecret.List(socialAdmin)
	require.NoError(t, err)
	require.Empty(t, entries[0].Password)
}
