package app

import (
	"strings"
	"time"

	"github.com/charlesng35/rsvp/internal/auth"
)

const defaultStateTTL = 10 * time.Minute

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// OIDCConfig converts the SSO settings into the login flow configuration.
func (c AuthConfig) OIDCConfig() auth.OIDCConfig {
	scopes := make([]string, 0, len(c.OIDC.Scopes))
	for _, s := range c.OIDC.Scopes {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return auth.OIDCConfig{
		Issuer:       strings.TrimSpace(c.OIDC.Issuer),
		ClientID:     strings.TrimSpace(c.OIDC.ClientID),
		ClientSecret: c.OIDC.ClientSecret,
		RedirectURL:  strings.TrimSpace(c.OIDC.RedirectURL),
		Scopes:       scopes,
	}
}

// StateCodec builds the codec protecting the login round trip.
func (c AuthConfig) StateCodec() (*auth.StateCodec, error) {
	key, err := c.StateKey()
	if err != nil {
		return nil, err
	}
	ttl := c.OIDC.StateTTL
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return auth.NewStateCodec(key, ttl, nil)
}
