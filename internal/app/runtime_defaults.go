package app

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ephemeralSecret is a secret the server may invent at startup. social.secret
// is never one of them: shared account passwords are derived from it.
type ephemeralSecret struct {
	key   string
	bytes int
	field func(*Config) *string
}

var ephemeralSecrets = []ephemeralSecret{
	{key: "auth.jwt.secret", bytes: 48, field: func(c *Config) *string { return &c.Auth.JWT.Secret }},
	{key: "auth.oidc.state_key", bytes: 32, field: func(c *Config) *string { return &c.Auth.OIDC.StateKey }},
}

// ApplyRuntimeDefaults fills every missing ephemeral secret with random hex
// and returns the keys it generated. Member sessions and pending sign-ins are
// lost on restart while a generated secret is in use.
func ApplyRuntimeDefaults(cfg *Config) ([]string, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	var generated []string
	for _, s := range ephemeralSecrets {
		field := s.field(cfg)
		if strings.TrimSpace(*field) != "" {
			continue
		}
		value, err := randomHex(s.bytes)
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", s.key, err)
		}
		*field = value
		generated = append(generated, s.key)
	}
	return generated, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
