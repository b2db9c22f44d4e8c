package app

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSecretMissing marks a secret that must be configured.
	ErrSecretMissing = errors.New("secret is not configured")
	// ErrKeySize marks a key that does not decode to an AES key size.
	ErrKeySize = errors.New("key must decode to 16, 24 or 32 bytes")
)

// SecretError ties a secret problem to the configuration key that caused it.
type SecretError struct {
	Key string
	Err error
}

func (e *SecretError) Error() string {
	return e.Key + ": " + e.Err.Error()
}

func (e *SecretError) Unwrap() error {
	return e.Err
}

// keyDecoders are tried in order. Generated keys are hex.
var keyDecoders = []func(string) ([]byte, error){
	func(v string) ([]byte, error) {
		if len(v)%2 != 0 {
			return nil, hex.ErrLength
		}
		return hex.DecodeString(v)
	},
	base64.StdEncoding.DecodeString,
	base64.RawStdEncoding.DecodeString,
	base64.RawURLEncoding.DecodeString,
}

// DecodeKey turns a configured key into raw bytes. Hex and base64 forms are
// decoded; anything else is used as-is.
func DecodeKey(value string) ([]byte, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil, ErrSecretMissing
	}
	for _, decode := range keyDecoders {
		if raw, err := decode(v); err == nil {
			return raw, nil
		}
	}
	return []byte(v), nil
}

// StateKey decodes auth.oidc.state_key for the login state codec.
func (c AuthConfig) StateKey() ([]byte, error) {
	key, err := DecodeKey(c.OIDC.StateKey)
	if err != nil {
		return nil, &SecretError{Key: "auth.oidc.state_key", Err: err}
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	default:
		return nil, &SecretError{Key: "auth.oidc.state_key", Err: fmt.Errorf("%w (got %d)", ErrKeySize, len(key))}
	}
}

// CheckSecrets reports the first secret the server cannot run without.
// Social account passwords are derived from social.secret, so a missing
// secret is only fatal once an account platform is configured.
func (c *Config) CheckSecrets() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Auth.JWT.Secret) == "" {
		return &SecretError{Key: "auth.jwt.secret", Err: ErrSecretMissing}
	}
	if c.Auth.OIDC.Enabled {
		if _, err := c.Auth.StateKey(); err != nil {
			return err
		}
	}
	if strings.TrimSpace(c.Social.Secret) == "" {
		for _, p := range c.Social.Platforms {
			if strings.EqualFold(p.Type, SocialAccount) {
				return &SecretError{Key: "social.secret", Err: fmt.Errorf("%w: platform %q is an account", ErrSecretMissing, p.Name)}
			}
		}
	}
	return nil
}
