package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/charlesng35/rsvp/pkg/crypto"
)

// ErrOIDCDisabled is returned when login is attempted without a configured provider.
var ErrOIDCDisabled = errors.New("oidc: login disabled")

// OIDCConfig describes the identity provider used for sign in.
type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// OIDCOptions tune network behaviour, mainly for tests.
type OIDCOptions struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Identity is the verified user information returned by the provider.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// PKCEPair represents the verifier/challenge material required for PKCE flows.
type PKCEPair struct {
	Verifier  string
	Challenge string
}

// GeneratePKCE produces a PKCE verifier and associated S256 challenge.
func GeneratePKCE() (PKCEPair, error) {
	verifier, err := crypto.GenerateToken(64)
	if err != nil {
		return PKCEPair{}, fmt.Errorf("pkce: generate verifier: %w", err)
	}

	sum := sha256.Sum256([]byte(verifier))
	return PKCEPair{
		Verifier:  verifier,
		Challenge: base64.RawURLEncoding.EncodeToString(sum[:]),
	}, nil
}

// OIDCLogin drives the authorization code flow with PKCE and nonce checks.
// Provider discovery happens on first use so the server can boot offline.
type OIDCLogin struct {
	cfg   OIDCConfig
	opts  OIDCOptions
	state *StateCodec

	mu       sync.Mutex
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewOIDCLogin validates cfg and returns a login flow bound to state.
func NewOIDCLogin(cfg OIDCConfig, state *StateCodec, opts OIDCOptions) (*OIDCLogin, error) {
	switch {
	case strings.TrimSpace(cfg.Issuer) == "":
		return nil, errors.New("oidc: issuer is required")
	case strings.TrimSpace(cfg.ClientID) == "":
		return nil, errors.New("oidc: client id is required")
	case strings.TrimSpace(cfg.ClientSecret) == "":
		return nil, errors.New("oidc: client secret is required")
	case strings.TrimSpace(cfg.RedirectURL) == "":
		return nil, errors.New("oidc: redirect url is required")
	case state == nil:
		return nil, errors.New("oidc: state codec is required")
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &OIDCLogin{cfg: cfg, opts: opts, state: state}, nil
}

func (l *OIDCLogin) clientContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if l.opts.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, l.opts.HTTPClient)
	}
	return ctx
}

func (l *OIDCLogin) discover(ctx context.Context) (*oauth2.Config, *oidc.IDTokenVerifier, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.oauth != nil {
		return l.oauth, l.verifier, nil
	}

	ctx, cancel := context.WithTimeout(l.clientContext(ctx), l.opts.Timeout)
	defer cancel()

	provider, err := oidc.NewProvider(ctx, l.cfg.Issuer)
	if err != nil {
		return nil, nil, fmt.Errorf("oidc: discovery failed: %w", err)
	}

	l.oauth = &oauth2.Config{
		ClientID:     l.cfg.ClientID,
		ClientSecret: l.cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  l.cfg.RedirectURL,
		Scopes:       l.cfg.Scopes,
	}
	l.verifier = provider.Verifier(&oidc.Config{ClientID: l.cfg.ClientID})
	return l.oauth, l.verifier, nil
}

// Begin returns the provider authorization URL for a new login.
func (l *OIDCLogin) Begin(ctx context.Context, returnURL string) (string, error) {
	oauthCfg, _, err := l.discover(ctx)
	if err != nil {
		return "", err
	}

	pkce, err := GeneratePKCE()
	if err != nil {
		return "", err
	}
	nonce, err := crypto.GenerateToken(24)
	if err != nil {
		return "", fmt.Errorf("oidc: generate nonce: %w", err)
	}

	state, err := l.state.Encode(StatePayload{
		ReturnURL: sanitizeReturnURL(returnURL),
		Nonce:     nonce,
		PKCE:      pkce.Verifier,
	})
	if err != nil {
		return "", err
	}

	return oauthCfg.AuthCodeURL(state,
		oidc.Nonce(nonce),
		oauth2.SetAuthURLParam("code_challenge", pkce.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	), nil
}

// Complete validates the callback request and returns the verified identity
// together with the decoded login state.
func (l *OIDCLogin) Complete(ctx context.Context, r *http.Request) (*Identity, StatePayload, error) {
	if r == nil {
		return nil, StatePayload{}, errors.New("oidc: request is required")
	}
	query := r.URL.Query()
	if errStr := query.Get("error"); errStr != "" {
		return nil, StatePayload{}, fmt.Errorf("oidc: authorization error: %s", errStr)
	}

	state, err := l.state.Decode(query.Get("state"))
	if err != nil {
		return nil, state, err
	}

	code := query.Get("code")
	if code == "" {
		return nil, state, errors.New("oidc: authorization code missing")
	}

	oauthCfg, verifier, err := l.discover(ctx)
	if err != nil {
		return nil, state, err
	}

	tokenCtx, cancel := context.WithTimeout(l.clientContext(ctx), l.opts.Timeout)
	defer cancel()

	token, err := oauthCfg.Exchange(tokenCtx, code, oauth2.SetAuthURLParam("code_verifier", state.PKCE))
	if err != nil {
		return nil, state, fmt.Errorf("oidc: exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, state, errors.New("oidc: id token missing")
	}

	idToken, err := verifier.Verify(tokenCtx, rawIDToken)
	if err != nil {
		return nil, state, fmt.Errorf("oidc: verify id token: %w", err)
	}
	if idToken.Nonce != state.Nonce {
		return nil, state, errors.New("oidc: nonce mismatch")
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified any    `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, state, fmt.Errorf("oidc: decode claims: %w", err)
	}
	if strings.TrimSpace(claims.Email) == "" {
		return nil, state, errors.New("oidc: email claim missing")
	}

	return &Identity{
		Subject:       idToken.Subject,
		Email:         strings.ToLower(strings.TrimSpace(claims.Email)),
		EmailVerified: truthy(claims.EmailVerified),
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, state, nil
}

// sanitizeReturnURL only allows same-site relative paths.
func sanitizeReturnURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return raw
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return strings.EqualFold(val, "true")
	}
	return false
}
