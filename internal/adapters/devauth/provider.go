package devauth

// Package devauth provides a config-driven AuthProvider that stands in for an
// identity provider during local development.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	domainauth "github.com/target/seclab-api/internal/domain/auth"
	"github.com/target/seclab-api/internal/ports"
)

const (
	defaultSessionDuration = 8 * time.Hour
	randomLength           = 24
)

// Config controls the dev auth provider behavior.
// Email is required; Subject defaults to "dev:"+Email.
type Config struct {
	Subject         string
	Email           string
	CallbackPath    string        // default /auth/callback
	SessionDuration time.Duration // default 8h when zero
}

// Provider implements ports.AuthProvider for local development.
// Begin redirects straight back to the callback with a locally generated state,
// and Exchange ignores the code and returns the configured identity.
type Provider struct {
	mu              sync.Mutex
	identity        domainauth.Identity
	callbackPath    string
	sessionDuration time.Duration
	now             func() time.Time
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	email := strings.TrimSpace(cfg.Email)
	if email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	subject := cfg.Subject
	if subject == "" {
		subject = "dev:" + email
	}
	dur := cfg.SessionDuration
	if dur <= 0 {
		dur = defaultSessionDuration
	}
	callback := cfg.CallbackPath
	if callback == "" {
		callback = "/auth/callback"
	}

	p := &Provider{
		callbackPath:    callback,
		sessionDuration: dur,
		now:             time.Now,
	}
	p.identity = domainauth.Identity{
		Subject:   subject,
		Email:     email,
		ExpiresAt: p.now().Add(dur),
	}
	return p, nil
}

// Begin returns a local callback URL and cryptographically secure state and nonce.
func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
	state, err := randomString(randomLength)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(randomLength)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	q := url.Values{"code": {"dev"}, "state": {state}}
	return p.callbackPath + "?" + q.Encode(), state, nonce, nil
}

// Exchange returns the dev identity. State is validated by the caller.
func (p *Provider) Exchange(_ context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	if in.Code == "" {
		return domainauth.Identity{}, errors.New("dev auth: code is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Refresh expiry so long-running dev servers keep issuing usable identities.
	if p.identity.ExpiresAt.Sub(p.now()) < 5*time.Minute {
		p.identity.ExpiresAt = p.now().Add(p.sessionDuration)
	}
	return p.identity, nil
}

func randomString(n int) (string, error) {
	b := make([]byte, base64.RawURLEncoding.DecodedLen(n)+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
