package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModePassword authenticates with username and password only.
	AuthModePassword AuthMode = "password"
	// AuthModeOAuth additionally enables OIDC single sign-on.
	AuthModeOAuth AuthMode = "oauth"
)

const (
	minBcryptCost = 4
	maxBcryptCost = 31
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "password", "oauth":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: password, oauth)", v)
	}
}

// OAuthConfig contains OAuth/OIDC configuration.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"seclab"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	// DevEmail signs every SSO login in as this address without an IdP. Requires DEV=true.
	DevEmail string `env:"DEV_EMAIL"`
}

// AuthConfig groups authentication and session configuration.
type AuthConfig struct {
	// Mode determines whether SSO is enabled alongside password login.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"password"`

	// OAuth configuration (used when Mode=oauth).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// SessionTTL is the session lifetime. Zero disables expiry.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"1h"`

	// SessionReapInterval, when positive, periodically purges expired in-memory sessions.
	// Zero (the default) leaves cleanup to lookups.
	SessionReapInterval time.Duration `env:"SESSION_REAP_INTERVAL" envDefault:"0s"`

	// SingleSession revokes a user's earlier sessions at login.
	SingleSession bool `env:"AUTH_SINGLE_SESSION" envDefault:"true"`

	// TrustUserHeader accepts X-User-Id as identity. Development only.
	TrustUserHeader bool `env:"AUTH_TRUST_USER_HEADER" envDefault:"false"`

	// BcryptCost is the work factor for new password hashes.
	BcryptCost int `env:"AUTH_BCRYPT_COST" envDefault:"12"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	if a.SessionTTL < 0 {
		a.SessionTTL = 0
	}
	if a.SessionReapInterval < 0 {
		a.SessionReapInterval = 0
	}
	a.BcryptCost = min(max(a.BcryptCost, minBcryptCost), maxBcryptCost)
	a.OAuth.DiscoveryURL = strings.TrimSpace(a.OAuth.DiscoveryURL)
	a.OAuth.DevEmail = strings.TrimSpace(a.OAuth.DevEmail)
}

// SSOEnabled reports whether the OIDC routes should be registered.
func (a *AuthConfig) SSOEnabled() bool { return a.Mode == AuthModeOAuth }
