package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/target/seclab-api/internal/domain/auth"
)

// BeginInput carries inputs for initiating an auth flow.
type BeginInput struct {
	RedirectURL string
}

// AuthProvider initiates and completes an authentication flow against an IdP.
type AuthProvider interface {
	// Begin starts the login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the login flow, verifying state and nonce, and returns the authenticated identity.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.Identity, error)
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// SessionStore persists sessions keyed by token.
// Get returns domainauth.ErrSessionNotFound (possibly wrapped) for unknown tokens.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, token string) (domainauth.Session, error)
	Delete(ctx context.Context, token string) error
	// DeleteByUser removes every session bound to userID and reports how many were removed.
	DeleteByUser(ctx context.Context, userID int64) (int, error)
	// ReplaceUserSessions atomically removes every session of sess.UserID and
	// stores sess, reporting how many sessions were removed.
	ReplaceUserSessions(ctx context.Context, sess domainauth.Session) (int, error)
}

// ExpiredSessionPurger is implemented by session stores that do not expire
// entries on their own.
type ExpiredSessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns nil when password matches hash.
	Compare(hash, password string) error
}
