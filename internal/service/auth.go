package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/target/seclab-api/internal/core"
	domainauth "github.com/target/seclab-api/internal/domain/auth"
	"github.com/target/seclab-api/internal/domain/model"
	apperrors "github.com/target/seclab-api/internal/errors"
	"github.com/target/seclab-api/internal/observability/metrics"
	"github.com/target/seclab-api/internal/observability/statsd"
	"github.com/target/seclab-api/internal/ports"
)

// tokenBytes is the entropy of a session token before hex encoding.
const tokenBytes = 32

const msgInvalidCredentials = "invalid credentials"

// SessionPolicy controls how sessions are issued.
type SessionPolicy struct {
	// TTL is the session lifetime. Zero means sessions never expire.
	TTL time.Duration
	// SingleSession revokes every earlier session of a user when a new one is issued.
	SingleSession bool
}

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Users    core.UserRepository  // Required
	Sessions ports.SessionStore   // Required
	Hasher   ports.PasswordHasher // Required
	Provider ports.AuthProvider   // Optional: enables SSO login
	Policy   SessionPolicy
	Logger   *slog.Logger
	Metrics  statsd.Sink
	// Now overrides the clock; nil uses time.Now.
	Now func() time.Time
}

// AuthService issues, resolves and revokes sessions. Passwords are verified
// against the user store, and SSO identities are mapped onto existing users.
type AuthService struct {
	users    core.UserRepository
	sessions ports.SessionStore
	hasher   ports.PasswordHasher
	provider ports.AuthProvider
	policy   SessionPolicy
	logger   *slog.Logger
	metrics  statsd.Sink
	now      func() time.Time

	decoyOnce sync.Once
	decoyHash string
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.Users == nil {
		return nil, errors.New("UserRepository is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("SessionStore is required")
	}
	if opts.Hasher == nil {
		return nil, errors.New("PasswordHasher is required")
	}
	if opts.Policy.TTL < 0 {
		return nil, errors.New("session TTL cannot be negative")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &AuthService{
		users:    opts.Users,
		sessions: opts.Sessions,
		hasher:   opts.Hasher,
		provider: opts.Provider,
		policy:   opts.Policy,
		logger:   logger.With("component", "auth_service"),
		metrics:  opts.Metrics,
		now:      now,
	}, nil
}

// SSOEnabled reports whether an identity provider is configured.
func (s *AuthService) SSOEnabled() bool { return s.provider != nil }

// Login verifies a username and password and issues a new session.
// Unknown users and wrong passwords produce the same Unauthenticated error.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*domainauth.Session, error) {
	start := s.now()
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	switch {
	case apperrors.IsNotFound(err):
		// Burn a comparison so unknown users cost the same as wrong passwords.
		_ = s.hasher.Compare(s.decoy(), req.Password)
		s.emitLogin("password", metrics.ResultFailure, start, nil)
		return nil, apperrors.Unauthenticated(msgInvalidCredentials)
	case err != nil:
		s.emitLogin("password", metrics.ResultError, start, err)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "login failed")
	}

	if cmpErr := s.hasher.Compare(user.PasswordHash, req.Password); cmpErr != nil {
		s.emitLogin("password", metrics.ResultFailure, start, nil)
		return nil, apperrors.Unauthenticated(msgInvalidCredentials)
	}

	sess, err := s.Issue(ctx, user.Principal(), time.Time{})
	if err != nil {
		s.emitLogin("password", metrics.ResultError, start, err)
		return nil, err
	}
	s.emitLogin("password", metrics.ResultSuccess, start, nil)
	s.logger.InfoContext(ctx, "login succeeded", "user_id", user.ID)
	return sess, nil
}

// Issue mints a session for p. A non-zero notAfter caps the policy expiry.
// With SingleSession enabled the new session atomically replaces every
// earlier session of p.
func (s *AuthService) Issue(ctx context.Context, p *domainauth.Principal, notAfter time.Time) (*domainauth.Session, error) {
	if p == nil || p.ID == 0 {
		return nil, errors.New("principal is required")
	}

	token, err := generateToken()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "issue session")
	}

	now := s.now().UTC()
	sess := domainauth.Session{
		Token:      token,
		UserID:     p.ID,
		Username:   p.Username,
		Role:       p.Role,
		Department: p.Department,
		IssuedAt:   now,
	}
	if s.policy.TTL > 0 {
		sess.ExpiresAt = now.Add(s.policy.TTL)
	}
	if !notAfter.IsZero() && (sess.ExpiresAt.IsZero() || notAfter.Before(sess.ExpiresAt)) {
		sess.ExpiresAt = notAfter.UTC()
	}

	if s.policy.SingleSession {
		n, replaceErr := s.sessions.ReplaceUserSessions(ctx, sess)
		if replaceErr != nil {
			return nil, apperrors.Wrap(fmt.Errorf("replace sessions: %w", replaceErr), apperrors.ErrCodeInternal, "issue session")
		}
		metrics.EmitSessionEvent(s.metrics, "replaced", n)
	} else if saveErr := s.sessions.Save(ctx, sess); saveErr != nil {
		return nil, apperrors.Wrap(fmt.Errorf("save session: %w", saveErr), apperrors.ErrCodeInternal, "issue session")
	}
	metrics.EmitSessionEvent(s.metrics, "issued", 1)
	return &sess, nil
}

// Resolve maps a token to its principal. Unknown and expired tokens are
// Unauthenticated; an expired session is deleted on the way out.
func (s *AuthService) Resolve(ctx context.Context, token string) (*domainauth.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.Unauthenticated("authentication required")
	}

	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, domainauth.ErrSessionNotFound) {
			return nil, apperrors.Unauthenticated("invalid or expired session")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "resolve session")
	}

	if sess.ExpiredAt(s.now()) {
		if delErr := s.sessions.Delete(ctx, token); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete expired session", "user_id", sess.UserID, "error", delErr)
		} else {
			metrics.EmitSessionEvent(s.metrics, "expired", 1)
		}
		return nil, apperrors.Unauthenticated("invalid or expired session")
	}

	return sess.Principal(), nil
}

// ResolveUserHeader maps a raw numeric user id to a principal by looking the user up.
// It backs the trusted-header identity mode and never consults the session store.
func (s *AuthService) ResolveUserHeader(ctx context.Context, raw string) (*domainauth.Principal, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return nil, apperrors.Unauthenticated("invalid user header")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Unauthenticated("unknown user")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "resolve user header")
	}
	return user.Principal(), nil
}

// Revoke deletes the session bound to token. Revoking an unknown token is not an error.
func (s *AuthService) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "revoke session")
	}
	metrics.EmitSessionEvent(s.metrics, "revoked", 1)
	return nil
}

// RevokeUser deletes every session of userID and reports how many were removed.
func (s *AuthService) RevokeUser(ctx context.Context, userID int64) (int, error) {
	if userID <= 0 {
		return 0, apperrors.Validation("user id must be positive")
	}
	n, err := s.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "revoke user sessions")
	}
	metrics.EmitSessionEvent(s.metrics, "revoked", n)
	return n, nil
}

// BeginLoginResult contains the result of beginning a login flow.
type BeginLoginResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginLogin initiates an SSO flow and returns the provider auth URL with state and nonce.
func (s *AuthService) BeginLogin(ctx context.Context, redirectURL string) (*BeginLoginResult, error) {
	if s.provider == nil {
		return nil, apperrors.NotFound("sso login is not enabled")
	}
	if redirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	authURL, state, nonce, err := s.provider.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
	if err != nil {
		return nil, fmt.Errorf("begin auth flow: %w", err)
	}

	return &BeginLoginResult{
		AuthURL: authURL,
		State:   state,
		Nonce:   nonce,
	}, nil
}

// CompleteLoginInput groups parameters for completing a login flow.
type CompleteLoginInput struct {
	Code  string
	State string
	Nonce string
}

// CompleteLogin exchanges the authorization code for an identity, maps its
// email onto an existing user and issues a session no longer-lived than the IdP token.
func (s *AuthService) CompleteLogin(ctx context.Context, input CompleteLoginInput) (*domainauth.Session, error) {
	if s.provider == nil {
		return nil, apperrors.NotFound("sso login is not enabled")
	}
	if input.Code == "" {
		return nil, apperrors.Validation("authorization code is required")
	}
	if input.State == "" {
		return nil, apperrors.Validation("state parameter is required")
	}
	if input.Nonce == "" {
		return nil, apperrors.Validation("nonce parameter is required")
	}

	start := s.now()
	identity, err := s.provider.Exchange(ctx, ports.ExchangeInput{
		Code:  input.Code,
		State: input.State,
		Nonce: input.Nonce,
	})
	if err != nil {
		s.emitLogin("sso", metrics.ResultFailure, start, nil)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUnauthenticated, "sso exchange failed")
	}

	email, err := model.NormalizeEmail(identity.Email)
	if err != nil {
		s.emitLogin("sso", metrics.ResultFailure, start, nil)
		return nil, apperrors.Unauthenticated("identity has no usable email")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.emitLogin("sso", metrics.ResultFailure, start, nil)
			return nil, apperrors.Unauthenticated("no account for identity")
		}
		s.emitLogin("sso", metrics.ResultError, start, err)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "complete login")
	}

	sess, err := s.Issue(ctx, user.Principal(), identity.ExpiresAt)
	if err != nil {
		s.emitLogin("sso", metrics.ResultError, start, err)
		return nil, err
	}
	s.emitLogin("sso", metrics.ResultSuccess, start, nil)
	s.logger.InfoContext(ctx, "sso login succeeded", "user_id", user.ID, "subject", identity.Subject)
	return sess, nil
}

func (s *AuthService) emitLogin(method, result string, start time.Time, err error) {
	metrics.EmitLogin(s.metrics, metrics.LoginMetric{
		Method:   method,
		Result:   result,
		Duration: s.now().Sub(start),
		Err:      err,
	})
}

// decoy returns a hash that no password matches, computed once.
func (s *AuthService) decoy() string {
	s.decoyOnce.Do(func() {
		buf := make([]byte, 16)
		_, _ = rand.Read(buf)
		h, err := s.hasher.Hash(hex.EncodeToString(buf))
		if err != nil {
			s.logger.Warn("decoy hash unavailable", "error", err)
			return
		}
		s.decoyHash = h
	})
	return s.decoyHash
}

// generateToken returns 32 random bytes as 64 lowercase hex characters.
func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
