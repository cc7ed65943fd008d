// Package auth holds hand-written doubles for the auth ports, for tests that
// want deterministic IdP behavior or cheap password hashing.
package auth

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	domainauth "github.com/target/seclab-api/internal/domain/auth"
	"github.com/target/seclab-api/internal/ports"
)

var (
	_ ports.AuthProvider   = (*MockAuthProvider)(nil)
	_ ports.PasswordHasher = PlainHasher{}
)

// MockAuthURL is returned by Begin unless BeginFunc overrides it.
const MockAuthURL = "https://mock-idp/auth"

// MockAuthProvider issues "state-N"/"nonce-N" pairs and returns DefaultUser on exchange.
// Exchanges records every input Exchange received.
type MockAuthProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error)
	DefaultUser  domainauth.Identity

	mu        sync.Mutex
	begins    int
	Exchanges []ports.ExchangeInput
}

// NewMockAuthProvider signs everyone in as alice@example.com.
func NewMockAuthProvider() *MockAuthProvider {
	return &MockAuthProvider{
		DefaultUser: domainauth.Identity{Subject: "mock-user-1", Email: "alice@example.com"},
	}
}

func (m *MockAuthProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}
	m.mu.Lock()
	m.begins++
	n := strconv.Itoa(m.begins)
	m.mu.Unlock()
	return MockAuthURL, "state-" + n, "nonce-" + n, nil
}

func (m *MockAuthProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	m.mu.Lock()
	m.Exchanges = append(m.Exchanges, in)
	m.mu.Unlock()

	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	id := m.DefaultUser
	if id.Subject == "" {
		id = domainauth.Identity{Subject: "mock-user-1", Email: "alice@example.com"}
	}
	id.ExpiresAt = time.Now().Add(time.Hour)
	return id, nil
}

// ErrMismatch is returned by PlainHasher.Compare on a wrong password.
var ErrMismatch = errors.New("password mismatch")

// PlainHasher prefixes passwords with "plain:" so tests skip bcrypt cost.
type PlainHasher struct{}

func (PlainHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	return "plain:" + password, nil
}

func (PlainHasher) Compare(hash, password string) error {
	if hash != "plain:"+password {
		return ErrMismatch
	}
	return nil
}
