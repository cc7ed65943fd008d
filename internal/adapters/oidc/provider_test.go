package oidc

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/target/seclab-api/internal/ports"
)

const testClientID = "test-client"

// fakeIdP serves discovery, JWKS, token and userinfo endpoints backed by one RSA key.
type fakeIdP struct {
	t        *testing.T
	server   *httptest.Server
	key      *rsa.PrivateKey
	claims   map[string]any
	userinfo map[string]any
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	idp := &fakeIdP{t: t, key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, DiscoveryDocument{
			Issuer:                idp.server.URL,
			AuthorizationEndpoint: idp.server.URL + "/authorize",
			TokenEndpoint:         idp.server.URL + "/token",
			UserinfoEndpoint:      idp.server.URL + "/userinfo",
			JwksURI:               idp.server.URL + "/jwks",
		})
	})
	mux.HandleFunc("GET /jwks", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "k1",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	})
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"access_token": "access-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     idp.sign(),
		})
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, idp.userinfo)
	})
	idp.server = httptest.NewServer(mux)
	t.Cleanup(idp.server.Close)
	return idp
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeIdP) sign() string {
	header, _ := json.Marshal(map[string]string{"alg": "RS256", "kid": "k1", "typ": "JWT"})
	claims := map[string]any{
		"iss": f.server.URL,
		"aud": testClientID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range f.claims {
		claims[k] = v
	}
	payload, _ := json.Marshal(claims)

	signingInput := base64.RawURLEncoding.EncodeToString(header) + "." + base64.RawURLEncoding.EncodeToString(payload)
	digest := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, f.key, crypto.SHA256, digest[:])
	require.NoError(f.t, err)
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig)
}

func (f *fakeIdP) provider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider(context.Background(), ProviderConfig{
		ClientID:     testClientID,
		ClientSecret: "test-secret",
		RedirectURL:  "http://localhost:8080/auth/callback",
		Scope:        "openid profile email",
		DiscoveryURL: f.server.URL + "/.well-known/openid-configuration",
		HTTPClient:   f.server.Client(),
	})
	require.NoError(t, err)
	return p
}

func TestNewProvider_Success(t *testing.T) {
	idp := newFakeIdP(t)
	p := idp.provider(t)

	assert.Equal(t, idp.server.URL+"/authorize", p.oauth.Endpoint.AuthURL)
	assert.Equal(t, idp.server.URL+"/token", p.oauth.Endpoint.TokenURL)
	assert.Equal(t, []string{"openid", "profile", "email"}, p.oauth.Scopes)
}

func TestNewProvider_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		config ProviderConfig
		errMsg string
	}{
		{
			name:   "missing client ID",
			config: ProviderConfig{ClientSecret: "secret", RedirectURL: "http://localhost/callback", DiscoveryURL: "http://example.com"},
			errMsg: "client ID is required",
		},
		{
			name:   "missing client secret",
			config: ProviderConfig{ClientID: "client", RedirectURL: "http://localhost/callback", DiscoveryURL: "http://example.com"},
			errMsg: "client secret is required",
		},
		{
			name:   "missing redirect URL",
			config: ProviderConfig{ClientID: "client", ClientSecret: "secret", DiscoveryURL: "http://example.com"},
			errMsg: "redirect URL is required",
		},
		{
			name:   "missing discovery URL",
			config: ProviderConfig{ClientID: "client", ClientSecret: "secret", RedirectURL: "http://localhost/callback"},
			errMsg: "discovery URL is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(context.Background(), tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestIssuerFromDiscoveryURL(t *testing.T) {
	for in, want := range map[string]string{
		"https://idp.example.com":                                    "https://idp.example.com",
		"https://idp.example.com/":                                   "https://idp.example.com",
		"https://idp.example.com/.well-known/openid-configuration":   "https://idp.example.com",
		" https://idp.example.com/.well-known/openid-configuration/": "https://idp.example.com",
	} {
		assert.Equal(t, want, issuerFromDiscoveryURL(in), in)
	}
}

func TestProvider_Begin(t *testing.T) {
	p := newFakeIdP(t).provider(t)

	authURL, state, nonce, err := p.Begin(context.Background(), ports.BeginInput{RedirectURL: "/"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(state), 43)
	assert.GreaterOrEqual(t, len(nonce), 43)
	assert.NotEqual(t, state, nonce)
	assert.Contains(t, authURL, "/authorize")
	assert.Contains(t, authURL, "client_id="+testClientID)
	assert.Contains(t, authURL, "state="+state)
	assert.Contains(t, authURL, "nonce="+nonce)

	_, _, _, err = p.Begin(context.Background(), ports.BeginInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirect URL is required")
}

func TestProvider_Exchange_ValidationErrors(t *testing.T) {
	p := newFakeIdP(t).provider(t)

	tests := []struct {
		name   string
		input  ports.ExchangeInput
		errMsg string
	}{
		{"missing code", ports.ExchangeInput{State: "state", Nonce: "nonce"}, "authorization code is required"},
		{"missing state", ports.ExchangeInput{Code: "code", Nonce: "nonce"}, "state is required"},
		{"missing nonce", ports.ExchangeInput{Code: "code", State: "state"}, "nonce is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Exchange(context.Background(), tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestProvider_Exchange_Success(t *testing.T) {
	idp := newFakeIdP(t)
	idp.claims = map[string]any{"sub": "sub-123", "email": "Alice@Example.com", "email_verified": true, "nonce": "n-1"}
	p := idp.provider(t)

	identity, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "code", State: "s", Nonce: "n-1"})
	require.NoError(t, err)
	assert.Equal(t, "sub-123", identity.Subject)
	assert.Equal(t, "Alice@Example.com", identity.Email)
	assert.WithinDuration(t, time.Now().Add(time.Hour), identity.ExpiresAt, time.Minute)
}

func TestProvider_Exchange_NonceMismatch(t *testing.T) {
	idp := newFakeIdP(t)
	idp.claims = map[string]any{"sub": "sub-123", "email": "alice@example.com", "nonce": "other"}
	p := idp.provider(t)

	_, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "code", State: "s", Nonce: "n-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid nonce")
}

func TestProvider_Exchange_FallsBackToUserInfo(t *testing.T) {
	idp := newFakeIdP(t)
	idp.claims = map[string]any{"sub": "sub-123", "nonce": "n-1"}
	idp.userinfo = map[string]any{"sub": "sub-123", "mail": "alice@example.com"}
	p := idp.provider(t)

	identity, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "code", State: "s", Nonce: "n-1"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", identity.Email)
}

func TestProvider_Exchange_TokenEndpointFailure(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, DiscoveryDocument{Issuer: srv.URL, AuthorizationEndpoint: srv.URL + "/authorize", TokenEndpoint: srv.URL + "/token"})
	})
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	})

	p, err := NewProvider(context.Background(), ProviderConfig{
		ClientID: testClientID, ClientSecret: "s", RedirectURL: "http://localhost/cb", Scope: "openid", DiscoveryURL: srv.URL,
	})
	require.NoError(t, err)

	_, err = p.Exchange(context.Background(), ports.ExchangeInput{Code: "code", State: "s", Nonce: "n"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange code for token")
}

func TestClaimsIdentity(t *testing.T) {
	verified, unverified := true, false

	assert.Equal(t, identityClaims{subject: "s", email: "a@example.com"},
		claims{Sub: "s", Email: "a@example.com", EmailVerified: &verified}.identity())
	assert.Equal(t, identityClaims{subject: "s", email: "m@example.com"},
		claims{Sub: "s", Mail: "m@example.com"}.identity())
	assert.Equal(t, identityClaims{subject: "s"},
		claims{Sub: "s", Email: "a@example.com", EmailVerified: &unverified}.identity())

	kept := identityClaims{subject: "keep", email: "keep@example.com"}
	assert.Equal(t, kept, kept.merge(identityClaims{subject: "other", email: "other@example.com"}))
	assert.True(t, kept.complete())
	assert.Equal(t, kept, identityClaims{subject: "keep"}.merge(identityClaims{subject: "x", email: "keep@example.com"}))
}

func TestNewProvider_JoinsValidationErrors(t *testing.T) {
	_, err := NewProvider(context.Background(), ProviderConfig{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "client ID is required")
	assert.ErrorContains(t, err, "discovery URL is required")
}

func TestRawIDToken(t *testing.T) {
	tok := (&oauth2.Token{}).WithExtra(map[string]any{"id_token": "abc.def.ghi"})
	idTok, err := rawIDToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", idTok)

	_, err = rawIDToken((&oauth2.Token{}).WithExtra(map[string]any{"not_id": "x"}))
	require.ErrorContains(t, err, "missing id_token")

	_, err = rawIDToken(nil)
	require.ErrorContains(t, err, "nil token")
}

func TestProvider_ImplementsInterface(t *testing.T) {
	var _ ports.AuthProvider = (*Provider)(nil)
}
