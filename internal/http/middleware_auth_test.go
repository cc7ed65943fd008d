package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/seclab-api/internal/domain/auth"
	"github.com/target/seclab-api/internal/domain/model"
	apperrors "github.com/target/seclab-api/internal/errors"
	"github.com/target/seclab-api/internal/service"
)

// mockAuthService is a test double for AuthServiceInterface.
type mockAuthService struct {
	loginFunc         func(ctx context.Context, req model.LoginRequest) (*domainauth.Session, error)
	resolveFunc       func(ctx context.Context, token string) (*domainauth.Principal, error)
	resolveHeaderFunc func(ctx context.Context, raw string) (*domainauth.Principal, error)
	revokeFunc        func(ctx context.Context, token string) error
	beginLoginFunc    func(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error)
	completeLoginFunc func(ctx context.Context, input service.CompleteLoginInput) (*domainauth.Session, error)

	revoked []string
}

func (m *mockAuthService) Login(ctx context.Context, req model.LoginRequest) (*domainauth.Session, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, req)
	}
	return &domainauth.Session{Token: "tok-" + req.Username, UserID: 1, Username: req.Username}, nil
}

func (m *mockAuthService) Resolve(ctx context.Context, token string) (*domainauth.Principal, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, token)
	}
	if token == "good-token" {
		return &domainauth.Principal{ID: 1, Username: "alice", Role: domainauth.RoleCustomer}, nil
	}
	return nil, apperrors.Unauthenticated("invalid or expired session")
}

func (m *mockAuthService) ResolveUserHeader(ctx context.Context, raw string) (*domainauth.Principal, error) {
	if m.resolveHeaderFunc != nil {
		return m.resolveHeaderFunc(ctx, raw)
	}
	if raw == "5" {
		return &domainauth.Principal{ID: 5, Username: "admin", Role: domainauth.RoleAdmin}, nil
	}
	return nil, apperrors.Unauthenticated("unknown user")
}

func (m *mockAuthService) Revoke(ctx context.Context, token string) error {
	m.revoked = append(m.revoked, token)
	if m.revokeFunc != nil {
		return m.revokeFunc(ctx, token)
	}
	return nil
}

func (m *mockAuthService) BeginLogin(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error) {
	if m.beginLoginFunc != nil {
		return m.beginLoginFunc(ctx, redirectURL)
	}
	return &service.BeginLoginResult{
		AuthURL: "https://idp.example.com/auth?state=test-state&nonce=test-nonce",
		State:   "test-state",
		Nonce:   "test-nonce",
	}, nil
}

func (m *mockAuthService) CompleteLogin(ctx context.Context, input service.CompleteLoginInput) (*domainauth.Session, error) {
	if m.completeLoginFunc != nil {
		return m.completeLoginFunc(ctx, input)
	}
	return &domainauth.Session{Token: "sso-token", UserID: 1, Username: "alice", Role: domainauth.RoleCustomer}, nil
}

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func principalEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, PrincipalFromContext(r.Context()))
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequireAuth_Credentials(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "good-token"}) }},
		{"auth header", func(r *http.Request) { r.Header.Set(AuthTokenHeader, "good-token") }},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer good-token") }},
		{"bearer lowercase", func(r *http.Request) { r.Header.Set("Authorization", "bearer good-token") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireAuth(AuthOptions{Svc: &mockAuthService{}})(principalEcho())
			req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			var p domainauth.Principal
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
			assert.Equal(t, "alice", p.Username)
		})
	}
}

func TestRequireAuth_NoCredential(t *testing.T) {
	h := RequireAuth(AuthOptions{Svc: &mockAuthService{}})(principalEcho())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/whoami", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", decodeError(t, rec)["error"])
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	h := RequireAuth(AuthOptions{Svc: &mockAuthService{}})(principalEcho())
	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set(AuthTokenHeader, "stale")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_UserHeader(t *testing.T) {
	t.Run("ignored unless trusted", func(t *testing.T) {
		h := RequireAuth(AuthOptions{Svc: &mockAuthService{}})(principalEcho())
		req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
		req.Header.Set(UserIDHeader, "5")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("trusted", func(t *testing.T) {
		h := RequireAuth(AuthOptions{Svc: &mockAuthService{}, TrustUserHeader: true})(principalEcho())
		req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
		req.Header.Set(UserIDHeader, "5")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"admin"`)
	})

	t.Run("token wins over header", func(t *testing.T) {
		h := RequireAuth(AuthOptions{Svc: &mockAuthService{}, TrustUserHeader: true})(principalEcho())
		req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
		req.Header.Set(UserIDHeader, "5")
		req.Header.Set(AuthTokenHeader, "good-token")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"alice"`)
	})
}

func TestRequireAuth_InternalErrorHidden(t *testing.T) {
	svc := &mockAuthService{resolveFunc: func(context.Context, string) (*domainauth.Principal, error) {
		return nil, apperrors.Internal("redis: connection refused")
	}}
	h := RequireAuth(AuthOptions{Svc: svc})(principalEcho())
	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set(AuthTokenHeader, "good-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "redis")
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RequireRole(domainauth.RoleAdmin)(ok)

	tests := []struct {
		name      string
		principal *domainauth.Principal
		want      int
	}{
		{"no principal", nil, http.StatusUnauthorized},
		{"wrong role", &domainauth.Principal{ID: 1, Role: domainauth.RoleCustomer}, http.StatusForbidden},
		{"admin", &domainauth.Principal{ID: 5, Role: domainauth.RoleAdmin}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
			req = req.WithContext(SetPrincipalInContext(req.Context(), tt.principal))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRecover(t *testing.T) {
	h := Recover(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("secret detail")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")
	assert.Equal(t, "internal", decodeError(t, rec)["error"])
}

func TestLoggingSetsRequestID(t *testing.T) {
	base := discardLogger()
	var reqLogger *slog.Logger
	h := Logging(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLogger = LoggerFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	require.NotNil(t, reqLogger)
	assert.NotSame(t, base, reqLogger)
}
