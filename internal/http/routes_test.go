package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/seclab-api/internal/adapters/memory"
	"github.com/target/seclab-api/internal/devseed"
	mockauth "github.com/target/seclab-api/internal/mocks/auth"
	"github.com/target/seclab-api/internal/service"
)

type testEnv struct {
	handler http.Handler
	csrf    string
	stores  devseed.MemoryStores
}

type reqOption func(*http.Request)

func withToken(token string) reqOption {
	return func(r *http.Request) { r.Header.Set(AuthTokenHeader, token) }
}

func withHeader(k, v string) reqOption {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func withoutCSRF() reqOption {
	return func(r *http.Request) {
		r.Header.Del(DefaultCSRFHeaderName)
		r.Header.Del("Cookie")
	}
}

func newTestEnv(t *testing.T, customize func(*RouterServices)) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := discardLogger()
	hasher := mockauth.PlainHasher{}

	stores := devseed.NewMemoryStores()
	require.NoError(t, devseed.Run(ctx, stores.Seedable(), hasher, logger))

	authSvc, err := service.NewAuthService(service.AuthServiceOptions{
		Users:    stores.Users,
		Sessions: memory.NewSessionStore(),
		Hasher:   hasher,
		Policy:   service.SessionPolicy{TTL: time.Hour, SingleSession: true},
		Logger:   logger,
	})
	require.NoError(t, err)
	accounts, err := service.NewAccountService(service.AccountServiceOptions{Users: stores.Users, Hasher: hasher, Logger: logger})
	require.NoError(t, err)
	files, err := service.NewFileService(service.FileServiceOptions{BaseDir: t.TempDir(), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = files.Close() })

	svcs := RouterServices{
		Auth:         authSvc,
		Orders:       service.NewOrderService(service.OrderServiceOptions{Repo: stores.Orders, Logger: logger}),
		Accounts:     accounts,
		Transactions: service.NewTransactionService(stores.Transactions),
		Feedback:     service.NewFeedbackService(stores.Feedback),
		Stations:     service.NewStationService(stores.Stations),
		Files:        files,
		Logger:       logger,
	}
	if customize != nil {
		customize(&svcs)
	}

	h := NewRouter(svcs)
	return &testEnv{handler: h, csrf: fetchCSRFToken(t, h), stores: stores}
}

func (e *testEnv) do(method, target, body string, opts ...reqOption) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if IsUnsafeMethod(method) {
		req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: e.csrf})
		req.Header.Set(DefaultCSRFHeaderName, e.csrf)
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	return e.loginWith(t, username, devseed.DefaultPassword)
}

func (e *testEnv) loginWith(t *testing.T, username, password string) string {
	t.Helper()
	rec := e.do(http.MethodPost, "/api/login", `{"username":"`+username+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRouter_LoginMeLogout(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t, "alice")

	rec := env.do(http.MethodGet, "/api/me", "", withToken(token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":true,"username":"alice"}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/whoami", "", withToken(token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)

	rec = env.do(http.MethodPost, "/api/logout", "", withToken(token))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/api/me", "", withToken(token))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_LoginWrongPassword(t *testing.T) {
	env := newTestEnv(t, nil)

	wrong := env.do(http.MethodPost, "/api/login", `{"username":"alice","password":"nope"}`)
	unknown := env.do(http.MethodPost, "/api/login", `{"username":"mallory","password":"nope"}`)

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())
}

func TestRouter_SingleSession(t *testing.T) {
	env := newTestEnv(t, nil)
	first := env.login(t, "alice")
	second := env.login(t, "alice")

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/whoami", "", withToken(first)).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/whoami", "", withToken(second)).Code)
}

func TestRouter_Orders(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.login(t, "alice")

	t.Run("requires auth", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/orders/1", "").Code)
	})

	t.Run("own order", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/orders/1", "", withToken(alice))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"item":"Laptop"`)
	})

	t.Run("foreign and missing are indistinguishable", func(t *testing.T) {
		foreign := env.do(http.MethodGet, "/api/orders/3", "", withToken(alice))
		missing := env.do(http.MethodGet, "/api/orders/999", "", withToken(alice))
		assert.Equal(t, http.StatusNotFound, foreign.Code)
		assert.Equal(t, http.StatusNotFound, missing.Code)
		assert.JSONEq(t, foreign.Body.String(), missing.Body.String())
	})

	t.Run("invalid id", func(t *testing.T) {
		for _, id := range []string{"abc", "0", "-1", "1.5"} {
			rec := env.do(http.MethodGet, "/api/orders/"+id, "", withToken(alice))
			assert.Equal(t, http.StatusBadRequest, rec.Code, id)
		}
	})

	t.Run("list is scoped", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/orders", "", withToken(alice))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeList(t, rec), 2)
	})

	t.Run("support sees own region", func(t *testing.T) {
		charlie := env.login(t, "charlie")
		assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/orders/2", "", withToken(charlie)).Code)
		assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/orders/4", "", withToken(charlie)).Code)
	})
}

func TestRouter_AdminUsers(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/admin/users", "", withToken(env.login(t, "alice")))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodGet, "/api/admin/users", "", withToken(env.login(t, "admin")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 5)
	assert.NotContains(t, rec.Body.String(), "plain:")
}

func TestRouter_TrustedUserHeader(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec := env.do(http.MethodGet, "/api/whoami", "", withHeader(UserIDHeader, "5"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("enabled", func(t *testing.T) {
		env := newTestEnv(t, func(s *RouterServices) { s.TrustUserHeader = true })
		rec := env.do(http.MethodGet, "/api/admin/users", "", withHeader(UserIDHeader, "5"))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(http.MethodGet, "/api/whoami", "", withHeader(UserIDHeader, "999"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRouter_CSRF(t *testing.T) {
	t.Run("unsafe request needs token", func(t *testing.T) {
		env := newTestEnv(t, nil)
		token := env.login(t, "alice")
		rec := env.do(http.MethodPost, "/api/feedback", `{"comment":"hi"}`, withToken(token), withoutCSRF())
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("login exempt when configured", func(t *testing.T) {
		env := newTestEnv(t, func(s *RouterServices) { s.CSRF.ExemptPaths = []string{"/api/login"} })
		rec := env.do(http.MethodPost, "/api/login",
			`{"username":"alice","password":"`+devseed.DefaultPassword+`"}`, withoutCSRF())
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("token endpoint", func(t *testing.T) {
		env := newTestEnv(t, nil)
		req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
		req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: env.csrf})
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"csrfToken":"`+env.csrf+`"}`, rec.Body.String())
	})
}

func TestRouter_SecurityHeadersEverywhere(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, target := range []string{"/healthz", "/nope", "/api/orders"} {
		rec := env.do(http.MethodGet, target, "")
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"), target)
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"), target)
		assert.Empty(t, rec.Header().Get("X-Powered-By"), target)
	}

	rec := env.do(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec)["error"])
}

func TestRouter_CORS(t *testing.T) {
	env := newTestEnv(t, func(s *RouterServices) {
		s.CORS = CORSConfig{AllowedOrigins: []string{"https://app.example.com"}}
	})

	rec := env.do(http.MethodGet, "/healthz", "", withHeader("Origin", "https://app.example.com"))
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = env.do(http.MethodGet, "/healthz", "", withHeader("Origin", "https://evil.example.com"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_SensitiveRateLimit(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	env := newTestEnv(t, func(s *RouterServices) {
		s.Limiters.Sensitive = NewRateLimiter(RateLimitConfig{Name: "sensitive", Requests: 2, Window: time.Minute, Now: clock.Now})
	})

	body := `{"username":"alice","password":"nope"}`
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/api/login", body).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/api/login", body).Code)

	rec := env.do(http.MethodPost, "/api/login", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Unlimited routes are unaffected.
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/stations", "").Code)
}

func TestRouter_Bank(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.login(t, "alice")

	rec := env.do(http.MethodGet, "/api/transactions", "", withToken(alice))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 2)

	rec = env.do(http.MethodGet, "/api/transactions?q=coffee", "", withToken(alice))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 1)

	rec = env.do(http.MethodGet, "/api/transactions?q=%27%20OR%20%271%27%3D%271", "", withToken(alice))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeList(t, rec))

	rec = env.do(http.MethodGet, "/api/transactions", "", withToken(env.login(t, "bob")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeList(t, rec))
}

func TestRouter_Feedback(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.login(t, "alice")

	rec := env.do(http.MethodPost, "/api/feedback", `{"comment":"<script>alert(1)</script>"}`, withToken(alice))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodPost, "/api/feedback", `{"comment":"   "}`, withToken(alice))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/api/feedback?limit=10", "", withToken(alice))
	require.Equal(t, http.StatusOK, rec.Code)
	items := decodeList(t, rec)
	require.Len(t, items, 1)
	assert.Equal(t, "&lt;script&gt;alert(1)&lt;/script&gt;", items[0]["comment"])
	assert.Equal(t, "alice", items[0]["user"])
}

func TestRouter_ChangeEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.login(t, "alice")

	for _, target := range []string{"/api/change-email", "/api/account/email"} {
		rec := env.do(http.MethodPost, target, `{"email":"Alice.New@Example.com"}`, withToken(alice))
		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.JSONEq(t, `{"success":true,"email":"alice.new@example.com"}`, rec.Body.String())
	}

	rec := env.do(http.MethodGet, "/api/account", "", withToken(alice))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"alice.new@example.com"`)

	bob, err := env.stores.Users.GetByUsername(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", bob.Email)

	rec = env.do(http.MethodPost, "/api/change-email", `{"email":"not-an-email"}`, withToken(alice))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/change-email", `{"email":"bob@example.com"}`, withToken(alice))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodPost, "/api/change-email", `{"email":"x@example.com"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_Register(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/register", `{"username":"dave","password":"longenough","email":"dave@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true,"id":6}`, rec.Body.String())

	rec = env.do(http.MethodPost, "/api/register", `{"username":"dave","password":"longenough"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodPost, "/api/register", `{"username":"eve","password":"longenough","email":"Alice@Example.com"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "email already in use")

	rec = env.do(http.MethodPost, "/api/register", `{"username":"eve","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/register", `{"username":"eve","password":"longenough","role":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	token := env.loginWith(t, "dave", "longenough")
	rec = env.do(http.MethodGet, "/api/account", "", withToken(token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"user"`)
}

func TestRouter_Stations(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/stations?q=mall", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 1)

	rec = env.do(http.MethodGet, "/api/stations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 3)

	rec = env.do(http.MethodGet, "/api/stations/regex-search?pattern=%5ECampus", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 1)

	rec = env.do(http.MethodGet, "/api/stations/regex-search?pattern=%28", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Files(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/files/setup-sample", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"ok":true,"files":["hello.txt","notes/readme.md"]}`, rec.Body.String())

	rec = env.do(http.MethodPost, "/api/files/read", `{"filename":"hello.txt"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hello from safe file!")

	tests := []struct {
		name     string
		filename string
		want     int
	}{
		{"traversal", "../../etc/passwd", http.StatusForbidden},
		{"encoded traversal", "%2e%2e/%2e%2e/etc/passwd", http.StatusForbidden},
		{"absolute", "/etc/passwd", http.StatusForbidden},
		{"missing", "missing.txt", http.StatusNotFound},
		{"directory", "notes", http.StatusNotFound},
		{"empty", "", http.StatusBadRequest},
		{"bad chars", "hello.txt;rm", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/files/read", `{"filename":"`+tt.filename+`"}`)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "root:")
		})
	}
}
