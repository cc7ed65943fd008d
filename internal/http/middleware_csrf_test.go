package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func csrfTestHandler(cfg CSRFConfig) http.Handler {
	return CSRFProtection(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("success"))
	}))
}

func csrfCookieFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	resp := w.Result()
	defer resp.Body.Close()
	for _, c := range resp.Cookies() {
		if c.Name == DefaultCSRFCookieName {
			return c
		}
	}
	return nil
}

// fetchCSRFToken performs a safe request and returns the issued token.
func fetchCSRFToken(t *testing.T, h http.Handler) string {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	c := csrfCookieFrom(t, w)
	if c == nil || c.Value == "" {
		t.Fatal("CSRF cookie not set")
	}
	return c.Value
}

func TestCSRFProtection_GetRequestsAllowed(t *testing.T) {
	handler := csrfTestHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if c := csrfCookieFrom(t, w); c == nil || c.Value == "" {
		t.Fatal("CSRF cookie not set")
	}
}

func TestCSRFProtection_PostWithoutTokenFails(t *testing.T) {
	handler := csrfTestHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["error"] != "forbidden" {
		t.Errorf("expected error=forbidden, got %q", body["error"])
	}
}

func TestCSRFProtection_PostWithValidHeaderToken(t *testing.T) {
	handler := csrfTestHandler(CSRFConfig{})
	token := fetchCSRFToken(t, handler)

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: token})
	req.Header.Set(DefaultCSRFHeaderName, token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestCSRFProtection_PostWithValidFormToken(t *testing.T) {
	handler := csrfTestHandler(CSRFConfig{})
	token := fetchCSRFToken(t, handler)

	form := url.Values{}
	form.Set(DefaultCSRFCookieName, token)
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: token})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestCSRFProtection_PostWithMismatchedToken(t *testing.T) {
	handler := csrfTestHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: "cookie-token"})
	req.Header.Set(DefaultCSRFHeaderName, "different-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", w.Code)
	}
}

func TestCSRFProtection_HeaderWithoutCookieFails(t *testing.T) {
	handler := csrfTestHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set(DefaultCSRFHeaderName, "attacker-chosen")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", w.Code)
	}
}

func TestCSRFProtection_SafeMethodsExempt(t *testing.T) {
	handler := csrfTestHandler(CSRFConfig{})

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/test", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("method %s: expected status 200, got %d", method, w.Code)
			}
		})
	}
}

func TestCSRFProtection_ExemptPaths(t *testing.T) {
	handler := csrfTestHandler(CSRFConfig{ExemptPaths: []string{"/api/login"}})

	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected exempt path to pass, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/login/other", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected exact-match exemption only, got %d", w.Code)
	}
}

func TestCSRFProtection_TokenInContext(t *testing.T) {
	var capturedToken string
	handler := CSRFProtection(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedToken = GetCSRFToken(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if capturedToken == "" {
		t.Fatal("CSRF token not available in context")
	}
	if c := csrfCookieFrom(t, w); c == nil || c.Value != capturedToken {
		t.Errorf("context token %q does not match cookie", capturedToken)
	}
}

func TestCSRFProtection_CookieAttributes_HTTPS(t *testing.T) {
	handler := csrfTestHandler(CSRFConfig{CookieDomain: "example.com"})

	req := httptest.NewRequest(http.MethodGet, "https://example.com/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	csrfCookie := csrfCookieFrom(t, w)
	if csrfCookie == nil {
		t.Fatal("CSRF cookie not set")
	}
	if !csrfCookie.Secure {
		t.Error("expected Secure flag to be true for HTTPS request")
	}
	if csrfCookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("expected SameSite=Strict, got %v", csrfCookie.SameSite)
	}
	if csrfCookie.HttpOnly {
		t.Error("expected HttpOnly to be false (must be readable by JavaScript)")
	}
	if csrfCookie.Domain != "example.com" {
		t.Errorf("expected Domain=example.com, got %q", csrfCookie.Domain)
	}
}

func TestCSRFProtection_CookieAttributes_ForwardedProto(t *testing.T) {
	handler := csrfTestHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodGet, "http://example.com/test", nil)
	req.Header.Set("X-Forwarded-Proto", "http, https")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	csrfCookie := csrfCookieFrom(t, w)
	if csrfCookie == nil {
		t.Fatal("CSRF cookie not set")
	}
	if !csrfCookie.Secure {
		t.Error("expected Secure flag to be true when X-Forwarded-Proto contains https")
	}
}

func TestCSRFProtection_CookieNotSetWhenExists(t *testing.T) {
	handler := csrfTestHandler(CSRFConfig{})
	token := fetchCSRFToken(t, handler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: token})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if c := csrfCookieFrom(t, w); c != nil {
		t.Error("expected no Set-Cookie header when token already exists")
	}
}

func TestCSRFTokenHandler(t *testing.T) {
	handler := CSRFProtection(CSRFConfig{})(http.HandlerFunc(csrfTokenHandler))

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: "known-token"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["csrfToken"] != "known-token" {
		t.Errorf("expected csrfToken=known-token, got %q", body["csrfToken"])
	}
}

func TestGetCSRFToken_NoToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if token := GetCSRFToken(req); token != "" {
		t.Errorf("expected empty token, got %q", token)
	}
}

func TestIsUnsafeMethod(t *testing.T) {
	for _, m := range []string{http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace} {
		if IsUnsafeMethod(m) {
			t.Errorf("%s should be safe", m)
		}
	}
	for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		if !IsUnsafeMethod(m) {
			t.Errorf("%s should require a token", m)
		}
	}
}
