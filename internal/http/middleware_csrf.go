package httpx

import (
	"cmp"
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"slices"
	"strings"

	apperrors "github.com/target/seclab-api/internal/errors"
)

const (
	// DefaultCSRFCookieName doubles as the form field name.
	DefaultCSRFCookieName = "csrf_token"
	// DefaultCSRFHeaderName is in canonical header form.
	DefaultCSRFHeaderName = "X-Csrf-Token"
	// DefaultCSRFTokenLength is measured in random bytes before encoding.
	DefaultCSRFTokenLength = 32

	csrfCookieMaxAge = 12 * 60 * 60
)

var errCSRFRejected = errors.New("CSRF token validation failed")

// CSRFConfig configures the double-submit cookie check.
type CSRFConfig struct {
	CookieName    string
	HeaderName    string
	FormFieldName string
	CookieDomain  string
	TokenLength   int
	// ExemptPaths skip validation for exact path matches.
	ExemptPaths []string
}

type csrfGuard struct {
	cookieName string
	headerName string
	formField  string
	domain     string
	tokenLen   int
	exempt     map[string]struct{}
}

func newCSRFGuard(cfg CSRFConfig) *csrfGuard {
	g := &csrfGuard{
		cookieName: cmp.Or(cfg.CookieName, DefaultCSRFCookieName),
		headerName: cmp.Or(cfg.HeaderName, DefaultCSRFHeaderName),
		formField:  cmp.Or(cfg.FormFieldName, DefaultCSRFCookieName),
		domain:     cfg.CookieDomain,
		tokenLen:   cfg.TokenLength,
		exempt:     make(map[string]struct{}, len(cfg.ExemptPaths)),
	}
	if g.tokenLen <= 0 {
		g.tokenLen = DefaultCSRFTokenLength
	}
	for _, p := range cfg.ExemptPaths {
		g.exempt[p] = struct{}{}
	}
	return g
}

// CSRFProtection enforces the double-submit cookie pattern on unsafe methods.
// A token cookie is issued on the first request that lacks one. Unsafe requests must
// echo the cookie value in the header or, for form posts, in the form field.
func CSRFProtection(cfg CSRFConfig) func(http.Handler) http.Handler {
	g := newCSRFGuard(cfg)
	return g.middleware
}

func (g *csrfGuard) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, issued, err := g.ensureToken(w, r)
		if err != nil {
			WriteAppError(w, r, err)
			return
		}

		if g.mustCheck(r) {
			// A freshly issued token cannot match anything the client sent.
			if issued || !g.matches(r, token) {
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: string(apperrors.ErrCodeForbidden),
					Err:     errCSRFRejected,
				})
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfTokenKey{}, token)))
	})
}

// ensureToken returns the cookie token, minting and setting a new one when absent.
func (g *csrfGuard) ensureToken(w http.ResponseWriter, r *http.Request) (string, bool, error) {
	if c, err := r.Cookie(g.cookieName); err == nil && c.Value != "" {
		return c.Value, false, nil
	}

	buf := make([]byte, g.tokenLen)
	if _, err := rand.Read(buf); err != nil {
		return "", false, fmt.Errorf("csrf token generation failed: %w", err)
	}
	token := base64.URLEncoding.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     g.cookieName,
		Value:    token,
		Path:     "/",
		Domain:   g.domain,
		HttpOnly: false, // scripts echo it back in the header
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteStrictMode,
		MaxAge:   csrfCookieMaxAge,
	})
	return token, true, nil
}

// IsUnsafeMethod reports whether method can change state and so needs a CSRF token.
func IsUnsafeMethod(method string) bool {
	return !slices.Contains([]string{http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace}, method)
}

func (g *csrfGuard) mustCheck(r *http.Request) bool {
	if !IsUnsafeMethod(r.Method) {
		return false
	}
	_, skip := g.exempt[r.URL.Path]
	return !skip
}

func (g *csrfGuard) matches(r *http.Request, token string) bool {
	submitted := r.Header.Get(g.headerName)
	if submitted == "" && isFormRequest(r) {
		if err := r.ParseForm(); err != nil {
			return false
		}
		submitted = r.PostFormValue(g.formField)
	}
	if submitted == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(token)) == 1
}

func isFormRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data"
}

// isForwardedHTTPS accepts comma-separated X-Forwarded-Proto values.
func isForwardedHTTPS(r *http.Request) bool {
	for proto := range strings.SplitSeq(r.Header.Get("X-Forwarded-Proto"), ",") {
		if strings.EqualFold(strings.TrimSpace(proto), "https") {
			return true
		}
	}
	return false
}

type csrfTokenKey struct{}

// GetCSRFToken returns the token CSRFProtection stored on the request, or "".
func GetCSRFToken(r *http.Request) string {
	token, _ := r.Context().Value(csrfTokenKey{}).(string)
	return token
}

// csrfTokenHandler serves GET /api/csrf-token for scripted clients.
func csrfTokenHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"csrfToken": GetCSRFToken(r)})
}
