package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	domainauth "github.com/target/seclab-api/internal/domain/auth"
	apperrors "github.com/target/seclab-api/internal/errors"
)

const (
	// SessionCookieName is the cookie carrying the opaque session token.
	SessionCookieName = "session"
	// AuthTokenHeader is the header alternative to the session cookie.
	AuthTokenHeader = "X-Auth-Token"
	// UserIDHeader carries a raw user id when header identity is trusted.
	UserIDHeader = "X-User-Id"
	// RequestIDHeader echoes the request id to the client.
	RequestIDHeader = "X-Request-Id"
)

// Logging returns a middleware that logs HTTP requests and responses.
// Each request gets a request_id that is echoed in RequestIDHeader and
// attached to the logger stored in the request context.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := uuid.NewString()
			w.Header().Set(RequestIDHeader, reqID)

			reqLogger := logger.With(slog.String("request_id", reqID))
			r = r.WithContext(setLoggerInContext(r.Context(), reqLogger))

			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			reqLogger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
// The client only ever sees a generic internal error.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					WriteError(w, ErrorParams{
						Code:    http.StatusInternalServerError,
						ErrCode: string(apperrors.ErrCodeInternal),
						Err:     errors.New("internal error"),
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// AuthOptions configures RequireAuth.
type AuthOptions struct {
	Svc AuthServiceInterface
	// TrustUserHeader accepts UserIDHeader as identity when no token is sent.
	// Lab use only.
	TrustUserHeader bool
}

// RequireAuth returns a middleware that resolves the caller's principal and
// stores it in the request context. Requests without a valid credential get 401.
func RequireAuth(opts AuthOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := resolvePrincipal(r, opts)
			if err != nil {
				WriteAppError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(SetPrincipalInContext(r.Context(), p)))
		})
	}
}

// RequireRole returns a middleware that requires a specific role.
// It must run after RequireAuth; a missing principal gets 401 and a wrong role 403.
func RequireRole(requiredRole domainauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := GetPrincipalFromContext(r.Context())
			if !ok {
				WriteAppError(w, r, apperrors.Unauthenticated("authentication required"))
				return
			}
			if p.Role != requiredRole {
				WriteAppError(w, r, apperrors.Forbidden("insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolvePrincipal authenticates the request with the first credential present.
func resolvePrincipal(r *http.Request, opts AuthOptions) (*domainauth.Principal, error) {
	if token := tokenFromRequest(r); token != "" {
		return opts.Svc.Resolve(r.Context(), token)
	}
	if opts.TrustUserHeader {
		if raw := r.Header.Get(UserIDHeader); raw != "" {
			return opts.Svc.ResolveUserHeader(r.Context(), raw)
		}
	}
	return nil, apperrors.Unauthenticated("authentication required")
}

// tokenFromRequest returns the session token from, in order, the session
// cookie, AuthTokenHeader and an Authorization bearer credential.
func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if v := strings.TrimSpace(r.Header.Get(AuthTokenHeader)); v != "" {
		return v
	}
	const bearer = "bearer "
	if v := r.Header.Get("Authorization"); len(v) > len(bearer) && strings.EqualFold(v[:len(bearer)], bearer) {
		return strings.TrimSpace(v[len(bearer):])
	}
	return ""
}

// isSecureRequest reports whether the request arrived over TLS, directly or via a proxy.
func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || isForwardedHTTPS(r)
}
