package config

import (
	"strings"
	"time"
)

// RateLimit is a request budget per client per window. Requests <= 0 disables it.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// CookieDomain is the domain for session and CSRF cookies.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// CORSOrigins lists origins allowed to make credentialed cross-origin calls.
	CORSOrigins []string `env:"HTTP_CORS_ORIGINS" envSeparator:","`

	// CSRFLoginExempt skips CSRF validation on POST /api/login.
	CSRFLoginExempt bool `env:"HTTP_CSRF_LOGIN_EXEMPT" envDefault:"false"`

	// TrustForwardedFor keys rate limits by the first X-Forwarded-For hop.
	// Only enable behind a proxy that overwrites the header.
	TrustForwardedFor bool `env:"HTTP_TRUST_FORWARDED_FOR" envDefault:"false"`

	// FilesBaseDir is the only directory the file endpoints read from.
	FilesBaseDir string `env:"FILES_BASE_DIR" envDefault:"./data/safe_files"`

	GlobalRequests    int           `env:"HTTP_RATE_LIMIT_GLOBAL"           envDefault:"120"`
	GlobalWindow      time.Duration `env:"HTTP_RATE_LIMIT_GLOBAL_WINDOW"    envDefault:"1m"`
	SensitiveRequests int           `env:"HTTP_RATE_LIMIT_SENSITIVE"        envDefault:"30"`
	SensitiveWindow   time.Duration `env:"HTTP_RATE_LIMIT_SENSITIVE_WINDOW" envDefault:"1m"`
	FilesRequests     int           `env:"HTTP_RATE_LIMIT_FILES"            envDefault:"100"`
	FilesWindow       time.Duration `env:"HTTP_RATE_LIMIT_FILES_WINDOW"     envDefault:"15m"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	origins := h.CORSOrigins[:0]
	for _, o := range h.CORSOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	h.CORSOrigins = origins

	h.GlobalRequests, h.GlobalWindow = sanitizeLimit(h.GlobalRequests, h.GlobalWindow)
	h.SensitiveRequests, h.SensitiveWindow = sanitizeLimit(h.SensitiveRequests, h.SensitiveWindow)
	h.FilesRequests, h.FilesWindow = sanitizeLimit(h.FilesRequests, h.FilesWindow)

	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
	h.FilesBaseDir = strings.TrimSpace(h.FilesBaseDir)
}

// Global returns the budget applied to every request.
func (h *HTTPConfig) Global() RateLimit {
	return RateLimit{Requests: h.GlobalRequests, Window: h.GlobalWindow}
}

// Sensitive returns the budget for credential and account endpoints.
func (h *HTTPConfig) Sensitive() RateLimit {
	return RateLimit{Requests: h.SensitiveRequests, Window: h.SensitiveWindow}
}

// Files returns the budget for the file endpoints.
func (h *HTTPConfig) Files() RateLimit {
	return RateLimit{Requests: h.FilesRequests, Window: h.FilesWindow}
}

func sanitizeLimit(requests int, window time.Duration) (int, time.Duration) {
	if window <= 0 {
		window = time.Minute
	}
	return max(requests, 0), window
}
