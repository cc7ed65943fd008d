package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	domainauth "github.com/target/seclab-api/internal/domain/auth"
	"github.com/target/seclab-api/internal/service"
)

// RouterLimiters are the rate limiters applied by NewRouter. Nil limiters are disabled.
type RouterLimiters struct {
	// Global applies to every request.
	Global *RateLimiter
	// Sensitive applies to credential and account endpoints.
	Sensitive *RateLimiter
	// Files applies to the file endpoints.
	Files *RateLimiter
}

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth         AuthServiceInterface
	Orders       *service.OrderService
	Accounts     *service.AccountService
	Transactions *service.TransactionService
	Feedback     *service.FeedbackService
	Stations     *service.StationService
	Files        *service.FileService

	Limiters RouterLimiters
	CSRF     CSRFConfig
	CORS     CORSConfig

	CookieDomain string
	// TrustUserHeader accepts X-User-Id as identity. Lab use only.
	TrustUserHeader bool
	// SSOEnabled registers /auth/login and /auth/callback.
	SSOEnabled bool
	Logger     *slog.Logger
}

// routeGuards composes the per-route middleware stacks.
type routeGuards struct {
	auth      func(http.Handler) http.Handler
	admin     func(http.Handler) http.Handler
	sensitive func(http.Handler) http.Handler
	files     func(http.Handler) http.Handler
}

func (g routeGuards) authed(h http.HandlerFunc) http.Handler {
	return g.auth(h)
}

func (g routeGuards) authedSensitive(h http.HandlerFunc) http.Handler {
	return g.sensitive(g.auth(h))
}

// NewRouter creates the API router wrapped in the security, CORS, rate limit and CSRF middleware.
// Request logging and panic recovery are applied by the caller.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	guards := routeGuards{
		auth:      RequireAuth(AuthOptions{Svc: services.Auth, TrustUserHeader: services.TrustUserHeader}),
		admin:     RequireRole(domainauth.RoleAdmin),
		sensitive: services.Limiters.Sensitive.Middleware(),
		files:     services.Limiters.Files.Middleware(),
	}
	authHandlers := &AuthHandlers{Svc: services.Auth, CookieDomain: services.CookieDomain, Logger: services.Logger}

	registerPublicRoutes(mux)
	registerAuthRoutes(mux, authHandlers, guards, services.SSOEnabled)
	registerOrderRoutes(mux, &OrderHandlers{Svc: services.Orders}, guards)
	registerBankRoutes(mux, &BankHandlers{
		Transactions: services.Transactions,
		Feedback:     services.Feedback,
		Accounts:     services.Accounts,
	}, guards)
	registerAccountRoutes(mux, &AccountHandlers{Svc: services.Accounts}, guards)
	registerStationRoutes(mux, &StationHandlers{Svc: services.Stations})
	registerFileRoutes(mux, &FileHandlers{Svc: services.Files}, guards)

	csrf := services.CSRF
	if csrf.CookieDomain == "" {
		csrf.CookieDomain = services.CookieDomain
	}

	// Order: SecurityHeaders -> CORS -> global limit -> CSRF -> mux
	var h http.Handler = mux
	h = CSRFProtection(csrf)(h)
	h = services.Limiters.Global.Middleware()(h)
	h = CORS(services.CORS)(h)
	h = SecurityHeaders()(h)
	return h
}

func registerPublicRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", healthHandler)
	mux.HandleFunc("HEAD /healthz", healthHandler)
	mux.HandleFunc("GET /robots.txt", robotsHandler)
	mux.HandleFunc("GET /sitemap.xml", sitemapHandler)
	mux.HandleFunc("GET /api/csrf-token", csrfTokenHandler)
	mux.HandleFunc("/", notFoundHandler)
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, g routeGuards, sso bool) {
	mux.Handle("POST /api/login", g.sensitive(http.HandlerFunc(h.PasswordLogin)))
	mux.HandleFunc("POST /api/logout", h.Logout)
	mux.HandleFunc("GET /api/me", h.Me)
	mux.Handle("GET /api/whoami", g.authed(whoamiHandler))
	if sso {
		mux.HandleFunc("GET /auth/login", h.Login)
		mux.HandleFunc("GET /auth/callback", h.Callback)
	}
}

func registerOrderRoutes(mux *http.ServeMux, h *OrderHandlers, g routeGuards) {
	mux.Handle("GET /api/orders", g.authed(h.List))
	mux.Handle("GET /api/orders/{id}", g.authed(h.Get))
}

func registerBankRoutes(mux *http.ServeMux, h *BankHandlers, g routeGuards) {
	mux.Handle("GET /api/transactions", g.authedSensitive(h.ListTransactions))
	mux.Handle("POST /api/feedback", g.authedSensitive(h.SubmitFeedback))
	mux.Handle("GET /api/feedback", g.authedSensitive(h.ListFeedback))
	mux.Handle("POST /api/change-email", g.authedSensitive(h.ChangeEmail))
	mux.Handle("POST /api/account/email", g.authedSensitive(h.ChangeEmail))
}

func registerAccountRoutes(mux *http.ServeMux, h *AccountHandlers, g routeGuards) {
	mux.Handle("POST /api/register", g.sensitive(http.HandlerFunc(h.Register)))
	mux.Handle("GET /api/account", g.authed(h.Account))
	mux.Handle("GET /api/admin/users", g.auth(g.admin(http.HandlerFunc(h.ListUsers))))
}

func registerStationRoutes(mux *http.ServeMux, h *StationHandlers) {
	mux.HandleFunc("GET /api/stations", h.Search)
	mux.HandleFunc("GET /api/stations/regex-search", h.RegexSearch)
}

func registerFileRoutes(mux *http.ServeMux, h *FileHandlers, g routeGuards) {
	mux.Handle("POST /api/files/read", g.files(http.HandlerFunc(h.Read)))
	mux.Handle("POST /api/files/setup-sample", g.files(http.HandlerFunc(h.SetupSample)))
}

func notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("not found")})
}
