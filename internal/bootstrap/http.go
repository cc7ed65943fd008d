package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/seclab-api/config"
	httpx "github.com/target/seclab-api/internal/http"
	"github.com/target/seclab-api/internal/observability/statsd"
	"github.com/target/seclab-api/internal/service"
)

const loginPath = "/api/login"

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// HTTPServer is the configured server together with the limiters whose sweepers must run beside it.
type HTTPServer struct {
	Server   *http.Server
	Limiters httpx.RouterLimiters
}

// NewHTTPServer builds the handler stack and server without starting it.
func NewHTTPServer(cfg *HTTPServerConfig) (*HTTPServer, error) {
	if cfg == nil || cfg.Config == nil {
		return nil, errors.New("http server config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limiters := newRateLimiters(cfg.Config.HTTP, cfg.Services.Observability.Sink())
	handler := buildHTTPHandler(httpHandlerConfig{
		Logger:   logger,
		Services: routerServices(cfg.Config, cfg.Services, limiters, logger),
	})

	return &HTTPServer{
		Server:   newServer(handler, cfg.Config.HTTP.Addr),
		Limiters: limiters,
	}, nil
}

func newRateLimiters(cfg config.HTTPConfig, metrics statsd.Sink) httpx.RouterLimiters {
	build := func(name string, limit config.RateLimit) *httpx.RateLimiter {
		return httpx.NewRateLimiter(httpx.RateLimitConfig{
			Name:              name,
			Requests:          limit.Requests,
			Window:            limit.Window,
			TrustForwardedFor: cfg.TrustForwardedFor,
			Metrics:           metrics,
		})
	}
	return httpx.RouterLimiters{
		Global:    build("global", cfg.Global()),
		Sensitive: build("sensitive", cfg.Sensitive()),
		Files:     build("files", cfg.Files()),
	}
}

func routerServices(
	appCfg *config.AppConfig,
	services ServiceContainer,
	limiters httpx.RouterLimiters,
	logger *slog.Logger,
) httpx.RouterServices {
	csrf := httpx.CSRFConfig{CookieDomain: appCfg.HTTP.CookieDomain}
	if appCfg.HTTP.CSRFLoginExempt {
		csrf.ExemptPaths = []string{loginPath}
	}

	rs := httpx.RouterServices{
		Orders:          services.Orders,
		Accounts:        services.Accounts,
		Transactions:    services.Transactions,
		Feedback:        services.Feedback,
		Stations:        services.Stations,
		Files:           services.Files,
		Limiters:        limiters,
		CSRF:            csrf,
		CORS:            httpx.CORSConfig{AllowedOrigins: appCfg.HTTP.CORSOrigins},
		CookieDomain:    appCfg.HTTP.CookieDomain,
		TrustUserHeader: appCfg.Auth.TrustUserHeader,
		Logger:          logger,
	}
	// Leave the interface nil rather than wrapping a nil pointer.
	if services.Auth != nil {
		rs.Auth = services.Auth
		rs.SSOEnabled = services.Auth.SSOEnabled()
	}
	return rs
}

type httpHandlerConfig struct {
	Logger   *slog.Logger
	Services httpx.RouterServices
}

// Order: Recover -> Logging -> Router
func buildHTTPHandler(cfg httpHandlerConfig) http.Handler {
	h := httpx.NewRouter(cfg.Services)
	h = httpx.Logging(cfg.Logger)(h)
	h = httpx.Recover(cfg.Logger)(h)
	return h
}

func newServer(handler http.Handler, addr string) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Timeout time.Duration
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}
	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(cfg.Context, timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}
	return nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown serves HTTP until SIGINT/SIGTERM, ctx cancellation, or a server failure.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	srv, err := NewHTTPServer(&HTTPServerConfig{Config: cfg.Config, Services: cfg.Services, Logger: logger})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, serveOptions{
		Server:          srv,
		Reaper:          cfg.Services.SessionReaper,
		ShutdownTimeout: cfg.Config.HTTP.ShutdownTimeout,
		Logger:          logger,
	})
}

type serveOptions struct {
	Server          *HTTPServer
	Reaper          *service.SessionReaperService
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// serve runs the HTTP server alongside its background sweepers until ctx ends.
func serve(ctx context.Context, opts serveOptions) error {
	srv, logger := opts.Server, opts.Logger
	g, gctx := errgroup.WithContext(ctx)

	if opts.Reaper != nil {
		g.Go(func() error { return opts.Reaper.Run(gctx) })
	}

	for _, l := range []*httpx.RateLimiter{srv.Limiters.Global, srv.Limiters.Sensitive, srv.Limiters.Files} {
		g.Go(func() error {
			l.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", srv.Server.Addr)
		if err := srv.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return ShutdownHTTPServer(ShutdownConfig{
			Context: context.WithoutCancel(gctx),
			Server:  srv.Server,
			Timeout: opts.ShutdownTimeout,
			Logger:  logger,
		})
	})

	return g.Wait()
}
