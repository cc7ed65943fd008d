package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/seclab-api/config"
	"github.com/target/seclab-api/internal/adapters/devauth"
	"github.com/target/seclab-api/internal/adapters/memory"
	"github.com/target/seclab-api/internal/adapters/oidc"
	redisadapter "github.com/target/seclab-api/internal/adapters/redis"
	"github.com/target/seclab-api/internal/core"
	"github.com/target/seclab-api/internal/observability/statsd"
	"github.com/target/seclab-api/internal/ports"
	"github.com/target/seclab-api/internal/service"
)

// AuthConfig contains configuration for the auth service.
type AuthConfig struct {
	Auth     config.AuthConfig
	Dev      bool
	Users    core.UserRepository
	Sessions ports.SessionStore
	Hasher   ports.PasswordHasher
	Metrics  statsd.Sink
	Logger   *slog.Logger
	// HTTPClient is used for OIDC discovery and token calls. Nil uses a 30s timeout client.
	HTTPClient *http.Client
}

// NewSessionStore selects the session backend. Redis requires a connected client.
//
//nolint:ireturn // the session backend is chosen at runtime.
func NewSessionStore(kind config.SessionStoreKind, client redis.UniversalClient, prefix string) (ports.SessionStore, error) {
	switch kind {
	case config.SessionStoreRedis:
		if client == nil {
			return nil, errors.New("redis session store selected but redis client not configured")
		}
		return redisadapter.NewSessionStoreWithPrefix(client, prefix), nil
	default:
		return memory.NewSessionStore(), nil
	}
}

// BuildAuthService creates the auth service. Password login is always available;
// SSO is added when AUTH_MODE=oauth and the identity provider can be discovered.
func BuildAuthService(ctx context.Context, cfg AuthConfig) (*service.AuthService, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var provider ports.AuthProvider
	switch {
	case !cfg.Auth.SSOEnabled():
	case cfg.Dev && cfg.Auth.OAuth.DevEmail != "" && cfg.Auth.OAuth.DiscoveryURL == "":
		p, err := devauth.NewProvider(devauth.Config{
			Email:           cfg.Auth.OAuth.DevEmail,
			SessionDuration: cfg.Auth.SessionTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("create dev auth provider: %w", err)
		}
		logger.Warn("SSO uses the development provider; every SSO login signs in as a fixed user",
			"email", cfg.Auth.OAuth.DevEmail)
		provider = p
	default:
		// Keep the interface nil when discovery fails so SSOEnabled reports false.
		if p := buildOIDCProvider(ctx, cfg, logger); p != nil {
			provider = p
		}
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Users:    cfg.Users,
		Sessions: cfg.Sessions,
		Hasher:   cfg.Hasher,
		Provider: provider,
		Policy: service.SessionPolicy{
			TTL:           cfg.Auth.SessionTTL,
			SingleSession: cfg.Auth.SingleSession,
		},
		Logger:  logger,
		Metrics: cfg.Metrics,
	})
}

func buildOIDCProvider(ctx context.Context, cfg AuthConfig, logger *slog.Logger) *oidc.Provider {
	oauth := cfg.Auth.OAuth
	if oauth.DiscoveryURL == "" || oauth.ClientID == "" || oauth.ClientSecret == "" {
		logger.Warn("AuthModeOAuth selected but required config missing; SSO disabled",
			"discovery_url_empty", oauth.DiscoveryURL == "",
			"client_id_empty", oauth.ClientID == "",
			"client_secret_empty", oauth.ClientSecret == "",
		)
		return nil
	}

	discoveryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	prov, err := oidc.NewProvider(discoveryCtx, oidc.ProviderConfig{
		ClientID:     oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
		RedirectURL:  oauth.RedirectURL,
		Scope:        oauth.Scope,
		DiscoveryURL: oauth.DiscoveryURL,
		HTTPClient:   cfg.HTTPClient,
	})
	if err != nil {
		logger.Warn("failed to create OIDC provider, SSO disabled", "error", err)
		return nil
	}
	logger.Info("SSO enabled", "discovery_url", oauth.DiscoveryURL)
	return prov
}
