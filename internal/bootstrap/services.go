package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/seclab-api/config"
	"github.com/target/seclab-api/internal/adapters/passwords"
	"github.com/target/seclab-api/internal/core"
	"github.com/target/seclab-api/internal/data"
	"github.com/target/seclab-api/internal/devseed"
	"github.com/target/seclab-api/internal/observability/statsd"
	"github.com/target/seclab-api/internal/ports"
	"github.com/target/seclab-api/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Auth          *service.AuthService
	Accounts      *service.AccountService
	Orders        *service.OrderService
	Transactions  *service.TransactionService
	Feedback      *service.FeedbackService
	Stations      *service.StationService
	Files         *service.FileService
	SessionReaper *service.SessionReaperService
	Observability ObservabilityContainer
}

// Close releases resources held by the services.
func (c ServiceContainer) Close() error {
	var errs []error
	if c.Files != nil {
		if err := c.Files.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close file service: %w", err))
		}
	}
	if c.Observability.MetricsSink != nil {
		if err := c.Observability.MetricsSink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close statsd client: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// Sink returns the metrics sink, or nil when metrics are disabled.
//
//nolint:ireturn // callers accept the Sink port.
func (o ObservabilityContainer) Sink() statsd.Sink {
	if o.MetricsSink == nil {
		return nil
	}
	return o.MetricsSink
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB // Required when Config.Store is postgres
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports; no business rules here.
type serviceRepositories struct {
	Users        core.UserRepository
	Orders       core.OrderRepository
	Transactions core.TransactionRepository
	Feedback     core.FeedbackRepository
	Stations     core.StationRepository
	Seed         devseed.Stores
}

// buildObservability configures the metrics sink.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obs := ObservabilityContainer{MetricsConfig: cfg.Metrics}
	if !cfg.Metrics.IsEnabled() {
		return obs
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled:    true,
		Address:    cfg.Metrics.StatsdAddress,
		Prefix:     cfg.Metrics.Prefix,
		Logger:     logger,
		GlobalTags: cfg.Metrics.Tags,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return obs
	}
	obs.MetricsSink = client
	return obs
}

// buildRepositories selects the memory or PostgreSQL repositories.
func buildRepositories(store config.StoreKind, db *sql.DB) (*serviceRepositories, error) {
	if store == config.StorePostgres {
		if db == nil {
			return nil, errors.New("postgres store selected but database not connected")
		}
		seed := devseed.NewPostgresStores(db)
		return &serviceRepositories{
			Users:        seed.Users,
			Orders:       data.NewOrderRepo(db),
			Transactions: data.NewTransactionRepo(db),
			Feedback:     data.NewFeedbackRepo(db),
			Stations:     data.NewStationRepo(db),
			Seed:         seed,
		}, nil
	}

	mem := devseed.NewMemoryStores()
	return &serviceRepositories{
		Users:        mem.Users,
		Orders:       mem.Orders,
		Transactions: mem.Transactions,
		Feedback:     mem.Feedback,
		Stations:     mem.Stations,
		Seed:         mem.Seedable(),
	}, nil
}

// NewServices builds repositories, seeds them when configured, and constructs every service.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service config is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	repos, err := buildRepositories(cfg.Store, deps.DB)
	if err != nil {
		return ServiceContainer{}, err
	}
	hasher := passwords.NewBcryptHasher(cfg.Auth.BcryptCost)

	if cfg.SeedOnStart {
		if seedErr := devseed.Run(ctx, repos.Seed, hasher, logger); seedErr != nil {
			return ServiceContainer{}, fmt.Errorf("seed lab data: %w", seedErr)
		}
	}

	sessions, err := NewSessionStore(cfg.SessionStore, deps.RedisClient, cfg.Redis.SessionPrefix)
	if err != nil {
		return ServiceContainer{}, err
	}

	obs := buildObservability(logger, cfg.Observability)
	container, err := buildDomainServices(ctx, domainServicesOptions{
		cfg:      cfg,
		repos:    repos,
		hasher:   hasher,
		sessions: sessions,
		obs:      obs,
		logger:   logger,
	})
	if err != nil {
		if closeErr := obs.MetricsSink.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return ServiceContainer{}, err
	}
	return container, nil
}

type domainServicesOptions struct {
	cfg      *config.AppConfig
	repos    *serviceRepositories
	hasher   ports.PasswordHasher
	sessions ports.SessionStore
	obs      ObservabilityContainer
	logger   *slog.Logger
}

func buildDomainServices(ctx context.Context, opts domainServicesOptions) (ServiceContainer, error) {
	metrics := opts.obs.Sink()

	auth, err := BuildAuthService(ctx, AuthConfig{
		Auth:     opts.cfg.Auth,
		Dev:      opts.cfg.IsDev,
		Users:    opts.repos.Users,
		Sessions: opts.sessions,
		Hasher:   opts.hasher,
		Metrics:  metrics,
		Logger:   opts.logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create auth service: %w", err)
	}

	accounts, err := service.NewAccountService(service.AccountServiceOptions{
		Users:  opts.repos.Users,
		Hasher: opts.hasher,
		Logger: opts.logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create account service: %w", err)
	}

	files, err := service.NewFileService(service.FileServiceOptions{
		BaseDir: opts.cfg.HTTP.FilesBaseDir,
		Logger:  opts.logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create file service: %w", err)
	}

	reaper, err := buildSessionReaper(opts.cfg.Auth.SessionReapInterval, opts.sessions, metrics, opts.logger)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create session reaper: %w", err)
	}

	return ServiceContainer{
		Auth:     auth,
		Accounts: accounts,
		Orders: service.NewOrderService(service.OrderServiceOptions{
			Repo:    opts.repos.Orders,
			Logger:  opts.logger,
			Metrics: metrics,
		}),
		Transactions:  service.NewTransactionService(opts.repos.Transactions),
		Feedback:      service.NewFeedbackService(opts.repos.Feedback),
		Stations:      service.NewStationService(opts.repos.Stations),
		Files:         files,
		SessionReaper: reaper,
		Observability: opts.obs,
	}, nil
}

// buildSessionReaper returns nil when the store expires sessions itself or the interval is zero.
func buildSessionReaper(
	interval time.Duration,
	sessions ports.SessionStore,
	metrics statsd.Sink,
	logger *slog.Logger,
) (*service.SessionReaperService, error) {
	purger, ok := sessions.(ports.ExpiredSessionPurger)
	if !ok || interval <= 0 {
		return nil, nil //nolint:nilnil // absent reaper is a valid configuration
	}
	return service.NewSessionReaperService(service.SessionReaperServiceOptions{
		Store:    purger,
		Interval: interval,
		Logger:   logger,
		Metrics:  metrics,
	})
}
