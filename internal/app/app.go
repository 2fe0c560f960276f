// Package app wires the configured stores, OAuth client and widget factory.
package app

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/traewellingwidget/traewellingwidget/internal/auth"
	"github.com/traewellingwidget/traewellingwidget/internal/cache"
	"github.com/traewellingwidget/traewellingwidget/internal/config"
	"github.com/traewellingwidget/traewellingwidget/internal/database"
	"github.com/traewellingwidget/traewellingwidget/internal/provider/resilience"
	"github.com/traewellingwidget/traewellingwidget/internal/storage"
	"github.com/traewellingwidget/traewellingwidget/internal/widget"
)

// Provider names in the health registry.
const (
	ProviderTraewelling = "traewelling"
	ProviderOAuth       = "traewelling-oauth"
)

// App holds the long-lived components of a process.
type App struct {
	Config    *config.Config
	Manager   *auth.Manager
	Factory   *widget.Factory
	Providers *resilience.Registry

	// Pool is nil unless the postgres store is configured.
	Pool *pgxpool.Pool

	logger zerolog.Logger
}

type repositories struct {
	tokens     auth.TokenRepository
	verifiers  auth.CodeVerifierRepository
	states     auth.StateRepository
	cacheStore widget.CacheStoreFunc
}

// New connects the configured store and wires every component.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{
		Config:    cfg,
		Providers: resilience.NewRegistry(),
		logger:    logger,
	}

	var repos repositories
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := database.ConnectAndMigrate(ctx, database.Config{DSN: cfg.DatabaseDSN})
		if err != nil {
			return nil, fmt.Errorf("connecting database: %w", err)
		}
		a.Pool = pool
		repos = postgresRepositories(pool)
		logger.Info().Msg("using postgres store")
	default:
		files, err := storage.NewLocal(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening data directory: %w", err)
		}
		repos = fileRepositories(files)
		logger.Info().Str("data_dir", files.BasePath()).Msg("using file store")
	}

	oauthHTTP := resilience.DefaultClientConfig(ProviderOAuth)
	oauthHTTP.Registry = a.Providers
	oauthHTTP.Logger = logger
	// Token requests are not idempotent for a single-use code.
	oauthHTTP.MaxRetries = 1

	oauth, err := auth.NewOAuthClient(auth.ClientConfig{
		Server:                cfg.OAuth.Server,
		ClientID:              cfg.OAuth.ClientID,
		ClientSecret:          cfg.OAuth.ClientSecret,
		AuthorizationEndpoint: cfg.OAuth.AuthorizationEndpoint,
		TokenEndpoint:         cfg.OAuth.TokenEndpoint,
		RedirectURI:           cfg.OAuth.RedirectURI,
		Scopes:                cfg.OAuth.Scopes,
		HTTPClient:            resilience.NewClient(oauthHTTP).HTTPClient(),
		Logger:                logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Manager = auth.NewManager(auth.ManagerConfig{
		OAuth:     oauth,
		Tokens:    repos.tokens,
		Verifiers: repos.verifiers,
		States: auth.NewStateRegistry(auth.StateRegistryConfig{
			Repository: repos.states,
			Logger:     logger,
		}),
		Logger: logger,
	})

	apiHTTP := resilience.DefaultClientConfig(ProviderTraewelling)
	apiHTTP.Registry = a.Providers
	apiHTTP.Logger = logger
	apiHTTP.Timeout = 15 * time.Second

	a.Factory = widget.NewFactory(widget.FactoryConfig{
		Manager:    a.Manager,
		CacheStore: repos.cacheStore,
		HTTPClient: resilience.NewClient(apiHTTP),
		BaseURL:    cfg.APIBaseURL,
		Logger:     logger,
	})
	return a, nil
}

func fileRepositories(files *storage.Local) repositories {
	return repositories{
		tokens:    auth.NewFileTokenRepository(files),
		verifiers: auth.NewFileCodeVerifierRepository(files),
		states:    auth.NewFileStateRepository(files),
		cacheStore: func(ctx context.Context, profile string) (cache.Store, error) {
			return cache.NewFileStore(ctx, files, path.Join("profiles", profile, "cache"))
		},
	}
}

func postgresRepositories(pool *pgxpool.Pool) repositories {
	return repositories{
		tokens:    auth.NewPostgresTokenRepository(pool),
		verifiers: auth.NewPostgresCodeVerifierRepository(pool),
		states:    auth.NewPostgresStateRepository(pool),
		cacheStore: func(_ context.Context, profile string) (cache.Store, error) {
			return cache.NewPostgresStore(pool, profile), nil
		},
	}
}

// Ping checks the database when one is configured.
func (a *App) Ping(ctx context.Context) error {
	if a.Pool == nil {
		return nil
	}
	return a.Pool.Ping(ctx)
}

// Close releases the database pool.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
