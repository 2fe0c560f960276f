package widget

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/traewellingwidget/traewellingwidget/internal/auth"
	"github.com/traewellingwidget/traewellingwidget/internal/cache"
	"github.com/traewellingwidget/traewellingwidget/internal/scheme"
	"github.com/traewellingwidget/traewellingwidget/internal/statistics"
	"github.com/traewellingwidget/traewellingwidget/internal/statistics/traewelling"
)

// CacheStoreFunc opens the response cache of a profile.
type CacheStoreFunc func(ctx context.Context, profile string) (cache.Store, error)

// FactoryConfig holds the dependencies shared by all profiles.
type FactoryConfig struct {
	Manager    *auth.Manager
	CacheStore CacheStoreFunc

	// HTTPClient executes API requests. Default: http.DefaultClient
	HTTPClient cache.Doer

	// BaseURL of the Traewelling API. Default: traewelling.DefaultBaseURL
	BaseURL string

	Logger zerolog.Logger
	Now    func() time.Time
}

// Factory wires the components of a profile.
type Factory struct {
	cfg         FactoryConfig
	interpreter *scheme.Interpreter
}

// NewFactory creates a new factory.
func NewFactory(cfg FactoryConfig) *Factory {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Factory{
		cfg:         cfg,
		interpreter: scheme.NewInterpreter(scheme.InterpreterConfig{Logger: cfg.Logger}),
	}
}

// Profile is everything that acts on behalf of one profile.
type Profile struct {
	Name       string
	Session    *auth.Session
	API        *traewelling.Client
	Statistics *statistics.Source
	Widget     *Service
}

// Profile wires the session, API client, statistics source and widget
// service of profile.
func (f *Factory) Profile(ctx context.Context, profile string) (*Profile, error) {
	logger := f.cfg.Logger.With().Str("profile", profile).Logger()

	store, err := f.cfg.CacheStore(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("opening cache of profile %s: %w", profile, err)
	}

	session := f.cfg.Manager.Session(profile)
	api := traewelling.NewClient(traewelling.ClientConfig{
		BaseURL: f.cfg.BaseURL,
		Tokens:  session,
		Cache: cache.New(cache.Config{
			Store:      store,
			HTTPClient: f.cfg.HTTPClient,
			Logger:     logger,
			Now:        f.cfg.Now,
		}),
		Logger: logger,
	})
	source := statistics.NewSource(statistics.SourceConfig{Fetcher: api, Logger: logger})

	return &Profile{
		Name:       profile,
		Session:    session,
		API:        api,
		Statistics: source,
		Widget: NewService(ServiceConfig{
			Session:     session,
			Statistics:  source,
			Users:       api,
			Interpreter: f.interpreter,
			Logger:      logger,
			Now:         f.cfg.Now,
		}),
	}, nil
}
