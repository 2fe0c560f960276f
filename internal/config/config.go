// Package config loads the settings shared by the widget and worker binaries.
//
// Values are layered from lowest to highest precedence: built-in defaults,
// a .env file in the working directory, an optional config file, TRAEWELLING_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/traewellingwidget/traewellingwidget/internal/widget"
)

// EnvPrefix prefixes every environment variable, e.g. TRAEWELLING_OAUTH_CLIENT_ID.
const EnvPrefix = "TRAEWELLING"

// Store backends.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// Config is the complete configuration.
type Config struct {
	// Widget holds the default widget parameters.
	Widget WidgetConfig `mapstructure:"widget"`

	// DataDir is the root of the file store (profiles/, states.json).
	DataDir string `mapstructure:"data_dir" validate:"required"`

	// APIBaseURL is the Traewelling API root.
	APIBaseURL string `mapstructure:"api_base_url" validate:"required,url"`

	OAuth OAuthConfig `mapstructure:"oauth"`

	// ListenAddr is the address of the callback server and of the worker's
	// health endpoints.
	ListenAddr string `mapstructure:"listen_addr" validate:"required"`

	// RequireTLS rejects callback requests forwarded as plain HTTP.
	RequireTLS bool `mapstructure:"require_tls"`

	// Store selects where tokens, states and cache entries live.
	Store string `mapstructure:"store" validate:"oneof=file postgres"`

	// DatabaseDSN is required for the postgres store.
	DatabaseDSN string `mapstructure:"database_dsn" validate:"required_if=Store postgres"`

	// Output is the format of rendered widgets on stdout.
	Output string `mapstructure:"output" validate:"oneof=text json"`

	LogLevel   string `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
	PrettyLogs bool   `mapstructure:"pretty_logs"`

	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

// WidgetConfig holds the widget parameters before the JSON widget parameter
// is applied.
type WidgetConfig struct {
	Profile string `mapstructure:"profile" validate:"required"`
	Days    int    `mapstructure:"days" validate:"min=1"`
	Date    string `mapstructure:"date" validate:"omitempty,datetime=2006-01-02"`
	Family  string `mapstructure:"family" validate:"required"`

	// Parameter is the JSON widget parameter, e.g. {"profile":"1","days":7}.
	Parameter string `mapstructure:"parameter"`
}

// OAuthConfig holds the OAuth2 client settings.
type OAuthConfig struct {
	Server                string   `mapstructure:"server" validate:"required,url"`
	ClientID              string   `mapstructure:"client_id" validate:"required"`
	ClientSecret          string   `mapstructure:"client_secret"`
	AuthorizationEndpoint string   `mapstructure:"authorization_endpoint"`
	TokenEndpoint         string   `mapstructure:"token_endpoint"`
	RedirectURI           string   `mapstructure:"redirect_uri" validate:"required,url"`
	Scopes                []string `mapstructure:"scopes"`
}

// TelemetryConfig holds the OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	Environment string `mapstructure:"environment"`

	// SampleRatio is the share of root traces recorded.
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

// PubSubConfig holds the worker's Pub/Sub settings.
type PubSubConfig struct {
	ProjectID    string `mapstructure:"project_id"`
	Subscription string `mapstructure:"subscription"`
}

// WorkerConfig holds the cache refresh settings. Without a Pub/Sub project the
// worker refreshes every Interval.
type WorkerConfig struct {
	Profiles    []string      `mapstructure:"profiles" validate:"min=1,dive,required"`
	Concurrency int           `mapstructure:"concurrency" validate:"min=1"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Interval    time.Duration `mapstructure:"interval" validate:"gt=0"`
}

func defaults() map[string]any {
	return map[string]any{
		"widget.profile":               widget.DefaultProfile,
		"widget.days":                  widget.DefaultDays,
		"widget.date":                  "",
		"widget.family":                widget.DefaultFamily,
		"widget.parameter":             "",
		"data_dir":                     "data",
		"api_base_url":                 "https://traewelling.de/api/v1",
		"oauth.server":                 "https://traewelling.de/",
		"oauth.client_id":              "96",
		"oauth.client_secret":          "",
		"oauth.authorization_endpoint": "/oauth/authorize",
		"oauth.token_endpoint":         "/oauth/token",
		"oauth.redirect_uri":           "http://localhost:8080/callback",
		"oauth.scopes":                 []string{"read-statistics"},
		"listen_addr":                  ":8080",
		"require_tls":                  false,
		"store":                        StoreFile,
		"database_dsn":                 "",
		"output":                       "text",
		"log_level":                    "info",
		"pretty_logs":                  false,
		"telemetry.enabled":            false,
		"telemetry.endpoint":           "localhost:4317",
		"telemetry.environment":        "development",
		"telemetry.sample_ratio":       1.0,
		"pubsub.project_id":            "",
		"pubsub.subscription":          "widget-refresh",
		"worker.profiles":              []string{widget.DefaultProfile},
		"worker.concurrency":           2,
		"worker.timeout":               "2m",
		"worker.interval":              "30m",
	}
}

// flags maps flag names to config keys.
var flags = map[string]string{
	"profile":          "widget.profile",
	"days":             "widget.days",
	"date":             "widget.date",
	"family":           "widget.family",
	"widget-parameter": "widget.parameter",
	"data-dir":         "data_dir",
	"api-base-url":     "api_base_url",
	"oauth-server":     "oauth.server",
	"client-id":        "oauth.client_id",
	"redirect-uri":     "oauth.redirect_uri",
	"listen":           "listen_addr",
	"require-tls":      "require_tls",
	"store":            "store",
	"database-dsn":     "database_dsn",
	"output":           "output",
	"log-level":        "log_level",
	"pretty":           "pretty_logs",
	"telemetry":        "telemetry.enabled",
	"refresh-profiles": "worker.profiles",
}

// EnvName returns the environment variable of a config key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Loader reads configuration. The zero value reads the process environment
// and working directory.
type Loader struct {
	// Getwd locates the .env file. Default: os.Getwd
	Getwd func() (string, error)
}

// Load parses args (without the program name) and returns the configuration
// and the remaining positional arguments.
func (l Loader) Load(name string, args []string) (*Config, []string, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	configFile := fs.StringP("config", "c", "", "Config file (yaml, json or toml)")
	fs.StringP("profile", "p", widget.DefaultProfile, "Widget profile")
	fs.Int("days", widget.DefaultDays, "Number of days shown")
	fs.String("date", "", "Show statistics since this date (YYYY-MM-DD), overrides --days")
	fs.String("family", widget.DefaultFamily, "Widget family (small, large)")
	fs.String("widget-parameter", "", "JSON widget parameter")
	fs.String("data-dir", "data", "Directory of the file store")
	fs.String("api-base-url", "https://traewelling.de/api/v1", "Traewelling API base URL")
	fs.String("oauth-server", "https://traewelling.de/", "OAuth2 server")
	fs.String("client-id", "96", "OAuth2 client id")
	fs.String("redirect-uri", "http://localhost:8080/callback", "OAuth2 redirect URI")
	fs.String("listen", ":8080", "Callback server listen address")
	fs.String("store", StoreFile, "Store backend (file, postgres)")
	fs.String("database-dsn", "", "PostgreSQL connection string")
	fs.StringP("output", "o", "text", "Widget output format (text, json)")
	fs.StringP("log-level", "l", "info", "Logging level (trace, debug, info, warn, error)")
	fs.Bool("pretty", false, "Human readable console logs")
	fs.Bool("telemetry", false, "Export traces and metrics over OTLP")
	fs.Bool("require-tls", false, "Reject callbacks forwarded as plain HTTP")
	fs.StringSlice("refresh-profiles", []string{widget.DefaultProfile}, "Profiles kept warm by the worker")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	if err := l.loadDotEnv(v); err != nil {
		return nil, nil, err
	}

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("reading config file %s: %w", *configFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for flag, key := range flags {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, nil, fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, fs.Args(), nil
}

// loadDotEnv lowers the defaults to the values of a .env file in the working
// directory. A missing file is not an error.
func (l Loader) loadDotEnv(v *viper.Viper) error {
	getwd := l.Getwd
	if getwd == nil {
		getwd = os.Getwd
	}
	wd, err := getwd()
	if err != nil {
		return err
	}

	env, err := godotenv.Read(filepath.Join(wd, ".env"))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("reading .env: %w", err)
	}

	for _, key := range v.AllKeys() {
		if value, ok := env[EnvName(key)]; ok {
			v.SetDefault(key, value)
		}
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// WidgetParams returns the widget parameters with the JSON widget parameter
// applied.
func (c *Config) WidgetParams() (widget.Params, error) {
	p := widget.DefaultParams()
	p.Profile = c.Widget.Profile
	p.Days = c.Widget.Days
	p.Date = c.Widget.Date
	p.Family = c.Widget.Family
	if err := p.ApplyParameter(c.Widget.Parameter); err != nil {
		return widget.Params{}, err
	}
	return p, nil
}

// Level returns the configured zerolog level, info when it cannot be parsed.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
