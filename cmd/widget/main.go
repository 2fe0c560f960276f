// Package main provides the traewelling-widget command: it renders trip
// statistics widgets, runs the OAuth2 login of profiles and serves the
// callback server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/traewellingwidget/traewellingwidget/internal/app"
	"github.com/traewellingwidget/traewellingwidget/internal/config"
	"github.com/traewellingwidget/traewellingwidget/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "traewelling-widget"

const usage = `usage: traewelling-widget [flags] [command]

commands:
  render     render the widget of --profile (default)
  login      start the OAuth2 flow and print the authorization URL
  callback   complete the flow with the redirect URL, e.g. callback 'http://localhost:8080/callback?code=...'
  status     print the authentication state of --profile
  logout     forget the token of --profile
  serve      run the callback server
  version    print the version
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// command is a subcommand. Errors it returns exit with status 1.
type command func(ctx context.Context, env *environment, args []string) error

type environment struct {
	cfg    *config.Config
	app    *app.App
	logger zerolog.Logger
	stdout io.Writer
	stderr io.Writer
}

var commands = map[string]command{
	"render":   renderCommand,
	"login":    loginCommand,
	"callback": callbackCommand,
	"status":   statusCommand,
	"logout":   logoutCommand,
	"serve":    serveCommand,
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, rest, err := config.Loader{}.Load(serviceName, args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		fmt.Fprint(stderr, usage)
		return 2
	}

	name := "render"
	if len(rest) > 0 {
		name, rest = rest[0], rest[1:]
	}
	if name == "version" {
		fmt.Fprintf(stdout, "%s %s (built %s)\n", serviceName, Version, BuildTime)
		return 0
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		fmt.Fprint(stderr, usage)
		return 2
	}

	logger := newLogger(cfg, stderr)

	tp, err := telemetry.Init(ctx, telemetry.FromConfig(serviceName, Version, cfg.Telemetry))
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize telemetry")
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize")
		return 1
	}
	defer a.Close()

	env := &environment{cfg: cfg, app: a, logger: logger, stdout: stdout, stderr: stderr}
	if err := cmd(ctx, env, rest); err != nil {
		logger.Error().Err(err).Str("command", name).Msg("command failed")
		return 1
	}
	return 0
}

// newLogger logs to w, human readable with --pretty.
func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	if cfg.PrettyLogs {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).
		Level(cfg.Level()).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()
}
