// Package main provides the worker that keeps widget statistics caches warm.
// It refreshes on Pub/Sub requests when a project is configured and on a
// fixed interval otherwise.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/traewellingwidget/traewellingwidget/internal/api/handler"
	"github.com/traewellingwidget/traewellingwidget/internal/api/middleware"
	"github.com/traewellingwidget/traewellingwidget/internal/api/response"
	"github.com/traewellingwidget/traewellingwidget/internal/app"
	"github.com/traewellingwidget/traewellingwidget/internal/config"
	"github.com/traewellingwidget/traewellingwidget/internal/telemetry"
	"github.com/traewellingwidget/traewellingwidget/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "traewelling-worker"

func main() {
	cfg, _, err := config.Loader{}.Load(serviceName, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	out := zerolog.New(os.Stdout)
	if cfg.PrettyLogs {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}
	log := out.Level(cfg.Level()).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().Str("build_time", BuildTime).Msg("starting worker")

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("worker failed")
		os.Exit(1)
	}
	log.Info().Msg("worker stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.FromConfig(serviceName, Version, cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Profiles:    cfg.Worker.Profiles,
			Days:        cfg.Widget.Days,
			Concurrency: cfg.Worker.Concurrency,
			Timeout:     cfg.Worker.Timeout,
			Interval:    cfg.Worker.Interval,
		},
		Profiles: a.Factory,
		Logger:   log,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           healthRouter(a, job, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	if cfg.PubSub.ProjectID != "" {
		subscriber, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			RefreshJob:       job,
			Logger:           log,
		})
		if err != nil {
			return err
		}
		defer subscriber.Close()

		if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("pubsub handler stopped")
		}
	} else {
		log.Info().Dur("interval", cfg.Worker.Interval).Msg("refreshing on schedule")
		job.Schedule(ctx)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("health server forced to shutdown: %w", err)
	}
	return nil
}

func healthRouter(a *app.App, job *worker.RefreshJob, log zerolog.Logger) http.Handler {
	ops := handler.NewOpsHandler(Version, BuildTime, a.Ping, a.Providers)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.ContentTypeJSON)
	r.Get("/health", ops.HealthCheck)
	r.Get("/ready", ops.ReadinessCheck)
	r.Get("/status", ops.SystemStatus)
	r.Get("/refresh", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, job.MetricsSnapshot())
	})
	return r
}
