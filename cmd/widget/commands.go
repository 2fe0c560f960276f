package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/common-nighthawk/go-figure"

	"github.com/traewellingwidget/traewellingwidget/internal/api"
	"github.com/traewellingwidget/traewellingwidget/internal/api/middleware"
	"github.com/traewellingwidget/traewellingwidget/internal/auth"
	"github.com/traewellingwidget/traewellingwidget/internal/render"
)

func renderCommand(ctx context.Context, env *environment, _ []string) error {
	params, err := env.cfg.WidgetParams()
	if err != nil {
		return fmt.Errorf("invalid widget parameter: %w", err)
	}

	p, err := env.app.Factory.Profile(ctx, params.Profile)
	if err != nil {
		return err
	}

	w := p.Widget.Render(ctx, params)
	if env.cfg.Output == "json" {
		data, err := w.MarshalIndent()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(env.stdout, string(data))
		return err
	}
	return render.WriteText(env.stdout, w)
}

func loginCommand(ctx context.Context, env *environment, _ []string) error {
	profile := env.cfg.Widget.Profile
	authorizeURL, err := env.app.Manager.Session(profile).StartFlow(ctx)
	if err != nil {
		return fmt.Errorf("starting authentication flow: %w", err)
	}

	fmt.Fprintf(env.stdout, "Open this URL to authorize profile %s:\n\n%s\n\n", profile, authorizeURL)
	fmt.Fprintln(env.stdout, "Then let the callback server receive the redirect, or pass the redirect URL to the callback command.")
	return nil
}

func callbackCommand(ctx context.Context, env *environment, args []string) error {
	if len(args) != 1 {
		return errors.New("callback expects the redirect URL")
	}

	profile := env.cfg.Widget.Profile
	session := env.app.Manager.Session(profile)
	expected, err := session.ExpectedState(ctx)
	if err != nil {
		return err
	}
	if _, err := session.FetchTokenFromCodeRedirect(ctx, args[0], expected); err != nil {
		return fmt.Errorf("completing authentication flow: %w", err)
	}

	fmt.Fprintf(env.stdout, "profile %s authenticated\n", profile)
	return nil
}

func statusCommand(ctx context.Context, env *environment, _ []string) error {
	profile := env.cfg.Widget.Profile
	p, err := env.app.Factory.Profile(ctx, profile)
	if err != nil {
		return err
	}

	state, err := p.Session.State(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "profile %s: %s\n", profile, state)

	if state == auth.StateAuthenticated || state == auth.StateTokenExpired {
		user, err := p.API.GetUserInfo(ctx, time.Hour)
		if err != nil {
			env.logger.Warn().Err(err).Msg("failed to load user info")
			return nil
		}
		fmt.Fprintf(env.stdout, "user: %s (%s)\n", user.Username, user.ProfileURL())
	}
	return nil
}

func logoutCommand(ctx context.Context, env *environment, _ []string) error {
	profile := env.cfg.Widget.Profile
	if err := env.app.Manager.Session(profile).Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "profile %s logged out\n", profile)
	return nil
}

func serveCommand(ctx context.Context, env *environment, _ []string) error {
	fmt.Fprintln(env.stderr, figure.NewFigure("traewelling", "cybermedium", true).String())

	metrics, err := middleware.NewMetrics()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	defaults, err := env.cfg.WidgetParams()
	if err != nil {
		return fmt.Errorf("invalid widget parameter: %w", err)
	}

	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         env.logger,
		ServiceName:    serviceName,
		Metrics:        metrics,
		Manager:        env.app.Manager,
		Profiles:       env.app.Factory,
		WidgetDefaults: defaults,
		Store:          env.app.Ping,
		Providers:      env.app.Providers,
		RequireTLS:     env.cfg.RequireTLS,
	})

	server := &http.Server{
		Addr:              env.cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Rendering may fetch up to one statistics page per day.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		env.logger.Info().
			Str("addr", server.Addr).
			Str("redirect_uri", env.cfg.OAuth.RedirectURI).
			Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	env.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	env.logger.Info().Msg("server stopped")
	return nil
}
