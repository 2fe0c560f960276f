// Package widget runs one widget invocation: it decides from the profile's
// authentication state what to show, loads the statistics and draws a layout.
// Every failure ends in an error widget, never in an error return.
package widget

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"github.com/traewellingwidget/traewellingwidget/internal/auth"
	"github.com/traewellingwidget/traewellingwidget/internal/render"
	"github.com/traewellingwidget/traewellingwidget/internal/scheme"
	"github.com/traewellingwidget/traewellingwidget/internal/statistics"
	"github.com/traewellingwidget/traewellingwidget/internal/statistics/traewelling"
)

// Messages of the error widgets.
const (
	MsgUnauthenticated = "this profile is unauthenticated.\n\nRun the login command to start the authentication flow."
	MsgFlowStarted     = "authentication flow already started.\n\nPlease wait until it's finished!"
	MsgAuthState       = "authentication state could not be read!"
	MsgDataset         = "dataset could not be loaded!"
	MsgScheme          = "this scheme couldn't be displayed!"
)

// Title heads the widget.
const Title = "🚆 Traewelling"

// Session is the authentication state of the profile.
type Session interface {
	State(ctx context.Context) (auth.State, error)
}

// StatisticsLoader loads a range of days.
type StatisticsLoader interface {
	GetStatisticsForRange(ctx context.Context, days int, reference time.Time) (*statistics.Range, error)
}

// UserInfoFetcher loads the logged-in user.
type UserInfoFetcher interface {
	GetUserInfo(ctx context.Context, maxAge time.Duration) (*traewelling.UserInfo, error)
}

// ServiceConfig holds the dependencies of a widget service.
type ServiceConfig struct {
	Session     Session
	Statistics  StatisticsLoader
	Users       UserInfoFetcher
	Interpreter *scheme.Interpreter
	Logger      zerolog.Logger

	// Now returns the current time. Default: time.Now
	Now func() time.Time

	// Intn picks a layout alternative. Default: math/rand/v2.IntN
	Intn func(n int) int
}

// Service renders the widget of one profile.
type Service struct {
	session     Session
	statistics  StatisticsLoader
	users       UserInfoFetcher
	interpreter *scheme.Interpreter
	logger      zerolog.Logger
	now         func() time.Time
	intn        func(n int) int
}

// NewService creates a new widget service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	intn := cfg.Intn
	if intn == nil {
		intn = rand.IntN
	}
	interpreter := cfg.Interpreter
	if interpreter == nil {
		interpreter = scheme.NewInterpreter(scheme.InterpreterConfig{Logger: cfg.Logger})
	}

	return &Service{
		session:     cfg.Session,
		statistics:  cfg.Statistics,
		users:       cfg.Users,
		interpreter: interpreter,
		logger:      cfg.Logger,
		now:         now,
		intn:        intn,
	}
}

func isAuthError(err error) bool {
	return errors.Is(err, auth.ErrAuthRequired) ||
		errors.Is(err, auth.ErrTokenRefreshFailed) ||
		errors.Is(err, auth.ErrAuthFlowInProgress)
}

func (s *Service) authErrorWidget(err error) *render.Widget {
	if errors.Is(err, auth.ErrAuthFlowInProgress) {
		return render.ErrorWidget(MsgFlowStarted, nil)
	}
	return render.ErrorWidget(MsgUnauthenticated, nil)
}

// Render draws the widget for p.
func (s *Service) Render(ctx context.Context, p Params) *render.Widget {
	logger := s.logger.With().Str("profile", p.Profile).Logger()

	state, err := s.session.State(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to read authentication state")
		return render.ErrorWidget(MsgAuthState, err)
	}
	logger.Debug().Stringer("auth_state", state).Msg("authentication state")

	switch state {
	case auth.StateUnauthenticated:
		return render.ErrorWidget(MsgUnauthenticated, nil)
	case auth.StateFlowStarted:
		return render.ErrorWidget(MsgFlowStarted, nil)
	}

	var url string
	user, err := s.users.GetUserInfo(ctx, 0)
	switch {
	case isAuthError(err):
		logger.Warn().Err(err).Msg("token no longer usable")
		return s.authErrorWidget(err)
	case err != nil:
		logger.Warn().Err(err).Msg("failed to load user info")
	default:
		url = user.ProfileURL()
		logger.Info().Str("username", user.Username).Msg("logged in")
	}

	now := s.now()
	days := p.EffectiveDays(now)

	r, err := s.statistics.GetStatisticsForRange(ctx, days, now)
	if err != nil {
		if isAuthError(err) {
			return s.authErrorWidget(err)
		}
		logger.Error().Err(err).Int("days", days).Msg("failed to load statistics")
		return render.ErrorWidget(MsgDataset, err)
	}

	family := p.Family
	if family == "" {
		family = DefaultFamily
	}
	layout, err := p.Schemes.Choose(family, s.intn)
	if err != nil {
		logger.Error().Err(err).Str("family", family).Msg("no layout for widget family")
		return render.ErrorWidget(MsgScheme, err)
	}

	w := render.NewWidget()
	w.URL = url
	if err := s.interpreter.Render(w, layout, scheme.NewData(r, Title, p.Subtitle())); err != nil {
		logger.Error().Err(err).Msg("failed to render scheme")
		return render.ErrorWidget(MsgScheme, err)
	}
	return w
}
