package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/traewellingwidget/traewellingwidget/internal/api/middleware"
	"github.com/traewellingwidget/traewellingwidget/internal/api/models"
	"github.com/traewellingwidget/traewellingwidget/internal/api/response"
	"github.com/traewellingwidget/traewellingwidget/internal/auth"
	"github.com/traewellingwidget/traewellingwidget/internal/statistics/traewelling"
	"github.com/traewellingwidget/traewellingwidget/internal/widget"
)

// Profiles opens the components of a profile.
type Profiles interface {
	Profile(ctx context.Context, profile string) (*widget.Profile, error)
}

// AuthHandler drives the OAuth2 flow of the widget profiles.
type AuthHandler struct {
	manager  *auth.Manager
	profiles Profiles
	logger   zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(manager *auth.Manager, profiles Profiles, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{manager: manager, profiles: profiles, logger: logger}
}

// Login handles GET /login/{profile}: it starts a new flow and redirects to
// the authorization page.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	profile := middleware.GetProfile(r.Context())

	uri, err := h.manager.Session(profile).StartFlow(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Str("profile", profile).Msg("failed to start authentication flow")
		response.InternalError(w, r, "authentication flow could not be started")
		return
	}

	h.logger.Info().Str("profile", profile).Msg("authentication flow started")
	http.Redirect(w, r, uri, http.StatusFound)
}

// Callback handles GET /callback, the redirect target of the authorization
// server. The state identifies the profile.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	params, err := auth.ParseCallbackQuery(r.URL.Query())
	if err != nil {
		h.writeAuthError(w, r, "", err)
		return
	}

	profile, _, err := h.manager.CompleteCallback(r.Context(), params)
	if err != nil {
		h.writeAuthError(w, r, profile, err)
		return
	}

	result := models.LoginResult{
		Profile: profile,
		Message: "authentication successful",
	}

	user, err := h.userInfo(r.Context(), profile)
	if err != nil {
		h.logger.Warn().Err(err).Str("profile", profile).Msg("failed to load user info after login")
	} else {
		result.Username = user.Username
		result.DisplayName = user.DisplayName
		result.ProfileURL = user.ProfileURL()
		result.Message = "logged in as " + user.Username
	}

	h.logger.Info().Str("profile", profile).Str("username", result.Username).Msg("authentication flow completed")
	response.JSON(w, r, http.StatusOK, result)
}

// Status handles GET /v1/profiles/{profile}/auth.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	profile := middleware.GetProfile(r.Context())

	state, err := h.manager.Session(profile).State(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Str("profile", profile).Msg("failed to read authentication state")
		response.InternalError(w, r, "authentication state could not be read")
		return
	}
	response.JSON(w, r, http.StatusOK, models.AuthStatus{Profile: profile, State: state.String()})
}

// Logout handles DELETE /v1/profiles/{profile}/auth.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	profile := middleware.GetProfile(r.Context())

	if err := h.manager.Session(profile).Logout(r.Context()); err != nil {
		h.logger.Error().Err(err).Str("profile", profile).Msg("failed to log out")
		response.InternalError(w, r, "profile could not be logged out")
		return
	}
	h.logger.Info().Str("profile", profile).Msg("logged out")
	response.NoContent(w, r)
}

func (h *AuthHandler) writeAuthError(w http.ResponseWriter, r *http.Request, profile string, err error) {
	h.logger.Warn().Err(err).Str("profile", profile).Msg("authentication callback failed")

	switch {
	case errors.Is(err, auth.ErrAuthorizationDenied):
		response.AuthorizationDenied(w, r, err.Error())
	case errors.Is(err, auth.ErrMissingCode):
		response.BadRequest(w, r, "authorization code missing", []models.FieldError{{
			Field: "code", Message: "required", Code: "REQUIRED",
		}})
	case errors.Is(err, auth.ErrStateMismatch):
		response.BadRequest(w, r, "unknown or expired state", []models.FieldError{{
			Field: "state", Message: "does not match a pending authentication flow", Code: "STATE_MISMATCH",
		}})
	case errors.Is(err, auth.ErrAuthRequired):
		response.Conflict(w, r, "no authentication flow is pending for this profile")
	default:
		response.UpstreamError(w, r, "token exchange failed")
	}
}

func (h *AuthHandler) userInfo(ctx context.Context, profile string) (*traewelling.UserInfo, error) {
	p, err := h.profiles.Profile(ctx, profile)
	if err != nil {
		return nil, err
	}
	return p.API.GetUserInfo(ctx, 0)
}
