package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/traewellingwidget/traewellingwidget/internal/api/middleware"
	"github.com/traewellingwidget/traewellingwidget/internal/api/models"
	"github.com/traewellingwidget/traewellingwidget/internal/api/response"
	"github.com/traewellingwidget/traewellingwidget/internal/render"
	"github.com/traewellingwidget/traewellingwidget/internal/widget"
)

// WidgetHandler renders widgets.
type WidgetHandler struct {
	profiles Profiles
	defaults widget.Params
	logger   zerolog.Logger
}

// NewWidgetHandler creates a new WidgetHandler. Query parameters override defaults.
func NewWidgetHandler(profiles Profiles, defaults widget.Params, logger zerolog.Logger) *WidgetHandler {
	return &WidgetHandler{profiles: profiles, defaults: defaults, logger: logger}
}

// Render handles GET /v1/widgets/{profile}.
//
// Query parameters: days, date, family, parameter (the JSON widget parameter)
// and format (json or text). Fetch and scheme failures are rendered into the
// widget and still answer 200.
func (h *WidgetHandler) Render(w http.ResponseWriter, r *http.Request) {
	params, fieldErrors := h.params(r)
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid widget parameters", fieldErrors)
		return
	}

	format := r.URL.Query().Get("format")
	if format != "" && format != "json" && format != "text" {
		response.BadRequest(w, r, "invalid widget parameters", []models.FieldError{{
			Field: "format", Message: "must be json or text", Code: "INVALID_VALUE",
		}})
		return
	}

	p, err := h.profiles.Profile(r.Context(), params.Profile)
	if err != nil {
		h.logger.Error().Err(err).Str("profile", params.Profile).Msg("failed to open profile")
		response.InternalError(w, r, "profile could not be opened")
		return
	}

	result := p.Widget.Render(r.Context(), params)

	if format == "text" {
		var buf bytes.Buffer
		if err := render.WriteText(&buf, result); err != nil {
			response.InternalError(w, r, "widget could not be written")
			return
		}
		response.Text(w, r, http.StatusOK, buf.String())
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}

func (h *WidgetHandler) params(r *http.Request) (widget.Params, []models.FieldError) {
	params := h.defaults
	q := r.URL.Query()
	var fieldErrors []models.FieldError

	if raw := q.Get("parameter"); raw != "" {
		if err := params.ApplyParameter(raw); err != nil {
			fieldErrors = append(fieldErrors, models.FieldError{Field: "parameter", Message: err.Error(), Code: "INVALID_FORMAT"})
		}
	}
	if raw := q.Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 {
			fieldErrors = append(fieldErrors, models.FieldError{Field: "days", Message: "must be a positive number", Code: "OUT_OF_RANGE"})
		}
		params.Days = days
	}
	if raw := q.Get("date"); raw != "" {
		params.Date = raw
	}
	if raw := q.Get("family"); raw != "" {
		params.Family = raw
	}

	// The path names the profile, a profile in the JSON parameter is ignored.
	params.Profile = middleware.GetProfile(r.Context())
	return params, fieldErrors
}
