package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/traewellingwidget/traewellingwidget/internal/api/models"
)

type profileKey struct{}

// Profile names become path components of the file store.
var profilePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Profile validates the {profile} URL parameter and stores it in the request
// context.
func Profile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profile := chi.URLParam(r, "profile")
		if !profilePattern.MatchString(profile) {
			problem := models.NewBadRequest(GetRequestID(r.Context()), "invalid profile", []models.FieldError{{
				Field:   "profile",
				Message: "must be 1 to 64 letters, digits, '-' or '_'",
				Code:    "INVALID_FORMAT",
			}})
			problem.Instance = r.URL.Path
			problem.Write(w)
			return
		}

		ctx := context.WithValue(r.Context(), profileKey{}, profile)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetProfile returns the profile stored by Profile, or "".
func GetProfile(ctx context.Context) string {
	if p, ok := ctx.Value(profileKey{}).(string); ok {
		return p
	}
	return ""
}
