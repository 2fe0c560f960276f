package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/traewellingwidget/traewellingwidget/internal/api/middleware"
)

func TestProfile(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.With(middleware.Profile).Get("/widgets/{profile}", func(w http.ResponseWriter, r *http.Request) {
		got = middleware.GetProfile(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		path   string
		status int
		want   string
	}{
		{path: "/widgets/0", status: http.StatusOK, want: "0"},
		{path: "/widgets/work_phone-2", status: http.StatusOK, want: "work_phone-2"},
		{path: "/widgets/..%2Fsecrets", status: http.StatusBadRequest},
		{path: "/widgets/a.b", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got = ""
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.want, got)
			if tt.status == http.StatusBadRequest {
				assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
				assert.Contains(t, rec.Body.String(), `"field":"profile"`)
			}
		})
	}
}

func TestGetProfile_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	assert.Empty(t, middleware.GetProfile(req.Context()))
}
