package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/traewellingwidget/traewellingwidget/internal/api/models"
)

// Limit is a number of requests per window.
type Limit struct {
	Requests int
	Per      time.Duration
}

var (
	// LoginLimit guards /login and /callback. Every callback costs a token
	// exchange at the authorization server.
	LoginLimit = Limit{Requests: 10, Per: time.Minute}

	// WidgetLimit guards rendering. A cold cache costs one statistics
	// request per day of the range.
	WidgetLimit = Limit{Requests: 30, Per: time.Minute}

	// OpsLimit guards the cheap read-only endpoints.
	OpsLimit = Limit{Requests: 100, Per: time.Minute}
)

// KeyFunc buckets requests for a Limit.
type KeyFunc = httprate.KeyFunc

// ByIP buckets by client address, as rewritten by chi's RealIP.
var ByIP KeyFunc = httprate.KeyByRealIP

// ByProfile buckets by the profile stored by Profile, so a widget polled
// from several devices shares one budget. Requests without a profile fall
// back to ByIP.
func ByProfile(r *http.Request) (string, error) {
	if profile := GetProfile(r.Context()); profile != "" {
		return "profile:" + profile, nil
	}
	return ByIP(r)
}

// RateLimit rejects requests over limit with a 429 problem.
func RateLimit(limit Limit, key KeyFunc) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(math.Ceil(limit.Per.Seconds())))

	return httprate.Limit(
		limit.Requests,
		limit.Per,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			problem := models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.")
			problem.Instance = r.URL.Path
			// One window is the upper bound of the wait.
			w.Header().Set("Retry-After", retryAfter)
			problem.Write(w)
		}),
	)
}
