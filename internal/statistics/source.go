package statistics

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// ErrDataFetchFailed is returned when any day of a range could not be loaded.
var ErrDataFetchFailed = errors.New("statistics could not be loaded")

const instrumentationName = "github.com/traewellingwidget/traewellingwidget/internal/statistics"

// DateLayout is the format of statistics dates.
const DateLayout = "2006-01-02"

// maxCacheBudget caps how long a day's statistics are served from cache.
const maxCacheBudget = 90 * 24 * time.Hour

// DayFetchError reports the day that broke a range.
type DayFetchError struct {
	Date string
	Err  error
}

func (e *DayFetchError) Error() string {
	return fmt.Sprintf("fetching statistics for %s: %v", e.Date, e.Err)
}

func (e *DayFetchError) Unwrap() []error {
	return []error{ErrDataFetchFailed, e.Err}
}

// DailyFetcher loads the statistics page of one date. A nil Day without an
// error means the API returned no data for the date.
type DailyFetcher interface {
	GetDailyStatistics(ctx context.Context, date string, maxAge time.Duration) (*Day, error)
}

// SourceConfig holds configuration for the statistics source.
type SourceConfig struct {
	Fetcher DailyFetcher
	Logger  zerolog.Logger
}

// Source assembles daily statistics into ranges.
type Source struct {
	fetcher  DailyFetcher
	logger   zerolog.Logger
	failures metric.Int64Counter
}

// NewSource creates a new statistics source.
func NewSource(cfg SourceConfig) *Source {
	failures, _ := otel.Meter(instrumentationName).Int64Counter("statistics.fetch.failures",
		metric.WithDescription("Daily statistics that could not be loaded"))

	return &Source{
		fetcher:  cfg.Fetcher,
		logger:   cfg.Logger,
		failures: failures,
	}
}

// CacheBudget is the freshness window for the day i days before the reference
// date: one extra day for every three days back, at most 90 days.
func CacheBudget(i int) time.Duration {
	budget := time.Duration(i/3) * 24 * time.Hour
	return min(budget, maxCacheBudget)
}

// GetStatisticsForRange loads the days reference, reference-1, ... for days
// days. The first failing day aborts the range with a *DayFetchError.
func (s *Source) GetStatisticsForRange(ctx context.Context, days int, reference time.Time) (*Range, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "statistics.GetStatisticsForRange")
	defer span.End()
	span.SetAttributes(attribute.Int("days", days))

	r := &Range{Days: make([]DayStatistics, 0, max(days, 0))}
	for i := 0; i < days; i++ {
		date := reference.AddDate(0, 0, -i).Format(DateLayout)
		budget := CacheBudget(i)

		s.logger.Debug().
			Str("date", date).
			Int("cache_expiration_minutes", int(budget.Minutes())).
			Msg("fetching daily statistics")

		day, err := s.fetcher.GetDailyStatistics(ctx, date, budget)
		if err != nil {
			if s.failures != nil {
				s.failures.Add(ctx, 1)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "daily statistics failed")
			return nil, &DayFetchError{Date: date, Err: err}
		}
		if day == nil {
			continue
		}

		// The API lists a day's statuses newest first.
		d := *day
		d.Statuses = slices.Clone(day.Statuses)
		slices.Reverse(d.Statuses)

		r.Days = append(r.Days, DayStatistics{Date: date, Day: d})
	}

	slices.Reverse(r.Days)
	return r, nil
}
