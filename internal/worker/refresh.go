package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/traewellingwidget/traewellingwidget/internal/auth"
	"github.com/traewellingwidget/traewellingwidget/internal/widget"
)

const meterName = "github.com/traewellingwidget/traewellingwidget/internal/worker"

// Profiles opens widget profiles.
type Profiles interface {
	Profile(ctx context.Context, profile string) (*widget.Profile, error)
}

// Outcome is the result of refreshing one profile.
type Outcome string

const (
	OutcomeRefreshed Outcome = "refreshed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// RefreshJob loads the user info and the statistics range of each configured
// profile through the profile's response cache.
type RefreshJob struct {
	config   RefreshConfig
	profiles Profiles
	logger   zerolog.Logger
	now      func() time.Time

	refreshes metric.Int64Counter
	metrics   *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRuns int64
	Refreshed int64
	Skipped   int64
	Failed    int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config   RefreshConfig
	Profiles Profiles
	Logger   zerolog.Logger
	Now      func() time.Time
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	config := cfg.Config.withDefaults()
	config.Profiles = uniqueProfiles(config.Profiles)

	refreshes, _ := otel.Meter(meterName).Int64Counter("worker.profile_refreshes",
		metric.WithDescription("Profile cache refreshes by outcome"))

	return &RefreshJob{
		config:    config,
		profiles:  cfg.Profiles,
		logger:    cfg.Logger,
		now:       cfg.Now,
		refreshes: refreshes,
		metrics:   &RefreshMetrics{},
	}
}

// Config returns the effective configuration.
func (j *RefreshJob) Config() RefreshConfig {
	return j.config
}

// RefreshResult contains the result of a refresh run.
type RefreshResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Total     int
	Refreshed int
	Skipped   int
	Failed    int

	// Profiles holds the result of each profile in configuration order.
	Profiles []ProfileResult
}

// ProfileResult is the result of refreshing one profile.
type ProfileResult struct {
	Profile string
	Outcome Outcome

	// Days is the number of days with statistics.
	Days  int
	Trips int

	// Reason explains a skipped profile.
	Reason string
	Error  string
}

// Run refreshes the configured profiles.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	return j.RunProfiles(ctx, j.config.Profiles, j.config.Days)
}

// RunProfiles refreshes profiles, loading days days each. days <= 0 uses the
// configured number of days.
func (j *RefreshJob) RunProfiles(ctx context.Context, profiles []string, days int) *RefreshResult {
	if days <= 0 {
		days = j.config.Days
	}
	profiles = uniqueProfiles(profiles)

	startTime := time.Now()
	result := &RefreshResult{
		StartTime: startTime,
		Total:     len(profiles),
		Profiles:  make([]ProfileResult, len(profiles)),
	}

	j.logger.Info().
		Int("profiles", result.Total).
		Int("days", days).
		Int("concurrency", j.config.Concurrency).
		Msg("starting cache refresh job")

	indexes := make(chan int, len(profiles))
	for i := range profiles {
		indexes <- i
	}
	close(indexes)

	var wg sync.WaitGroup
	for range min(j.config.Concurrency, len(profiles)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if ctx.Err() != nil {
					result.Profiles[i] = ProfileResult{Profile: profiles[i], Outcome: OutcomeFailed, Error: ctx.Err().Error()}
					continue
				}
				result.Profiles[i] = j.refreshProfile(ctx, profiles[i], days)
			}
		}()
	}
	wg.Wait()

	for _, pr := range result.Profiles {
		switch pr.Outcome {
		case OutcomeRefreshed:
			result.Refreshed++
		case OutcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)
	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("refreshed", result.Refreshed).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("cache refresh job completed")

	return result
}

func (j *RefreshJob) refreshProfile(ctx context.Context, name string, days int) ProfileResult {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	logger := j.logger.With().Str("profile", name).Logger()
	result := ProfileResult{Profile: name}

	fail := func(err error) ProfileResult {
		logger.Warn().Err(err).Msg("profile refresh failed")
		result.Outcome = OutcomeFailed
		result.Error = err.Error()
		j.count(ctx, result.Outcome)
		return result
	}

	p, err := j.profiles.Profile(ctx, name)
	if err != nil {
		return fail(err)
	}

	state, err := p.Session.State(ctx)
	if err != nil {
		return fail(fmt.Errorf("reading authentication state: %w", err))
	}
	// An expired token is refreshed by the API client.
	if state != auth.StateAuthenticated && state != auth.StateTokenExpired {
		logger.Debug().Stringer("auth_state", state).Msg("skipping profile")
		result.Outcome = OutcomeSkipped
		result.Reason = state.String()
		j.count(ctx, result.Outcome)
		return result
	}

	if _, err := p.API.GetUserInfo(ctx, 0); err != nil {
		return fail(fmt.Errorf("loading user info: %w", err))
	}

	r, err := p.Statistics.GetStatisticsForRange(ctx, days, j.now())
	if err != nil {
		return fail(err)
	}

	result.Outcome = OutcomeRefreshed
	result.Days = len(r.Days)
	result.Trips = len(r.Trips())
	j.count(ctx, result.Outcome)

	logger.Debug().Int("days", result.Days).Int("trips", result.Trips).Msg("profile refreshed")
	return result
}

func (j *RefreshJob) count(ctx context.Context, outcome Outcome) {
	if j.refreshes != nil {
		j.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
	}
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.Refreshed += int64(result.Refreshed)
	j.metrics.Skipped += int64(result.Skipped)
	j.metrics.Failed += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		Refreshed:       j.metrics.Refreshed,
		Skipped:         j.metrics.Skipped,
		Failed:          j.metrics.Failed,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		TotalDuration:   j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"total_runs":        m.TotalRuns,
		"refreshed":         m.Refreshed,
		"skipped":           m.Skipped,
		"failed":            m.Failed,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}

// Schedule runs the job immediately and then every configured interval until
// ctx is cancelled.
func (j *RefreshJob) Schedule(ctx context.Context) {
	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("refresh schedule stopped")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
