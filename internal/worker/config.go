// Package worker keeps the statistics cache of widget profiles warm, so that
// rendering a widget rarely waits for the Traewelling API.
package worker

import (
	"slices"
	"time"

	"github.com/traewellingwidget/traewellingwidget/internal/widget"
)

// RefreshConfig holds configuration for the cache refresh job.
type RefreshConfig struct {
	// Profiles are refreshed in order. Default: the default widget profile.
	Profiles []string

	// Days is the number of days loaded per profile.
	// Default: widget.DefaultDays
	Days int

	// Concurrency is the number of profiles refreshed at once.
	// Default: 2
	Concurrency int

	// Timeout bounds the refresh of one profile.
	// Default: 2 minutes
	Timeout time.Duration

	// Interval is the pause between scheduled runs.
	// Default: 30 minutes
	Interval time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Profiles:    []string{widget.DefaultProfile},
		Days:        widget.DefaultDays,
		Concurrency: 2,
		Timeout:     2 * time.Minute,
		Interval:    30 * time.Minute,
	}
}

// withDefaults fills zero fields from DefaultRefreshConfig.
func (c RefreshConfig) withDefaults() RefreshConfig {
	d := DefaultRefreshConfig()
	if len(c.Profiles) == 0 {
		c.Profiles = d.Profiles
	}
	if c.Days <= 0 {
		c.Days = d.Days
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	return c
}

// uniqueProfiles drops repeated profile names, keeping the first occurrence.
func uniqueProfiles(profiles []string) []string {
	out := make([]string, 0, len(profiles))
	for _, p := range profiles {
		if p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}
