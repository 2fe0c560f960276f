package statistics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/traewellingwidget/traewellingwidget/internal/statistics"
)

var base = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

func at(minutes int) *time.Time {
	t := base.Add(time.Duration(minutes) * time.Minute)
	return &t
}

func trip(distance, duration float64, plannedMinutes int) statistics.Trip {
	return statistics.Trip{Train: statistics.Train{
		Distance:    distance,
		Duration:    duration,
		Origin:      statistics.Stop{DeparturePlanned: at(0), Departure: at(0)},
		Destination: statistics.Stop{ArrivalPlanned: at(plannedMinutes)},
	}}
}

func TestSpeedKmh(t *testing.T) {
	assert.InDelta(t, 100.0, statistics.SpeedKmh(100000, 60), 1e-9)
	assert.InDelta(t, 60.0, statistics.SpeedKmh(10000, 10), 1e-9)
	assert.Zero(t, statistics.SpeedKmh(1000, 0))
}

func TestTrip_SpeedIsClampedToTheoreticalBand(t *testing.T) {
	tests := []struct {
		name     string
		trip     statistics.Trip
		expected float64
	}{
		{"slower than timetable", trip(100000, 60, 50), 108},
		{"faster than timetable", trip(100000, 40, 50), 132},
		{"within band", trip(100000, 52, 50), statistics.SpeedKmh(100000, 52)},
		{"no timetable", statistics.Trip{Train: statistics.Train{Distance: 100000, Duration: 60}}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.trip.Speed(), 1e-6)
		})
	}
}

func TestTrip_TheoreticalSpeed(t *testing.T) {
	speed, ok := trip(100000, 60, 50).TheoreticalSpeed()
	assert.True(t, ok)
	assert.InDelta(t, 120.0, speed, 1e-9)

	_, ok = trip(100000, 60, 0).TheoreticalSpeed()
	assert.False(t, ok, "zero planned duration")
}

func TestTrip_IsOutlier(t *testing.T) {
	assert.False(t, trip(100000, 60, 60).IsOutlier())
	assert.True(t, trip(500000, 60, 60).IsOutlier(), "500 km/h")
	assert.True(t, trip(450000, 60, 60).IsOutlier(), "ceiling is exclusive")
	assert.True(t, statistics.Trip{Train: statistics.Train{Distance: 1000}}.IsOutlier(), "no duration")
}

func TestTrip_DelayMinutes(t *testing.T) {
	tr := trip(10000, 10, 10)
	assert.Zero(t, tr.DelayMinutes(), "no real arrival")

	tr.Train.Destination.ArrivalReal = at(17)
	assert.InDelta(t, 7.0, tr.DelayMinutes(), 1e-9)

	tr.Train.OverriddenArrival = at(25)
	assert.InDelta(t, 15.0, tr.DelayMinutes(), 1e-9, "overridden arrival wins")

	tr.Train.OverriddenArrival = at(8)
	assert.InDelta(t, -2.0, tr.DelayMinutes(), 1e-9)
}
