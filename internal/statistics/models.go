package statistics

import (
	"encoding/json"
	"time"
)

// Purpose is the travel reason recorded with a trip.
type Purpose int

const (
	PurposePersonal Purpose = 0
	PurposeBusiness Purpose = 1
	PurposeCommute  Purpose = 2
)

func (p Purpose) String() string {
	switch p {
	case PurposePersonal:
		return "personal"
	case PurposeBusiness:
		return "business"
	case PurposeCommute:
		return "commute"
	default:
		return "unknown"
	}
}

// CategoryGroup bundles transport categories for display.
type CategoryGroup string

const (
	GroupExpress  CategoryGroup = "express"
	GroupRegional CategoryGroup = "regional"
	GroupUrban    CategoryGroup = "urban"
)

// Categories returns the transport categories belonging to g.
func (g CategoryGroup) Categories() []string {
	switch g {
	case GroupExpress:
		return []string{"national", "nationalExpress"}
	case GroupRegional:
		return []string{"regional", "regionalExp"}
	case GroupUrban:
		return []string{"tram", "bus", "suburban", "subway", "ferry"}
	default:
		return nil
	}
}

// Stop is the origin or destination of a train ride.
type Stop struct {
	Name          string      `json:"name"`
	EvaIdentifier json.Number `json:"evaIdentifier"`

	Departure        *time.Time `json:"departure,omitempty"`
	DeparturePlanned *time.Time `json:"departurePlanned,omitempty"`
	DepartureReal    *time.Time `json:"departureReal,omitempty"`

	Arrival        *time.Time `json:"arrival,omitempty"`
	ArrivalPlanned *time.Time `json:"arrivalPlanned,omitempty"`
	ArrivalReal    *time.Time `json:"arrivalReal,omitempty"`
}

// Train is the ride of a trip. Distance is in meters, Duration in minutes.
// The API's speed field is not decoded; see Trip.Speed.
type Train struct {
	Category    string  `json:"category"`
	LineName    string  `json:"lineName"`
	Distance    float64 `json:"distance"`
	Duration    float64 `json:"duration"`
	Origin      Stop    `json:"origin"`
	Destination Stop    `json:"destination"`

	OverriddenArrival *time.Time `json:"overriddenArrival,omitempty"`
}

// Trip is one check-in ("status") of the user.
type Trip struct {
	ID       int64   `json:"id"`
	Business Purpose `json:"business"`
	Train    Train   `json:"train"`
}

// Weight is the duration of the trip, the default weight of percentage aggregations.
func (t Trip) Weight() float64 {
	return t.Train.Duration
}

// Departure is the actual departure when known, the planned one otherwise.
func (t Trip) Departure() time.Time {
	for _, ts := range []*time.Time{t.Train.Origin.Departure, t.Train.Origin.DepartureReal, t.Train.Origin.DeparturePlanned} {
		if ts != nil {
			return *ts
		}
	}
	return time.Time{}
}

// Day is the daily statistics page of one date.
type Day struct {
	TotalDistance float64 `json:"totalDistance"`
	TotalDuration float64 `json:"totalDuration"`
	Statuses      []Trip  `json:"statuses"`
}

// DayStatistics is a Day together with its ISO date.
type DayStatistics struct {
	Date string
	Day
}

// Range is the statistics of consecutive days in ascending date order.
type Range struct {
	Days []DayStatistics
}

// Trips returns all trips of the range, oldest day first.
func (r *Range) Trips() []Trip {
	n := 0
	for _, d := range r.Days {
		n += len(d.Statuses)
	}
	trips := make([]Trip, 0, n)
	for _, d := range r.Days {
		trips = append(trips, d.Statuses...)
	}
	return trips
}

// TotalDistance is the sum of the daily distance totals in meters.
func (r *Range) TotalDistance() float64 {
	var total float64
	for _, d := range r.Days {
		total += d.TotalDistance
	}
	return total
}

// TotalDuration is the sum of the daily duration totals in minutes.
func (r *Range) TotalDuration() float64 {
	var total float64
	for _, d := range r.Days {
		total += d.TotalDuration
	}
	return total
}
