package statistics

import "time"

// MaxSpeed in km/h. Trips at or above it are treated as bad data.
const MaxSpeed = 450.0

// speedAllowance is the band around the theoretical speed the real speed is clamped to.
const speedAllowance = 0.1

// SpeedKmh returns the speed for a distance in meters covered in minutes.
// A non-positive duration yields 0.
func SpeedKmh(meters, minutes float64) float64 {
	if minutes <= 0 {
		return 0
	}
	return (meters / 1000) / (minutes / 60)
}

// RealSpeed is the speed derived from the recorded distance and duration.
func (t Trip) RealSpeed() float64 {
	return SpeedKmh(t.Train.Distance, t.Train.Duration)
}

// PlannedDuration is the timetable duration in minutes, false when a planned
// timestamp is missing or the timetable is not positive.
func (t Trip) PlannedDuration() (float64, bool) {
	dep, arr := t.Train.Origin.DeparturePlanned, t.Train.Destination.ArrivalPlanned
	if dep == nil || arr == nil {
		return 0, false
	}
	minutes := arr.Sub(*dep).Minutes()
	if minutes <= 0 {
		return 0, false
	}
	return minutes, true
}

// TheoreticalSpeed is the speed the timetable would have given.
func (t Trip) TheoreticalSpeed() (float64, bool) {
	minutes, ok := t.PlannedDuration()
	if !ok {
		return 0, false
	}
	return SpeedKmh(t.Train.Distance, minutes), true
}

// Speed is the real speed clamped to within 10% of the theoretical speed.
// Without a timetable the real speed is returned unchanged.
func (t Trip) Speed() float64 {
	speed := t.RealSpeed()
	theoretical, ok := t.TheoreticalSpeed()
	if !ok {
		return speed
	}
	lo, hi := theoretical*(1-speedAllowance), theoretical*(1+speedAllowance)
	return min(max(speed, lo), hi)
}

// IsOutlier reports whether the trip has no usable speed.
func (t Trip) IsOutlier() bool {
	return t.Train.Duration <= 0 || t.Speed() >= MaxSpeed
}

// Arrival is the best known arrival: the manually overridden one, then the
// real one.
func (t Trip) Arrival() (time.Time, bool) {
	switch {
	case t.Train.OverriddenArrival != nil:
		return *t.Train.OverriddenArrival, true
	case t.Train.Destination.ArrivalReal != nil:
		return *t.Train.Destination.ArrivalReal, true
	default:
		return time.Time{}, false
	}
}

// DelayMinutes is the arrival delay in minutes, 0 when unknown.
func (t Trip) DelayMinutes() float64 {
	planned := t.Train.Destination.ArrivalPlanned
	arrival, ok := t.Arrival()
	if !ok || planned == nil {
		return 0
	}
	return arrival.Sub(*planned).Minutes()
}
