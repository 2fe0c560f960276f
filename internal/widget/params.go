package widget

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/traewellingwidget/traewellingwidget/internal/scheme"
	"github.com/traewellingwidget/traewellingwidget/internal/statistics"
)

// Defaults of a widget invocation.
const (
	DefaultProfile = "0"
	DefaultDays    = 14
	DefaultFamily  = "large"
)

// Params select what a widget shows.
type Params struct {
	Profile string
	Days    int

	// Date (YYYY-MM-DD) overrides Days: statistics are shown since that date.
	Date string

	Schemes scheme.Schemes
	Family  string
}

// DefaultParams returns the parameters of an unconfigured widget.
func DefaultParams() Params {
	return Params{
		Profile: DefaultProfile,
		Days:    DefaultDays,
		Schemes: scheme.DefaultSchemes(),
		Family:  DefaultFamily,
	}
}

type parameterJSON struct {
	Profile *string         `json:"profile"`
	Days    *int            `json:"days"`
	Date    *string         `json:"date"`
	Schemes json.RawMessage `json:"schemes"`
}

// ApplyParameter overlays the JSON widget parameter, for example
// {"profile":"1","days":7,"schemes":{...}}, onto p. Absent keys keep their value.
func (p *Params) ApplyParameter(raw string) error {
	if raw == "" {
		return nil
	}

	var in parameterJSON
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return fmt.Errorf("parsing widget parameter: %w", err)
	}

	if in.Profile != nil && *in.Profile != "" {
		p.Profile = *in.Profile
	}
	if in.Days != nil {
		p.Days = *in.Days
	}
	if in.Date != nil {
		p.Date = *in.Date
	}
	if len(in.Schemes) > 0 && string(in.Schemes) != "null" {
		s, err := scheme.Parse(in.Schemes)
		if err != nil {
			return err
		}
		p.Schemes = s
	}
	return nil
}

// since parses Date, false when it is empty or invalid.
func (p Params) since() (time.Time, bool) {
	if p.Date == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(statistics.DateLayout, p.Date, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// EffectiveDays is the number of days to load at now: Days, or the whole days
// since Date rounded up when Date is valid.
func (p Params) EffectiveDays(now time.Time) int {
	start, ok := p.since()
	if !ok {
		return p.Days
	}
	return int(math.Ceil(now.Sub(start).Hours() / 24))
}

// Subtitle describes the shown period.
func (p Params) Subtitle() string {
	if _, ok := p.since(); ok {
		return "since " + p.Date
	}
	return fmt.Sprintf("stats last %d days", p.Days)
}
