package scheme

import (
	"fmt"
	"strings"
	"time"

	"github.com/traewellingwidget/traewellingwidget/internal/aggregate"
	"github.com/traewellingwidget/traewellingwidget/internal/render"
	"github.com/traewellingwidget/traewellingwidget/internal/statistics"
)

// DefaultMaxTrips is the length of ranked trip lists without a maxTrips argument.
const DefaultMaxTrips = 7

// Data is what slots draw from.
type Data struct {
	Title    string
	Subtitle string
	Range    *statistics.Range

	trips []statistics.Trip
}

// NewData prepares r for rendering.
func NewData(r *statistics.Range, title, subtitle string) *Data {
	if r == nil {
		r = &statistics.Range{}
	}
	return &Data{Title: title, Subtitle: subtitle, Range: r, trips: r.Trips()}
}

// Trips returns the trip list, oldest first.
func (d *Data) Trips() []statistics.Trip {
	return d.trips
}

type slotFunc func(c render.Container, d *Data, args Args) error

func text(style render.Style, s string) slotFunc {
	return func(c render.Container, _ *Data, _ Args) error {
		c.AddText(s, style)
		return nil
	}
}

func statistic(fn func(d *Data) string) slotFunc {
	return func(c render.Container, d *Data, _ Args) error {
		c.AddText(fn(d), render.StyleStatistic)
		return nil
	}
}

// slots is keyed by lower-case name.
func slots() map[string]slotFunc {
	m := map[string]slotFunc{
		"title": func(c render.Container, d *Data, _ Args) error {
			c.AddText(d.Title, render.StyleTitle)
			return nil
		},
		"subtitle": func(c render.Container, d *Data, _ Args) error {
			c.AddText(d.Subtitle, render.StyleSubtitle)
			return nil
		},
		"morestats":        text(render.StyleTitle, "More Statistics"),
		"distance":         distance,
		"duration":         statistic(duration),
		"stations":         statistic(stations),
		"favouritestation": statistic(favouriteStation),
		"delay":            statistic(delay),
		"minspeed":         statistic(minSpeed),
		"maxspeed":         statistic(maxSpeed),
		"avgspeed":         statistic(avgSpeed),

		"purposepersonal": statistic(purpose(statistics.PurposePersonal)),
		"purposebusiness": statistic(purpose(statistics.PurposeBusiness)),
		"purposecommute":  statistic(purpose(statistics.PurposeCommute)),

		"categoryexpress":  statistic(category(statistics.GroupExpress)),
		"categoryregional": statistic(category(statistics.GroupRegional)),
		"categoryurban":    statistic(category(statistics.GroupUrban)),

		"latesttrips": rankedTrips("Latest Trips", func(trips []statistics.Trip) []statistics.Trip {
			return aggregate.SortedBy(trips, func(t statistics.Trip) int64 { return t.Departure().UnixNano() }, false)
		}, nil),
		"fastesttrips": rankedTrips("Fastest Trips", func(trips []statistics.Trip) []statistics.Trip {
			return aggregate.SortedBy(measurable(trips), statistics.Trip.Speed, false)
		}, speedLabel),
		"slowesttrips": rankedTrips("Slowest Trips", func(trips []statistics.Trip) []statistics.Trip {
			return aggregate.SortedBy(measurable(trips), statistics.Trip.Speed, true)
		}, speedLabel),
		"longesttrips": rankedTrips("Longest Trips", func(trips []statistics.Trip) []statistics.Trip {
			return aggregate.SortedBy(trips, tripDistance, false)
		}, nil),
		"shortesttrips": rankedTrips("Shortest Trips", func(trips []statistics.Trip) []statistics.Trip {
			return aggregate.SortedBy(trips, tripDistance, true)
		}, nil),
		"longesttimetrips": rankedTrips("Longest Time Trips", func(trips []statistics.Trip) []statistics.Trip {
			return aggregate.SortedBy(trips, tripDuration, false)
		}, durationLabel),
		"shortesttimetrips": rankedTrips("Shortest Time Trips", func(trips []statistics.Trip) []statistics.Trip {
			return aggregate.SortedBy(trips, tripDuration, true)
		}, durationLabel),
		"highestdelaytrips": rankedTrips("Highest Delay Trips", func(trips []statistics.Trip) []statistics.Trip {
			return aggregate.SortedBy(trips, statistics.Trip.DelayMinutes, false)
		}, delayLabel),
	}

	for day := time.Sunday; day <= time.Saturday; day++ {
		m["weekday"+strings.ToLower(day.String())] = statistic(weekday(day))
	}
	return m
}

func tripDistance(t statistics.Trip) float64 { return t.Train.Distance }
func tripDuration(t statistics.Trip) float64 { return t.Train.Duration }

func distance(c render.Container, d *Data, _ Args) error {
	c.AddText(FormatNumber(d.Range.TotalDistance()/1000, 0)+" km", render.StyleHighlight)
	c.AddText("total distance", render.StyleTitle)
	return nil
}

func duration(d *Data) string {
	h, m := HoursAndMinutes(d.Range.TotalDuration())
	return fmt.Sprintf("⏱️ %dh %dmin", h, m)
}

func stops(trips []statistics.Trip) []statistics.Stop {
	out := make([]statistics.Stop, 0, 2*len(trips))
	for _, t := range trips {
		out = append(out, t.Train.Origin, t.Train.Destination)
	}
	return out
}

func eva(s statistics.Stop) string { return s.EvaIdentifier.String() }

func stations(d *Data) string {
	return fmt.Sprintf("🎫 %d stations", aggregate.CountUniqueBy(stops(d.trips), eva))
}

func favouriteStation(d *Data) string {
	all := stops(d.trips)
	counts := aggregate.CountBy(all, eva)
	if len(counts) == 0 {
		return "⭐️ -"
	}

	top := counts[0]
	name := top.Value
	for _, s := range all {
		if eva(s) == top.Value {
			name = s.Name
			break
		}
	}
	return fmt.Sprintf("⭐️ %s (%d)", name, top.Count)
}

func delay(d *Data) string {
	h, m := HoursAndMinutes(aggregate.SumBy(d.trips, statistics.Trip.DelayMinutes))
	return fmt.Sprintf("⏳ %dh %dmin delay", h, m)
}

// measurable drops trips without a usable speed.
func measurable(trips []statistics.Trip) []statistics.Trip {
	return aggregate.Filter(trips, func(t statistics.Trip) bool { return !t.IsOutlier() })
}

func minSpeed(d *Data) string {
	v, _ := aggregate.MinBy(measurable(d.trips), statistics.Trip.Speed)
	return fmt.Sprintf("🚄 %s km/h (min)", FormatNumber(v, 0))
}

func maxSpeed(d *Data) string {
	v, _ := aggregate.MaxBy(measurable(d.trips), statistics.Trip.Speed)
	return fmt.Sprintf("🚄 %s km/h (max)", FormatNumber(v, 0))
}

func avgSpeed(d *Data) string {
	v := aggregate.AverageBy(measurable(d.trips), statistics.Trip.Speed)
	return fmt.Sprintf("🚄 %s km/h (avg)", FormatNumber(v, 0))
}

var weekdayEmoji = map[time.Weekday]string{
	time.Sunday:    "🌞",
	time.Monday:    "🌚",
	time.Tuesday:   "🌮",
	time.Wednesday: "📅",
	time.Thursday:  "🍟",
	time.Friday:    "🎉",
	time.Saturday:  "🌈",
}

func weekday(day time.Weekday) func(d *Data) string {
	return func(d *Data) string {
		percentages := aggregate.PercentageByWeight(d.trips, func(t statistics.Trip) time.Weekday {
			return t.Departure().Weekday()
		}, nil)
		return fmt.Sprintf("%s %s%% %s", weekdayEmoji[day], FormatNumber(percentages[day], 0), day)
	}
}

var purposeEmoji = map[statistics.Purpose]string{
	statistics.PurposePersonal: "👤",
	statistics.PurposeBusiness: "💼",
	statistics.PurposeCommute:  "🏢",
}

func purpose(p statistics.Purpose) func(d *Data) string {
	return func(d *Data) string {
		percentages := aggregate.PercentageByWeight(d.trips, func(t statistics.Trip) statistics.Purpose {
			return t.Business
		}, nil)
		return fmt.Sprintf("%s %s%% %s", purposeEmoji[p], FormatNumber(percentages[p], 0), p)
	}
}

var categoryEmoji = map[string]string{
	"regional":        "🚆",
	"regionalExp":     "🚆",
	"national":        "🚅",
	"nationalExpress": "🚅",
	"tram":            "🚃",
	"bus":             "🚌",
	"subway":          "🚇",
	"suburban":        "🚋",
	"ferry":           "⛴️",
}

func trainEmoji(category string) string {
	if e, ok := categoryEmoji[category]; ok {
		return e
	}
	return "🚂"
}

var groupEmoji = map[statistics.CategoryGroup]string{
	statistics.GroupExpress:  trainEmoji("nationalExpress"),
	statistics.GroupRegional: trainEmoji("regional"),
	statistics.GroupUrban:    trainEmoji("tram"),
}

func category(g statistics.CategoryGroup) func(d *Data) string {
	return func(d *Data) string {
		percentages := aggregate.PercentageByWeight(d.trips, func(t statistics.Trip) string {
			return t.Train.Category
		}, nil)
		var total float64
		for _, c := range g.Categories() {
			total += percentages[c]
		}
		return fmt.Sprintf("%s %s%% %s", groupEmoji[g], FormatNumber(total, 0), g)
	}
}

func speedLabel(t statistics.Trip) string {
	return fmt.Sprintf("(%s km/h)", FormatNumber(t.Speed(), 0))
}

func durationLabel(t statistics.Trip) string {
	return "(" + HoursMinutes(t.Train.Duration) + ")"
}

func delayLabel(t statistics.Trip) string {
	return "(" + HoursMinutes(t.DelayMinutes()) + ")"
}

// tripLine is one entry of a ranked list. Personal trips carry no purpose emoji.
func tripLine(t statistics.Trip, label func(statistics.Trip) string) string {
	parts := []string{trainEmoji(t.Train.Category)}
	if label != nil {
		parts = append(parts, label(t))
	}
	parts = append(parts,
		t.Train.Origin.Name, "to", t.Train.Destination.Name,
		"~", FormatNumber(t.Train.Distance/1000, 0), "km",
	)
	if t.Business != statistics.PurposePersonal {
		parts = append(parts, purposeEmoji[t.Business])
	}
	return strings.Join(parts, " ")
}

func rankedTrips(title string, rank func([]statistics.Trip) []statistics.Trip, label func(statistics.Trip) string) slotFunc {
	return func(c render.Container, d *Data, args Args) error {
		maxTrips, err := args.Int("maxTrips", DefaultMaxTrips)
		if err != nil {
			return err
		}

		c.AddText(title, render.StyleTitle)

		trips := aggregate.TopN(rank(d.trips), maxTrips)
		if len(trips) == 0 {
			c.AddSpacer(3)
			c.AddText("😿 No trips", render.StyleStatistic)
			return nil
		}
		for _, t := range trips {
			c.AddSpacer(3)
			c.AddText(tripLine(t, label), render.StyleStatistic)
		}
		return nil
	}
}
