package scheme

func headColumn() Column {
	return columnOf("title", "noSpacer", "subtitle", "spacer", "distance", "spacer", "duration", "stations", "delay")
}

func smallLayout(last ...string) Layout {
	names := append([]string{"title", "noSpacer", "subtitle", "spacer", "distance", "spacer"}, last...)
	return Layout{Row{columnOf(names...)}}
}

func columnOf(names ...string) Column {
	col := make(Column, 0, len(names))
	for _, name := range names {
		col = append(col, Slot(name))
	}
	return col
}

// DefaultSchemes returns the built-in schemes for the small and large widget.
func DefaultSchemes() Schemes {
	return Schemes{
		"small": {
			smallLayout("duration", "stations", "delay"),
			smallLayout("purposePersonal", "purposeCommute", "purposeBusiness"),
			smallLayout("duration", "maxSpeed", "avgSpeed"),
			smallLayout("categoryExpress", "categoryRegional", "categoryUrban"),
		},
		"large": {
			{
				Row{headColumn(), columnOf(
					"moreStats", "minSpeed", "avgSpeed", "maxSpeed", "spacer",
					"purposePersonal", "purposeCommute", "purposeBusiness", "spacer", "favouriteStation",
				)},
				Row{columnOf("latestTrips")},
			},
			{
				Row{headColumn(), columnOf(
					"moreStats", "categoryExpress", "categoryRegional", "categoryUrban", "spacer",
					"purposePersonal", "purposeCommute", "purposeBusiness", "spacer", "favouriteStation",
				)},
				Row{columnOf("longestTrips")},
			},
			{
				Row{headColumn(), columnOf(
					"moreStats", "weekdayMonday", "weekdayTuesday", "weekdayWednesday", "weekdayThursday",
					"weekdayFriday", "spacer", "weekdaySaturday", "weekdaySunday",
				)},
				Row{Column{SlotWithArgs("highestDelayTrips", Args{"maxTrips": 3})}},
				Row{Column{SlotWithArgs("fastestTrips", Args{"maxTrips": 3})}},
			},
		},
	}
}
