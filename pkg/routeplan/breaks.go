package routeplan

// LegMinutes returns the walking time from order[i] to order[i+1], using the
// travel times attached to order[i] when present and FallbackLegMinutes
// otherwise.
func LegMinutes(order []Activity, i int) int {
	if i < 0 || i+1 >= len(order) {
		return 0
	}
	if tt := order[i].TravelTimes; len(tt) > i+1 && tt[i+1] >= 0 {
		return tt[i+1]
	}
	return FallbackLegMinutes
}

// PlanBreaks walks the ordered activities once, tracking wall-clock time from
// startMinutes and an energy counter, and emits a break whenever the counter
// reaches the threshold or every third activity. The first activity never
// triggers a break.
func PlanBreaks(order []Activity, startMinutes int) []BreakSuggestion {
	breaks := []BreakSuggestion{}
	clock := startMinutes
	energy := 0

	for i := range order {
		a := &order[i]
		energy += energyPoints(a.EnergyRequired)
		clock += a.EstimatedDuration

		if i > 0 && (energy >= breakEnergyThreshold || i%breakEveryNth == 0) {
			b := newBreak(a, clock, energy >= breakEnergyThreshold)
			breaks = append(breaks, b)
			energy = 0
			clock += b.Duration
		}

		clock += LegMinutes(order, i)
	}

	return breaks
}

func newBreak(after *Activity, clock int, tired bool) BreakSuggestion {
	hour := (clock / 60) % 24
	location := "Near " + after.Name
	if after.Location != "" {
		location = "Near " + after.Location
	}

	if hour >= lunchStartHour && hour < lunchEndHour {
		return BreakSuggestion{
			Time:     FormatClock(clock),
			Type:     BreakFood,
			Location: location,
			Reason:   "Lunch time - refuel before your next activity",
			Duration: foodBreakMinutes,
		}
	}

	reason := "Regular pause to keep your pace comfortable"
	if tired {
		reason = "Demanding stretch behind you - take some time to rest"
	}
	return BreakSuggestion{
		Time:     FormatClock(clock),
		Type:     BreakRest,
		Location: location,
		Reason:   reason,
		Duration: restBreakMinutes,
	}
}
