package routeplan

import "time"

// Enrichment is data gathered from external services for an ordered route.
// The zero value means nothing could be fetched.
type Enrichment struct {
	// TransportationOptions are real per-leg options, excluding the rideshare
	// placeholder which Assemble always appends.
	TransportationOptions []TransportationOption
	// RealTravelTimes reports whether TravelTimes on the ordered activities
	// came from a distance matrix.
	RealTravelTimes bool
	// Suggestions are appended after the generated tips.
	Suggestions []string
}

// RideshareOption is the catch-all placeholder appended to every route.
func RideshareOption(order []Activity) TransportationOption {
	opt := TransportationOption{
		From: "Any activity",
		To:   "Any activity",
		Mode: ModeRideshare,
		Cost: "$10-25 per ride (estimate)",
		Note: "Rideshare or taxi is available between all stops when walking or transit is inconvenient",
	}
	if len(order) >= 2 {
		opt.From = order[0].Name
		opt.To = order[len(order)-1].Name
	}
	return opt
}

// Assemble packages an ordered route into the result envelope.
func Assemble(order []Activity, req *Request, enr Enrichment) *RouteOptimization {
	if order == nil {
		order = []Activity{}
	}

	result := &RouteOptimization{
		OptimizedOrder:     order,
		EnergyDistribution: EnergyDistribution(order),
		Breaks:             []BreakSuggestion{},
		RealTravelTimes:    enr.RealTravelTimes,
	}

	for i := range order {
		result.TotalDuration += order[i].EstimatedDuration
		if i+1 < len(order) {
			result.TotalWalkingTime += LegMinutes(order, i)
		}
	}

	if req.IncludeBreaks {
		start, err := ParseClock(req.StartTime)
		if err == nil {
			result.Breaks = PlanBreaks(order, start)
		}
	}

	result.TransportationOptions = make([]TransportationOption, 0, len(enr.TransportationOptions)+1)
	result.TransportationOptions = append(result.TransportationOptions, enr.TransportationOptions...)
	result.TransportationOptions = append(result.TransportationOptions, RideshareOption(order))

	result.Suggestions = Suggest(order, req)
	result.Suggestions = append(result.Suggestions, enr.Suggestions...)

	return result
}

// Plan runs the whole heuristic without any external data: every leg uses the
// fallback walking estimate and only the rideshare option is offered.
func Plan(req *Request, now time.Time) (*RouteOptimization, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	order := Schedule(req.Activities, ScheduleOptions{
		Destination: req.Destination,
		TripDay:     req.TripDay,
		Now:         now,
	})
	for i := range order {
		order[i].TravelTimes = nil
	}
	return Assemble(order, req, Enrichment{}), nil
}
