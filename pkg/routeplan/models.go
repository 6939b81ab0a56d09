// Package routeplan implements the activity-scheduling heuristic for a single
// trip day. It performs no I/O: the server enriches its output with mapping
// data, and clients can call Plan directly when the server is unreachable.
package routeplan

// Category classifies an activity.
type Category string

const (
	CategoryAttraction Category = "attraction"
	CategoryRestaurant Category = "restaurant"
	CategoryActivity   Category = "activity"
	CategoryTransport  Category = "transport"
)

// Level is a coarse low/medium/high rating used for crowds and energy.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// BreakType is the kind of break suggested by the break planner.
type BreakType string

const (
	BreakRest     BreakType = "rest"
	BreakFood     BreakType = "food"
	BreakBathroom BreakType = "bathroom"
)

// TransportMode is the travel mode of a transportation option.
type TransportMode string

const (
	ModeWalking   TransportMode = "walking"
	ModeTransit   TransportMode = "transit"
	ModeRideshare TransportMode = "rideshare"
)

// Coordinates is a [longitude, latitude] pair.
type Coordinates [2]float64

// Lon returns the longitude.
func (c Coordinates) Lon() float64 { return c[0] }

// Lat returns the latitude.
func (c Coordinates) Lat() float64 { return c[1] }

// Activity is a candidate thing to do on a trip day.
type Activity struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Location          string   `json:"location"`
	OpeningHours      string   `json:"openingHours,omitempty"`
	EstimatedDuration int      `json:"estimatedDuration"` // minutes
	Category          Category `json:"category"`
	CrowdLevel        Level    `json:"crowdLevel"`
	EnergyRequired    Level    `json:"energyRequired"`
	WeatherDependent  bool     `json:"weatherDependent"`
	Priority          int      `json:"priority"`

	Coordinates *Coordinates `json:"coordinates,omitempty"`
	// TravelTimes[i] is the walking time in minutes to the i-th activity of
	// the optimized order it was computed against. Invalid after re-sorting.
	TravelTimes    []int    `json:"travelTimes,omitempty"`
	SuggestedTimes []string `json:"suggestedTimes,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

// BreakSuggestion is a rest or food stop inserted between activities.
type BreakSuggestion struct {
	Time     string    `json:"time"`
	Type     BreakType `json:"type"`
	Location string    `json:"location"`
	Reason   string    `json:"reason"`
	Duration int       `json:"duration,omitempty"` // minutes
}

// TransportationOption is one way of getting between two activities.
type TransportationOption struct {
	From         string        `json:"from"`
	To           string        `json:"to"`
	Mode         TransportMode `json:"mode"`
	Duration     string        `json:"duration,omitempty"`
	Distance     string        `json:"distance,omitempty"`
	Cost         string        `json:"cost,omitempty"`
	Note         string        `json:"note,omitempty"`
	Instructions []string      `json:"instructions,omitempty"`
}

// RouteOptimization is the envelope returned for one optimization request.
type RouteOptimization struct {
	OptimizedOrder        []Activity             `json:"optimizedOrder"`
	TotalWalkingTime      int                    `json:"totalWalkingTime"`
	TotalDuration         int                    `json:"totalDuration"`
	EnergyDistribution    string                 `json:"energyDistribution"`
	Suggestions           []string               `json:"suggestions"`
	Breaks                []BreakSuggestion      `json:"breaks"`
	TransportationOptions []TransportationOption `json:"transportationOptions"`
	RealTravelTimes       bool                   `json:"realTravelTimes"`
}

// Request is the input of one optimization.
type Request struct {
	Activities    []Activity `json:"activities"`
	StartTime     string     `json:"startTime"`
	EnergyLevel   Level      `json:"energyLevel,omitempty"`
	IncludeBreaks bool       `json:"includeBreaks"`
	WeatherBackup bool       `json:"weatherBackup"`
	Destination   string     `json:"destination"`
	TripDay       int        `json:"tripDay"`
}

// Scheduling constants kept for compatibility with existing clients.
const (
	// FallbackLegMinutes is the walking estimate used when no real travel
	// time is known for a leg.
	FallbackLegMinutes = 15

	museumMondayPenalty = 2
	jetLagPenalty       = 1
	jetLagDays          = 2

	breakEnergyThreshold = 6
	breakEveryNth        = 3
	lunchStartHour       = 11
	lunchEndHour         = 14
	foodBreakMinutes     = 45
	restBreakMinutes     = 15

	highEnergyTipThreshold = 2
)

func energyPoints(l Level) int {
	switch l {
	case LevelHigh:
		return 3
	case LevelMedium:
		return 2
	default:
		return 1
	}
}

func (c Category) valid() bool {
	switch c {
	case CategoryAttraction, CategoryRestaurant, CategoryActivity, CategoryTransport:
		return true
	}
	return false
}

func (l Level) valid() bool {
	switch l {
	case LevelLow, LevelMedium, LevelHigh:
		return true
	}
	return false
}

// cloneActivities deep-copies activities so pipeline stages never mutate the
// caller's slice.
func cloneActivities(in []Activity) []Activity {
	out := make([]Activity, len(in))
	for i := range in {
		a := in[i]
		if a.Coordinates != nil {
			c := *a.Coordinates
			a.Coordinates = &c
		}
		if a.TravelTimes != nil {
			a.TravelTimes = append([]int(nil), a.TravelTimes...)
		}
		if a.SuggestedTimes != nil {
			a.SuggestedTimes = append([]string(nil), a.SuggestedTimes...)
		}
		out[i] = a
	}
	return out
}
