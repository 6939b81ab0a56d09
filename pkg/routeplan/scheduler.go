package routeplan

import (
	"sort"
	"strings"
	"time"
)

// ScheduleOptions carries the request context the scheduling rules depend on.
type ScheduleOptions struct {
	Destination string
	TripDay     int
	// Now is the wall-clock time used by day-of-week rules.
	Now time.Time
}

const (
	noteMuseumMonday = "Many museums are closed on Mondays - check opening hours before going"
	noteJetLag       = "Scheduled with jet lag in mind - consider a lighter alternative on your first days"
	noteCrowds       = "Popular spot - visit early or late to avoid the biggest crowds"
)

var crowdAvoidanceTimes = []string{
	"Early morning (8:00-10:00)",
	"Late afternoon (16:00-18:00)",
}

// mealTimes maps a lowercase destination fragment to local meal windows.
var mealTimes = []struct {
	match string
	times []string
}{
	{"paris", []string{"Lunch 12:30-14:00", "Dinner 19:30-21:30"}},
	{"tokyo", []string{"Lunch 11:30-13:30", "Dinner 18:00-20:00"}},
	{"new york", []string{"Lunch 12:00-14:00", "Dinner 18:30-21:00"}},
	{"madrid", []string{"Lunch 14:00-16:00", "Dinner 21:00-23:00"}},
	{"barcelona", []string{"Lunch 13:30-15:30", "Dinner 20:30-22:30"}},
	{"rome", []string{"Lunch 13:00-14:30", "Dinner 20:00-22:00"}},
}

var defaultMealTimes = []string{"Lunch 12:00-14:00", "Dinner 18:00-20:00"}

// MealTimes returns the suggested meal windows for a destination.
func MealTimes(destination string) []string {
	d := strings.ToLower(destination)
	for _, m := range mealTimes {
		if strings.Contains(d, m.match) {
			return append([]string(nil), m.times...)
		}
	}
	return append([]string(nil), defaultMealTimes...)
}

// Schedule applies the fixed scheduling rules to a copy of activities and
// returns it ordered weather-dependent first, then by descending priority.
// The input slice is not modified.
func Schedule(activities []Activity, opts ScheduleOptions) []Activity {
	out := cloneActivities(activities)
	monday := opts.Now.Weekday() == time.Monday

	for i := range out {
		a := &out[i]

		if monday && a.Category == CategoryAttraction && strings.Contains(strings.ToLower(a.Name), "museum") {
			a.Priority -= museumMondayPenalty
			addNote(a, noteMuseumMonday)
		}

		if a.Category == CategoryRestaurant {
			a.SuggestedTimes = MealTimes(opts.Destination)
		}

		if opts.TripDay <= jetLagDays && a.EnergyRequired == LevelHigh {
			a.Priority -= jetLagPenalty
			addNote(a, noteJetLag)
		}

		if a.CrowdLevel == LevelHigh && a.Category == CategoryAttraction {
			a.SuggestedTimes = append([]string(nil), crowdAvoidanceTimes...)
			addNote(a, noteCrowds)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].WeatherDependent != out[j].WeatherDependent {
			return out[i].WeatherDependent
		}
		return out[i].Priority > out[j].Priority
	})

	return out
}

func addNote(a *Activity, note string) {
	if a.Notes == "" {
		a.Notes = note
		return
	}
	a.Notes += "; " + note
}
