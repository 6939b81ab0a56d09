package routeplan

import (
	"fmt"
	"strings"
)

var generalTips = []string{
	"Start early to get ahead of the crowds at popular sights",
	"Carry a refillable water bottle and stay hydrated",
	"Download offline maps in case mobile data is unreliable",
}

var destinationTips = []struct {
	match string
	tips  []string
}{
	{"tokyo", []string{
		"Get a Suica or Pasmo card for trains, buses and convenience stores",
		"Many restaurants close between lunch and dinner service",
		"Carry some cash - smaller shops and temples may not take cards",
	}},
	{"paris", []string{
		"A Navigo Easy pass with a carnet of tickets saves money on the Metro",
		"Many museums close on Monday or Tuesday - check before you go",
		"Book timed entry for the Louvre and Eiffel Tower in advance",
	}},
	{"new york", []string{
		"The subway is usually faster than a taxi for longer distances",
		"Tap to pay with OMNY instead of buying a MetroCard",
		"Reserve observation decks ahead of time, especially at sunset",
	}},
}

// Suggest returns the tips for an ordered route.
func Suggest(order []Activity, req *Request) []string {
	tips := append([]string(nil), generalTips...)

	dest := strings.ToLower(req.Destination)
	for _, d := range destinationTips {
		if strings.Contains(dest, d.match) {
			tips = append(tips, d.tips...)
		}
	}

	if req.TripDay <= jetLagDays {
		tips = append(tips, "Early in the trip jet lag can hit hard - get daylight in the morning and keep the evening light")
	}

	high := countEnergy(order)[LevelHigh]
	if high > highEnergyTipThreshold {
		tips = append(tips, fmt.Sprintf("You have %d high-energy activities today - consider moving one to another day", high))
	}
	if req.EnergyLevel == LevelLow && high > 0 {
		tips = append(tips, "You asked for a relaxed day - swap high-energy activities for lighter ones if you feel tired")
	}

	if req.WeatherBackup {
		var names []string
		for i := range order {
			if order[i].WeatherDependent {
				names = append(names, order[i].Name)
			}
		}
		if len(names) > 0 {
			tips = append(tips, "Have an indoor backup ready in case of bad weather for: "+strings.Join(names, ", "))
		}
	}

	return tips
}

func countEnergy(order []Activity) map[Level]int {
	counts := map[Level]int{LevelHigh: 0, LevelMedium: 0, LevelLow: 0}
	for i := range order {
		counts[order[i].EnergyRequired]++
	}
	return counts
}

// EnergyDistribution summarizes how many activities fall in each energy level.
func EnergyDistribution(order []Activity) string {
	c := countEnergy(order)
	return fmt.Sprintf("High: %d, Medium: %d, Low: %d", c[LevelHigh], c[LevelMedium], c[LevelLow])
}
