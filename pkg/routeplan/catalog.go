package routeplan

import (
	"strings"

	"github.com/google/uuid"
)

// CatalogRequest describes what a traveler is interested in for a day.
type CatalogRequest struct {
	Interests   []string `json:"interests"`
	Destination string   `json:"destination"`
	TripDay     int      `json:"tripDay"`
}

type activityTemplate struct {
	name             string // %s is replaced with the destination
	location         string
	openingHours     string
	duration         int
	category         Category
	crowd            Level
	energy           Level
	weatherDependent bool
	priority         int
}

var interestAliases = map[string]string{
	"culture":    "culture",
	"history":    "culture",
	"museums":    "culture",
	"museum":     "culture",
	"food":       "food",
	"cuisine":    "food",
	"dining":     "food",
	"nature":     "nature",
	"outdoors":   "nature",
	"parks":      "nature",
	"art":        "art",
	"shopping":   "shopping",
	"nightlife":  "nightlife",
	"adventure":  "adventure",
	"sports":     "adventure",
	"relaxation": "relaxation",
	"wellness":   "relaxation",
}

var interestTemplates = map[string][]activityTemplate{
	"culture": {
		{"%s History Museum", "Museum district", "09:00-17:00", 120, CategoryAttraction, LevelHigh, LevelMedium, false, 8},
		{"Old Town Heritage Walk", "Historic center", "Open all day", 90, CategoryActivity, LevelMedium, LevelMedium, true, 7},
	},
	"food": {
		{"%s Food Market", "Central market hall", "08:00-15:00", 75, CategoryRestaurant, LevelHigh, LevelLow, false, 7},
		{"Traditional %s Dinner", "Local restaurant quarter", "18:00-23:00", 90, CategoryRestaurant, LevelMedium, LevelLow, false, 6},
	},
	"nature": {
		{"%s Botanical Garden", "Botanical garden", "08:00-18:00", 90, CategoryAttraction, LevelLow, LevelMedium, true, 6},
		{"Riverside Walk", "Waterfront promenade", "Open all day", 60, CategoryActivity, LevelLow, LevelLow, true, 5},
	},
	"art": {
		{"%s Museum of Modern Art", "Arts quarter", "10:00-18:00", 120, CategoryAttraction, LevelMedium, LevelMedium, false, 7},
		{"Street Art Tour", "Creative district", "Open all day", 90, CategoryActivity, LevelLow, LevelMedium, true, 5},
	},
	"shopping": {
		{"%s Shopping Street", "Main shopping street", "10:00-20:00", 90, CategoryActivity, LevelHigh, LevelMedium, false, 4},
		{"Local Design Boutiques", "Design district", "11:00-19:00", 60, CategoryActivity, LevelLow, LevelLow, false, 4},
	},
	"nightlife": {
		{"Rooftop Bar", "City center", "18:00-02:00", 90, CategoryRestaurant, LevelMedium, LevelLow, true, 4},
		{"Live Music Venue", "Entertainment district", "20:00-01:00", 120, CategoryActivity, LevelHigh, LevelMedium, false, 3},
	},
	"adventure": {
		{"%s Bike Tour", "Bike rental point", "09:00-18:00", 180, CategoryActivity, LevelLow, LevelHigh, true, 6},
		{"Viewpoint Hike", "City viewpoint trailhead", "Sunrise-sunset", 150, CategoryActivity, LevelLow, LevelHigh, true, 5},
	},
	"relaxation": {
		{"Spa and Thermal Baths", "Wellness center", "10:00-22:00", 120, CategoryActivity, LevelMedium, LevelLow, false, 5},
		{"Café Afternoon", "Old town café", "08:00-19:00", 60, CategoryRestaurant, LevelLow, LevelLow, false, 4},
	},
}

var defaultTemplates = []activityTemplate{
	{"%s Landmarks Walking Tour", "City center", "Open all day", 120, CategoryActivity, LevelMedium, LevelMedium, true, 7},
	{"Local Lunch Spot", "City center", "11:30-15:00", 60, CategoryRestaurant, LevelMedium, LevelLow, false, 6},
}

// BuildCatalog derives candidate activities for a day from interest tags.
// Unknown tags are ignored; when nothing matches a default day is returned.
func BuildCatalog(req CatalogRequest) []Activity {
	dest := strings.TrimSpace(req.Destination)
	if dest == "" {
		dest = "City"
	}

	seen := make(map[string]bool)
	var templates []activityTemplate
	for _, tag := range req.Interests {
		key, ok := interestAliases[strings.ToLower(strings.TrimSpace(tag))]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		templates = append(templates, interestTemplates[key]...)
	}
	if len(templates) == 0 {
		templates = defaultTemplates
	}

	out := make([]Activity, 0, len(templates))
	for _, t := range templates {
		out = append(out, Activity{
			ID:                "act_" + uuid.NewString(),
			Name:              strings.ReplaceAll(t.name, "%s", dest),
			Location:          t.location,
			OpeningHours:      t.openingHours,
			EstimatedDuration: t.duration,
			Category:          t.category,
			CrowdLevel:        t.crowd,
			EnergyRequired:    t.energy,
			WeatherDependent:  t.weatherDependent,
			Priority:          t.priority,
		})
	}
	return out
}
