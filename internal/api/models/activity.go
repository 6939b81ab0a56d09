package models

import "github.com/tripwise/tripwise/pkg/routeplan"

// ActivitySuggestRequest is the body of POST /v1/activities:suggest.
type ActivitySuggestRequest struct {
	Interests   []string `json:"interests"`
	Destination string   `json:"destination"`
	TripDay     int      `json:"tripDay"`
}

// ActivitySuggestResponse lists candidate activities for a trip day.
type ActivitySuggestResponse struct {
	Activities []routeplan.Activity `json:"activities"`
}
