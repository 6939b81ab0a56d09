package handler

import (
	"net/http"

	"github.com/tripwise/tripwise/internal/api/models"
	"github.com/tripwise/tripwise/internal/api/response"
	"github.com/tripwise/tripwise/pkg/routeplan"
)

// ActivityHandler handles activity catalog endpoints.
type ActivityHandler struct{}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler() *ActivityHandler {
	return &ActivityHandler{}
}

// SuggestActivities handles POST /v1/activities:suggest - candidate activities
// for a set of interests.
func (h *ActivityHandler) SuggestActivities(w http.ResponseWriter, r *http.Request) {
	var input models.ActivitySuggestRequest
	if err := decodeJSON(w, r, &input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if input.TripDay < 0 {
		response.BadRequest(w, r, "request validation failed", []models.FieldError{
			{Field: "tripDay", Message: "must not be negative"},
		})
		return
	}

	activities := routeplan.BuildCatalog(routeplan.CatalogRequest{
		Interests:   input.Interests,
		Destination: input.Destination,
		TripDay:     input.TripDay,
	})

	response.JSON(w, r, http.StatusOK, models.ActivitySuggestResponse{Activities: activities})
}
