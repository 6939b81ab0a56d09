package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tripwise/tripwise/internal/api/middleware"
	"github.com/tripwise/tripwise/internal/api/response"
	"github.com/tripwise/tripwise/internal/optimizer"
	"github.com/tripwise/tripwise/pkg/routeplan"
)

// maxRequestBody bounds decoded request bodies.
const maxRequestBody = 1 << 20

// Optimizer plans one trip day.
type Optimizer interface {
	Optimize(ctx context.Context, req *routeplan.Request) (*routeplan.RouteOptimization, error)
}

// RouteHandler handles route optimization endpoints.
type RouteHandler struct {
	optimizer Optimizer
	logger    zerolog.Logger
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(opt Optimizer, logger zerolog.Logger) *RouteHandler {
	return &RouteHandler{optimizer: opt, logger: logger}
}

// OptimizeRoute handles POST /v1/routes:optimize - order and enrich a trip day.
func (h *RouteHandler) OptimizeRoute(w http.ResponseWriter, r *http.Request) {
	var input routeplan.Request
	if err := decodeJSON(w, r, &input); err != nil {
		h.logger.Error().
			Str("request_id", middleware.GetRequestID(r.Context())).
			Err(err).
			Msg("malformed route request")
		response.Malformed(w, r, "malformed request body", nil)
		return
	}

	result, err := h.optimizer.Optimize(r.Context(), &input)
	if err != nil {
		var verr *routeplan.ValidationError
		switch {
		case errors.As(err, &verr):
			h.logger.Error().
				Str("request_id", middleware.GetRequestID(r.Context())).
				Err(err).
				Msg("route request failed validation")
			response.Invalid(w, r, verr)
		case errors.Is(err, optimizer.ErrMissingCredential):
			h.logger.Error().
				Str("request_id", middleware.GetRequestID(r.Context())).
				Err(err).
				Msg("route optimization unavailable")
			response.InternalError(w, r, err.Error())
		default:
			h.logger.Error().
				Str("request_id", middleware.GetRequestID(r.Context())).
				Err(err).
				Msg("route optimization failed")
			response.InternalError(w, r, "failed to optimize route")
		}
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	response.JSON(w, r, http.StatusOK, result)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	return json.NewDecoder(r.Body).Decode(v)
}
