package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tripwise/tripwise/internal/api/middleware"
	"github.com/tripwise/tripwise/internal/api/models"
	"github.com/tripwise/tripwise/internal/api/response"
	"github.com/tripwise/tripwise/internal/featureflags"
)

// FlagStore is the subset of the feature flag service used by the admin API.
type FlagStore interface {
	GetAllFlags(ctx context.Context) map[string]*featureflags.Flag
	SetFlags(ctx context.Context, flags []*featureflags.Flag) error
	ResetFlag(ctx context.Context, key string) error
	InvalidateCache()
}

// FeatureFlagsHandler handles feature flag endpoints.
type FeatureFlagsHandler struct {
	service FlagStore
	logger  zerolog.Logger
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service FlagStore, logger zerolog.Logger) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{service: service, logger: logger}
}

// ListFeatureFlags handles GET /v1/admin/feature-flags - list all feature flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	flags := h.service.GetAllFlags(r.Context())

	list := featureflags.FlagList{Items: make([]featureflags.Flag, 0, len(flags))}
	for _, f := range flags {
		list.Items = append(list.Items, *f)
	}
	sort.Slice(list.Items, func(i, j int) bool {
		return list.Items[i].Key < list.Items[j].Key
	})

	response.JSON(w, r, http.StatusOK, list)
}

// UpsertFeatureFlags handles PUT /v1/admin/feature-flags - update feature flags.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var input featureflags.FlagUpdateRequest
	if err := decodeJSON(w, r, &input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if len(input.Updates) == 0 {
		response.BadRequest(w, r, "request validation failed", []models.FieldError{
			{Field: "updates", Message: "must not be empty"},
		})
		return
	}

	var fieldErrors []models.FieldError
	flags := make([]*featureflags.Flag, 0, len(input.Updates))
	for i, u := range input.Updates {
		if err := u.Validate(); err != nil {
			code := "INVALID_VALUE"
			if errors.Is(err, featureflags.ErrUnknownFlag) {
				code = "UNKNOWN_FLAG"
			}
			fieldErrors = append(fieldErrors, models.FieldError{
				Field:   fmt.Sprintf("updates[%d]", i),
				Message: err.Error(),
				Code:    code,
			})
			continue
		}
		flags = append(flags, &featureflags.Flag{Key: u.Key, Value: u.Value})
	}
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "request validation failed", fieldErrors)
		return
	}

	if err := h.service.SetFlags(r.Context(), flags); err != nil {
		h.logger.Error().
			Str("request_id", middleware.GetRequestID(r.Context())).
			Err(err).
			Msg("failed to update feature flags")
		response.InternalError(w, r, "failed to update feature flags")
		return
	}

	keys := make([]string, 0, len(flags))
	for _, f := range flags {
		keys = append(keys, f.Key)
	}
	h.logger.Info().
		Str("request_id", middleware.GetRequestID(r.Context())).
		Strs("keys", keys).
		Str("reason", input.Reason).
		Msg("feature flags updated")

	response.NoContent(w, r)
}

// ResetFeatureFlag handles DELETE /v1/admin/feature-flags/{key} - revert a flag to its default.
func (h *FeatureFlagsHandler) ResetFeatureFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	if err := h.service.ResetFlag(r.Context(), key); err != nil {
		if errors.Is(err, featureflags.ErrUnknownFlag) {
			response.NotFound(w, r, "unknown feature flag "+key)
			return
		}
		h.logger.Error().
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("key", key).
			Err(err).
			Msg("failed to reset feature flag")
		response.InternalError(w, r, "failed to reset feature flag")
		return
	}

	h.logger.Info().
		Str("request_id", middleware.GetRequestID(r.Context())).
		Str("key", key).
		Msg("feature flag reset")

	response.NoContent(w, r)
}

// InvalidateCache handles POST /v1/admin/feature-flags/invalidate - invalidate flag cache.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	response.NoContent(w, r)
}
