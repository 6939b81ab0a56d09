package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tripwise/tripwise/internal/api/middleware"
	"github.com/tripwise/tripwise/internal/api/models"
	"github.com/tripwise/tripwise/internal/api/response"
)

// ProviderCache is a cache of provider answers that operators can inspect and flush.
type ProviderCache interface {
	CacheEntries() map[string]int
	InvalidateCache()
}

// CachesHandler handles provider cache endpoints.
type CachesHandler struct {
	caches []ProviderCache
	logger zerolog.Logger
}

// NewCachesHandler creates a new CachesHandler.
func NewCachesHandler(caches []ProviderCache, logger zerolog.Logger) *CachesHandler {
	return &CachesHandler{caches: caches, logger: logger}
}

// ListCaches handles GET /v1/admin/caches - entry counts per provider cache.
func (h *CachesHandler) ListCaches(w http.ResponseWriter, r *http.Request) {
	out := models.CacheStatus{Entries: make(map[string]int)}
	for _, c := range h.caches {
		for name, n := range c.CacheEntries() {
			out.Entries[name] = n
		}
	}
	response.JSON(w, r, http.StatusOK, out)
}

// InvalidateCaches handles POST /v1/admin/caches/invalidate - drop every cached provider answer.
func (h *CachesHandler) InvalidateCaches(w http.ResponseWriter, r *http.Request) {
	for _, c := range h.caches {
		c.InvalidateCache()
	}

	h.logger.Info().
		Str("request_id", middleware.GetRequestID(r.Context())).
		Int("caches", len(h.caches)).
		Msg("provider caches invalidated")

	response.NoContent(w, r)
}
