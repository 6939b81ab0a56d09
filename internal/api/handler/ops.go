// Package handler provides HTTP handlers for the Tripwise API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/tripwise/tripwise/internal/api/models"
	"github.com/tripwise/tripwise/internal/api/response"
	"github.com/tripwise/tripwise/internal/provider/resilience"
)

// Pinger checks a backing store, e.g. a *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DegradationReporter lists the kill switches currently turned on.
type DegradationReporter interface {
	ActiveDegradations(ctx context.Context) []string
}

// OpsConfig holds the dependencies of the operational endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Registry reports outbound provider health (optional).
	Registry *resilience.Registry

	// Flags reports active degradation flags (optional).
	Flags DegradationReporter

	// Database is pinged by the readiness check (optional).
	Database Pinger

	// MapsConfigured is false when no mapping credential is set; route
	// optimization then fails.
	MapsConfigured bool
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]string{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.cfg.Database.Ping(ctx); err != nil {
			response.ServiceUnavailable(w, r, "database unreachable")
			return
		}
	}

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:                 models.HealthStatusOK,
		Time:                   models.Timestamp(time.Now()),
		Version:                h.cfg.Version,
		Subsystems:             h.subsystems(r.Context()),
		Providers:              h.providers(),
		ActiveDegradationFlags: []string{},
	}
	if h.cfg.Flags != nil {
		status.ActiveDegradationFlags = h.cfg.Flags.ActiveDegradations(r.Context())
	}

	for _, s := range status.Subsystems {
		status.Status = worst(status.Status, s.Status)
	}
	for _, p := range status.Providers {
		// A broken provider degrades the service; routes fall back to estimates.
		if p.Status != models.HealthStatusOK {
			status.Status = worst(status.Status, models.HealthStatusDegraded)
		}
	}
	if len(status.ActiveDegradationFlags) > 0 {
		status.Status = worst(status.Status, models.HealthStatusDegraded)
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) subsystems(ctx context.Context) []models.SubsystemStatus {
	maps := models.SubsystemStatus{Name: "maps", Status: models.HealthStatusOK}
	if !h.cfg.MapsConfigured {
		maps.Status = models.HealthStatusFail
		maps.Detail = strPtr("mapping provider credential not configured")
	}
	subsystems := []models.SubsystemStatus{maps}

	if h.cfg.Database != nil {
		db := models.SubsystemStatus{Name: "postgres", Status: models.HealthStatusOK}
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := h.cfg.Database.Ping(ctx); err != nil {
			// Flags fall back to cached and default values.
			db.Status = models.HealthStatusDegraded
			db.Detail = strPtr(err.Error())
		}
		subsystems = append(subsystems, db)
	}

	return subsystems
}

func (h *OpsHandler) providers() []models.ProviderStatus {
	providers := []models.ProviderStatus{}
	if h.cfg.Registry == nil {
		return providers
	}

	for _, ph := range h.cfg.Registry.Snapshot() {
		ps := models.ProviderStatus{
			Provider:            ph.Name,
			Status:              providerLevels[ph.Level()],
			CircuitState:        ph.CircuitState.String(),
			ConsecutiveFailures: ph.ConsecutiveFailures,
			LastSuccessAt:       timestampPtr(ph.LastSuccessAt),
			LastFailureAt:       timestampPtr(ph.LastFailureAt),
		}
		if ph.LastError != "" {
			ps.Message = strPtr(ph.LastError)
		}
		providers = append(providers, ps)
	}
	return providers
}

var providerLevels = map[resilience.Level]models.HealthStatus{
	resilience.LevelOK:       models.HealthStatusOK,
	resilience.LevelDegraded: models.HealthStatusDegraded,
	resilience.LevelDown:     models.HealthStatusFail,
}

var statusRank = map[models.HealthStatus]int{
	models.HealthStatusOK:       0,
	models.HealthStatusDegraded: 1,
	models.HealthStatusFail:     2,
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	if statusRank[b] > statusRank[a] {
		return b
	}
	return a
}

func strPtr(s string) *string {
	return &s
}

func timestampPtr(t *time.Time) *models.Timestamp {
	if t == nil {
		return nil
	}
	ts := models.Timestamp(*t)
	return &ts
}
