package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwise/tripwise/internal/api"
	"github.com/tripwise/tripwise/internal/api/handler"
	"github.com/tripwise/tripwise/internal/api/models"
	"github.com/tripwise/tripwise/internal/featureflags"
	"github.com/tripwise/tripwise/internal/maps"
	"github.com/tripwise/tripwise/internal/maps/googlemaps"
	"github.com/tripwise/tripwise/internal/optimizer"
	"github.com/tripwise/tripwise/internal/provider/resilience"
	"github.com/tripwise/tripwise/pkg/routeplan"
)

const testAdminToken = "test-admin-token"

type stubOptimizer struct {
	result *routeplan.RouteOptimization
	err    error
	panic  bool
	got    *routeplan.Request
}

func (s *stubOptimizer) Optimize(_ context.Context, req *routeplan.Request) (*routeplan.RouteOptimization, error) {
	if s.panic {
		panic("boom")
	}
	s.got = req
	return s.result, s.err
}

func newTestFlagService() *featureflags.Service {
	return featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepository(),
		Logger:     zerolog.New(io.Discard),
	})
}

func newTestRouter(opt *stubOptimizer, flags *featureflags.Service) http.Handler {
	return api.NewRouter(api.RouterConfig{
		Version:            "test",
		BuildTime:          "2024-01-01T00:00:00Z",
		Logger:             zerolog.New(io.Discard),
		Optimizer:          opt,
		MapsConfigured:     true,
		FeatureFlagService: flags,
		ProviderRegistry:   resilience.NewRegistry(),
		AdminToken:         testAdminToken,
	})
}

func sampleRequest() routeplan.Request {
	return routeplan.Request{
		Activities: []routeplan.Activity{
			{
				ID: "1", Name: "City Museum", Location: "Museum Square", EstimatedDuration: 120,
				Category: routeplan.CategoryAttraction, CrowdLevel: routeplan.LevelHigh,
				EnergyRequired: routeplan.LevelHigh, Priority: 8,
			},
			{
				ID: "2", Name: "Riverside Walk", Location: "Riverside", EstimatedDuration: 60,
				Category: routeplan.CategoryActivity, CrowdLevel: routeplan.LevelLow,
				EnergyRequired: routeplan.LevelLow, WeatherDependent: true, Priority: 5,
			},
		},
		StartTime:     "09:00",
		IncludeBreaks: true,
		Destination:   "Lisbon",
		TripDay:       1,
	}
}

func postJSON(t *testing.T, router http.Handler, path string, v interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter(&stubOptimizer{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	err := json.Unmarshal(w.Body.Bytes(), &health)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	router := newTestRouter(&stubOptimizer{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var health models.Health
	err := json.Unmarshal(w.Body.Bytes(), &health)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusOK, health.Status)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestRouter_ReadinessCheck_DatabaseDown(t *testing.T) {
	router := api.NewRouter(api.RouterConfig{
		Logger:         zerolog.New(io.Discard),
		Optimizer:      &stubOptimizer{},
		MapsConfigured: true,
		Database:       failingPinger{},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_SystemStatus(t *testing.T) {
	flags := newTestFlagService()
	router := newTestRouter(&stubOptimizer{}, flags)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))

	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Subsystems, 1)
	assert.Equal(t, "maps", status.Subsystems[0].Name)
	assert.Empty(t, status.ActiveDegradationFlags)

	require.NoError(t, flags.SetFlag(context.Background(), &featureflags.Flag{
		Key:   featureflags.FlagDisableDistanceMatrix,
		Value: true,
	}))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))

	assert.Equal(t, models.HealthStatusDegraded, status.Status)
	assert.Equal(t, []string{featureflags.FlagDisableDistanceMatrix}, status.ActiveDegradationFlags)
}

func TestRouter_SystemStatus_ReportsProviders(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("googlemaps")
	cfg.Registry = registry
	resilience.NewClient(cfg)
	registry.RecordFailure("googlemaps", errors.New("REQUEST_DENIED"))

	router := api.NewRouter(api.RouterConfig{
		Logger:           zerolog.New(io.Discard),
		Optimizer:        &stubOptimizer{},
		ProviderRegistry: registry,
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))

	assert.Equal(t, models.HealthStatusFail, status.Status, "missing mapping credential fails the service")
	require.Len(t, status.Providers, 1)
	assert.Equal(t, "googlemaps", status.Providers[0].Provider)
	assert.Equal(t, models.HealthStatusDegraded, status.Providers[0].Status, "last call failed")
	require.NotNil(t, status.Providers[0].Message)
	assert.Equal(t, "REQUEST_DENIED", *status.Providers[0].Message)
	assert.NotNil(t, status.Providers[0].LastFailureAt)
	assert.Equal(t, "closed", status.Providers[0].CircuitState)
	assert.Equal(t, 1, status.Providers[0].ConsecutiveFailures)
}

func TestRouter_OptimizeRoute(t *testing.T) {
	input := sampleRequest()
	result, err := routeplan.Plan(&input, time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	opt := &stubOptimizer{result: result}
	router := newTestRouter(opt, nil)

	w := postJSON(t, router, "/v1/routes:optimize", input)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	require.NotNil(t, opt.got)
	assert.Equal(t, "Lisbon", opt.got.Destination)
	assert.Len(t, opt.got.Activities, 2)

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	for _, key := range []string{
		"optimizedOrder", "totalWalkingTime", "totalDuration", "energyDistribution",
		"suggestions", "breaks", "transportationOptions", "realTravelTimes",
	} {
		assert.Contains(t, resp, key)
	}
	assert.Equal(t, "[]", string(resp["breaks"]))
}

func TestRouter_OptimizeRoute_InvalidJSON(t *testing.T) {
	router := newTestRouter(&stubOptimizer{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/routes:optimize", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "malformed request body", body["error"])
	assert.NotContains(t, body, "optimizedOrder", "no partial envelope")
}

func TestRouter_OptimizeRoute_ValidationError(t *testing.T) {
	opt := &stubOptimizer{err: &routeplan.ValidationError{Fields: []routeplan.FieldError{
		{Field: "startTime", Message: "must be HH:MM"},
	}}}
	router := newTestRouter(opt, nil)

	w := postJSON(t, router, "/v1/routes:optimize", sampleRequest())

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeInternal, problem.Type)
	assert.Equal(t, "request validation failed", problem.Error)
	assert.Equal(t, "/v1/routes:optimize", problem.Instance)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "startTime", problem.Errors[0].Field)
}

func TestRouter_OptimizeRoute_MissingCredential(t *testing.T) {
	router := newTestRouter(&stubOptimizer{err: optimizer.ErrMissingCredential}, nil)

	w := postJSON(t, router, "/v1/routes:optimize", sampleRequest())

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, optimizer.ErrMissingCredential.Error(), body["error"])
}

func TestRouter_OptimizeRoute_UnexpectedError(t *testing.T) {
	router := newTestRouter(&stubOptimizer{err: errors.New("internal detail")}, nil)

	w := postJSON(t, router, "/v1/routes:optimize", sampleRequest())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "internal detail")
	assert.Contains(t, w.Body.String(), `"error":"failed to optimize route"`)
}

func TestRouter_OptimizeRoute_Panic(t *testing.T) {
	router := newTestRouter(&stubOptimizer{panic: true}, nil)

	w := postJSON(t, router, "/v1/routes:optimize", sampleRequest())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"an unexpected error occurred"`)
}

func TestRouter_SuggestActivities(t *testing.T) {
	router := newTestRouter(&stubOptimizer{}, nil)

	w := postJSON(t, router, "/v1/activities:suggest", models.ActivitySuggestRequest{
		Interests:   []string{"food", "Food", "unknown"},
		Destination: "Tokyo",
		TripDay:     2,
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ActivitySuggestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Activities)
	for _, a := range resp.Activities {
		assert.True(t, strings.HasPrefix(a.ID, "act_"), a.ID)
	}
}

func TestRouter_SuggestActivities_NegativeTripDay(t *testing.T) {
	router := newTestRouter(&stubOptimizer{}, nil)

	w := postJSON(t, router, "/v1/activities:suggest", models.ActivitySuggestRequest{TripDay: -1})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "tripDay")
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(&stubOptimizer{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/nowhere", http.NoBody))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_RejectsNonJSONBody(t *testing.T) {
	router := newTestRouter(&stubOptimizer{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/routes:optimize", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func adminRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("X-Admin-Token", testAdminToken)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRouter_Admin_RequiresToken(t *testing.T) {
	router := newTestRouter(&stubOptimizer{}, newTestFlagService())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/feature-flags", http.NoBody))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_Admin_ListFeatureFlags(t *testing.T) {
	router := newTestRouter(&stubOptimizer{}, newTestFlagService())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodGet, "/v1/admin/feature-flags", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)

	var list featureflags.FlagList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	keys := make([]string, 0, len(list.Items))
	for _, f := range list.Items {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{
		featureflags.FlagDisableDistanceMatrix,
		featureflags.FlagDisableTransportOptions,
		featureflags.FlagDisableWeatherForecast,
		featureflags.FlagMaxTransportLegs,
	}, keys)
}

func TestRouter_Admin_UpsertFeatureFlags(t *testing.T) {
	flags := newTestFlagService()
	router := newTestRouter(&stubOptimizer{}, flags)

	body := `{"updates":[{"key":"max_transport_legs","value":1},{"key":"disable_weather_forecast","value":true}],"reason":"quota"}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodPut, "/v1/admin/feature-flags", strings.NewReader(body)))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, flags.MaxTransportLegs(context.Background()))
	assert.True(t, flags.IsWeatherForecastDisabled(context.Background()))
}

func TestRouter_Admin_UpsertFeatureFlags_Invalid(t *testing.T) {
	flags := newTestFlagService()
	router := newTestRouter(&stubOptimizer{}, flags)

	body := `{"updates":[{"key":"max_transport_legs","value":-2},{"key":"no_such_flag","value":true}]}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodPut, "/v1/admin/feature-flags", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	require.Len(t, problem.Errors, 2)
	assert.Equal(t, "updates[0]", problem.Errors[0].Field)
	assert.Equal(t, "INVALID_VALUE", problem.Errors[0].Code)
	assert.Equal(t, "UNKNOWN_FLAG", problem.Errors[1].Code)
	assert.Equal(t, featureflags.DefaultMaxTransportLegs, flags.MaxTransportLegs(context.Background()))
}

func TestRouter_Admin_InvalidateCache(t *testing.T) {
	router := newTestRouter(&stubOptimizer{}, newTestFlagService())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodPost, "/v1/admin/feature-flags/invalidate", http.NoBody))

	assert.Equal(t, http.StatusNoContent, w.Code)
}

type countingCache struct {
	entries map[string]int
	flushed int
}

func (c *countingCache) CacheEntries() map[string]int { return c.entries }

func (c *countingCache) InvalidateCache() {
	c.flushed++
	for k := range c.entries {
		c.entries[k] = 0
	}
}

func TestRouter_Admin_ProviderCaches(t *testing.T) {
	mapsCache := &countingCache{entries: map[string]int{"geocode": 3, "directions": 2}}
	weatherCache := &countingCache{entries: map[string]int{"forecast": 1}}
	router := api.NewRouter(api.RouterConfig{
		Logger:         zerolog.New(io.Discard),
		Optimizer:      &stubOptimizer{},
		ProviderCaches: []handler.ProviderCache{mapsCache, weatherCache},
		AdminToken:     testAdminToken,
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodGet, "/v1/admin/caches", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)

	var status models.CacheStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, map[string]int{"geocode": 3, "directions": 2, "forecast": 1}, status.Entries)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodPost, "/v1/admin/caches/invalidate", http.NoBody))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, mapsCache.flushed)
	assert.Equal(t, 1, weatherCache.flushed)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/admin/caches/invalidate", http.NoBody))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 1, mapsCache.flushed, "no flush without the admin token")
}

func TestRouter_Admin_ResetFlag(t *testing.T) {
	flags := newTestFlagService()
	require.NoError(t, flags.SetFlag(context.Background(), &featureflags.Flag{
		Key:   featureflags.FlagDisableTransportOptions,
		Value: true,
	}))
	router := newTestRouter(&stubOptimizer{}, flags)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodDelete, "/v1/admin/feature-flags/"+featureflags.FlagDisableTransportOptions, http.NoBody))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, flags.IsTransportOptionsDisabled(context.Background()))
}

func TestRouter_Admin_ResetUnknownFlag(t *testing.T) {
	router := newTestRouter(&stubOptimizer{}, newTestFlagService())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, adminRequest(http.MethodDelete, "/v1/admin/feature-flags/enable_teleport", http.NoBody))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "enable_teleport")
}

func TestRouter_RequireTLS(t *testing.T) {
	router := api.NewRouter(api.RouterConfig{
		Logger:     zerolog.New(io.Discard),
		Optimizer:  &stubOptimizer{},
		RequireTLS: true,
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Forwarded-Proto", "http")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req.Header.Set("X-Forwarded-Proto", "https")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestRouter_OptimizeRoute_EndToEnd runs the real optimizer against a fake
// Google Maps server.
func TestRouter_OptimizeRoute_EndToEnd(t *testing.T) {
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/maps/api/geocode/json":
			lat := "38.7"
			if strings.HasPrefix(r.URL.Query().Get("address"), "Riverside") {
				lat = "38.71"
			}
			_, _ = w.Write([]byte(`{"status":"OK","results":[{"geometry":{"location":{"lat":` + lat + `,"lng":-9.14}}}]}`))
		case "/maps/api/distancematrix/json":
			_, _ = w.Write([]byte(`{"status":"OK","rows":[
				{"elements":[{"status":"OK","duration":{"value":0},"distance":{"value":0}},{"status":"OK","duration":{"value":720},"distance":{"value":900}}]},
				{"elements":[{"status":"OK","duration":{"value":700},"distance":{"value":900}},{"status":"OK","duration":{"value":0},"distance":{"value":0}}]}
			]}`))
		case "/maps/api/directions/json":
			_, _ = w.Write([]byte(`{"status":"OK","routes":[{"legs":[{
				"duration":{"value":720,"text":"12 mins"},
				"distance":{"value":900,"text":"0.9 km"},
				"steps":[{"html_instructions":"Head <b>east</b>","travel_mode":"WALKING"}]
			}]}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer google.Close()

	client := googlemaps.NewClient(googlemaps.ClientConfig{
		APIKey:     "test",
		BaseURL:    google.URL,
		HTTPClient: google.Client(),
		Logger:     zerolog.New(io.Discard),
	})
	mapsService := maps.NewService(maps.ServiceConfig{Provider: client, Logger: zerolog.New(io.Discard)})
	opt := optimizer.New(optimizer.Config{Maps: mapsService, Logger: zerolog.New(io.Discard)})

	router := api.NewRouter(api.RouterConfig{
		Logger:         zerolog.New(io.Discard),
		Optimizer:      opt,
		MapsConfigured: true,
	})

	input := sampleRequest()
	input.IncludeBreaks = false
	w := postJSON(t, router, "/v1/routes:optimize", input)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp routeplan.RouteOptimization
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.True(t, resp.RealTravelTimes)
	require.Len(t, resp.OptimizedOrder, 2)
	assert.Equal(t, "2", resp.OptimizedOrder[0].ID, "weather-dependent first")
	assert.Equal(t, []int{0, 12}, resp.OptimizedOrder[0].TravelTimes)
	assert.Equal(t, 12, resp.TotalWalkingTime)
	assert.Equal(t, 180, resp.TotalDuration)

	require.Len(t, resp.TransportationOptions, 3)
	assert.Equal(t, routeplan.ModeTransit, resp.TransportationOptions[0].Mode)
	assert.Equal(t, []string{"Head east"}, resp.TransportationOptions[0].Instructions)
	assert.Equal(t, routeplan.ModeWalking, resp.TransportationOptions[1].Mode)
	assert.Equal(t, routeplan.ModeRideshare, resp.TransportationOptions[2].Mode)
}
