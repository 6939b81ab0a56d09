// Package openweathermap provides a client for the OpenWeatherMap One Call API.
package openweathermap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripwise/tripwise/internal/provider/resilience"
	"github.com/tripwise/tripwise/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "openweathermap"

	// DefaultOneCallURL is the OpenWeatherMap OneCall API 3.0 base URL.
	DefaultOneCallURL = "https://api.openweathermap.org/data/3.0/onecall"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// OneCallURL is the OneCall API URL (optional, defaults to OneCall 3.0).
	OneCallURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenWeatherMap API client.
type Client struct {
	apiKey     string
	oneCallURL string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	oneCallURL := cfg.OneCallURL
	if oneCallURL == "" {
		oneCallURL = DefaultOneCallURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		if cfg.Timeout > 0 {
			clientCfg.Timeout = cfg.Timeout
		}
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		oneCallURL: oneCallURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetForecast fetches the next 48 hourly forecasts around lat/lon in
// metric units. Other One Call sections are excluded to keep responses small.
func (c *Client) GetForecast(ctx context.Context, lat, lon float64) (*weather.Forecast, error) {
	q := url.Values{
		"lat":     {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":     {strconv.FormatFloat(lon, 'f', 6, 64)},
		"appid":   {c.apiKey},
		"units":   {"metric"},
		"exclude": {"current,minutely,daily,alerts"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.oneCallURL+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", weather.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return nil, err
	}

	var body oneCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding forecast: %w", err)
	}

	forecast := &weather.Forecast{
		Lat:       body.Lat,
		Lon:       body.Lon,
		UTCOffset: time.Duration(body.TimezoneOffset) * time.Second,
		Hourly:    make([]weather.HourlyForecast, len(body.Hourly)),
		FetchedAt: time.Now(),
	}
	for i, h := range body.Hourly {
		forecast.Hourly[i] = h.toDomain()
	}

	c.logger.Debug().
		Str("provider", ProviderName).
		Str("timezone", body.Timezone).
		Int("hours", len(forecast.Hourly)).
		Msg("forecast received")

	return forecast, nil
}

func statusError(code int) error {
	switch code {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return weather.ErrUnauthorized
	case http.StatusNotFound:
		return weather.ErrNoDataForLocation
	case http.StatusBadRequest:
		return weather.ErrInvalidCoordinates
	}
	return fmt.Errorf("%w: status %d", weather.ErrProviderUnavailable, code)
}

// conditions maps the One Call "main" group to a domain condition.
var conditions = map[string]weather.Condition{
	"Clear":        weather.ConditionClear,
	"Clouds":       weather.ConditionClouds,
	"Rain":         weather.ConditionRain,
	"Drizzle":      weather.ConditionDrizzle,
	"Thunderstorm": weather.ConditionThunderstorm,
	"Snow":         weather.ConditionSnow,
	"Mist":         weather.ConditionMist,
	"Fog":          weather.ConditionFog,
	"Haze":         weather.ConditionHaze,
	"Smoke":        weather.ConditionHaze,
	"Dust":         weather.ConditionHaze,
	"Sand":         weather.ConditionHaze,
	"Ash":          weather.ConditionHaze,
	"Squall":       weather.ConditionHaze,
	"Tornado":      weather.ConditionHaze,
}

type oneCallResponse struct {
	Lat            float64      `json:"lat"`
	Lon            float64      `json:"lon"`
	Timezone       string       `json:"timezone"`
	TimezoneOffset int          `json:"timezone_offset"`
	Hourly         []hourlyData `json:"hourly"`
}

type hourlyData struct {
	Dt      int64   `json:"dt"`
	Temp    float64 `json:"temp"`
	Pop     float64 `json:"pop"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

func (h hourlyData) toDomain() weather.HourlyForecast {
	out := weather.HourlyForecast{
		Time:        time.Unix(h.Dt, 0).UTC(),
		Temperature: h.Temp,
		PrecipProb:  h.Pop,
		Condition:   weather.ConditionUnknown,
	}
	if len(h.Weather) > 0 {
		if c, ok := conditions[h.Weather[0].Main]; ok {
			out.Condition = c
		}
		out.Description = h.Weather[0].Description
	}
	return out
}
