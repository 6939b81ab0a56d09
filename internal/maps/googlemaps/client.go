// Package googlemaps provides a client for the Google Maps geocoding,
// distance-matrix and directions web services.
package googlemaps

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/tripwise/tripwise/internal/maps"
	"github.com/tripwise/tripwise/internal/provider/resilience"
)

const (
	// ProviderName identifies this mapping provider.
	ProviderName = "googlemaps"

	// DefaultBaseURL is the Google Maps web services base URL.
	DefaultBaseURL = "https://maps.googleapis.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 8 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Google Maps client.
type ClientConfig struct {
	// APIKey is the Google Maps API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to Google).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 8s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Language for returned instructions (optional, defaults to "en").
	Language string

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Google Maps web services client.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient HTTPDoer
	sanitizer  *bluemonday.Policy
	logger     zerolog.Logger
}

// NewClient creates a new Google Maps client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	language := cfg.Language
	if language == "" {
		language = "en"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   language,
		httpClient: httpClient,
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Geocode resolves a free-text address to the first matching coordinate.
func (c *Client) Geocode(ctx context.Context, address string) (*maps.Coordinate, error) {
	params := url.Values{}
	params.Set("address", address)

	var resp geocodeResponse
	if err := c.get(ctx, "/maps/api/geocode/json", params, &resp); err != nil {
		return nil, err
	}
	if err := c.checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, &maps.Error{
			Provider: ProviderName,
			Code:     statusZeroResults,
			Message:  "no geocoding result for address",
			Err:      maps.ErrNotFound,
		}
	}

	loc := resp.Results[0].Geometry.Location

	c.logger.Debug().
		Str("address", address).
		Str("formatted_address", resp.Results[0].FormattedAddress).
		Float64("lat", loc.Lat).
		Float64("lon", loc.Lng).
		Msg("geocoded address")

	return &maps.Coordinate{Lat: loc.Lat, Lon: loc.Lng}, nil
}

// DistanceMatrix fetches travel durations between every origin and destination
// in a single request. Elements Google could not resolve are returned with OK unset.
func (c *Client) DistanceMatrix(ctx context.Context, req maps.MatrixRequest) (*maps.Matrix, error) {
	params := url.Values{}
	params.Set("origins", joinCoordinates(req.Origins))
	params.Set("destinations", joinCoordinates(req.Destinations))
	params.Set("mode", modeOrDefault(req.Mode))

	var resp distanceMatrixResponse
	if err := c.get(ctx, "/maps/api/distancematrix/json", params, &resp); err != nil {
		return nil, err
	}
	if err := c.checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return nil, err
	}

	rows := make([][]maps.MatrixElement, len(resp.Rows))
	for i, row := range resp.Rows {
		rows[i] = make([]maps.MatrixElement, len(row.Elements))
		for j, el := range row.Elements {
			rows[i][j] = maps.MatrixElement{
				OK:              el.Status == statusOK,
				DurationSeconds: int(el.Duration.Value),
				DistanceMeters:  int(el.Distance.Value),
			}
		}
	}

	c.logger.Debug().
		Int("origins", len(req.Origins)).
		Int("destinations", len(req.Destinations)).
		Str("mode", string(req.Mode)).
		Msg("received distance matrix")

	return &maps.Matrix{
		Rows:      rows,
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}, nil
}

// GetDirections returns the first route between two points.
func (c *Client) GetDirections(ctx context.Context, req maps.DirectionsRequest) (*maps.Directions, error) {
	params := url.Values{}
	params.Set("origin", formatCoordinate(req.Origin))
	params.Set("destination", formatCoordinate(req.Destination))
	params.Set("mode", modeOrDefault(req.Mode))

	var resp directionsResponse
	if err := c.get(ctx, "/maps/api/directions/json", params, &resp); err != nil {
		return nil, err
	}
	if err := c.checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return nil, err
	}
	if len(resp.Routes) == 0 || len(resp.Routes[0].Legs) == 0 {
		return nil, &maps.Error{
			Provider: ProviderName,
			Code:     statusZeroResults,
			Message:  "no route found between the given points",
			Err:      maps.ErrNotFound,
		}
	}

	r := resp.Routes[0]
	l := r.Legs[0]

	out := &maps.Directions{
		DurationSeconds: int(l.Duration.Value),
		DurationText:    l.Duration.Text,
		DistanceMeters:  int(l.Distance.Value),
		DistanceText:    l.Distance.Text,
		Steps:           make([]string, 0, len(l.Steps)),
		Provider:        ProviderName,
		FetchedAt:       time.Now(),
	}
	if r.Fare != nil {
		out.Fare = r.Fare.Text
	}
	for _, s := range l.Steps {
		text := c.plainText(s.HTMLInstructions)
		if s.TransitDetails != nil && s.TransitDetails.Line.ShortName != "" {
			text = fmt.Sprintf("%s (line %s)", text, s.TransitDetails.Line.ShortName)
		}
		if text != "" {
			out.Steps = append(out.Steps, text)
		}
	}

	c.logger.Debug().
		Str("mode", string(req.Mode)).
		Int("duration_s", out.DurationSeconds).
		Int("steps", len(out.Steps)).
		Msg("received directions")

	return out, nil
}

// get performs a GET request against a Google Maps JSON endpoint and decodes the body into v.
func (c *Client) get(ctx context.Context, path string, params url.Values, v any) error {
	params.Set("key", c.apiKey)
	params.Set("language", c.language)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &maps.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach mapping provider",
			Err:      fmt.Errorf("%w: %w", maps.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return c.handleErrorResponse(resp.StatusCode)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// checkStatus maps the API-level status field to domain errors.
func (c *Client) checkStatus(status, message string) error {
	switch status {
	case statusOK:
		return nil
	case statusZeroResults, statusNotFound:
		return &maps.Error{
			Provider: ProviderName,
			Code:     status,
			Message:  "no result found",
			Err:      maps.ErrNotFound,
		}
	case statusOverQueryLimit:
		return &maps.Error{
			Provider: ProviderName,
			Code:     status,
			Message:  "API quota exceeded, please try again later",
			Err:      maps.ErrRateLimitExceeded,
		}
	case statusRequestDenied:
		return &maps.Error{
			Provider: ProviderName,
			Code:     status,
			Message:  orDefault(message, "API access denied - check API key configuration"),
			Err:      maps.ErrRequestDenied,
		}
	case statusInvalidRequest, statusMaxElements:
		return &maps.Error{
			Provider: ProviderName,
			Code:     status,
			Message:  orDefault(message, "request rejected by mapping provider"),
			Err:      maps.ErrInvalidCoordinates,
		}
	default:
		return &maps.Error{
			Provider: ProviderName,
			Code:     orDefault(status, "UNKNOWN_ERROR"),
			Message:  orDefault(message, "mapping provider is temporarily unavailable"),
			Err:      maps.ErrProviderUnavailable,
		}
	}
}

// handleErrorResponse maps non-200 HTTP responses to domain errors.
func (c *Client) handleErrorResponse(statusCode int) error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return &maps.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "API rate limit exceeded, please try again later",
			Err:      maps.ErrRateLimitExceeded,
		}
	case statusCode == http.StatusForbidden || statusCode == http.StatusUnauthorized:
		return &maps.Error{
			Provider: ProviderName,
			Code:     "FORBIDDEN",
			Message:  "API access denied - check API key configuration",
			Err:      maps.ErrRequestDenied,
		}
	case statusCode >= 500:
		return &maps.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("SERVER_%d", statusCode),
			Message:  "mapping provider is temporarily unavailable",
			Err:      maps.ErrProviderUnavailable,
		}
	default:
		return &maps.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("mapping provider returned status %d", statusCode),
			Err:      maps.ErrProviderUnavailable,
		}
	}
}

// angleEscaper keeps decoded text from turning back into markup.
var angleEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// plainText strips markup from an instruction and collapses whitespace.
// Google wraps secondary hints in <div>, so a space is kept where each one starts.
// Entities are decoded for readability but angle brackets stay escaped.
func (c *Client) plainText(s string) string {
	s = strings.ReplaceAll(s, "<div", " <div")
	s = angleEscaper.Replace(html.UnescapeString(c.sanitizer.Sanitize(s)))
	return strings.Join(strings.Fields(s), " ")
}

func formatCoordinate(p maps.Coordinate) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lon, 'f', 6, 64)
}

func joinCoordinates(points []maps.Coordinate) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = formatCoordinate(p)
	}
	return strings.Join(parts, "|")
}

func modeOrDefault(m maps.Mode) string {
	if m == "" {
		return string(maps.ModeWalking)
	}
	return string(m)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
