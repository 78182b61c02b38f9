// Package geo resolves the machine's approximate geographic position from
// a public IP geolocation endpoint.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Location is a geographic position in decimal degrees
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Locator resolves the current location. Implementations make a single
// attempt; the caller retries on its own schedule.
type Locator interface {
	Locate(ctx context.Context) (Location, error)
}

// HTTPLocator queries an ip-api style JSON endpoint
type HTTPLocator struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPLocator creates a locator against the given endpoint
func NewHTTPLocator(endpoint string, logger *slog.Logger) *HTTPLocator {
	return &HTTPLocator{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Locate fetches the current location
func (l *HTTPLocator) Locate(ctx context.Context) (Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint, nil)
	if err != nil {
		return Location{}, fmt.Errorf("failed to create geolocation request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("geolocation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused
		io.Copy(io.Discard, resp.Body)
		return Location{}, fmt.Errorf("geolocation endpoint returned status %d", resp.StatusCode)
	}

	var loc Location
	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		return Location{}, fmt.Errorf("failed to decode geolocation response: %w", err)
	}

	if loc.Latitude == 0 && loc.Longitude == 0 {
		return Location{}, fmt.Errorf("geolocation endpoint returned no coordinates")
	}

	l.logger.Debug("Resolved location", "lat", loc.Latitude, "lon", loc.Longitude)
	return loc, nil
}
