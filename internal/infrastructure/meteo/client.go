// Package meteo is the HTTP client for the weather forecast service.
package meteo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultBaseURL is the public forecast API endpoint.
const DefaultBaseURL = "https://api.open-meteo.com"

// Forecast is the weather view the planner consumes: the current
// outdoor temperature and the mean over the next 24 hours.
type Forecast struct {
	OutdoorTemp       float64
	AvgOutdoorNext24h float64
}

// Client polls the forecast API for one location.
type Client struct {
	baseURL   string
	latitude  float64
	longitude float64
	http      *http.Client
}

// NewClient creates a weather client for the given coordinates.
func NewClient(baseURL string, latitude, longitude float64) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   baseURL,
		latitude:  latitude,
		longitude: longitude,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type forecastResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
	} `json:"current"`
	Hourly struct {
		Temperature []float64 `json:"temperature_2m"`
	} `json:"hourly"`
}

// Fetch retrieves the current temperature and the 24 h mean.
func (c *Client) Fetch(ctx context.Context) (*Forecast, error) {
	url := fmt.Sprintf(
		"%s/v1/forecast?latitude=%f&longitude=%f&current=temperature_2m&hourly=temperature_2m&forecast_hours=24",
		c.baseURL, c.latitude, c.longitude,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather poll failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("weather poll failed: status %d", resp.StatusCode)
	}

	var body forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("weather poll failed: %w", err)
	}
	if len(body.Hourly.Temperature) == 0 {
		return nil, fmt.Errorf("weather poll returned no hourly data")
	}

	var sum float64
	for _, t := range body.Hourly.Temperature {
		sum += t
	}

	return &Forecast{
		OutdoorTemp:       body.Current.Temperature,
		AvgOutdoorNext24h: sum / float64(len(body.Hourly.Temperature)),
	}, nil
}
