// Package smartmeter is the HTTP client for the smart-meter API that
// reports household net power and solar inverter production.
package smartmeter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Reading is one meter sample. Net power is positive when drawing from
// the grid and negative when exporting.
type Reading struct {
	NetPowerW        int `json:"net_power_watt"`
	SolarProductionW int `json:"solar_production_watt"`
}

// Client polls the smart-meter API.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a meter client for the given endpoint.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Current fetches the latest meter reading.
func (c *Client) Current(ctx context.Context) (*Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/current", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("meter poll failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("meter poll failed: status %d", resp.StatusCode)
	}

	var reading Reading
	if err := json.NewDecoder(resp.Body).Decode(&reading); err != nil {
		return nil, fmt.Errorf("meter poll failed: %w", err)
	}
	return &reading, nil
}
