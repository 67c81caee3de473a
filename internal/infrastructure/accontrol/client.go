// Package accontrol is the HTTP client for the IR-bridge controllers
// that drive the air-conditioner units.
package accontrol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/NotCoffee418/power-control-center/internal/config"
	"github.com/NotCoffee418/power-control-center/pkg/models"
)

// DeviceClient issues commands to one device's IR bridge. 2xx means
// success; anything else is a transient failure and must not update
// the executor's state cache.
type DeviceClient interface {
	TurnOn(ctx context.Context, device string, cmd models.AcCommand) error
	TurnOff(ctx context.Context, device string) error
	TogglePowerful(ctx context.Context, device string) error
	// SensorInfo polls the unit's telemetry (indoor temperature).
	SensorInfo(ctx context.Context, device string) (*SensorReading, error)
}

// SensorReading is the telemetry one bridge reports for its unit.
type SensorReading struct {
	IndoorTemperature float64 `json:"indoor_temperature"`
}

// turnOnRequest is the wire format of the turn_on_ac call.
type turnOnRequest struct {
	Mode        int     `json:"mode"`
	Temperature float64 `json:"temperature"`
	FanSpeed    int     `json:"fan_speed"`
	Swing       int     `json:"swing"`
}

// Client talks to the configured IR bridges over HTTP with a fixed
// per-call deadline.
type Client struct {
	endpoints map[string]config.ACController
	http      *http.Client
}

// NewClient creates a client for the configured controller endpoints.
func NewClient(endpoints map[string]config.ACController) *Client {
	return &Client{
		endpoints: endpoints,
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// TurnOn sends turn_on_ac with the full desired state.
func (c *Client) TurnOn(ctx context.Context, device string, cmd models.AcCommand) error {
	body := turnOnRequest{
		Mode:        int(cmd.Mode),
		Temperature: cmd.Temperature,
		FanSpeed:    cmd.FanSpeed,
		Swing:       cmd.Swing,
	}
	return c.post(ctx, device, models.ActionOn, "/turn_on_ac", body)
}

// TurnOff sends turn_off_ac.
func (c *Client) TurnOff(ctx context.Context, device string) error {
	return c.post(ctx, device, models.ActionOff, "/turn_off_ac", nil)
}

// TogglePowerful sends toggle_powerful.
func (c *Client) TogglePowerful(ctx context.Context, device string) error {
	return c.post(ctx, device, models.ActionTogglePowerful, "/toggle_powerful", nil)
}

// SensorInfo polls the bridge for unit telemetry.
func (c *Client) SensorInfo(ctx context.Context, device string) (*SensorReading, error) {
	ctrl, ok := c.endpoints[device]
	if !ok {
		return nil, models.ErrDeviceNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ctrl.Endpoint+"/sensor_info", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", ctrl.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sensor poll failed for device %s: %w", device, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("sensor poll failed for device %s: status %d", device, resp.StatusCode)
	}

	var reading SensorReading
	if err := json.NewDecoder(resp.Body).Decode(&reading); err != nil {
		return nil, fmt.Errorf("sensor poll failed for device %s: %w", device, err)
	}
	return &reading, nil
}

func (c *Client) post(ctx context.Context, device string, action models.ActionType, path string, body any) error {
	ctrl, ok := c.endpoints[device]
	if !ok {
		return models.ErrDeviceNotConfigured
	}

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return &models.CommandError{Device: device, Action: action, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ctrl.Endpoint+path, &buf)
	if err != nil {
		return &models.CommandError{Device: device, Action: action, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", ctrl.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return &models.CommandError{Device: device, Action: action, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &models.CommandError{Device: device, Action: action, StatusCode: resp.StatusCode}
	}
	return nil
}
