package accontrol

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NotCoffee418/power-control-center/internal/config"
	"github.com/NotCoffee418/power-control-center/pkg/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(map[string]config.ACController{
		"living_room": {Endpoint: server.URL, APIKey: "secret"},
	})
}

func TestTurnOn_SendsWireFormat(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey string
	var gotBody map[string]any

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	})

	err := client.TurnOn(context.Background(), "living_room", models.AcCommand{
		IsOn: true, Mode: models.AcModeCool, Temperature: 20, FanSpeed: 5, Swing: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, "/turn_on_ac", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, float64(4), gotBody["mode"])
	assert.Equal(t, float64(20), gotBody["temperature"])
	assert.Equal(t, float64(5), gotBody["fan_speed"])
	assert.Equal(t, float64(1), gotBody["swing"])
}

func TestCommands_NonSuccessIsTransient(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := client.TurnOff(context.Background(), "living_room")
	require.Error(t, err)

	var cmdErr *models.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, models.ActionOff, cmdErr.Action)
	assert.Equal(t, http.StatusInternalServerError, cmdErr.StatusCode)
}

func TestCommands_UnknownDevice(t *testing.T) {
	t.Parallel()

	client := NewClient(nil)
	err := client.TogglePowerful(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrDeviceNotConfigured)
}

func TestSensorInfo(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sensor_info", r.URL.Path)
		json.NewEncoder(w).Encode(SensorReading{IndoorTemperature: 21.5})
	})

	reading, err := client.SensorInfo(context.Background(), "living_room")
	require.NoError(t, err)
	assert.Equal(t, 21.5, reading.IndoorTemperature)
}
