package smartmeter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrent(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/current", r.URL.Path)
		w.Write([]byte(`{"net_power_watt": -1200, "solar_production_watt": 3500}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	reading, err := client.Current(context.Background())
	require.NoError(t, err)

	assert.Equal(t, -1200, reading.NetPowerW)
	assert.Equal(t, 3500, reading.SolarProductionW)
}

func TestCurrent_ServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Current(context.Background())
	assert.Error(t, err)
}
