package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NotCoffee418/power-control-center/internal/application/acexec"
	"github.com/NotCoffee418/power-control-center/internal/application/snapshot"
	"github.com/NotCoffee418/power-control-center/internal/config"
	"github.com/NotCoffee418/power-control-center/internal/domain/repository"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/accontrol"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/logger"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/meteo"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/smartmeter"
	"github.com/NotCoffee418/power-control-center/pkg/models"
)

type memSettings struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memSettings) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", models.ErrSettingNotFound
	}
	return v, nil
}

func (m *memSettings) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func TestCollectRounds(t *testing.T) {
	t.Parallel()

	meterSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"net_power_watt": 250, "solar_production_watt": 1800}`))
	}))
	defer meterSrv.Close()

	weatherSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"current": {"temperature_2m": 15}, "hourly": {"temperature_2m": [14, 16]}}`))
	}))
	defer weatherSrv.Close()

	bridgeSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"indoor_temperature": 21.5}`))
	}))
	defer bridgeSrv.Close()

	pir := acexec.NewPirLockout(5 * time.Minute)
	provider := snapshot.NewProvider(snapshot.DefaultTTLs(), pir, func(string) *models.AcCommand { return nil })

	settings := &memSettings{values: map[string]string{
		repository.SettingUserIsHomeOverride:           "0",
		repository.SettingAutoModePrefix + "living_room": "0",
	}}

	r := NewRunner(Config{
		Logger:   logger.Default(),
		Provider: provider,
		Devices:  []string{"living_room"},
		Meter:    smartmeter.NewClient(meterSrv.URL),
		Weather:  meteo.NewClient(weatherSrv.URL, 50, 4),
		Bridges: accontrol.NewClient(map[string]config.ACController{
			"living_room": {Endpoint: bridgeSrv.URL, APIKey: "k"},
		}),
		Settings: settings,
	})

	ctx := context.Background()
	r.collectMeter(ctx)
	r.collectWeather(ctx)
	r.collectTelemetry(ctx)
	r.collectSettings(ctx)

	in := provider.Snapshot("living_room")

	require.NotNil(t, in.NetPowerW)
	assert.Equal(t, 250, *in.NetPowerW)
	require.NotNil(t, in.SolarProductionW)
	assert.Equal(t, 1800, *in.SolarProductionW)
	require.NotNil(t, in.OutdoorTemp)
	assert.Equal(t, 15.0, *in.OutdoorTemp)
	require.NotNil(t, in.AvgOutdoorNext24h)
	assert.Equal(t, 15.0, *in.AvgOutdoorNext24h)
	require.NotNil(t, in.IndoorTemp)
	assert.Equal(t, 21.5, *in.IndoorTemp)
	require.NotNil(t, in.IsAutoMode)
	assert.False(t, *in.IsAutoMode, "auto mode setting is honored")
}

// A failing source keeps the previous value; the planner is never
// blocked by collector failures.
func TestCollectMeter_FailureRetainsPriorValue(t *testing.T) {
	t.Parallel()

	var fail bool
	var mu sync.Mutex
	meterSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"net_power_watt": 100, "solar_production_watt": 0}`))
	}))
	defer meterSrv.Close()

	pir := acexec.NewPirLockout(5 * time.Minute)
	provider := snapshot.NewProvider(snapshot.DefaultTTLs(), pir, func(string) *models.AcCommand { return nil })

	r := NewRunner(Config{
		Logger:   logger.Default(),
		Provider: provider,
		Meter:    smartmeter.NewClient(meterSrv.URL),
		Settings: &memSettings{values: map[string]string{}},
	})

	ctx := context.Background()
	r.collectMeter(ctx)

	mu.Lock()
	fail = true
	mu.Unlock()
	r.collectMeter(ctx)

	in := provider.Snapshot("living_room")
	require.NotNil(t, in.NetPowerW, "prior value is retained within its TTL")
	assert.Equal(t, 100, *in.NetPowerW)
}
