package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `{
  "database_path": "/var/lib/pcc/pcc.db",
  "listen_address": "0.0.0.0",
  "listen_port": 9040,
  "smart_meter_api_endpoint": "http://host:9039",
  "ac_controller_endpoints": {
    "living_room": {"endpoint": "http://10.0.0.20", "api_key": "secret"},
    "bedroom": {"endpoint": "http://10.0.0.21", "api_key": "secret"}
  },
  "latitude": 50.85,
  "longitude": 4.35,
  "pir_api_key": "pirsecret",
  "pir_timeout_minutes": 5
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/pcc/pcc.db", cfg.DatabasePath)
	assert.Equal(t, 9040, cfg.ListenPort)
	assert.Equal(t, []string{"bedroom", "living_room"}, cfg.Devices())
	assert.Equal(t, 5*time.Minute, cfg.TickInterval())
	assert.Equal(t, 5*time.Minute, cfg.PirTimeout())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoad_InvalidConfigs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  string
		wantErr string
	}{
		{
			name:    "missing database path",
			mutate:  `{"listen_port": 9040, "pir_api_key": "x", "ac_controller_endpoints": {"a": {"endpoint": "http://x"}}}`,
			wantErr: "database_path",
		},
		{
			name:    "no devices",
			mutate:  `{"database_path": "/tmp/x.db", "pir_api_key": "x", "ac_controller_endpoints": {}}`,
			wantErr: "ac_controller_endpoints",
		},
		{
			name:    "device without endpoint",
			mutate:  `{"database_path": "/tmp/x.db", "pir_api_key": "x", "ac_controller_endpoints": {"a": {"api_key": "k"}}}`,
			wantErr: "endpoint is required",
		},
		{
			name:    "missing pir key",
			mutate:  `{"database_path": "/tmp/x.db", "ac_controller_endpoints": {"a": {"endpoint": "http://x"}}}`,
			wantErr: "pir_api_key",
		},
		{
			name:    "bad port",
			mutate:  `{"database_path": "/tmp/x.db", "pir_api_key": "x", "listen_port": 99999, "ac_controller_endpoints": {"a": {"endpoint": "http://x"}}}`,
			wantErr: "listen_port",
		},
		{
			name:    "malformed json",
			mutate:  `{"database_path": `,
			wantErr: "parse",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, tt.mutate))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, `{
	  "database_path": "/tmp/x.db",
	  "pir_api_key": "x",
	  "ac_controller_endpoints": {"a": {"endpoint": "http://x"}}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.ListenAddress)
	assert.Equal(t, 9040, cfg.ListenPort)
	assert.Equal(t, 5, cfg.PirTimeoutMinutes)
	assert.Equal(t, 5, cfg.TickIntervalMinutes)
}
