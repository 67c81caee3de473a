// Package config provides configuration management for Power Control
// Center. The configuration is a single JSON file read at startup;
// invalid configuration is fatal.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
)

// DefaultPath is used when no path is given on the command line or in
// the environment.
const DefaultPath = "/etc/pcc/config.json"

// Config holds the application configuration.
type Config struct {
	DatabasePath string `json:"database_path"`

	ListenAddress string `json:"listen_address"`
	ListenPort    int    `json:"listen_port"`

	SmartMeterAPIEndpoint string                  `json:"smart_meter_api_endpoint"`
	ACControllerEndpoints map[string]ACController `json:"ac_controller_endpoints"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	PirAPIKey         string `json:"pir_api_key"`
	PirTimeoutMinutes int    `json:"pir_timeout_minutes"`

	// TickIntervalMinutes is the planner period; 5 when omitted.
	TickIntervalMinutes int `json:"tick_interval_minutes,omitempty"`

	Logging Logging `json:"logging"`
}

// ACController is one IR-bridge endpoint driving a single device.
type ACController struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
}

// Logging holds logging-related configuration.
type Logging struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"`
}

// Path resolves the configuration file location: explicit argument,
// then PCC_CONFIG_PATH (a .env file is honored), then the default.
func Path(explicit string) string {
	godotenv.Load()
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("PCC_CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration %s: %w", path, err)
	}

	cfg := &Config{
		ListenAddress:       "0.0.0.0",
		ListenPort:          9040,
		PirTimeoutMinutes:   5,
		TickIntervalMinutes: 5,
		Logging:             Logging{Level: "info", Format: "json"},
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}

	if c.ListenPort < 1 || c.ListenPort > 65535 {
		return fmt.Errorf("invalid listen_port: %d", c.ListenPort)
	}

	if len(c.ACControllerEndpoints) == 0 {
		return fmt.Errorf("at least one ac_controller_endpoints entry is required")
	}
	for device, ctrl := range c.ACControllerEndpoints {
		if ctrl.Endpoint == "" {
			return fmt.Errorf("device %s: endpoint is required", device)
		}
	}

	if c.PirAPIKey == "" {
		return fmt.Errorf("pir_api_key is required")
	}

	if c.PirTimeoutMinutes < 1 {
		return fmt.Errorf("pir_timeout_minutes must be at least 1")
	}

	if c.TickIntervalMinutes < 1 {
		return fmt.Errorf("tick_interval_minutes must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	return nil
}

// Devices returns the configured device identifiers in stable order.
func (c *Config) Devices() []string {
	devices := make([]string, 0, len(c.ACControllerEndpoints))
	for device := range c.ACControllerEndpoints {
		devices = append(devices, device)
	}
	sort.Strings(devices)
	return devices
}

// TickInterval returns the planner period as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMinutes) * time.Minute
}

// PirTimeout returns the PIR lockout window as a duration.
func (c *Config) PirTimeout() time.Duration {
	return time.Duration(c.PirTimeoutMinutes) * time.Minute
}
