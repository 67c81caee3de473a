// Package collector runs the periodic input collectors: smart meter,
// weather, device telemetry and the settings refresh. Each collector
// is an independent job on its own period; a failed round keeps the
// prior value and its age, so the planner is never blocked.
package collector

import (
	"context"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/NotCoffee418/power-control-center/internal/application/snapshot"
	"github.com/NotCoffee418/power-control-center/internal/domain/repository"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/accontrol"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/logger"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/meteo"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/smartmeter"
)

// Collector periods.
const (
	meterPeriod     = 10 * time.Second
	weatherPeriod   = 10 * time.Minute
	telemetryPeriod = 30 * time.Second
	settingsPeriod  = 10 * time.Second
)

// Runner schedules the collector jobs on a shared cron instance.
type Runner struct {
	log      *logger.Logger
	provider *snapshot.Provider
	devices  []string

	meter    *smartmeter.Client
	weather  *meteo.Client
	bridges  accontrol.DeviceClient
	settings repository.SettingsRepository

	cron *cron.Cron
}

// Config wires a Runner.
type Config struct {
	Logger   *logger.Logger
	Provider *snapshot.Provider
	Devices  []string
	Meter    *smartmeter.Client
	Weather  *meteo.Client
	Bridges  accontrol.DeviceClient
	Settings repository.SettingsRepository
}

// NewRunner creates a collector runner.
func NewRunner(cfg Config) *Runner {
	return &Runner{
		log:      cfg.Logger,
		provider: cfg.Provider,
		devices:  cfg.Devices,
		meter:    cfg.Meter,
		weather:  cfg.Weather,
		bridges:  cfg.Bridges,
		settings: cfg.Settings,
		cron:     cron.New(),
	}
}

// Start primes every cache once and then schedules the periodic jobs.
func (r *Runner) Start(ctx context.Context) {
	// First rounds run inline so the planner's first tick has data.
	r.collectMeter(ctx)
	r.collectWeather(ctx)
	r.collectTelemetry(ctx)
	r.collectSettings(ctx)

	r.schedule(meterPeriod, func() { r.collectMeter(ctx) })
	r.schedule(weatherPeriod, func() { r.collectWeather(ctx) })
	r.schedule(telemetryPeriod, func() { r.collectTelemetry(ctx) })
	r.schedule(settingsPeriod, func() { r.collectSettings(ctx) })

	r.cron.Start()
	r.log.Info("collectors started",
		"meter_period", meterPeriod.String(),
		"weather_period", weatherPeriod.String(),
		"telemetry_period", telemetryPeriod.String(),
	)
}

func (r *Runner) schedule(period time.Duration, job func()) {
	r.cron.Schedule(cron.ConstantDelaySchedule{Delay: period}, cron.FuncJob(job))
}

// Stop stops the cron scheduler and waits for running jobs.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

func (r *Runner) collectMeter(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	reading, err := r.meter.Current(callCtx)
	if err != nil {
		r.log.Warn("meter collection failed", "error", err)
		return
	}
	r.provider.SetMeter(*reading)
}

func (r *Runner) collectWeather(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	forecast, err := r.weather.Fetch(callCtx)
	if err != nil {
		r.log.Warn("weather collection failed", "error", err)
		return
	}
	r.provider.SetWeather(*forecast)
}

func (r *Runner) collectTelemetry(ctx context.Context) {
	for _, device := range r.devices {
		callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		reading, err := r.bridges.SensorInfo(callCtx, device)
		cancel()
		if err != nil {
			r.log.Warn("telemetry collection failed", "device", device, "error", err)
			continue
		}
		r.provider.SetTelemetry(device, reading.IndoorTemperature)
	}
}

func (r *Runner) collectSettings(ctx context.Context) {
	override, err := r.settings.Get(ctx, repository.SettingUserIsHomeOverride)
	if err != nil {
		r.log.Warn("settings collection failed", "error", err)
		return
	}
	overrideTs, err := strconv.ParseInt(override, 10, 64)
	if err != nil {
		overrideTs = 0
	}

	autoMode := make(map[string]bool, len(r.devices))
	for _, device := range r.devices {
		value, err := r.settings.Get(ctx, repository.SettingAutoModePrefix+device)
		if err != nil {
			// Absent means automatic control.
			autoMode[device] = true
			continue
		}
		autoMode[device] = value != "0" && value != "false"
	}

	r.provider.SetSettings(overrideTs, autoMode)
}
