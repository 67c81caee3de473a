// Package snapshot owns the read-through caches for the smart meter,
// solar inverter, weather and per-device AC telemetry, and assembles
// consistent LiveInputs views for the evaluator.
package snapshot

import (
	"sync"
	"time"

	"github.com/NotCoffee418/power-control-center/internal/application/acexec"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/meteo"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/smartmeter"
	"github.com/NotCoffee418/power-control-center/pkg/models"
)

// TTLs bounds the age at which each source's last value still counts
// as fresh. Stale values surface as missing in the snapshot.
type TTLs struct {
	Meter     time.Duration
	Weather   time.Duration
	Telemetry time.Duration
}

// DefaultTTLs matches three missed collector rounds per source.
func DefaultTTLs() TTLs {
	return TTLs{
		Meter:     30 * time.Second,
		Weather:   30 * time.Minute,
		Telemetry: 90 * time.Second,
	}
}

// presenceWindow is how recent motion must be for the user to count as
// home without an explicit override.
const presenceWindow = 60 * time.Minute

type meterSample struct {
	reading smartmeter.Reading
	at      time.Time
}

type weatherSample struct {
	forecast meteo.Forecast
	at       time.Time
}

type telemetrySample struct {
	indoorTemp float64
	at         time.Time
}

// Provider is single-writer-per-source, many-reader. Collectors write
// their own cache slot; Snapshot is a pure read composing a consistent
// view at the moment of the call, never touching the network.
type Provider struct {
	ttls TTLs
	now  func() time.Time

	pir    *acexec.PirLockout
	active func(device string) *models.AcCommand

	mu               sync.RWMutex
	meter            *meterSample
	weather          *weatherSample
	telemetry        map[string]telemetrySample
	lastChange       map[string]time.Time
	autoMode         map[string]bool
	userHomeOverride int64
}

// NewProvider creates a provider. The active callback reads the
// executor's state cache for the active_command input.
func NewProvider(ttls TTLs, pir *acexec.PirLockout, active func(device string) *models.AcCommand) *Provider {
	return &Provider{
		ttls:       ttls,
		now:        time.Now,
		pir:        pir,
		active:     active,
		telemetry:  make(map[string]telemetrySample),
		lastChange: make(map[string]time.Time),
		autoMode:   make(map[string]bool),
	}
}

// SetMeter stores a fresh meter reading.
func (p *Provider) SetMeter(r smartmeter.Reading) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.meter = &meterSample{reading: r, at: p.now()}
}

// SetWeather stores a fresh forecast.
func (p *Provider) SetWeather(f meteo.Forecast) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.weather = &weatherSample{forecast: f, at: p.now()}
}

// SetTelemetry stores a fresh per-device telemetry reading.
func (p *Provider) SetTelemetry(device string, indoorTemp float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.telemetry[device] = telemetrySample{indoorTemp: indoorTemp, at: p.now()}
}

// SetSettings refreshes the cached settings view: the user-is-home
// override timestamp and the per-device automatic-mode flags.
func (p *Provider) SetSettings(userHomeOverride int64, autoMode map[string]bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userHomeOverride = userHomeOverride
	p.autoMode = autoMode
}

// MarkCommandIssued records that a command was successfully sent to
// the device, feeding the last_change_minutes input.
func (p *Provider) MarkCommandIssued(device string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastChange[device] = p.now()
}

// Snapshot composes the LiveInputs view for one device. Values older
// than their source TTL are left nil.
func (p *Provider) Snapshot(device string) *models.LiveInputs {
	p.mu.RLock()
	defer p.mu.RUnlock()

	now := p.now()
	in := &models.LiveInputs{Device: device}

	if p.meter != nil && now.Sub(p.meter.at) < p.ttls.Meter {
		net := p.meter.reading.NetPowerW
		solar := p.meter.reading.SolarProductionW
		in.NetPowerW = &net
		in.SolarProductionW = &solar
	}

	if p.weather != nil && now.Sub(p.weather.at) < p.ttls.Weather {
		outdoor := p.weather.forecast.OutdoorTemp
		avg := p.weather.forecast.AvgOutdoorNext24h
		in.OutdoorTemp = &outdoor
		in.AvgOutdoorNext24h = &avg
	}

	if sample, ok := p.telemetry[device]; ok && now.Sub(sample.at) < p.ttls.Telemetry {
		indoor := sample.indoorTemp
		in.IndoorTemp = &indoor
	}

	auto, ok := p.autoMode[device]
	if !ok {
		auto = true
	}
	in.IsAutoMode = &auto

	home := p.userIsHomeLocked(device, now)
	in.UserIsHome = &home

	detected := p.pir.DetectedWithin(device, presenceWindow)
	in.PirDetected = &detected
	in.PirMinutesAgo = p.pir.MinutesSince(device)

	if ts, ok := p.lastChange[device]; ok {
		minutes := int(now.Sub(ts) / time.Minute)
		in.LastChangeMinutes = &minutes
	}

	in.ActiveCommand = p.active(device)

	return in
}

// userIsHomeLocked derives occupancy: an active override wins, then
// recent motion at this device's sensor counts as presence.
func (p *Provider) userIsHomeLocked(device string, now time.Time) bool {
	if p.userHomeOverride > 0 && now.Unix() < p.userHomeOverride {
		return true
	}
	return p.pir.DetectedWithin(device, presenceWindow)
}
