package acexec

import (
	"context"
	"sync"

	"github.com/NotCoffee418/power-control-center/internal/infrastructure/accontrol"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/logger"
	"github.com/NotCoffee418/power-control-center/pkg/models"
)

// Attempt is one issued (or attempted) device command.
type Attempt struct {
	Action  models.ActionType
	Command models.AcCommand // the full desired state at issue time
	Err     error
}

// Result reports what one Apply did: the desired state, every command
// attempt, the effective cause and the degraded flag for the log.
type Result struct {
	Desired      *models.AcCommand
	Attempts     []Attempt
	CauseID      int
	ManualToAuto bool
	Degraded     bool
}

// Failed reports whether any attempt failed.
func (r *Result) Failed() bool {
	for _, a := range r.Attempts {
		if a.Err != nil {
			return true
		}
	}
	return false
}

// deviceState is the per-device executor state: the last state the
// device is believed to hold, whether any command succeeded since
// process start, and the consecutive-failure count.
type deviceState struct {
	mu           sync.Mutex
	cache        *models.AcCommand
	synchronized bool
	failures     int
	lastAutoMode *bool
}

// Executor converts plans into the minimum command set per device. The
// state cache is in-memory only; first-execution forcing covers the
// process-restart case.
type Executor struct {
	client accontrol.DeviceClient
	log    *logger.Logger

	mu      sync.Mutex
	devices map[string]*deviceState
}

// NewExecutor creates a new executor.
func NewExecutor(client accontrol.DeviceClient, log *logger.Logger) *Executor {
	return &Executor{
		client:  client,
		log:     log,
		devices: make(map[string]*deviceState),
	}
}

func (x *Executor) state(device string) *deviceState {
	x.mu.Lock()
	defer x.mu.Unlock()
	ds, ok := x.devices[device]
	if !ok {
		ds = &deviceState{}
		x.devices[device] = ds
	}
	return ds
}

// Active returns the cached state for a device, or nil when no command
// has succeeded yet this process.
func (x *Executor) Active(device string) *models.AcCommand {
	ds := x.state(device)
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.cache == nil {
		return nil
	}
	cached := *ds.cache
	return &cached
}

// Reset clears the synchronization mark of every device so the next
// tick forces a full resend.
func (x *Executor) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, ds := range x.devices {
		ds.mu.Lock()
		ds.synchronized = false
		ds.mu.Unlock()
	}
}

// Apply diffs the plan's desired state against the cache and issues the
// minimum command set. The cache is updated only after a command's
// HTTP call succeeds; a transient failure leaves it unchanged so the
// next tick retries. After two consecutive failing ticks the device is
// marked degraded but commands are still attempted, because the
// physical state is unknown.
func (x *Executor) Apply(ctx context.Context, device string, plan *models.Plan, in *models.LiveInputs) *Result {
	ds := x.state(device)
	ds.mu.Lock()
	defer ds.mu.Unlock()

	res := &Result{CauseID: plan.CauseID, Degraded: ds.failures >= 2}

	force := !ds.synchronized

	// A device returning from manual control to automatic gets a full
	// state send regardless of diff, with its own cause.
	if in != nil && in.IsAutoMode != nil {
		if ds.lastAutoMode != nil && !*ds.lastAutoMode && *in.IsAutoMode {
			force = true
			res.ManualToAuto = true
			res.CauseID = models.CauseManualToAuto
		}
		mode := *in.IsAutoMode
		ds.lastAutoMode = &mode
	}

	desired := PlanToState(plan)
	if desired == nil {
		// NoChange retains the prior state. A forced resend replays
		// the cache; with nothing cached there is nothing to send.
		if !force || ds.cache == nil {
			return res
		}
		retained := *ds.cache
		desired = &retained
	}
	res.Desired = desired

	x.issue(ctx, device, ds, desired, force, res)

	if res.Failed() {
		ds.failures++
	} else {
		ds.failures = 0
	}
	return res
}

// issue sends the commands the diff requires, in order: on/off first,
// then the powerful toggle.
func (x *Executor) issue(ctx context.Context, device string, ds *deviceState, desired *models.AcCommand, force bool, res *Result) {
	cache := ds.cache
	cacheOn := cache != nil && cache.IsOn

	if desired.IsOn {
		needOn := force || cache == nil || !cacheOn ||
			cache.Mode != desired.Mode ||
			cache.Temperature != desired.Temperature ||
			cache.FanSpeed != desired.FanSpeed ||
			cache.Swing != desired.Swing

		if needOn {
			err := x.client.TurnOn(ctx, device, *desired)
			res.Attempts = append(res.Attempts, Attempt{Action: models.ActionOn, Command: *desired, Err: err})
			if err != nil {
				x.log.Warn("turn_on_ac failed", "device", device, "error", err)
				return
			}
			next := *desired
			// Powerful is driven by a separate toggle; carry the
			// believed toggle state over from the cache.
			next.Powerful = cacheOn && cache.Powerful
			ds.cache = &next
			ds.synchronized = true
		}

		if ds.cache != nil && ds.cache.Powerful != desired.Powerful {
			err := x.client.TogglePowerful(ctx, device)
			res.Attempts = append(res.Attempts, Attempt{Action: models.ActionTogglePowerful, Command: *desired, Err: err})
			if err != nil {
				x.log.Warn("toggle_powerful failed", "device", device, "error", err)
				return
			}
			ds.cache.Powerful = desired.Powerful
			ds.synchronized = true
		}
		return
	}

	// Desired off. Both off and not forced is the steady-state no-op.
	if !force && cache != nil && !cacheOn {
		return
	}

	err := x.client.TurnOff(ctx, device)
	res.Attempts = append(res.Attempts, Attempt{Action: models.ActionOff, Command: *desired, Err: err})
	if err != nil {
		x.log.Warn("turn_off_ac failed", "device", device, "error", err)
		return
	}
	off := *desired
	off.IsOn = false
	off.Powerful = false
	ds.cache = &off
	ds.synchronized = true
}

// ForceOff is the PIR fast path: it bypasses the scheduler, acquires
// the same per-device state and turns the unit off immediately. With
// an unknown cache the command is sent anyway.
func (x *Executor) ForceOff(ctx context.Context, device string, cause models.CauseReason) *Result {
	ds := x.state(device)
	ds.mu.Lock()
	defer ds.mu.Unlock()

	res := &Result{
		CauseID:  cause.ID,
		Desired:  &models.AcCommand{IsOn: false, Mode: models.AcModeOff},
		Degraded: ds.failures >= 2,
	}

	if ds.cache != nil && !ds.cache.IsOn {
		return res
	}

	err := x.client.TurnOff(ctx, device)
	res.Attempts = append(res.Attempts, Attempt{Action: models.ActionOff, Command: *res.Desired, Err: err})
	if err != nil {
		x.log.Warn("pir turn_off_ac failed", "device", device, "error", err)
		ds.failures++
		return res
	}

	ds.cache = &models.AcCommand{IsOn: false, Mode: models.AcModeOff}
	ds.synchronized = true
	ds.failures = 0
	return res
}
