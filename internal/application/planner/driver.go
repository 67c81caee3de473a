// Package planner drives the periodic decision loop: snapshot,
// evaluate, PIR gate, execute, log — per device, in order.
package planner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/NotCoffee418/power-control-center/internal/application/acexec"
	"github.com/NotCoffee418/power-control-center/internal/application/causes"
	"github.com/NotCoffee418/power-control-center/internal/application/engine"
	"github.com/NotCoffee418/power-control-center/internal/application/snapshot"
	"github.com/NotCoffee418/power-control-center/internal/domain/repository"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/logger"
	"github.com/NotCoffee418/power-control-center/pkg/models"
)

// Driver owns the tick loop. One instance runs per process; ticks
// never overlap (a late tick is dropped with a warning), and device
// work within a tick is sequential so the action log keeps a total
// order.
type Driver struct {
	log      *logger.Logger
	devices  []string
	interval time.Duration

	provider *snapshot.Provider
	registry *engine.Registry
	eval     *engine.Evaluator
	causes   *causes.Registry
	executor *acexec.Executor
	pir      *acexec.PirLockout

	nodesets repository.NodesetRepository
	settings repository.SettingsRepository
	actions  repository.ActionRepository

	cron        *cron.Cron
	tickRunning atomic.Bool

	// procMu serializes device processing across the periodic tick and
	// ad-hoc reevaluations so log writes stay ordered.
	procMu sync.Mutex

	progMu    sync.Mutex
	prog      *engine.Program
	progStale bool

	stateMu   sync.Mutex
	lastCause map[string]int
	lastError map[string]string
}

// Config wires a Driver.
type Config struct {
	Logger   *logger.Logger
	Devices  []string
	Interval time.Duration

	Provider *snapshot.Provider
	Registry *engine.Registry
	Causes   *causes.Registry
	Executor *acexec.Executor
	Pir      *acexec.PirLockout

	Nodesets repository.NodesetRepository
	Settings repository.SettingsRepository
	Actions  repository.ActionRepository
}

// NewDriver creates the planner driver.
func NewDriver(cfg Config) *Driver {
	d := &Driver{
		log:       cfg.Logger,
		devices:   cfg.Devices,
		interval:  cfg.Interval,
		provider:  cfg.Provider,
		registry:  cfg.Registry,
		eval:      engine.NewEvaluator(cfg.Logger),
		causes:    cfg.Causes,
		executor:  cfg.Executor,
		pir:       cfg.Pir,
		nodesets:  cfg.Nodesets,
		settings:  cfg.Settings,
		actions:   cfg.Actions,
		cron:      cron.New(),
		lastCause: make(map[string]int),
		lastError: make(map[string]string),
	}

	// A registry change invalidates the compiled program: the
	// CauseReason enumeration baked into it may have moved.
	cfg.Causes.Subscribe(d.InvalidateProgram)

	return d
}

// Start schedules the periodic tick.
func (d *Driver) Start(ctx context.Context) {
	d.cron.Schedule(cron.ConstantDelaySchedule{Delay: d.interval}, cron.FuncJob(func() {
		d.Tick(ctx)
	}))
	d.cron.Start()
	d.log.Info("planner started", "interval", d.interval.String(), "devices", d.devices)
}

// Stop stops the scheduler and waits for an in-flight tick to finish.
func (d *Driver) Stop() {
	ctx := d.cron.Stop()
	<-ctx.Done()
}

// InvalidateProgram drops the compiled program so the next tick
// recompiles the active nodeset.
func (d *Driver) InvalidateProgram() {
	d.progMu.Lock()
	d.progStale = true
	d.progMu.Unlock()
}

// Tick runs one full planning round. Overlapping ticks are dropped.
func (d *Driver) Tick(ctx context.Context) {
	if !d.tickRunning.CompareAndSwap(false, true) {
		d.log.Warn("tick dropped: previous tick still running")
		return
	}
	defer d.tickRunning.Store(false)

	prog, err := d.activeProgram(ctx)
	if err != nil {
		d.log.Error("tick skipped: no usable program", "error", err)
		return
	}

	for _, device := range d.devices {
		select {
		case <-ctx.Done():
			d.log.Warn("tick aborted: shutting down")
			return
		default:
		}
		d.processDevice(ctx, device, prog)
	}
}

// EvaluateNow reevaluates a single device outside the periodic tick,
// used by the PIR endpoint and the manual-to-auto transition.
func (d *Driver) EvaluateNow(ctx context.Context, device string) {
	prog, err := d.activeProgram(ctx)
	if err != nil {
		d.log.Error("reevaluation skipped: no usable program", "device", device, "error", err)
		return
	}
	d.processDevice(ctx, device, prog)
}

// PirDetect handles a motion detection: record the timestamp, turn the
// unit off immediately on a dedicated path, then reevaluate so the
// lockout plan lands in the log.
func (d *Driver) PirDetect(ctx context.Context, device string) {
	d.pir.Detect(device)

	cause, _ := d.causes.Get(models.CausePirDetection)
	res := d.executor.ForceOff(ctx, device, cause)
	d.logResult(ctx, device, res, d.provider.Snapshot(device))

	go d.EvaluateNow(context.WithoutCancel(ctx), device)
}

// LastErrors returns the most recent per-device evaluation error, for
// the dashboard.
func (d *Driver) LastErrors() map[string]string {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	out := make(map[string]string, len(d.lastError))
	for k, v := range d.lastError {
		out[k] = v
	}
	return out
}

// activeProgram returns the compiled active nodeset, reusing the cache
// until it is invalidated.
func (d *Driver) activeProgram(ctx context.Context) (*engine.Program, error) {
	d.progMu.Lock()
	defer d.progMu.Unlock()

	if d.prog != nil && !d.progStale {
		return d.prog, nil
	}

	nodesetID, err := d.settings.Get(ctx, repository.SettingActiveNodeset)
	if err != nil {
		return nil, err
	}
	if nodesetID == "" {
		return nil, models.ErrNoActiveNodeset
	}

	graph, err := d.nodesets.GetByID(ctx, nodesetID)
	if err != nil {
		return nil, err
	}

	prog, err := engine.Compile(graph, d.registry)
	if err != nil {
		return nil, err
	}

	d.prog = prog
	d.progStale = false
	return prog, nil
}

// processDevice runs one device through the pipeline. Evaluation
// errors are diagnostic only: no command record is written and the
// device retains its prior state.
func (d *Driver) processDevice(ctx context.Context, device string, prog *engine.Program) {
	d.procMu.Lock()
	defer d.procMu.Unlock()

	in := d.provider.Snapshot(device)

	plan, err := d.eval.Evaluate(prog, in)
	if err != nil {
		d.log.Error("evaluation failed", "device", device, "error", err)
		d.setLastError(device, err.Error())
		return
	}
	d.setLastError(device, "")

	pirCause, _ := d.causes.Get(models.CausePirDetection)
	plan = d.pir.Gate(device, plan, pirCause)

	res := d.executor.Apply(ctx, device, plan, in)
	d.logResult(ctx, device, res, in)
}

// logResult writes one record per command attempt. A tick that issued
// nothing because the device already matched its desired state still
// logs when its cause changed, so newly relevant exceptions are visible
// in the journal. A NoChange plan (no desired state) writes no record.
func (d *Driver) logResult(ctx context.Context, device string, res *acexec.Result, in *models.LiveInputs) {
	succeeded := false
	for _, attempt := range res.Attempts {
		record := d.buildRecord(device, attempt.Action, &attempt.Command, in, res)
		if attempt.Err == nil {
			succeeded = true
		} else {
			record.Degraded = true
		}
		if err := d.actions.Append(ctx, record); err != nil {
			d.log.Error("action log write failed", "device", device, "error", err)
		}
	}
	if succeeded {
		d.provider.MarkCommandIssued(device)
	}

	d.stateMu.Lock()
	last, seen := d.lastCause[device]
	causeChanged := !seen || last != res.CauseID
	if len(res.Attempts) > 0 || causeChanged {
		d.lastCause[device] = res.CauseID
	}
	d.stateMu.Unlock()

	if len(res.Attempts) == 0 && causeChanged && res.Desired != nil {
		action := models.ActionOff
		if res.Desired.IsOn {
			action = models.ActionOn
		}
		record := d.buildRecord(device, action, res.Desired, in, res)
		if err := d.actions.Append(ctx, record); err != nil {
			d.log.Error("action log write failed", "device", device, "error", err)
		}
	}
}

func (d *Driver) buildRecord(device string, action models.ActionType, cmd *models.AcCommand, in *models.LiveInputs, res *acexec.Result) *models.ActionRecord {
	record := &models.ActionRecord{
		TsUnix:     time.Now().Unix(),
		Device:     device,
		ActionType: action,
		CauseID:    res.CauseID,
		Degraded:   res.Degraded,
	}
	if cmd != nil && cmd.IsOn {
		mode := cmd.Mode
		fan := cmd.FanSpeed
		temp := cmd.Temperature
		swing := cmd.Swing
		record.Mode = &mode
		record.FanSpeed = &fan
		record.RequestedTemp = &temp
		record.Swing = &swing
	}
	if in != nil {
		record.MeasuredIndoorTemp = in.IndoorTemp
		record.MeasuredNetPowerW = in.NetPowerW
		record.MeasuredSolarW = in.SolarProductionW
		record.UserHome = in.UserIsHome
	}
	return record
}

func (d *Driver) setLastError(device, msg string) {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if msg == "" {
		delete(d.lastError, device)
		return
	}
	d.lastError[device] = msg
}
