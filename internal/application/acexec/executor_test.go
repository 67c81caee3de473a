package acexec

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NotCoffee418/power-control-center/internal/infrastructure/accontrol"
	"github.com/NotCoffee418/power-control-center/internal/infrastructure/logger"
	"github.com/NotCoffee418/power-control-center/pkg/models"
)

// fakeBridge records issued commands and can be told to fail.
type fakeBridge struct {
	mu       sync.Mutex
	calls    []string
	failNext int
}

func (f *fakeBridge) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return &models.CommandError{Device: "living_room", StatusCode: 500}
	}
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeBridge) TurnOn(_ context.Context, _ string, cmd models.AcCommand) error {
	return f.record("on")
}

func (f *fakeBridge) TurnOff(_ context.Context, _ string) error {
	return f.record("off")
}

func (f *fakeBridge) TogglePowerful(_ context.Context, _ string) error {
	return f.record("toggle-powerful")
}

func (f *fakeBridge) SensorInfo(_ context.Context, _ string) (*accontrol.SensorReading, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeBridge) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestExecutor() (*Executor, *fakeBridge) {
	bridge := &fakeBridge{}
	return NewExecutor(bridge, logger.Default()), bridge
}

func autoInputs() *models.LiveInputs {
	auto := true
	return &models.LiveInputs{Device: "living_room", IsAutoMode: &auto}
}

func colderPlan(intensity models.Intensity) *models.Plan {
	return &models.Plan{Mode: models.PlanColder, Intensity: intensity, CauseID: models.CauseExcessiveSolar}
}

func offPlan() *models.Plan {
	return &models.Plan{Mode: models.PlanOff, CauseID: models.CauseIceException}
}

// On process start the first command is always sent regardless of
// cache state; with an unchanged snapshot the next tick is silent.
func TestExecutor_FirstExecutionForcing(t *testing.T) {
	t.Parallel()

	x, bridge := newTestExecutor()
	ctx := context.Background()

	res := x.Apply(ctx, "living_room", offPlan(), autoInputs())
	assert.Equal(t, []string{"off"}, bridge.commands())
	assert.False(t, res.Failed())

	// Same plan, same snapshot: zero commands.
	res = x.Apply(ctx, "living_room", offPlan(), autoInputs())
	assert.Equal(t, []string{"off"}, bridge.commands())
	assert.Empty(t, res.Attempts)
}

// Scenario 3: excess solar drives a turn_on plus a powerful toggle
// when the previous state had powerful off.
func TestExecutor_ColderHighTogglesPowerful(t *testing.T) {
	t.Parallel()

	x, bridge := newTestExecutor()
	ctx := context.Background()

	// Prior state: on, Cool, 22, fan auto, powerful off.
	x.Apply(ctx, "living_room", colderPlan(models.IntensityMedium), autoInputs())
	require.Equal(t, []string{"on"}, bridge.commands())

	res := x.Apply(ctx, "living_room", colderPlan(models.IntensityHigh), autoInputs())
	assert.Equal(t, []string{"on", "on", "toggle-powerful"}, bridge.commands())

	cached := x.Active("living_room")
	require.NotNil(t, cached)
	assert.True(t, cached.Powerful)
	assert.Equal(t, 20.0, cached.Temperature)
	assert.Equal(t, models.CauseExcessiveSolar, res.CauseID)
}

func TestExecutor_NoChangeNeverIssuesCommands(t *testing.T) {
	t.Parallel()

	x, bridge := newTestExecutor()
	ctx := context.Background()

	// Even on a never-synchronized device NoChange sends nothing.
	res := x.Apply(ctx, "living_room", &models.Plan{Mode: models.PlanNoChange}, autoInputs())
	assert.Empty(t, res.Attempts)
	assert.Empty(t, bridge.commands())
	assert.Nil(t, x.Active("living_room"))
}

// Two consecutive device failures leave the cache unchanged and the
// third tick still attempts, now flagged degraded.
func TestExecutor_RetryAfterFailures(t *testing.T) {
	t.Parallel()

	x, bridge := newTestExecutor()
	ctx := context.Background()

	bridge.failNext = 2

	res := x.Apply(ctx, "living_room", colderPlan(models.IntensityMedium), autoInputs())
	assert.True(t, res.Failed())
	assert.False(t, res.Degraded)
	assert.Nil(t, x.Active("living_room"), "failed command must not update the cache")

	res = x.Apply(ctx, "living_room", colderPlan(models.IntensityMedium), autoInputs())
	assert.True(t, res.Failed())
	assert.Nil(t, x.Active("living_room"))

	// Third tick: still attempted, marked degraded, now succeeds.
	res = x.Apply(ctx, "living_room", colderPlan(models.IntensityMedium), autoInputs())
	assert.False(t, res.Failed())
	assert.True(t, res.Degraded)
	assert.Equal(t, []string{"on"}, bridge.commands())
	require.NotNil(t, x.Active("living_room"))
}

// Scenario 4: a manual-to-auto flip forces a full resend with the
// dedicated cause even though the diff is empty.
func TestExecutor_ManualToAutoForcesResend(t *testing.T) {
	t.Parallel()

	x, bridge := newTestExecutor()
	ctx := context.Background()

	x.Apply(ctx, "living_room", colderPlan(models.IntensityMedium), autoInputs())
	require.Equal(t, []string{"on"}, bridge.commands())

	manual := *autoInputs()
	off := false
	manual.IsAutoMode = &off
	x.Apply(ctx, "living_room", &models.Plan{Mode: models.PlanNoChange}, &manual)
	require.Equal(t, []string{"on"}, bridge.commands(), "manual mode issues nothing")

	res := x.Apply(ctx, "living_room", colderPlan(models.IntensityMedium), autoInputs())
	assert.Equal(t, []string{"on", "on"}, bridge.commands())
	assert.True(t, res.ManualToAuto)
	assert.Equal(t, models.CauseManualToAuto, res.CauseID)
}

func TestExecutor_OffToOffIsNoOp(t *testing.T) {
	t.Parallel()

	x, bridge := newTestExecutor()
	ctx := context.Background()

	x.Apply(ctx, "living_room", offPlan(), autoInputs())
	require.Equal(t, []string{"off"}, bridge.commands())

	res := x.Apply(ctx, "living_room", offPlan(), autoInputs())
	assert.Empty(t, res.Attempts)
	assert.Equal(t, []string{"off"}, bridge.commands())
}

// Scenario 2, first half: PIR detect turns an on device off exactly
// once via the preemptive path.
func TestExecutor_ForceOff(t *testing.T) {
	t.Parallel()

	x, bridge := newTestExecutor()
	ctx := context.Background()
	cause := models.CauseReason{ID: models.CausePirDetection, Label: "PirDetection"}

	x.Apply(ctx, "living_room", colderPlan(models.IntensityMedium), autoInputs())
	require.Equal(t, []string{"on"}, bridge.commands())

	res := x.ForceOff(ctx, "living_room", cause)
	assert.Equal(t, []string{"on", "off"}, bridge.commands())
	assert.Equal(t, models.CausePirDetection, res.CauseID)

	// Already off: no further command.
	res = x.ForceOff(ctx, "living_room", cause)
	assert.Empty(t, res.Attempts)
	assert.Equal(t, []string{"on", "off"}, bridge.commands())
}

// With an unknown cache the physical state is unknown, so ForceOff
// sends the command anyway.
func TestExecutor_ForceOffUnknownState(t *testing.T) {
	t.Parallel()

	x, bridge := newTestExecutor()
	cause := models.CauseReason{ID: models.CausePirDetection, Label: "PirDetection"}

	x.ForceOff(context.Background(), "living_room", cause)
	assert.Equal(t, []string{"off"}, bridge.commands())
}

func TestExecutor_ResetForcesResend(t *testing.T) {
	t.Parallel()

	x, bridge := newTestExecutor()
	ctx := context.Background()

	x.Apply(ctx, "living_room", colderPlan(models.IntensityMedium), autoInputs())
	x.Reset()
	x.Apply(ctx, "living_room", colderPlan(models.IntensityMedium), autoInputs())
	assert.Equal(t, []string{"on", "on"}, bridge.commands())
}
