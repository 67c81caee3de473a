package acexec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NotCoffee418/power-control-center/pkg/models"
)

var pirCause = models.CauseReason{ID: models.CausePirDetection, Label: "PirDetection"}

// newTestLockout returns a lockout with a controllable clock.
func newTestLockout(timeout time.Duration) (*PirLockout, *time.Time) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	p := NewPirLockout(timeout)
	p.now = func() time.Time { return now }
	return p, &now
}

func TestPirLockout_GateReplacesNonOffPlans(t *testing.T) {
	t.Parallel()

	p, _ := newTestLockout(5 * time.Minute)
	p.Detect("living_room")

	colder := &models.Plan{Mode: models.PlanColder, CauseID: models.CauseExcessiveSolar}
	gated := p.Gate("living_room", colder, pirCause)

	assert.Equal(t, models.PlanOff, gated.Mode)
	assert.Equal(t, models.CausePirDetection, gated.CauseID)
}

func TestPirLockout_GatePassesOffPlans(t *testing.T) {
	t.Parallel()

	p, _ := newTestLockout(5 * time.Minute)
	p.Detect("living_room")

	off := &models.Plan{Mode: models.PlanOff, CauseID: models.CauseIceException}
	gated := p.Gate("living_room", off, pirCause)

	assert.Same(t, off, gated, "an Off plan keeps its own cause")
}

func TestPirLockout_WindowExpiry(t *testing.T) {
	t.Parallel()

	p, now := newTestLockout(5 * time.Minute)
	p.Detect("living_room")

	colder := &models.Plan{Mode: models.PlanColder}

	// Three ticks inside the window stay forced off.
	for i := 0; i < 3; i++ {
		*now = now.Add(90 * time.Second)
		assert.Equal(t, models.PlanOff, p.Gate("living_room", colder, pirCause).Mode, "tick %d", i)
	}

	// Past the timeout the plan passes through again.
	*now = now.Add(2 * time.Minute)
	assert.Equal(t, models.PlanColder, p.Gate("living_room", colder, pirCause).Mode)
}

func TestPirLockout_PerDevice(t *testing.T) {
	t.Parallel()

	p, _ := newTestLockout(5 * time.Minute)
	p.Detect("living_room")

	colder := &models.Plan{Mode: models.PlanColder}
	assert.Equal(t, models.PlanColder, p.Gate("bedroom", colder, pirCause).Mode)
}

func TestPirLockout_MinutesSince(t *testing.T) {
	t.Parallel()

	p, now := newTestLockout(5 * time.Minute)

	assert.Nil(t, p.MinutesSince("living_room"))

	p.Detect("living_room")
	*now = now.Add(7*time.Minute + 30*time.Second)

	minutes := p.MinutesSince("living_room")
	require.NotNil(t, minutes)
	assert.Equal(t, 7, *minutes)
}

func TestPirLockout_DetectedWithin(t *testing.T) {
	t.Parallel()

	p, now := newTestLockout(5 * time.Minute)
	p.Detect("living_room")

	assert.True(t, p.DetectedWithin("living_room", time.Hour))

	*now = now.Add(2 * time.Hour)
	assert.False(t, p.DetectedWithin("living_room", time.Hour))
}
