package acexec

import (
	"sync"
	"time"

	"github.com/NotCoffee418/power-control-center/pkg/models"
)

// PirLockout tracks motion detections and gates plans during the
// lockout window: for pir_timeout_minutes after a detection, any
// non-Off plan for the device is replaced by an Off plan with the
// PirDetection cause.
type PirLockout struct {
	timeout time.Duration
	now     func() time.Time

	mu         sync.Mutex
	detections map[string]time.Time
}

// NewPirLockout creates a lockout tracker with the configured window.
func NewPirLockout(timeout time.Duration) *PirLockout {
	return &PirLockout{
		timeout:    timeout,
		now:        time.Now,
		detections: make(map[string]time.Time),
	}
}

// Detect records a motion detection for the device.
func (p *PirLockout) Detect(device string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detections[device] = p.now()
}

// Active reports whether the device is inside its lockout window.
func (p *PirLockout) Active(device string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ts, ok := p.detections[device]
	if !ok {
		return false
	}
	return p.now().Sub(ts) < p.timeout
}

// MinutesSince returns full minutes since the last detection, or nil
// when the device never had one.
func (p *PirLockout) MinutesSince(device string) *int {
	p.mu.Lock()
	defer p.mu.Unlock()
	ts, ok := p.detections[device]
	if !ok {
		return nil
	}
	minutes := int(p.now().Sub(ts) / time.Minute)
	return &minutes
}

// DetectedWithin reports whether a detection happened inside the given
// window. The snapshot provider uses this for the pir_detected input.
func (p *PirLockout) DetectedWithin(device string, window time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ts, ok := p.detections[device]
	if !ok {
		return false
	}
	return p.now().Sub(ts) < window
}

// Gate applies the lockout to an evaluated plan. Outside the window
// the plan passes through untouched; inside it, anything that is not
// already Off is replaced.
func (p *PirLockout) Gate(device string, plan *models.Plan, cause models.CauseReason) *models.Plan {
	if !p.Active(device) {
		return plan
	}
	if plan != nil && plan.Mode == models.PlanOff {
		return plan
	}
	return &models.Plan{
		Mode:             models.PlanOff,
		CauseID:          cause.ID,
		CauseLabel:       cause.Label,
		CauseDescription: cause.Description,
	}
}
