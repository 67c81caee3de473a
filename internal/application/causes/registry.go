// Package causes owns the cause-reasons registry: the system-seeded
// and user-defined reasons every plan and action record refers to.
package causes

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/NotCoffee418/power-control-center/internal/domain/repository"
	"github.com/NotCoffee418/power-control-center/pkg/models"
)

// systemReasons is the fixed seed. IDs are stable across upgrades and
// the rows are never editable.
var systemReasons = []models.CauseReason{
	{ID: models.CauseUndefined, Label: "Undefined", Description: "No rule in the decision graph produced a plan."},
	{ID: models.CauseIceException, Label: "IceException", Description: "Outdoor temperature low enough to risk icing the outdoor unit."},
	{ID: models.CausePirDetection, Label: "PirDetection", Description: "Motion detected; unit turned off for the lockout window."},
	{ID: models.CauseNobodyHome, Label: "NobodyHome", Description: "No occupancy detected."},
	{ID: models.CauseMildTemperature, Label: "MildTemperature", Description: "Indoor temperature within the comfort band."},
	{ID: models.CauseMajorTempChangePending, Label: "MajorTempChangePending", Description: "Forecast shows a major outdoor temperature change."},
	{ID: models.CauseExcessiveSolar, Label: "ExcessiveSolar", Description: "Surplus solar production available."},
	{ID: models.CauseManualToAuto, Label: "ManualToAuto", Description: "Device returned from manual control to automatic mode."},
}

// Registry is the process-wide cause-reasons registry. Reads vastly
// outnumber writes; a write reloads from the repository and notifies
// subscribers so compiled programs get invalidated and open editors
// refresh.
type Registry struct {
	repo repository.CauseReasonRepository

	mu          sync.RWMutex
	byID        map[int]models.CauseReason
	ordered     []models.CauseReason
	subscribers []func()
}

// NewRegistry creates an empty registry; call Load before use.
func NewRegistry(repo repository.CauseReasonRepository) *Registry {
	return &Registry{
		repo: repo,
		byID: make(map[int]models.CauseReason),
	}
}

// Load seeds missing system reasons and reads the full table into
// memory. Called once at startup.
func (r *Registry) Load(ctx context.Context) error {
	if err := r.repo.EnsureSystemReasons(ctx, systemReasons); err != nil {
		return fmt.Errorf("failed to seed system cause reasons: %w", err)
	}
	return r.reload(ctx)
}

func (r *Registry) reload(ctx context.Context) error {
	reasons, err := r.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cause reasons: %w", err)
	}

	byID := make(map[int]models.CauseReason, len(reasons))
	for _, reason := range reasons {
		byID[reason.ID] = reason
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i].ID < reasons[j].ID })

	r.mu.Lock()
	r.byID = byID
	r.ordered = reasons
	r.mu.Unlock()
	return nil
}

// Get resolves a reason by id, hidden ones included.
func (r *Registry) Get(id int) (models.CauseReason, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

// List returns reasons ordered by id. Hidden reasons are omitted
// unless includeHidden is set; they remain valid for historical
// records either way.
func (r *Registry) List(includeHidden bool) []models.CauseReason {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.CauseReason, 0, len(r.ordered))
	for _, c := range r.ordered {
		if c.IsHidden && !includeHidden {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Create adds a user reason and notifies subscribers.
func (r *Registry) Create(ctx context.Context, label, description string) (models.CauseReason, error) {
	created, err := r.repo.Create(ctx, label, description)
	if err != nil {
		return models.CauseReason{}, err
	}
	if err := r.reload(ctx); err != nil {
		return models.CauseReason{}, err
	}
	r.notify()
	return created, nil
}

// Update rewrites an editable reason and notifies subscribers.
func (r *Registry) Update(ctx context.Context, c models.CauseReason) error {
	if err := r.repo.Update(ctx, c); err != nil {
		return err
	}
	if err := r.reload(ctx); err != nil {
		return err
	}
	r.notify()
	return nil
}

// Subscribe registers a callback fired after every registry change.
// Subscribers invalidate compiled programs and push editor refreshes.
func (r *Registry) Subscribe(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(r.subscribers, fn)
}

func (r *Registry) notify() {
	r.mu.RLock()
	subs := append([]func(){}, r.subscribers...)
	r.mu.RUnlock()

	for _, fn := range subs {
		fn()
	}
}
