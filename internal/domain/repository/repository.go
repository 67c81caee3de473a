// Package repository defines the persistence interfaces the
// application layer depends on.
package repository

import (
	"context"

	"github.com/NotCoffee418/power-control-center/pkg/models"
)

// ActionRepository is the append-only command journal.
type ActionRepository interface {
	// Append persists one record. The write is durable before the
	// planner moves on to the next device.
	Append(ctx context.Context, record *models.ActionRecord) error

	// List returns records in reverse-chronological order. beforeID=0
	// starts at the newest record; otherwise only rows older than the
	// given row id are returned.
	List(ctx context.Context, device string, limit int, beforeID int64) ([]*models.ActionRecord, int64, error)
}

// CauseReasonRepository stores the cause-reasons table.
type CauseReasonRepository interface {
	ListAll(ctx context.Context) ([]models.CauseReason, error)
	GetByID(ctx context.Context, id int) (models.CauseReason, error)
	// Create inserts a user reason and returns its assigned id (>= 100).
	Create(ctx context.Context, label, description string) (models.CauseReason, error)
	Update(ctx context.Context, c models.CauseReason) error
	// EnsureSystemReasons inserts any missing system rows without
	// touching existing ones, preserving ids across upgrades.
	EnsureSystemReasons(ctx context.Context, reasons []models.CauseReason) error
}

// NodesetRepository stores saved graphs.
type NodesetRepository interface {
	GetByID(ctx context.Context, id string) (*models.Graph, error)
	List(ctx context.Context) ([]*models.Graph, error)
	Save(ctx context.Context, graph *models.Graph) error
	Delete(ctx context.Context, id string) error
}

// SettingsRepository stores simple key/value settings.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Well-known setting keys.
const (
	SettingActiveNodeset      = "active_nodeset"
	SettingUserIsHomeOverride = "user_is_home_override"
	// SettingAutoModePrefix + device toggles automatic control per
	// device; absent means automatic.
	SettingAutoModePrefix = "auto_mode."
)
