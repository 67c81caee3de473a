package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/NotCoffee418/power-control-center/internal/domain/repository"
	storagemodels "github.com/NotCoffee418/power-control-center/internal/infrastructure/storage/models"
	"github.com/NotCoffee418/power-control-center/pkg/models"
)

// Ensure SettingsRepository implements the interface
var _ repository.SettingsRepository = (*SettingsRepository)(nil)

// SettingsRepository stores key/value settings.
type SettingsRepository struct {
	db *bun.DB
}

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository(db *bun.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns a setting value.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	row := new(storagemodels.SettingModel)
	err := r.db.NewSelect().Model(row).Where("setting_key = ?", key).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", models.ErrSettingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return row.Value, nil
}

// Set writes a setting value, creating the key when absent.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	row := &storagemodels.SettingModel{Key: key, Value: value}
	_, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT (setting_key) DO UPDATE").
		Set("setting_value = EXCLUDED.setting_value").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}
