package storage

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/NotCoffee418/power-control-center/internal/domain/repository"
	storagemodels "github.com/NotCoffee418/power-control-center/internal/infrastructure/storage/models"
	"github.com/NotCoffee418/power-control-center/pkg/models"
)

// Ensure ActionRepository implements the interface
var _ repository.ActionRepository = (*ActionRepository)(nil)

// ActionRepository implements the append-only command journal using
// Bun ORM. All writes funnel through this single repository so the log
// keeps a total order per tick.
type ActionRepository struct {
	db *bun.DB
}

// NewActionRepository creates a new ActionRepository.
func NewActionRepository(db *bun.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

// Append persists one record.
func (r *ActionRepository) Append(ctx context.Context, record *models.ActionRecord) error {
	m := storagemodels.ActionModelFromDomain(record)
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("failed to append action record: %w", err)
	}
	return nil
}

// List returns records newest-first. A non-empty device filters to one
// device; beforeID pages backwards through history.
func (r *ActionRepository) List(ctx context.Context, device string, limit int, beforeID int64) ([]*models.ActionRecord, int64, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var rows []*storagemodels.ActionModel
	q := r.db.NewSelect().
		Model(&rows).
		Order("id DESC").
		Limit(limit)

	if device != "" {
		q = q.Where("device_identifier = ?", device)
	}
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, 0, fmt.Errorf("failed to list action records: %w", err)
	}

	records := make([]*models.ActionRecord, len(rows))
	var lastID int64
	for i, row := range rows {
		records[i] = row.ToDomain()
		lastID = row.ID
	}
	return records, lastID, nil
}
