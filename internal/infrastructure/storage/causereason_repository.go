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

// Ensure CauseReasonRepository implements the interface
var _ repository.CauseReasonRepository = (*CauseReasonRepository)(nil)

// CauseReasonRepository stores the cause_reasons table using Bun ORM.
type CauseReasonRepository struct {
	db *bun.DB
}

// NewCauseReasonRepository creates a new CauseReasonRepository.
func NewCauseReasonRepository(db *bun.DB) *CauseReasonRepository {
	return &CauseReasonRepository{db: db}
}

// ListAll returns every reason, hidden ones included, ordered by id.
func (r *CauseReasonRepository) ListAll(ctx context.Context) ([]models.CauseReason, error) {
	var rows []*storagemodels.CauseReasonModel
	if err := r.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list cause reasons: %w", err)
	}

	reasons := make([]models.CauseReason, len(rows))
	for i, row := range rows {
		reasons[i] = row.ToDomain()
	}
	return reasons, nil
}

// GetByID returns one reason.
func (r *CauseReasonRepository) GetByID(ctx context.Context, id int) (models.CauseReason, error) {
	row := new(storagemodels.CauseReasonModel)
	err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CauseReason{}, models.ErrCauseNotFound
	}
	if err != nil {
		return models.CauseReason{}, fmt.Errorf("failed to get cause reason %d: %w", id, err)
	}
	return row.ToDomain(), nil
}

// Create inserts a user reason at the next id at or above the user
// range start.
func (r *CauseReasonRepository) Create(ctx context.Context, label, description string) (models.CauseReason, error) {
	var created models.CauseReason
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var maxID int
		err := tx.NewSelect().
			Model((*storagemodels.CauseReasonModel)(nil)).
			ColumnExpr("COALESCE(MAX(id), 0)").
			Where("id >= ?", models.UserCauseMinID).
			Scan(ctx, &maxID)
		if err != nil {
			return fmt.Errorf("failed to find next cause id: %w", err)
		}

		id := models.UserCauseMinID
		if maxID >= models.UserCauseMinID {
			id = maxID + 1
		}

		row := &storagemodels.CauseReasonModel{
			ID:          id,
			Label:       label,
			Description: description,
			IsEditable:  true,
		}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("failed to create cause reason: %w", err)
		}
		created = row.ToDomain()
		return nil
	})
	return created, err
}

// Update rewrites a reason's editable fields. System reasons are
// rejected before any write happens.
func (r *CauseReasonRepository) Update(ctx context.Context, c models.CauseReason) error {
	existing, err := r.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	if !existing.IsEditable {
		return models.ErrCauseNotEditable
	}

	row := storagemodels.CauseReasonModelFromDomain(c)
	row.IsEditable = true
	res, err := r.db.NewUpdate().
		Model(row).
		Column("label", "description", "is_hidden").
		Where("id = ?", c.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update cause reason %d: %w", c.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrCauseNotFound
	}
	return nil
}

// EnsureSystemReasons inserts any missing system rows. Existing rows
// are never touched so ids and user-visible labels survive upgrades.
func (r *CauseReasonRepository) EnsureSystemReasons(ctx context.Context, reasons []models.CauseReason) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, reason := range reasons {
			row := storagemodels.CauseReasonModelFromDomain(reason)
			_, err := tx.NewInsert().
				Model(row).
				On("CONFLICT (id) DO NOTHING").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to seed cause reason %d: %w", reason.ID, err)
			}
		}
		return nil
	})
}
