package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/NotCoffee418/power-control-center/internal/domain/repository"
	storagemodels "github.com/NotCoffee418/power-control-center/internal/infrastructure/storage/models"
	"github.com/NotCoffee418/power-control-center/pkg/models"
)

// Ensure NodesetRepository implements the interface
var _ repository.NodesetRepository = (*NodesetRepository)(nil)

// NodesetRepository stores saved graphs as single JSON blobs.
type NodesetRepository struct {
	db *bun.DB
}

// NewNodesetRepository creates a new NodesetRepository.
func NewNodesetRepository(db *bun.DB) *NodesetRepository {
	return &NodesetRepository{db: db}
}

// GetByID loads and decodes one nodeset.
func (r *NodesetRepository) GetByID(ctx context.Context, id string) (*models.Graph, error) {
	row := new(storagemodels.NodesetModel)
	err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNodesetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get nodeset %s: %w", id, err)
	}
	return row.ToDomain()
}

// List returns every saved nodeset ordered by name.
func (r *NodesetRepository) List(ctx context.Context) ([]*models.Graph, error) {
	var rows []*storagemodels.NodesetModel
	if err := r.db.NewSelect().Model(&rows).Order("name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list nodesets: %w", err)
	}

	graphs := make([]*models.Graph, 0, len(rows))
	for _, row := range rows {
		graph, err := row.ToDomain()
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, graph)
	}
	return graphs, nil
}

// Save inserts or replaces a nodeset. A missing id is assigned.
func (r *NodesetRepository) Save(ctx context.Context, graph *models.Graph) error {
	if err := graph.Validate(); err != nil {
		return err
	}
	if graph.ID == "" {
		graph.ID = uuid.NewString()
	}

	row, err := storagemodels.NodesetModelFromDomain(graph)
	if err != nil {
		return err
	}

	_, err = r.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("node_json = EXCLUDED.node_json").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save nodeset %s: %w", graph.ID, err)
	}
	return nil
}

// Delete removes a nodeset.
func (r *NodesetRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().
		Model((*storagemodels.NodesetModel)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete nodeset %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNodesetNotFound
	}
	return nil
}
