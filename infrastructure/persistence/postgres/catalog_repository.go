package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/domain/core/entities"
	domainevents "bookkeeper-backend/domain/events"
	pkgerrors "bookkeeper-backend/pkg/errors"
	"bookkeeper-backend/pkg/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// catalogEntity is what a catalog repository needs from its entity type.
type catalogEntity interface {
	ID() string
	Name() string
	Description() string
	ParentID() string
	CreatedAt() time.Time
	UpdatedAt() time.Time
	DrainEvents() []domainevents.DomainEvent
}

// CatalogRepository stores one hierarchical catalog kind. Locations and types
// share the row shape and every query; only the table differs.
type CatalogRepository[T catalogEntity] struct {
	db         *sql.DB
	logger     *zap.Logger
	publisher  ports.EventPublisher
	table      string
	entityName string
	build      func(id string, args ports.CatalogArgs) (T, error)
	restore    func(id, name, description, parentID string, createdAt, updatedAt time.Time) T
}

// NewInventoryLocationRepository creates the location catalog repository.
func NewInventoryLocationRepository(db *sql.DB, logger *zap.Logger, publisher ports.EventPublisher) *CatalogRepository[*entities.InventoryLocation] {
	if publisher == nil {
		publisher = ports.NoopEventPublisher{}
	}
	return &CatalogRepository[*entities.InventoryLocation]{
		db:         db,
		logger:     logger,
		publisher:  publisher,
		table:      "inventory_locations",
		entityName: "inventory location",
		build: func(id string, args ports.CatalogArgs) (*entities.InventoryLocation, error) {
			return entities.NewInventoryLocation(id, args.Name, args.Description, args.ParentID)
		},
		restore: entities.ReconstructInventoryLocation,
	}
}

// NewInventoryTypeRepository creates the type catalog repository.
func NewInventoryTypeRepository(db *sql.DB, logger *zap.Logger, publisher ports.EventPublisher) *CatalogRepository[*entities.InventoryType] {
	if publisher == nil {
		publisher = ports.NoopEventPublisher{}
	}
	return &CatalogRepository[*entities.InventoryType]{
		db:         db,
		logger:     logger,
		publisher:  publisher,
		table:      "inventory_types",
		entityName: "inventory type",
		build: func(id string, args ports.CatalogArgs) (*entities.InventoryType, error) {
			return entities.NewInventoryType(id, args.Name, args.Description, args.ParentID)
		},
		restore: entities.ReconstructInventoryType,
	}
}

// Create persists a fresh node under a generated id.
func (r *CatalogRepository[T]) Create(ctx context.Context, args ports.CatalogArgs) (T, error) {
	return r.CreateWithID(ctx, uuid.New().String(), args)
}

// CreateWithID persists a node under the given id, Conflict when taken.
func (r *CatalogRepository[T]) CreateWithID(ctx context.Context, id string, args ports.CatalogArgs) (_ T, err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, r.entityName, "create", start, err)
	}(time.Now())

	var zero T
	node, err := r.build(id, args)
	if err != nil {
		return zero, err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO `+r.table+` (id, name, description, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, node.ID(), node.Name(), node.Description(), nullString(node.ParentID()), node.CreatedAt(), node.UpdatedAt())
	if err != nil {
		if isUniqueViolation(err) {
			return zero, pkgerrors.NewConflictError(fmt.Sprintf("%s %s already exists", r.entityName, id))
		}
		return zero, pkgerrors.NewDatabaseError("failed to create "+r.entityName, err)
	}
	return node, nil
}

// GetByID returns (nil, nil) when the node does not exist.
func (r *CatalogRepository[T]) GetByID(ctx context.Context, id string) (_ T, err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, r.entityName, "get", start, err)
	}(time.Now())

	var zero T
	node, err := r.scan(r.db.QueryRowContext(ctx,
		`SELECT id, name, description, parent_id, created_at, updated_at FROM `+r.table+` WHERE id = $1`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return zero, nil
		}
		return zero, pkgerrors.NewDatabaseError("failed to get "+r.entityName, err)
	}
	return node, nil
}

// Save upserts the node's current state.
func (r *CatalogRepository[T]) Save(ctx context.Context, node T) (err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, r.entityName, "save", start, err)
	}(time.Now())

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO `+r.table+` (id, name, description, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			parent_id = EXCLUDED.parent_id,
			updated_at = EXCLUDED.updated_at
	`, node.ID(), node.Name(), node.Description(), nullString(node.ParentID()), node.CreatedAt(), node.UpdatedAt())
	if err != nil {
		return pkgerrors.NewDatabaseError("failed to save "+r.entityName, err)
	}

	for _, event := range node.DrainEvents() {
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.logger.Warn("failed to publish domain event",
				zap.String("eventType", event.GetEventType()),
				zap.String("aggregateID", event.GetAggregateID()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Delete removes the node. Idempotent.
func (r *CatalogRepository[T]) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, r.entityName, "delete", start, err)
	}(time.Now())

	if _, err := r.db.ExecContext(ctx, `DELETE FROM `+r.table+` WHERE id = $1`, id); err != nil {
		return pkgerrors.NewDatabaseError("failed to delete "+r.entityName, err)
	}
	return nil
}

// ListByQuery selects nodes ordered by lower-cased name then id.
func (r *CatalogRepository[T]) ListByQuery(ctx context.Context, filter ports.CatalogFilter) (_ []T, err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, r.entityName, "list", start, err)
	}(time.Now())

	b := newQueryBuilder()
	if filter.Search != "" {
		b.contains("name", filter.Search)
	}
	if filter.ParentID != "" {
		b.equal("parent_id", filter.ParentID)
	} else if filter.RootOnly {
		b.isNull("parent_id")
	}

	query := `SELECT id, name, description, parent_id, created_at, updated_at FROM ` + r.table +
		b.whereClause() + pagination("lower(name), id", filter.Skip, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to list "+r.entityName+"s", err)
	}
	defer rows.Close()

	var nodes []T
	for rows.Next() {
		node, err := r.scan(rows)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("failed to scan "+r.entityName, err)
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

func (r *CatalogRepository[T]) scan(scanner rowScanner) (T, error) {
	var zero T
	var (
		id, name, description string
		parentID              sql.NullString
		createdAt, updatedAt  time.Time
	)
	if err := scanner.Scan(&id, &name, &description, &parentID, &createdAt, &updatedAt); err != nil {
		return zero, err
	}
	return r.restore(id, name, description, parentID.String, createdAt, updatedAt), nil
}
