package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/domain/core/entities"
	pkgerrors "bookkeeper-backend/pkg/errors"
	"bookkeeper-backend/pkg/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InventoryItemRepository persists stocked goods.
type InventoryItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInventoryItemRepository creates an InventoryItemRepository.
func NewInventoryItemRepository(db *sql.DB, logger *zap.Logger) *InventoryItemRepository {
	return &InventoryItemRepository{db: db, logger: logger}
}

const inventoryItemColumns = "id, name, quantity, type_id, location_id, created_at, updated_at"

// Create persists a fresh item under a generated id.
func (r *InventoryItemRepository) Create(ctx context.Context, args ports.InventoryItemArgs) (*entities.InventoryItem, error) {
	return r.CreateWithID(ctx, uuid.New().String(), args)
}

// CreateWithID persists an item under the given id, Conflict when taken.
func (r *InventoryItemRepository) CreateWithID(ctx context.Context, id string, args ports.InventoryItemArgs) (_ *entities.InventoryItem, err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "inventory item", "create", start, err)
	}(time.Now())

	item, err := entities.NewInventoryItem(id, args.Name, args.Quantity, args.TypeID, args.LocationID)
	if err != nil {
		return nil, err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO inventory_items (`+inventoryItemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID(), item.Name(), item.Quantity(), nullString(item.TypeID()), nullString(item.LocationID()), item.CreatedAt(), item.UpdatedAt())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, pkgerrors.NewConflictError(fmt.Sprintf("inventory item %s already exists", id))
		}
		return nil, pkgerrors.NewDatabaseError("failed to create inventory item", err)
	}
	return item, nil
}

// GetByID returns (nil, nil) when the item does not exist.
func (r *InventoryItemRepository) GetByID(ctx context.Context, id string) (_ *entities.InventoryItem, err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "inventory item", "get", start, err)
	}(time.Now())

	item, err := scanInventoryItem(r.db.QueryRowContext(ctx,
		`SELECT `+inventoryItemColumns+` FROM inventory_items WHERE id = $1`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, pkgerrors.NewDatabaseError("failed to get inventory item", err)
	}
	return item, nil
}

// Save upserts the item's current state.
func (r *InventoryItemRepository) Save(ctx context.Context, item *entities.InventoryItem) (err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "inventory item", "save", start, err)
	}(time.Now())

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO inventory_items (`+inventoryItemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			quantity = EXCLUDED.quantity,
			type_id = EXCLUDED.type_id,
			location_id = EXCLUDED.location_id,
			updated_at = EXCLUDED.updated_at
	`, item.ID(), item.Name(), item.Quantity(), nullString(item.TypeID()), nullString(item.LocationID()), item.CreatedAt(), item.UpdatedAt())
	if err != nil {
		return pkgerrors.NewDatabaseError("failed to save inventory item", err)
	}
	return nil
}

// Delete removes the item. Idempotent.
func (r *InventoryItemRepository) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "inventory item", "delete", start, err)
	}(time.Now())

	if _, err := r.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = $1`, id); err != nil {
		return pkgerrors.NewDatabaseError("failed to delete inventory item", err)
	}
	return nil
}

// ListByQuery selects items ordered by lower-cased name then id.
func (r *InventoryItemRepository) ListByQuery(ctx context.Context, filter ports.InventoryItemFilter) (_ []*entities.InventoryItem, err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "inventory item", "list", start, err)
	}(time.Now())

	b := newQueryBuilder()
	if filter.Search != "" {
		b.contains("name", filter.Search)
	}
	if filter.TypeID != "" {
		b.equal("type_id", filter.TypeID)
	}
	if filter.LocationID != "" {
		b.equal("location_id", filter.LocationID)
	}

	query := `SELECT ` + inventoryItemColumns + ` FROM inventory_items` +
		b.whereClause() + pagination("lower(name), id", filter.Skip, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to list inventory items", err)
	}
	defer rows.Close()

	var items []*entities.InventoryItem
	for rows.Next() {
		item, err := scanInventoryItem(rows)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("failed to scan inventory item", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanInventoryItem(scanner rowScanner) (*entities.InventoryItem, error) {
	var (
		id, name             string
		quantity             int64
		typeID, locationID   sql.NullString
		createdAt, updatedAt time.Time
	)
	if err := scanner.Scan(&id, &name, &quantity, &typeID, &locationID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return entities.ReconstructInventoryItem(id, name, quantity, typeID.String, locationID.String, createdAt, updatedAt), nil
}
