package services

import (
	"context"
	"fmt"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/domain/core/entities"
	pkgerrors "bookkeeper-backend/pkg/errors"

	"go.uber.org/zap"
)

// InventoryService owns the hierarchical catalogs (locations, types) and the
// items assigned to them. Referential integrity between catalog nodes and
// items is enforced here; the storage layer stores whatever it is handed.
type InventoryService struct {
	locations ports.InventoryLocationRepository
	types     ports.InventoryTypeRepository
	items     ports.InventoryItemRepository
	logger    *zap.Logger
}

// NewInventoryService creates an inventory service.
func NewInventoryService(
	locations ports.InventoryLocationRepository,
	types ports.InventoryTypeRepository,
	items ports.InventoryItemRepository,
	logger *zap.Logger,
) *InventoryService {
	return &InventoryService{
		locations: locations,
		types:     types,
		items:     items,
		logger:    logger,
	}
}

// Locations

// CreateLocation creates a location node; a non-empty parent must exist.
func (s *InventoryService) CreateLocation(ctx context.Context, args ports.CatalogArgs) (*entities.InventoryLocation, error) {
	if err := s.checkLocationParent(ctx, args.ParentID); err != nil {
		return nil, err
	}
	return s.locations.Create(ctx, args)
}

// GetLocation returns a location or a NotFound error.
func (s *InventoryService) GetLocation(ctx context.Context, id string) (*entities.InventoryLocation, error) {
	location, err := s.locations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if location == nil {
		return nil, pkgerrors.NewNotFoundError("inventory location", id)
	}
	return location, nil
}

// UpdateLocation applies name, description, and parent changes.
func (s *InventoryService) UpdateLocation(ctx context.Context, id string, name, description, parentID *string) (*entities.InventoryLocation, error) {
	location, err := s.GetLocation(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		if err := location.UpdateName(*name); err != nil {
			return nil, err
		}
	}
	if description != nil {
		location.UpdateDescription(*description)
	}
	if parentID != nil {
		if err := s.checkLocationParent(ctx, *parentID); err != nil {
			return nil, err
		}
		if err := location.UpdateParent(*parentID); err != nil {
			return nil, err
		}
	}
	if err := s.locations.Save(ctx, location); err != nil {
		return nil, err
	}
	return location, nil
}

// DeleteLocation removes a location; rejected while child nodes or assigned
// items still reference it.
func (s *InventoryService) DeleteLocation(ctx context.Context, id string) error {
	children, err := s.locations.ListByQuery(ctx, ports.CatalogFilter{ParentID: id, Limit: 1})
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return pkgerrors.NewIntegrityError(fmt.Sprintf("inventory location '%s' still has child locations", id))
	}
	assigned, err := s.items.ListByQuery(ctx, ports.InventoryItemFilter{LocationID: id, Limit: 1})
	if err != nil {
		return err
	}
	if len(assigned) > 0 {
		return pkgerrors.NewIntegrityError(fmt.Sprintf("inventory location '%s' still has assigned items", id))
	}
	return s.locations.Delete(ctx, id)
}

// ListLocations queries locations.
func (s *InventoryService) ListLocations(ctx context.Context, filter ports.CatalogFilter) ([]*entities.InventoryLocation, error) {
	return s.locations.ListByQuery(ctx, filter)
}

// Types

// CreateType creates a type node; a non-empty parent must exist.
func (s *InventoryService) CreateType(ctx context.Context, args ports.CatalogArgs) (*entities.InventoryType, error) {
	if err := s.checkTypeParent(ctx, args.ParentID); err != nil {
		return nil, err
	}
	return s.types.Create(ctx, args)
}

// GetType returns a type or a NotFound error.
func (s *InventoryService) GetType(ctx context.Context, id string) (*entities.InventoryType, error) {
	typ, err := s.types.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if typ == nil {
		return nil, pkgerrors.NewNotFoundError("inventory type", id)
	}
	return typ, nil
}

// UpdateType applies name, description, and parent changes.
func (s *InventoryService) UpdateType(ctx context.Context, id string, name, description, parentID *string) (*entities.InventoryType, error) {
	typ, err := s.GetType(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		if err := typ.UpdateName(*name); err != nil {
			return nil, err
		}
	}
	if description != nil {
		typ.UpdateDescription(*description)
	}
	if parentID != nil {
		if err := s.checkTypeParent(ctx, *parentID); err != nil {
			return nil, err
		}
		if err := typ.UpdateParent(*parentID); err != nil {
			return nil, err
		}
	}
	if err := s.types.Save(ctx, typ); err != nil {
		return nil, err
	}
	return typ, nil
}

// DeleteType removes a type; rejected while child nodes or assigned items
// still reference it.
func (s *InventoryService) DeleteType(ctx context.Context, id string) error {
	children, err := s.types.ListByQuery(ctx, ports.CatalogFilter{ParentID: id, Limit: 1})
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return pkgerrors.NewIntegrityError(fmt.Sprintf("inventory type '%s' still has child types", id))
	}
	assigned, err := s.items.ListByQuery(ctx, ports.InventoryItemFilter{TypeID: id, Limit: 1})
	if err != nil {
		return err
	}
	if len(assigned) > 0 {
		return pkgerrors.NewIntegrityError(fmt.Sprintf("inventory type '%s' still has assigned items", id))
	}
	return s.types.Delete(ctx, id)
}

// ListTypes queries types.
func (s *InventoryService) ListTypes(ctx context.Context, filter ports.CatalogFilter) ([]*entities.InventoryType, error) {
	return s.types.ListByQuery(ctx, filter)
}

// Items

// CreateItem creates an inventory item; non-empty type and location
// references must exist.
func (s *InventoryService) CreateItem(ctx context.Context, args ports.InventoryItemArgs) (*entities.InventoryItem, error) {
	if args.TypeID != "" {
		if _, err := s.GetType(ctx, args.TypeID); err != nil {
			return nil, integrityFromNotFound(err, "inventory type", args.TypeID)
		}
	}
	if args.LocationID != "" {
		if _, err := s.GetLocation(ctx, args.LocationID); err != nil {
			return nil, integrityFromNotFound(err, "inventory location", args.LocationID)
		}
	}
	return s.items.Create(ctx, args)
}

// GetItem returns an item or a NotFound error.
func (s *InventoryService) GetItem(ctx context.Context, id string) (*entities.InventoryItem, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, pkgerrors.NewNotFoundError("inventory item", id)
	}
	return item, nil
}

// UpdateItem applies a partial update. A nil field is left unchanged; an
// empty typeID or locationID clears the reference.
func (s *InventoryService) UpdateItem(ctx context.Context, id string, name, typeID, locationID *string) (*entities.InventoryItem, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		if err := item.UpdateName(*name); err != nil {
			return nil, err
		}
	}
	if typeID != nil {
		if *typeID != "" {
			if _, err := s.GetType(ctx, *typeID); err != nil {
				return nil, integrityFromNotFound(err, "inventory type", *typeID)
			}
		}
		item.AssignType(*typeID)
	}
	if locationID != nil {
		if *locationID != "" {
			if _, err := s.GetLocation(ctx, *locationID); err != nil {
				return nil, integrityFromNotFound(err, "inventory location", *locationID)
			}
		}
		item.AssignLocation(*locationID)
	}
	if err := s.items.Save(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// AdjustItemQuantity applies a relative stock movement.
func (s *InventoryService) AdjustItemQuantity(ctx context.Context, id string, delta int64) (*entities.InventoryItem, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := item.AdjustQuantity(delta); err != nil {
		return nil, err
	}
	if err := s.items.Save(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem removes an item. Idempotent.
func (s *InventoryService) DeleteItem(ctx context.Context, id string) error {
	return s.items.Delete(ctx, id)
}

// ListItems queries items.
func (s *InventoryService) ListItems(ctx context.Context, filter ports.InventoryItemFilter) ([]*entities.InventoryItem, error) {
	return s.items.ListByQuery(ctx, filter)
}

func (s *InventoryService) checkLocationParent(ctx context.Context, parentID string) error {
	if parentID == "" {
		return nil
	}
	parent, err := s.locations.GetByID(ctx, parentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return pkgerrors.NewIntegrityError(fmt.Sprintf("parent location '%s' does not exist", parentID))
	}
	return nil
}

func (s *InventoryService) checkTypeParent(ctx context.Context, parentID string) error {
	if parentID == "" {
		return nil
	}
	parent, err := s.types.GetByID(ctx, parentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return pkgerrors.NewIntegrityError(fmt.Sprintf("parent type '%s' does not exist", parentID))
	}
	return nil
}

func integrityFromNotFound(err error, resource, id string) error {
	if pkgerrors.IsNotFound(err) {
		return pkgerrors.NewIntegrityError(fmt.Sprintf("%s '%s' does not exist", resource, id))
	}
	return err
}
