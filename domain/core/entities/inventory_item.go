package entities

import (
	"time"

	pkgerrors "bookkeeper-backend/pkg/errors"
)

// InventoryItem is a stocked good. It optionally refers to a catalog type and
// a catalog location; both references are validated by the inventory service.
type InventoryItem struct {
	id         string
	name       string
	quantity   int64
	typeID     string
	locationID string
	createdAt  time.Time
	updatedAt  time.Time
}

// NewInventoryItem creates an inventory item.
func NewInventoryItem(id, name string, quantity int64, typeID, locationID string) (*InventoryItem, error) {
	if id == "" {
		return nil, pkgerrors.NewValidationError("inventory item id cannot be empty")
	}
	if name == "" {
		return nil, pkgerrors.NewValidationError("inventory item name cannot be empty")
	}
	if quantity < 0 {
		return nil, pkgerrors.NewValidationError("inventory item quantity cannot be negative")
	}
	now := time.Now()
	return &InventoryItem{
		id:         id,
		name:       name,
		quantity:   quantity,
		typeID:     typeID,
		locationID: locationID,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// ReconstructInventoryItem rebuilds an item from persisted state.
func ReconstructInventoryItem(id, name string, quantity int64, typeID, locationID string, createdAt, updatedAt time.Time) *InventoryItem {
	return &InventoryItem{
		id:         id,
		name:       name,
		quantity:   quantity,
		typeID:     typeID,
		locationID: locationID,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

func (i *InventoryItem) ID() string           { return i.id }
func (i *InventoryItem) Name() string         { return i.name }
func (i *InventoryItem) Quantity() int64      { return i.quantity }
func (i *InventoryItem) TypeID() string       { return i.typeID }
func (i *InventoryItem) LocationID() string   { return i.locationID }
func (i *InventoryItem) CreatedAt() time.Time { return i.createdAt }
func (i *InventoryItem) UpdatedAt() time.Time { return i.updatedAt }

// UpdateName renames the item.
func (i *InventoryItem) UpdateName(name string) error {
	if name == "" {
		return pkgerrors.NewValidationError("inventory item name cannot be empty")
	}
	i.name = name
	i.updatedAt = time.Now()
	return nil
}

// AdjustQuantity applies a relative stock movement.
func (i *InventoryItem) AdjustQuantity(delta int64) error {
	if i.quantity+delta < 0 {
		return pkgerrors.NewValidationError("inventory item quantity cannot go negative")
	}
	i.quantity += delta
	i.updatedAt = time.Now()
	return nil
}

// AssignType points the item at a catalog type. Empty clears the reference.
func (i *InventoryItem) AssignType(typeID string) {
	i.typeID = typeID
	i.updatedAt = time.Now()
}

// AssignLocation points the item at a catalog location. Empty clears the
// reference.
func (i *InventoryItem) AssignLocation(locationID string) {
	i.locationID = locationID
	i.updatedAt = time.Now()
}
