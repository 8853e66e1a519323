package entities

import (
	"time"

	"bookkeeper-backend/domain/events"
	pkgerrors "bookkeeper-backend/pkg/errors"
)

// CatalogNode is the shared shape of hierarchical inventory catalog entries.
// A node optionally back-references another node of the same kind as its
// parent; the reference is navigational, not ownership. A node without a
// parent is a root.
type CatalogNode struct {
	id          string
	name        string
	description string
	parentID    string
	createdAt   time.Time
	updatedAt   time.Time

	events []events.DomainEvent
}

func newCatalogNode(id, name, description, parentID string) (CatalogNode, error) {
	if id == "" {
		return CatalogNode{}, pkgerrors.NewValidationError("catalog node id cannot be empty")
	}
	if name == "" {
		return CatalogNode{}, pkgerrors.NewValidationError("catalog node name cannot be empty")
	}
	if parentID == id {
		return CatalogNode{}, pkgerrors.NewValidationError("catalog node cannot be its own parent")
	}
	now := time.Now()
	return CatalogNode{
		id:          id,
		name:        name,
		description: description,
		parentID:    parentID,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

func reconstructCatalogNode(id, name, description, parentID string, createdAt, updatedAt time.Time) CatalogNode {
	return CatalogNode{
		id:          id,
		name:        name,
		description: description,
		parentID:    parentID,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

func (n *CatalogNode) ID() string           { return n.id }
func (n *CatalogNode) Name() string         { return n.name }
func (n *CatalogNode) Description() string  { return n.description }
func (n *CatalogNode) ParentID() string     { return n.parentID }
func (n *CatalogNode) IsRoot() bool         { return n.parentID == "" }
func (n *CatalogNode) CreatedAt() time.Time { return n.createdAt }
func (n *CatalogNode) UpdatedAt() time.Time { return n.updatedAt }

// UpdateName renames the node.
func (n *CatalogNode) UpdateName(name string) error {
	if name == "" {
		return pkgerrors.NewValidationError("catalog node name cannot be empty")
	}
	n.name = name
	n.updatedAt = time.Now()
	return nil
}

// UpdateDescription replaces the description.
func (n *CatalogNode) UpdateDescription(description string) {
	n.description = description
	n.updatedAt = time.Now()
}

// UpdateParent re-parents the node. An empty id turns the node into a root.
// Whether the new parent exists is checked by the domain service, not here.
func (n *CatalogNode) UpdateParent(parentID string) error {
	if parentID == n.id {
		return pkgerrors.NewValidationError("catalog node cannot be its own parent")
	}
	if parentID == n.parentID {
		return nil
	}
	oldParent := n.parentID
	n.parentID = parentID
	n.updatedAt = time.Now()
	n.events = append(n.events, events.NewCatalogNodeMoved(n.id, oldParent, parentID))
	return nil
}

// DrainEvents returns accumulated domain events and clears them.
func (n *CatalogNode) DrainEvents() []events.DomainEvent {
	drained := n.events
	n.events = nil
	return drained
}

// InventoryLocation is a hierarchical place where inventory items are kept.
type InventoryLocation struct {
	CatalogNode
}

// NewInventoryLocation creates a location node.
func NewInventoryLocation(id, name, description, parentID string) (*InventoryLocation, error) {
	node, err := newCatalogNode(id, name, description, parentID)
	if err != nil {
		return nil, err
	}
	return &InventoryLocation{CatalogNode: node}, nil
}

// ReconstructInventoryLocation rebuilds a location from persisted state.
func ReconstructInventoryLocation(id, name, description, parentID string, createdAt, updatedAt time.Time) *InventoryLocation {
	return &InventoryLocation{CatalogNode: reconstructCatalogNode(id, name, description, parentID, createdAt, updatedAt)}
}

// InventoryType is a hierarchical category of inventory items.
type InventoryType struct {
	CatalogNode
}

// NewInventoryType creates a type node.
func NewInventoryType(id, name, description, parentID string) (*InventoryType, error) {
	node, err := newCatalogNode(id, name, description, parentID)
	if err != nil {
		return nil, err
	}
	return &InventoryType{CatalogNode: node}, nil
}

// ReconstructInventoryType rebuilds a type from persisted state.
func ReconstructInventoryType(id, name, description, parentID string, createdAt, updatedAt time.Time) *InventoryType {
	return &InventoryType{CatalogNode: reconstructCatalogNode(id, name, description, parentID, createdAt, updatedAt)}
}
