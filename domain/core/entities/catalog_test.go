package entities

import (
	"testing"

	"bookkeeper-backend/domain/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInventoryLocation(t *testing.T) {
	loc, err := NewInventoryLocation("loc-1", "Warehouse", "main building", "")
	require.NoError(t, err)

	assert.Equal(t, "loc-1", loc.ID())
	assert.Equal(t, "Warehouse", loc.Name())
	assert.True(t, loc.IsRoot())
}

func TestCatalogNodeValidation(t *testing.T) {
	_, err := NewInventoryLocation("", "Warehouse", "", "")
	assert.Error(t, err)

	_, err = NewInventoryType("type-1", "", "", "")
	assert.Error(t, err)

	// Self-parenting is never valid.
	_, err = NewInventoryType("type-1", "Hardware", "", "type-1")
	assert.Error(t, err)
}

func TestCatalogNodeUpdateParent(t *testing.T) {
	typ, err := NewInventoryType("type-1", "Hardware", "", "")
	require.NoError(t, err)
	require.True(t, typ.IsRoot())

	require.NoError(t, typ.UpdateParent("type-0"))
	assert.Equal(t, "type-0", typ.ParentID())
	assert.False(t, typ.IsRoot())

	assert.Error(t, typ.UpdateParent("type-1"))

	// Clearing the parent turns the node back into a root.
	require.NoError(t, typ.UpdateParent(""))
	assert.True(t, typ.IsRoot())
}

func TestCatalogNodeUpdateParentRecordsMoveEvent(t *testing.T) {
	loc, err := NewInventoryLocation("loc-1", "Warehouse", "", "")
	require.NoError(t, err)

	require.NoError(t, loc.UpdateParent("loc-0"))

	drained := loc.DrainEvents()
	require.Len(t, drained, 1)
	moved, ok := drained[0].(events.CatalogNodeMoved)
	require.True(t, ok)
	assert.Equal(t, "catalog.node_moved", moved.GetEventType())
	assert.Equal(t, "loc-1", moved.GetAggregateID())
	assert.Empty(t, moved.OldParentID)
	assert.Equal(t, "loc-0", moved.NewParentID)

	// Draining clears, and a no-op re-parent records nothing.
	require.NoError(t, loc.UpdateParent("loc-0"))
	assert.Empty(t, loc.DrainEvents())
}

func TestCatalogNodeUpdateNameBumpsUpdatedAt(t *testing.T) {
	loc, err := NewInventoryLocation("loc-1", "Warehouse", "", "")
	require.NoError(t, err)
	before := loc.UpdatedAt()

	require.NoError(t, loc.UpdateName("Shelf A"))

	assert.Equal(t, "Shelf A", loc.Name())
	assert.False(t, loc.UpdatedAt().Before(before))
	assert.Error(t, loc.UpdateName(""))
}

func TestInventoryItemQuantity(t *testing.T) {
	item, err := NewInventoryItem("item-1", "Laptop", 3, "type-1", "loc-1")
	require.NoError(t, err)

	require.NoError(t, item.AdjustQuantity(2))
	assert.Equal(t, int64(5), item.Quantity())

	require.NoError(t, item.AdjustQuantity(-5))
	assert.Equal(t, int64(0), item.Quantity())

	assert.Error(t, item.AdjustQuantity(-1))

	_, err = NewInventoryItem("item-2", "Mouse", -1, "", "")
	assert.Error(t, err)
}
