package services

import (
	"context"
	"testing"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/infrastructure/persistence/memory"
	pkgerrors "bookkeeper-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newInventoryFixture(t *testing.T) *InventoryService {
	t.Helper()
	persistence := memory.NewPersistence(nil)
	return NewInventoryService(
		persistence.InventoryLocations,
		persistence.InventoryTypes,
		persistence.InventoryItems,
		zap.NewNop(),
	)
}

func TestCreateLocationRejectsMissingParent(t *testing.T) {
	service := newInventoryFixture(t)
	ctx := context.Background()

	_, err := service.CreateLocation(ctx, ports.CatalogArgs{Name: "Shelf", ParentID: "missing"})
	assert.True(t, pkgerrors.IsIntegrityViolation(err))

	root, err := service.CreateLocation(ctx, ports.CatalogArgs{Name: "Warehouse"})
	require.NoError(t, err)

	child, err := service.CreateLocation(ctx, ports.CatalogArgs{Name: "Shelf", ParentID: root.ID()})
	require.NoError(t, err)
	assert.Equal(t, root.ID(), child.ParentID())
}

func TestDeleteLocationRejectedWithChildren(t *testing.T) {
	service := newInventoryFixture(t)
	ctx := context.Background()

	root, err := service.CreateLocation(ctx, ports.CatalogArgs{Name: "Warehouse"})
	require.NoError(t, err)
	child, err := service.CreateLocation(ctx, ports.CatalogArgs{Name: "Shelf", ParentID: root.ID()})
	require.NoError(t, err)

	err = service.DeleteLocation(ctx, root.ID())
	assert.True(t, pkgerrors.IsIntegrityViolation(err))

	// Removing the child first unblocks the delete.
	require.NoError(t, service.DeleteLocation(ctx, child.ID()))
	require.NoError(t, service.DeleteLocation(ctx, root.ID()))
}

func TestDeleteTypeRejectedWithAssignedItems(t *testing.T) {
	service := newInventoryFixture(t)
	ctx := context.Background()

	typ, err := service.CreateType(ctx, ports.CatalogArgs{Name: "Hardware"})
	require.NoError(t, err)
	item, err := service.CreateItem(ctx, ports.InventoryItemArgs{Name: "Laptop", Quantity: 1, TypeID: typ.ID()})
	require.NoError(t, err)

	err = service.DeleteType(ctx, typ.ID())
	assert.True(t, pkgerrors.IsIntegrityViolation(err))

	require.NoError(t, service.DeleteItem(ctx, item.ID()))
	require.NoError(t, service.DeleteType(ctx, typ.ID()))
}

func TestCreateItemRejectsDanglingReferences(t *testing.T) {
	service := newInventoryFixture(t)
	ctx := context.Background()

	_, err := service.CreateItem(ctx, ports.InventoryItemArgs{Name: "Laptop", TypeID: "missing"})
	assert.True(t, pkgerrors.IsIntegrityViolation(err))

	_, err = service.CreateItem(ctx, ports.InventoryItemArgs{Name: "Laptop", LocationID: "missing"})
	assert.True(t, pkgerrors.IsIntegrityViolation(err))
}

func TestListLocationsRootOnly(t *testing.T) {
	service := newInventoryFixture(t)
	ctx := context.Background()

	root, err := service.CreateLocation(ctx, ports.CatalogArgs{Name: "Warehouse"})
	require.NoError(t, err)
	_, err = service.CreateLocation(ctx, ports.CatalogArgs{Name: "Shelf", ParentID: root.ID()})
	require.NoError(t, err)

	roots, err := service.ListLocations(ctx, ports.CatalogFilter{RootOnly: true})
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, root.ID(), roots[0].ID())

	children, err := service.ListLocations(ctx, ports.CatalogFilter{ParentID: root.ID()})
	require.NoError(t, err)
	require.Len(t, children, 1)
}

func TestUpdateTypeReparents(t *testing.T) {
	service := newInventoryFixture(t)
	ctx := context.Background()

	a, err := service.CreateType(ctx, ports.CatalogArgs{Name: "A"})
	require.NoError(t, err)
	b, err := service.CreateType(ctx, ports.CatalogArgs{Name: "B"})
	require.NoError(t, err)

	parentID := a.ID()
	updated, err := service.UpdateType(ctx, b.ID(), nil, nil, &parentID)
	require.NoError(t, err)
	assert.Equal(t, a.ID(), updated.ParentID())

	// Re-parenting onto a missing node is rejected.
	missing := "missing"
	_, err = service.UpdateType(ctx, b.ID(), nil, nil, &missing)
	assert.True(t, pkgerrors.IsIntegrityViolation(err))
}

func TestUpdateItemReassignsCatalogReferences(t *testing.T) {
	service := newInventoryFixture(t)
	ctx := context.Background()

	typ, err := service.CreateType(ctx, ports.CatalogArgs{Name: "Hardware"})
	require.NoError(t, err)
	loc, err := service.CreateLocation(ctx, ports.CatalogArgs{Name: "Warehouse"})
	require.NoError(t, err)
	item, err := service.CreateItem(ctx, ports.InventoryItemArgs{Name: "Laptop", Quantity: 1})
	require.NoError(t, err)

	name := "Laptop 14"
	typeID := typ.ID()
	locationID := loc.ID()
	updated, err := service.UpdateItem(ctx, item.ID(), &name, &typeID, &locationID)
	require.NoError(t, err)
	assert.Equal(t, "Laptop 14", updated.Name())
	assert.Equal(t, typ.ID(), updated.TypeID())
	assert.Equal(t, loc.ID(), updated.LocationID())

	// Omitted fields keep their value; an empty id clears the reference.
	cleared := ""
	updated, err = service.UpdateItem(ctx, item.ID(), nil, &cleared, nil)
	require.NoError(t, err)
	assert.Equal(t, "Laptop 14", updated.Name())
	assert.Empty(t, updated.TypeID())
	assert.Equal(t, loc.ID(), updated.LocationID())

	reloaded, err := service.GetItem(ctx, item.ID())
	require.NoError(t, err)
	assert.Empty(t, reloaded.TypeID())

	// Pointing at a missing node is rejected.
	missing := "missing"
	_, err = service.UpdateItem(ctx, item.ID(), nil, nil, &missing)
	assert.True(t, pkgerrors.IsIntegrityViolation(err))
}

func TestAdjustItemQuantityPersists(t *testing.T) {
	service := newInventoryFixture(t)
	ctx := context.Background()

	item, err := service.CreateItem(ctx, ports.InventoryItemArgs{Name: "Laptop", Quantity: 2})
	require.NoError(t, err)

	_, err = service.AdjustItemQuantity(ctx, item.ID(), 3)
	require.NoError(t, err)

	reloaded, err := service.GetItem(ctx, item.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(5), reloaded.Quantity())
}
