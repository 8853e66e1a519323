package dynamodb

import (
	"testing"

	"bookkeeper-backend/application/ports"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func stringValue(t *testing.T, av types.AttributeValue) string {
	t.Helper()
	s, ok := av.(*types.AttributeValueMemberS)
	require.True(t, ok)
	return s.Value
}

func TestCatalogListQueryInput_Default(t *testing.T) {
	repo := NewInventoryLocationRepository(nil, "records", zap.NewNop(), nil)

	input := repo.listQueryInput(ports.CatalogFilter{})
	assert.Equal(t, StoreIndexName, *input.IndexName)
	assert.Equal(t, "GSI1PK = :pk", *input.KeyConditionExpression)
	assert.Nil(t, input.FilterExpression)
	assert.Equal(t, "STORE#INVLOCATION", stringValue(t, input.ExpressionAttributeValues[":pk"]))
}

func TestCatalogListQueryInput_SearchNarrowsKeyCondition(t *testing.T) {
	repo := NewInventoryLocationRepository(nil, "records", zap.NewNop(), nil)

	input := repo.listQueryInput(ports.CatalogFilter{Search: "Ware"})
	assert.Equal(t, "GSI1PK = :pk AND begins_with(GSI1SK, :prefix)", *input.KeyConditionExpression)
	assert.Equal(t, "ware", stringValue(t, input.ExpressionAttributeValues[":prefix"]))
}

func TestCatalogListQueryInput_RootOnlyKeepsSearch(t *testing.T) {
	repo := NewInventoryTypeRepository(nil, "records", zap.NewNop(), nil)

	input := repo.listQueryInput(ports.CatalogFilter{RootOnly: true, Search: "Office"})
	assert.Equal(t, StoreIndexName, *input.IndexName)
	require.NotNil(t, input.FilterExpression)
	assert.Equal(t, "attribute_not_exists(ParentID)", *input.FilterExpression)
	assert.Equal(t, "GSI1PK = :pk AND begins_with(GSI1SK, :prefix)", *input.KeyConditionExpression)
	assert.Equal(t, "office", stringValue(t, input.ExpressionAttributeValues[":prefix"]))
}

func TestCatalogListQueryInput_ParentHitsLinkIndex(t *testing.T) {
	repo := NewInventoryLocationRepository(nil, "records", zap.NewNop(), nil)

	input := repo.listQueryInput(ports.CatalogFilter{ParentID: "p1", Search: "Shelf"})
	assert.Equal(t, LinkIndexName, *input.IndexName)
	assert.Equal(t, "GSI2PK = :pk AND begins_with(GSI2SK, :prefix)", *input.KeyConditionExpression)
	assert.Equal(t, "LINK#INVLOCATION#p1", stringValue(t, input.ExpressionAttributeValues[":pk"]))
	assert.Equal(t, "shelf", stringValue(t, input.ExpressionAttributeValues[":prefix"]))
}
