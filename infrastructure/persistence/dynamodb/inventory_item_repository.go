package dynamodb

import (
	"context"
	"fmt"
	"time"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/domain/core/entities"
	pkgerrors "bookkeeper-backend/pkg/errors"
	"bookkeeper-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var itemKeys = KeySchema{Kind: KindItem}

// InventoryItemRepository persists stocked goods. The location reference is
// carried on the LinkIndex because "what is on this shelf" is the hot query;
// type filtering goes through a filter expression.
type InventoryItemRepository struct {
	*store
}

// NewInventoryItemRepository creates an InventoryItemRepository.
func NewInventoryItemRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *InventoryItemRepository {
	return &InventoryItemRepository{store: newStore(client, tableName, logger, nil)}
}

type inventoryItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	GSI1PK     string `dynamodbav:"GSI1PK"`
	GSI1SK     string `dynamodbav:"GSI1SK"`
	GSI2PK     string `dynamodbav:"GSI2PK,omitempty"`
	GSI2SK     string `dynamodbav:"GSI2SK,omitempty"`
	EntityType string `dynamodbav:"EntityType"`
	ItemID     string `dynamodbav:"ItemID"`
	Name       string `dynamodbav:"Name"`
	Quantity   int64  `dynamodbav:"Quantity"`
	TypeID     string `dynamodbav:"TypeID,omitempty"`
	LocationID string `dynamodbav:"LocationID,omitempty"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
}

func inventoryItemToItem(i *entities.InventoryItem) inventoryItem {
	item := inventoryItem{
		PK:         itemKeys.PK(i.ID()),
		SK:         itemKeys.SK(),
		GSI1PK:     itemKeys.StorePK(),
		GSI1SK:     itemKeys.NameSortKey(i.Name()),
		EntityType: string(KindItem),
		ItemID:     i.ID(),
		Name:       i.Name(),
		Quantity:   i.Quantity(),
		TypeID:     i.TypeID(),
		LocationID: i.LocationID(),
		CreatedAt:  i.CreatedAt().UTC().Format(time.RFC3339Nano),
		UpdatedAt:  i.UpdatedAt().UTC().Format(time.RFC3339Nano),
	}
	if i.LocationID() != "" {
		item.GSI2PK = itemKeys.LinkPK(KindLocation, i.LocationID())
		item.GSI2SK = itemKeys.NameSortKey(i.Name())
	}
	return item
}

func itemToInventoryItem(item inventoryItem) (*entities.InventoryItem, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid CreatedAt on %s: %w", item.PK, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid UpdatedAt on %s: %w", item.PK, err)
	}
	return entities.ReconstructInventoryItem(
		item.ItemID, item.Name, item.Quantity, item.TypeID, item.LocationID, createdAt, updatedAt,
	), nil
}

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

	av, err := attributevalue.MarshalMap(inventoryItemToItem(item))
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to marshal inventory item", err)
	}
	if err := r.putNew(ctx, av); err != nil {
		if isConditionalCheckFailed(err) {
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

	raw, err := r.get(ctx, itemKeys.PK(id), itemKeys.SK())
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to get inventory item", err)
	}
	if raw == nil {
		return nil, nil
	}

	var item inventoryItem
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to unmarshal inventory item", err)
	}
	return itemToInventoryItem(item)
}

// Save upserts the item's current state.
func (r *InventoryItemRepository) Save(ctx context.Context, item *entities.InventoryItem) (err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "inventory item", "save", start, err)
	}(time.Now())

	av, err := attributevalue.MarshalMap(inventoryItemToItem(item))
	if err != nil {
		return pkgerrors.NewDatabaseError("failed to marshal inventory item", err)
	}
	if err := r.put(ctx, av); err != nil {
		return pkgerrors.NewDatabaseError("failed to save inventory item", err)
	}
	return nil
}

// Delete removes the item. Idempotent.
func (r *InventoryItemRepository) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "inventory item", "delete", start, err)
	}(time.Now())

	if err := r.delete(ctx, itemKeys.PK(id), itemKeys.SK()); err != nil {
		return pkgerrors.NewDatabaseError("failed to delete inventory item", err)
	}
	return nil
}

// ListByQuery selects items ordered by lower-cased name. A location filter
// hits the LinkIndex; the type filter narrows whichever query runs.
func (r *InventoryItemRepository) ListByQuery(ctx context.Context, filter ports.InventoryItemFilter) (_ []*entities.InventoryItem, err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "inventory item", "list", start, err)
	}(time.Now())

	var input *dynamodb.QueryInput
	if filter.LocationID != "" {
		input = &dynamodb.QueryInput{
			IndexName:              aws.String(LinkIndexName),
			KeyConditionExpression: aws.String("GSI2PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: itemKeys.LinkPK(KindLocation, filter.LocationID)},
			},
		}
		if filter.Search != "" {
			input.KeyConditionExpression = aws.String("GSI2PK = :pk AND begins_with(GSI2SK, :prefix)")
			input.ExpressionAttributeValues[":prefix"] = &types.AttributeValueMemberS{
				Value: itemKeys.NameSortKey(filter.Search),
			}
		}
	} else {
		input = &dynamodb.QueryInput{
			IndexName:              aws.String(StoreIndexName),
			KeyConditionExpression: aws.String("GSI1PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: itemKeys.StorePK()},
			},
		}
		if filter.Search != "" {
			input.KeyConditionExpression = aws.String("GSI1PK = :pk AND begins_with(GSI1SK, :prefix)")
			input.ExpressionAttributeValues[":prefix"] = &types.AttributeValueMemberS{
				Value: itemKeys.NameSortKey(filter.Search),
			}
		}
	}
	if filter.TypeID != "" {
		input.FilterExpression = aws.String("TypeID = :typeID")
		input.ExpressionAttributeValues[":typeID"] = &types.AttributeValueMemberS{Value: filter.TypeID}
	}

	raw, err := r.queryAll(ctx, input, 0)
	if err != nil {
		return nil, wrapQueryError("inventory items", err)
	}

	items := make([]*entities.InventoryItem, 0, len(raw))
	for _, rawItem := range raw {
		var item inventoryItem
		if err := attributevalue.UnmarshalMap(rawItem, &item); err != nil {
			return nil, pkgerrors.NewDatabaseError("failed to unmarshal inventory item", err)
		}
		mapped, err := itemToInventoryItem(item)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("failed to map inventory item", err)
		}
		items = append(items, mapped)
	}
	return paginate(items, filter.Skip, filter.Limit), nil
}
