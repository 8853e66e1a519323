package dynamodb

import (
	"context"
	"fmt"
	"time"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/domain/core/entities"
	domainevents "bookkeeper-backend/domain/events"
	pkgerrors "bookkeeper-backend/pkg/errors"
	"bookkeeper-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// catalogItem is the stored shape shared by both catalog kinds. The parent
// reference doubles as the LinkIndex partition, so listing a node's direct
// children is one query.
type catalogItem struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	GSI1PK      string `dynamodbav:"GSI1PK"`
	GSI1SK      string `dynamodbav:"GSI1SK"`
	GSI2PK      string `dynamodbav:"GSI2PK,omitempty"`
	GSI2SK      string `dynamodbav:"GSI2SK,omitempty"`
	EntityType  string `dynamodbav:"EntityType"`
	NodeID      string `dynamodbav:"NodeID"`
	Name        string `dynamodbav:"Name"`
	Description string `dynamodbav:"Description,omitempty"`
	ParentID    string `dynamodbav:"ParentID,omitempty"`
	CreatedAt   string `dynamodbav:"CreatedAt"`
	UpdatedAt   string `dynamodbav:"UpdatedAt"`
}

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

// CatalogRepository stores one hierarchical catalog kind (locations or types).
type CatalogRepository[T catalogEntity] struct {
	*store
	keys        KeySchema
	entityName  string
	build       func(id string, args ports.CatalogArgs) (T, error)
	reconstruct func(item catalogItem, createdAt, updatedAt time.Time) T
}

// NewInventoryLocationRepository creates the location catalog repository.
func NewInventoryLocationRepository(client *dynamodb.Client, tableName string, logger *zap.Logger, publisher ports.EventPublisher) *CatalogRepository[*entities.InventoryLocation] {
	return &CatalogRepository[*entities.InventoryLocation]{
		store:      newStore(client, tableName, logger, publisher),
		keys:       KeySchema{Kind: KindLocation},
		entityName: "inventory location",
		build: func(id string, args ports.CatalogArgs) (*entities.InventoryLocation, error) {
			return entities.NewInventoryLocation(id, args.Name, args.Description, args.ParentID)
		},
		reconstruct: func(item catalogItem, createdAt, updatedAt time.Time) *entities.InventoryLocation {
			return entities.ReconstructInventoryLocation(item.NodeID, item.Name, item.Description, item.ParentID, createdAt, updatedAt)
		},
	}
}

// NewInventoryTypeRepository creates the type catalog repository.
func NewInventoryTypeRepository(client *dynamodb.Client, tableName string, logger *zap.Logger, publisher ports.EventPublisher) *CatalogRepository[*entities.InventoryType] {
	return &CatalogRepository[*entities.InventoryType]{
		store:      newStore(client, tableName, logger, publisher),
		keys:       KeySchema{Kind: KindType},
		entityName: "inventory type",
		build: func(id string, args ports.CatalogArgs) (*entities.InventoryType, error) {
			return entities.NewInventoryType(id, args.Name, args.Description, args.ParentID)
		},
		reconstruct: func(item catalogItem, createdAt, updatedAt time.Time) *entities.InventoryType {
			return entities.ReconstructInventoryType(item.NodeID, item.Name, item.Description, item.ParentID, createdAt, updatedAt)
		},
	}
}

func (r *CatalogRepository[T]) toItem(node T) catalogItem {
	item := catalogItem{
		PK:          r.keys.PK(node.ID()),
		SK:          r.keys.SK(),
		GSI1PK:      r.keys.StorePK(),
		GSI1SK:      r.keys.NameSortKey(node.Name()),
		EntityType:  string(r.keys.Kind),
		NodeID:      node.ID(),
		Name:        node.Name(),
		Description: node.Description(),
		ParentID:    node.ParentID(),
		CreatedAt:   node.CreatedAt().UTC().Format(time.RFC3339Nano),
		UpdatedAt:   node.UpdatedAt().UTC().Format(time.RFC3339Nano),
	}
	if node.ParentID() != "" {
		item.GSI2PK = r.keys.LinkPK(r.keys.Kind, node.ParentID())
		item.GSI2SK = r.keys.NameSortKey(node.Name())
	}
	return item
}

func (r *CatalogRepository[T]) fromItem(item catalogItem) (T, error) {
	var zero T
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return zero, fmt.Errorf("invalid CreatedAt on %s: %w", item.PK, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return zero, fmt.Errorf("invalid UpdatedAt on %s: %w", item.PK, err)
	}
	return r.reconstruct(item, createdAt, updatedAt), nil
}

// Create persists a fresh catalog node under a generated id.
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

	av, err := attributevalue.MarshalMap(r.toItem(node))
	if err != nil {
		return zero, pkgerrors.NewDatabaseError("failed to marshal "+r.entityName, err)
	}
	if err := r.putNew(ctx, av); err != nil {
		if isConditionalCheckFailed(err) {
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
	raw, err := r.get(ctx, r.keys.PK(id), r.keys.SK())
	if err != nil {
		return zero, pkgerrors.NewDatabaseError("failed to get "+r.entityName, err)
	}
	if raw == nil {
		return zero, nil
	}

	var item catalogItem
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return zero, pkgerrors.NewDatabaseError("failed to unmarshal "+r.entityName, err)
	}
	return r.fromItem(item)
}

// Save upserts the node's current state and publishes its drained events.
func (r *CatalogRepository[T]) Save(ctx context.Context, node T) (err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, r.entityName, "save", start, err)
	}(time.Now())

	av, err := attributevalue.MarshalMap(r.toItem(node))
	if err != nil {
		return pkgerrors.NewDatabaseError("failed to marshal "+r.entityName, err)
	}
	if err := r.put(ctx, av); err != nil {
		return pkgerrors.NewDatabaseError("failed to save "+r.entityName, err)
	}
	r.publishEvents(ctx, node.DrainEvents())
	return nil
}

// Delete removes the node. Idempotent.
func (r *CatalogRepository[T]) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, r.entityName, "delete", start, err)
	}(time.Now())

	if err := r.delete(ctx, r.keys.PK(id), r.keys.SK()); err != nil {
		return pkgerrors.NewDatabaseError("failed to delete "+r.entityName, err)
	}
	return nil
}

// listQueryInput maps a catalog filter onto the index that serves it. A
// parent filter hits the LinkIndex child partition; root-only filtering falls
// back to a filter expression on the kind partition because the LinkIndex has
// no entry for roots. A name search narrows the key condition of whichever
// index is in play.
func (r *CatalogRepository[T]) listQueryInput(filter ports.CatalogFilter) *dynamodb.QueryInput {
	if filter.ParentID != "" {
		input := &dynamodb.QueryInput{
			IndexName:              aws.String(LinkIndexName),
			KeyConditionExpression: aws.String("GSI2PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: r.keys.LinkPK(r.keys.Kind, filter.ParentID)},
			},
		}
		if filter.Search != "" {
			input.KeyConditionExpression = aws.String("GSI2PK = :pk AND begins_with(GSI2SK, :prefix)")
			input.ExpressionAttributeValues[":prefix"] = &types.AttributeValueMemberS{
				Value: r.keys.NameSortKey(filter.Search),
			}
		}
		return input
	}

	input := &dynamodb.QueryInput{
		IndexName:              aws.String(StoreIndexName),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: r.keys.StorePK()},
		},
	}
	if filter.RootOnly {
		input.FilterExpression = aws.String("attribute_not_exists(ParentID)")
	}
	if filter.Search != "" {
		input.KeyConditionExpression = aws.String("GSI1PK = :pk AND begins_with(GSI1SK, :prefix)")
		input.ExpressionAttributeValues[":prefix"] = &types.AttributeValueMemberS{
			Value: r.keys.NameSortKey(filter.Search),
		}
	}
	return input
}

// ListByQuery selects nodes, ordered by lower-cased name.
func (r *CatalogRepository[T]) ListByQuery(ctx context.Context, filter ports.CatalogFilter) (_ []T, err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, r.entityName, "list", start, err)
	}(time.Now())

	raw, err := r.queryAll(ctx, r.listQueryInput(filter), 0)
	if err != nil {
		return nil, wrapQueryError(r.entityName+"s", err)
	}

	nodes := make([]T, 0, len(raw))
	for _, rawItem := range raw {
		var item catalogItem
		if err := attributevalue.UnmarshalMap(rawItem, &item); err != nil {
			return nil, pkgerrors.NewDatabaseError("failed to unmarshal "+r.entityName, err)
		}
		node, err := r.fromItem(item)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("failed to map "+r.entityName, err)
		}
		nodes = append(nodes, node)
	}
	return paginate(nodes, filter.Skip, filter.Limit), nil
}
