package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"bookkeeper-backend/application/ports"
	domainevents "bookkeeper-backend/domain/events"
	pkgerrors "bookkeeper-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

const backendName = "dynamodb"

// store is the shared plumbing behind every repository in this package: one
// client, one table, one logger, one event publisher.
type store struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
	publisher ports.EventPublisher
}

func newStore(client *dynamodb.Client, tableName string, logger *zap.Logger, publisher ports.EventPublisher) *store {
	if publisher == nil {
		publisher = ports.NoopEventPublisher{}
	}
	return &store{
		client:    client,
		tableName: tableName,
		logger:    logger,
		publisher: publisher,
	}
}

// putNew writes an item only when no record with its PK exists yet.
func (s *store) putNew(ctx context.Context, item map[string]types.AttributeValue) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	return err
}

// put unconditionally upserts an item.
func (s *store) put(ctx context.Context, item map[string]types.AttributeValue) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	return err
}

// get fetches one item by primary key; (nil, nil) when absent.
func (s *store) get(ctx context.Context, pk, sk string) (map[string]types.AttributeValue, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       primaryKey(pk, sk),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}
	return out.Item, nil
}

func (s *store) delete(ctx context.Context, pk, sk string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       primaryKey(pk, sk),
	})
	return err
}

// queryAll runs a query and follows pagination until the result set is
// exhausted or max items were collected (max <= 0 means no cap).
func (s *store) queryAll(ctx context.Context, input *dynamodb.QueryInput, max int) ([]map[string]types.AttributeValue, error) {
	input.TableName = aws.String(s.tableName)

	var items []map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if max > 0 && len(items) >= max {
			return items[:max], nil
		}
		if out.LastEvaluatedKey == nil {
			return items, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// publishEvents delivers drained domain events after a successful write.
// Delivery failures are logged, never propagated; the write already happened.
func (s *store) publishEvents(ctx context.Context, events []domainevents.DomainEvent) {
	for _, event := range events {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish domain event",
				zap.String("eventType", event.GetEventType()),
				zap.String("aggregateID", event.GetAggregateID()),
				zap.Error(err),
			)
		}
	}
}

func primaryKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func isConditionalCheckFailed(err error) bool {
	var conditionFailed *types.ConditionalCheckFailedException
	return errors.As(err, &conditionFailed)
}

func wrapQueryError(entity string, err error) error {
	return pkgerrors.NewDatabaseError(fmt.Sprintf("failed to query %s", entity), err)
}

// paginate applies client-side skip/limit to an already ordered result set.
func paginate[T any](items []T, skip, limit int) []T {
	if skip > 0 {
		if skip >= len(items) {
			return nil
		}
		items = items[skip:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
