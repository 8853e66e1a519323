package dynamodb

import (
	"context"
	"fmt"

	"bookkeeper-backend/application/ports"
	pkgerrors "bookkeeper-backend/pkg/errors"
	"bookkeeper-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

var sequenceKeys = KeySchema{Kind: KindSequence}

// SequenceStore keeps the last issued document number per sequence. The swap
// is a conditional write on the stored value, so two concurrent issuers can
// never both commit the same successor.
type SequenceStore struct {
	*store
}

var _ ports.SequenceStore = (*SequenceStore)(nil)

// NewSequenceStore creates a SequenceStore.
func NewSequenceStore(client *dynamodb.Client, tableName string, logger *zap.Logger) *SequenceStore {
	return &SequenceStore{store: newStore(client, tableName, logger, nil)}
}

type sequenceItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	Sequence   string `dynamodbav:"Sequence"`
	LastValue  string `dynamodbav:"LastValue"`
}

// Last returns the last issued number of a sequence, empty when the sequence
// never issued one.
func (s *SequenceStore) Last(ctx context.Context, sequence string) (string, error) {
	raw, err := s.get(ctx, sequenceKeys.PK(sequence), sequenceKeys.SK())
	if err != nil {
		return "", pkgerrors.NewDatabaseError("failed to get sequence", err)
	}
	if raw == nil {
		return "", nil
	}

	var item sequenceItem
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return "", pkgerrors.NewDatabaseError("failed to unmarshal sequence", err)
	}
	return item.LastValue, nil
}

// CompareAndSwap commits next only when the stored value still equals last.
// A lost race surfaces as a Conflict error; callers re-read and retry.
func (s *SequenceStore) CompareAndSwap(ctx context.Context, sequence, last, next string) error {
	if last == "" {
		return s.createSequence(ctx, sequence, next)
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              primaryKey(sequenceKeys.PK(sequence), sequenceKeys.SK()),
		UpdateExpression: aws.String("SET LastValue = :next"),
		ConditionExpression: aws.String(
			"attribute_exists(PK) AND LastValue = :last",
		),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":next": &types.AttributeValueMemberS{Value: next},
			":last": &types.AttributeValueMemberS{Value: last},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			observability.ObserveSequenceConflict(backendName, sequence)
			return pkgerrors.NewConflictError(fmt.Sprintf("sequence %s advanced concurrently", sequence))
		}
		return pkgerrors.NewDatabaseError("failed to advance sequence", err)
	}

	s.logger.Debug("sequence advanced",
		zap.String("sequence", sequence),
		zap.String("value", next),
	)
	return nil
}

// createSequence initializes a sequence record. Losing the race to another
// creator is the same Conflict as losing a swap.
func (s *SequenceStore) createSequence(ctx context.Context, sequence, next string) error {
	av, err := attributevalue.MarshalMap(sequenceItem{
		PK:         sequenceKeys.PK(sequence),
		SK:         sequenceKeys.SK(),
		EntityType: string(KindSequence),
		Sequence:   sequence,
		LastValue:  next,
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("failed to marshal sequence", err)
	}

	if err := s.putNew(ctx, av); err != nil {
		if isConditionalCheckFailed(err) {
			observability.ObserveSequenceConflict(backendName, sequence)
			return pkgerrors.NewConflictError(fmt.Sprintf("sequence %s was created concurrently", sequence))
		}
		return pkgerrors.NewDatabaseError("failed to create sequence", err)
	}
	return nil
}
