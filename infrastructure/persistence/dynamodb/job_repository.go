package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/domain/core/entities"
	pkgerrors "bookkeeper-backend/pkg/errors"
	"bookkeeper-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var jobKeys = KeySchema{Kind: KindJob}

// TimeBasedJobRepository is the delay queue. The StoreIndex sort key is the
// zero-padded run-after time, so "everything due by now" is a single range
// query returning jobs soonest-first.
type TimeBasedJobRepository struct {
	*store
}

// NewTimeBasedJobRepository creates a TimeBasedJobRepository.
func NewTimeBasedJobRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *TimeBasedJobRepository {
	return &TimeBasedJobRepository{store: newStore(client, tableName, logger, nil)}
}

type jobItem struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	GSI1PK       string `dynamodbav:"GSI1PK"`
	GSI1SK       string `dynamodbav:"GSI1SK"`
	EntityType   string `dynamodbav:"EntityType"`
	JobID        string `dynamodbav:"JobID"`
	RunAfter     int64  `dynamodbav:"RunAfter"`
	JobEventType string `dynamodbav:"JobEventType"`
	EventPayload string `dynamodbav:"EventPayload,omitempty"`
	CreatedAt    string `dynamodbav:"CreatedAt"`
	UpdatedAt    string `dynamodbav:"UpdatedAt"`
}

func jobToItem(j *entities.TimeBasedJob) jobItem {
	return jobItem{
		PK:           jobKeys.PK(j.ID()),
		SK:           jobKeys.SK(),
		GSI1PK:       jobKeys.StorePK(),
		GSI1SK:       jobKeys.DueSortKey(j.RunAfter()),
		EntityType:   string(KindJob),
		JobID:        j.ID(),
		RunAfter:     j.RunAfter(),
		JobEventType: j.EventType(),
		EventPayload: string(j.EventPayload()),
		CreatedAt:    j.CreatedAt().UTC().Format(time.RFC3339Nano),
		UpdatedAt:    j.UpdatedAt().UTC().Format(time.RFC3339Nano),
	}
}

func itemToJob(item jobItem) (*entities.TimeBasedJob, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid CreatedAt on %s: %w", item.PK, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid UpdatedAt on %s: %w", item.PK, err)
	}
	var payload json.RawMessage
	if item.EventPayload != "" {
		payload = json.RawMessage(item.EventPayload)
	}
	return entities.ReconstructTimeBasedJob(
		item.JobID, item.RunAfter, item.JobEventType, payload, createdAt, updatedAt,
	), nil
}

// Create persists a fresh job under a generated id.
func (r *TimeBasedJobRepository) Create(ctx context.Context, args ports.TimeBasedJobArgs) (*entities.TimeBasedJob, error) {
	return r.CreateWithID(ctx, uuid.New().String(), args)
}

// CreateWithID persists a job under the given id, Conflict when taken.
func (r *TimeBasedJobRepository) CreateWithID(ctx context.Context, id string, args ports.TimeBasedJobArgs) (_ *entities.TimeBasedJob, err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "job", "create", start, err)
	}(time.Now())

	job, err := entities.NewTimeBasedJob(id, args.RunAfter, args.EventType, args.EventPayload)
	if err != nil {
		return nil, err
	}

	av, err := attributevalue.MarshalMap(jobToItem(job))
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to marshal job", err)
	}
	if err := r.putNew(ctx, av); err != nil {
		if isConditionalCheckFailed(err) {
			return nil, pkgerrors.NewConflictError(fmt.Sprintf("job %s already exists", id))
		}
		return nil, pkgerrors.NewDatabaseError("failed to create job", err)
	}
	return job, nil
}

// GetByID returns (nil, nil) when the job does not exist.
func (r *TimeBasedJobRepository) GetByID(ctx context.Context, id string) (_ *entities.TimeBasedJob, err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "job", "get", start, err)
	}(time.Now())

	raw, err := r.get(ctx, jobKeys.PK(id), jobKeys.SK())
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to get job", err)
	}
	if raw == nil {
		return nil, nil
	}

	var item jobItem
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to unmarshal job", err)
	}
	return itemToJob(item)
}

// Save upserts the job, moving its due-time index entry along with it.
func (r *TimeBasedJobRepository) Save(ctx context.Context, job *entities.TimeBasedJob) (err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "job", "save", start, err)
	}(time.Now())

	av, err := attributevalue.MarshalMap(jobToItem(job))
	if err != nil {
		return pkgerrors.NewDatabaseError("failed to marshal job", err)
	}
	if err := r.put(ctx, av); err != nil {
		return pkgerrors.NewDatabaseError("failed to save job", err)
	}
	return nil
}

// Delete removes the job; the dispatcher calls this after a successful run.
// Idempotent.
func (r *TimeBasedJobRepository) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "job", "delete", start, err)
	}(time.Now())

	if err := r.delete(ctx, jobKeys.PK(id), jobKeys.SK()); err != nil {
		return pkgerrors.NewDatabaseError("failed to delete job", err)
	}
	return nil
}

// ListByQuery selects jobs ascending by due time.
func (r *TimeBasedJobRepository) ListByQuery(ctx context.Context, filter ports.TimeBasedJobFilter) (_ []*entities.TimeBasedJob, err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "job", "list", start, err)
	}(time.Now())

	keyCond := expression.Key("GSI1PK").Equal(expression.Value(jobKeys.StorePK()))
	if filter.DueBefore > 0 {
		keyCond = keyCond.And(expression.Key("GSI1SK").LessThanEqual(
			expression.Value(jobKeys.DueSortKey(filter.DueBefore)),
		))
	}

	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if filter.EventType != "" {
		builder = builder.WithFilter(expression.Name("JobEventType").Equal(expression.Value(filter.EventType)))
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to build job query", err)
	}

	input := &dynamodb.QueryInput{
		IndexName:                 aws.String(StoreIndexName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	raw, err := r.queryAll(ctx, input, 0)
	if err != nil {
		return nil, wrapQueryError("jobs", err)
	}

	jobs := make([]*entities.TimeBasedJob, 0, len(raw))
	for _, rawItem := range raw {
		var item jobItem
		if err := attributevalue.UnmarshalMap(rawItem, &item); err != nil {
			return nil, pkgerrors.NewDatabaseError("failed to unmarshal job", err)
		}
		job, err := itemToJob(item)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("failed to map job", err)
		}
		jobs = append(jobs, job)
	}
	if filter.Limit > 0 && len(jobs) > filter.Limit {
		jobs = jobs[:filter.Limit]
	}
	return jobs, nil
}

// ListDue returns every job whose run-after time has passed, soonest first.
func (r *TimeBasedJobRepository) ListDue(ctx context.Context, now int64) ([]*entities.TimeBasedJob, error) {
	return r.ListByQuery(ctx, ports.TimeBasedJobFilter{DueBefore: now})
}
