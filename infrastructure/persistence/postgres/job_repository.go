package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/domain/core/entities"
	pkgerrors "bookkeeper-backend/pkg/errors"
	"bookkeeper-backend/pkg/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TimeBasedJobRepository is the relational delay queue, indexed on run_after.
type TimeBasedJobRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTimeBasedJobRepository creates a TimeBasedJobRepository.
func NewTimeBasedJobRepository(db *sql.DB, logger *zap.Logger) *TimeBasedJobRepository {
	return &TimeBasedJobRepository{db: db, logger: logger}
}

const jobColumns = "id, run_after, event_type, event_payload, created_at, updated_at"

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

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO time_based_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, job.ID(), job.RunAfter(), job.EventType(), payloadValue(job.EventPayload()), job.CreatedAt(), job.UpdatedAt())
	if err != nil {
		if isUniqueViolation(err) {
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

	job, err := scanJob(r.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM time_based_jobs WHERE id = $1`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, pkgerrors.NewDatabaseError("failed to get job", err)
	}
	return job, nil
}

// Save upserts the job, typically after a reschedule.
func (r *TimeBasedJobRepository) Save(ctx context.Context, job *entities.TimeBasedJob) (err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "job", "save", start, err)
	}(time.Now())

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO time_based_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			run_after = EXCLUDED.run_after,
			event_type = EXCLUDED.event_type,
			event_payload = EXCLUDED.event_payload,
			updated_at = EXCLUDED.updated_at
	`, job.ID(), job.RunAfter(), job.EventType(), payloadValue(job.EventPayload()), job.CreatedAt(), job.UpdatedAt())
	if err != nil {
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

	if _, err := r.db.ExecContext(ctx, `DELETE FROM time_based_jobs WHERE id = $1`, id); err != nil {
		return pkgerrors.NewDatabaseError("failed to delete job", err)
	}
	return nil
}

// ListByQuery selects jobs ascending by due time then id.
func (r *TimeBasedJobRepository) ListByQuery(ctx context.Context, filter ports.TimeBasedJobFilter) (_ []*entities.TimeBasedJob, err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "job", "list", start, err)
	}(time.Now())

	b := newQueryBuilder()
	if filter.EventType != "" {
		b.equal("event_type", filter.EventType)
	}
	if filter.DueBefore > 0 {
		b.atMost("run_after", filter.DueBefore)
	}

	query := `SELECT ` + jobColumns + ` FROM time_based_jobs` +
		b.whereClause() + pagination("run_after, id", 0, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to list jobs", err)
	}
	defer rows.Close()

	var jobs []*entities.TimeBasedJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("failed to scan job", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ListDue returns every job whose run-after time has passed, soonest first.
func (r *TimeBasedJobRepository) ListDue(ctx context.Context, now int64) ([]*entities.TimeBasedJob, error) {
	return r.ListByQuery(ctx, ports.TimeBasedJobFilter{DueBefore: now})
}

func scanJob(scanner rowScanner) (*entities.TimeBasedJob, error) {
	var (
		id, eventType        string
		runAfter             int64
		payload              []byte
		createdAt, updatedAt time.Time
	)
	if err := scanner.Scan(&id, &runAfter, &eventType, &payload, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return entities.ReconstructTimeBasedJob(id, runAfter, eventType, json.RawMessage(payload), createdAt, updatedAt), nil
}

func payloadValue(payload json.RawMessage) any {
	if len(payload) == 0 {
		return nil
	}
	return []byte(payload)
}
