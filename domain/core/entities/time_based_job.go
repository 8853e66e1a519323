package entities

import (
	"encoding/json"
	"time"

	pkgerrors "bookkeeper-backend/pkg/errors"
)

// TimeBasedJob is a deferred unit of work. A job exists while it is pending
// and is deleted by its consumer after successful execution; the store is the
// only source of truth for "not yet run". Consumers must tolerate duplicate
// delivery: a crash between dequeue and delete re-delivers the job.
type TimeBasedJob struct {
	id           string
	runAfter     int64 // epoch seconds
	eventType    string
	eventPayload json.RawMessage
	createdAt    time.Time
	updatedAt    time.Time
}

// NewTimeBasedJob creates a pending job.
func NewTimeBasedJob(id string, runAfter int64, eventType string, payload json.RawMessage) (*TimeBasedJob, error) {
	if id == "" {
		return nil, pkgerrors.NewValidationError("job id cannot be empty")
	}
	if eventType == "" {
		return nil, pkgerrors.NewValidationError("job event type cannot be empty")
	}
	now := time.Now()
	return &TimeBasedJob{
		id:           id,
		runAfter:     runAfter,
		eventType:    eventType,
		eventPayload: append(json.RawMessage(nil), payload...),
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// ReconstructTimeBasedJob rebuilds a job from persisted state.
func ReconstructTimeBasedJob(id string, runAfter int64, eventType string, payload json.RawMessage, createdAt, updatedAt time.Time) *TimeBasedJob {
	return &TimeBasedJob{
		id:           id,
		runAfter:     runAfter,
		eventType:    eventType,
		eventPayload: payload,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (j *TimeBasedJob) ID() string                    { return j.id }
func (j *TimeBasedJob) RunAfter() int64               { return j.runAfter }
func (j *TimeBasedJob) EventType() string             { return j.eventType }
func (j *TimeBasedJob) EventPayload() json.RawMessage { return j.eventPayload }
func (j *TimeBasedJob) CreatedAt() time.Time          { return j.createdAt }
func (j *TimeBasedJob) UpdatedAt() time.Time          { return j.updatedAt }

// Due reports whether the job's scheduled time has arrived.
func (j *TimeBasedJob) Due(now int64) bool {
	return j.runAfter <= now
}

// Reschedule pushes the job to a new run-after time.
func (j *TimeBasedJob) Reschedule(runAfter int64) {
	j.runAfter = runAfter
	j.updatedAt = time.Now()
}
