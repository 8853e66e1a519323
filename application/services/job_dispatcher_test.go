package services

import (
	"context"
	"testing"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/domain/core/entities"
	"bookkeeper-backend/infrastructure/persistence/memory"
	pkgerrors "bookkeeper-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newDispatcherFixture(t *testing.T, now int64) (*JobDispatcher, ports.TimeBasedJobRepository) {
	t.Helper()
	jobs := memory.NewTimeBasedJobRepository()
	dispatcher := NewJobDispatcher(jobs, zap.NewNop())
	dispatcher.now = func() int64 { return now }
	return dispatcher, jobs
}

func TestDispatchDueBoundary(t *testing.T) {
	const now = int64(1_700_000_000)
	dispatcher, jobs := newDispatcherFixture(t, now)
	ctx := context.Background()

	// runAfter == now is due; runAfter == now+1 is not.
	_, err := jobs.Create(ctx, ports.TimeBasedJobArgs{RunAfter: now, EventType: "ping"})
	require.NoError(t, err)
	_, err = jobs.Create(ctx, ports.TimeBasedJobArgs{RunAfter: now + 1, EventType: "ping"})
	require.NoError(t, err)

	var handled []int64
	dispatcher.Register("ping", func(ctx context.Context, job *entities.TimeBasedJob) error {
		handled = append(handled, job.RunAfter())
		return nil
	})

	consumed, err := dispatcher.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, consumed)
	assert.Equal(t, []int64{now}, handled)

	// The consumed job is gone; the future one is still pending.
	remaining, err := jobs.ListByQuery(ctx, ports.TimeBasedJobFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, now+1, remaining[0].RunAfter())
}

func TestRescheduledJobBecomesDue(t *testing.T) {
	const now = int64(1_700_000_000)
	dispatcher, jobs := newDispatcherFixture(t, now)
	ctx := context.Background()

	job, err := jobs.Create(ctx, ports.TimeBasedJobArgs{RunAfter: now + 3600, EventType: "ping"})
	require.NoError(t, err)

	handled := 0
	dispatcher.Register("ping", func(ctx context.Context, job *entities.TimeBasedJob) error {
		handled++
		return nil
	})

	// Still an hour out: nothing to do.
	consumed, err := dispatcher.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, consumed)

	job.Reschedule(now - 1)
	require.NoError(t, jobs.Save(ctx, job))

	consumed, err = dispatcher.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, consumed)
	assert.Equal(t, 1, handled)
}

func TestDispatchDueOrdersBySoonestFirst(t *testing.T) {
	const now = int64(1_700_000_000)
	dispatcher, jobs := newDispatcherFixture(t, now)
	ctx := context.Background()

	for _, offset := range []int64{-5, -50, -1} {
		_, err := jobs.Create(ctx, ports.TimeBasedJobArgs{RunAfter: now + offset, EventType: "ping"})
		require.NoError(t, err)
	}

	var order []int64
	dispatcher.Register("ping", func(ctx context.Context, job *entities.TimeBasedJob) error {
		order = append(order, job.RunAfter())
		return nil
	})

	_, err := dispatcher.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{now - 50, now - 5, now - 1}, order)
}

func TestFailedJobIsRedelivered(t *testing.T) {
	const now = int64(1_700_000_000)
	dispatcher, jobs := newDispatcherFixture(t, now)
	ctx := context.Background()

	_, err := jobs.Create(ctx, ports.TimeBasedJobArgs{RunAfter: now - 1, EventType: "flaky"})
	require.NoError(t, err)

	calls := 0
	dispatcher.Register("flaky", func(ctx context.Context, job *entities.TimeBasedJob) error {
		calls++
		if calls == 1 {
			return pkgerrors.NewInternalError("transient failure")
		}
		return nil
	})

	consumed, err := dispatcher.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, consumed)

	// The job survived the failure and is consumed on the next cycle.
	consumed, err = dispatcher.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, consumed)
	assert.Equal(t, 2, calls)
}

func TestUnhandledEventTypeStaysPending(t *testing.T) {
	const now = int64(1_700_000_000)
	dispatcher, jobs := newDispatcherFixture(t, now)
	ctx := context.Background()

	_, err := jobs.Create(ctx, ports.TimeBasedJobArgs{RunAfter: now - 1, EventType: "unknown"})
	require.NoError(t, err)

	consumed, err := dispatcher.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, consumed)

	remaining, err := jobs.ListDue(ctx, now)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}
