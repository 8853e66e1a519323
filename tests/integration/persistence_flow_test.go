package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/application/services"
	"bookkeeper-backend/domain/core/entities"
	"bookkeeper-backend/infrastructure/persistence/memory"
	pkgerrors "bookkeeper-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAttachmentService(t *testing.T) (*services.AttachmentService, *ports.Persistence) {
	t.Helper()
	repos := memory.NewPersistence(nil)
	svc := services.NewAttachmentService(
		repos.Attachments,
		repos.Jobs,
		"attachments-bucket",
		time.Hour,
		zap.NewNop(),
	)
	return svc, repos
}

func TestAttachmentUploadLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, repos := newAttachmentService(t)

	attachment, dest, err := svc.RequestUpload(ctx, "invoice.pdf", "application/pdf", 2048)
	require.NoError(t, err)
	assert.Equal(t, entities.AttachmentStatusPending, attachment.Status())
	assert.Equal(t, "attachments-bucket", dest.Bucket)
	assert.Equal(t, fmt.Sprintf("%s/invoice.pdf", attachment.ID()), dest.Key)

	// Upload requests schedule a deferred cleanup job.
	jobs, err := repos.Jobs.ListByQuery(ctx, ports.TimeBasedJobFilter{
		EventType: services.EventTypeAttachmentCleanup,
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Greater(t, jobs[0].RunAfter(), time.Now().Unix())

	confirmed, err := svc.ConfirmUpload(ctx, attachment.ID(), 4096)
	require.NoError(t, err)
	assert.Equal(t, entities.AttachmentStatusFinished, confirmed.Status())
	assert.Equal(t, int64(4096), confirmed.Size())

	// Confirming twice is rejected.
	_, err = svc.ConfirmUpload(ctx, attachment.ID(), 4096)
	require.Error(t, err)
}

func TestAttachmentLinkingAndOrphanCleanup(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAttachmentService(t)

	attachment, _, err := svc.RequestUpload(ctx, "receipt.png", "image/png", 100)
	require.NoError(t, err)
	_, err = svc.ConfirmUpload(ctx, attachment.ID(), 100)
	require.NoError(t, err)

	invoiceID := "6f1cf12e-68a8-4f7e-a09a-cf9d0262f78b"
	require.NoError(t, svc.LinkToInvoice(ctx, attachment.ID(), invoiceID))

	linked, err := svc.List(ctx, ports.AttachmentFilter{InvoiceID: invoiceID})
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, attachment.ID(), linked[0].ID())

	// Assigning expenses replaces the invoice link; the two shapes are
	// mutually exclusive.
	require.NoError(t, svc.AssignExpenses(ctx, attachment.ID(), []string{"e1"}))
	relinked, err := svc.Get(ctx, attachment.ID())
	require.NoError(t, err)
	assert.Empty(t, relinked.InvoiceID())
	assert.Equal(t, []string{"e1"}, relinked.ExpenseIDs())

	require.NoError(t, svc.Unlink(ctx, attachment.ID()))

	orphans, err := svc.ListOrphaned(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)

	deleted, err := svc.CleanupOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = svc.Get(ctx, attachment.ID())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestAttachmentExpenseAssignment(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAttachmentService(t)

	attachment, _, err := svc.RequestUpload(ctx, "lunch.jpg", "image/jpeg", 50)
	require.NoError(t, err)
	_, err = svc.ConfirmUpload(ctx, attachment.ID(), 50)
	require.NoError(t, err)

	require.NoError(t, svc.AssignExpenses(ctx, attachment.ID(), []string{"exp-1", "exp-2"}))

	byExpense, err := svc.List(ctx, ports.AttachmentFilter{ExpenseID: "exp-2"})
	require.NoError(t, err)
	require.Len(t, byExpense, 1)

	// Reassignment replaces the previous set.
	require.NoError(t, svc.AssignExpenses(ctx, attachment.ID(), []string{"exp-3"}))

	byExpense, err = svc.List(ctx, ports.AttachmentFilter{ExpenseID: "exp-2"})
	require.NoError(t, err)
	assert.Empty(t, byExpense)

	byExpense, err = svc.List(ctx, ports.AttachmentFilter{ExpenseID: "exp-3"})
	require.NoError(t, err)
	require.Len(t, byExpense, 1)
}

func TestDispatcherCleansStalePendingUpload(t *testing.T) {
	ctx := context.Background()
	svc, repos := newAttachmentService(t)

	stale, _, err := svc.RequestUpload(ctx, "never-confirmed.bin", "application/octet-stream", 10)
	require.NoError(t, err)

	// The scheduled cleanup job is an hour out; plant one that is already due.
	payload, err := json.Marshal(map[string]string{"attachment_id": stale.ID()})
	require.NoError(t, err)
	_, err = repos.Jobs.Create(ctx, ports.TimeBasedJobArgs{
		RunAfter:     time.Now().Add(-time.Minute).Unix(),
		EventType:    services.EventTypeAttachmentCleanup,
		EventPayload: payload,
	})
	require.NoError(t, err)

	dispatcher := services.NewJobDispatcher(repos.Jobs, zap.NewNop())
	dispatcher.Register(services.EventTypeAttachmentCleanup, svc.CleanupStalePending)

	consumed, err := dispatcher.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, consumed)

	_, err = svc.Get(ctx, stale.ID())
	assert.True(t, pkgerrors.IsNotFound(err))

	// The future-dated job from RequestUpload is untouched.
	remaining, err := repos.Jobs.ListByQuery(ctx, ports.TimeBasedJobFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestNumberingSequencesOverMemoryStore(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewPersistence(nil)
	svc := services.NewNumberingService(repos.Sequences, nil, zap.NewNop())

	year := time.Now().Format("2006")

	first, err := svc.NextNumber(ctx, services.SequenceInvoice)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("INV-%s-0001", year), first)

	// Peek previews without consuming.
	peeked, err := svc.PeekNumber(ctx, services.SequenceInvoice)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("INV-%s-0002", year), peeked)

	second, err := svc.NextNumber(ctx, services.SequenceInvoice)
	require.NoError(t, err)
	assert.Equal(t, peeked, second)

	// Independent sequences do not share counters.
	customer, err := svc.NextNumber(ctx, services.SequenceCustomer)
	require.NoError(t, err)
	assert.Equal(t, "CUS-00001", customer)

	_, err = svc.NextNumber(ctx, "no-such-sequence")
	assert.True(t, pkgerrors.IsValidation(err))
}
