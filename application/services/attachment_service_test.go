package services

import (
	"context"
	"testing"
	"time"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/domain/core/entities"
	"bookkeeper-backend/infrastructure/persistence/memory"
	pkgerrors "bookkeeper-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAttachmentFixture(t *testing.T) (*AttachmentService, *ports.Persistence) {
	t.Helper()
	persistence := memory.NewPersistence(nil)
	service := NewAttachmentService(
		persistence.Attachments,
		persistence.Jobs,
		"uploads",
		time.Hour,
		zap.NewNop(),
	)
	return service, persistence
}

func TestRequestUploadCreatesPendingAttachment(t *testing.T) {
	service, persistence := newAttachmentFixture(t)
	ctx := context.Background()

	attachment, destination, err := service.RequestUpload(ctx, "receipt.pdf", "application/pdf", 0)
	require.NoError(t, err)

	assert.Equal(t, entities.AttachmentStatusPending, attachment.Status())
	assert.Equal(t, "uploads", destination.Bucket)
	assert.Contains(t, destination.Key, attachment.ID())

	// The upload request also schedules a deferred cleanup job.
	jobs, err := persistence.Jobs.ListByQuery(ctx, ports.TimeBasedJobFilter{EventType: EventTypeAttachmentCleanup})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
}

func TestConfirmUploadFlipsStatus(t *testing.T) {
	service, persistence := newAttachmentFixture(t)
	ctx := context.Background()

	attachment, _, err := service.RequestUpload(ctx, "receipt.pdf", "application/pdf", 0)
	require.NoError(t, err)

	confirmed, err := service.ConfirmUpload(ctx, attachment.ID(), 4096)
	require.NoError(t, err)
	assert.Equal(t, entities.AttachmentStatusFinished, confirmed.Status())
	assert.Equal(t, int64(4096), confirmed.Size())

	// Round-trip through the store.
	reloaded, err := persistence.Attachments.GetByID(ctx, attachment.ID())
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, entities.AttachmentStatusFinished, reloaded.Status())
}

func TestRenamePersists(t *testing.T) {
	service, persistence := newAttachmentFixture(t)
	ctx := context.Background()

	attachment, _, err := service.RequestUpload(ctx, "receipt.pdf", "application/pdf", 0)
	require.NoError(t, err)

	require.NoError(t, service.Rename(ctx, attachment.ID(), "invoice-march.pdf"))

	reloaded, err := persistence.Attachments.GetByID(ctx, attachment.ID())
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, "invoice-march.pdf", reloaded.Name())

	assert.Error(t, service.Rename(ctx, attachment.ID(), ""))
	assert.True(t, pkgerrors.IsNotFound(service.Rename(ctx, "missing", "x.pdf")))
}

func TestConfirmUploadUnknownIDReturnsNotFound(t *testing.T) {
	service, _ := newAttachmentFixture(t)

	_, err := service.ConfirmUpload(context.Background(), "missing", 1)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestOrphanListingFollowsLinkChanges(t *testing.T) {
	service, _ := newAttachmentFixture(t)
	ctx := context.Background()

	attachment, _, err := service.RequestUpload(ctx, "receipt.pdf", "application/pdf", 0)
	require.NoError(t, err)

	// Freshly created with no link: orphaned.
	orphans, err := service.ListOrphaned(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)

	// Linking to an expense removes it from the orphan listing.
	require.NoError(t, service.AssignExpenses(ctx, attachment.ID(), []string{"exp-1"}))
	orphans, err = service.ListOrphaned(ctx)
	require.NoError(t, err)
	assert.Empty(t, orphans)

	// Unlinking restores it.
	require.NoError(t, service.Unlink(ctx, attachment.ID()))
	orphans, err = service.ListOrphaned(ctx)
	require.NoError(t, err)
	assert.Len(t, orphans, 1)
}

func TestCleanupOrphansDeletesOnlyOrphans(t *testing.T) {
	service, persistence := newAttachmentFixture(t)
	ctx := context.Background()

	orphan, _, err := service.RequestUpload(ctx, "a.pdf", "application/pdf", 0)
	require.NoError(t, err)
	linked, _, err := service.RequestUpload(ctx, "b.pdf", "application/pdf", 0)
	require.NoError(t, err)
	require.NoError(t, service.LinkToInvoice(ctx, linked.ID(), "inv-1"))

	deleted, err := service.CleanupOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	gone, err := persistence.Attachments.GetByID(ctx, orphan.ID())
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := persistence.Attachments.GetByID(ctx, linked.ID())
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestDeleteForOwnerCascades(t *testing.T) {
	service, _ := newAttachmentFixture(t)
	ctx := context.Background()

	first, _, err := service.RequestUpload(ctx, "a.pdf", "application/pdf", 0)
	require.NoError(t, err)
	second, _, err := service.RequestUpload(ctx, "b.pdf", "application/pdf", 0)
	require.NoError(t, err)
	require.NoError(t, service.LinkToInvoice(ctx, first.ID(), "inv-1"))
	require.NoError(t, service.LinkToInvoice(ctx, second.ID(), "inv-2"))

	deleted, err := service.DeleteForOwner(ctx, ports.AttachmentFilter{InvoiceID: "inv-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	remaining, err := service.List(ctx, ports.AttachmentFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, second.ID(), remaining[0].ID())
}

func TestCleanupStalePendingConsumesOnlyPending(t *testing.T) {
	service, persistence := newAttachmentFixture(t)
	ctx := context.Background()

	stale, _, err := service.RequestUpload(ctx, "stale.pdf", "application/pdf", 0)
	require.NoError(t, err)
	finished, _, err := service.RequestUpload(ctx, "done.pdf", "application/pdf", 0)
	require.NoError(t, err)
	_, err = service.ConfirmUpload(ctx, finished.ID(), 100)
	require.NoError(t, err)

	jobs, err := persistence.Jobs.ListByQuery(ctx, ports.TimeBasedJobFilter{EventType: EventTypeAttachmentCleanup})
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	for _, job := range jobs {
		require.NoError(t, service.CleanupStalePending(ctx, job))
	}

	gone, err := persistence.Attachments.GetByID(ctx, stale.ID())
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := persistence.Attachments.GetByID(ctx, finished.ID())
	require.NoError(t, err)
	assert.NotNil(t, kept)

	// Duplicate delivery of the same job is harmless.
	for _, job := range jobs {
		require.NoError(t, service.CleanupStalePending(ctx, job))
	}
}
