package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/domain/core/entities"
	pkgerrors "bookkeeper-backend/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventTypeAttachmentCleanup is the job discriminator for deferred cleanup of
// stale pending attachments.
const EventTypeAttachmentCleanup = "attachment.cleanup"

// UploadDestination is the opaque reference a client uploads bytes to. The
// byte transport itself is an external collaborator.
type UploadDestination struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// attachmentCleanupPayload is the job payload for deferred cleanup.
type attachmentCleanupPayload struct {
	AttachmentID string `json:"attachment_id"`
}

// AttachmentService owns the attachment lifecycle: the two-phase upload
// protocol, linking, and orphan cleanup.
type AttachmentService struct {
	attachments ports.AttachmentRepository
	jobs        ports.TimeBasedJobRepository
	logger      *zap.Logger
	bucket      string
	pendingTTL  time.Duration
}

// NewAttachmentService creates an attachment service. bucket names the target
// object store; pendingTTL bounds how long an unconfirmed upload survives.
func NewAttachmentService(
	attachments ports.AttachmentRepository,
	jobs ports.TimeBasedJobRepository,
	bucket string,
	pendingTTL time.Duration,
	logger *zap.Logger,
) *AttachmentService {
	if pendingTTL <= 0 {
		pendingTTL = 24 * time.Hour
	}
	return &AttachmentService{
		attachments: attachments,
		jobs:        jobs,
		logger:      logger,
		bucket:      bucket,
		pendingTTL:  pendingTTL,
	}
}

// RequestUpload is phase one of the upload protocol: it persists a pending
// attachment and returns the destination the client should transfer bytes to.
// A deferred cleanup job is scheduled so uploads that are never confirmed do
// not linger.
func (s *AttachmentService) RequestUpload(ctx context.Context, name, mimeType string, size int64) (*entities.Attachment, UploadDestination, error) {
	id := uuid.NewString()
	destination := UploadDestination{
		Bucket: s.bucket,
		Key:    fmt.Sprintf("%s/%s", id, name),
	}

	attachment, err := s.attachments.CreateWithID(ctx, id, ports.AttachmentArgs{
		Name:       name,
		MimeType:   mimeType,
		Size:       size,
		Bucket:     destination.Bucket,
		StorageKey: destination.Key,
	})
	if err != nil {
		return nil, UploadDestination{}, err
	}

	payload, _ := json.Marshal(attachmentCleanupPayload{AttachmentID: id})
	if _, err := s.jobs.Create(ctx, ports.TimeBasedJobArgs{
		RunAfter:     time.Now().Add(s.pendingTTL).Unix(),
		EventType:    EventTypeAttachmentCleanup,
		EventPayload: payload,
	}); err != nil {
		// The attachment is usable without the cleanup job; log and move on.
		s.logger.Warn("failed to schedule attachment cleanup job",
			zap.String("attachmentID", id),
			zap.Error(err),
		)
	}

	return attachment, destination, nil
}

// ConfirmUpload is phase two: the client reports the byte transfer finished.
func (s *AttachmentService) ConfirmUpload(ctx context.Context, id string, size int64) (*entities.Attachment, error) {
	attachment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := attachment.Finish(size); err != nil {
		return nil, err
	}
	if err := s.attachments.Save(ctx, attachment); err != nil {
		return nil, err
	}
	return attachment, nil
}

// Get returns an attachment or a NotFound error.
func (s *AttachmentService) Get(ctx context.Context, id string) (*entities.Attachment, error) {
	return s.load(ctx, id)
}

// LinkToInvoice attaches the file to an invoice.
func (s *AttachmentService) LinkToInvoice(ctx context.Context, id, invoiceID string) error {
	return s.mutate(ctx, id, func(a *entities.Attachment) error {
		return a.LinkInvoice(invoiceID)
	})
}

// LinkToInventoryItem attaches the file to an inventory item.
func (s *AttachmentService) LinkToInventoryItem(ctx context.Context, id, itemID string) error {
	return s.mutate(ctx, id, func(a *entities.Attachment) error {
		return a.LinkInventoryItem(itemID)
	})
}

// Rename changes the attachment's display name.
func (s *AttachmentService) Rename(ctx context.Context, id, name string) error {
	return s.mutate(ctx, id, func(a *entities.Attachment) error {
		return a.Rename(name)
	})
}

// AssignExpenses replaces the set of expenses the attachment documents.
func (s *AttachmentService) AssignExpenses(ctx context.Context, id string, expenseIDs []string) error {
	return s.mutate(ctx, id, func(a *entities.Attachment) error {
		a.AssignExpenses(expenseIDs)
		return nil
	})
}

// Unlink detaches the file from everything, making it an orphan.
func (s *AttachmentService) Unlink(ctx context.Context, id string) error {
	return s.mutate(ctx, id, func(a *entities.Attachment) error {
		a.Unlink()
		return nil
	})
}

// List queries attachments.
func (s *AttachmentService) List(ctx context.Context, filter ports.AttachmentFilter) ([]*entities.Attachment, error) {
	return s.attachments.ListByQuery(ctx, filter)
}

// Delete removes an attachment. Idempotent.
func (s *AttachmentService) Delete(ctx context.Context, id string) error {
	return s.attachments.Delete(ctx, id)
}

// ListOrphaned returns attachments with no link of any kind.
func (s *AttachmentService) ListOrphaned(ctx context.Context) ([]*entities.Attachment, error) {
	return s.attachments.ListByQuery(ctx, ports.AttachmentFilter{OrphanedOnly: true})
}

// CleanupOrphans bulk-deletes orphaned attachments and reports how many were
// removed.
func (s *AttachmentService) CleanupOrphans(ctx context.Context) (int, error) {
	orphans, err := s.ListOrphaned(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, attachment := range orphans {
		if err := s.attachments.Delete(ctx, attachment.ID()); err != nil {
			return deleted, err
		}
		deleted++
	}
	if deleted > 0 {
		s.logger.Info("cleaned up orphaned attachments", zap.Int("count", deleted))
	}
	return deleted, nil
}

// DeleteForOwner cascades an owner deletion: every attachment linked to the
// given invoice, inventory item, or expense is unlinked or removed.
func (s *AttachmentService) DeleteForOwner(ctx context.Context, filter ports.AttachmentFilter) (int, error) {
	linked, err := s.attachments.ListByQuery(ctx, filter)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, attachment := range linked {
		if err := s.attachments.Delete(ctx, attachment.ID()); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// CleanupStalePending is the consumer for EventTypeAttachmentCleanup jobs: a
// pending attachment whose upload was never confirmed is deleted. Finished
// attachments are left alone. Safe under duplicate delivery.
func (s *AttachmentService) CleanupStalePending(ctx context.Context, job *entities.TimeBasedJob) error {
	var payload attachmentCleanupPayload
	if err := json.Unmarshal(job.EventPayload(), &payload); err != nil {
		return pkgerrors.NewValidationError("malformed attachment cleanup payload").WithCause(err)
	}

	attachment, err := s.attachments.GetByID(ctx, payload.AttachmentID)
	if err != nil {
		return err
	}
	if attachment == nil || attachment.Status() != entities.AttachmentStatusPending {
		return nil
	}

	s.logger.Info("deleting stale pending attachment", zap.String("attachmentID", payload.AttachmentID))
	return s.attachments.Delete(ctx, payload.AttachmentID)
}

func (s *AttachmentService) load(ctx context.Context, id string) (*entities.Attachment, error) {
	attachment, err := s.attachments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if attachment == nil {
		return nil, pkgerrors.NewNotFoundError("attachment", id)
	}
	return attachment, nil
}

func (s *AttachmentService) mutate(ctx context.Context, id string, fn func(*entities.Attachment) error) error {
	attachment, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(attachment); err != nil {
		return err
	}
	return s.attachments.Save(ctx, attachment)
}
