package dynamodb

import (
	"encoding/json"
	"testing"
	"time"

	"bookkeeper-backend/domain/core/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachmentItemMapping_RoundTrip(t *testing.T) {
	createdAt := time.Date(2026, 3, 14, 9, 30, 0, 123456789, time.UTC)
	original := entities.ReconstructAttachment(
		"a1", "Invoice Scan.pdf", "application/pdf", 2048,
		"uploads", "2026/03/a1.pdf",
		entities.AttachmentStatusFinished,
		"inv-7", "",
		nil,
		createdAt, createdAt,
	)

	item := attachmentToItem(original)
	assert.Equal(t, "ATTACHMENT#a1", item.PK)
	assert.Equal(t, "invoice scan.pdf", item.GSI1SK)
	assert.Equal(t, "LINK#INVOICE#inv-7", item.GSI2PK)

	restored, err := itemToAttachment(item)
	require.NoError(t, err)
	assert.Equal(t, original.ID(), restored.ID())
	assert.Equal(t, original.Name(), restored.Name())
	assert.Equal(t, original.Status(), restored.Status())
	assert.Equal(t, original.InvoiceID(), restored.InvoiceID())
	assert.True(t, original.CreatedAt().Equal(restored.CreatedAt()))
}

func TestAttachmentItemMapping_OrphanGetsSentinelPartition(t *testing.T) {
	now := time.Now()
	orphan := entities.ReconstructAttachment(
		"a2", "loose.png", "image/png", 10,
		"uploads", "a2.png",
		entities.AttachmentStatusPending,
		"", "", nil,
		now, now,
	)

	item := attachmentToItem(orphan)
	assert.Equal(t, "LINK#ORPHANED", item.GSI2PK)
}

func TestAttachmentItemMapping_ExpenseLinkedIsNotOrphaned(t *testing.T) {
	now := time.Now()
	a := entities.ReconstructAttachment(
		"a3", "receipt.jpg", "image/jpeg", 10,
		"uploads", "a3.jpg",
		entities.AttachmentStatusFinished,
		"", "", []string{"e1", "e2"},
		now, now,
	)

	item := attachmentToItem(a)
	assert.Empty(t, item.GSI2PK, "expense links are indexed through link records, not the main record")
	assert.Equal(t, []string{"e1", "e2"}, item.ExpenseIDs)
}

func TestJobItemMapping_RoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	payload := json.RawMessage(`{"attachmentId":"a1"}`)
	original := entities.ReconstructTimeBasedJob("j1", 1767322800, "attachment.cleanup", payload, now, now)

	item := jobToItem(original)
	assert.Equal(t, "00000000001767322800", item.GSI1SK)

	restored, err := itemToJob(item)
	require.NoError(t, err)
	assert.Equal(t, original.RunAfter(), restored.RunAfter())
	assert.Equal(t, original.EventType(), restored.EventType())
	assert.JSONEq(t, string(payload), string(restored.EventPayload()))
}
