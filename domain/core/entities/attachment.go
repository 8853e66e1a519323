package entities

import (
	"sort"
	"time"

	"bookkeeper-backend/domain/events"
	pkgerrors "bookkeeper-backend/pkg/errors"
)

// AttachmentStatus represents the upload state of an attachment.
type AttachmentStatus string

const (
	// AttachmentStatusPending means the upload was requested but the bytes
	// have not been confirmed yet.
	AttachmentStatusPending AttachmentStatus = "pending"
	// AttachmentStatusFinished means the client confirmed the byte transfer.
	AttachmentStatusFinished AttachmentStatus = "finished"
)

// Attachment is file metadata linked to at most one business document.
// An attachment is linked to exactly one of {invoice, inventory item} or to a
// set of expenses. An attachment with no link of any kind is orphaned and
// eligible for bulk cleanup.
type Attachment struct {
	id              string
	name            string
	mimeType        string
	size            int64
	bucket          string
	storageKey      string
	status          AttachmentStatus
	invoiceID       string
	inventoryItemID string
	expenseIDs      []string
	createdAt       time.Time
	updatedAt       time.Time

	events []events.DomainEvent
}

// NewAttachment creates a pending attachment. The storage layer allocates the
// id; entities never generate their own.
func NewAttachment(id, name, mimeType string, size int64, bucket, storageKey string) (*Attachment, error) {
	if id == "" {
		return nil, pkgerrors.NewValidationError("attachment id cannot be empty")
	}
	if name == "" {
		return nil, pkgerrors.NewValidationError("attachment name cannot be empty")
	}
	now := time.Now()
	return &Attachment{
		id:         id,
		name:       name,
		mimeType:   mimeType,
		size:       size,
		bucket:     bucket,
		storageKey: storageKey,
		status:     AttachmentStatusPending,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// ReconstructAttachment rebuilds an attachment from persisted state. Used only
// by repository implementations at mapping time.
func ReconstructAttachment(
	id, name, mimeType string,
	size int64,
	bucket, storageKey string,
	status AttachmentStatus,
	invoiceID, inventoryItemID string,
	expenseIDs []string,
	createdAt, updatedAt time.Time,
) *Attachment {
	ids := append([]string(nil), expenseIDs...)
	sort.Strings(ids)
	return &Attachment{
		id:              id,
		name:            name,
		mimeType:        mimeType,
		size:            size,
		bucket:          bucket,
		storageKey:      storageKey,
		status:          status,
		invoiceID:       invoiceID,
		inventoryItemID: inventoryItemID,
		expenseIDs:      ids,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

// Getters

func (a *Attachment) ID() string               { return a.id }
func (a *Attachment) Name() string             { return a.name }
func (a *Attachment) MimeType() string         { return a.mimeType }
func (a *Attachment) Size() int64              { return a.size }
func (a *Attachment) Bucket() string           { return a.bucket }
func (a *Attachment) StorageKey() string       { return a.storageKey }
func (a *Attachment) Status() AttachmentStatus { return a.status }
func (a *Attachment) InvoiceID() string        { return a.invoiceID }
func (a *Attachment) InventoryItemID() string  { return a.inventoryItemID }
func (a *Attachment) CreatedAt() time.Time     { return a.createdAt }
func (a *Attachment) UpdatedAt() time.Time     { return a.updatedAt }

// ExpenseIDs returns a copy of the linked expense ids, sorted.
func (a *Attachment) ExpenseIDs() []string {
	return append([]string(nil), a.expenseIDs...)
}

// Orphaned reports whether the attachment has no link of any kind.
func (a *Attachment) Orphaned() bool {
	return a.invoiceID == "" && a.inventoryItemID == "" && len(a.expenseIDs) == 0
}

// Finish confirms the byte transfer and flips the status to finished.
func (a *Attachment) Finish(size int64) error {
	if a.status == AttachmentStatusFinished {
		return pkgerrors.NewValidationError("attachment is already finished")
	}
	if size > 0 {
		a.size = size
	}
	a.status = AttachmentStatusFinished
	a.touch()
	a.record(events.NewAttachmentFinished(a.id, a.name, a.size))
	return nil
}

// Rename updates the display name.
func (a *Attachment) Rename(name string) error {
	if name == "" {
		return pkgerrors.NewValidationError("attachment name cannot be empty")
	}
	a.name = name
	a.touch()
	return nil
}

// LinkInvoice attaches the file to an invoice, replacing any existing link.
func (a *Attachment) LinkInvoice(invoiceID string) error {
	if invoiceID == "" {
		return pkgerrors.NewValidationError("invoice id cannot be empty")
	}
	removed := a.clearLinks()
	a.invoiceID = invoiceID
	a.touch()
	a.record(events.NewAttachmentLinksChanged(a.id, nil, removed, a.invoiceID, ""))
	return nil
}

// LinkInventoryItem attaches the file to an inventory item, replacing any
// existing link.
func (a *Attachment) LinkInventoryItem(itemID string) error {
	if itemID == "" {
		return pkgerrors.NewValidationError("inventory item id cannot be empty")
	}
	removed := a.clearLinks()
	a.inventoryItemID = itemID
	a.touch()
	a.record(events.NewAttachmentLinksChanged(a.id, nil, removed, "", a.inventoryItemID))
	return nil
}

// AssignExpenses replaces the linked expense set. Assigning expenses clears
// any invoice or inventory link; the two link shapes are mutually exclusive.
func (a *Attachment) AssignExpenses(expenseIDs []string) {
	next := uniqueSorted(expenseIDs)
	added, removed := diffIDs(a.expenseIDs, next)

	a.invoiceID = ""
	a.inventoryItemID = ""
	a.expenseIDs = next
	a.touch()
	if len(added) > 0 || len(removed) > 0 {
		a.record(events.NewAttachmentLinksChanged(a.id, added, removed, "", ""))
	}
}

// Unlink removes every link, turning the attachment into an orphan.
func (a *Attachment) Unlink() {
	removed := a.clearLinks()
	a.touch()
	a.record(events.NewAttachmentLinksChanged(a.id, nil, removed, "", ""))
}

// DrainEvents returns accumulated domain events and clears them.
func (a *Attachment) DrainEvents() []events.DomainEvent {
	drained := a.events
	a.events = nil
	return drained
}

func (a *Attachment) clearLinks() (removedExpenses []string) {
	removedExpenses = a.expenseIDs
	a.invoiceID = ""
	a.inventoryItemID = ""
	a.expenseIDs = nil
	return removedExpenses
}

func (a *Attachment) touch() {
	a.updatedAt = time.Now()
}

func (a *Attachment) record(event events.DomainEvent) {
	a.events = append(a.events, event)
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// diffIDs computes the additions and removals needed to turn current into
// next. Both slices must be sorted.
func diffIDs(current, next []string) (added, removed []string) {
	i, j := 0, 0
	for i < len(current) && j < len(next) {
		switch {
		case current[i] == next[j]:
			i++
			j++
		case current[i] < next[j]:
			removed = append(removed, current[i])
			i++
		default:
			added = append(added, next[j])
			j++
		}
	}
	removed = append(removed, current[i:]...)
	added = append(added, next[j:]...)
	return added, removed
}
