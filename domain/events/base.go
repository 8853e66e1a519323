package events

import (
	"time"
)

// DomainEvent is the base interface for all domain events.
// Events represent something that has happened in the past. Entities collect
// them while being mutated; the persistence layer drains and publishes them
// after a successful write (outbox hook).
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
}

// BaseEvent provides common event fields.
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

// Attachment events

// AttachmentLinksChanged is raised when the set of entities an attachment is
// linked to changes. The key-value backend uses it as the signal to reconcile
// link records; subscribers can use it to invalidate caches.
type AttachmentLinksChanged struct {
	BaseEvent
	AddedExpenseIDs   []string `json:"added_expense_ids"`
	RemovedExpenseIDs []string `json:"removed_expense_ids"`
	InvoiceID         string   `json:"invoice_id,omitempty"`
	InventoryItemID   string   `json:"inventory_item_id,omitempty"`
}

// NewAttachmentLinksChanged creates an AttachmentLinksChanged event.
func NewAttachmentLinksChanged(attachmentID string, added, removed []string, invoiceID, inventoryItemID string) AttachmentLinksChanged {
	return AttachmentLinksChanged{
		BaseEvent: BaseEvent{
			AggregateID: attachmentID,
			EventType:   "attachment.links_changed",
			Timestamp:   time.Now(),
		},
		AddedExpenseIDs:   added,
		RemovedExpenseIDs: removed,
		InvoiceID:         invoiceID,
		InventoryItemID:   inventoryItemID,
	}
}

// AttachmentFinished is raised when a pending upload is confirmed.
type AttachmentFinished struct {
	BaseEvent
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// NewAttachmentFinished creates an AttachmentFinished event.
func NewAttachmentFinished(attachmentID, name string, size int64) AttachmentFinished {
	return AttachmentFinished{
		BaseEvent: BaseEvent{
			AggregateID: attachmentID,
			EventType:   "attachment.finished",
			Timestamp:   time.Now(),
		},
		Name: name,
		Size: size,
	}
}

// Catalog events

// CatalogNodeMoved is raised when an inventory catalog node is re-parented.
type CatalogNodeMoved struct {
	BaseEvent
	OldParentID string `json:"old_parent_id,omitempty"`
	NewParentID string `json:"new_parent_id,omitempty"`
}

// NewCatalogNodeMoved creates a CatalogNodeMoved event.
func NewCatalogNodeMoved(nodeID, oldParent, newParent string) CatalogNodeMoved {
	return CatalogNodeMoved{
		BaseEvent: BaseEvent{
			AggregateID: nodeID,
			EventType:   "catalog.node_moved",
			Timestamp:   time.Now(),
		},
		OldParentID: oldParent,
		NewParentID: newParent,
	}
}
