// Package ports defines the interfaces the application layer depends on.
// Domain logic talks to storage exclusively through these; no storage client
// types appear outside a backend implementation.
package ports

import (
	"context"
	"encoding/json"

	"bookkeeper-backend/domain/core/entities"
)

// Repository is the uniform operation set every backend implements for every
// entity kind. T is the domain entity, A the creation arguments, F the
// entity's filter shape.
//
// Contracts shared by all implementations:
//   - Create allocates a globally unique id and persists a fresh entity.
//   - CreateWithID persists under a caller-supplied id and fails with a
//     Conflict error when the id already exists.
//   - GetByID returns (nil, nil) when the id is absent; absence is not an
//     error.
//   - Save is a full upsert of the entity's current state and triggers the
//     backend's post-save reconciliation (link records, domain events).
//   - Delete is idempotent; deleting an absent id succeeds.
//   - ListByQuery ordering is backend-defined but stable for a fixed filter
//     and unchanged data.
type Repository[T any, A any, F any] interface {
	Create(ctx context.Context, args A) (T, error)
	CreateWithID(ctx context.Context, id string, args A) (T, error)
	GetByID(ctx context.Context, id string) (T, error)
	Save(ctx context.Context, entity T) error
	Delete(ctx context.Context, id string) error
	ListByQuery(ctx context.Context, filter F) ([]T, error)
}

// AttachmentArgs are the creation arguments for attachments.
type AttachmentArgs struct {
	Name       string
	MimeType   string
	Size       int64
	Bucket     string
	StorageKey string
}

// AttachmentFilter selects attachments. Zero-valued fields are ignored.
// Search is matched against the name: the relational backend matches
// substrings, the key-value backend matches prefixes (a documented
// divergence, see DESIGN.md).
type AttachmentFilter struct {
	Search          string
	InvoiceID       string
	InventoryItemID string
	ExpenseID       string
	OrphanedOnly    bool
	Status          entities.AttachmentStatus
	Skip            int
	Limit           int
}

// AttachmentRepository persists attachments.
type AttachmentRepository = Repository[*entities.Attachment, AttachmentArgs, AttachmentFilter]

// CatalogArgs are the creation arguments for inventory catalog nodes.
type CatalogArgs struct {
	Name        string
	Description string
	ParentID    string
}

// CatalogFilter selects catalog nodes.
type CatalogFilter struct {
	Search   string
	ParentID string
	RootOnly bool
	Skip     int
	Limit    int
}

// InventoryLocationRepository persists inventory locations.
type InventoryLocationRepository = Repository[*entities.InventoryLocation, CatalogArgs, CatalogFilter]

// InventoryTypeRepository persists inventory types.
type InventoryTypeRepository = Repository[*entities.InventoryType, CatalogArgs, CatalogFilter]

// InventoryItemArgs are the creation arguments for inventory items.
type InventoryItemArgs struct {
	Name       string
	Quantity   int64
	TypeID     string
	LocationID string
}

// InventoryItemFilter selects inventory items.
type InventoryItemFilter struct {
	Search     string
	TypeID     string
	LocationID string
	Skip       int
	Limit      int
}

// InventoryItemRepository persists inventory items.
type InventoryItemRepository = Repository[*entities.InventoryItem, InventoryItemArgs, InventoryItemFilter]

// TimeBasedJobArgs are the creation arguments for deferred jobs.
type TimeBasedJobArgs struct {
	RunAfter     int64
	EventType    string
	EventPayload json.RawMessage
}

// TimeBasedJobFilter selects jobs.
type TimeBasedJobFilter struct {
	EventType string
	DueBefore int64 // inclusive upper bound on RunAfter; 0 means unbounded
	Limit     int
}

// TimeBasedJobRepository persists deferred jobs and serves as the delay
// queue. ListDue returns every job with RunAfter <= now, ordered ascending by
// due time. Consumption is delete-on-success; re-delivery after a crash
// between dequeue and delete is expected.
type TimeBasedJobRepository interface {
	Repository[*entities.TimeBasedJob, TimeBasedJobArgs, TimeBasedJobFilter]
	ListDue(ctx context.Context, now int64) ([]*entities.TimeBasedJob, error)
}

// SequenceStore holds the last issued document number per sequence.
//
// Last returns the empty string for a sequence that never issued a number.
// CompareAndSwap persists next only when the stored value still equals last,
// and returns a Conflict error otherwise. This is the single mandatory
// concurrency control of the persistence core: two concurrent number
// requests must never both win the same swap.
type SequenceStore interface {
	Last(ctx context.Context, sequence string) (string, error)
	CompareAndSwap(ctx context.Context, sequence, last, next string) error
}

// Persistence bundles one backend's repository implementations. The factory
// constructs exactly one of these at boot from the configured database type.
type Persistence struct {
	Attachments        AttachmentRepository
	InventoryLocations InventoryLocationRepository
	InventoryTypes     InventoryTypeRepository
	InventoryItems     InventoryItemRepository
	Jobs               TimeBasedJobRepository
	Sequences          SequenceStore
}
