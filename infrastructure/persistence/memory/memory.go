// Package memory implements the repository ports over in-process maps.
// It backs service and integration tests and serves as the reference for the
// contract semantics the real backends must match.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/domain/core/entities"
	"bookkeeper-backend/domain/events"
	pkgerrors "bookkeeper-backend/pkg/errors"

	"github.com/google/uuid"
)

// NewPersistence builds a complete in-memory backend.
func NewPersistence(publisher ports.EventPublisher) *ports.Persistence {
	if publisher == nil {
		publisher = ports.NoopEventPublisher{}
	}
	return &ports.Persistence{
		Attachments:        NewAttachmentRepository(publisher),
		InventoryLocations: NewInventoryLocationRepository(publisher),
		InventoryTypes:     NewInventoryTypeRepository(publisher),
		InventoryItems:     NewInventoryItemRepository(),
		Jobs:               NewTimeBasedJobRepository(),
		Sequences:          NewSequenceStore(),
	}
}

// ----------------------------------------------------------------------------
// Attachments
// ----------------------------------------------------------------------------

// AttachmentRepository is the in-memory attachment store.
type AttachmentRepository struct {
	mu        sync.RWMutex
	items     map[string]*entities.Attachment
	publisher ports.EventPublisher
}

// NewAttachmentRepository creates an empty attachment repository.
func NewAttachmentRepository(publisher ports.EventPublisher) *AttachmentRepository {
	return &AttachmentRepository{
		items:     make(map[string]*entities.Attachment),
		publisher: publisher,
	}
}

func snapshotAttachment(a *entities.Attachment) *entities.Attachment {
	return entities.ReconstructAttachment(
		a.ID(), a.Name(), a.MimeType(), a.Size(), a.Bucket(), a.StorageKey(),
		a.Status(), a.InvoiceID(), a.InventoryItemID(), a.ExpenseIDs(),
		a.CreatedAt(), a.UpdatedAt(),
	)
}

// Create allocates an id and persists a fresh pending attachment.
func (r *AttachmentRepository) Create(ctx context.Context, args ports.AttachmentArgs) (*entities.Attachment, error) {
	return r.CreateWithID(ctx, uuid.NewString(), args)
}

// CreateWithID persists an attachment under a caller-supplied id.
func (r *AttachmentRepository) CreateWithID(ctx context.Context, id string, args ports.AttachmentArgs) (*entities.Attachment, error) {
	attachment, err := entities.NewAttachment(id, args.Name, args.MimeType, args.Size, args.Bucket, args.StorageKey)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, exists := r.items[id]; exists {
		r.mu.Unlock()
		return nil, pkgerrors.NewConflictError("attachment '" + id + "' already exists")
	}
	r.items[id] = snapshotAttachment(attachment)
	r.mu.Unlock()

	return attachment, nil
}

// GetByID returns nil, nil when absent.
func (r *AttachmentRepository) GetByID(ctx context.Context, id string) (*entities.Attachment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return snapshotAttachment(a), nil
}

// Save upserts the attachment and publishes its drained events.
func (r *AttachmentRepository) Save(ctx context.Context, attachment *entities.Attachment) error {
	r.mu.Lock()
	r.items[attachment.ID()] = snapshotAttachment(attachment)
	r.mu.Unlock()

	for _, event := range attachment.DrainEvents() {
		if err := r.publisher.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the attachment; deleting an absent id is a no-op.
func (r *AttachmentRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.items, id)
	r.mu.Unlock()
	return nil
}

// ListByQuery filters attachments; results are ordered by creation time then
// id so pagination is deterministic.
func (r *AttachmentRepository) ListByQuery(ctx context.Context, filter ports.AttachmentFilter) ([]*entities.Attachment, error) {
	r.mu.RLock()
	matched := make([]*entities.Attachment, 0)
	for _, a := range r.items {
		if matchesAttachment(a, filter) {
			matched = append(matched, snapshotAttachment(a))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt().Equal(matched[j].CreatedAt()) {
			return matched[i].CreatedAt().Before(matched[j].CreatedAt())
		}
		return matched[i].ID() < matched[j].ID()
	})
	return paginate(matched, filter.Skip, filter.Limit), nil
}

func matchesAttachment(a *entities.Attachment, filter ports.AttachmentFilter) bool {
	if filter.Search != "" && !strings.Contains(strings.ToLower(a.Name()), strings.ToLower(filter.Search)) {
		return false
	}
	if filter.InvoiceID != "" && a.InvoiceID() != filter.InvoiceID {
		return false
	}
	if filter.InventoryItemID != "" && a.InventoryItemID() != filter.InventoryItemID {
		return false
	}
	if filter.ExpenseID != "" && !containsID(a.ExpenseIDs(), filter.ExpenseID) {
		return false
	}
	if filter.OrphanedOnly && !a.Orphaned() {
		return false
	}
	if filter.Status != "" && a.Status() != filter.Status {
		return false
	}
	return true
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, skip, limit int) []T {
	if skip > 0 {
		if skip >= len(items) {
			return []T{}
		}
		items = items[skip:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ----------------------------------------------------------------------------
// Catalog nodes
// ----------------------------------------------------------------------------

// catalogRepository is the shared implementation behind the location and type
// repositories.
type catalogRepository[T any] struct {
	mu        sync.RWMutex
	items     map[string]T
	publisher ports.EventPublisher
	build     func(id string, args ports.CatalogArgs) (T, error)
	snapshot  func(T) T
	identity  func(T) catalogIdentity
	drain     func(T) []events.DomainEvent
}

type catalogIdentity struct {
	id        string
	name      string
	parentID  string
	createdAt int64
}

func (r *catalogRepository[T]) Create(ctx context.Context, args ports.CatalogArgs) (T, error) {
	return r.CreateWithID(ctx, uuid.NewString(), args)
}

func (r *catalogRepository[T]) CreateWithID(ctx context.Context, id string, args ports.CatalogArgs) (T, error) {
	var zero T
	node, err := r.build(id, args)
	if err != nil {
		return zero, err
	}

	r.mu.Lock()
	if _, exists := r.items[id]; exists {
		r.mu.Unlock()
		return zero, pkgerrors.NewConflictError("catalog node '" + id + "' already exists")
	}
	r.items[id] = r.snapshot(node)
	r.mu.Unlock()

	return node, nil
}

func (r *catalogRepository[T]) GetByID(ctx context.Context, id string) (T, error) {
	var zero T
	r.mu.RLock()
	defer r.mu.RUnlock()
	node, ok := r.items[id]
	if !ok {
		return zero, nil
	}
	return r.snapshot(node), nil
}

func (r *catalogRepository[T]) Save(ctx context.Context, node T) error {
	r.mu.Lock()
	r.items[r.identity(node).id] = r.snapshot(node)
	r.mu.Unlock()

	for _, event := range r.drain(node) {
		if err := r.publisher.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (r *catalogRepository[T]) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.items, id)
	r.mu.Unlock()
	return nil
}

func (r *catalogRepository[T]) ListByQuery(ctx context.Context, filter ports.CatalogFilter) ([]T, error) {
	r.mu.RLock()
	matched := make([]T, 0)
	for _, node := range r.items {
		ident := r.identity(node)
		if filter.Search != "" && !strings.Contains(strings.ToLower(ident.name), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.ParentID != "" && ident.parentID != filter.ParentID {
			continue
		}
		if filter.RootOnly && ident.parentID != "" {
			continue
		}
		matched = append(matched, r.snapshot(node))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := r.identity(matched[i]), r.identity(matched[j])
		if a.name != b.name {
			return a.name < b.name
		}
		return a.id < b.id
	})
	return paginate(matched, filter.Skip, filter.Limit), nil
}

// NewInventoryLocationRepository creates an empty location repository.
func NewInventoryLocationRepository(publisher ports.EventPublisher) ports.InventoryLocationRepository {
	return &catalogRepository[*entities.InventoryLocation]{
		items:     make(map[string]*entities.InventoryLocation),
		publisher: publisher,
		build: func(id string, args ports.CatalogArgs) (*entities.InventoryLocation, error) {
			return entities.NewInventoryLocation(id, args.Name, args.Description, args.ParentID)
		},
		snapshot: func(l *entities.InventoryLocation) *entities.InventoryLocation {
			return entities.ReconstructInventoryLocation(l.ID(), l.Name(), l.Description(), l.ParentID(), l.CreatedAt(), l.UpdatedAt())
		},
		identity: func(l *entities.InventoryLocation) catalogIdentity {
			return catalogIdentity{id: l.ID(), name: l.Name(), parentID: l.ParentID(), createdAt: l.CreatedAt().UnixNano()}
		},
		drain: (*entities.InventoryLocation).DrainEvents,
	}
}

// NewInventoryTypeRepository creates an empty type repository.
func NewInventoryTypeRepository(publisher ports.EventPublisher) ports.InventoryTypeRepository {
	return &catalogRepository[*entities.InventoryType]{
		items:     make(map[string]*entities.InventoryType),
		publisher: publisher,
		build: func(id string, args ports.CatalogArgs) (*entities.InventoryType, error) {
			return entities.NewInventoryType(id, args.Name, args.Description, args.ParentID)
		},
		snapshot: func(n *entities.InventoryType) *entities.InventoryType {
			return entities.ReconstructInventoryType(n.ID(), n.Name(), n.Description(), n.ParentID(), n.CreatedAt(), n.UpdatedAt())
		},
		identity: func(n *entities.InventoryType) catalogIdentity {
			return catalogIdentity{id: n.ID(), name: n.Name(), parentID: n.ParentID(), createdAt: n.CreatedAt().UnixNano()}
		},
		drain: (*entities.InventoryType).DrainEvents,
	}
}

// ----------------------------------------------------------------------------
// Inventory items
// ----------------------------------------------------------------------------

// InventoryItemRepository is the in-memory item store.
type InventoryItemRepository struct {
	mu    sync.RWMutex
	items map[string]*entities.InventoryItem
}

// NewInventoryItemRepository creates an empty item repository.
func NewInventoryItemRepository() *InventoryItemRepository {
	return &InventoryItemRepository{items: make(map[string]*entities.InventoryItem)}
}

func snapshotItem(i *entities.InventoryItem) *entities.InventoryItem {
	return entities.ReconstructInventoryItem(i.ID(), i.Name(), i.Quantity(), i.TypeID(), i.LocationID(), i.CreatedAt(), i.UpdatedAt())
}

func (r *InventoryItemRepository) Create(ctx context.Context, args ports.InventoryItemArgs) (*entities.InventoryItem, error) {
	return r.CreateWithID(ctx, uuid.NewString(), args)
}

func (r *InventoryItemRepository) CreateWithID(ctx context.Context, id string, args ports.InventoryItemArgs) (*entities.InventoryItem, error) {
	item, err := entities.NewInventoryItem(id, args.Name, args.Quantity, args.TypeID, args.LocationID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, exists := r.items[id]; exists {
		r.mu.Unlock()
		return nil, pkgerrors.NewConflictError("inventory item '" + id + "' already exists")
	}
	r.items[id] = snapshotItem(item)
	r.mu.Unlock()

	return item, nil
}

func (r *InventoryItemRepository) GetByID(ctx context.Context, id string) (*entities.InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return snapshotItem(item), nil
}

func (r *InventoryItemRepository) Save(ctx context.Context, item *entities.InventoryItem) error {
	r.mu.Lock()
	r.items[item.ID()] = snapshotItem(item)
	r.mu.Unlock()
	return nil
}

func (r *InventoryItemRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.items, id)
	r.mu.Unlock()
	return nil
}

func (r *InventoryItemRepository) ListByQuery(ctx context.Context, filter ports.InventoryItemFilter) ([]*entities.InventoryItem, error) {
	r.mu.RLock()
	matched := make([]*entities.InventoryItem, 0)
	for _, item := range r.items {
		if filter.Search != "" && !strings.Contains(strings.ToLower(item.Name()), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.TypeID != "" && item.TypeID() != filter.TypeID {
			continue
		}
		if filter.LocationID != "" && item.LocationID() != filter.LocationID {
			continue
		}
		matched = append(matched, snapshotItem(item))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name() != matched[j].Name() {
			return matched[i].Name() < matched[j].Name()
		}
		return matched[i].ID() < matched[j].ID()
	})
	return paginate(matched, filter.Skip, filter.Limit), nil
}

// ----------------------------------------------------------------------------
// Time-based jobs
// ----------------------------------------------------------------------------

// TimeBasedJobRepository is the in-memory delay queue.
type TimeBasedJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*entities.TimeBasedJob
}

// NewTimeBasedJobRepository creates an empty job repository.
func NewTimeBasedJobRepository() *TimeBasedJobRepository {
	return &TimeBasedJobRepository{jobs: make(map[string]*entities.TimeBasedJob)}
}

func snapshotJob(j *entities.TimeBasedJob) *entities.TimeBasedJob {
	return entities.ReconstructTimeBasedJob(j.ID(), j.RunAfter(), j.EventType(), j.EventPayload(), j.CreatedAt(), j.UpdatedAt())
}

func (r *TimeBasedJobRepository) Create(ctx context.Context, args ports.TimeBasedJobArgs) (*entities.TimeBasedJob, error) {
	return r.CreateWithID(ctx, uuid.NewString(), args)
}

func (r *TimeBasedJobRepository) CreateWithID(ctx context.Context, id string, args ports.TimeBasedJobArgs) (*entities.TimeBasedJob, error) {
	job, err := entities.NewTimeBasedJob(id, args.RunAfter, args.EventType, args.EventPayload)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, exists := r.jobs[id]; exists {
		r.mu.Unlock()
		return nil, pkgerrors.NewConflictError("job '" + id + "' already exists")
	}
	r.jobs[id] = snapshotJob(job)
	r.mu.Unlock()

	return job, nil
}

func (r *TimeBasedJobRepository) GetByID(ctx context.Context, id string) (*entities.TimeBasedJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	return snapshotJob(job), nil
}

func (r *TimeBasedJobRepository) Save(ctx context.Context, job *entities.TimeBasedJob) error {
	r.mu.Lock()
	r.jobs[job.ID()] = snapshotJob(job)
	r.mu.Unlock()
	return nil
}

func (r *TimeBasedJobRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.jobs, id)
	r.mu.Unlock()
	return nil
}

func (r *TimeBasedJobRepository) ListByQuery(ctx context.Context, filter ports.TimeBasedJobFilter) ([]*entities.TimeBasedJob, error) {
	r.mu.RLock()
	matched := make([]*entities.TimeBasedJob, 0)
	for _, job := range r.jobs {
		if filter.EventType != "" && job.EventType() != filter.EventType {
			continue
		}
		if filter.DueBefore > 0 && job.RunAfter() > filter.DueBefore {
			continue
		}
		matched = append(matched, snapshotJob(job))
	}
	r.mu.RUnlock()

	sortJobs(matched)
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// ListDue returns every job whose due time has arrived, soonest first.
func (r *TimeBasedJobRepository) ListDue(ctx context.Context, now int64) ([]*entities.TimeBasedJob, error) {
	return r.ListByQuery(ctx, ports.TimeBasedJobFilter{DueBefore: now})
}

func sortJobs(jobs []*entities.TimeBasedJob) {
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].RunAfter() != jobs[j].RunAfter() {
			return jobs[i].RunAfter() < jobs[j].RunAfter()
		}
		return jobs[i].ID() < jobs[j].ID()
	})
}

// ----------------------------------------------------------------------------
// Sequence store
// ----------------------------------------------------------------------------

// SequenceStore is the in-memory numbering state store.
type SequenceStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewSequenceStore creates an empty sequence store.
func NewSequenceStore() *SequenceStore {
	return &SequenceStore{values: make(map[string]string)}
}

// Last returns the last issued value, empty for a fresh sequence.
func (s *SequenceStore) Last(ctx context.Context, sequence string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[sequence], nil
}

// CompareAndSwap atomically replaces the stored value when it still matches.
func (s *SequenceStore) CompareAndSwap(ctx context.Context, sequence, last, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values[sequence] != last {
		return pkgerrors.NewConflictError("sequence '" + sequence + "' was updated concurrently")
	}
	s.values[sequence] = next
	return nil
}
