package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/domain/core/entities"
	pkgerrors "bookkeeper-backend/pkg/errors"
	"bookkeeper-backend/pkg/observability"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// AttachmentRepository persists attachments in PostgreSQL. Expense links live
// in the attachment_expenses junction table and are reconciled as a delta on
// every save, inside the same transaction as the attachment row.
type AttachmentRepository struct {
	db        *sql.DB
	logger    *zap.Logger
	publisher ports.EventPublisher
}

// NewAttachmentRepository creates an AttachmentRepository.
func NewAttachmentRepository(db *sql.DB, logger *zap.Logger, publisher ports.EventPublisher) *AttachmentRepository {
	if publisher == nil {
		publisher = ports.NoopEventPublisher{}
	}
	return &AttachmentRepository{db: db, logger: logger, publisher: publisher}
}

const attachmentColumns = "id, name, mime_type, size, bucket, storage_key, status, invoice_id, inventory_item_id, created_at, updated_at"

// Create persists a fresh attachment under a generated id.
func (r *AttachmentRepository) Create(ctx context.Context, args ports.AttachmentArgs) (*entities.Attachment, error) {
	return r.CreateWithID(ctx, uuid.New().String(), args)
}

// CreateWithID persists a fresh attachment under the given id and fails with
// a Conflict error when the id is already taken.
func (r *AttachmentRepository) CreateWithID(ctx context.Context, id string, args ports.AttachmentArgs) (_ *entities.Attachment, err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "attachment", "create", start, err)
	}(time.Now())

	attachment, err := entities.NewAttachment(id, args.Name, args.MimeType, args.Size, args.Bucket, args.StorageKey)
	if err != nil {
		return nil, err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO attachments (`+attachmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		attachment.ID(), attachment.Name(), attachment.MimeType(), attachment.Size(),
		attachment.Bucket(), attachment.StorageKey(), string(attachment.Status()),
		nullString(attachment.InvoiceID()), nullString(attachment.InventoryItemID()),
		attachment.CreatedAt(), attachment.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, pkgerrors.NewConflictError(fmt.Sprintf("attachment %s already exists", id))
		}
		return nil, pkgerrors.NewDatabaseError("failed to create attachment", err)
	}
	return attachment, nil
}

// GetByID returns (nil, nil) when the attachment does not exist.
func (r *AttachmentRepository) GetByID(ctx context.Context, id string) (_ *entities.Attachment, err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "attachment", "get", start, err)
	}(time.Now())

	row := r.db.QueryRowContext(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE id = $1`, id)
	attachment, err := scanAttachment(row, nil)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, pkgerrors.NewDatabaseError("failed to get attachment", err)
	}

	expenseIDs, err := r.expenseIDsFor(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return withExpenses(attachment, expenseIDs), nil
}

// Save upserts the attachment row and reconciles the junction table inside
// one transaction. Drained domain events are published after commit.
func (r *AttachmentRepository) Save(ctx context.Context, attachment *entities.Attachment) (err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "attachment", "save", start, err)
	}(time.Now())

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return pkgerrors.NewDatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO attachments (`+attachmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			mime_type = EXCLUDED.mime_type,
			size = EXCLUDED.size,
			bucket = EXCLUDED.bucket,
			storage_key = EXCLUDED.storage_key,
			status = EXCLUDED.status,
			invoice_id = EXCLUDED.invoice_id,
			inventory_item_id = EXCLUDED.inventory_item_id,
			updated_at = EXCLUDED.updated_at
	`,
		attachment.ID(), attachment.Name(), attachment.MimeType(), attachment.Size(),
		attachment.Bucket(), attachment.StorageKey(), string(attachment.Status()),
		nullString(attachment.InvoiceID()), nullString(attachment.InventoryItemID()),
		attachment.CreatedAt(), attachment.UpdatedAt(),
	)
	if err != nil {
		return pkgerrors.NewDatabaseError("failed to save attachment", err)
	}

	if err := r.reconcileExpenseLinks(ctx, tx, attachment); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return pkgerrors.NewDatabaseError("failed to commit attachment save", err)
	}

	for _, event := range attachment.DrainEvents() {
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.logger.Warn("failed to publish domain event",
				zap.String("eventType", event.GetEventType()),
				zap.String("aggregateID", event.GetAggregateID()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Delete removes the attachment; the junction rows go with it via the foreign
// key cascade. Idempotent.
func (r *AttachmentRepository) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "attachment", "delete", start, err)
	}(time.Now())

	if _, err := r.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = $1`, id); err != nil {
		return pkgerrors.NewDatabaseError("failed to delete attachment", err)
	}
	return nil
}

// ListByQuery selects attachments ordered by creation time then id. The name
// search is a case-insensitive substring match.
func (r *AttachmentRepository) ListByQuery(ctx context.Context, filter ports.AttachmentFilter) (_ []*entities.Attachment, err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "attachment", "list", start, err)
	}(time.Now())

	b := newQueryBuilder()
	if filter.Search != "" {
		b.contains("name", filter.Search)
	}
	if filter.InvoiceID != "" {
		b.equal("invoice_id", filter.InvoiceID)
	}
	if filter.InventoryItemID != "" {
		b.equal("inventory_item_id", filter.InventoryItemID)
	}
	if filter.ExpenseID != "" {
		b.existsSubquery("EXISTS (SELECT 1 FROM attachment_expenses ae WHERE ae.attachment_id = attachments.id AND ae.expense_id = $%d)", filter.ExpenseID)
	}
	if filter.OrphanedOnly {
		b.isNull("invoice_id")
		b.isNull("inventory_item_id")
		b.predicates = append(b.predicates, "NOT EXISTS (SELECT 1 FROM attachment_expenses ae WHERE ae.attachment_id = attachments.id)")
	}
	if filter.Status != "" {
		b.equal("status", string(filter.Status))
	}

	query := `SELECT ` + attachmentColumns + ` FROM attachments` +
		b.whereClause() + pagination("created_at, id", filter.Skip, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to list attachments", err)
	}
	defer rows.Close()

	var attachments []*entities.Attachment
	var ids []string
	for rows.Next() {
		attachment, err := scanAttachment(nil, rows)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("failed to scan attachment", err)
		}
		attachments = append(attachments, attachment)
		ids = append(ids, attachment.ID())
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to list attachments", err)
	}
	if len(attachments) == 0 {
		return attachments, nil
	}

	linksByAttachment, err := r.expenseIDsForMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i, attachment := range attachments {
		attachments[i] = withExpenses(attachment, linksByAttachment[attachment.ID()])
	}
	return attachments, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanAttachment reads one attachment row; exactly one of row/rows is set.
func scanAttachment(row *sql.Row, rows *sql.Rows) (*entities.Attachment, error) {
	var scanner rowScanner = rows
	if row != nil {
		scanner = row
	}

	var (
		id, name, mimeType, bucket, storageKey, status string
		size                                           int64
		invoiceID, inventoryItemID                     sql.NullString
		createdAt, updatedAt                           time.Time
	)
	if err := scanner.Scan(
		&id, &name, &mimeType, &size, &bucket, &storageKey, &status,
		&invoiceID, &inventoryItemID, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	return entities.ReconstructAttachment(
		id, name, mimeType, size, bucket, storageKey,
		entities.AttachmentStatus(status),
		invoiceID.String, inventoryItemID.String,
		nil, createdAt, updatedAt,
	), nil
}

// withExpenses rebuilds the entity with its expense links attached.
func withExpenses(a *entities.Attachment, expenseIDs []string) *entities.Attachment {
	if len(expenseIDs) == 0 {
		return a
	}
	return entities.ReconstructAttachment(
		a.ID(), a.Name(), a.MimeType(), a.Size(), a.Bucket(), a.StorageKey(),
		a.Status(), a.InvoiceID(), a.InventoryItemID(),
		expenseIDs, a.CreatedAt(), a.UpdatedAt(),
	)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *AttachmentRepository) expenseIDsFor(ctx context.Context, q querier, attachmentID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT expense_id FROM attachment_expenses WHERE attachment_id = $1 ORDER BY expense_id`,
		attachmentID,
	)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to load expense links", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, pkgerrors.NewDatabaseError("failed to scan expense link", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *AttachmentRepository) expenseIDsForMany(ctx context.Context, attachmentIDs []string) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT attachment_id, expense_id FROM attachment_expenses WHERE attachment_id = ANY($1) ORDER BY expense_id`,
		pq.Array(attachmentIDs),
	)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to load expense links", err)
	}
	defer rows.Close()

	links := make(map[string][]string)
	for rows.Next() {
		var attachmentID, expenseID string
		if err := rows.Scan(&attachmentID, &expenseID); err != nil {
			return nil, pkgerrors.NewDatabaseError("failed to scan expense link", err)
		}
		links[attachmentID] = append(links[attachmentID], expenseID)
	}
	return links, rows.Err()
}

// reconcileExpenseLinks diffs the stored junction rows against the entity's
// current expense set and applies only the delta.
func (r *AttachmentRepository) reconcileExpenseLinks(ctx context.Context, tx *sql.Tx, attachment *entities.Attachment) error {
	stored, err := r.expenseIDsFor(ctx, tx, attachment.ID())
	if err != nil {
		return err
	}

	current := make(map[string]struct{}, len(stored))
	for _, id := range stored {
		current[id] = struct{}{}
	}
	next := make(map[string]struct{})
	for _, id := range attachment.ExpenseIDs() {
		next[id] = struct{}{}
	}

	for id := range next {
		if _, ok := current[id]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attachment_expenses (attachment_id, expense_id) VALUES ($1, $2)`,
			attachment.ID(), id,
		); err != nil {
			return pkgerrors.NewDatabaseError("failed to insert expense link", err)
		}
	}
	for id := range current {
		if _, ok := next[id]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM attachment_expenses WHERE attachment_id = $1 AND expense_id = $2`,
			attachment.ID(), id,
		); err != nil {
			return pkgerrors.NewDatabaseError("failed to delete expense link", err)
		}
	}
	return nil
}
