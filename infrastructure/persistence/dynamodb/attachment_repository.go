package dynamodb

import (
	"context"
	"fmt"
	"time"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/domain/core/entities"
	pkgerrors "bookkeeper-backend/pkg/errors"
	"bookkeeper-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var attachmentKeys = KeySchema{Kind: KindAttachment}
var expenseLinkKeys = KeySchema{Kind: KindExpenseLink}

// AttachmentRepository persists attachments in the shared table. Besides the
// main record it maintains one link record per linked expense, so that
// "attachments of expense X" is a single LinkIndex query instead of a scan.
// The main record's LinkIndex entry points at the linked invoice or inventory
// item, or at the orphan partition when no link of any kind exists.
type AttachmentRepository struct {
	*store
}

// NewAttachmentRepository creates an AttachmentRepository.
func NewAttachmentRepository(client *dynamodb.Client, tableName string, logger *zap.Logger, publisher ports.EventPublisher) *AttachmentRepository {
	return &AttachmentRepository{store: newStore(client, tableName, logger, publisher)}
}

// attachmentItem is the stored shape of an attachment's main record.
type attachmentItem struct {
	PK              string   `dynamodbav:"PK"`
	SK              string   `dynamodbav:"SK"`
	GSI1PK          string   `dynamodbav:"GSI1PK"`
	GSI1SK          string   `dynamodbav:"GSI1SK"`
	GSI2PK          string   `dynamodbav:"GSI2PK,omitempty"`
	GSI2SK          string   `dynamodbav:"GSI2SK,omitempty"`
	EntityType      string   `dynamodbav:"EntityType"`
	AttachmentID    string   `dynamodbav:"AttachmentID"`
	Name            string   `dynamodbav:"Name"`
	MimeType        string   `dynamodbav:"MimeType"`
	Size            int64    `dynamodbav:"Size"`
	Bucket          string   `dynamodbav:"Bucket"`
	StorageKey      string   `dynamodbav:"StorageKey"`
	Status          string   `dynamodbav:"Status"`
	InvoiceID       string   `dynamodbav:"InvoiceID,omitempty"`
	InventoryItemID string   `dynamodbav:"InventoryItemID,omitempty"`
	ExpenseIDs      []string `dynamodbav:"ExpenseIDs,omitempty"`
	CreatedAt       string   `dynamodbav:"CreatedAt"`
	UpdatedAt       string   `dynamodbav:"UpdatedAt"`
}

// expenseLinkItem is one attachment-to-expense link record.
type expenseLinkItem struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	GSI2PK       string `dynamodbav:"GSI2PK"`
	GSI2SK       string `dynamodbav:"GSI2SK"`
	EntityType   string `dynamodbav:"EntityType"`
	AttachmentID string `dynamodbav:"AttachmentID"`
	ExpenseID    string `dynamodbav:"ExpenseID"`
}

func attachmentToItem(a *entities.Attachment) attachmentItem {
	createdAt := a.CreatedAt().UTC().Format(time.RFC3339Nano)
	item := attachmentItem{
		PK:              attachmentKeys.PK(a.ID()),
		SK:              attachmentKeys.SK(),
		GSI1PK:          attachmentKeys.StorePK(),
		GSI1SK:          attachmentKeys.NameSortKey(a.Name()),
		EntityType:      string(KindAttachment),
		AttachmentID:    a.ID(),
		Name:            a.Name(),
		MimeType:        a.MimeType(),
		Size:            a.Size(),
		Bucket:          a.Bucket(),
		StorageKey:      a.StorageKey(),
		Status:          string(a.Status()),
		InvoiceID:       a.InvoiceID(),
		InventoryItemID: a.InventoryItemID(),
		ExpenseIDs:      a.ExpenseIDs(),
		CreatedAt:       createdAt,
		UpdatedAt:       a.UpdatedAt().UTC().Format(time.RFC3339Nano),
	}

	switch {
	case a.InvoiceID() != "":
		item.GSI2PK = attachmentKeys.LinkPK(KindInvoice, a.InvoiceID())
		item.GSI2SK = createdAt
	case a.InventoryItemID() != "":
		item.GSI2PK = attachmentKeys.LinkPK(KindItem, a.InventoryItemID())
		item.GSI2SK = createdAt
	case a.Orphaned():
		item.GSI2PK = attachmentKeys.OrphanPK()
		item.GSI2SK = createdAt
	}
	return item
}

func itemToAttachment(item attachmentItem) (*entities.Attachment, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid CreatedAt on %s: %w", item.PK, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid UpdatedAt on %s: %w", item.PK, err)
	}
	return entities.ReconstructAttachment(
		item.AttachmentID,
		item.Name,
		item.MimeType,
		item.Size,
		item.Bucket,
		item.StorageKey,
		entities.AttachmentStatus(item.Status),
		item.InvoiceID,
		item.InventoryItemID,
		item.ExpenseIDs,
		createdAt,
		updatedAt,
	), nil
}

// Create persists a fresh attachment under a generated id.
func (r *AttachmentRepository) Create(ctx context.Context, args ports.AttachmentArgs) (*entities.Attachment, error) {
	return r.CreateWithID(ctx, uuid.New().String(), args)
}

// CreateWithID persists a fresh attachment under the given id and fails with a
// Conflict error when the id is already taken.
func (r *AttachmentRepository) CreateWithID(ctx context.Context, id string, args ports.AttachmentArgs) (_ *entities.Attachment, err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "attachment", "create", start, err)
	}(time.Now())

	attachment, err := entities.NewAttachment(id, args.Name, args.MimeType, args.Size, args.Bucket, args.StorageKey)
	if err != nil {
		return nil, err
	}

	av, err := attributevalue.MarshalMap(attachmentToItem(attachment))
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to marshal attachment", err)
	}
	if err := r.putNew(ctx, av); err != nil {
		if isConditionalCheckFailed(err) {
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

	raw, err := r.get(ctx, attachmentKeys.PK(id), attachmentKeys.SK())
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to get attachment", err)
	}
	if raw == nil {
		return nil, nil
	}

	var item attachmentItem
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("failed to unmarshal attachment", err)
	}
	return itemToAttachment(item)
}

// Save upserts the attachment and reconciles its expense link records: one
// put per newly linked expense, one delete per removed one. Drained domain
// events are published after the write succeeds.
func (r *AttachmentRepository) Save(ctx context.Context, attachment *entities.Attachment) (err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "attachment", "save", start, err)
	}(time.Now())

	av, err := attributevalue.MarshalMap(attachmentToItem(attachment))
	if err != nil {
		return pkgerrors.NewDatabaseError("failed to marshal attachment", err)
	}
	if err := r.put(ctx, av); err != nil {
		return pkgerrors.NewDatabaseError("failed to save attachment", err)
	}

	if err := r.reconcileExpenseLinks(ctx, attachment); err != nil {
		return err
	}

	r.publishEvents(ctx, attachment.DrainEvents())
	return nil
}

// Delete removes the attachment and all of its link records. Idempotent.
func (r *AttachmentRepository) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "attachment", "delete", start, err)
	}(time.Now())

	stored, err := r.storedExpenseLinks(ctx, id)
	if err != nil {
		return err
	}
	for _, expenseID := range stored {
		if err := r.delete(ctx, expenseLinkKeys.PairPK(id), expenseLinkKeys.PairSK(expenseID)); err != nil {
			return pkgerrors.NewDatabaseError("failed to delete expense link", err)
		}
	}
	if err := r.delete(ctx, attachmentKeys.PK(id), attachmentKeys.SK()); err != nil {
		return pkgerrors.NewDatabaseError("failed to delete attachment", err)
	}
	return nil
}

// ListByQuery selects attachments. Each filter dimension maps to one index:
// invoice, inventory item, expense and orphan filters hit the LinkIndex, name
// search hits the StoreIndex with a case-insensitive prefix match.
func (r *AttachmentRepository) ListByQuery(ctx context.Context, filter ports.AttachmentFilter) (_ []*entities.Attachment, err error) {
	defer func(start time.Time) {
		observability.ObserveRepositoryOperation(backendName, "attachment", "list", start, err)
	}(time.Now())

	var attachments []*entities.Attachment
	switch {
	case filter.ExpenseID != "":
		attachments, err = r.listByExpense(ctx, filter.ExpenseID)
	case filter.InvoiceID != "":
		attachments, err = r.listByLinkPartition(ctx, attachmentKeys.LinkPK(KindInvoice, filter.InvoiceID))
	case filter.InventoryItemID != "":
		attachments, err = r.listByLinkPartition(ctx, attachmentKeys.LinkPK(KindItem, filter.InventoryItemID))
	case filter.OrphanedOnly:
		attachments, err = r.listByLinkPartition(ctx, attachmentKeys.OrphanPK())
	default:
		attachments, err = r.listByStore(ctx, filter.Search)
	}
	if err != nil {
		return nil, err
	}

	if filter.Status != "" {
		kept := attachments[:0]
		for _, a := range attachments {
			if a.Status() == filter.Status {
				kept = append(kept, a)
			}
		}
		attachments = kept
	}
	return paginate(attachments, filter.Skip, filter.Limit), nil
}

// listByStore queries the per-kind partition, optionally narrowed to a name
// prefix. Results arrive in GSI sort order, i.e. by lower-cased name.
func (r *AttachmentRepository) listByStore(ctx context.Context, search string) ([]*entities.Attachment, error) {
	input := &dynamodb.QueryInput{
		IndexName:              aws.String(StoreIndexName),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: attachmentKeys.StorePK()},
		},
	}
	if search != "" {
		input.KeyConditionExpression = aws.String("GSI1PK = :pk AND begins_with(GSI1SK, :prefix)")
		input.ExpressionAttributeValues[":prefix"] = &types.AttributeValueMemberS{
			Value: attachmentKeys.NameSortKey(search),
		}
	}

	raw, err := r.queryAll(ctx, input, 0)
	if err != nil {
		return nil, wrapQueryError("attachments", err)
	}
	return r.unmarshalAttachments(raw)
}

// listByLinkPartition returns the attachments in one LinkIndex partition,
// ordered by creation time.
func (r *AttachmentRepository) listByLinkPartition(ctx context.Context, linkPK string) ([]*entities.Attachment, error) {
	raw, err := r.queryAll(ctx, &dynamodb.QueryInput{
		IndexName:              aws.String(LinkIndexName),
		KeyConditionExpression: aws.String("GSI2PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: linkPK},
		},
	}, 0)
	if err != nil {
		return nil, wrapQueryError("attachments", err)
	}
	return r.unmarshalAttachments(raw)
}

// listByExpense resolves the expense's link records, then loads each owning
// attachment. Link records found without their attachment are stale leftovers
// of an interrupted delete and are skipped.
func (r *AttachmentRepository) listByExpense(ctx context.Context, expenseID string) ([]*entities.Attachment, error) {
	raw, err := r.queryAll(ctx, &dynamodb.QueryInput{
		IndexName:              aws.String(LinkIndexName),
		KeyConditionExpression: aws.String("GSI2PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: expenseLinkKeys.LinkPK(KindExpense, expenseID)},
		},
	}, 0)
	if err != nil {
		return nil, wrapQueryError("expense links", err)
	}

	attachments := make([]*entities.Attachment, 0, len(raw))
	for _, rawItem := range raw {
		var link expenseLinkItem
		if err := attributevalue.UnmarshalMap(rawItem, &link); err != nil {
			return nil, pkgerrors.NewDatabaseError("failed to unmarshal expense link", err)
		}
		attachment, err := r.GetByID(ctx, link.AttachmentID)
		if err != nil {
			return nil, err
		}
		if attachment == nil {
			r.logger.Warn("stale expense link without attachment",
				zap.String("attachmentID", link.AttachmentID),
				zap.String("expenseID", link.ExpenseID),
			)
			continue
		}
		attachments = append(attachments, attachment)
	}
	return attachments, nil
}

func (r *AttachmentRepository) unmarshalAttachments(raw []map[string]types.AttributeValue) ([]*entities.Attachment, error) {
	attachments := make([]*entities.Attachment, 0, len(raw))
	for _, rawItem := range raw {
		var item attachmentItem
		if err := attributevalue.UnmarshalMap(rawItem, &item); err != nil {
			return nil, pkgerrors.NewDatabaseError("failed to unmarshal attachment", err)
		}
		attachment, err := itemToAttachment(item)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("failed to map attachment", err)
		}
		attachments = append(attachments, attachment)
	}
	return attachments, nil
}

// reconcileExpenseLinks diffs the stored link records against the entity's
// current expense set and applies only the delta.
func (r *AttachmentRepository) reconcileExpenseLinks(ctx context.Context, attachment *entities.Attachment) error {
	stored, err := r.storedExpenseLinks(ctx, attachment.ID())
	if err != nil {
		return err
	}

	current := make(map[string]struct{}, len(stored))
	for _, expenseID := range stored {
		current[expenseID] = struct{}{}
	}
	next := make(map[string]struct{})
	for _, expenseID := range attachment.ExpenseIDs() {
		next[expenseID] = struct{}{}
	}

	createdAt := attachment.CreatedAt().UTC().Format(time.RFC3339Nano)
	for expenseID := range next {
		if _, ok := current[expenseID]; ok {
			continue
		}
		link := expenseLinkItem{
			PK:           expenseLinkKeys.PairPK(attachment.ID()),
			SK:           expenseLinkKeys.PairSK(expenseID),
			GSI2PK:       expenseLinkKeys.LinkPK(KindExpense, expenseID),
			GSI2SK:       createdAt,
			EntityType:   string(KindExpenseLink),
			AttachmentID: attachment.ID(),
			ExpenseID:    expenseID,
		}
		av, err := attributevalue.MarshalMap(link)
		if err != nil {
			return pkgerrors.NewDatabaseError("failed to marshal expense link", err)
		}
		if err := r.put(ctx, av); err != nil {
			return pkgerrors.NewDatabaseError("failed to save expense link", err)
		}
	}

	for expenseID := range current {
		if _, ok := next[expenseID]; ok {
			continue
		}
		if err := r.delete(ctx, expenseLinkKeys.PairPK(attachment.ID()), expenseLinkKeys.PairSK(expenseID)); err != nil {
			return pkgerrors.NewDatabaseError("failed to delete expense link", err)
		}
	}
	return nil
}

// storedExpenseLinks returns the expense ids currently holding a link record
// for the attachment.
func (r *AttachmentRepository) storedExpenseLinks(ctx context.Context, attachmentID string) ([]string, error) {
	raw, err := r.queryAll(ctx, &dynamodb.QueryInput{
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: expenseLinkKeys.PairPK(attachmentID)},
			":sk": &types.AttributeValueMemberS{Value: "LINKED#"},
		},
	}, 0)
	if err != nil {
		return nil, wrapQueryError("expense links", err)
	}

	expenseIDs := make([]string, 0, len(raw))
	for _, rawItem := range raw {
		var link expenseLinkItem
		if err := attributevalue.UnmarshalMap(rawItem, &link); err != nil {
			return nil, pkgerrors.NewDatabaseError("failed to unmarshal expense link", err)
		}
		expenseIDs = append(expenseIDs, link.ExpenseID)
	}
	return expenseIDs, nil
}
