package dynamodb

import (
	"fmt"
	"strings"
)

// All entity kinds share one table. Every key carries the kind discriminator
// so records of different kinds can never collide, and every access pattern
// the domain needs is served by the primary index or one of two GSIs:
//
//	primary:    PK = <KIND>#<id>, SK = RECORD#<KIND>      (point lookup)
//	StoreIndex: GSI1PK = STORE#<kind>, GSI1SK = sort key  (per-kind scans,
//	            name-prefix search, due-time ranges)
//	LinkIndex:  GSI2PK = LINK#<target>, GSI2SK = created  (by linked entity,
//	            orphan partition, link-record reverse lookup)
type Kind string

const (
	KindAttachment  Kind = "ATTACHMENT"
	KindLocation    Kind = "INVLOCATION"
	KindType        Kind = "INVTYPE"
	KindItem        Kind = "INVITEM"
	KindJob         Kind = "TIMEJOB"
	KindExpenseLink Kind = "ATTEXPENSE"
	KindSequence    Kind = "SEQUENCE"

	// Link targets that live outside this store but are referenced by it.
	KindInvoice Kind = "INVOICE"
	KindExpense Kind = "EXPENSE"
)

// Index names.
const (
	StoreIndexName = "StoreIndex"
	LinkIndexName  = "LinkIndex"
)

// OrphanedLinkTarget is the sentinel link partition grouping every attachment
// with no link of any kind, so orphan cleanup is one GSI query instead of a
// table scan.
const OrphanedLinkTarget = "ORPHANED"

// KeySchema builds every key for one entity kind. Keeping key construction in
// one typed place is what prevents cross-kind collisions in the shared table.
type KeySchema struct {
	Kind Kind
}

// PK returns the partition key for an entity id.
func (k KeySchema) PK(id string) string {
	return fmt.Sprintf("%s#%s", k.Kind, id)
}

// SK returns the constant sort key of the kind.
func (k KeySchema) SK() string {
	return fmt.Sprintf("RECORD#%s", k.Kind)
}

// StorePK returns the GSI1 partition key grouping all records of the kind.
func (k KeySchema) StorePK() string {
	return fmt.Sprintf("STORE#%s", k.Kind)
}

// NameSortKey returns the GSI1 sort key for name search: lower-cased so that
// begins-with range scans are case-insensitive.
func (k KeySchema) NameSortKey(name string) string {
	return strings.ToLower(name)
}

// DueSortKey returns the GSI1 sort key for due-time range scans. Zero-padding
// to a fixed width makes the lexicographic GSI order match numeric order.
func (k KeySchema) DueSortKey(runAfter int64) string {
	return fmt.Sprintf("%020d", runAfter)
}

// LinkPK returns the GSI2 partition key for a link target, e.g. the invoice
// an attachment belongs to.
func (k KeySchema) LinkPK(targetKind Kind, targetID string) string {
	return fmt.Sprintf("LINK#%s#%s", targetKind, targetID)
}

// OrphanPK returns the sentinel GSI2 partition key for unlinked records.
func (k KeySchema) OrphanPK() string {
	return fmt.Sprintf("LINK#%s", OrphanedLinkTarget)
}

// PairPK returns the partition key of a link record owned by ownerID.
func (k KeySchema) PairPK(ownerID string) string {
	return fmt.Sprintf("%s#%s", k.Kind, ownerID)
}

// PairSK returns the sort key of a link record pointing at linkedID. Unlike
// entity records, link records are keyed by the (owner, linked) pair so one
// owner can hold many links.
func (k KeySchema) PairSK(linkedID string) string {
	return fmt.Sprintf("LINKED#%s", linkedID)
}

// LinkedIDFromPairSK recovers the linked id from a pair sort key.
func (k KeySchema) LinkedIDFromPairSK(sk string) string {
	return strings.TrimPrefix(sk, "LINKED#")
}
