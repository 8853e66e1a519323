package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAttachment(t *testing.T) *Attachment {
	t.Helper()
	a, err := NewAttachment("att-1", "receipt.pdf", "application/pdf", 0, "uploads", "att-1/receipt.pdf")
	require.NoError(t, err)
	return a
}

func TestNewAttachmentStartsPendingAndOrphaned(t *testing.T) {
	a := newTestAttachment(t)

	assert.Equal(t, AttachmentStatusPending, a.Status())
	assert.True(t, a.Orphaned())
	assert.Empty(t, a.ExpenseIDs())
}

func TestNewAttachmentValidation(t *testing.T) {
	_, err := NewAttachment("", "receipt.pdf", "application/pdf", 0, "uploads", "k")
	assert.Error(t, err)

	_, err = NewAttachment("att-1", "", "application/pdf", 0, "uploads", "k")
	assert.Error(t, err)
}

func TestAttachmentFinish(t *testing.T) {
	a := newTestAttachment(t)

	require.NoError(t, a.Finish(2048))
	assert.Equal(t, AttachmentStatusFinished, a.Status())
	assert.Equal(t, int64(2048), a.Size())

	// Confirming twice is rejected.
	assert.Error(t, a.Finish(2048))

	drained := a.DrainEvents()
	require.Len(t, drained, 1)
	assert.Equal(t, "attachment.finished", drained[0].GetEventType())
}

func TestAttachmentLinkInvoiceClearsOtherLinks(t *testing.T) {
	a := newTestAttachment(t)
	a.AssignExpenses([]string{"exp-1", "exp-2"})

	require.NoError(t, a.LinkInvoice("inv-9"))

	assert.Equal(t, "inv-9", a.InvoiceID())
	assert.Empty(t, a.ExpenseIDs())
	assert.Empty(t, a.InventoryItemID())
	assert.False(t, a.Orphaned())
}

func TestAttachmentAssignExpensesDeduplicatesAndSorts(t *testing.T) {
	a := newTestAttachment(t)

	a.AssignExpenses([]string{"exp-2", "exp-1", "exp-2", ""})

	assert.Equal(t, []string{"exp-1", "exp-2"}, a.ExpenseIDs())
	assert.False(t, a.Orphaned())
}

func TestAttachmentLinkChangeEventsCarryDeltas(t *testing.T) {
	a := newTestAttachment(t)
	a.AssignExpenses([]string{"exp-1", "exp-2"})
	a.DrainEvents()

	a.AssignExpenses([]string{"exp-2", "exp-3"})

	drained := a.DrainEvents()
	require.Len(t, drained, 1)
	event := drained[0].(interface {
		GetEventType() string
	})
	assert.Equal(t, "attachment.links_changed", event.GetEventType())
}

func TestAttachmentUnlinkRestoresOrphanState(t *testing.T) {
	a := newTestAttachment(t)
	require.NoError(t, a.LinkInventoryItem("item-3"))
	assert.False(t, a.Orphaned())

	a.Unlink()

	assert.True(t, a.Orphaned())
	assert.Empty(t, a.InvoiceID())
	assert.Empty(t, a.InventoryItemID())
	assert.Empty(t, a.ExpenseIDs())
}

func TestDiffIDs(t *testing.T) {
	tests := []struct {
		name        string
		current     []string
		next        []string
		wantAdded   []string
		wantRemoved []string
	}{
		{"no change", []string{"a", "b"}, []string{"a", "b"}, nil, nil},
		{"pure addition", []string{"a"}, []string{"a", "b"}, []string{"b"}, nil},
		{"pure removal", []string{"a", "b"}, []string{"a"}, nil, []string{"b"}},
		{"replace", []string{"a", "c"}, []string{"b", "c"}, []string{"b"}, []string{"a"}},
		{"from empty", nil, []string{"x"}, []string{"x"}, nil},
		{"to empty", []string{"x"}, nil, nil, []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			added, removed := diffIDs(tt.current, tt.next)
			assert.Equal(t, tt.wantAdded, added)
			assert.Equal(t, tt.wantRemoved, removed)
		})
	}
}
