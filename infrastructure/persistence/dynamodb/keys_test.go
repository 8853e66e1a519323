package dynamodb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeySchema_EntityKeys(t *testing.T) {
	k := KeySchema{Kind: KindAttachment}

	assert.Equal(t, "ATTACHMENT#abc", k.PK("abc"))
	assert.Equal(t, "RECORD#ATTACHMENT", k.SK())
	assert.Equal(t, "STORE#ATTACHMENT", k.StorePK())
}

func TestKeySchema_NameSortKeyIsCaseInsensitive(t *testing.T) {
	k := KeySchema{Kind: KindLocation}

	assert.Equal(t, "main warehouse", k.NameSortKey("Main Warehouse"))
	assert.Equal(t, k.NameSortKey("SHELF-A"), k.NameSortKey("shelf-a"))
}

func TestKeySchema_DueSortKeyPreservesNumericOrder(t *testing.T) {
	k := KeySchema{Kind: KindJob}

	early := k.DueSortKey(999)
	late := k.DueSortKey(1000)

	assert.Len(t, early, 20)
	assert.True(t, early < late, "lexicographic order must match numeric order")
}

func TestKeySchema_LinkKeys(t *testing.T) {
	k := KeySchema{Kind: KindAttachment}

	assert.Equal(t, "LINK#INVITEM#i1", k.LinkPK(KindItem, "i1"))
	assert.Equal(t, "LINK#ORPHANED", k.OrphanPK())
}

func TestKeySchema_PairKeysRoundTrip(t *testing.T) {
	k := KeySchema{Kind: KindExpenseLink}

	assert.Equal(t, "ATTEXPENSE#a1", k.PairPK("a1"))
	sk := k.PairSK("e9")
	assert.Equal(t, "LINKED#e9", sk)
	assert.Equal(t, "e9", k.LinkedIDFromPairSK(sk))
}
