package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryBuilder_Empty(t *testing.T) {
	b := newQueryBuilder()

	assert.Empty(t, b.whereClause())
	assert.Empty(t, b.args)
}

func TestQueryBuilder_ComposesWithAnd(t *testing.T) {
	b := newQueryBuilder().
		equal("status", "pending").
		contains("name", "Invoice").
		isNull("parent_id")

	assert.Equal(t, " WHERE status = $1 AND lower(name) LIKE $2 AND parent_id IS NULL", b.whereClause())
	assert.Equal(t, []any{"pending", "%invoice%"}, b.args)
}

func TestQueryBuilder_PlaceholderNumberingSkipsNullPredicates(t *testing.T) {
	b := newQueryBuilder().
		isNull("invoice_id").
		atMost("run_after", int64(100))

	assert.Equal(t, " WHERE invoice_id IS NULL AND run_after <= $1", b.whereClause())
	assert.Equal(t, []any{int64(100)}, b.args)
}

func TestPagination(t *testing.T) {
	assert.Equal(t, " ORDER BY created_at, id", pagination("created_at, id", 0, 0))
	assert.Equal(t, " ORDER BY name LIMIT 10", pagination("name", 0, 10))
	assert.Equal(t, " ORDER BY name LIMIT 10 OFFSET 20", pagination("name", 20, 10))
}
