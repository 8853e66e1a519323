package postgres

import (
	"fmt"
	"strings"
)

// queryBuilder accumulates WHERE predicates with positional placeholders.
// Predicates compose with AND; an empty builder yields no WHERE clause.
type queryBuilder struct {
	predicates []string
	args       []any
}

func newQueryBuilder() *queryBuilder {
	return &queryBuilder{}
}

// equal adds column = value.
func (b *queryBuilder) equal(column string, value any) *queryBuilder {
	b.predicates = append(b.predicates, fmt.Sprintf("%s = $%d", column, b.next()))
	b.args = append(b.args, value)
	return b
}

// contains adds a case-insensitive substring match on column.
func (b *queryBuilder) contains(column, needle string) *queryBuilder {
	b.predicates = append(b.predicates, fmt.Sprintf("lower(%s) LIKE $%d", column, b.next()))
	b.args = append(b.args, "%"+strings.ToLower(needle)+"%")
	return b
}

// isNull adds column IS NULL.
func (b *queryBuilder) isNull(column string) *queryBuilder {
	b.predicates = append(b.predicates, column+" IS NULL")
	return b
}

// atMost adds column <= value.
func (b *queryBuilder) atMost(column string, value any) *queryBuilder {
	b.predicates = append(b.predicates, fmt.Sprintf("%s <= $%d", column, b.next()))
	b.args = append(b.args, value)
	return b
}

// exists adds EXISTS (subquery). The subquery must use placeholders produced
// by this builder's next() so numbering stays consistent.
func (b *queryBuilder) existsSubquery(subquery string, value any) *queryBuilder {
	b.predicates = append(b.predicates, fmt.Sprintf(subquery, b.next()))
	b.args = append(b.args, value)
	return b
}

func (b *queryBuilder) next() int {
	return len(b.args) + 1
}

// whereClause renders the accumulated predicates, empty string when none.
func (b *queryBuilder) whereClause() string {
	if len(b.predicates) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.predicates, " AND ")
}

// pagination renders ORDER BY, LIMIT and OFFSET. The orderBy expression must
// produce a total order so pagination is stable.
func pagination(orderBy string, skip, limit int) string {
	clause := " ORDER BY " + orderBy
	if limit > 0 {
		clause += fmt.Sprintf(" LIMIT %d", limit)
	}
	if skip > 0 {
		clause += fmt.Sprintf(" OFFSET %d", skip)
	}
	return clause
}
