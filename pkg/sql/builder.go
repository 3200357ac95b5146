package sql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/homebrew-hq/homebrew-engine/pkg/models"
)

// ErrMissingTenant is returned when a query reaches the builder without its
// forced owner filter.
var ErrMissingTenant = errors.New("authorized query has no user scope")

// BuildSelect renders an AuthorizedQuery as a parameterized PostgreSQL SELECT.
// The owner filter is always the first predicate and always bound to $1;
// caller conditions follow as $2..$n in request order. Identifiers are quoted
// with pgx so registry names never need escaping by hand.
//
//	SELECT "id", "amount" FROM "budget_transactions" WHERE "user_id" = $1 AND "type" = $2
func BuildSelect(q *models.AuthorizedQuery) (string, []any, error) {
	if q.UserIDField == "" || q.UserID == "" {
		return "", nil, ErrMissingTenant
	}
	if q.Table == "" {
		return "", nil, fmt.Errorf("table is required")
	}

	projection := "*"
	if len(q.Columns) > 0 {
		quoted := make([]string, len(q.Columns))
		for i, col := range q.Columns {
			quoted[i] = QuoteIdentifier(col)
		}
		projection = strings.Join(quoted, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE %s = $1", projection, QuoteIdentifier(q.Table), QuoteIdentifier(q.UserIDField))

	args := make([]any, 0, len(q.Conditions)+1)
	args = append(args, q.UserID)

	for _, cond := range q.Conditions {
		op := cond.Operator.SQL()
		if op == "" {
			return "", nil, fmt.Errorf("operator %q cannot be rendered", cond.Operator)
		}
		args = append(args, cond.Value)
		fmt.Fprintf(&b, " AND %s %s $%d", QuoteIdentifier(cond.Column), op, len(args))
	}

	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}

	return b.String(), args, nil
}

// QuoteIdentifier safely quotes a SQL identifier using PostgreSQL double quotes.
func QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
