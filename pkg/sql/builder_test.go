package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homebrew-hq/homebrew-engine/pkg/models"
)

func TestBuildSelect_BudgetProjectionAndFilter(t *testing.T) {
	q := &models.AuthorizedQuery{
		Table:       "budget_transactions",
		Columns:     []string{"id", "amount", "date"},
		UserIDField: "user_id",
		UserID:      "u1",
		Conditions: []models.Condition{
			{Column: "type", Operator: models.OpEq, Value: "expense"},
		},
	}

	sqlText, args, err := BuildSelect(q)
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT "id", "amount", "date" FROM "budget_transactions" WHERE "user_id" = $1 AND "type" = $2`,
		sqlText)
	assert.Equal(t, []any{"u1", "expense"}, args)
}

func TestBuildSelect_AllColumnsWithLimit(t *testing.T) {
	q := &models.AuthorizedQuery{
		Table:       "todos",
		UserIDField: "user_id",
		UserID:      "u1",
		Limit:       50,
	}

	sqlText, args, err := BuildSelect(q)
	require.NoError(t, err)

	assert.Equal(t, `SELECT * FROM "todos" WHERE "user_id" = $1 LIMIT 50`, sqlText)
	assert.Equal(t, []any{"u1"}, args)
}

func TestBuildSelect_ComparisonOperators(t *testing.T) {
	q := &models.AuthorizedQuery{
		Table:       "meals",
		UserIDField: "user_id",
		UserID:      "u1",
		Conditions: []models.Condition{
			{Column: "calories", Operator: models.OpGte, Value: 300.0},
			{Column: "calories", Operator: models.OpLt, Value: 900.0},
			{Column: "date", Operator: models.OpGt, Value: "2024-01-01"},
			{Column: "date", Operator: models.OpLte, Value: "2024-01-31"},
		},
	}

	sqlText, args, err := BuildSelect(q)
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT * FROM "meals" WHERE "user_id" = $1 AND "calories" >= $2 AND "calories" < $3 AND "date" > $4 AND "date" <= $5`,
		sqlText)
	assert.Len(t, args, 5)
}

func TestBuildSelect_RequiresTenant(t *testing.T) {
	_, _, err := BuildSelect(&models.AuthorizedQuery{Table: "todos", UserIDField: "user_id"})
	assert.ErrorIs(t, err, ErrMissingTenant)

	_, _, err = BuildSelect(&models.AuthorizedQuery{Table: "todos", UserID: "u1"})
	assert.ErrorIs(t, err, ErrMissingTenant)
}

func TestBuildSelect_RejectsUnrenderableOperator(t *testing.T) {
	q := &models.AuthorizedQuery{
		Table:       "todos",
		UserIDField: "user_id",
		UserID:      "u1",
		Conditions:  []models.Condition{{Column: "title", Operator: models.OpLike, Value: "%milk%"}},
	}

	_, _, err := BuildSelect(q)
	assert.Error(t, err)
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"user_id"`, QuoteIdentifier("user_id"))
	assert.Equal(t, `"we""ird"`, QuoteIdentifier(`we"ird`))
}
