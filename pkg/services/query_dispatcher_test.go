package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/homebrew-hq/homebrew-engine/pkg/apperrors"
	"github.com/homebrew-hq/homebrew-engine/pkg/audit"
	"github.com/homebrew-hq/homebrew-engine/pkg/models"
	"github.com/homebrew-hq/homebrew-engine/pkg/schema"
	sqlbuilder "github.com/homebrew-hq/homebrew-engine/pkg/sql"
)

// fakeRecordRepository records every query it is asked to run.
type fakeRecordRepository struct {
	mu      sync.Mutex
	queries []*models.AuthorizedQuery
	rows    []models.Row
	err     error
}

func (f *fakeRecordRepository) Select(ctx context.Context, q *models.AuthorizedQuery) ([]models.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeRecordRepository) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeRecordRepository) last() *models.AuthorizedQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func newTestDispatcher(t *testing.T, repo *fakeRecordRepository) (QueryDispatcher, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	return NewQueryDispatcher(schema.HomeBrew(), repo, audit.NewSecurityAuditor(logger), 0, logger), logs
}

func requireKind(t *testing.T, err error, kind apperrors.QueryErrorKind) *apperrors.QueryError {
	t.Helper()
	require.Error(t, err)
	qe, ok := apperrors.AsQueryError(err)
	require.True(t, ok, "expected *QueryError, got %T: %v", err, err)
	assert.Equal(t, kind, qe.Kind)
	return qe
}

func TestExecute_BudgetScenario(t *testing.T) {
	repo := &fakeRecordRepository{rows: []models.Row{{"id": "t1", "amount": 12.5, "date": "2024-01-15"}}}
	d, _ := newTestDispatcher(t, repo)

	rows, err := d.Execute(context.Background(), &models.QueryRequest{
		Table:  "budget_transactions",
		Select: "id, amount, date",
		Filters: []models.QueryFilter{
			{Field: "type", Operator: models.OpEq, Value: "expense"},
		},
	}, "u1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	require.Equal(t, 1, repo.calls())

	sqlText, args, err := sqlbuilder.BuildSelect(repo.last())
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "id", "amount", "date" FROM "budget_transactions" WHERE "user_id" = $1 AND "type" = $2`,
		sqlText)
	assert.Equal(t, []any{"u1", "expense"}, args)
}

func TestExecute_UnknownTable(t *testing.T) {
	repo := &fakeRecordRepository{}
	d, logs := newTestDispatcher(t, repo)

	_, err := d.Execute(context.Background(), &models.QueryRequest{Table: "not_a_real_table"}, "u1")
	qe := requireKind(t, err, apperrors.KindUnknownTable)
	assert.True(t, qe.IsValidation())
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Equal(t, 0, repo.calls())

	rejected := logs.FilterMessage("Query validation failed").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, "unknown_table", rejected[0].ContextMap()["kind"])
}

func TestExecute_InjectedUserIDFilterDiscarded(t *testing.T) {
	repo := &fakeRecordRepository{}
	d, _ := newTestDispatcher(t, repo)

	_, err := d.Execute(context.Background(), &models.QueryRequest{
		Table: "todos",
		Filters: []models.QueryFilter{
			{Field: "user_id", Operator: models.OpEq, Value: "u2"},
		},
	}, "u1")
	require.NoError(t, err)

	q := repo.last()
	assert.Empty(t, q.Conditions)

	sqlText, args, err := sqlbuilder.BuildSelect(q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "todos" WHERE "user_id" = $1`, sqlText)
	assert.Equal(t, []any{"u1"}, args)
}

func TestExecute_InjectedUserIDWithUnsupportedOperatorStillSkipped(t *testing.T) {
	repo := &fakeRecordRepository{}
	d, _ := newTestDispatcher(t, repo)

	_, err := d.Execute(context.Background(), &models.QueryRequest{
		Table: "todos",
		Filters: []models.QueryFilter{
			{Field: "user_id", Operator: "ne", Value: "not-even-a-uuid"},
		},
	}, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", repo.last().UserID)
}

func TestExecute_TenantIsolationAcrossModules(t *testing.T) {
	tests := []struct {
		table     string
		wantField string
	}{
		{"budget_transactions", "user_id"},
		{"savings_goals", "user_id"},
		{"workouts", "user_id"},
		{"exercise_library", "created_by"},
		{"meals", "user_id"},
		{"habit_logs", "user_id"},
		{"todo_lists", "user_id"},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			repo := &fakeRecordRepository{}
			d, _ := newTestDispatcher(t, repo)

			_, err := d.Execute(context.Background(), &models.QueryRequest{Table: tt.table}, "session-user")
			require.NoError(t, err)

			q := repo.last()
			assert.Equal(t, tt.wantField, q.UserIDField)
			assert.Equal(t, "session-user", q.UserID)
		})
	}
}

func TestExecute_ExerciseLibraryOwnerFilterSkipped(t *testing.T) {
	repo := &fakeRecordRepository{}
	d, _ := newTestDispatcher(t, repo)

	_, err := d.Execute(context.Background(), &models.QueryRequest{
		Table: "exercise_library",
		Filters: []models.QueryFilter{
			{Field: "created_by", Operator: models.OpEq, Value: "550e8400-e29b-41d4-a716-446655440000"},
			{Field: "muscle_group", Operator: models.OpEq, Value: "legs"},
		},
	}, "u1")
	require.NoError(t, err)

	q := repo.last()
	require.Len(t, q.Conditions, 1)
	assert.Equal(t, "muscle_group", q.Conditions[0].Column)
}

func TestExecute_InvalidColumns(t *testing.T) {
	repo := &fakeRecordRepository{}
	d, _ := newTestDispatcher(t, repo)

	_, err := d.Execute(context.Background(), &models.QueryRequest{
		Table:  "budget_transactions",
		Select: "id, password, amount, ssn",
	}, "u1")
	qe := requireKind(t, err, apperrors.KindInvalidColumns)
	assert.Equal(t, []string{"password", "ssn"}, qe.Columns)
	assert.Equal(t, "invalid columns for table budget_transactions: password, ssn", qe.Message)
	assert.Equal(t, 0, repo.calls())
}

func TestExecute_SelectAllForms(t *testing.T) {
	for _, sel := range []string{"", "*", "  *  ", " "} {
		t.Run("select="+sel, func(t *testing.T) {
			repo := &fakeRecordRepository{}
			d, _ := newTestDispatcher(t, repo)

			_, err := d.Execute(context.Background(), &models.QueryRequest{Table: "habits", Select: sel}, "u1")
			require.NoError(t, err)
			assert.Nil(t, repo.last().Columns)
		})
	}
}

func TestExecute_SelectTrailingComma(t *testing.T) {
	repo := &fakeRecordRepository{}
	d, _ := newTestDispatcher(t, repo)

	_, err := d.Execute(context.Background(), &models.QueryRequest{Table: "habits", Select: "name, frequency,"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "frequency"}, repo.last().Columns)
}

func TestExecute_InvalidField(t *testing.T) {
	repo := &fakeRecordRepository{}
	d, _ := newTestDispatcher(t, repo)

	_, err := d.Execute(context.Background(), &models.QueryRequest{
		Table:   "todos",
		Filters: []models.QueryFilter{{Field: "secret", Operator: models.OpEq, Value: "x"}},
	}, "u1")
	qe := requireKind(t, err, apperrors.KindInvalidField)
	assert.Equal(t, "secret", qe.Field)
	assert.Equal(t, "todos", qe.Table)
	assert.Equal(t, 0, repo.calls())
}

func TestExecute_InvalidValue(t *testing.T) {
	tests := []struct {
		name   string
		filter models.QueryFilter
	}{
		{"bad uuid", models.QueryFilter{Field: "category_id", Operator: models.OpEq, Value: "not-a-uuid"}},
		{"bad number", models.QueryFilter{Field: "amount", Operator: models.OpGt, Value: "abc"}},
		{"bad date", models.QueryFilter{Field: "date", Operator: models.OpGte, Value: "01/15/2024"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRecordRepository{}
			d, _ := newTestDispatcher(t, repo)

			_, err := d.Execute(context.Background(), &models.QueryRequest{
				Table:   "budget_transactions",
				Filters: []models.QueryFilter{tt.filter},
			}, "u1")
			requireKind(t, err, apperrors.KindInvalidValue)
			assert.Equal(t, 0, repo.calls())
		})
	}
}

func TestExecute_CoercedValuesReachStore(t *testing.T) {
	repo := &fakeRecordRepository{}
	d, _ := newTestDispatcher(t, repo)

	_, err := d.Execute(context.Background(), &models.QueryRequest{
		Table: "budget_transactions",
		Filters: []models.QueryFilter{
			{Field: "amount", Operator: models.OpGte, Value: "42"},
			{Field: "date", Operator: models.OpLt, Value: "2024-02-01"},
		},
	}, "u1")
	require.NoError(t, err)

	q := repo.last()
	require.Len(t, q.Conditions, 2)
	assert.Equal(t, 42.0, q.Conditions[0].Value)
	assert.Equal(t, models.OpGte, q.Conditions[0].Operator)
	assert.Equal(t, "2024-02-01", q.Conditions[1].Value)
}

func TestExecute_UnsupportedOperator(t *testing.T) {
	for _, op := range []models.FilterOperator{models.OpBetween, models.OpLike, "ne", ""} {
		t.Run(string(op), func(t *testing.T) {
			repo := &fakeRecordRepository{}
			d, _ := newTestDispatcher(t, repo)

			_, err := d.Execute(context.Background(), &models.QueryRequest{
				Table:   "todos",
				Filters: []models.QueryFilter{{Field: "title", Operator: op, Value: "milk"}},
			}, "u1")
			requireKind(t, err, apperrors.KindUnsupportedOperator)
			assert.Equal(t, 0, repo.calls())
		})
	}
}

func TestExecute_CoercionCheckedBeforeOperator(t *testing.T) {
	repo := &fakeRecordRepository{}
	d, _ := newTestDispatcher(t, repo)

	_, err := d.Execute(context.Background(), &models.QueryRequest{
		Table:   "budget_transactions",
		Filters: []models.QueryFilter{{Field: "amount", Operator: models.OpBetween, Value: "abc"}},
	}, "u1")
	requireKind(t, err, apperrors.KindInvalidValue)
}

func TestExecute_SchemaNotFound(t *testing.T) {
	registry, err := schema.New([]schema.ModuleDefinition{{
		Name:   "Journal",
		Tables: map[string]schema.ColumnSchema{"entries": nil},
	}})
	require.NoError(t, err)

	repo := &fakeRecordRepository{}
	d := NewQueryDispatcher(registry, repo, audit.NewSecurityAuditor(zap.NewNop()), 0, zap.NewNop())

	_, err = d.Execute(context.Background(), &models.QueryRequest{Table: "entries"}, "u1")
	qe := requireKind(t, err, apperrors.KindSchemaNotFound)
	assert.True(t, qe.IsInfrastructure())
	assert.True(t, errors.Is(err, apperrors.ErrInfrastructure))
	assert.Equal(t, 0, repo.calls())
}

func TestExecute_DatabaseQueryFailed(t *testing.T) {
	storeErr := errors.New(`relation "todos" does not exist`)
	repo := &fakeRecordRepository{err: storeErr}
	d, _ := newTestDispatcher(t, repo)

	rows, err := d.Execute(context.Background(), &models.QueryRequest{Table: "todos"}, "u1")
	assert.Nil(t, rows)
	qe := requireKind(t, err, apperrors.KindDatabaseQueryFailed)
	assert.True(t, qe.IsInfrastructure())
	assert.ErrorIs(t, err, storeErr)
	assert.Contains(t, qe.Message, `relation "todos" does not exist`)
	assert.Equal(t, 1, repo.calls(), "store errors are not retried")
}

func TestExecute_EmptyUserID(t *testing.T) {
	repo := &fakeRecordRepository{}
	d, _ := newTestDispatcher(t, repo)

	_, err := d.Execute(context.Background(), &models.QueryRequest{Table: "todos"}, "")
	assert.ErrorIs(t, err, apperrors.ErrNoUserID)
	assert.Equal(t, 0, repo.calls())
}

func TestExecute_NilRequest(t *testing.T) {
	repo := &fakeRecordRepository{}
	d, _ := newTestDispatcher(t, repo)

	_, err := d.Execute(context.Background(), nil, "u1")
	requireKind(t, err, apperrors.KindUnknownTable)
}

func TestExecute_MaxRowsApplied(t *testing.T) {
	repo := &fakeRecordRepository{}
	d := NewQueryDispatcher(schema.HomeBrew(), repo, audit.NewSecurityAuditor(zap.NewNop()), 250, zap.NewNop())

	_, err := d.Execute(context.Background(), &models.QueryRequest{Table: "meals"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, 250, repo.last().Limit)
}

func TestExecute_InjectionPatternAuditedNotRejected(t *testing.T) {
	repo := &fakeRecordRepository{}
	d, logs := newTestDispatcher(t, repo)

	_, err := d.Execute(context.Background(), &models.QueryRequest{
		Table:   "todos",
		Filters: []models.QueryFilter{{Field: "title", Operator: models.OpEq, Value: "' OR '1'='1"}},
	}, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls())

	events := logs.FilterMessage("SQL injection attempt detected").All()
	require.Len(t, events, 1)
	assert.Equal(t, "title", events[0].ContextMap()["field"])
}

func TestAuthorize_Idempotent(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakeRecordRepository{})

	req := &models.QueryRequest{
		Table:   "meals",
		Select:  "calories, vitamins",
		Filters: []models.QueryFilter{{Field: "calories", Operator: models.OpGt, Value: "lots"}},
	}

	_, first := d.Authorize(req, "u1")
	_, second := d.Authorize(req, "u1")
	require.Error(t, first)
	assert.Equal(t, first, second)
	requireKind(t, first, apperrors.KindInvalidColumns)
}

func TestAuthorize_DoesNotMutateRequest(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakeRecordRepository{})

	req := &models.QueryRequest{
		Table:   "budget_transactions",
		Filters: []models.QueryFilter{{Field: "amount", Operator: models.OpGt, Value: "10"}},
	}

	_, err := d.Authorize(req, "u1")
	require.NoError(t, err)
	assert.Equal(t, "10", req.Filters[0].Value)
}
