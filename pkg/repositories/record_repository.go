package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/homebrew-hq/homebrew-engine/pkg/database"
	"github.com/homebrew-hq/homebrew-engine/pkg/models"
	sqlbuilder "github.com/homebrew-hq/homebrew-engine/pkg/sql"
)

// RecordRepository executes authorized, single-table reads against the
// HomeBrew tables.
type RecordRepository interface {
	// Select runs q and returns each row keyed by column name.
	Select(ctx context.Context, q *models.AuthorizedQuery) ([]models.Row, error)
}

type recordRepository struct {
	db               *database.DB
	statementTimeout time.Duration
}

// NewRecordRepository creates a RecordRepository. A positive statementTimeout
// is applied to every query with SET LOCAL.
func NewRecordRepository(db *database.DB, statementTimeout time.Duration) RecordRepository {
	return &recordRepository{db: db, statementTimeout: statementTimeout}
}

var _ RecordRepository = (*recordRepository)(nil)

func (r *recordRepository) Select(ctx context.Context, q *models.AuthorizedQuery) ([]models.Row, error) {
	sqlText, args, err := sqlbuilder.BuildSelect(q)
	if err != nil {
		return nil, err
	}

	conn, release, err := r.acquire(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if r.statementTimeout > 0 {
		// SET does not accept bind parameters.
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", r.statementTimeout.Milliseconds())); err != nil {
			return nil, fmt.Errorf("failed to set statement timeout: %w", err)
		}
	}

	rows, err := tx.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	result := make([]models.Row, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		row := make(models.Row, len(fields))
		for i, fd := range fields {
			row[fd.Name] = normalizeValue(fd, values[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// acquire reuses the request's tenant scope when it belongs to userID and
// otherwise opens a new one for the duration of the query.
func (r *recordRepository) acquire(ctx context.Context, userID string) (*pgxpool.Conn, func(), error) {
	if scope, ok := database.ScopeFromContext(ctx); ok && scope.UserID == userID && scope.Conn != nil {
		return scope.Conn, func() {}, nil
	}
	if r.db == nil {
		return nil, nil, fmt.Errorf("no tenant scope in context")
	}

	scope, err := r.db.WithTenant(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return scope.Conn, scope.Close, nil
}

// normalizeValue converts pgx's native values into JSON-friendly forms.
func normalizeValue(fd pgconn.FieldDescription, v any) any {
	switch val := v.(type) {
	case [16]byte:
		return uuid.UUID(val).String()
	case pgtype.Numeric:
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case time.Time:
		if fd.DataTypeOID == pgtype.DateOID {
			return val.Format("2006-01-02")
		}
		return val
	default:
		return v
	}
}
