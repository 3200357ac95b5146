package services

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/homebrew-hq/homebrew-engine/pkg/apperrors"
	"github.com/homebrew-hq/homebrew-engine/pkg/audit"
	"github.com/homebrew-hq/homebrew-engine/pkg/logging"
	"github.com/homebrew-hq/homebrew-engine/pkg/models"
	"github.com/homebrew-hq/homebrew-engine/pkg/repositories"
	"github.com/homebrew-hq/homebrew-engine/pkg/schema"
	sqlbuilder "github.com/homebrew-hq/homebrew-engine/pkg/sql"
)

const tracerName = "github.com/homebrew-hq/homebrew-engine/pkg/services"

// QueryDispatcher validates untrusted query requests against the schema
// registry and runs them scoped to the authenticated user.
type QueryDispatcher interface {
	// Execute authorizes req for userID and runs it. Failures are
	// *apperrors.QueryError values, or apperrors.ErrNoUserID for an empty
	// userID. Nothing reaches the store unless every check passes.
	Execute(ctx context.Context, req *models.QueryRequest, userID string) ([]models.Row, error)

	// Authorize runs every check Execute runs without touching the store.
	Authorize(req *models.QueryRequest, userID string) (*models.AuthorizedQuery, error)
}

type queryDispatcher struct {
	registry *schema.Registry
	records  repositories.RecordRepository
	auditor  *audit.SecurityAuditor
	maxRows  int
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewQueryDispatcher creates a dispatcher over registry. maxRows caps every
// query with a LIMIT; zero means no cap.
func NewQueryDispatcher(
	registry *schema.Registry,
	records repositories.RecordRepository,
	auditor *audit.SecurityAuditor,
	maxRows int,
	logger *zap.Logger,
) QueryDispatcher {
	return &queryDispatcher{
		registry: registry,
		records:  records,
		auditor:  auditor,
		maxRows:  maxRows,
		logger:   logger.Named("query_dispatcher"),
		tracer:   otel.Tracer(tracerName),
	}
}

var _ QueryDispatcher = (*queryDispatcher)(nil)

func (d *queryDispatcher) Execute(ctx context.Context, req *models.QueryRequest, userID string) ([]models.Row, error) {
	ctx, span := d.tracer.Start(ctx, "QueryDispatcher.Execute")
	defer span.End()

	if req != nil {
		span.SetAttributes(attribute.String("homebrew.table", req.Table))
	}

	q, err := d.Authorize(req, userID)
	if err != nil {
		d.reportRejection(ctx, span, req, userID, err)
		return nil, err
	}

	for _, match := range sqlbuilder.CheckConditions(q.Conditions) {
		d.auditor.LogInjectionAttempt(ctx, userID, q.Table, audit.InjectionDetails{
			Field:       match.Field,
			Value:       match.Value,
			Fingerprint: match.Fingerprint,
		})
	}

	if ce := d.logger.Check(zap.DebugLevel, "Dispatching query"); ce != nil {
		ce.Write(zap.String("user_id", userID), zap.String("sql", describeQuery(q)))
	}

	rows, err := d.records.Select(ctx, q)
	if err != nil {
		d.logger.Error("Query execution failed",
			zap.String("table", q.Table),
			zap.String("user_id", userID),
			zap.String("error", logging.SanitizeError(err)))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.KindDatabaseQueryFailed))
		return nil, apperrors.NewDatabaseQueryFailed(q.Table, err)
	}

	span.SetAttributes(attribute.Int("homebrew.row_count", len(rows)))
	d.auditor.LogQueryExecution(ctx, userID, q.Table, len(rows))
	return rows, nil
}

func (d *queryDispatcher) Authorize(req *models.QueryRequest, userID string) (*models.AuthorizedQuery, error) {
	if userID == "" {
		return nil, apperrors.ErrNoUserID
	}
	if req == nil {
		req = &models.QueryRequest{}
	}

	module, ok := d.registry.ResolveModule(req.Table)
	if !ok {
		return nil, apperrors.NewUnknownTable(req.Table)
	}

	columns, ok := d.registry.ResolveColumns(req.Table, module)
	if !ok {
		return nil, apperrors.NewSchemaNotFound(req.Table)
	}

	projection, err := resolveProjection(req.Table, req.Select, columns)
	if err != nil {
		return nil, err
	}

	userIDField := d.registry.ResolveUserIDField(req.Table, module)

	conditions := make([]models.Condition, 0, len(req.Filters))
	for _, f := range req.Filters {
		if f.Field == userIDField {
			// The session filter below is authoritative.
			continue
		}

		col, ok := columns[f.Field]
		if !ok {
			return nil, apperrors.NewInvalidField(req.Table, f.Field)
		}

		value, err := Coerce(f.Value, col.Type)
		if err != nil {
			return nil, apperrors.NewInvalidValue(req.Table, f.Field, err.Error())
		}

		if !f.Operator.IsSupported() {
			return nil, apperrors.NewUnsupportedOperator(req.Table, f.Field, string(f.Operator))
		}

		conditions = append(conditions, models.Condition{
			Column:   f.Field,
			Operator: f.Operator,
			Value:    value,
		})
	}

	return &models.AuthorizedQuery{
		Table:       req.Table,
		Columns:     projection,
		UserIDField: userIDField,
		UserID:      userID,
		Conditions:  conditions,
		Limit:       d.maxRows,
	}, nil
}

// resolveProjection returns nil for "all columns". Empty segments such as a
// trailing comma are ignored.
func resolveProjection(table, sel string, columns schema.ColumnSchema) ([]string, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" || sel == "*" {
		return nil, nil
	}

	var projection, invalid []string
	for _, part := range strings.Split(sel, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if !columns.Has(name) {
			invalid = append(invalid, name)
			continue
		}
		projection = append(projection, name)
	}

	if len(invalid) > 0 {
		return nil, apperrors.NewInvalidColumns(table, invalid)
	}
	return projection, nil
}

func (d *queryDispatcher) reportRejection(ctx context.Context, span trace.Span, req *models.QueryRequest, userID string, err error) {
	table := ""
	if req != nil {
		table = req.Table
	}

	qe, ok := apperrors.AsQueryError(err)
	if !ok {
		span.SetStatus(codes.Error, err.Error())
		return
	}

	span.SetAttributes(attribute.String("homebrew.error_kind", string(qe.Kind)))
	span.SetStatus(codes.Error, string(qe.Kind))

	if qe.IsInfrastructure() {
		d.logger.Error("Registry inconsistency",
			zap.String("table", table),
			zap.String("kind", string(qe.Kind)),
			zap.String("error", qe.Message))
		return
	}

	d.auditor.LogQueryValidation(ctx, userID, table, string(qe.Kind), qe.Message)
}

// describeQuery renders q for debug logs.
func describeQuery(q *models.AuthorizedQuery) string {
	sqlText, _, err := sqlbuilder.BuildSelect(q)
	if err != nil {
		return fmt.Sprintf("<unrenderable: %v>", err)
	}
	return logging.SanitizeQuery(sqlText)
}
