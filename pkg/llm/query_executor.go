package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/homebrew-hq/homebrew-engine/pkg/apperrors"
	"github.com/homebrew-hq/homebrew-engine/pkg/jsonutil"
	"github.com/homebrew-hq/homebrew-engine/pkg/models"
	"github.com/homebrew-hq/homebrew-engine/pkg/schema"
)

// QueryRunner executes a scoped query for a user.
// services.QueryDispatcher implements this interface; it is declared here so
// llm does not depend on the services package.
type QueryRunner interface {
	Execute(ctx context.Context, req *models.QueryRequest, userID string) ([]models.Row, error)
}

// QueryToolExecutor runs the query_<module> functions for one signed-in user.
type QueryToolExecutor struct {
	runner  QueryRunner
	modules map[string]*schema.Module
	userID  string
	logger  *zap.Logger
}

// NewQueryToolExecutor binds the query tools of registry to userID. The user
// id never comes from tool arguments.
func NewQueryToolExecutor(registry *schema.Registry, runner QueryRunner, userID string, logger *zap.Logger) *QueryToolExecutor {
	modules := make(map[string]*schema.Module)
	for _, m := range registry.Modules() {
		modules[QueryToolName(m.Name())] = m
	}
	return &QueryToolExecutor{
		runner:  runner,
		modules: modules,
		userID:  userID,
		logger:  logger.Named("query_tools"),
	}
}

var _ ToolExecutor = (*QueryToolExecutor)(nil)

type queryToolArgs struct {
	Table   json.RawMessage   `json:"table"`
	Select  json.RawMessage   `json:"select"`
	Filters []queryToolFilter `json:"filters"`
}

type queryToolFilter struct {
	Field    json.RawMessage `json:"field"`
	Operator json.RawMessage `json:"operator"`
	Value    json.RawMessage `json:"value"`
}

// ToolErrorBody is returned to the model in place of rows when a query is
// rejected, so it can correct its arguments.
type ToolErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ExecuteTool runs a query tool. Unknown functions and infrastructure
// failures are returned as errors; rejected queries are returned as a JSON
// ToolErrorBody.
func (e *QueryToolExecutor) ExecuteTool(ctx context.Context, name string, arguments string) (string, error) {
	module, ok := e.modules[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}

	req, err := decodeQueryArgs(arguments)
	if err != nil {
		return errorBody("invalid_arguments", err.Error())
	}

	if !module.Owns(req.Table) {
		qe := apperrors.NewUnknownTable(req.Table)
		qe.Message = fmt.Sprintf("table %q is not part of %s; use one of: %v", req.Table, module.Name(), module.Tables())
		return errorBody(string(qe.Kind), qe.Message)
	}

	e.logger.Debug("Executing query tool",
		zap.String("tool", name),
		zap.String("table", req.Table),
		zap.Int("filter_count", len(req.Filters)))

	rows, err := e.runner.Execute(ctx, req, e.userID)
	if err != nil {
		if qe, ok := apperrors.AsQueryError(err); ok && qe.IsValidation() {
			return errorBody(string(qe.Kind), qe.Message)
		}
		return "", err
	}

	if rows == nil {
		rows = []models.Row{}
	}
	out, err := json.Marshal(models.QueryResult{Rows: rows, RowCount: len(rows)})
	if err != nil {
		return "", fmt.Errorf("encode query result: %w", err)
	}
	return string(out), nil
}

func decodeQueryArgs(arguments string) (*models.QueryRequest, error) {
	if arguments == "" {
		arguments = "{}"
	}
	var args queryToolArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}

	req := &models.QueryRequest{
		Table:  jsonutil.FlexibleStringValue(args.Table),
		Select: jsonutil.FlexibleStringValue(args.Select),
	}
	for _, f := range args.Filters {
		req.Filters = append(req.Filters, models.QueryFilter{
			Field:    jsonutil.FlexibleStringValue(f.Field),
			Operator: models.FilterOperator(jsonutil.FlexibleStringValue(f.Operator)),
			Value:    jsonutil.FlexibleValue(f.Value),
		})
	}
	return req, nil
}

func errorBody(kind, message string) (string, error) {
	out, err := json.Marshal(ToolErrorBody{Error: kind, Message: message})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
