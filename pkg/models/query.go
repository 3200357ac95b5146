package models

// FilterOperator is a comparison operator accepted in a query filter.
type FilterOperator string

const (
	OpEq  FilterOperator = "eq"
	OpGt  FilterOperator = "gt"
	OpLt  FilterOperator = "lt"
	OpGte FilterOperator = "gte"
	OpLte FilterOperator = "lte"

	// OpBetween and OpLike are part of the tool vocabulary but are rejected
	// by the dispatcher.
	OpBetween FilterOperator = "between"
	OpLike    FilterOperator = "like"
)

// SupportedOperators lists the operators the dispatcher applies, in the
// order they are advertised to the language model.
var SupportedOperators = []FilterOperator{OpEq, OpGt, OpLt, OpGte, OpLte}

// IsSupported reports whether the dispatcher can apply op.
func (op FilterOperator) IsSupported() bool {
	for _, s := range SupportedOperators {
		if s == op {
			return true
		}
	}
	return false
}

// SQL returns the comparison symbol for a supported operator.
func (op FilterOperator) SQL() string {
	switch op {
	case OpEq:
		return "="
	case OpGt:
		return ">"
	case OpLt:
		return "<"
	case OpGte:
		return ">="
	case OpLte:
		return "<="
	default:
		return ""
	}
}

// QueryFilter is one caller-supplied (field, operator, value) triple.
type QueryFilter struct {
	Field    string         `json:"field"`
	Operator FilterOperator `json:"operator"`
	Value    any            `json:"value"`
}

// QueryRequest is the untrusted payload produced by the AI function call
// or posted to /api/query.
type QueryRequest struct {
	Table   string        `json:"table"`
	Select  string        `json:"select,omitempty"`
	Filters []QueryFilter `json:"filters,omitempty"`
}

// Condition is a validated filter with its value already coerced.
type Condition struct {
	Column   string
	Operator FilterOperator
	Value    any
}

// AuthorizedQuery is a QueryRequest that passed validation. UserIDField and
// UserID always come from the registry and the authenticated session.
type AuthorizedQuery struct {
	Table       string
	Columns     []string // nil selects every column
	UserIDField string
	UserID      string
	Conditions  []Condition
	Limit       int
}

// Row is a single result record keyed by column name.
type Row map[string]any

// QueryResult is the success payload returned to HTTP and tool callers.
type QueryResult struct {
	Rows     []Row `json:"rows"`
	RowCount int   `json:"row_count"`
}
