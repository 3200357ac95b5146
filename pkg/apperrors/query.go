package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// QueryErrorKind identifies why a scoped query was rejected or failed.
type QueryErrorKind string

const (
	KindUnknownTable        QueryErrorKind = "unknown_table"
	KindSchemaNotFound      QueryErrorKind = "schema_not_found"
	KindInvalidColumns      QueryErrorKind = "invalid_columns"
	KindInvalidField        QueryErrorKind = "invalid_field"
	KindInvalidValue        QueryErrorKind = "invalid_value"
	KindUnsupportedOperator QueryErrorKind = "unsupported_operator"
	KindDatabaseQueryFailed QueryErrorKind = "database_query_failed"
)

// QueryError is returned by the query dispatcher. Caller-input problems are
// validation errors; registry inconsistencies and store failures are
// infrastructure errors.
type QueryError struct {
	Kind    QueryErrorKind
	Message string
	Table   string
	Field   string
	Columns []string
	Cause   error
}

func (e *QueryError) Error() string {
	return e.Message
}

// Unwrap returns the underlying store error, if any.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match the ErrValidation / ErrInfrastructure class sentinels.
func (e *QueryError) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.IsValidation()
	case ErrInfrastructure:
		return e.IsInfrastructure()
	}
	return false
}

// IsInfrastructure reports whether the failure is on the server side.
func (e *QueryError) IsInfrastructure() bool {
	return e.Kind == KindSchemaNotFound || e.Kind == KindDatabaseQueryFailed
}

// IsValidation reports whether the failure was caused by caller input.
func (e *QueryError) IsValidation() bool {
	return !e.IsInfrastructure()
}

// AsQueryError extracts a *QueryError from err.
func AsQueryError(err error) (*QueryError, bool) {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

func NewUnknownTable(table string) *QueryError {
	return &QueryError{
		Kind:    KindUnknownTable,
		Message: fmt.Sprintf("unknown table: %s", table),
		Table:   table,
	}
}

func NewSchemaNotFound(table string) *QueryError {
	return &QueryError{
		Kind:    KindSchemaNotFound,
		Message: fmt.Sprintf("schema not found for table: %s", table),
		Table:   table,
	}
}

// NewInvalidColumns names every projection column missing from the table schema.
func NewInvalidColumns(table string, columns []string) *QueryError {
	return &QueryError{
		Kind:    KindInvalidColumns,
		Message: fmt.Sprintf("invalid columns for table %s: %s", table, strings.Join(columns, ", ")),
		Table:   table,
		Columns: columns,
	}
}

func NewInvalidField(table, field string) *QueryError {
	return &QueryError{
		Kind:    KindInvalidField,
		Message: fmt.Sprintf("invalid field %s for table %s", field, table),
		Table:   table,
		Field:   field,
	}
}

func NewInvalidValue(table, field, reason string) *QueryError {
	return &QueryError{
		Kind:    KindInvalidValue,
		Message: fmt.Sprintf("invalid value for %s.%s: %s", table, field, reason),
		Table:   table,
		Field:   field,
	}
}

func NewUnsupportedOperator(table, field, operator string) *QueryError {
	return &QueryError{
		Kind:    KindUnsupportedOperator,
		Message: fmt.Sprintf("unsupported operator %q for field %s on table %s", operator, field, table),
		Table:   table,
		Field:   field,
	}
}

// NewDatabaseQueryFailed wraps a store error, keeping its message.
func NewDatabaseQueryFailed(table string, cause error) *QueryError {
	return &QueryError{
		Kind:    KindDatabaseQueryFailed,
		Message: fmt.Sprintf("database query failed: %v", cause),
		Table:   table,
		Cause:   cause,
	}
}
