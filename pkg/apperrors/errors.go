package apperrors

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrNoUserID   = errors.New("missing user id")
	ErrNoProvider = errors.New("ai provider not configured")

	// ErrValidation and ErrInfrastructure classify QueryError values for errors.Is.
	ErrValidation     = errors.New("query validation failed")
	ErrInfrastructure = errors.New("query infrastructure failure")
)
