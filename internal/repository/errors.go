package repository

import "errors"

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a conditional write lost against an existing document.
	ErrConflict = errors.New("record already exists")
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
	searchLimit     = 10
)

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > maxPageSize {
		return defaultPageSize
	}
	return limit
}
