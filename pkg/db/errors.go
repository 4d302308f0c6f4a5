package db

import (
	"strings"

	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
)

const (
	sqlStateUnique = "23505"
	sqlStateCheck  = "23514"
)

// IsUniqueViolation reports whether err is a unique constraint violation
// (Postgres or SQLite). A non-empty constraintName narrows the match.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if pkgerrors.SQLState(err) != sqlStateUnique &&
		!strings.Contains(msg, "duplicate key value") &&
		!strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return true
}

// IsCheckViolation reports whether the error came from a CHECK constraint.
func IsCheckViolation(err error) bool {
	if err == nil {
		return false
	}
	if pkgerrors.SQLState(err) == sqlStateCheck {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "violates check constraint") || strings.Contains(msg, "CHECK constraint failed")
}
