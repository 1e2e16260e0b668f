package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	CodeUniqueViolation   = "23505"
	CodeUndefinedTable    = "42P01"
	CodeUndefinedFunction = "42883"
	CodeInvalidOnConflict = "42P10"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	if PgCode(err) == CodeUniqueViolation {
		return true
	}

	// PostgreSQL (error code 23505)
	if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
		return true
	}

	// MySQL (error code 1062)
	if strings.Contains(err.Error(), "Error 1062") {
		return true
	}

	// SQLite (error code 2067)
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return true
	}

	return false
}

// PgCode returns the SQLSTATE of a wrapped PostgreSQL error, or "".
func PgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUndefinedTable covers PostgreSQL 42P01 and the SQLite equivalent.
func IsUndefinedTable(err error) bool {
	if err == nil {
		return false
	}
	if PgCode(err) == CodeUndefinedTable {
		return true
	}
	return strings.Contains(err.Error(), "no such table")
}

func IsUndefinedFunction(err error) bool {
	if err == nil {
		return false
	}
	if PgCode(err) == CodeUndefinedFunction {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "function") && strings.Contains(msg, "does not exist")
}
