package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", &pgconn.PgError{Code: CodeUniqueViolation})))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: mese_overview.serial_number")))
	assert.False(t, IsDuplicateKeyErr(errors.New("boom")))
}

func TestPgCodeHelpers(t *testing.T) {
	assert.Equal(t, "", PgCode(errors.New("plain")))
	assert.True(t, IsUndefinedTable(&pgconn.PgError{Code: CodeUndefinedTable}))
	assert.True(t, IsUndefinedTable(errors.New("no such table: mese_ledger")))
	assert.True(t, IsUndefinedFunction(errors.New(`function truncate_table(unknown) does not exist`)))
	assert.True(t, IsUndefinedFunction(&pgconn.PgError{Code: CodeUndefinedFunction}))
	assert.False(t, IsUndefinedFunction(nil))
}
