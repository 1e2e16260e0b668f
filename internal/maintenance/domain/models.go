package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/meseboard/internal/oplog"
	recorddomain "github.com/smallbiznis/meseboard/internal/record/domain"
)

// ConfirmToken must be typed verbatim before any destructive operation runs.
const ConfirmToken = "DELETE"

var (
	ErrConfirmationRequired = errors.New("confirmation_required")
	ErrNotTruncatable       = errors.New("table_not_truncatable")
	ErrInvalidMonth         = errors.New("invalid_stat_month")
)

const (
	OperationTruncate    = "truncate"
	OperationDeleteMonth = "delete_month"
	OperationCleanup     = "cleanup_duplicates"
)

type TruncateRequest struct {
	Table   string `json:"table" binding:"required"`
	Confirm string `json:"confirm"`
}

type DeleteMonthRequest struct {
	Month   string `json:"month" binding:"required"`
	Confirm string `json:"confirm"`
}

type CleanupRequest struct {
	Confirm string `json:"confirm"`
}

// Result reports one maintenance call. Deleted is set by month deletion and
// Cleanup by duplicate cleanup, both exactly as the store returned them.
type Result struct {
	Operation string                      `json:"operation"`
	Table     string                      `json:"table,omitempty"`
	Month     string                      `json:"month,omitempty"`
	Deleted   *int64                      `json:"deleted,omitempty"`
	Cleanup   *recorddomain.CleanupResult `json:"cleanup,omitempty"`
	Logs      []oplog.Entry               `json:"logs"`
}

type Service interface {
	Truncate(ctx context.Context, req TruncateRequest, log *oplog.Log) (*Result, error)
	DeleteMonth(ctx context.Context, req DeleteMonthRequest, log *oplog.Log) (*Result, error)
	Cleanup(ctx context.Context, req CleanupRequest, log *oplog.Log) (*Result, error)
}
