package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	UpsertOverview(ctx context.Context, db *gorm.DB, records []OverviewRecord) error
	UpsertCycleStats(ctx context.Context, db *gorm.DB, records []CycleStatsRecord) error
	UpsertLedger(ctx context.Context, db *gorm.DB, records []LedgerRecord) error
	UpsertPersonNodes(ctx context.Context, db *gorm.DB, records []PersonNodeRecord) error

	CountOverviewByYear(ctx context.Context, db *gorm.DB, year int) (int64, error)
	ListOverviewByYear(ctx context.Context, db *gorm.DB, year, offset, limit int) ([]OverviewRecord, error)
	ListLedgerByYear(ctx context.Context, db *gorm.DB, year, offset, limit int) ([]LedgerRecord, error)
	ListCycleStatsByYear(ctx context.Context, db *gorm.DB, year, offset, limit int) ([]CycleStatsRecord, error)
	ListCycleStatsByMonth(ctx context.Context, db *gorm.DB, month string, offset, limit int) ([]CycleStatsRecord, error)
	ListCycleStats(ctx context.Context, db *gorm.DB, offset, limit int) ([]CycleStatsRecord, error)
	DistinctStatMonths(ctx context.Context, db *gorm.DB) ([]string, error)

	FindOverviewBySerialPrefix(ctx context.Context, db *gorm.DB, serial string) ([]OverviewRecord, error)
	FindPersonNodesBySerialPrefix(ctx context.Context, db *gorm.DB, serial string) ([]PersonNodeRecord, error)
	FindCycleStats(ctx context.Context, db *gorm.DB, serial, month string) (*CycleStatsRecord, error)
	FindLatestCycleStats(ctx context.Context, db *gorm.DB, serial string) (*CycleStatsRecord, error)

	DeleteCycleStatsByMonth(ctx context.Context, db *gorm.DB, month string) (int64, error)
	TruncateTable(ctx context.Context, db *gorm.DB, table string) error
	CleanupDuplicates(ctx context.Context, db *gorm.DB) (CleanupResult, error)
}
