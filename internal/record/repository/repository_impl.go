package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/meseboard/internal/record/domain"
	"github.com/smallbiznis/meseboard/pkg/db"
	"github.com/smallbiznis/meseboard/pkg/db/option"
	"github.com/smallbiznis/meseboard/pkg/repository"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) UpsertOverview(ctx context.Context, conn *gorm.DB, records []domain.OverviewRecord) error {
	return upsert(ctx, conn, domain.KindOverview, records)
}

func (r *repo) UpsertCycleStats(ctx context.Context, conn *gorm.DB, records []domain.CycleStatsRecord) error {
	return upsert(ctx, conn, domain.KindCycleStats, records)
}

func (r *repo) UpsertLedger(ctx context.Context, conn *gorm.DB, records []domain.LedgerRecord) error {
	return upsert(ctx, conn, domain.KindLedger, records)
}

func (r *repo) UpsertPersonNodes(ctx context.Context, conn *gorm.DB, records []domain.PersonNodeRecord) error {
	return upsert(ctx, conn, domain.KindPersonNode, records)
}

func upsert[T any](ctx context.Context, conn *gorm.DB, kind domain.Kind, records []T) error {
	ptrs := make([]*T, len(records))
	for i := range records {
		ptrs[i] = &records[i]
	}
	return repository.ProvideStore[T](conn).Upsert(ctx, ptrs, kind.ConflictColumns(), kind.UpdateColumns())
}

func (r *repo) CountOverviewByYear(ctx context.Context, conn *gorm.DB, year int) (int64, error) {
	return repository.ProvideStore[domain.OverviewRecord](conn).Count(ctx, nil, option.Where("report_year = ?", year))
}

func (r *repo) ListOverviewByYear(ctx context.Context, conn *gorm.DB, year, offset, limit int) ([]domain.OverviewRecord, error) {
	rows, err := repository.ProvideStore[domain.OverviewRecord](conn).Find(ctx, nil,
		option.Where("report_year = ?", year),
		option.OrderBy("id", false),
		option.Page(offset, limit),
	)
	return deref(rows), err
}

func (r *repo) ListLedgerByYear(ctx context.Context, conn *gorm.DB, year, offset, limit int) ([]domain.LedgerRecord, error) {
	rows, err := repository.ProvideStore[domain.LedgerRecord](conn).Find(ctx, nil,
		option.Where("report_year = ?", year),
		option.OrderBy("id", false),
		option.Page(offset, limit),
	)
	return deref(rows), err
}

func (r *repo) ListCycleStatsByYear(ctx context.Context, conn *gorm.DB, year, offset, limit int) ([]domain.CycleStatsRecord, error) {
	rows, err := repository.ProvideStore[domain.CycleStatsRecord](conn).Find(ctx, nil,
		option.Where("stat_month LIKE ?", fmt.Sprintf("%04d-%%", year)),
		option.OrderBy("id", false),
		option.Page(offset, limit),
	)
	return deref(rows), err
}

func (r *repo) ListCycleStatsByMonth(ctx context.Context, conn *gorm.DB, month string, offset, limit int) ([]domain.CycleStatsRecord, error) {
	rows, err := repository.ProvideStore[domain.CycleStatsRecord](conn).Find(ctx, nil,
		option.Where("stat_month = ?", month),
		option.OrderBy("id", false),
		option.Page(offset, limit),
	)
	return deref(rows), err
}

func (r *repo) ListCycleStats(ctx context.Context, conn *gorm.DB, offset, limit int) ([]domain.CycleStatsRecord, error) {
	rows, err := repository.ProvideStore[domain.CycleStatsRecord](conn).Find(ctx, nil,
		option.OrderBy("stat_month", false),
		option.OrderBy("id", false),
		option.Page(offset, limit),
	)
	return deref(rows), err
}

func (r *repo) DistinctStatMonths(ctx context.Context, conn *gorm.DB) ([]string, error) {
	var months []string
	err := repository.ProvideStore[domain.CycleStatsRecord](conn).Pluck(ctx, "stat_month", &months,
		option.Distinct("stat_month"),
		option.OrderBy("stat_month", true),
	)
	return months, err
}

func (r *repo) FindOverviewBySerialPrefix(ctx context.Context, conn *gorm.DB, serial string) ([]domain.OverviewRecord, error) {
	rows, err := repository.ProvideStore[domain.OverviewRecord](conn).Find(ctx, nil,
		serialPrefix(serial),
		option.OrderBy("id", false),
	)
	return deref(rows), err
}

func (r *repo) FindPersonNodesBySerialPrefix(ctx context.Context, conn *gorm.DB, serial string) ([]domain.PersonNodeRecord, error) {
	rows, err := repository.ProvideStore[domain.PersonNodeRecord](conn).Find(ctx, nil,
		serialPrefix(serial),
		option.OrderBy("start_time", false),
		option.OrderBy("id", false),
	)
	return deref(rows), err
}

func (r *repo) FindCycleStats(ctx context.Context, conn *gorm.DB, serial, month string) (*domain.CycleStatsRecord, error) {
	return repository.ProvideStore[domain.CycleStatsRecord](conn).FindOne(ctx, nil,
		option.Where("serial_number = ? AND stat_month = ?", serial, month),
	)
}

func (r *repo) FindLatestCycleStats(ctx context.Context, conn *gorm.DB, serial string) (*domain.CycleStatsRecord, error) {
	return repository.ProvideStore[domain.CycleStatsRecord](conn).FindOne(ctx, nil,
		option.Where("serial_number = ?", serial),
		option.OrderBy("stat_month", true),
	)
}

func (r *repo) DeleteCycleStatsByMonth(ctx context.Context, conn *gorm.DB, month string) (int64, error) {
	return repository.ProvideStore[domain.CycleStatsRecord](conn).DeleteWhere(ctx, option.Where("stat_month = ?", month))
}

var truncatableTables = map[string]struct{}{
	domain.OverviewRecord{}.TableName():   {},
	domain.PersonNodeRecord{}.TableName(): {},
}

// TruncateTable calls the truncate_table procedure on PostgreSQL. Other
// dialects have no stored procedures, so the rows are deleted directly.
func (r *repo) TruncateTable(ctx context.Context, conn *gorm.DB, table string) error {
	if _, ok := truncatableTables[table]; !ok {
		return fmt.Errorf("table %q cannot be truncated", table)
	}
	if db.IsPostgres(conn) {
		return conn.WithContext(ctx).Exec("SELECT truncate_table(?)", table).Error
	}
	return conn.WithContext(ctx).Exec(fmt.Sprintf("DELETE FROM %s", table)).Error
}

// CleanupDuplicates calls the cleanup_duplicates procedure on PostgreSQL and
// runs the same statements in one transaction elsewhere.
func (r *repo) CleanupDuplicates(ctx context.Context, conn *gorm.DB) (domain.CleanupResult, error) {
	if db.IsPostgres(conn) {
		var row struct {
			Result datatypes.JSONMap
		}
		if err := conn.WithContext(ctx).Raw("SELECT cleanup_duplicates() AS result").Scan(&row).Error; err != nil {
			return domain.CleanupResult{}, err
		}
		return domain.CleanupResult{
			DeletedNullSN:   jsonInt(row.Result["deleted_null_sn"]),
			DeletedOverview: jsonInt(row.Result["deleted_overview"]),
			DeletedNodes:    jsonInt(row.Result["deleted_nodes"]),
		}, nil
	}

	var result domain.CleanupResult
	err := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{domain.OverviewRecord{}.TableName(), domain.PersonNodeRecord{}.TableName()} {
			res := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE serial_number IS NULL OR TRIM(serial_number) = ''", table))
			if res.Error != nil {
				return res.Error
			}
			result.DeletedNullSN += res.RowsAffected
		}

		res := tx.Exec(keepLatestSQL(domain.OverviewRecord{}.TableName(), domain.KindOverview.ConflictColumns()))
		if res.Error != nil {
			return res.Error
		}
		result.DeletedOverview = res.RowsAffected

		res = tx.Exec(keepLatestSQL(domain.PersonNodeRecord{}.TableName(), domain.KindPersonNode.ConflictColumns()))
		if res.Error != nil {
			return res.Error
		}
		result.DeletedNodes = res.RowsAffected
		return nil
	})
	return result, err
}

// keepLatestSQL deletes every row but the newest per natural key. The extra
// derived table keeps MySQL from rejecting a self-referencing delete.
func keepLatestSQL(table string, key []string) string {
	return fmt.Sprintf(
		"DELETE FROM %s WHERE id NOT IN (SELECT id FROM (SELECT MAX(id) AS id FROM %s GROUP BY %s) AS keep_rows)",
		table, table, strings.Join(key, ", "),
	)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func serialPrefix(serial string) option.QueryOption {
	pattern := likeEscaper.Replace(strings.ToLower(strings.TrimSpace(serial))) + "%"
	return option.Where("LOWER(serial_number) LIKE ? ESCAPE '!'", pattern)
}

func jsonInt(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

func deref[T any](rows []*T) []T {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			out = append(out, *row)
		}
	}
	return out
}
