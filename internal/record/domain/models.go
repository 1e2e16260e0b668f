package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// SentinelTime stands in for a missing node start or end time. Durations treat
// it as "still open".
var SentinelTime = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// OverviewRecord is one row of the warranty overview, partitioned by report year.
type OverviewRecord struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	SerialNumber      string       `gorm:"column:serial_number;not null;uniqueIndex:ux_mese_overview_key,priority:1" json:"serial_number"`
	ReportYear        int          `gorm:"column:report_year;not null;index" json:"report_year"`
	Department        string       `gorm:"column:department" json:"department"`
	CustomerName      string       `gorm:"column:customer_name" json:"customer_name"`
	InstallationStage string       `gorm:"column:installation_stage" json:"installation_stage"`
	MaterialName      string       `gorm:"column:material_name;not null;default:'';uniqueIndex:ux_mese_overview_key,priority:2" json:"material_name"`
	DrawingNumber     string       `gorm:"column:drawing_number;not null;default:'';uniqueIndex:ux_mese_overview_key,priority:3" json:"drawing_number"`
	WarrantyCount     int          `gorm:"column:warranty_count;not null;default:0" json:"warranty_count"`
	WarrantyType      string       `gorm:"column:warranty_type" json:"warranty_type"`
	FaultDescription  string       `gorm:"column:fault_description" json:"fault_description"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (OverviewRecord) TableName() string { return "mese_overview" }

func (r OverviewRecord) NaturalKey() string {
	return joinKey(r.SerialNumber, r.MaterialName, r.DrawingNumber)
}

// CycleStatsRecord holds the per-stage durations (in days) of one ticket for a stat month.
type CycleStatsRecord struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	SerialNumber     string       `gorm:"column:serial_number;not null;uniqueIndex:ux_mese_cycle_stats_key,priority:1" json:"serial_number"`
	StatMonth        string       `gorm:"column:stat_month;size:7;not null;uniqueIndex:ux_mese_cycle_stats_key,priority:2;index" json:"stat_month"`
	HQDispatchTime   float64      `gorm:"column:hq_dispatch_time;not null;default:0" json:"hq_dispatch_time"`
	HQAuditTime      float64      `gorm:"column:hq_audit_time;not null;default:0" json:"hq_audit_time"`
	BranchSubmitTime float64      `gorm:"column:branch_submit_time;not null;default:0" json:"branch_submit_time"`
	SuppInvestTime   float64      `gorm:"column:supp_invest_time;not null;default:0" json:"supp_invest_time"`
	BranchInvestTime float64      `gorm:"column:branch_invest_time;not null;default:0" json:"branch_invest_time"`
	ShipTime         float64      `gorm:"column:ship_time;not null;default:0" json:"ship_time"`
	TotalCycleTime   float64      `gorm:"column:total_cycle_time;not null;default:0" json:"total_cycle_time"`
	Department       string       `gorm:"column:department" json:"department"`
	CustomerName     string       `gorm:"column:customer_name" json:"customer_name"`
	MaterialType     string       `gorm:"column:material_type" json:"material_type"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CycleStatsRecord) TableName() string { return "mese_cycle_stats" }

func (r CycleStatsRecord) NaturalKey() string {
	return joinKey(r.SerialNumber, r.StatMonth)
}

// SMECTime is the branch-side share of the cycle.
func (r CycleStatsRecord) SMECTime() float64 {
	return r.BranchSubmitTime + r.SuppInvestTime + r.BranchInvestTime
}

// LedgerRecord is one row of the annual cost ledger.
type LedgerRecord struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	SerialNumber string          `gorm:"column:serial_number;not null;uniqueIndex:ux_mese_ledger_key,priority:1" json:"serial_number"`
	ReportYear   int             `gorm:"column:report_year;not null;uniqueIndex:ux_mese_ledger_key,priority:2;index" json:"report_year"`
	Department   string          `gorm:"column:department" json:"department"`
	CustomerName string          `gorm:"column:customer_name" json:"customer_name"`
	WarrantyType string          `gorm:"column:warranty_type" json:"warranty_type"`
	MaterialName string          `gorm:"column:material_name" json:"material_name"`
	Quantity     int             `gorm:"column:quantity;not null;default:0" json:"quantity"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null;default:0" json:"amount"`
	Resolution   string          `gorm:"column:resolution" json:"resolution"`
	Status       string          `gorm:"column:status" json:"status"`
	Category     string          `gorm:"column:category" json:"category"`
	Cause        string          `gorm:"column:cause" json:"cause"`
	ApplyDate    *time.Time      `gorm:"column:apply_date" json:"apply_date"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (LedgerRecord) TableName() string { return "mese_ledger" }

func (r LedgerRecord) NaturalKey() string {
	return joinKey(r.SerialNumber, strconv.Itoa(r.ReportYear))
}

// PersonNodeRecord is one workflow step of a ticket. The whole row is the key.
type PersonNodeRecord struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	SerialNumber string       `gorm:"column:serial_number;not null;uniqueIndex:ux_mese_person_node_key,priority:1" json:"serial_number"`
	StartTime    time.Time    `gorm:"column:start_time;not null;uniqueIndex:ux_mese_person_node_key,priority:2" json:"start_time"`
	EndTime      time.Time    `gorm:"column:end_time;not null;uniqueIndex:ux_mese_person_node_key,priority:3" json:"end_time"`
	Node         string       `gorm:"column:node;not null;default:'';uniqueIndex:ux_mese_person_node_key,priority:4" json:"node"`
	PersonName   string       `gorm:"column:person_name;not null;default:'';uniqueIndex:ux_mese_person_node_key,priority:5" json:"person_name"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PersonNodeRecord) TableName() string { return "mese_person_node" }

func (r PersonNodeRecord) NaturalKey() string {
	return joinKey(
		r.SerialNumber,
		r.StartTime.UTC().Format(time.RFC3339Nano),
		r.EndTime.UTC().Format(time.RFC3339Nano),
		r.Node,
		r.PersonName,
	)
}

// CleanupResult is what the duplicate cleanup procedure reports.
type CleanupResult struct {
	DeletedNullSN   int64 `json:"deleted_null_sn"`
	DeletedOverview int64 `json:"deleted_overview"`
	DeletedNodes    int64 `json:"deleted_nodes"`
}

// Models lists every table owned by the record store.
func Models() []any {
	return []any{
		&OverviewRecord{},
		&CycleStatsRecord{},
		&LedgerRecord{},
		&PersonNodeRecord{},
	}
}

func joinKey(parts ...string) string {
	return strings.Join(parts, "\x1f")
}
