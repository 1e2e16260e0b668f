package analytics

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/meseboard/internal/record/domain"
)

// Field accessors used as grouping keys.

func LedgerAmount(r domain.LedgerRecord) decimal.Decimal { return r.Amount }
func LedgerDepartment(r domain.LedgerRecord) string { return r.Department }
func LedgerCustomer(r domain.LedgerRecord) string { return r.CustomerName }
func LedgerCategory(r domain.LedgerRecord) string { return r.Category }
func LedgerResolution(r domain.LedgerRecord) string { return r.Resolution }
func OverviewDepartment(r domain.OverviewRecord) string { return r.Department }
func OverviewCustomer(r domain.OverviewRecord) string { return r.CustomerName }
func OverviewMaterial(r domain.OverviewRecord) string { return r.MaterialName }
func OverviewWarrantyType(r domain.OverviewRecord) string { return r.WarrantyType }
func OverviewFault(r domain.OverviewRecord) string { return FaultLabel(r.FaultDescription) }
func CycleDepartment(r domain.CycleStatsRecord) string { return r.Department }
func CycleCustomer(r domain.CycleStatsRecord) string { return r.CustomerName }
func CycleMaterialType(r domain.CycleStatsRecord) string { return r.MaterialType }
