// Package normalize maps decoded CSV rows onto the four record kinds.
package normalize

import (
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/meseboard/internal/clock"
	"github.com/smallbiznis/meseboard/internal/config"
	"github.com/smallbiznis/meseboard/internal/csvfile"
	"github.com/smallbiznis/meseboard/internal/record/domain"
)

var ErrMissingKeyColumn = errors.New("missing_key_column")

// materialTypeMarker identifies the substrate flag ("基板" / "非基板") that
// cycle exports carry in an unnamed trailing column.
const materialTypeMarker = "基板"

type AliasSource interface {
	Get() config.IngestConfig
}

type Normalizer struct {
	aliases AliasSource
	loc     *time.Location
	clock   clock.Clock
}

func New(aliases AliasSource, loc *time.Location, clk clock.Clock) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Normalizer{aliases: aliases, loc: loc, clock: clk}
}

func (n *Normalizer) now() time.Time {
	return n.clock.Now().In(n.loc)
}

// Now is the normalizer's notion of the current time in its location.
func (n *Normalizer) Now() time.Time {
	return n.now()
}

func (n *Normalizer) Overview(table *csvfile.Table) ([]domain.OverviewRecord, error) {
	a := n.aliases.Get().Aliases.Overview
	if !HasColumn(table.Header, a[config.FieldSerial]) {
		return nil, ErrMissingKeyColumn
	}

	fallbackYear := n.now().Year()
	out := make([]domain.OverviewRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		get := func(field string) string { return Lookup(table.Header, row, a[field]) }
		serial := get(config.FieldSerial)
		if serial == "" {
			continue
		}
		out = append(out, domain.OverviewRecord{
			SerialNumber:      serial,
			ReportYear:        OverviewYear(serial, fallbackYear),
			Department:        get(config.FieldDepartment),
			CustomerName:      get(config.FieldCustomer),
			InstallationStage: get(config.FieldInstallationStage),
			MaterialName:      get(config.FieldMaterial),
			DrawingNumber:     get(config.FieldDrawing),
			WarrantyCount:     ParseCount(get(config.FieldWarrantyCount)),
			WarrantyType:      get(config.FieldWarrantyType),
			FaultDescription:  get(config.FieldFault),
		})
	}
	return out, nil
}

func (n *Normalizer) PersonNodes(table *csvfile.Table) ([]domain.PersonNodeRecord, error) {
	a := n.aliases.Get().Aliases.PersonNode
	if !HasColumn(table.Header, a[config.FieldSerial]) {
		return nil, ErrMissingKeyColumn
	}

	out := make([]domain.PersonNodeRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		get := func(field string) string { return Lookup(table.Header, row, a[field]) }
		serial := get(config.FieldSerial)
		if serial == "" {
			continue
		}
		out = append(out, domain.PersonNodeRecord{
			SerialNumber: serial,
			StartTime:    n.timeOrSentinel(get(config.FieldStart)),
			EndTime:      n.timeOrSentinel(get(config.FieldEnd)),
			Node:         get(config.FieldNode),
			PersonName:   get(config.FieldPerson),
		})
	}
	return out, nil
}

func (n *Normalizer) CycleStats(table *csvfile.Table, statMonth string) ([]domain.CycleStatsRecord, error) {
	a := n.aliases.Get().Aliases.CycleStats
	if !HasColumn(table.Header, a[config.FieldSerial]) {
		return nil, ErrMissingKeyColumn
	}

	out := make([]domain.CycleStatsRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		get := func(field string) string { return Lookup(table.Header, row, a[field]) }
		serial := get(config.FieldSerial)
		if serial == "" {
			continue
		}
		dispatch := ParseReal(get(config.FieldHQDispatch))
		out = append(out, domain.CycleStatsRecord{
			SerialNumber:     serial,
			StatMonth:        statMonth,
			HQDispatchTime:   dispatch,
			HQAuditTime:      ParseReal(get(config.FieldHQAudit)),
			BranchSubmitTime: ParseReal(get(config.FieldBranchSubmit)),
			SuppInvestTime:   ParseReal(get(config.FieldSuppInvest)),
			BranchInvestTime: ParseReal(get(config.FieldBranchInvest)),
			ShipTime:         dispatch,
			TotalCycleTime:   ParseReal(get(config.FieldTotalCycle)),
			Department:       get(config.FieldDepartment),
			CustomerName:     get(config.FieldCustomer),
			MaterialType:     DetectMaterialType(table.Header, row, a[config.FieldMaterialType]),
		})
	}
	return out, nil
}

func (n *Normalizer) Ledger(table *csvfile.Table, reportYear int) ([]domain.LedgerRecord, error) {
	a := n.aliases.Get().Aliases.Ledger
	if !HasColumn(table.Header, a[config.FieldSerial]) {
		return nil, ErrMissingKeyColumn
	}

	out := make([]domain.LedgerRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		get := func(field string) string { return Lookup(table.Header, row, a[field]) }
		serial := get(config.FieldSerial)
		if serial == "" {
			continue
		}
		rec := domain.LedgerRecord{
			SerialNumber: serial,
			ReportYear:   reportYear,
			Department:   get(config.FieldDepartment),
			CustomerName: get(config.FieldCustomer),
			WarrantyType: get(config.FieldWarrantyType),
			MaterialName: get(config.FieldMaterial),
			Quantity:     ParseCount(get(config.FieldQuantity)),
			Amount:       ParseMoney(get(config.FieldAmount)),
			Resolution:   get(config.FieldResolution),
			Status:       get(config.FieldStatus),
			Category:     get(config.FieldCategory),
			Cause:        get(config.FieldCause),
		}
		if t, ok := ParseTimestamp(get(config.FieldApplyDate), n.loc); ok {
			rec.ApplyDate = &t
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReportYearFor resolves the ledger partition from the file name.
func (n *Normalizer) ReportYearFor(filename string) int {
	return LedgerYear(filename, n.now().Year())
}

// StatMonthFor resolves the cycle partition.
func (n *Normalizer) StatMonthFor(override, filename string) (string, error) {
	return ResolveStatMonth(strings.TrimSpace(override), filename, n.now())
}

func (n *Normalizer) timeOrSentinel(raw string) time.Time {
	if t, ok := ParseTimestamp(raw, n.loc); ok {
		return t
	}
	return domain.SentinelTime
}

// DetectMaterialType prefers a labelled column and otherwise takes the last
// cell, in header order, that mentions the substrate marker.
func DetectMaterialType(header []string, row csvfile.Row, aliases []string) string {
	if v := Lookup(header, row, aliases); v != "" {
		return v
	}
	found := ""
	for _, h := range header {
		if v := row[h]; strings.Contains(v, materialTypeMarker) {
			found = v
		}
	}
	return found
}
