package domain

import (
	"errors"
	"strings"
)

// Kind names an uploadable dataset.
type Kind string

const (
	KindOverview   Kind = "overview"
	KindPersonNode Kind = "person_node"
	KindCycleStats Kind = "cycle_stats"
	KindLedger     Kind = "ledger"
)

var ErrUnknownKind = errors.New("unknown_kind")

func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindOverview:
		return KindOverview, nil
	case KindPersonNode, "person_nodes", "personnode":
		return KindPersonNode, nil
	case KindCycleStats, "cycle":
		return KindCycleStats, nil
	case KindLedger:
		return KindLedger, nil
	default:
		return "", ErrUnknownKind
	}
}

// Folder is the archive folder for the dataset. Unknown kinds land in misc.
func (k Kind) Folder() string {
	switch k {
	case KindOverview:
		return "overview"
	case KindPersonNode:
		return "person_nodes"
	case KindCycleStats:
		return "cycle_stats"
	case KindLedger:
		return "ledger"
	default:
		return "misc"
	}
}

// Label is the operator-facing name used in upload logs.
func (k Kind) Label() string {
	switch k {
	case KindOverview:
		return "概况数据"
	case KindPersonNode:
		return "人员节点数据"
	case KindCycleStats:
		return "周期统计数据"
	case KindLedger:
		return "年度台账数据"
	default:
		return string(k)
	}
}

func (k Kind) Table() string {
	switch k {
	case KindOverview:
		return OverviewRecord{}.TableName()
	case KindPersonNode:
		return PersonNodeRecord{}.TableName()
	case KindCycleStats:
		return CycleStatsRecord{}.TableName()
	case KindLedger:
		return LedgerRecord{}.TableName()
	default:
		return ""
	}
}

// ConflictColumns is the natural key the upsert resolves on.
func (k Kind) ConflictColumns() []string {
	switch k {
	case KindOverview:
		return []string{"serial_number", "material_name", "drawing_number"}
	case KindPersonNode:
		return []string{"serial_number", "start_time", "end_time", "node", "person_name"}
	case KindCycleStats:
		return []string{"serial_number", "stat_month"}
	case KindLedger:
		return []string{"serial_number", "report_year"}
	default:
		return nil
	}
}

// UpdateColumns are overwritten when the natural key already exists.
func (k Kind) UpdateColumns() []string {
	switch k {
	case KindOverview:
		return []string{"report_year", "department", "customer_name", "installation_stage", "warranty_count", "warranty_type", "fault_description", "updated_at"}
	case KindPersonNode:
		return []string{"updated_at"}
	case KindCycleStats:
		return []string{"hq_dispatch_time", "hq_audit_time", "branch_submit_time", "supp_invest_time", "branch_invest_time", "ship_time", "total_cycle_time", "department", "customer_name", "material_type", "updated_at"}
	case KindLedger:
		return []string{"department", "customer_name", "warranty_type", "material_name", "quantity", "amount", "resolution", "status", "category", "cause", "apply_date", "updated_at"}
	default:
		return nil
	}
}

// Truncatable reports whether maintenance may wipe the dataset wholesale.
func (k Kind) Truncatable() bool {
	return k == KindOverview || k == KindPersonNode
}
