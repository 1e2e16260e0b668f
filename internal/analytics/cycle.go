package analytics

import (
	"sort"
	"time"

	"github.com/smallbiznis/meseboard/internal/record/domain"
)

const (
	componentTrendMonths = 6
	// DefaultLongCycleDays marks a ticket as a long cycle when its total
	// exceeds it.
	DefaultLongCycleDays = 20.0
	longCycleListLimit   = 20
)

// TrendPoint is the per-month ticket count and average cycle time.
type TrendPoint struct {
	Month   string `json:"month"`
	Count   int    `json:"count"`
	AvgTime string `json:"avgTime"`
}

// MonthlyTrend groups cycle records by stat month, ascending.
func MonthlyTrend(records []domain.CycleStatsRecord) []TrendPoint {
	type acc struct {
		count int
		total float64
	}
	months := map[string]*acc{}
	for _, r := range records {
		a, ok := months[r.StatMonth]
		if !ok {
			a = &acc{}
			months[r.StatMonth] = a
		}
		a.count++
		a.total += r.TotalCycleTime
	}

	out := make([]TrendPoint, 0, len(months))
	for month, a := range months {
		out = append(out, TrendPoint{Month: month, Count: a.count, AvgTime: Fixed2(a.total / float64(a.count))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// AverageCycleTime is the rounded mean total cycle time.
func AverageCycleTime(records []domain.CycleStatsRecord) float64 {
	return Mean(totals(records))
}

// ComponentPoint holds per-stage averages for one month.
type ComponentPoint struct {
	Month    string `json:"month"`
	AvgAudit string `json:"avg_audit"`
	AvgShip  string `json:"avg_ship"`
	AvgSMEC  string `json:"avg_smec"`
	AvgTotal string `json:"avg_total"`
}

// ComponentTrend averages audit, ship, branch-side and total time per month
// and keeps the latest six months, ascending.
func ComponentTrend(records []domain.CycleStatsRecord) []ComponentPoint {
	type acc struct {
		count                    int
		audit, ship, smec, total float64
	}
	months := map[string]*acc{}
	for _, r := range records {
		a, ok := months[r.StatMonth]
		if !ok {
			a = &acc{}
			months[r.StatMonth] = a
		}
		a.count++
		a.audit += r.HQAuditTime
		a.ship += r.ShipTime
		a.smec += r.SMECTime()
		a.total += r.TotalCycleTime
	}

	out := make([]ComponentPoint, 0, len(months))
	for month, a := range months {
		n := float64(a.count)
		out = append(out, ComponentPoint{
			Month:    month,
			AvgAudit: Fixed2(a.audit / n),
			AvgShip:  Fixed2(a.ship / n),
			AvgSMEC:  Fixed2(a.smec / n),
			AvgTotal: Fixed2(a.total / n),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	if len(out) > componentTrendMonths {
		out = out[len(out)-componentTrendMonths:]
	}
	return out
}

// MonthSummary is the analysis of one stat month.
type MonthSummary struct {
	Month           string                    `json:"month"`
	TotalCount      int                       `json:"totalCount"`
	AvgCycleTime    float64                   `json:"avgCycleTime"`
	MedianCycleTime float64                   `json:"medianCycleTime"`
	LongCycleCount  int                       `json:"longCycleCount"`
	LongCycleList   []domain.CycleStatsRecord `json:"longCycleList"`
}

// SummarizeMonth computes the month KPIs. Records whose total exceeds
// threshold are long cycles, listed longest first and capped at twenty.
func SummarizeMonth(month string, records []domain.CycleStatsRecord, threshold float64) MonthSummary {
	if threshold <= 0 {
		threshold = DefaultLongCycleDays
	}
	summary := MonthSummary{Month: month, LongCycleList: []domain.CycleStatsRecord{}}
	if len(records) == 0 {
		return summary
	}

	values := totals(records)
	summary.TotalCount = len(records)
	summary.AvgCycleTime = Mean(values)
	summary.MedianCycleTime = Median(values)

	var long []domain.CycleStatsRecord
	for _, r := range records {
		if r.TotalCycleTime > threshold {
			long = append(long, r)
		}
	}
	sort.SliceStable(long, func(i, j int) bool { return long[i].TotalCycleTime > long[j].TotalCycleTime })
	summary.LongCycleCount = len(long)
	summary.LongCycleList = append(summary.LongCycleList, TopN(long, longCycleListLimit)...)
	return summary
}

// Stage is one labelled component of a ticket's cycle.
type Stage struct {
	Label string  `json:"label"`
	Days  float64 `json:"days"`
	Total bool    `json:"total,omitempty"`
}

// Stages breaks a cycle record into its labelled components. A nil record
// yields zeros.
func Stages(r *domain.CycleStatsRecord) []Stage {
	if r == nil {
		r = &domain.CycleStatsRecord{}
	}
	return []Stage{
		{Label: "总部制造发运", Days: r.HQDispatchTime},
		{Label: "总部审核处置", Days: r.HQAuditTime},
		{Label: "分公司审核提交", Days: r.BranchSubmitTime},
		{Label: "补充调查", Days: r.SuppInvestTime},
		{Label: "分公司现场调查", Days: r.BranchInvestTime},
		{Label: "全周期总计", Days: r.TotalCycleTime, Total: true},
	}
}

// StepDuration is one workflow step with its elapsed days.
type StepDuration struct {
	Node      string     `json:"node"`
	Person    string     `json:"person_name"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Open      bool       `json:"open"`
	Days      float64    `json:"days"`
	// Percent is the step's length relative to the longest step, capped at 100.
	Percent float64 `json:"percent"`
}

// StepDurations measures each node. A sentinel or zero end time means the
// step is still open and is measured up to now. Negative spans clamp to zero.
func StepDurations(nodes []domain.PersonNodeRecord, now time.Time) []StepDuration {
	out := make([]StepDuration, len(nodes))
	longest := 0.0
	for i, n := range nodes {
		step := StepDuration{Node: n.Node, Person: n.PersonName, StartTime: n.StartTime}
		end := n.EndTime
		if end.IsZero() || end.Equal(domain.SentinelTime) {
			end = now
			step.Open = true
		} else {
			e := n.EndTime
			step.EndTime = &e
		}
		days := end.Sub(n.StartTime).Hours() / 24
		if days < 0 {
			days = 0
		}
		step.Days = Round2(days)
		if days > longest {
			longest = days
		}
		out[i] = step
	}

	if longest == 0 {
		longest = 1
	}
	for i := range out {
		pct := out[i].Days / longest * 100
		if pct > 100 {
			pct = 100
		}
		out[i].Percent = Round1(pct)
	}
	return out
}

func totals(records []domain.CycleStatsRecord) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.TotalCycleTime
	}
	return out
}
