package analytics

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/meseboard/internal/record/domain"
)

// AmountPoint is the money booked in one apply month.
type AmountPoint struct {
	Month  string          `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

// MonthlyAmount sums ledger amounts by the UTC month of apply_date. Rows
// without an apply date are skipped.
func MonthlyAmount(records []domain.LedgerRecord) []AmountPoint {
	index := map[string]int{}
	out := []AmountPoint{}
	for _, r := range records {
		if r.ApplyDate == nil {
			continue
		}
		month := r.ApplyDate.UTC().Format("2006-01")
		i, ok := index[month]
		if !ok {
			i = len(out)
			index[month] = i
			out = append(out, AmountPoint{Month: month, Amount: decimal.Zero})
		}
		out[i].Amount = out[i].Amount.Add(r.Amount)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	for i := range out {
		out[i].Amount = out[i].Amount.Round(2)
	}
	return out
}

// LedgerTotals are the money KPIs of a ledger year.
type LedgerTotals struct {
	Count     int             `json:"count"`
	Amount    decimal.Decimal `json:"amountTotal"`
	AvgAmount decimal.Decimal `json:"avgAmount"`
	CloseRate float64         `json:"closeRate"`
}

func SummarizeLedger(records []domain.LedgerRecord) LedgerTotals {
	totals := LedgerTotals{Count: len(records), Amount: decimal.Zero, AvgAmount: decimal.Zero}
	if len(records) == 0 {
		return totals
	}
	statuses := make([]string, len(records))
	for i, r := range records {
		totals.Amount = totals.Amount.Add(r.Amount)
		statuses[i] = r.Status
	}
	totals.AvgAmount = totals.Amount.Div(decimal.NewFromInt(int64(len(records)))).Round(2)
	totals.Amount = totals.Amount.Round(2)
	totals.CloseRate = CloseRate(statuses)
	return totals
}
