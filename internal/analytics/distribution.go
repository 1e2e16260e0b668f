// Package analytics holds the pure aggregation functions behind the dashboard
// and the monthly analysis. Nothing here touches the store.
package analytics

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Unknown       = "未知"
	NoDescription = "未描述"

	faultLabelRunes = 20
)

// Bucket is one row of a frequency distribution.
type Bucket struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// AmountBucket is one row of a money breakdown.
type AmountBucket struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

// Share is a bucket with its whole-number percentage of the total.
type Share struct {
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Percent int     `json:"percent"`
}

// TopItem is the leader of a distribution.
type TopItem struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Label substitutes fallback for a blank value.
func Label(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// FaultLabel shortens a fault description for ranking charts.
func FaultLabel(desc string) string {
	desc = Label(desc, NoDescription)
	runes := []rune(desc)
	if len(runes) > faultLabelRunes {
		return string(runes[:faultLabelRunes]) + "..."
	}
	return desc
}

// CountBy groups items by key, blank keys counting as Unknown. The result is
// ordered by count descending; ties keep first-seen order.
func CountBy[T any](items []T, key func(T) string) []Bucket {
	index := map[string]int{}
	var out []Bucket
	for _, item := range items {
		k := Label(key(item), Unknown)
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, Bucket{Name: k})
		}
		out[i].Value++
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Value > out[b].Value })
	if out == nil {
		return []Bucket{}
	}
	return out
}

// SumBy adds amounts per key, blank keys counting as Unknown. Ordered by
// amount descending with first-seen tie order.
func SumBy[T any](items []T, key func(T) string, amount func(T) decimal.Decimal) []AmountBucket {
	index := map[string]int{}
	out := []AmountBucket{}
	for _, item := range items {
		k := Label(key(item), Unknown)
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, AmountBucket{Name: k, Value: decimal.Zero})
		}
		out[i].Value = out[i].Value.Add(amount(item))
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Value.GreaterThan(out[b].Value) })
	for i := range out {
		out[i].Value = out[i].Value.Round(2)
	}
	return out
}

// TopN truncates a sorted slice to n entries. n <= 0 keeps everything.
func TopN[T any](items []T, n int) []T {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[:n]
}

// Leader returns the first bucket, or N/A when there is none.
func Leader(buckets []Bucket) TopItem {
	if len(buckets) == 0 {
		return TopItem{Name: "N/A"}
	}
	return TopItem{Name: buckets[0].Name, Count: buckets[0].Value}
}

// Total sums bucket counts.
func Total(buckets []Bucket) int {
	n := 0
	for _, b := range buckets {
		n += b.Value
	}
	return n
}

// Shares converts counts into whole-number percentages. An empty total yields 0%.
func Shares(buckets []Bucket) []Share {
	total := Total(buckets)
	out := make([]Share, len(buckets))
	for i, b := range buckets {
		out[i] = Share{Name: b.Name, Value: float64(b.Value)}
		if total > 0 {
			out[i].Percent = int(decimal.NewFromInt(int64(b.Value) * 100).
				Div(decimal.NewFromInt(int64(total))).Round(0).IntPart())
		}
	}
	return out
}

// AmountShares converts money buckets into whole-number percentages.
func AmountShares(buckets []AmountBucket) []Share {
	total := decimal.Zero
	for _, b := range buckets {
		total = total.Add(b.Value)
	}
	out := make([]Share, len(buckets))
	for i, b := range buckets {
		out[i] = Share{Name: b.Name, Value: b.Value.InexactFloat64()}
		if total.IsPositive() {
			out[i].Percent = int(b.Value.Mul(decimal.NewFromInt(100)).Div(total).Round(0).IntPart())
		}
	}
	return out
}

// Distinct lists the non-blank values of key in first-seen order, for filter
// option lists.
func Distinct[T any](items []T, key func(T) string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, item := range items {
		v := key(item)
		if strings.TrimSpace(v) == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
