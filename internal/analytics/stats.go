package analytics

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round1 rounds half away from zero to one decimal.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Fixed2 formats v with exactly two decimals.
func Fixed2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Mean is the rounded average, 0 for no values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Round2(sum(values) / float64(len(values)))
}

// Median averages the two middle values of an even-length input.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return Round2((sorted[mid-1] + sorted[mid]) / 2)
}

// IsClosed reports whether a ledger status reads as closed.
func IsClosed(status string) bool {
	return strings.Contains(status, "结")
}

// CloseRate is the percentage of closed statuses, one decimal.
func CloseRate(statuses []string) float64 {
	if len(statuses) == 0 {
		return 0
	}
	closed := 0
	for _, s := range statuses {
		if IsClosed(s) {
			closed++
		}
	}
	return Round1(float64(closed) / float64(len(statuses)) * 100)
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}
