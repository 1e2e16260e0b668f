package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/meseboard/internal/csvfile"
)

// Lookup returns the first non-empty cell among the aliases. Each alias is
// tried as an exact header and then against trimmed header names.
func Lookup(header []string, row csvfile.Row, aliases []string) string {
	for _, alias := range aliases {
		if v := row[alias]; v != "" {
			return v
		}
		for _, h := range header {
			if strings.TrimSpace(h) == alias && row[h] != "" {
				return row[h]
			}
		}
	}
	return ""
}

// HasColumn reports whether any alias names a header column.
func HasColumn(header []string, aliases []string) bool {
	for _, alias := range aliases {
		for _, h := range header {
			if h == alias || strings.TrimSpace(h) == alias {
				return true
			}
		}
	}
	return false
}

var timestampLayouts = []string{
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2T15:04:05",
	"2006-1-2",
}

// ParseTimestamp accepts "2025/7/16 9:27:22", "2025-11-20 16:00", plain dates
// and RFC 3339. Wall-clock values are read in loc. The result is UTC.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "/", "-"))
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseReal reads the leading number of a cell, so "2.12天" is 2.12.
// Anything unparseable is 0.
func ParseReal(raw string) float64 {
	m := numericPrefix.FindString(strings.TrimSpace(raw))
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ParseCount reads a non-negative whole count. Thousands separators are
// ignored and fractions truncated.
func ParseCount(raw string) int {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0
		}
		return n
	}
	v := ParseReal(s)
	if v <= 0 || v > math.MaxInt32 {
		return 0
	}
	return int(v)
}

var moneyStripper = strings.NewReplacer("¥", "", "￥", "", ",", "", "，", "", " ", "")

// ParseMoney reads an amount such as "¥1,234.50" with two decimal places.
func ParseMoney(raw string) decimal.Decimal {
	m := numericPrefix.FindString(moneyStripper.Replace(strings.TrimSpace(raw)))
	if m == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Zero
	}
	return d.Round(2)
}
