package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	ErrInvalidStatMonth = errors.New("invalid_stat_month")

	serialYearPattern    = regexp.MustCompile(`(\d{2})`)
	statMonthPattern     = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
	filenameMonthPattern = regexp.MustCompile(`(\d{2})年(\d{1,2})月`)
	ledgerYearPatterns   = []*regexp.Regexp{
		regexp.MustCompile(`（(\d{4})）`),
		regexp.MustCompile(`\((\d{4})\)`),
		regexp.MustCompile(`(\d{4})`),
	}
)

// OverviewYear takes the first two-digit run of the serial as the year within
// the 2000s, so "MBY25-0001" is 2025.
func OverviewYear(serial string, fallback int) int {
	m := serialYearPattern.FindStringSubmatch(serial)
	if m == nil {
		return fallback
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return fallback
	}
	return 2000 + n
}

// LedgerYear reads the report year from the file name, preferring a
// parenthesised year.
func LedgerYear(filename string, fallback int) int {
	for _, p := range ledgerYearPatterns {
		if m := p.FindStringSubmatch(filename); m != nil {
			if y, err := strconv.Atoi(m[1]); err == nil {
				return y
			}
		}
	}
	return fallback
}

// MonthFromFilename reads "25年11月" style markers as "2025-11".
func MonthFromFilename(filename string) (string, bool) {
	m := filenameMonthPattern.FindStringSubmatch(filename)
	if m == nil {
		return "", false
	}
	month, err := strconv.Atoi(m[2])
	if err != nil || month < 1 || month > 12 {
		return "", false
	}
	return fmt.Sprintf("20%s-%02d", m[1], month), true
}

// ValidStatMonth reports whether s is a YYYY-MM month.
func ValidStatMonth(s string) bool {
	return statMonthPattern.MatchString(s)
}

// ResolveStatMonth picks an explicit override, then the file name, then the
// current month of now.
func ResolveStatMonth(override, filename string, now time.Time) (string, error) {
	if override != "" {
		if !ValidStatMonth(override) {
			return "", ErrInvalidStatMonth
		}
		return override, nil
	}
	if month, ok := MonthFromFilename(filename); ok {
		return month, nil
	}
	return now.Format("2006-01"), nil
}
