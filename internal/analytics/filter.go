package analytics

import "strings"

// All is the filter value meaning "no restriction".
const All = "全部"

// Matches reports whether value passes filter. Blank and All match anything.
func Matches(filter, value string) bool {
	filter = strings.TrimSpace(filter)
	return filter == "" || filter == All || filter == value
}

// Options prefixes the distinct values with All, as offered to the user.
func Options(values []string) []string {
	return append([]string{All}, values...)
}

// Filter keeps the items accepted by keep.
func Filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
