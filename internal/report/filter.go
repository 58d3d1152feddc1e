package report

import (
	"strings"

	"golang.org/x/text/cases"
)

// FilterByLevels keeps rows whose level is in levels. Selecting no level or
// every level returns rows unchanged.
func FilterByLevels[T Scored](rows []T, levels []MaturityLevel) []T {
	want := make(map[MaturityLevel]bool, len(levels))
	for _, l := range levels {
		want[l] = true
	}
	if len(want) == 0 || coversAll(want) {
		return rows
	}

	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if want[r.Band()] {
			out = append(out, r)
		}
	}
	return out
}

// FilterByName keeps rows whose section name contains query, ignoring case.
// A blank query returns rows unchanged.
func FilterByName[T Scored](rows []T, query string) []T {
	query = strings.TrimSpace(query)
	if query == "" {
		return rows
	}

	fold := cases.Fold()
	needle := fold.String(query)

	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if strings.Contains(fold.String(r.Section()), needle) {
			out = append(out, r)
		}
	}
	return out
}

func coversAll(set map[MaturityLevel]bool) bool {
	for _, l := range Levels {
		if !set[l] {
			return false
		}
	}
	return true
}
