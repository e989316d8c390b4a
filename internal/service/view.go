package service

import (
	"strings"

	"github.com/invitapp/guestlist-server/internal/models"
)

// OrderColumns computes the display order for the headers actually present,
// given a preferred ordering. Three passes over an explicit placed-set:
//  1. exact match (case- and trim-insensitive) per preferred entry, in order
//  2. fuzzy match: either string contains the other; one preferred entry may
//     place several headers, each header is placed at most once
//  3. remaining headers appended in their original order
//
// The output is always a permutation of present: every header appears
// exactly once, regardless of the preferred list's content.
func OrderColumns(preferred, present []string) []string {
	placed := make(map[int]bool, len(present))
	ordered := make([]string, 0, len(present))

	for _, want := range preferred {
		w := normalizeHeader(want)
		for i, have := range present {
			if !placed[i] && normalizeHeader(have) == w {
				placed[i] = true
				ordered = append(ordered, have)
				break
			}
		}
	}

	for _, want := range preferred {
		w := normalizeHeader(want)
		for i, have := range present {
			if placed[i] {
				continue
			}
			h := normalizeHeader(have)
			if strings.Contains(h, w) || strings.Contains(w, h) {
				placed[i] = true
				ordered = append(ordered, have)
			}
		}
	}

	for i, have := range present {
		if !placed[i] {
			ordered = append(ordered, have)
		}
	}

	return ordered
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ConfirmedSet derives the identifiers of confirmed guests from a snapshot
// of the store. It is recomputed in full on every load, never patched.
func ConfirmedSet(guests []models.Guest) []string {
	var confirmed []string
	for _, g := range guests {
		if g.Confirmed {
			confirmed = append(confirmed, g.GuestID)
		}
	}
	return confirmed
}

// FilterRows returns the rows where any column value contains the search
// term, case-insensitively. An empty term matches everything.
func FilterRows(rows []models.DisplayRow, term string) []models.DisplayRow {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return rows
	}

	filtered := make([]models.DisplayRow, 0, len(rows))
	for _, row := range rows {
		for _, value := range row.Data {
			if strings.Contains(strings.ToLower(value), term) {
				filtered = append(filtered, row)
				break
			}
		}
	}
	return filtered
}
