package parser

import (
	"fmt"
	"strings"

	"github.com/invitapp/guestlist-server/internal/models"
)

// identifier header tokens, matched case-insensitively as substrings
var idTokens = []string{"id", "código", "codigo"}

// Normalize produces the final (headers, rows) used for persistence:
// header whitespace trimmed, blank headers dropped, rows blank in every
// surviving column dropped. It is idempotent, so re-normalizing already
// parsed output is a no-op.
func Normalize(headers []string, rows []models.GuestRow) ([]string, []models.GuestRow) {
	type rename struct {
		original string
		trimmed  string
	}

	var outHeaders []string
	var renames []rename
	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		trimmed := strings.TrimSpace(h)
		// Headers trimming to the same name keep the first occurrence only
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		outHeaders = append(outHeaders, trimmed)
		renames = append(renames, rename{original: h, trimmed: trimmed})
	}

	var outRows []models.GuestRow
	for _, row := range rows {
		out := make(models.GuestRow, len(outHeaders))
		blank := true
		for _, r := range renames {
			value := row[r.original]
			if value == "" && r.original != r.trimmed {
				value = row[r.trimmed]
			}
			out[r.trimmed] = value
			if strings.TrimSpace(value) != "" {
				blank = false
			}
		}
		if !blank {
			outRows = append(outRows, out)
		}
	}

	return outHeaders, outRows
}

// DeriveGuestID computes the stable identifier for a row. Headers are
// scanned in order for one containing "id", "código" or "codigo"
// (case-insensitive); the first such header with a non-blank cell wins.
// Otherwise the identifier is synthesized from the row's 1-based position
// in the parsed batch.
func DeriveGuestID(headers []string, row models.GuestRow, position int) string {
	for _, header := range headers {
		lower := strings.ToLower(header)
		for _, token := range idTokens {
			if strings.Contains(lower, token) {
				if value := strings.TrimSpace(row[header]); value != "" {
					return value
				}
				break
			}
		}
	}
	return fmt.Sprintf("guest_%d", position)
}
