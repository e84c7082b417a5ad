// internal/automation/normalize.go
package automation

import (
	"strings"
)

// NormalizeType canonicalizes a raw registration type: uppercase, trimmed,
// each space replaced by "_", and anything outside [A-Z0-9_] dropped.
// Runs of spaces are not collapsed and hyphens are dropped, not converted.
// NormalizeType(NormalizeType(x)) == NormalizeType(x).
func NormalizeType(raw string) string {
	s := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(raw)), " ", "_")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
