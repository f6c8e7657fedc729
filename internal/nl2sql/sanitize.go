package nl2sql

import (
	"regexp"
	"strings"
)

var taggedFence = regexp.MustCompile("(?i)```sql")

// SanitizeSQL strips code-fence markers and surrounding whitespace from model output.
// The statement itself is never validated.
func SanitizeSQL(raw string) string {
	cleaned := taggedFence.ReplaceAllString(raw, "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}
