package export

import (
	"fmt"
	"regexp"
	"time"
)

const maxFilenameLen = 200

var unsafeFilenameChars = regexp.MustCompile(`[/\\:*?"<>| ]`)

// SanitizeFilename replaces filesystem-unsafe characters and spaces
// with underscores and truncates to 200 characters.
func SanitizeFilename(name string) string {
	s := unsafeFilenameChars.ReplaceAllString(name, "_")
	if len(s) > maxFilenameLen {
		s = s[:maxFilenameLen]
	}
	return s
}

// Filename builds the download name for an export file:
// {sanitized-name}_{YYYY-MM-DD_HHMMSS}.{ext}.
func Filename(dbName string, format Format, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s",
		SanitizeFilename(dbName),
		now.Format("2006-01-02_150405"),
		format.Extension())
}
