package packager

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	maxTitleBytes = 200
	fallbackName  = "article"
	stampLayout   = "2006-01-02T15:04:05.000Z"
	Extension     = ".epub"
)

var (
	illegalChars    = regexp.MustCompile(`[/?<>\\:*|"]`)
	controlChars    = regexp.MustCompile(`[\x00-\x1f\x80-\x9f]`)
	onlyDots        = regexp.MustCompile(`^\.+$`)
	windowsReserved = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[0-9]|lpt[0-9])(\..*)?$`)
	trailingDots    = regexp.MustCompile(`[. ]+$`)
)

// SanitizeTitle makes title safe to use as a file name on common filesystems.
func SanitizeTitle(title string) string {
	s := norm.NFC.String(title)
	s = illegalChars.ReplaceAllString(s, "")
	s = controlChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = truncateBytes(s, maxTitleBytes)
	s = trailingDots.ReplaceAllString(s, "")
	if s == "" || onlyDots.MatchString(s) || windowsReserved.MatchString(s) {
		return fallbackName
	}
	return s
}

// FormatStamp renders t like an ISO-8601 UTC timestamp with ':' and '.' turned into '-'.
func FormatStamp(t time.Time) string {
	stamp := t.UTC().Format(stampLayout)
	return strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
}

// Filename joins the sanitized title and the stamp.
func Filename(title string, t time.Time) string {
	return SanitizeTitle(title) + "_" + FormatStamp(t) + Extension
}

func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut])
}
