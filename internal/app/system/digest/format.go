package digest

import (
	"strings"
	"time"
	"unicode/utf8"
)

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Escape escapes the characters Telegram's HTML parse mode treats specially.
func Escape(s string) string {
	return htmlEscaper.Replace(s)
}

// Zone returns a fixed zone for an offset in minutes east of UTC.
func Zone(offsetMinutes int) *time.Location {
	return time.FixedZone("", offsetMinutes*60)
}

// TodayWindow returns the reader's local calendar day containing now as an
// inclusive absolute range [start, start+24h-1ms].
func TodayWindow(now time.Time, offsetMinutes int) (start, end time.Time) {
	local := now.In(Zone(offsetMinutes))
	start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location()).UTC()
	end = start.Add(24*time.Hour - time.Millisecond)
	return start, end
}

// FormatDue renders due in the reader's zone: "HH:MM" when it falls on the
// reader's current day, "DD.MM HH:MM" otherwise.
func FormatDue(due, now time.Time, offsetMinutes int) string {
	start, end := TodayWindow(now, offsetMinutes)
	local := due.In(Zone(offsetMinutes))
	if !due.Before(start) && !due.After(end) {
		return local.Format("15:04")
	}
	return local.Format("02.01 15:04")
}

// FormatDate renders due as "DD.MM HH:MM" in the reader's zone.
func FormatDate(due time.Time, offsetMinutes int) string {
	return due.In(Zone(offsetMinutes)).Format("02.01 15:04")
}

// Shorten cuts s to at most n runes, ending with "…" when cut.
func Shorten(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimRight(string(r[:n-1]), " ") + "…"
}

// VisibleLength counts the characters Telegram sees in HTML-mode text: tags
// are dropped and each entity counts as one.
func VisibleLength(s string) int {
	n := 0
	for i := 0; i < len(s); {
		switch s[i] {
		case '<':
			if j := strings.IndexByte(s[i:], '>'); j >= 0 {
				i += j + 1
				continue
			}
		case '&':
			if j := strings.IndexByte(s[i:], ';'); j > 0 && j <= 8 {
				n++
				i += j + 1
				continue
			}
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		n++
		i += size
	}
	return n
}
