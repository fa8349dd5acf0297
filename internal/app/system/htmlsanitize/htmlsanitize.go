// Package htmlsanitize reduces user input to plain text before it is stored.
//
// Titles, focus notes and team names are later embedded in HTML-formatted
// chat messages; stripping markup on write keeps stored values free of tags
// and the renderer escapes what remains.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// PlainText strips every tag, decodes entities and trims surrounding space.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}
