package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var htmlPolicy = bluemonday.StrictPolicy()

// SanitizeString trims input, drops null bytes and caps it at maxRunes.
func SanitizeString(input string, maxRunes int) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")

	if maxRunes > 0 {
		if r := []rune(input); len(r) > maxRunes {
			input = strings.TrimSpace(string(r[:maxRunes]))
		}
	}
	return input
}

// SanitizeHTML removes all HTML tags
func SanitizeHTML(input string) string {
	return htmlPolicy.Sanitize(input)
}

// SanitizeMessage prepares user chat text for storage and delivery. Markup
// is stripped but the text stays plain: entities escaped by the policy are
// decoded again before the length cap.
func SanitizeMessage(input string, maxRunes int) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return SanitizeString(html.UnescapeString(SanitizeHTML(input)), maxRunes)
}
