package domain

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

const listTextLen = 50

var whitespaceRun = regexp.MustCompile(`\s+`)

// ListText returns the card front as a single plain-text line for lists.
// Tags are stripped, line breaks removed, whitespace runs collapsed and the
// result truncated to 50 runes with a trailing "...".
func (c Card) ListText() string {
	return ShortenText(c.Front)
}

// ShortenText applies the ListText cleanup to arbitrary card content.
func ShortenText(text string) string {
	out := StripHTML(text)
	out = strings.TrimSpace(out)
	out = strings.NewReplacer("\r\n", "", "\n", "", "\r", "").Replace(out)
	out = whitespaceRun.ReplaceAllString(out, " ")

	runes := []rune(out)
	if len(runes) < listTextLen {
		return out
	}
	return string(runes[:listTextLen]) + "..."
}

// StripHTML returns the text content of an HTML fragment.
func StripHTML(fragment string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}
