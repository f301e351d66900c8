// Package htmltext flattens sanitized HTML into plain text.
// Markdown is the intermediate form: html-to-markdown handles the HTML
// parsing edge cases, and the Markdown syntax is then stripped off. The
// flattened text feeds word counts and the PDF assembler's body text.
package htmltext

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

var (
	headingRegex = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
	emphasisRegex = regexp.MustCompile(`\*{1,3}([^*]+)\*{1,3}`)
	linkRegex     = regexp.MustCompile(`\[([^\]]*)\]\(([^)]+)\)`)
	inlineCode    = regexp.MustCompile("`([^`]+)`")
	blankRuns     = regexp.MustCompile(`\n{3,}`)
)

// ToText converts an HTML fragment into plain text with paragraph breaks
// preserved. Conversion failures degrade to a crude tag strip rather than
// erroring: a word count is never worth failing a chapter over.
func ToText(html string) string {
	markdown, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return stripTags(html)
	}
	return stripMarkdown(markdown)
}

// WordCount counts the whitespace-separated non-empty tokens of the
// flattened text.
func WordCount(html string) int {
	return len(strings.Fields(ToText(html)))
}

// stripMarkdown removes Markdown formatting, keeping the text content.
func stripMarkdown(md string) string {
	text := headingRegex.ReplaceAllString(md, "$2")
	text = emphasisRegex.ReplaceAllString(text, "$1")
	text = linkRegex.ReplaceAllString(text, "$1")
	text = strings.ReplaceAll(text, "```", "")
	text = inlineCode.ReplaceAllString(text, "$1")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

var tagRegex = regexp.MustCompile(`<[^>]*>`)

// stripTags is the fallback flattener for HTML the converter rejects.
func stripTags(html string) string {
	text := tagRegex.ReplaceAllString(html, " ")
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}
