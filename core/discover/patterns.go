package discover

import (
	"regexp"
	"strconv"
	"strings"
)

// chapterPatterns qualifies a (text, href) pair as a chapter link. The list
// is ordered roughly by how often each form shows up in the wild; matching
// stops at the first hit so order only matters for readability. CJK and
// Korean ordinal forms sit alongside the English ones because translated
// novel sites routinely keep the original chapter glyphs in link text.
var chapterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)chapter\s*[\d.]+`),
	regexp.MustCompile(`(?i)ch\.\s*[\d.]+`),
	regexp.MustCompile(`(?i)episode\s*[\d.]+`),
	regexp.MustCompile(`(?i)part\s*[\d.]+`),
	regexp.MustCompile(`(?i)volume\s*[\d.]+`),
	regexp.MustCompile(`(?i)book\s*[\d.]+`),
	regexp.MustCompile(`(?i)section\s*[\d.]+`),
	regexp.MustCompile(`(?i)prologue`),
	regexp.MustCompile(`(?i)epilogue`),
	regexp.MustCompile(`(?i)introduction`),
	regexp.MustCompile(`(?i)preface`),
	regexp.MustCompile(`第\s*[\d一二三四五六七八九十百千零〇两]+\s*[章节話话回]`),
	regexp.MustCompile(`[\d.]+\s*話`),
	regexp.MustCompile(`[\d.]+\s*화`),
}

// bareNumber matches link text that is nothing but a chapter number,
// common on minimal table-of-contents pages.
var bareNumber = regexp.MustCompile(`^\s*\d+(\.\d+)?\s*$`)

// isChapterLink applies the naming heuristics to the combined text+href,
// the same way a human scans a listing page: either part may carry the
// ordinal marker.
func isChapterLink(text, href string) bool {
	combined := strings.ToLower(text + " " + href)
	for _, pattern := range chapterPatterns {
		if pattern.MatchString(combined) {
			return true
		}
	}
	return bareNumber.MatchString(text)
}

// chapterLinkSelectors are tried in priority order before falling back to
// scanning every link on the page. Explicit chapter-list containers come
// first so a site with both a ToC and a "latest posts" sidebar yields the
// ToC.
var chapterLinkSelectors = []string{
	`a[href*="chapter"]`,
	`a[href*="ch"]`,
	`a[href*="episode"]`,
	`a[href*="part"]`,
	".chapter-list a",
	".toc a",
	".table-of-contents a",
	".chapters a",
	".chapter-item a",
	"#chapter-list a",
	".story-parts a",
	".volume-list a",
	`[class*="chapter"] a`,
	`[id*="chapter"] a`,
	"ul.chapters li a",
	".entry-content a",
	"article a",
}

var firstNumber = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

// extractNumber pulls the first number out of a chapter title for the
// numeric-aware sort. Titles without one sort after all numbered titles,
// keeping their discovery order.
func extractNumber(text string) (float64, bool) {
	m := firstNumber.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
