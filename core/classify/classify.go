// Package classify labels fetched HTML as novel, technical, article, manga
// or unknown using keyword and structural heuristics. The label drives the
// extraction strategy and the recommended output format; it is deterministic,
// there is no learned component.
package classify

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/asanlama56-stack/WebToEpub-Miyo/core"
)

var technicalKeywords = []string{
	"documentation", "api", "function", "class", "method", "parameter",
	"return", "example", "code", "tutorial", "guide", "reference",
}

var novelKeywords = []string{
	"novel", "chapter", "story", "character", "said", "replied",
	"whispered", "shouted", "fiction", "fanfic",
}

var articleKeywords = []string{
	"blog", "post", "article", "news", "author", "published", "written by",
}

// mangaDomains short-circuits classification for hosts that only ever
// serve sequential-image content.
var mangaDomains = []string{
	"mangadex", "manganato", "mangakakalot", "webtoons.com", "mangahere",
	"mangapark", "asurascans", "toonily", "bato.to",
}

var mangaURLKeywords = []string{"manga", "manhwa", "manhua", "webtoon", "comic"}

// mangaImageThreshold is the image-density bar for the heuristic path:
// a reader page is a long run of <img> elements and little else.
const mangaImageThreshold = 15

// Classify scores the page text and URL against the keyword sets and
// returns the best label. Ties break technical > novel > article; a page
// matching nothing is unknown.
func Classify(doc *goquery.Document, url string) core.ContentType {
	urlLower := strings.ToLower(url)

	if isManga(doc, urlLower) {
		return core.ContentManga
	}

	text := strings.ToLower(doc.Text())

	score := func(keywords []string) int {
		n := 0
		for _, kw := range keywords {
			if strings.Contains(text, kw) || strings.Contains(urlLower, kw) {
				n++
			}
		}
		return n
	}

	technicalScore := score(technicalKeywords)
	novelScore := score(novelKeywords)
	articleScore := score(articleKeywords)

	// Many code blocks is a strong structural signal regardless of prose.
	if doc.Find("pre code").Length() > 3 || doc.Find("code").Length() > 10 {
		technicalScore += 5
	}

	switch {
	case technicalScore > novelScore && technicalScore > articleScore:
		return core.ContentTechnical
	case novelScore > technicalScore && novelScore > articleScore:
		return core.ContentNovel
	case articleScore > 0:
		return core.ContentArticle
	}
	return core.ContentUnknown
}

// ClassifyHTML is Classify for callers holding raw HTML.
func ClassifyHTML(html, url string) core.ContentType {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return core.ContentUnknown
	}
	return Classify(doc, url)
}

func isManga(doc *goquery.Document, urlLower string) bool {
	for _, domain := range mangaDomains {
		if strings.Contains(urlLower, domain) {
			return true
		}
	}

	keywordHit := false
	for _, kw := range mangaURLKeywords {
		if strings.Contains(urlLower, kw) {
			keywordHit = true
			break
		}
	}
	return keywordHit && doc.Find("img").Length() >= mangaImageThreshold
}

// RecommendFormat maps a content type to the output format that suits it:
// fixed-layout PDF for technical material, reflowable EPUB for everything
// else, unknown included.
func RecommendFormat(contentType core.ContentType) core.OutputFormat {
	if contentType == core.ContentTechnical {
		return core.FormatPDF
	}
	return core.FormatEPUB
}
