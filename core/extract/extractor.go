// Package extract pulls the readable body out of a chapter page. Boilerplate
// regions are stripped first, then a prioritized list of content selectors is
// tried, falling back to the whole body when none yields a substantial
// region. The result is sanitized against an allow-list before it is handed
// to the assemblers. Manga pages take a separate path that collects the
// ordered page images instead of prose.
package extract

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"

	"github.com/asanlama56-stack/WebToEpub-Miyo/core"
	"github.com/asanlama56-stack/WebToEpub-Miyo/core/htmltext"
)

// minContentLength is the bar a selector match has to clear before it is
// trusted over the full body. Nav fragments and teaser blurbs sit below it.
const minContentLength = 500

// removeSelectors name the page regions that are never chapter content.
// header keeps its chapter-header exception because some reader themes put
// the chapter title inside a <header> element.
var removeSelectors = []string{
	"script",
	"style",
	"noscript",
	"iframe",
	"nav",
	"header:not(.chapter-header)",
	"footer",
	".ads",
	".advertisement",
	".social-share",
	".comments",
	".sidebar",
	".navigation",
	".pagination",
	".related-posts",
	`[class*="ad-"]`,
	`[id*="ad-"]`,
	`[class*="banner"]`,
	".share-buttons",
	".author-box",
	".widget",
	".popup",
	".modal",
}

// contentSelectors are tried in order; the first one whose region exceeds
// minContentLength wins. Specific reader-theme classes come before the
// generic structural elements.
var contentSelectors = []string{
	".chapter-content",
	".entry-content",
	".post-content",
	".story-content",
	".reading-content",
	".text-content",
	".novel-content",
	"#chapter-content",
	"#content",
	"article.post",
	"article",
	".content",
	"main",
	".prose",
	`[class*="content"]`,
	`[class*="chapter"]`,
}

// lazyImageAttrs are checked before src because lazy-loading themes leave a
// placeholder in src and park the real URL in a data attribute.
var lazyImageAttrs = []string{"data-src", "data-lazy-src", "data-original"}

var decorativeImage = regexp.MustCompile(`(?i)logo|banner|avatar|icon`)

// Extractor fetches a chapter page and extracts its content.
type Extractor struct {
	Fetcher core.Fetcher
	// CleanupHTML runs the sanitizer over the extracted region. Off means
	// the region is passed through as-is, which some assemblers want for
	// pages with unusual but harmless markup.
	CleanupHTML bool
	// IncludeImages keeps inline <img> elements in prose content.
	IncludeImages bool

	policy *bluemonday.Policy
	log    *logrus.Entry
}

// New creates an Extractor with sanitization and inline images enabled.
func New(fetcher core.Fetcher) *Extractor {
	return &Extractor{
		Fetcher:       fetcher,
		CleanupHTML:   true,
		IncludeImages: true,
		policy:        contentPolicy(),
		log:           logrus.WithField("component", "extract"),
	}
}

// contentPolicy builds the sanitizer allow-list: structural and inline
// formatting elements, links, images, and tables. class survives globally
// so reader-theme styling hooks stay addressable; data URIs are allowed on
// images because inlined covers and proxied manga pages use them.
func contentPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"h1", "h2", "h3", "h4", "h5", "h6",
		"p", "br", "hr",
		"strong", "b", "em", "i", "u", "s", "strike",
		"blockquote", "pre", "code",
		"ul", "ol", "li",
		"div", "span",
		"table", "thead", "tbody", "tr", "th", "td",
	)
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("src", "alt", "title").OnElements("img")
	p.AllowAttrs("class").Globally()
	p.AllowURLSchemes("http", "https", "data")
	p.AllowDataURIImages()
	return p
}

// ExtractChapter fetches the chapter at url and returns its content. Manga
// chapters yield ordered image URLs and no prose; everything else yields
// sanitized HTML plus a word count.
func (e *Extractor) ExtractChapter(ctx context.Context, chapterURL string, contentType core.ContentType) (*core.ChapterContent, error) {
	html, err := e.Fetcher.Fetch(ctx, chapterURL)
	if err != nil {
		return nil, &core.ChapterExtractionError{URL: chapterURL, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &core.ChapterExtractionError{URL: chapterURL, Err: fmt.Errorf("parsing chapter page: %w", err)}
	}

	if contentType == core.ContentManga {
		images := e.extractMangaImages(doc, chapterURL)
		if len(images) == 0 {
			return nil, &core.ChapterExtractionError{URL: chapterURL, Err: fmt.Errorf("no page images found")}
		}
		return &core.ChapterContent{ImageURLs: images}, nil
	}

	content := e.extractProse(doc)
	if strings.TrimSpace(content) == "" {
		return nil, &core.ChapterExtractionError{URL: chapterURL, Err: fmt.Errorf("no content found")}
	}

	return &core.ChapterContent{
		Content:   content,
		WordCount: htmltext.WordCount(content),
	}, nil
}

// extractProse strips boilerplate, picks the best content region, and
// sanitizes it.
func (e *Extractor) extractProse(doc *goquery.Document) string {
	for _, selector := range removeSelectors {
		doc.Find(selector).Remove()
	}
	if !e.IncludeImages {
		doc.Find("img").Remove()
	}

	var content string
	for _, selector := range contentSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if h, err := sel.Html(); err == nil {
			content = h
			if len(content) > minContentLength {
				break
			}
		}
	}

	if len(content) < minContentLength {
		e.log.Debug("no substantial content region, falling back to body")
		if body, err := doc.Find("body").Html(); err == nil {
			content = body
		}
	}

	if e.CleanupHTML {
		content = e.policy.Sanitize(content)
	}
	return content
}

// extractMangaImages returns the page images in document order. Lazy-load
// attributes win over src, decorative images are dropped, and duplicates
// collapse to their first occurrence.
func (e *Extractor) extractMangaImages(doc *goquery.Document, pageURL string) []string {
	var images []string
	seen := make(map[string]bool)

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src := ""
		for _, attr := range lazyImageAttrs {
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
				src = strings.TrimSpace(v)
				break
			}
		}
		if src == "" {
			if v, ok := s.Attr("src"); ok {
				src = strings.TrimSpace(v)
			}
		}
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		if decorativeImage.MatchString(src) {
			return
		}
		resolved := resolveImageURL(src, pageURL)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		images = append(images, resolved)
	})

	return images
}

func resolveImageURL(src, base string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(ref).String()
}
