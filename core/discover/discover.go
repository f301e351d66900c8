// Package discover implements chapter discovery: given a listing page it
// harvests book metadata, collects candidate chapter links across paginated
// listing pages, optionally probes numbered chapter URLs directly, and
// returns the chapters in numeric-aware reading order.
package discover

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/asanlama56-stack/WebToEpub-Miyo/core"
	"github.com/asanlama56-stack/WebToEpub-Miyo/core/classify"
)

const (
	// DefaultMaxPages bounds pagination; combined with the no-new-chapters
	// stop condition it keeps a bad "next page" guess from looping forever.
	DefaultMaxPages = 300

	// noNewChapterLimit stops pagination after this many consecutive pages
	// that contributed nothing.
	noNewChapterLimit = 3

	maxTitleLen       = 500
	maxAuthorLen      = 200
	maxDescriptionLen = 2000
	maxChapterTitle   = 200
)

// Discoverer finds the chapters behind a listing URL.
type Discoverer struct {
	Fetcher     core.Fetcher
	MaxPages    int
	MaxChapters int
	// ProbeFallback enables guessing sequential chapter URLs when a listing
	// yields few results. It is speculative and site-specific, so callers
	// can turn it off.
	ProbeFallback bool

	log *logrus.Entry
}

// New creates a Discoverer with the default bounds.
func New(fetcher core.Fetcher) *Discoverer {
	return &Discoverer{
		Fetcher:       fetcher,
		MaxPages:      DefaultMaxPages,
		MaxChapters:   core.MaxChapters,
		ProbeFallback: true,
		log:           logrus.WithField("component", "discover"),
	}
}

// Result is the outcome of analyzing a listing URL.
type Result struct {
	Metadata core.BookMetadata
	Chapters []core.Chapter
}

// Discover fetches the listing page (and its pagination successors),
// extracts metadata and chapter links, applies the probe fallback when the
// harvest is sparse, and returns the chapters sorted into reading order.
// Zero chapters is a hard failure wrapping core.ErrNoChapters.
func (d *Discoverer) Discover(ctx context.Context, listingURL string) (*Result, error) {
	html, err := d.Fetcher.Fetch(ctx, listingURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing listing page: %w", err)
	}

	meta := harvestMetadata(doc, listingURL)

	chapters, lastDoc, err := d.harvestChapters(ctx, listingURL, doc)
	if err != nil {
		return nil, err
	}

	if d.ProbeFallback && len(chapters) < probeThreshold {
		chapters = d.probeNumberedChapters(ctx, listingURL, chapters)
	}

	if len(chapters) == 0 {
		return nil, fmt.Errorf("%w at %s", core.ErrNoChapters, listingURL)
	}

	if len(chapters) > d.MaxChapters {
		chapters = chapters[:d.MaxChapters]
	}

	sortChapters(chapters)

	// Classify from the last page we parsed: for single-page listings this
	// is the listing itself, which carries the representative text.
	meta.DetectedContentType = classify.Classify(lastDoc, listingURL)
	meta.RecommendedFormat = classify.RecommendFormat(meta.DetectedContentType)
	meta.TotalChapters = len(chapters)

	d.log.WithFields(logrus.Fields{
		"url":      listingURL,
		"chapters": len(chapters),
		"type":     meta.DetectedContentType,
	}).Info("discovery complete")

	return &Result{Metadata: meta, Chapters: chapters}, nil
}

// harvestChapters walks listing pages sequentially, collecting qualifying
// links from each before looking for the next page. Page N+1 is never
// fetched before page N's links are in.
func (d *Discoverer) harvestChapters(ctx context.Context, startURL string, firstDoc *goquery.Document) ([]core.Chapter, *goquery.Document, error) {
	var chapters []core.Chapter
	seen := make(map[string]bool)

	doc := firstDoc
	currentURL := startURL
	noNewPages := 0

	for page := 1; page <= d.MaxPages && noNewPages < noNewChapterLimit; page++ {
		if page > 1 {
			html, err := d.Fetcher.Fetch(ctx, currentURL)
			if err != nil {
				// A broken pagination guess should not discard what the
				// earlier pages already produced.
				d.log.WithField("url", currentURL).WithError(err).Debug("pagination fetch failed")
				break
			}
			doc, err = goquery.NewDocumentFromReader(strings.NewReader(html))
			if err != nil {
				break
			}
		}

		before := len(chapters)
		chapters = d.collectFromPage(doc, currentURL, seen, chapters)
		if len(chapters) == before {
			noNewPages++
		} else {
			noNewPages = 0
		}

		if len(chapters) >= d.MaxChapters {
			break
		}

		next := nextPageURL(doc, currentURL, page)
		if next == "" {
			break
		}
		currentURL = next
	}

	return chapters, doc, nil
}

// collectFromPage gathers candidate links using the priority selectors,
// falling back to every link on the page, then keeps the ones that look
// like chapters.
func (d *Discoverer) collectFromPage(doc *goquery.Document, pageURL string, seen map[string]bool, chapters []core.Chapter) []core.Chapter {
	type link struct{ href, text string }
	var candidates []link

	foundWithSelectors := false
	for _, selector := range chapterLinkSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			text := strings.TrimSpace(s.Text())
			if ok && href != "" && text != "" {
				candidates = append(candidates, link{href, text})
				foundWithSelectors = true
			}
		})
	}

	if !foundWithSelectors {
		doc.Find("a").Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			text := strings.TrimSpace(s.Text())
			if ok && href != "" && text != "" && len(text) <= maxChapterTitle {
				candidates = append(candidates, link{href, text})
			}
		})
	}

	for _, cand := range candidates {
		resolved := resolveURL(cand.href, pageURL)
		if resolved == "" || seen[resolved] {
			continue
		}
		if !isChapterLink(cand.text, cand.href) {
			continue
		}
		seen[resolved] = true
		chapters = append(chapters, core.Chapter{
			ID:     uuid.NewString(),
			Title:  truncate(cand.text, maxChapterTitle),
			URL:    resolved,
			Index:  len(chapters),
			Status: core.StatusPending,
		})
		if len(chapters) >= d.MaxChapters {
			break
		}
	}
	return chapters
}

// harvestMetadata extracts title/author/description/cover/language via a
// prioritized list of structural locations; the first non-empty match wins.
func harvestMetadata(doc *goquery.Document, pageURL string) core.BookMetadata {
	title := firstNonEmpty(
		strings.TrimSpace(doc.Find("h1").First().Text()),
		attrOf(doc, `meta[property="og:title"]`, "content"),
		strings.TrimSpace(doc.Find("title").Text()),
		"Untitled",
	)

	author := firstNonEmpty(
		attrOf(doc, `meta[name="author"]`, "content"),
		attrOf(doc, `meta[property="article:author"]`, "content"),
		strings.TrimSpace(doc.Find(".author").First().Text()),
		strings.TrimSpace(doc.Find(`[class*="author"]`).First().Text()),
		"Unknown Author",
	)

	description := firstNonEmpty(
		attrOf(doc, `meta[name="description"]`, "content"),
		attrOf(doc, `meta[property="og:description"]`, "content"),
		strings.TrimSpace(doc.Find(".description").First().Text()),
		strings.TrimSpace(doc.Find(".synopsis").First().Text()),
	)

	coverURL := firstNonEmpty(
		attrOf(doc, `meta[property="og:image"]`, "content"),
		attrOfSel(doc.Find(`img[class*="cover"]`).First(), "src"),
		attrOfSel(doc.Find(".book-cover img").First(), "src"),
	)
	if coverURL != "" {
		coverURL = resolveURL(coverURL, pageURL)
	}

	language, _ := doc.Find("html").Attr("lang")
	if language == "" {
		language = "en"
	}

	return core.BookMetadata{
		Title:       truncate(title, maxTitleLen),
		Author:      truncate(author, maxAuthorLen),
		Description: truncate(description, maxDescriptionLen),
		CoverURL:    coverURL,
		Language:    language,
		SourceURL:   pageURL,
	}
}

// sortChapters orders chapters numerically by the first number in their
// title; unnumbered chapters keep their discovery order after the numbered
// ones they were interleaved with. Ordinals are reassigned afterwards so
// Index is always a contiguous 0-based sequence.
func sortChapters(chapters []core.Chapter) {
	sort.SliceStable(chapters, func(i, j int) bool {
		numI, okI := extractNumber(chapters[i].Title)
		numJ, okJ := extractNumber(chapters[j].Title)
		if okI && okJ {
			return numI < numJ
		}
		// Unnumbered chapters keep discovery order relative to everything.
		return chapters[i].Index < chapters[j].Index
	})
	for i := range chapters {
		chapters[i].Index = i
	}
}

func resolveURL(href, base string) string {
	if strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := baseURL.ResolveReference(ref)
	resolved.Fragment = ""
	return resolved.String()
}

func attrOf(doc *goquery.Document, selector, attr string) string {
	v, _ := doc.Find(selector).Attr(attr)
	return strings.TrimSpace(v)
}

func attrOfSel(sel *goquery.Selection, attr string) string {
	v, _ := sel.Attr(attr)
	return strings.TrimSpace(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
