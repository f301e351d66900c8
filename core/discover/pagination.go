package discover

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// nextPageSelectors find an explicitly labeled "next page" affordance.
// goquery has no :contains pseudo-class, so the textual variants are
// handled by nextByText below.
var nextPageSelectors = []string{
	`a[rel="next"]`,
	"a.next",
	`a[aria-label*="Next"]`,
	`a[title*="Next"]`,
	"a.next-page",
}

var nextTexts = []string{"next", "→", "»", ">"}

var pageParamRegex = regexp.MustCompile(`([?&])page=\d+`)

// nextPageURL resolves the URL of the listing page after currentPage, or
// "" when pagination is exhausted. Strategies in order: explicit next
// links, textual next markers inside pagination blocks, numbered
// pagination, and finally a page= query-parameter guess.
func nextPageURL(doc *goquery.Document, currentURL string, currentPage int) string {
	for _, selector := range nextPageSelectors {
		if href := attrOfSel(doc.Find(selector).First(), "href"); href != "" {
			if resolved := resolveURL(href, currentURL); resolved != "" {
				return resolved
			}
		}
	}

	if resolved := nextByText(doc, currentURL); resolved != "" {
		return resolved
	}

	if resolved := nextByNumber(doc, currentURL, currentPage); resolved != "" {
		return resolved
	}

	return nextByQueryParam(currentURL, currentPage+1)
}

// nextByText scans pagination containers for links whose text is a known
// next marker.
func nextByText(doc *goquery.Document, currentURL string) string {
	var result string
	doc.Find(".pagination a, .pager a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		for _, marker := range nextTexts {
			if text == marker {
				if href, ok := s.Attr("href"); ok {
					result = resolveURL(href, currentURL)
					return result == ""
				}
			}
		}
		return true
	})
	return result
}

// nextByNumber collects numbered pagination links and picks the one whose
// number follows the current page. On the first page a plain second link is
// accepted too, since many sites label page one with something other than
// "1".
func nextByNumber(doc *goquery.Document, currentURL string, currentPage int) string {
	type pageLink struct {
		num int
		url string
	}
	var links []pageLink

	doc.Find(".pagination a, .pager a, .page-numbers a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		num, err := strconv.Atoi(strings.TrimSpace(s.Text()))
		if err != nil || num <= 0 {
			return
		}
		if resolved := resolveURL(href, currentURL); resolved != "" {
			links = append(links, pageLink{num, resolved})
		}
	})

	if len(links) == 0 {
		return ""
	}
	sort.Slice(links, func(i, j int) bool { return links[i].num < links[j].num })

	for _, l := range links {
		if l.num == currentPage+1 {
			return l.url
		}
	}
	if currentPage == 1 && len(links) > 1 {
		return links[1].url
	}
	return ""
}

// nextByQueryParam guesses the next page by rewriting or appending a page=
// query parameter. Returns "" when the guess would not change the URL.
func nextByQueryParam(currentURL string, nextPage int) string {
	next := strconv.Itoa(nextPage)
	if pageParamRegex.MatchString(currentURL) {
		guess := pageParamRegex.ReplaceAllString(currentURL, "${1}page="+next)
		if guess != currentURL {
			return guess
		}
		return ""
	}
	separator := "?"
	if strings.Contains(currentURL, "?") {
		separator = "&"
	}
	return currentURL + separator + "page=" + next
}
