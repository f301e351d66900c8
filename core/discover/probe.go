package discover

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/asanlama56-stack/WebToEpub-Miyo/core"
)

// probeThreshold is the harvest size below which the probe fallback kicks
// in. Listings that yield fewer links than this are usually JS-rendered
// tables of contents whose chapter URLs still follow a guessable pattern.
const probeThreshold = 50

// probeMissLimit stops probing after this many consecutive 404s. Gaps in
// a chapter sequence are rare and short; twenty misses in a row means the
// sequence is over.
const probeMissLimit = 20

const probeTimeout = 2 * time.Second

// probeTemplate recognizes the numbered-chapter URL convention
// base_N.html used by many novel hosts. The first group is the base the
// probe appends numbers to.
var probeTemplate = regexp.MustCompile(`(.+?/novel/[^_]+)(_\d+)?\.html?`)

var probeUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// probeNumberedChapters guesses sequential chapter URLs from the listing
// URL's shape and keeps the ones that respond. The probes are cheap HEAD-like
// GETs with a short timeout; a body is never read. Existing chapters are
// kept and the probed ones appended after them.
func (d *Discoverer) probeNumberedChapters(ctx context.Context, listingURL string, chapters []core.Chapter) []core.Chapter {
	m := probeTemplate.FindStringSubmatch(listingURL)
	if m == nil {
		return chapters
	}
	base := m[1]

	seen := make(map[string]bool, len(chapters))
	for _, ch := range chapters {
		seen[ch.URL] = true
	}

	client := &http.Client{Timeout: probeTimeout}
	found := 0
	misses := 0

	for i := 1; misses < probeMissLimit && len(chapters) < d.MaxChapters; i++ {
		if ctx.Err() != nil {
			break
		}
		candidate := fmt.Sprintf("%s_%d.html", base, i)
		if seen[candidate] {
			misses = 0
			continue
		}
		if !d.probeURL(ctx, client, candidate) {
			misses++
			continue
		}
		misses = 0
		seen[candidate] = true
		chapters = append(chapters, core.Chapter{
			ID:     uuid.NewString(),
			Title:  fmt.Sprintf("Chapter %d", i),
			URL:    candidate,
			Index:  len(chapters),
			Status: core.StatusPending,
		})
		found++
	}

	if found > 0 {
		d.log.WithFields(logrus.Fields{
			"base":   base,
			"probed": found,
		}).Info("probe fallback added chapters")
	}
	return chapters
}

func (d *Discoverer) probeURL(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", probeUserAgents[rand.Intn(len(probeUserAgents))])

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
