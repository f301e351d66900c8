// Package fetch implements the Fetcher interface.
// It performs HTTP GET requests with retry, linear backoff and a rotating
// browser identity, which is enough to get past trivial scraper blocking.
package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/asanlama56-stack/WebToEpub-Miyo/core"
)

const (
	DefaultRetries = 3
	DefaultTimeout = 30 * time.Second
)

// userAgents is a small fixed pool of real browser identities. One is
// picked at random per attempt, not per fetcher.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

func randomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// HTTPFetcher fetches web pages via HTTP with bounded retries.
type HTTPFetcher struct {
	client  *http.Client
	retries int
	timeout time.Duration
	log     *logrus.Entry
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithRetries overrides the retry budget (attempts, not re-attempts).
func WithRetries(n int) Option {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.retries = n
		}
	}
}

// WithTimeout overrides the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// New creates an HTTPFetcher with sensible scraping defaults.
func New(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		// Timeout is enforced per attempt via context, not on the client,
		// so a retried fetch gets a fresh budget each time.
		client:  &http.Client{},
		retries: DefaultRetries,
		timeout: DefaultTimeout,
		log:     logrus.WithField("component", "fetch"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves the HTML content of the given URL. Each attempt uses a
// fresh timeout and a randomly chosen identity; attempts are separated by
// a linear backoff (1s, 2s, 3s...). After the budget is exhausted the last
// error is wrapped in a *core.FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < f.retries; attempt++ {
		html, err := f.fetchOnce(ctx, url)
		if err == nil {
			return html, nil
		}
		lastErr = err
		f.log.WithFields(logrus.Fields{"url": url, "attempt": attempt + 1}).
			WithError(err).Debug("fetch attempt failed")

		if attempt < f.retries-1 {
			backoff := time.Duration(attempt+1) * time.Second
			select {
			case <-ctx.Done():
				return "", &core.FetchError{URL: url, Attempts: attempt + 1, Err: ctx.Err()}
			case <-time.After(backoff):
			}
		}
	}

	return "", &core.FetchError{URL: url, Attempts: f.retries, Err: lastErr}
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", randomUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	return string(body), nil
}
