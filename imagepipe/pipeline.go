package imagepipe

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

const (
	// minImageBytes rejects tracking pixels and broken placeholders that
	// some sites serve where a cover should be.
	minImageBytes = 2000

	// inlineLimit is the largest image embedded as a data URL. Anything
	// bigger goes through the proxy cache instead of bloating job JSON.
	inlineLimit = 1536 * 1024

	downloadTimeout  = 20 * time.Second
	downloadAttempts = 4
	backoffBase      = 200 * time.Millisecond
)

// Pipeline runs cover image validation jobs.
type Pipeline struct {
	jobs   *registry
	cache  *imageCache
	client *http.Client

	wg  sync.WaitGroup
	log *logrus.Entry
}

// New creates a Pipeline with a cache holding proxied images for ttl.
func New(ttl time.Duration) (*Pipeline, error) {
	cache, err := newImageCache(ttl)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		jobs:   newRegistry(),
		cache:  cache,
		client: &http.Client{Timeout: downloadTimeout},
		log:    logrus.WithField("component", "imagepipe"),
	}, nil
}

// Close waits for in-flight jobs and releases the cache.
func (p *Pipeline) Close() error {
	p.wg.Wait()
	return p.cache.close()
}

// Start registers a job for detectedURL and validates it in the
// background. The returned snapshot is the job's initial state; poll Get
// for progress. An empty URL yields an already-failed job.
func (p *Pipeline) Start(detectedURL string) Job {
	job := p.jobs.create(detectedURL)
	if job.State == StateFailed {
		return *job
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(job.ID, detectedURL)
	}()

	snapshot, _ := p.jobs.get(job.ID)
	return snapshot
}

// Get returns the current state of an image job.
func (p *Pipeline) Get(id string) (Job, bool) {
	return p.jobs.get(id)
}

// CachedImage returns a proxied image by its cache ID.
func (p *Pipeline) CachedImage(proxyID string) (mime string, data []byte, ok bool) {
	return p.cache.get(proxyID)
}

func (p *Pipeline) run(jobID, url string) {
	appendLog := func(line string) {
		p.jobs.update(jobID, func(j *Job) { j.Logs = append(j.Logs, line) })
	}
	fail := func(err error) {
		appendLog("[ERROR] " + err.Error())
		p.jobs.update(jobID, func(j *Job) {
			j.State = StateFailed
			j.Error = err.Error()
		})
		p.log.WithField("jobId", jobID).WithError(err).Warn("image job failed")
	}

	p.jobs.update(jobID, func(j *Job) { j.State = StateLoading })
	appendLog("[START] Validating cover image: " + url)

	data, status, err := p.download(url, appendLog)
	if err != nil {
		fail(err)
		return
	}
	appendLog(fmt.Sprintf("[HTTP] Status: %d", status))
	appendLog(fmt.Sprintf("[BYTES] %d bytes downloaded", len(data)))
	p.jobs.update(jobID, func(j *Job) { j.BytesDownloaded = len(data) })

	if len(data) < minImageBytes {
		fail(fmt.Errorf("image is too small (%d bytes, need %d)", len(data), minImageBytes))
		return
	}

	// The Content-Type header lies often enough that only the sniffed
	// type counts.
	mime := mimetype.Detect(data).String()
	appendLog("[MIME] " + mime)
	p.jobs.update(jobID, func(j *Job) { j.MIMEType = mime })

	if !strings.HasPrefix(mime, "image/") {
		fail(fmt.Errorf("downloaded content is not an image: %s", mime))
		return
	}

	if len(data) <= inlineLimit {
		dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
		p.jobs.update(jobID, func(j *Job) {
			j.FinalURL = dataURL
			j.DataURLLength = len(dataURL)
			j.State = StateSuccess
		})
		appendLog("[SUCCESS] Image validated and converted")
		return
	}

	proxyID := "img_" + jobID
	if err := p.cache.set(proxyID, mime, data); err != nil {
		fail(fmt.Errorf("caching image: %w", err))
		return
	}
	p.jobs.update(jobID, func(j *Job) {
		j.ProxyID = proxyID
		j.FinalURL = "/api/image/" + proxyID
		j.State = StateSuccess
	})
	appendLog("[SUCCESS] Image validated and proxied")
}

// download fetches the image with exponential backoff. The last status
// code seen is returned for the log even on the success path.
func (p *Pipeline) download(url string, appendLog func(string)) ([]byte, int, error) {
	var lastErr error
	for attempt := 1; attempt <= downloadAttempts; attempt++ {
		data, status, err := p.fetchOnce(url)
		if err == nil {
			return data, status, nil
		}
		lastErr = err
		appendLog(fmt.Sprintf("[ERROR] attempt %d: %s", attempt, err))
		if attempt < downloadAttempts {
			time.Sleep(backoffBase * (1 << attempt))
		}
	}
	return nil, 0, lastErr
}

func (p *Pipeline) fetchOnce(url string) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "WebToBook/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading image body: %w", err)
	}
	return data, resp.StatusCode, nil
}
