// Package imagepipe validates and stages cover images. A job downloads the
// detected cover URL with retries, sniffs the real MIME type from the
// bytes, and ends up either inlined as a data URL or parked in a TTL cache
// behind a proxy URL. Every step appends a tagged log line so the frontend
// can show why a cover failed.
package imagepipe

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle of an image job.
type State string

const (
	StatePending State = "pending"
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateFailed  State = "failed"
)

// Job tracks one cover image validation.
type Job struct {
	ID              string    `json:"id"`
	DetectedURL     string    `json:"detectedUrl,omitempty"`
	FinalURL        string    `json:"finalUrl,omitempty"`
	ProxyID         string    `json:"proxyId,omitempty"`
	State           State     `json:"state"`
	Error           string    `json:"error,omitempty"`
	BytesDownloaded int       `json:"bytesDownloaded,omitempty"`
	MIMEType        string    `json:"mimeType,omitempty"`
	DataURLLength   int       `json:"dataUrlLength,omitempty"`
	Logs            []string  `json:"logs"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// registry holds image jobs for the lifetime of the process.
type registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func newRegistry() *registry {
	return &registry{jobs: make(map[string]*Job)}
}

// create registers a job. A missing detected URL fails immediately, there
// is nothing to download.
func (r *registry) create(detectedURL string) *Job {
	now := time.Now()
	job := &Job{
		ID:          uuid.NewString(),
		DetectedURL: detectedURL,
		State:       StatePending,
		Logs:        []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if detectedURL == "" {
		job.State = StateFailed
		job.Error = "no detected URL"
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()
	return job
}

// get returns a copy of the job, logs included.
func (r *registry) get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	out := *job
	out.Logs = append([]string(nil), job.Logs...)
	return out, true
}

// update applies fn to the live job under the registry lock.
func (r *registry) update(id string, fn func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return
	}
	fn(job)
	job.UpdatedAt = time.Now()
}
