// Package store is the in-memory job registry. It is the single owner of
// job state: every mutation happens under the job's lock through Update or
// one of the specialized mutators, and every read hands out a deep copy so
// callers can never race the workers. Jobs do not survive a restart.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asanlama56-stack/WebToEpub-Miyo/core"
)

type entry struct {
	mu  sync.Mutex
	job core.DownloadJob
}

// Store holds all jobs for the lifetime of the process.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*entry
}

// New creates an empty Store.
func New() *Store {
	return &Store{jobs: make(map[string]*entry)}
}

// Create registers a new pending job for the given source URL and returns
// a copy of it.
func (s *Store) Create(url string) core.DownloadJob {
	job := core.DownloadJob{
		ID:           uuid.NewString(),
		URL:          url,
		Status:       core.StatusPending,
		OutputFormat: core.FormatEPUB,
		CreatedAt:    time.Now(),
	}

	s.mu.Lock()
	s.jobs[job.ID] = &entry{job: job}
	s.mu.Unlock()

	return cloneJob(&job)
}

// Get returns a deep copy of the job, or core.ErrJobNotFound.
func (s *Store) Get(id string) (core.DownloadJob, error) {
	e, ok := s.lookup(id)
	if !ok {
		return core.DownloadJob{}, core.ErrJobNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneJob(&e.job), nil
}

// All returns deep copies of every job, newest first.
func (s *Store) All() []core.DownloadJob {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	jobs := make([]core.DownloadJob, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		jobs = append(jobs, cloneJob(&e.job))
		e.mu.Unlock()
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	return jobs
}

// Update applies fn to the job under its lock. fn receives the live job
// and may mutate it freely; it must not retain the pointer.
func (s *Store) Update(id string, fn func(*core.DownloadJob)) error {
	e, ok := s.lookup(id)
	if !ok {
		return core.ErrJobNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.job)
	return nil
}

// SetChapters replaces the job's chapter list.
func (s *Store) SetChapters(id string, chapters []core.Chapter) error {
	return s.Update(id, func(job *core.DownloadJob) {
		job.Chapters = append([]core.Chapter(nil), chapters...)
	})
}

// UpdateChapterStatus records a chapter state transition. A chapter that
// is already terminal is left alone, so a late worker update can never
// overwrite a finished chapter. Unknown chapter IDs are ignored.
func (s *Store) UpdateChapterStatus(jobID, chapterID string, status core.DownloadStatus, content string, wordCount int, imageURLs []string, errMsg string) error {
	return s.Update(jobID, func(job *core.DownloadJob) {
		for i := range job.Chapters {
			ch := &job.Chapters[i]
			if ch.ID != chapterID {
				continue
			}
			if ch.Status == core.StatusComplete || ch.Status == core.StatusError {
				return
			}
			ch.Status = status
			if content != "" {
				ch.Content = content
			}
			if wordCount > 0 {
				ch.WordCount = wordCount
			}
			if len(imageURLs) > 0 {
				ch.ImageURLs = append([]string(nil), imageURLs...)
			}
			ch.Error = errMsg
			return
		}
	})
}

// SetAnalysisProgress advances the job's progress during analysis, clamped
// below 100 so only the final transition can report completion.
func (s *Store) SetAnalysisProgress(id string, progress float64) error {
	return s.Update(id, func(job *core.DownloadJob) {
		if progress > 99 {
			progress = 99
		}
		if progress < 0 {
			progress = 0
		}
		job.Progress = progress
	})
}

// Delete removes the job. Deleting an unknown ID is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}

// ClearCompleted removes every terminal job and returns the removed IDs.
// It is idempotent: a second call right after finds nothing to remove.
func (s *Store) ClearCompleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, e := range s.jobs {
		e.mu.Lock()
		terminal := e.job.IsTerminal()
		e.mu.Unlock()
		if terminal {
			delete(s.jobs, id)
			removed = append(removed, id)
		}
	}
	return removed
}

func (s *Store) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	e, ok := s.jobs[id]
	s.mu.RUnlock()
	return e, ok
}

// cloneJob deep-copies a job, including chapter slices and metadata, so
// handed-out copies never alias store-owned memory.
func cloneJob(job *core.DownloadJob) core.DownloadJob {
	out := *job
	out.Chapters = make([]core.Chapter, len(job.Chapters))
	for i, ch := range job.Chapters {
		out.Chapters[i] = ch
		out.Chapters[i].ImageURLs = append([]string(nil), ch.ImageURLs...)
	}
	out.SelectedChapterIDs = append([]string(nil), job.SelectedChapterIDs...)
	if job.Metadata != nil {
		meta := *job.Metadata
		out.Metadata = &meta
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
