// Package schedule runs chapter downloads through a fixed-size worker pool.
// Chapters are consumed in order from a shared queue; each one transitions
// from downloading to exactly one terminal status, reported through a
// callback. There is no per-chapter retry here, the fetcher already retries
// at the HTTP level.
package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/asanlama56-stack/WebToEpub-Miyo/core"
)

// Update is the per-chapter progress payload delivered to the callback.
// Status is StatusDownloading when work starts, then StatusComplete or
// StatusError exactly once.
type Update struct {
	ChapterID string
	Status    core.DownloadStatus
	Content   string
	WordCount int
	ImageURLs []string
	Error     string
}

// Scheduler downloads chapters concurrently.
type Scheduler struct {
	Extractor core.ChapterExtractor

	log *logrus.Entry
}

// New creates a Scheduler backed by the given extractor.
func New(extractor core.ChapterExtractor) *Scheduler {
	return &Scheduler{
		Extractor: extractor,
		log:       logrus.WithField("component", "schedule"),
	}
}

// Run downloads every chapter and blocks until all workers finish or the
// abort flag flips. Updates for chapters already in flight when the abort
// lands are suppressed, so an aborted run never emits a terminal status
// afterwards. The delay from settings is applied by each worker after every
// chapter, successful or not.
func (s *Scheduler) Run(ctx context.Context, chapters []core.Chapter, contentType core.ContentType, settings core.DownloadSettings, aborted *atomic.Bool, emit func(Update)) {
	settings.Clamp()
	delay := time.Duration(settings.DelayBetweenRequests) * time.Millisecond

	var mu sync.Mutex
	next := 0

	take := func() (core.Chapter, bool) {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(chapters) {
			return core.Chapter{}, false
		}
		ch := chapters[next]
		next++
		return ch, true
	}

	send := func(u Update) {
		if aborted != nil && aborted.Load() {
			return
		}
		emit(u)
	}

	var wg sync.WaitGroup
	for w := 0; w < settings.ConcurrentDownloads; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil || (aborted != nil && aborted.Load()) {
					return
				}
				chapter, ok := take()
				if !ok {
					return
				}

				send(Update{ChapterID: chapter.ID, Status: core.StatusDownloading})

				content, err := s.Extractor.ExtractChapter(ctx, chapter.URL, contentType)
				if err != nil {
					s.log.WithField("url", chapter.URL).WithError(err).Warn("chapter download failed")
					send(Update{ChapterID: chapter.ID, Status: core.StatusError, Error: err.Error()})
				} else {
					send(Update{
						ChapterID: chapter.ID,
						Status:    core.StatusComplete,
						Content:   content.Content,
						WordCount: content.WordCount,
						ImageURLs: content.ImageURLs,
					})
				}

				if delay > 0 {
					select {
					case <-ctx.Done():
						return
					case <-time.After(delay):
					}
				}
			}
		}()
	}
	wg.Wait()
}
