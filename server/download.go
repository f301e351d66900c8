package server

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/asanlama56-stack/WebToEpub-Miyo/core"
	"github.com/asanlama56-stack/WebToEpub-Miyo/core/assemble"
	"github.com/asanlama56-stack/WebToEpub-Miyo/core/schedule"
)

// runDownload drives one background download: chapters through the worker
// pool, then document assembly. It owns the job's status transitions from
// downloading onwards and always clears the active-download entry.
func (s *Server) runDownload(jobID string, chapters []core.Chapter, format core.OutputFormat, settings core.DownloadSettings, abort *atomic.Bool) {
	defer s.finishDownload(jobID)

	contentType := core.ContentUnknown
	if job, err := s.store.Get(jobID); err == nil && job.Metadata != nil {
		contentType = job.Metadata.DetectedContentType
	}

	start := time.Now()
	total := len(chapters)
	var completed atomic.Int64

	s.scheduler.Run(context.Background(), chapters, contentType, settings, abort, func(u schedule.Update) {
		s.store.UpdateChapterStatus(jobID, u.ChapterID, u.Status, u.Content, u.WordCount, u.ImageURLs, u.Error)

		if u.Status != core.StatusComplete && u.Status != core.StatusError {
			return
		}

		done := completed.Add(1)
		elapsed := time.Since(start).Seconds()
		var speed float64 // chapters per minute
		if elapsed > 0 {
			speed = float64(done) / elapsed * 60
		}
		var eta int // seconds
		if speed > 0 {
			eta = int(float64(total-int(done)) / speed * 60)
		}

		s.store.Update(jobID, func(j *core.DownloadJob) {
			j.Progress = float64(done) / float64(total) * 100
			j.DownloadSpeed = speed
			j.ETA = eta
		})
	})

	if abort.Load() {
		// Cancel already wrote the terminal state.
		return
	}

	s.generate(jobID, format)
}

// generate assembles the finished download into its output document.
func (s *Server) generate(jobID string, format core.OutputFormat) {
	s.store.Update(jobID, func(j *core.DownloadJob) {
		j.Status = core.StatusProcessing
	})

	job, err := s.store.Get(jobID)
	if err != nil {
		return
	}

	fail := func(msg string) {
		s.store.Update(jobID, func(j *core.DownloadJob) {
			j.Status = core.StatusError
			j.Error = msg
		})
	}

	if job.Metadata == nil {
		fail("Job metadata not found")
		return
	}

	selected := make(map[string]bool, len(job.SelectedChapterIDs))
	for _, id := range job.SelectedChapterIDs {
		selected[id] = true
	}
	var chapters []core.Chapter
	for _, ch := range job.Chapters {
		if selected[ch.ID] && ch.HasContent() {
			chapters = append(chapters, ch)
		}
	}
	if len(chapters) == 0 {
		fail("No chapters with content available")
		return
	}

	artifact, err := assemble.Output(*job.Metadata, chapters, format)
	if err != nil {
		s.log.WithField("jobId", jobID).WithError(err).Error("document generation failed")
		fail(err.Error())
		return
	}

	s.storeFile(jobID, artifact)

	now := time.Now()
	s.store.Update(jobID, func(j *core.DownloadJob) {
		j.Status = core.StatusComplete
		j.Progress = 100
		j.CompletedAt = &now
		j.OutputPath = "/api/download-file/" + jobID
	})

	s.log.WithField("jobId", jobID).WithField("format", string(format)).Info("download complete")
}
