package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asanlama56-stack/WebToEpub-Miyo/core"
)

func TestCreateAndGet(t *testing.T) {
	t.Parallel()

	s := New()
	job := s.Create("https://site.test/novel")

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, core.StatusPending, job.Status)
	assert.Equal(t, core.FormatEPUB, job.OutputFormat)
	assert.WithinDuration(t, time.Now(), job.CreatedAt, time.Second)

	got, err := s.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "https://site.test/novel", got.URL)
}

func TestGetUnknownJob(t *testing.T) {
	t.Parallel()

	s := New()
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, core.ErrJobNotFound)
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	t.Parallel()

	s := New()
	job := s.Create("https://site.test/novel")
	require.NoError(t, s.SetChapters(job.ID, []core.Chapter{{ID: "a", Title: "Chapter 1"}}))

	got, err := s.Get(job.ID)
	require.NoError(t, err)
	got.Chapters[0].Title = "mutated"
	got.Status = core.StatusError

	fresh, err := s.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chapter 1", fresh.Chapters[0].Title)
	assert.Equal(t, core.StatusPending, fresh.Status)
}

func TestAllNewestFirst(t *testing.T) {
	t.Parallel()

	s := New()
	first := s.Create("https://site.test/1")
	time.Sleep(5 * time.Millisecond)
	second := s.Create("https://site.test/2")

	jobs := s.All()
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)
}

func TestUpdateChapterStatusTerminalWins(t *testing.T) {
	t.Parallel()

	s := New()
	job := s.Create("https://site.test/novel")
	require.NoError(t, s.SetChapters(job.ID, []core.Chapter{{ID: "a", Title: "Chapter 1", Status: core.StatusPending}}))

	require.NoError(t, s.UpdateChapterStatus(job.ID, "a", core.StatusComplete, "<p>done</p>", 1, nil, ""))
	// A late error from a confused worker must not clobber the content.
	require.NoError(t, s.UpdateChapterStatus(job.ID, "a", core.StatusError, "", 0, nil, "late failure"))

	got, err := s.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusComplete, got.Chapters[0].Status)
	assert.Equal(t, "<p>done</p>", got.Chapters[0].Content)
	assert.Empty(t, got.Chapters[0].Error)
}

func TestUpdateChapterStatusUnknownChapter(t *testing.T) {
	t.Parallel()

	s := New()
	job := s.Create("https://site.test/novel")
	require.NoError(t, s.SetChapters(job.ID, []core.Chapter{{ID: "a"}}))

	// Unknown chapter IDs are a no-op, not an error.
	assert.NoError(t, s.UpdateChapterStatus(job.ID, "ghost", core.StatusComplete, "x", 1, nil, ""))
}

func TestSetAnalysisProgressClamped(t *testing.T) {
	t.Parallel()

	s := New()
	job := s.Create("https://site.test/novel")

	require.NoError(t, s.SetAnalysisProgress(job.ID, 150))
	got, _ := s.Get(job.ID)
	assert.Equal(t, float64(99), got.Progress)

	require.NoError(t, s.SetAnalysisProgress(job.ID, -5))
	got, _ = s.Get(job.ID)
	assert.Equal(t, float64(0), got.Progress)
}

func TestClearCompletedIdempotent(t *testing.T) {
	t.Parallel()

	s := New()
	done := s.Create("https://site.test/1")
	failed := s.Create("https://site.test/2")
	running := s.Create("https://site.test/3")

	require.NoError(t, s.Update(done.ID, func(j *core.DownloadJob) { j.Status = core.StatusComplete }))
	require.NoError(t, s.Update(failed.ID, func(j *core.DownloadJob) { j.Status = core.StatusError }))
	require.NoError(t, s.Update(running.ID, func(j *core.DownloadJob) { j.Status = core.StatusDownloading }))

	removed := s.ClearCompleted()
	assert.ElementsMatch(t, []string{done.ID, failed.ID}, removed)
	assert.Empty(t, s.ClearCompleted(), "second sweep has nothing to remove")

	_, err := s.Get(running.ID)
	assert.NoError(t, err, "running job survives the sweep")
}

func TestConcurrentChapterUpdates(t *testing.T) {
	t.Parallel()

	s := New()
	job := s.Create("https://site.test/novel")

	chapters := make([]core.Chapter, 50)
	for i := range chapters {
		chapters[i] = core.Chapter{ID: fmt.Sprintf("ch-%d", i), Status: core.StatusPending}
	}
	require.NoError(t, s.SetChapters(job.ID, chapters))

	var wg sync.WaitGroup
	for _, ch := range chapters {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = s.UpdateChapterStatus(job.ID, id, core.StatusComplete, "<p>x</p>", 1, nil, "")
		}(ch.ID)
	}
	wg.Wait()

	got, err := s.Get(job.ID)
	require.NoError(t, err)
	for _, ch := range got.Chapters {
		assert.Equal(t, core.StatusComplete, ch.Status)
	}
}
