package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asanlama56-stack/WebToEpub-Miyo/config"
	"github.com/asanlama56-stack/WebToEpub-Miyo/core"
)

// fakeSite serves a small novel: a listing page and three chapter pages.
func fakeSite(t *testing.T) *httptest.Server {
	t.Helper()

	chapterBody := "<p>" + strings.Repeat("The hero pressed on through the long night. ", 20) + "</p>"

	mux := http.NewServeMux()
	mux.HandleFunc("/novel", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><title>Sample Novel</title></head><body>
			<h1>Sample Novel</h1>
			<div class="chapter-list">
				<a href="/novel/chapter-1">Chapter 1</a>
				<a href="/novel/chapter-2">Chapter 2</a>
				<a href="/novel/chapter-3">Chapter 3</a>
			</div></body></html>`)
	})
	for i := 1; i <= 3; i++ {
		path := fmt.Sprintf("/novel/chapter-%d", i)
		title := fmt.Sprintf("Chapter %d", i)
		mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprintf(w, `<html><body><div class="chapter-content"><h2>%s</h2>%s</div></body></html>`, title, chapterBody)
		})
	}

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.Mode = "release"
	cfg.Scraper.Retries = 1
	cfg.Scraper.Timeout = 5 * time.Second
	cfg.Discovery.MaxPages = 3
	cfg.Discovery.ProbeFallback = false
	cfg.Images.CacheTTL = time.Minute

	srv, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv, srv.Router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func analyzeSite(t *testing.T, router *gin.Engine, url string) core.DownloadJob {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/analyze", gin.H{"url": url})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool             `json:"success"`
		Message string           `json:"message"`
		Job     core.DownloadJob `json:"job"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success, "analysis failed: %s", resp.Message)
	return resp.Job
}

func waitForStatus(t *testing.T, router *gin.Engine, jobID string, want core.DownloadStatus) core.DownloadJob {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	var job core.DownloadJob
	for time.Now().Before(deadline) {
		w := doJSON(t, router, http.MethodGet, "/api/jobs/"+jobID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
		if job.Status == want {
			return job
		}
		if job.IsTerminal() && want != job.Status {
			t.Fatalf("job reached %s (error: %s) while waiting for %s", job.Status, job.Error, want)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job never reached %s (last: %s)", want, job.Status)
	return job
}

func TestHealth(t *testing.T) {
	t.Parallel()

	_, router := newTestServer(t)
	w := doJSON(t, router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnalyzeRejectsBadRequests(t *testing.T) {
	t.Parallel()

	_, router := newTestServer(t)

	w := doJSON(t, router, http.MethodPost, "/api/analyze", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/analyze", gin.H{"url": "ftp://site.test/x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeDiscoversChapters(t *testing.T) {
	t.Parallel()

	site := fakeSite(t)
	_, router := newTestServer(t)

	job := analyzeSite(t, router, site.URL+"/novel")

	assert.Equal(t, core.StatusPending, job.Status)
	assert.Equal(t, float64(100), job.Progress)
	require.Len(t, job.Chapters, 3)
	assert.Len(t, job.SelectedChapterIDs, 3, "all chapters preselected")
	require.NotNil(t, job.Metadata)
	assert.Equal(t, "Sample Novel", job.Metadata.Title)
	assert.Equal(t, 3, job.Metadata.TotalChapters)
	assert.NotEmpty(t, job.Metadata.ImageJobID)
}

func TestAnalyzeFailureReturnsJob(t *testing.T) {
	t.Parallel()

	// Nothing listens here, so discovery fails; the response is still 200
	// with the errored job attached.
	_, router := newTestServer(t)
	w := doJSON(t, router, http.MethodPost, "/api/analyze", gin.H{"url": "http://127.0.0.1:1/nope"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool             `json:"success"`
		Job     core.DownloadJob `json:"job"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, core.StatusError, resp.Job.Status)
	assert.NotEmpty(t, resp.Job.Error)
}

func TestDownloadEndToEnd(t *testing.T) {
	t.Parallel()

	site := fakeSite(t)
	_, router := newTestServer(t)

	job := analyzeSite(t, router, site.URL+"/novel")

	w := doJSON(t, router, http.MethodPost, "/api/download", gin.H{
		"jobId":              job.ID,
		"selectedChapterIds": job.SelectedChapterIDs,
		"outputFormat":       "epub",
		"settings":           gin.H{"concurrentDownloads": 3, "delayBetweenRequests": -1},
	})
	require.Equal(t, http.StatusOK, w.Code)

	done := waitForStatus(t, router, job.ID, core.StatusComplete)
	assert.Equal(t, float64(100), done.Progress)
	assert.Equal(t, "/api/download-file/"+job.ID, done.OutputPath)
	require.NotNil(t, done.CompletedAt)
	for _, ch := range done.Chapters {
		assert.Equal(t, core.StatusComplete, ch.Status)
		assert.NotEmpty(t, ch.Content)
		assert.Greater(t, ch.WordCount, 0)
	}

	// The generated file is downloadable with attachment headers.
	fileResp := doJSON(t, router, http.MethodGet, "/api/download-file/"+job.ID, nil)
	require.Equal(t, http.StatusOK, fileResp.Code)
	assert.Equal(t, "application/epub+zip", fileResp.Header().Get("Content-Type"))
	assert.Contains(t, fileResp.Header().Get("Content-Disposition"), "attachment")
	assert.NotZero(t, fileResp.Body.Len())
}

func TestDownloadRejectsTooManyChapters(t *testing.T) {
	t.Parallel()

	site := fakeSite(t)
	_, router := newTestServer(t)

	job := analyzeSite(t, router, site.URL+"/novel")

	ids := make([]string, core.MaxChapters+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%d", i)
	}
	w := doJSON(t, router, http.MethodPost, "/api/download", gin.H{
		"jobId":              job.ID,
		"selectedChapterIds": ids,
		"outputFormat":       "epub",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Rejection happens before any mutation.
	after := doJSON(t, router, http.MethodGet, "/api/jobs/"+job.ID, nil)
	var got core.DownloadJob
	require.NoError(t, json.Unmarshal(after.Body.Bytes(), &got))
	assert.Equal(t, core.StatusPending, got.Status)
}

func TestDownloadUnknownJob(t *testing.T) {
	t.Parallel()

	_, router := newTestServer(t)
	w := doJSON(t, router, http.MethodPost, "/api/download", gin.H{
		"jobId":              "ghost",
		"selectedChapterIds": []string{"a"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadFiltersUnknownChapterIDs(t *testing.T) {
	t.Parallel()

	site := fakeSite(t)
	_, router := newTestServer(t)

	job := analyzeSite(t, router, site.URL+"/novel")

	ids := append([]string{"stale-id"}, job.SelectedChapterIDs[0])
	w := doJSON(t, router, http.MethodPost, "/api/download", gin.H{
		"jobId":              job.ID,
		"selectedChapterIds": ids,
		"outputFormat":       "html",
		"settings":           gin.H{"delayBetweenRequests": -1},
	})
	require.Equal(t, http.StatusOK, w.Code)

	done := waitForStatus(t, router, job.ID, core.StatusComplete)
	assert.Equal(t, []string{job.SelectedChapterIDs[0]}, done.SelectedChapterIDs)
}

func TestDownloadAppliesMetadataOverride(t *testing.T) {
	t.Parallel()

	site := fakeSite(t)
	_, router := newTestServer(t)

	job := analyzeSite(t, router, site.URL+"/novel")

	w := doJSON(t, router, http.MethodPost, "/api/download", gin.H{
		"jobId":              job.ID,
		"selectedChapterIds": job.SelectedChapterIDs,
		"outputFormat":       "html",
		"metadata":           gin.H{"title": "Renamed Book", "author": "New Author"},
		"settings":           gin.H{"delayBetweenRequests": -1},
	})
	require.Equal(t, http.StatusOK, w.Code)

	done := waitForStatus(t, router, job.ID, core.StatusComplete)
	require.NotNil(t, done.Metadata)
	assert.Equal(t, "Renamed Book", done.Metadata.Title)
	assert.Equal(t, "New Author", done.Metadata.Author)
	// Untouched fields keep their discovered values.
	assert.Equal(t, site.URL+"/novel", done.Metadata.SourceURL)
}

func TestCancelJob(t *testing.T) {
	t.Parallel()

	site := fakeSite(t)
	_, router := newTestServer(t)

	job := analyzeSite(t, router, site.URL+"/novel")

	w := doJSON(t, router, http.MethodPost, "/api/jobs/"+job.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)

	got := doJSON(t, router, http.MethodGet, "/api/jobs/"+job.ID, nil)
	var cancelled core.DownloadJob
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &cancelled))
	assert.Equal(t, core.StatusError, cancelled.Status)
	assert.Equal(t, "Cancelled by user", cancelled.Error)
}

func TestCancelUnknownJob(t *testing.T) {
	t.Parallel()

	_, router := newTestServer(t)
	w := doJSON(t, router, http.MethodPost, "/api/jobs/ghost/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClearCompleted(t *testing.T) {
	t.Parallel()

	site := fakeSite(t)
	srv, router := newTestServer(t)

	job := analyzeSite(t, router, site.URL+"/novel")
	require.NoError(t, srv.store.Update(job.ID, func(j *core.DownloadJob) {
		j.Status = core.StatusComplete
	}))

	w := doJSON(t, router, http.MethodPost, "/api/jobs/clear-completed", nil)
	require.Equal(t, http.StatusOK, w.Code)

	got := doJSON(t, router, http.MethodGet, "/api/jobs/"+job.ID, nil)
	assert.Equal(t, http.StatusNotFound, got.Code)
}

func TestListJobsNewestFirst(t *testing.T) {
	t.Parallel()

	site := fakeSite(t)
	_, router := newTestServer(t)

	first := analyzeSite(t, router, site.URL+"/novel")
	time.Sleep(5 * time.Millisecond)
	second := analyzeSite(t, router, site.URL+"/novel")

	w := doJSON(t, router, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var jobs []core.DownloadJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)
}

func TestImageStatusUnknownJob(t *testing.T) {
	t.Parallel()

	_, router := newTestServer(t)
	w := doJSON(t, router, http.MethodGet, "/api/jobs/ghost/image-status", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImageStatusForFailedCover(t *testing.T) {
	t.Parallel()

	site := fakeSite(t)
	_, router := newTestServer(t)

	// The fake site has no cover, so the image job fails immediately.
	job := analyzeSite(t, router, site.URL+"/novel")
	require.NotNil(t, job.Metadata)

	w := doJSON(t, router, http.MethodGet, "/api/jobs/"+job.Metadata.ImageJobID+"/image-status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status struct {
		State string `json:"state"`
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "failed", status.State)
	assert.NotEmpty(t, status.Error)
}

func TestProxyImageNotFound(t *testing.T) {
	t.Parallel()

	_, router := newTestServer(t)
	w := doJSON(t, router, http.MethodGet, "/api/image/img_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
