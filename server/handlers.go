package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/asanlama56-stack/WebToEpub-Miyo/core"
)

type analyzeRequest struct {
	URL string `json:"url" binding:"required"`
}

// handleAnalyze creates a job and runs discovery synchronously. Discovery
// failure is not an HTTP error: the job exists and carries the failure, so
// the response is 200 with success=false and the errored job attached.
func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "url is required"})
		return
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "url must be http or https"})
		return
	}

	job := s.store.Create(req.URL)
	s.store.Update(job.ID, func(j *core.DownloadJob) {
		j.Status = core.StatusAnalyzing
		j.Progress = 0
	})

	s.store.SetAnalysisProgress(job.ID, 20)

	result, err := s.discoverer.Discover(c.Request.Context(), req.URL)
	if err != nil {
		s.store.Update(job.ID, func(j *core.DownloadJob) {
			j.Status = core.StatusError
			j.Error = err.Error()
			j.Progress = 0
		})
		failed, _ := s.store.Get(job.ID)
		c.JSON(http.StatusOK, gin.H{"success": false, "message": err.Error(), "job": failed})
		return
	}

	// Cover validation runs in the background; the job carries the image
	// job ID so the client can poll its status.
	imageJob := s.images.Start(result.Metadata.CoverURL)

	s.store.SetAnalysisProgress(job.ID, 80)
	s.store.SetChapters(job.ID, result.Chapters)

	s.store.Update(job.ID, func(j *core.DownloadJob) {
		meta := result.Metadata
		meta.ImageJobID = imageJob.ID
		j.Metadata = &meta
		j.Status = core.StatusPending
		j.OutputFormat = meta.RecommendedFormat
		j.Progress = 100
		j.SelectedChapterIDs = make([]string, len(j.Chapters))
		for i, ch := range j.Chapters {
			j.SelectedChapterIDs[i] = ch.ID
		}
	})

	updated, _ := s.store.Get(job.ID)
	c.JSON(http.StatusOK, gin.H{"success": true, "job": updated})
}

type downloadRequest struct {
	JobID              string                 `json:"jobId" binding:"required"`
	SelectedChapterIDs []string               `json:"selectedChapterIds" binding:"required"`
	OutputFormat       core.OutputFormat      `json:"outputFormat"`
	Settings           *core.DownloadSettings `json:"settings"`
	Metadata           *metadataOverride      `json:"metadata"`
}

// metadataOverride is the subset of metadata a client may edit before
// download. Pointer fields distinguish "not sent" from "set to empty".
type metadataOverride struct {
	Title          *string `json:"title"`
	Author         *string `json:"author"`
	Description    *string `json:"description"`
	CoverURL       *string `json:"coverUrl"`
	CoverImageData *string `json:"coverImageData"`
	Language       *string `json:"language"`
}

// handleDownload validates the request, applies metadata overrides, and
// launches the download in the background. Validation happens before any
// job mutation so a rejected request leaves the job untouched.
func (s *Server) handleDownload(c *gin.Context) {
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "jobId and selectedChapterIds are required"})
		return
	}

	job, err := s.store.Get(req.JobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Job not found"})
		return
	}

	if len(req.SelectedChapterIDs) > core.MaxChapters {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": fmt.Sprintf("Download limited to %d chapters maximum. Please select fewer chapters.", core.MaxChapters),
		})
		return
	}

	format := req.OutputFormat
	if format == "" {
		format = job.OutputFormat
	}
	if !core.ValidFormat(format) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "outputFormat must be epub, pdf or html"})
		return
	}

	// Unknown chapter IDs are dropped silently; stale selections from a
	// re-analyzed job should not fail the whole request.
	byID := make(map[string]core.Chapter, len(job.Chapters))
	for _, ch := range job.Chapters {
		byID[ch.ID] = ch
	}
	var selected []core.Chapter
	var selectedIDs []string
	for _, id := range req.SelectedChapterIDs {
		if ch, ok := byID[id]; ok {
			selected = append(selected, ch)
			selectedIDs = append(selectedIDs, id)
		}
	}
	if len(selected) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "No valid chapters selected"})
		return
	}

	settings := core.DefaultSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}
	settings.Clamp()

	s.store.Update(req.JobID, func(j *core.DownloadJob) {
		if req.Metadata != nil && j.Metadata != nil {
			applyOverride(j.Metadata, req.Metadata)
		}
		j.SelectedChapterIDs = selectedIDs
		j.OutputFormat = format
		j.Status = core.StatusDownloading
		j.Progress = 0
		j.Error = ""
	})

	abort := s.registerAbort(req.JobID)
	go s.runDownload(req.JobID, selected, format, settings, abort)

	c.JSON(http.StatusOK, gin.H{"success": true, "jobId": req.JobID})
}

func applyOverride(meta *core.BookMetadata, o *metadataOverride) {
	if o.Title != nil && *o.Title != "" {
		meta.Title = *o.Title
	}
	if o.Author != nil && *o.Author != "" {
		meta.Author = *o.Author
	}
	if o.Description != nil {
		meta.Description = *o.Description
	}
	if o.CoverURL != nil {
		meta.CoverURL = *o.CoverURL
	}
	if o.CoverImageData != nil {
		meta.CoverImageData = *o.CoverImageData
	}
	if o.Language != nil && *o.Language != "" {
		meta.Language = *o.Language
	}
}

func (s *Server) handleListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.All())
}

func (s *Server) handleGetJob(c *gin.Context) {
	job, err := s.store.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// handleCancelJob flips the abort flag so in-flight chapter updates are
// discarded, then marks the job errored. Chapters already complete keep
// their content.
func (s *Server) handleCancelJob(c *gin.Context) {
	jobID := c.Param("id")

	if flag, ok := s.takeAbort(jobID); ok {
		flag.Store(true)
	}

	err := s.store.Update(jobID, func(j *core.DownloadJob) {
		j.Status = core.StatusError
		j.Error = "Cancelled by user"
	})
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleClearCompleted(c *gin.Context) {
	for _, id := range s.store.ClearCompleted() {
		s.dropFile(id)
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleDownloadFile(c *gin.Context) {
	artifact, ok := s.getFile(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found or expired"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	c.Data(http.StatusOK, artifact.MIME, artifact.Data)
}

func (s *Server) handleProxyImage(c *gin.Context) {
	mime, data, ok := s.images.CachedImage(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Data(http.StatusOK, mime, data)
}

func (s *Server) handleImageStatus(c *gin.Context) {
	job, ok := s.images.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":           job.State,
		"finalUrl":        job.FinalURL,
		"error":           job.Error,
		"logs":            job.Logs,
		"bytesDownloaded": job.BytesDownloaded,
		"mimeType":        job.MIMEType,
		"dataUrlLength":   job.DataURLLength,
	})
}
