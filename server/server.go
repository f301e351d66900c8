// Package server exposes the conversion pipeline over HTTP. All state
// (jobs, generated files, image jobs) is in memory; restarting the server
// forgets everything, matching the throwaway nature of conversion jobs.
package server

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/asanlama56-stack/WebToEpub-Miyo/config"
	"github.com/asanlama56-stack/WebToEpub-Miyo/core/assemble"
	"github.com/asanlama56-stack/WebToEpub-Miyo/core/discover"
	"github.com/asanlama56-stack/WebToEpub-Miyo/core/extract"
	"github.com/asanlama56-stack/WebToEpub-Miyo/core/fetch"
	"github.com/asanlama56-stack/WebToEpub-Miyo/core/schedule"
	"github.com/asanlama56-stack/WebToEpub-Miyo/imagepipe"
	"github.com/asanlama56-stack/WebToEpub-Miyo/store"
)

// Server wires the pipeline stages to the HTTP API.
type Server struct {
	cfg        *config.Config
	store      *store.Store
	discoverer *discover.Discoverer
	extractor  *extract.Extractor
	scheduler  *schedule.Scheduler
	images     *imagepipe.Pipeline

	mu     sync.Mutex
	files  map[string]*assemble.Artifact
	active map[string]*atomic.Bool

	log *logrus.Entry
}

// New builds a Server from configuration.
func New(cfg *config.Config) (*Server, error) {
	fetcher := fetch.New(
		fetch.WithRetries(cfg.Scraper.Retries),
		fetch.WithTimeout(cfg.Scraper.Timeout),
	)

	discoverer := discover.New(fetcher)
	if cfg.Discovery.MaxPages > 0 {
		discoverer.MaxPages = cfg.Discovery.MaxPages
	}
	discoverer.ProbeFallback = cfg.Discovery.ProbeFallback

	extractor := extract.New(fetcher)

	images, err := imagepipe.New(cfg.Images.CacheTTL)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:        cfg,
		store:      store.New(),
		discoverer: discoverer,
		extractor:  extractor,
		scheduler:  schedule.New(extractor),
		images:     images,
		files:      make(map[string]*assemble.Artifact),
		active:     make(map[string]*atomic.Bool),
		log:        logrus.WithField("component", "server"),
	}, nil
}

// Router builds the gin engine with all API routes registered.
func (s *Server) Router() *gin.Engine {
	if s.cfg.Server.Mode != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	api := r.Group("/api")
	{
		api.POST("/analyze", s.handleAnalyze)
		api.POST("/download", s.handleDownload)
		api.GET("/jobs", s.handleListJobs)
		api.GET("/jobs/:id", s.handleGetJob)
		api.POST("/jobs/:id/cancel", s.handleCancelJob)
		api.POST("/jobs/clear-completed", s.handleClearCompleted)
		api.GET("/jobs/:id/image-status", s.handleImageStatus)
		api.GET("/download-file/:id", s.handleDownloadFile)
		api.GET("/image/:id", s.handleProxyImage)
		api.GET("/health", s.handleHealth)
	}
	return r
}

// Close waits for background image work and frees the cache.
func (s *Server) Close() error {
	return s.images.Close()
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// registerAbort creates the cancellation flag for a running download.
func (s *Server) registerAbort(jobID string) *atomic.Bool {
	flag := &atomic.Bool{}
	s.mu.Lock()
	s.active[jobID] = flag
	s.mu.Unlock()
	return flag
}

func (s *Server) takeAbort(jobID string) (*atomic.Bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	flag, ok := s.active[jobID]
	if ok {
		delete(s.active, jobID)
	}
	return flag, ok
}

func (s *Server) finishDownload(jobID string) {
	s.mu.Lock()
	delete(s.active, jobID)
	s.mu.Unlock()
}

func (s *Server) storeFile(jobID string, artifact *assemble.Artifact) {
	s.mu.Lock()
	s.files[jobID] = artifact
	s.mu.Unlock()
}

func (s *Server) getFile(jobID string) (*assemble.Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	artifact, ok := s.files[jobID]
	return artifact, ok
}

func (s *Server) dropFile(jobID string) {
	s.mu.Lock()
	delete(s.files, jobID)
	s.mu.Unlock()
}
