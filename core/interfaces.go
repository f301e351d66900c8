// Package core defines the shared types and pipeline interfaces for WebToBook.
// Each stage of the scrape-and-assemble pipeline is a clean, testable interface.
package core

import (
	"context"
	"time"
)

// DownloadStatus is the lifecycle state of a job or a single chapter.
type DownloadStatus string

const (
	StatusPending     DownloadStatus = "pending"
	StatusAnalyzing   DownloadStatus = "analyzing"
	StatusDownloading DownloadStatus = "downloading"
	StatusProcessing  DownloadStatus = "processing"
	StatusComplete    DownloadStatus = "complete"
	StatusError       DownloadStatus = "error"
)

// OutputFormat selects the document assembler used for a job.
type OutputFormat string

const (
	FormatEPUB OutputFormat = "epub"
	FormatPDF  OutputFormat = "pdf"
	FormatHTML OutputFormat = "html"
)

// ValidFormat reports whether f is one of the supported output formats.
func ValidFormat(f OutputFormat) bool {
	switch f {
	case FormatEPUB, FormatPDF, FormatHTML:
		return true
	}
	return false
}

// ContentType is the heuristic classification of the source material.
// It drives both the extraction strategy (manga collects image lists
// instead of text) and the recommended output format.
type ContentType string

const (
	ContentNovel     ContentType = "novel"
	ContentTechnical ContentType = "technical"
	ContentArticle   ContentType = "article"
	ContentManga     ContentType = "manga"
	ContentUnknown   ContentType = "unknown"
)

// Chapter is one discovered content unit belonging to a job.
// Index is the ordinal: the final, sort-resolved position of the chapter
// within the assembled book. It is reassigned after the numeric-aware sort
// at discovery time and defines book order regardless of download order.
type Chapter struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	URL       string         `json:"url"`
	Index     int            `json:"index"`
	Content   string         `json:"content,omitempty"`
	WordCount int            `json:"wordCount,omitempty"`
	ImageURLs []string       `json:"imageUrls,omitempty"`
	Status    DownloadStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
}

// HasContent reports whether the chapter carries renderable content,
// either sanitized text or a manga image list.
func (c *Chapter) HasContent() bool {
	return c.Content != "" || len(c.ImageURLs) > 0
}

// BookMetadata holds everything the assemblers need besides the chapters.
// It is derived once at analysis time; callers may override title, author,
// description and cover before the download starts.
type BookMetadata struct {
	Title               string       `json:"title"`
	Author              string       `json:"author"`
	Description         string       `json:"description,omitempty"`
	CoverURL            string       `json:"coverUrl,omitempty"`
	CoverImageData      string       `json:"coverImageData,omitempty"`
	ImageJobID          string       `json:"imageJobId,omitempty"`
	Language            string       `json:"language,omitempty"`
	SourceURL           string       `json:"sourceUrl"`
	DetectedContentType ContentType  `json:"detectedContentType"`
	RecommendedFormat   OutputFormat `json:"recommendedFormat"`
	TotalChapters       int          `json:"totalChapters"`
	EstimatedWordCount  int          `json:"estimatedWordCount,omitempty"`
}

// DownloadJob models one end-to-end conversion request.
// It is owned exclusively by the job store; all mutation goes through it.
type DownloadJob struct {
	ID                 string         `json:"id"`
	URL                string         `json:"url"`
	Metadata           *BookMetadata  `json:"metadata,omitempty"`
	Chapters           []Chapter      `json:"chapters"`
	SelectedChapterIDs []string       `json:"selectedChapterIds"`
	OutputFormat       OutputFormat   `json:"outputFormat"`
	Status             DownloadStatus `json:"status"`
	Progress           float64        `json:"progress"`
	DownloadSpeed      float64        `json:"downloadSpeed,omitempty"` // chapters per minute
	ETA                int            `json:"eta,omitempty"`           // seconds
	Error              string         `json:"error,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	CompletedAt        *time.Time     `json:"completedAt,omitempty"`
	OutputPath         string         `json:"outputPath,omitempty"`
}

// IsTerminal reports whether the job has reached a final state.
func (j *DownloadJob) IsTerminal() bool {
	return j.Status == StatusComplete || j.Status == StatusError
}

// MaxChapters is the hard ceiling on chapters per job, enforced both at
// discovery time and on download requests regardless of client limits.
const MaxChapters = 2000

// DownloadSettings are the client-tunable knobs recognized on a download
// request. Zero values are replaced by defaults and out-of-range values
// clamped by Clamp, so a partially filled settings object is always safe.
type DownloadSettings struct {
	ConcurrentDownloads  int  `json:"concurrentDownloads"`
	DelayBetweenRequests int  `json:"delayBetweenRequests"` // milliseconds
	RetryAttempts        int  `json:"retryAttempts"`
	IncludeImages        bool `json:"includeImages"`
	CleanupHTML          bool `json:"cleanupHtml"`
}

// DefaultSettings returns the settings used when a request carries none.
func DefaultSettings() DownloadSettings {
	return DownloadSettings{
		ConcurrentDownloads:  3,
		DelayBetweenRequests: 500,
		RetryAttempts:        3,
		IncludeImages:        true,
		CleanupHTML:          true,
	}
}

// Clamp normalizes s into its documented ranges: concurrency 1-10,
// delay 0-5000ms, retries 1-5. Unset numeric fields get defaults.
func (s *DownloadSettings) Clamp() {
	if s.ConcurrentDownloads == 0 {
		s.ConcurrentDownloads = 3
	}
	if s.ConcurrentDownloads < 1 {
		s.ConcurrentDownloads = 1
	}
	if s.ConcurrentDownloads > 10 {
		s.ConcurrentDownloads = 10
	}
	if s.DelayBetweenRequests < 0 {
		s.DelayBetweenRequests = 0
	}
	if s.DelayBetweenRequests > 5000 {
		s.DelayBetweenRequests = 5000
	}
	if s.RetryAttempts == 0 {
		s.RetryAttempts = 3
	}
	if s.RetryAttempts < 1 {
		s.RetryAttempts = 1
	}
	if s.RetryAttempts > 5 {
		s.RetryAttempts = 5
	}
}

// ChapterContent is the result of extracting a single chapter.
// Text chapters fill Content and WordCount; manga chapters fill ImageURLs.
type ChapterContent struct {
	Content   string
	WordCount int
	ImageURLs []string
}

// Fetcher retrieves raw HTML from a URL, retrying transient failures.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ChapterExtractor pulls the renderable content out of a single chapter page.
type ChapterExtractor interface {
	ExtractChapter(ctx context.Context, url string, contentType ContentType) (*ChapterContent, error)
}

// Assembler converts book metadata plus ordered chapters into one output
// document. Implementations are pure: same inputs, same artifact.
type Assembler interface {
	Assemble(meta BookMetadata, chapters []Chapter) ([]byte, error)
	// Extension returns the file extension for this assembler (e.g. ".epub").
	Extension() string
	// MIMEType returns the content type served for this assembler's output.
	MIMEType() string
}
