package core

import (
	"errors"
	"fmt"
)

// ErrNoChapters is returned when discovery yields nothing usable.
// It is fatal to the analyze request and is not retried automatically.
var ErrNoChapters = errors.New("no chapters found")

// ErrJobNotFound is returned by the job store for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// FetchError reports that a single resource could not be retrieved after
// exhausting the fetcher's retry budget.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ChapterExtractionError is a per-chapter failure. It is recorded on the
// chapter and contributes to job progress as an error; it never aborts
// the job as a whole.
type ChapterExtractionError struct {
	URL string
	Err error
}

func (e *ChapterExtractionError) Error() string {
	return fmt.Sprintf("extracting chapter %s: %v", e.URL, e.Err)
}

func (e *ChapterExtractionError) Unwrap() error { return e.Err }

// GenerationError reports an assembler failure. It is fatal to the job:
// the job is marked error and no partial artifact is stored.
type GenerationError struct {
	Format OutputFormat
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generating %s output: %v", e.Format, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
