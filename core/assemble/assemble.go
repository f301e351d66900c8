// Package assemble turns a finished download into a single output document.
// One assembler per format: EPUB, PDF, and standalone HTML. Chapters
// without content are silently skipped so a partially failed download still
// yields a readable book.
package assemble

import (
	"regexp"
	"sort"
	"strings"

	"github.com/asanlama56-stack/WebToEpub-Miyo/core"
)

// Artifact is a generated document ready to serve or write to disk.
type Artifact struct {
	Data     []byte
	Filename string
	MIME     string
}

// ForFormat returns the assembler handling the given output format.
func ForFormat(format core.OutputFormat) (core.Assembler, bool) {
	switch format {
	case core.FormatEPUB:
		return &EPUBAssembler{}, true
	case core.FormatPDF:
		return &PDFAssembler{}, true
	case core.FormatHTML:
		return &HTMLAssembler{}, true
	}
	return nil, false
}

// Output assembles the book in the requested format and names the file
// after a filesystem-safe rendering of the title.
func Output(meta core.BookMetadata, chapters []core.Chapter, format core.OutputFormat) (*Artifact, error) {
	assembler, ok := ForFormat(format)
	if !ok {
		assembler, _ = ForFormat(core.FormatEPUB)
		format = core.FormatEPUB
	}

	data, err := assembler.Assemble(meta, chapters)
	if err != nil {
		return nil, &core.GenerationError{Format: format, Err: err}
	}

	return &Artifact{
		Data:     data,
		Filename: safeFilename(meta.Title) + assembler.Extension(),
		MIME:     assembler.MIMEType(),
	}, nil
}

// renderable filters to chapters carrying content and returns them in
// ordinal order, which may differ from slice order when downloads finished
// out of sequence.
func renderable(chapters []core.Chapter) []core.Chapter {
	out := make([]core.Chapter, 0, len(chapters))
	for _, ch := range chapters {
		if ch.HasContent() {
			out = append(out, ch)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s-]`)
var whitespaceRuns = regexp.MustCompile(`\s+`)

// safeFilename reduces a title to a portable filename stem: alphanumerics,
// hyphens and underscores only, capped at 50 characters.
func safeFilename(title string) string {
	name := unsafeChars.ReplaceAllString(title, "")
	name = whitespaceRuns.ReplaceAllString(strings.TrimSpace(name), "_")
	if len(name) > 50 {
		name = name[:50]
	}
	if name == "" {
		name = "book"
	}
	return name
}
