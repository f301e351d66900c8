package assemble

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/asanlama56-stack/WebToEpub-Miyo/core"
	"github.com/asanlama56-stack/WebToEpub-Miyo/core/htmltext"
)

// PDFAssembler renders the book as a fixed-layout PDF: a title page, a
// table of contents, then one page run per chapter with the flattened
// chapter text. Inline images are not rendered, manga chapters list their
// page URLs instead.
type PDFAssembler struct{}

func (a *PDFAssembler) Extension() string { return ".pdf" }
func (a *PDFAssembler) MIMEType() string  { return "application/pdf" }

func (a *PDFAssembler) Assemble(meta core.BookMetadata, chapters []core.Chapter) ([]byte, error) {
	chapters = renderable(chapters)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle(meta.Title, true)
	pdf.SetAuthor(meta.Author, true)
	pdf.SetCreator("WebToBook", true)

	// gofpdf's core fonts are cp1252; translate so curly quotes and dashes
	// in scraped text do not render as garbage.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// Title page.
	pdf.AddPage()
	pdf.Ln(60)
	pdf.SetFont("Helvetica", "B", 24)
	pdf.MultiCell(0, 12, tr(meta.Title), "", "C", false)
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 14)
	pdf.MultiCell(0, 8, tr("by "+meta.Author), "", "C", false)
	if meta.Description != "" {
		pdf.Ln(12)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.MultiCell(0, 5, tr(meta.Description), "", "C", false)
		pdf.SetTextColor(0, 0, 0)
	}

	// Table of contents.
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 10, "Table of Contents", "", "C", false)
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 11)
	for i, ch := range chapters {
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("%d. %s", i+1, ch.Title)), "", "L", false)
	}

	for _, ch := range chapters {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 16)
		pdf.MultiCell(0, 9, tr(ch.Title), "", "L", false)
		pdf.Ln(4)

		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, tr(chapterBody(ch)), "", "J", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// chapterBody flattens a chapter to plain text. Manga chapters have no
// prose, so their page URLs are listed for reference.
func chapterBody(ch core.Chapter) string {
	if ch.Content != "" {
		return htmltext.ToText(ch.Content)
	}
	var b strings.Builder
	b.WriteString("This chapter consists of images:\n\n")
	for i, u := range ch.ImageURLs {
		fmt.Fprintf(&b, "Page %d: %s\n", i+1, u)
	}
	return b.String()
}
