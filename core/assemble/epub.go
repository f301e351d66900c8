package assemble

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/asanlama56-stack/WebToEpub-Miyo/core"
)

// EPUBAssembler produces an EPUB 3 container. The OCF layout is assembled
// by hand: the mimetype entry must be first and stored uncompressed, which
// rules out generic EPUB builders that own the zip writer.
type EPUBAssembler struct{}

func (a *EPUBAssembler) Extension() string { return ".epub" }
func (a *EPUBAssembler) MIMEType() string  { return "application/epub+zip" }

// Assemble writes the full container: mimetype, META-INF/container.xml,
// the OPF package document, nav, stylesheet, optional cover, and one XHTML
// file per renderable chapter.
func (a *EPUBAssembler) Assemble(meta core.BookMetadata, chapters []core.Chapter) ([]byte, error) {
	chapters = renderable(chapters)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	// mimetype goes first, uncompressed, so readers can sniff the container
	// from the leading bytes.
	mimeWriter, err := zw.CreateHeader(&zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	})
	if err != nil {
		return nil, fmt.Errorf("creating mimetype entry: %w", err)
	}
	if _, err := mimeWriter.Write([]byte("application/epub+zip")); err != nil {
		return nil, fmt.Errorf("writing mimetype entry: %w", err)
	}

	var cover []byte
	if meta.CoverImageData != "" {
		if decoded, err := base64.StdEncoding.DecodeString(meta.CoverImageData); err == nil {
			cover = decoded
		}
	}

	entries := []struct {
		name string
		data []byte
	}{
		{"META-INF/container.xml", []byte(containerXML)},
		{"OEBPS/content.opf", []byte(contentOPF(meta, chapters, cover != nil))},
		{"OEBPS/nav.xhtml", []byte(navXHTML(chapters))},
		{"OEBPS/style.css", []byte(epubCSS)},
	}
	if cover != nil {
		entries = append(entries, struct {
			name string
			data []byte
		}{"OEBPS/cover.jpg", cover})
	}
	for i, ch := range chapters {
		entries = append(entries, struct {
			name string
			data []byte
		}{fmt.Sprintf("OEBPS/chapter%d.xhtml", i), []byte(chapterXHTML(ch))})
	}

	for _, entry := range entries {
		w, err := zw.Create(entry.name)
		if err != nil {
			return nil, fmt.Errorf("creating %s: %w", entry.name, err)
		}
		if _, err := w.Write(entry.data); err != nil {
			return nil, fmt.Errorf("writing %s: %w", entry.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing epub container: %w", err)
	}
	return buf.Bytes(), nil
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

func contentOPF(meta core.BookMetadata, chapters []core.Chapter, hasCover bool) string {
	var manifest, spine strings.Builder
	for i := range chapters {
		fmt.Fprintf(&manifest, "    <item id=\"chapter%d\" href=\"chapter%d.xhtml\" media-type=\"application/xhtml+xml\"/>\n", i, i)
		fmt.Fprintf(&spine, "    <itemref idref=\"chapter%d\"/>\n", i)
	}

	coverItem := ""
	coverMeta := ""
	if hasCover {
		coverItem = "    <item id=\"cover\" href=\"cover.jpg\" media-type=\"image/jpeg\"/>\n"
		coverMeta = `<meta name="cover" content="cover"/>`
	}

	language := meta.Language
	if language == "" {
		language = "en"
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="BookId">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:identifier id="BookId">urn:uuid:%s</dc:identifier>
    <dc:title>%s</dc:title>
    <dc:creator>%s</dc:creator>
    <dc:language>%s</dc:language>
    <dc:description>%s</dc:description>
    <dc:source>%s</dc:source>
    %s
    <meta property="dcterms:modified">%s</meta>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="css" href="style.css" media-type="text/css"/>
%s%s  </manifest>
  <spine>
%s  </spine>
</package>`,
		uuid.NewString(),
		escapeXML(meta.Title),
		escapeXML(meta.Author),
		escapeXML(language),
		escapeXML(meta.Description),
		escapeXML(meta.SourceURL),
		coverMeta,
		time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		coverItem,
		manifest.String(),
		spine.String(),
	)
}

func navXHTML(chapters []core.Chapter) string {
	var items strings.Builder
	for i, ch := range chapters {
		fmt.Fprintf(&items, "        <li><a href=\"chapter%d.xhtml\">%s</a></li>\n", i, escapeXML(ch.Title))
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops" lang="en">
<head>
  <meta charset="UTF-8"/>
  <title>Table of Contents</title>
  <link rel="stylesheet" type="text/css" href="style.css"/>
</head>
<body>
  <nav epub:type="toc" id="toc">
    <h1>Table of Contents</h1>
    <ol>
%s    </ol>
  </nav>
</body>
</html>`, items.String())
}

var (
	brTag  = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrTag  = regexp.MustCompile(`(?i)<hr\s*/?>`)
	imgTag = regexp.MustCompile(`(?i)<img([^>]*[^/>])>`)
)

// chapterXHTML wraps the sanitized chapter content in an XHTML document.
// Void elements left open by the sanitizer are normalized because XHTML
// readers reject unclosed tags.
func chapterXHTML(ch core.Chapter) string {
	content := brTag.ReplaceAllString(ch.Content, "<br/>")
	content = hrTag.ReplaceAllString(content, "<hr/>")
	content = imgTag.ReplaceAllString(content, "<img$1/>")

	imagesHTML := ""
	if len(ch.ImageURLs) > 0 {
		var imgs strings.Builder
		imgs.WriteString(`<div class="manga-strip">` + "\n")
		for _, u := range ch.ImageURLs {
			fmt.Fprintf(&imgs, "  <img src=\"%s\" alt=\"Manga Page\" class=\"manga-page\"/>\n", escapeXML(u))
		}
		imgs.WriteString("</div>\n")
		imagesHTML = imgs.String()
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" lang="en">
<head>
  <meta charset="UTF-8"/>
  <title>%s</title>
  <link rel="stylesheet" type="text/css" href="style.css"/>
</head>
<body>
  <h1>%s</h1>
  <div class="chapter-content">
    %s%s
  </div>
</body>
</html>`, escapeXML(ch.Title), escapeXML(ch.Title), imagesHTML, content)
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

const epubCSS = `body {
  font-family: Georgia, "Times New Roman", serif;
  margin: 1em;
  line-height: 1.6;
  color: #333;
}

.manga-strip {
  display: flex;
  flex-direction: column;
  align-items: center;
  width: 100%;
}

.manga-page {
  display: block;
  width: 100%;
  max-width: 100%;
  height: auto;
  margin: 0;
  padding: 0;
}

h1, h2, h3, h4, h5, h6 {
  font-family: Arial, Helvetica, sans-serif;
  margin-top: 1.5em;
  margin-bottom: 0.5em;
}

h1 { font-size: 2em; }
h2 { font-size: 1.5em; }
h3 { font-size: 1.2em; }

p {
  margin: 0.5em 0;
  text-indent: 1.5em;
}

p:first-of-type {
  text-indent: 0;
}

blockquote {
  margin: 1em 2em;
  font-style: italic;
  border-left: 3px solid #ccc;
  padding-left: 1em;
}

pre, code {
  font-family: "Courier New", monospace;
  font-size: 0.9em;
  background: #f4f4f4;
  padding: 0.2em 0.4em;
}

pre {
  padding: 1em;
  overflow-x: auto;
  white-space: pre-wrap;
}

a {
  color: #0066cc;
  text-decoration: none;
}

img {
  max-width: 100%;
  height: auto;
}

hr {
  border: none;
  border-top: 1px solid #ccc;
  margin: 2em 0;
}

nav ol {
  list-style-type: decimal;
  padding-left: 1.5em;
}

nav li {
  margin: 0.3em 0;
}
`
