package assemble

import (
	"fmt"
	"html"
	"strings"

	"github.com/asanlama56-stack/WebToEpub-Miyo/core"
)

// HTMLAssembler produces a single self-contained HTML document with an
// embedded stylesheet and an anchor-linked table of contents. Chapter
// content is already sanitized upstream so it is emitted raw; metadata and
// titles are escaped.
type HTMLAssembler struct{}

func (a *HTMLAssembler) Extension() string { return ".html" }
func (a *HTMLAssembler) MIMEType() string  { return "text/html" }

func (a *HTMLAssembler) Assemble(meta core.BookMetadata, chapters []core.Chapter) ([]byte, error) {
	chapters = renderable(chapters)

	var toc, body strings.Builder
	for i, ch := range chapters {
		fmt.Fprintf(&toc, "      <li><a href=\"#chapter-%d\">%s</a></li>\n", i, html.EscapeString(ch.Title))

		content := ch.Content
		if len(ch.ImageURLs) > 0 {
			var imgs strings.Builder
			imgs.WriteString(`<div class="manga-strip">` + "\n")
			for _, u := range ch.ImageURLs {
				fmt.Fprintf(&imgs, "  <img src=\"%s\" alt=\"Manga Page\" class=\"manga-page\"/>\n", html.EscapeString(u))
			}
			imgs.WriteString("</div>\n")
			content = imgs.String() + content
		}

		fmt.Fprintf(&body, `    <section id="chapter-%d" class="chapter">
      <h2>%s</h2>
      <div class="chapter-content">
        %s
      </div>
    </section>
`, i, html.EscapeString(ch.Title), content)
	}

	language := meta.Language
	if language == "" {
		language = "en"
	}

	descriptionHTML := ""
	if meta.Description != "" {
		descriptionHTML = fmt.Sprintf(`<p class="description">%s</p>`, html.EscapeString(meta.Description))
	}

	doc := fmt.Sprintf(`<!DOCTYPE html>
<html lang="%s">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>%s</title>
  <meta name="author" content="%s">
  <meta name="description" content="%s">
  <style>
%s  </style>
</head>
<body>
  <header>
    <h1>%s</h1>
    <p class="author">by %s</p>
    %s
  </header>

  <nav>
    <h2>Table of Contents</h2>
    <ol>
%s    </ol>
  </nav>

  <main>
%s  </main>

  <footer>
    <p>Generated by WebToBook from %s</p>
  </footer>
</body>
</html>`,
		html.EscapeString(language),
		html.EscapeString(meta.Title),
		html.EscapeString(meta.Author),
		html.EscapeString(meta.Description),
		standaloneCSS,
		html.EscapeString(meta.Title),
		html.EscapeString(meta.Author),
		descriptionHTML,
		toc.String(),
		body.String(),
		html.EscapeString(meta.SourceURL),
	)

	return []byte(doc), nil
}

const standaloneCSS = `    * { box-sizing: border-box; }
    body {
      font-family: Georgia, "Times New Roman", serif;
      max-width: 800px;
      margin: 0 auto;
      padding: 2rem;
      line-height: 1.7;
      color: #333;
      background: #fafafa;
    }
    header {
      text-align: center;
      margin-bottom: 3rem;
      padding-bottom: 2rem;
      border-bottom: 2px solid #eee;
    }
    h1 { font-size: 2.5rem; margin-bottom: 0.5rem; }
    .author { font-size: 1.2rem; color: #666; }
    .description { font-style: italic; color: #888; margin-top: 1rem; }
    nav {
      background: #fff;
      padding: 1.5rem;
      border-radius: 8px;
      margin-bottom: 3rem;
      box-shadow: 0 2px 8px rgba(0,0,0,0.1);
    }
    nav h2 { margin-top: 0; }
    nav ol { padding-left: 1.5rem; }
    nav li { margin: 0.5rem 0; }
    nav a { color: #0066cc; text-decoration: none; }
    nav a:hover { text-decoration: underline; }
    .chapter {
      background: #fff;
      padding: 2rem;
      border-radius: 8px;
      margin-bottom: 2rem;
      box-shadow: 0 2px 8px rgba(0,0,0,0.1);
    }
    .chapter h2 {
      margin-top: 0;
      padding-bottom: 1rem;
      border-bottom: 1px solid #eee;
    }
    .chapter-content p { margin: 1rem 0; text-indent: 1.5em; }
    .chapter-content p:first-of-type { text-indent: 0; }
    .manga-strip { display: flex; flex-direction: column; align-items: center; }
    .manga-page { display: block; width: 100%; height: auto; margin: 0; }
    blockquote {
      border-left: 3px solid #ccc;
      margin-left: 0;
      padding-left: 1rem;
      font-style: italic;
    }
    img { max-width: 100%; height: auto; }
    footer { text-align: center; margin-top: 3rem; color: #888; font-size: 0.9rem; }
    @media (prefers-color-scheme: dark) {
      body { background: #1a1a1a; color: #e0e0e0; }
      .chapter, nav { background: #2a2a2a; }
      h1, h2, h3 { color: #fff; }
      nav a { color: #6ab0ff; }
      .chapter h2 { border-color: #444; }
    }
`
