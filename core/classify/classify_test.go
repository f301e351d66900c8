package classify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/asanlama56-stack/WebToEpub-Miyo/core"
)

func TestClassifyHTML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		url  string
		want core.ContentType
	}{
		{
			name: "novel prose",
			html: `<html><body><p>The story continues in this chapter. "Stop," she whispered.
				The character turned and said nothing. He replied with fiction-worthy calm.</p></body></html>`,
			url:  "https://example.com/novel/123",
			want: core.ContentNovel,
		},
		{
			name: "technical documentation",
			html: `<html><body><h1>API Reference</h1><p>This documentation covers every function,
				method and parameter. Each example includes a return value and a code guide.</p></body></html>`,
			url:  "https://docs.example.com/api",
			want: core.ContentTechnical,
		},
		{
			name: "blog article",
			html: `<html><body><article>A blog post published last week, written by our news author.</article></body></html>`,
			url:  "https://example.com/blog/post-1",
			want: core.ContentArticle,
		},
		{
			name: "no keyword matches",
			html: `<html><body><p>Lorem ipsum dolor sit amet.</p></body></html>`,
			url:  "https://nondescript.site/x",
			want: core.ContentUnknown,
		},
		{
			name: "manga domain shortcut",
			html: `<html><body><p>anything</p></body></html>`,
			url:  "https://mangadex.org/title/abc",
			want: core.ContentManga,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ClassifyHTML(tt.html, tt.url))
		})
	}
}

func TestClassifyCodeBlockBonus(t *testing.T) {
	t.Parallel()

	// Enough code blocks outweigh novel-leaning prose.
	var b strings.Builder
	b.WriteString("<html><body><p>chapter story character said</p>")
	for i := 0; i < 5; i++ {
		b.WriteString("<pre><code>fmt.Println()</code></pre>")
	}
	b.WriteString("</body></html>")

	assert.Equal(t, core.ContentTechnical, ClassifyHTML(b.String(), "https://example.com"))
}

func TestClassifyMangaHeuristic(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 20; i++ {
		b.WriteString(`<img src="/page.jpg"/>`)
	}
	b.WriteString("</body></html>")
	pageHTML := b.String()

	// URL keyword plus image density.
	assert.Equal(t, core.ContentManga, ClassifyHTML(pageHTML, "https://example.com/manga/solo-leveling"))

	// Image density alone is not enough.
	assert.NotEqual(t, core.ContentManga, ClassifyHTML(pageHTML, "https://example.com/gallery"))

	// URL keyword without the images is not enough either.
	assert.NotEqual(t, core.ContentManga, ClassifyHTML("<html><body><img src='/x.jpg'/></body></html>", "https://example.com/manga/abc"))
}

func TestRecommendFormat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, core.FormatPDF, RecommendFormat(core.ContentTechnical))
	assert.Equal(t, core.FormatEPUB, RecommendFormat(core.ContentNovel))
	assert.Equal(t, core.FormatEPUB, RecommendFormat(core.ContentManga))
	assert.Equal(t, core.FormatEPUB, RecommendFormat(core.ContentUnknown))
}
