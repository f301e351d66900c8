// Package cmd — convert command.
// One-shot pipeline without the server: discover chapters, download them
// all, assemble the book, write it to disk.
package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/asanlama56-stack/WebToEpub-Miyo/core"
	"github.com/asanlama56-stack/WebToEpub-Miyo/core/assemble"
	"github.com/asanlama56-stack/WebToEpub-Miyo/core/discover"
	"github.com/asanlama56-stack/WebToEpub-Miyo/core/extract"
	"github.com/asanlama56-stack/WebToEpub-Miyo/core/fetch"
	"github.com/asanlama56-stack/WebToEpub-Miyo/core/schedule"
)

// Flag variables.
var (
	flagEPUB        bool
	flagPDF         bool
	flagHTML        bool
	flagOutputDir   string
	flagConcurrency int
	flagDelay       int
	flagNoProbe     bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <url>",
	Short: "Convert a content listing URL into a book",
	Long: `Convert analyzes the listing page, downloads every discovered chapter,
and writes the assembled book to disk.

Examples:
  webtobook convert https://example.com/novel/123 --epub
  webtobook convert https://example.com/docs --pdf --output_dir ./out
  webtobook convert https://example.com/story --html --concurrency 5 --delay 200`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	// Output format flags (mutually exclusive; default picked from the
	// detected content type).
	convertCmd.Flags().BoolVar(&flagEPUB, "epub", false, "Output EPUB")
	convertCmd.Flags().BoolVar(&flagPDF, "pdf", false, "Output PDF")
	convertCmd.Flags().BoolVar(&flagHTML, "html", false, "Output standalone HTML")

	convertCmd.Flags().StringVar(&flagOutputDir, "output_dir", "", "Output directory (default: current directory)")
	convertCmd.Flags().IntVar(&flagConcurrency, "concurrency", 3, "Concurrent chapter downloads (1-10)")
	convertCmd.Flags().IntVar(&flagDelay, "delay", 500, "Delay between requests in milliseconds (0-5000)")
	convertCmd.Flags().BoolVar(&flagNoProbe, "no_probe", false, "Disable numbered chapter URL probing")
}

func runConvert(cmd *cobra.Command, args []string) error {
	rawURL := args[0]

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid URL: %s (must include scheme, e.g. https://example.com)", rawURL)
	}

	format, err := selectFormat()
	if err != nil {
		return err
	}

	fetcher := fetch.New()
	discoverer := discover.New(fetcher)
	discoverer.ProbeFallback = !flagNoProbe

	ctx := context.Background()

	fmt.Fprintf(os.Stdout, "Analyzing %s...\n", rawURL)
	result, err := discoverer.Discover(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("analyzing: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Found %d chapters (%s: %q by %s)\n",
		len(result.Chapters), result.Metadata.DetectedContentType, result.Metadata.Title, result.Metadata.Author)

	if format == "" {
		format = result.Metadata.RecommendedFormat
	}

	settings := core.DefaultSettings()
	settings.ConcurrentDownloads = flagConcurrency
	settings.DelayBetweenRequests = flagDelay
	settings.Clamp()

	chapters := result.Chapters
	byID := make(map[string]int, len(chapters))
	for i, ch := range chapters {
		byID[ch.ID] = i
	}

	var errCount atomic.Int64
	var done atomic.Int64
	total := len(chapters)

	scheduler := schedule.New(extract.New(fetcher))
	scheduler.Run(ctx, chapters, result.Metadata.DetectedContentType, settings, nil, func(u schedule.Update) {
		i, ok := byID[u.ChapterID]
		if !ok {
			return
		}
		switch u.Status {
		case core.StatusComplete:
			chapters[i].Status = u.Status
			chapters[i].Content = u.Content
			chapters[i].WordCount = u.WordCount
			chapters[i].ImageURLs = u.ImageURLs
			fmt.Fprintf(os.Stdout, "[%d/%d] ✓ %s\n", done.Add(1), total, chapters[i].Title)
		case core.StatusError:
			chapters[i].Status = u.Status
			chapters[i].Error = u.Error
			errCount.Add(1)
			fmt.Fprintf(os.Stderr, "[%d/%d] ✗ %s: %s\n", done.Add(1), total, chapters[i].Title, u.Error)
		}
	})

	if n := errCount.Load(); n > 0 {
		fmt.Fprintf(os.Stderr, "\n%d/%d chapters failed\n", n, total)
	}

	artifact, err := assemble.Output(result.Metadata, chapters, format)
	if err != nil {
		return fmt.Errorf("assembling: %w", err)
	}

	dir := flagOutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, artifact.Filename)
	if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	fmt.Fprintf(os.Stdout, "✓ Written: %s\n", path)
	return nil
}

// selectFormat resolves the format flags. Returns "" when no flag was set,
// deferring to the recommended format from classification.
func selectFormat() (core.OutputFormat, error) {
	count := 0
	var format core.OutputFormat
	if flagEPUB {
		count++
		format = core.FormatEPUB
	}
	if flagPDF {
		count++
		format = core.FormatPDF
	}
	if flagHTML {
		count++
		format = core.FormatHTML
	}
	if count > 1 {
		return "", fmt.Errorf("choose exactly one of --epub, --pdf, --html")
	}
	return format, nil
}
