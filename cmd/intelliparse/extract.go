package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/tsawler/intelliparse"
	"github.com/tsawler/intelliparse/config"
)

// errFilesFailed makes the process exit 1 after the summary has named the
// files that failed.
var errFilesFailed = errors.New("one or more files failed")

type extractOptions struct {
	output      string
	outDir      string
	concurrency int
	timeout     time.Duration
	ai          string
	pages       string
	images      bool
	ocr         bool
	noNotes     bool
	chunkSize   int
}

func newExtractCmd(a *app) *cobra.Command {
	opts := &extractOptions{}

	cmd := &cobra.Command{
		Use:   "extract [paths|dirs|s3://bucket/prefix ...]",
		Short: "Extract content from files, directories or object storage",
		Example: `  intelliparse extract report.pdf
  intelliparse extract -o markdown --out-dir out/ docs/
  intelliparse extract --ai gemini --ocr scans.zip
  intelliparse extract -o chunks s3://bucket/contracts/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExtract(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "markdown", "output: json, markdown, text, llm or chunks")
	f.StringVar(&opts.outDir, "out-dir", "", "write one file per input into this directory")
	f.IntVarP(&opts.concurrency, "concurrency", "j", 0, "files extracted in parallel (default from config)")
	f.DurationVar(&opts.timeout, "timeout", 0, "deadline per file (default from config)")
	f.StringVar(&opts.ai, "ai", "", "AI assistance: gemini, ollama, openai or none")
	f.StringVar(&opts.pages, "pages", "", "pages to extract, e.g. 1,3,5-7")
	f.BoolVar(&opts.images, "images", false, "include image bytes in json output")
	f.BoolVar(&opts.ocr, "ocr", false, "run OCR on images and unreadable regions")
	f.BoolVar(&opts.noNotes, "no-notes", false, "drop presentation speaker notes")
	f.IntVar(&opts.chunkSize, "chunk-size", 0, "maximum chunk size in characters for -o chunks")

	return cmd
}

func (a *app) runExtract(cmd *cobra.Command, args []string, opts *extractOptions) error {
	r, err := newRenderer(opts.output, opts.chunkSize)
	if err != nil {
		return err
	}
	pages, err := parsePages(opts.pages)
	if err != nil {
		return err
	}
	assist := a.applyExtractFlags(opts)

	ctx := cmd.Context()
	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.close()

	items, err := c.resolver.Resolve(ctx, args)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no supported files found in %s", strings.Join(args, ", "))
	}

	cfg := a.pipelineConfig(c, assist)
	cfg.Pages = pages

	var bar *progressbar.ProgressBar
	if len(items) > 1 {
		bar = newProgressBar(len(items), cmd.ErrOrStderr())
		cfg.Observer = progressObserver{bar: bar}
	}

	a.log.Debug("extracting", "files", len(items), "concurrency", cfg.Concurrency, "ai", cfg.AIAssist, "ocr", cfg.OCR != nil)
	results := intelliparse.New(cfg).ExtractAll(ctx, inputs(items))
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(cmd.ErrOrStderr())
	}

	if opts.outDir != "" {
		err = r.writeFiles(opts.outDir, results)
	} else {
		err = r.write(cmd.OutOrStdout(), results)
	}
	if err != nil {
		return err
	}

	if failed := summarize(cmd.ErrOrStderr(), results); failed > 0 {
		return errFilesFailed
	}
	return nil
}

// applyExtractFlags lets flags override the loaded configuration. It
// reports whether AI assistance should run.
func (a *app) applyExtractFlags(opts *extractOptions) bool {
	if opts.concurrency > 0 {
		a.cfg.Extract.Concurrency = opts.concurrency
	}
	if opts.timeout > 0 {
		a.cfg.Extract.FileTimeout = opts.timeout
	}
	if opts.images {
		a.cfg.Extract.IncludeImageData = true
	}
	if opts.ocr {
		a.cfg.OCR.Enabled = true
	}
	if opts.noNotes {
		a.cfg.Extract.IncludeNotes = false
	}
	if opts.ai != "" {
		a.cfg.AI.Provider = opts.ai
		return opts.ai != config.ProviderNone
	}
	return a.cfg.AI.Assist
}

// parsePages reads a list such as "1,3,5-7".
func parsePages(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var pages []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil || start < 1 || start > intelliparse.MaxPageNumber {
			return nil, fmt.Errorf("invalid page %q", part)
		}
		end := start
		if isRange {
			end, err = strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || end < start || end > intelliparse.MaxPageNumber {
				return nil, fmt.Errorf("invalid page range %q", part)
			}
		}
		for p := start; p <= end; p++ {
			pages = append(pages, p)
		}
	}
	return pages, nil
}

func newProgressBar(total int, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(color.BlueString("Extracting")),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// progressObserver advances the bar as each file finishes.
type progressObserver struct {
	bar *progressbar.ProgressBar
}

func (o progressObserver) Observe(*intelliparse.ExtractionResult) {
	_ = o.bar.Add(1)
}

// summarize prints one line per file that did not come out clean and a
// count line. Files with warnings count as extracted. It returns the
// number of failed files.
func summarize(w io.Writer, results []*intelliparse.ExtractionResult) int {
	red := color.New(color.FgRed).FprintfFunc()
	yellow := color.New(color.FgYellow).FprintfFunc()
	green := color.New(color.FgGreen).FprintfFunc()

	var ok, partial, failed int
	for _, res := range results {
		switch {
		case !res.OK():
			failed++
			red(w, "✗ %s: %s\n", res.Name, res.Error())
		case res.Partial():
			ok++
			partial++
			yellow(w, "! %s: %d warning(s)\n", res.Name, len(res.Warnings))
			for _, line := range strings.Split(intelliparse.FormatWarnings(res.Warnings), "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		default:
			ok++
		}
	}

	green(w, "✓ %d extracted", ok)
	if partial > 0 {
		yellow(w, ", %d with warnings", partial)
	}
	if failed > 0 {
		red(w, ", %d failed", failed)
	}
	fmt.Fprintln(w)
	return failed
}
