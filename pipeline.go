package intelliparse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tsawler/intelliparse/archive"
	"github.com/tsawler/intelliparse/cache"
	"github.com/tsawler/intelliparse/format"
	"github.com/tsawler/intelliparse/model"
	"github.com/tsawler/intelliparse/normalize"
	"github.com/tsawler/intelliparse/ocr"
	"github.com/tsawler/intelliparse/understand"
)

// Pipeline defaults.
const (
	DefaultFileTimeout     = 5 * time.Minute
	DefaultAITimeout       = 60 * time.Second
	DefaultMaxArchiveDepth = 3
)

// MaxPageNumber is the largest page number a page selection may name.
const MaxPageNumber = 100_000

// Observer is told about every finished top-level result.
type Observer interface {
	Observe(r *ExtractionResult)
}

// Config configures a Pipeline. Zero values take defaults.
type Config struct {
	Logger *slog.Logger
	// Concurrency bounds ExtractAll; the default is runtime.NumCPU().
	Concurrency int
	// FileTimeout bounds each file in ExtractAll and Extract.
	FileTimeout time.Duration
	// AITimeout bounds each AI call.
	AITimeout time.Duration
	// MaxArchiveDepth limits archives nested inside archives.
	MaxArchiveDepth int
	Archive         archive.Limits
	// Pages restricts paged formats to these 1-based pages.
	Pages []int
	// MaxSectionChars truncates long sections; zero keeps everything.
	MaxSectionChars int

	// OCR fills images and regions that have no text. Nil disables OCR.
	OCR        ocr.Recognizer
	OCRMinSide int
	// AI serves Schema and, with AIAssist, the enrichment stage.
	AI       *understand.Adapter
	AIAssist bool

	Cache    *cache.Cache[*ExtractionResult]
	Observer Observer

	// IncludeImageData keeps encoded image bytes in results.
	IncludeImageData bool
	// IncludeNotes keeps presentation speaker notes.
	IncludeNotes bool
}

// DefaultConfig returns a Config with notes included and every other
// setting at its default.
func DefaultConfig() Config {
	return Config{IncludeNotes: true}
}

// Pipeline runs files through sniffing, parsing, normalization, OCR and AI
// enrichment. It is safe for concurrent use.
type Pipeline struct {
	cfg  Config
	log  *slog.Logger
	open func(name string, data []byte, f format.Format) (documentReader, error)
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.NumCPU()
	}
	if cfg.FileTimeout <= 0 {
		cfg.FileTimeout = DefaultFileTimeout
	}
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = DefaultAITimeout
	}
	if cfg.MaxArchiveDepth <= 0 {
		cfg.MaxArchiveDepth = DefaultMaxArchiveDepth
	}
	p := &Pipeline{cfg: cfg, log: cfg.Logger}
	p.open = p.openReader
	return p
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Input is one file to extract. Data is used when set; otherwise Load is
// called under the file deadline.
type Input struct {
	Name string
	Data []byte
	Load func(ctx context.Context) ([]byte, error)
}

func (in Input) bytes(ctx context.Context) ([]byte, error) {
	if in.Data != nil || in.Load == nil {
		return in.Data, nil
	}
	return in.Load(ctx)
}

// Extract runs one file through the pipeline. It never returns nil: a file
// that cannot be read or parsed yields a result with Err set.
func (p *Pipeline) Extract(ctx context.Context, in Input) *ExtractionResult {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.FileTimeout)
	defer cancel()

	start := time.Now()
	res := p.extractTop(ctx, in)
	res.Job.Duration = time.Since(start)
	switch {
	case isCancellation(res.Err):
		p.log.Info("extraction cancelled", "file", res.Name, "error", res.Err)
	case res.Err != nil:
		p.log.Warn("extraction failed", "file", res.Name, "error", res.Err)
	default:
		p.log.Debug("extracted", "file", res.Name, "format", res.Format.String(),
			"sections", len(res.Document.Sections), "warnings", len(res.Warnings), "elapsed", res.Job.Duration)
	}
	if p.cfg.Observer != nil {
		p.cfg.Observer.Observe(res)
	}
	return res
}

func (p *Pipeline) extractTop(ctx context.Context, in Input) *ExtractionResult {
	data, err := in.bytes(ctx)
	if err != nil {
		return &ExtractionResult{ID: uuid.NewString(), Name: in.Name, Err: fmt.Errorf("loading %s: %w", in.Name, err)}
	}

	var key string
	if p.cfg.Cache != nil {
		key = cache.Key(data, p.fingerprint())
		if hit, ok := p.cfg.Cache.Get(key); ok {
			res := hit.clone()
			res.ID = uuid.NewString()
			res.Name = in.Name
			res.Job.CacheHit = true
			return res
		}
	}

	res := p.extract(ctx, in.Name, data, 0)
	if key != "" && res.Err == nil {
		p.cfg.Cache.Add(key, res.clone())
	}
	return res
}

// ExtractAll extracts inputs concurrently, at most Concurrency at a time.
// Results come back in input order. One file failing never stops the
// others; when ctx ends, files not yet finished get ctx.Err().
func (p *Pipeline) ExtractAll(ctx context.Context, inputs []Input) []*ExtractionResult {
	results := make([]*ExtractionResult, len(inputs))
	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i, in := range inputs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return nil
			}
			results[i] = p.Extract(ctx, in)
			return nil
		})
	}
	_ = g.Wait()

	for i, r := range results {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			results[i] = &ExtractionResult{ID: uuid.NewString(), Name: inputs[i].Name, Err: err}
		}
	}
	return results
}

// Schema infers the entity and relation schema of doc with the configured
// model.
func (p *Pipeline) Schema(ctx context.Context, doc *model.Document) (*model.Schema, error) {
	if p.cfg.AI == nil {
		return nil, understand.ErrNoModel
	}
	return p.cfg.AI.ExtractSchema(ctx, doc)
}

// extract runs every stage for one file at the given archive depth.
func (p *Pipeline) extract(ctx context.Context, name string, data []byte, depth int) *ExtractionResult {
	res := &ExtractionResult{ID: uuid.NewString(), Name: name}

	// sniff
	sn := format.Sniff(name, data)
	res.Format = sn.Format
	if sn.ExtensionMismatch {
		res.warn(StageSniff, 0, fmt.Sprintf("file name suggests %s but content is %s", sn.Claimed, sn.Format))
	}
	if sn.Format == format.Unknown {
		res.Err = fmt.Errorf("%s: %w", name, format.ErrUnsupported)
		return res
	}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	if sn.Format.IsArchive() {
		p.extractArchive(ctx, res, data, depth)
		return res
	}

	// parse
	doc, warnings, err := p.parse(name, data, sn.Format)
	res.Warnings = append(res.Warnings, stringWarnings(StageParse, warnings)...)
	if err != nil {
		res.Err = err
		return res
	}
	doc.Name, doc.Format = name, sn.Format.String()
	res.Document = doc

	// normalize
	res.Warnings = append(res.Warnings, stringWarnings(StageNormalize, p.normalize(doc))...)

	p.enrich(ctx, res)
	p.assemble(res)
	return res
}

// enrich runs the OCR and AI stages.
func (p *Pipeline) enrich(ctx context.Context, res *ExtractionResult) {
	doc := res.Document
	if p.cfg.OCR != nil {
		r := ocr.Apply(ctx, p.cfg.OCR, doc, ocr.StageOptions{MinSide: p.cfg.OCRMinSide, Logger: p.log})
		res.Job.OCRCalls += r.Calls
		for _, w := range r.Warnings {
			res.warn(StageOCR, w.Section, w.Message)
		}
	}
	if p.cfg.AIAssist && p.cfg.AI != nil {
		opts := understand.DefaultAssistOptions()
		opts.CallTimeout = p.cfg.AITimeout
		opts.Logger = p.log
		r := understand.Assist(ctx, p.cfg.AI, doc, opts)
		res.Job.AICalls += r.Calls
		for _, w := range r.Warnings {
			res.warn(StageAI, w.Section, w.Message)
		}
	}
}

// assemble renormalizes after enrichment, drops image bytes unless asked
// to keep them and fills the job metadata.
func (p *Pipeline) assemble(res *ExtractionResult) {
	doc := res.Document
	res.Warnings = append(res.Warnings, stringWarnings(StageAssemble, p.normalize(doc))...)
	if !p.cfg.IncludeImageData {
		for _, img := range doc.Images() {
			img.Data = nil
		}
	}
	res.Job.Pages = doc.Metadata.PageCount
	if res.Job.Pages == 0 {
		res.Job.Pages = len(doc.Sections)
	}
}

func (p *Pipeline) normalize(doc *model.Document) []string {
	return normalize.Normalize(doc, normalize.Options{MaxSectionChars: p.cfg.MaxSectionChars})
}

// fingerprint captures every option that changes a result.
func (p *Pipeline) fingerprint() string {
	return fmt.Sprintf("pages=%v;chars=%d;depth=%d;limits=%+v;ocr=%t/%d;ai=%t/%s;images=%t;notes=%t",
		p.cfg.Pages, p.cfg.MaxSectionChars, p.cfg.MaxArchiveDepth, p.cfg.Archive,
		p.cfg.OCR != nil, p.cfg.OCRMinSide, p.cfg.AIAssist && p.cfg.AI != nil, p.cfg.AI.Name(),
		p.cfg.IncludeImageData, p.cfg.IncludeNotes)
}

// isCancellation reports whether err comes from the caller's context.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
