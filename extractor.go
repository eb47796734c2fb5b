package intelliparse

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tsawler/intelliparse/model"
	"github.com/tsawler/intelliparse/ocr"
	"github.com/tsawler/intelliparse/rag"
	"github.com/tsawler/intelliparse/understand"
)

// Extractor provides a fluent interface for extracting content from any
// supported file. Each configuration method returns a new Extractor
// instance, making it safe for concurrent use and allowing method chaining.
type Extractor struct {
	// Source: a file to read, or bytes already in memory
	filename string
	name     string
	data     []byte

	// Configuration
	options ExtractOptions

	// Accumulated error (fail-fast)
	err error
}

// clone creates a shallow copy of the Extractor with a deep copy of options.
// This ensures immutability - each chain method returns a new instance.
func (e *Extractor) clone() *Extractor {
	return &Extractor{
		filename: e.filename,
		name:     e.name,
		data:     e.data,
		options:  e.options.clone(),
		err:      e.err,
	}
}

// ============================================================================
// Configuration Methods (return new Extractor instance)
// ============================================================================

// Pages specifies which pages to extract from (1-indexed). Multiple calls
// are cumulative. Only paged formats such as PDF honor it.
//
// Example:
//
//	text, _, err := intelliparse.Open("doc.pdf").Pages(1, 3, 5).Text(ctx)
func (e *Extractor) Pages(pages ...int) *Extractor {
	newExt := e.clone()
	for _, p := range pages {
		if p < 1 {
			newExt.err = fmt.Errorf("invalid page number %d: pages are 1-indexed", p)
			return newExt
		}
		if p > MaxPageNumber {
			newExt.err = fmt.Errorf("invalid page number %d: above %d", p, MaxPageNumber)
			return newExt
		}
	}
	newExt.options.pages = append(newExt.options.pages, pages...)
	return newExt
}

// PageRange specifies a range of pages to extract (1-indexed, inclusive).
//
// Example:
//
//	text, _, err := intelliparse.Open("doc.pdf").PageRange(5, 10).Text(ctx)
func (e *Extractor) PageRange(start, end int) *Extractor {
	if start < 1 || start > end || end > MaxPageNumber {
		newExt := e.clone()
		newExt.err = fmt.Errorf("invalid page range %d-%d", start, end)
		return newExt
	}
	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return e.Pages(pages...)
}

// WithAI enriches images, regions and imperfect tables with the model
// behind a.
//
// Example:
//
//	md, _, err := intelliparse.Open("scan.pdf").WithAI(adapter).Markdown(ctx)
func (e *Extractor) WithAI(a *understand.Adapter) *Extractor {
	newExt := e.clone()
	newExt.options.ai = a
	newExt.options.aiAssist = a != nil
	return newExt
}

// WithOCR recognizes text in images and unreadable regions.
func (e *Extractor) WithOCR(rec ocr.Recognizer) *Extractor {
	newExt := e.clone()
	newExt.options.ocr = rec
	return newExt
}

// IncludeImageData keeps the encoded bytes of every image in the result.
func (e *Extractor) IncludeImageData() *Extractor {
	newExt := e.clone()
	newExt.options.includeImageData = true
	return newExt
}

// ExcludeNotes drops presentation speaker notes.
func (e *Extractor) ExcludeNotes() *Extractor {
	newExt := e.clone()
	newExt.options.includeNotes = false
	return newExt
}

// WithLogger sets the logger used during extraction.
func (e *Extractor) WithLogger(l *slog.Logger) *Extractor {
	newExt := e.clone()
	newExt.options.logger = l
	return newExt
}

// ============================================================================
// Terminal Operations (execute extraction and return results)
// ============================================================================

// Result runs the pipeline and returns the full result. It never returns
// nil; check Err on the result.
func (e *Extractor) Result(ctx context.Context) *ExtractionResult {
	if e.err != nil {
		return &ExtractionResult{Name: e.displayName(), Err: e.err}
	}
	in := Input{Name: e.displayName(), Data: e.data}
	if e.data == nil {
		filename := e.filename
		in.Load = func(context.Context) ([]byte, error) {
			data, err := os.ReadFile(filename)
			if err != nil {
				return nil, fmt.Errorf("reading file: %w", err)
			}
			return data, nil
		}
	}
	return New(e.options.config()).Extract(ctx, in)
}

// Document returns the extracted document with any warnings.
//
// Example:
//
//	doc, warnings, err := intelliparse.Open("report.docx").Document(ctx)
func (e *Extractor) Document(ctx context.Context) (*model.Document, []Warning, error) {
	res := e.Result(ctx)
	if res.Err != nil {
		return nil, res.Warnings, res.Err
	}
	return res.Document, res.Warnings, nil
}

// Text extracts the plain text of the document, sections separated by
// blank lines.
//
// Example:
//
//	text, warnings, err := intelliparse.Open("document.pdf").Text(ctx)
//	if len(warnings) > 0 {
//	    log.Println("Warnings:", intelliparse.FormatWarnings(warnings))
//	}
func (e *Extractor) Text(ctx context.Context) (string, []Warning, error) {
	doc, warnings, err := e.Document(ctx)
	if err != nil {
		return "", warnings, err
	}
	return doc.Text(), warnings, nil
}

// Markdown renders the document as Markdown, preserving headings, lists,
// tables and image captions.
//
// Example:
//
//	md, _, err := intelliparse.Open("slides.pptx").ExcludeNotes().Markdown(ctx)
func (e *Extractor) Markdown(ctx context.Context) (string, []Warning, error) {
	doc, warnings, err := e.Document(ctx)
	if err != nil {
		return "", warnings, err
	}
	return doc.Markdown(), warnings, nil
}

// Chunks extracts the document and splits it into retrieval chunks with
// the given chunker; nil uses the default configuration.
func (e *Extractor) Chunks(ctx context.Context, chunker *rag.Chunker) (*rag.ChunkResult, []Warning, error) {
	doc, warnings, err := e.Document(ctx)
	if err != nil {
		return nil, warnings, err
	}
	if chunker == nil {
		chunker = rag.NewChunker()
	}
	result, err := chunker.Chunk(doc)
	return result, warnings, err
}

// Schema extracts the document and infers its entity and relation schema
// with the model set by WithAI.
func (e *Extractor) Schema(ctx context.Context) (*model.Schema, []Warning, error) {
	if e.options.ai == nil {
		return nil, nil, understand.ErrNoModel
	}
	doc, warnings, err := e.Document(ctx)
	if err != nil {
		return nil, warnings, err
	}
	schema, err := e.options.ai.ExtractSchema(ctx, doc)
	return schema, warnings, err
}

func (e *Extractor) displayName() string {
	if e.name != "" {
		return e.name
	}
	return filepath.Base(e.filename)
}
