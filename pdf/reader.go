// Package pdf extracts structured content from PDF files.
//
// Positioned text runs come from the page content streams and are turned
// into headings, paragraphs, lists and tables by the layout package.
// Running headers and footers repeated across pages are dropped. Pages
// that carry little or unreadable text but hold an image are emitted as a
// region element so that OCR or an AI model can transcribe them.
package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	lpdf "github.com/ledongthuc/pdf"

	"github.com/tsawler/intelliparse/layout"
	"github.com/tsawler/intelliparse/model"
)

// edgeMargin is the fraction of page height searched for running headers
// and footers.
const edgeMargin = 0.08

// Reader provides access to the content of a PDF file.
type Reader struct {
	name     string
	data     []byte
	pdf      *lpdf.Reader
	version  Version
	numPages int
	pages    []int
	images   bool
	tables   bool
	meta     model.Metadata
	warnings []string
}

// Option configures a Reader.
type Option func(*Reader)

// WithPages restricts extraction to the given 1-based page numbers. Pages
// outside the document are ignored.
func WithPages(pages ...int) Option {
	return func(r *Reader) { r.pages = append([]int(nil), pages...) }
}

// WithImages controls whether embedded images are extracted. It is on by
// default.
func WithImages(include bool) Option {
	return func(r *Reader) { r.images = include }
}

// WithTables controls detection of column-aligned tables. It is on by
// default.
func WithTables(detect bool) Option {
	return func(r *Reader) { r.tables = detect }
}

// Open opens a PDF file for reading.
func Open(filename string, opts ...Option) (*Reader, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return OpenBytes(filepath.Base(filename), data, opts...)
}

// OpenBytes opens a PDF held in memory.
func OpenBytes(name string, data []byte, opts ...Option) (r *Reader, err error) {
	version, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("parsing pdf: %v", rec)
		}
	}()
	pr, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing pdf: %w", err)
	}

	r = &Reader{name: name, data: data, pdf: pr, version: version, images: true, tables: true}
	for _, opt := range opts {
		opt(r)
	}
	r.numPages = r.countPages()
	r.meta = r.readInfo()
	r.meta.PageCount = r.numPages
	r.meta.Custom["pdf_version"] = version.String()
	return r, nil
}

// Close releases resources associated with the Reader.
func (r *Reader) Close() error {
	r.pdf = nil
	r.data = nil
	return nil
}

// Version returns the version from the file header.
func (r *Reader) Version() Version {
	return r.version
}

// PageCount returns the number of pages in the document.
func (r *Reader) PageCount() int {
	return r.numPages
}

// Warnings returns problems met while reading that did not stop parsing.
func (r *Reader) Warnings() []string {
	return r.warnings
}

// Metadata returns document metadata from the Info dictionary.
func (r *Reader) Metadata() model.Metadata {
	return r.meta
}

// Text extracts and returns all text content from the selected pages.
func (r *Reader) Text() (string, error) {
	doc, err := r.Document()
	if err != nil {
		return "", err
	}
	return doc.Text(), nil
}

// Document extracts the selected pages, one section per page.
func (r *Reader) Document() (*model.Document, error) {
	if r.pdf == nil {
		return nil, fmt.Errorf("reader is closed")
	}

	doc := model.NewDocument(r.name, "pdf")
	doc.Metadata = r.meta

	selected := r.selectedPages()
	pages := make([]*page, 0, len(selected))
	for _, n := range selected {
		p, err := r.readPage(n)
		if err != nil {
			r.warnings = append(r.warnings, err.Error())
		}
		pages = append(pages, p)
	}
	if r.images {
		r.attachImages(pages)
	}

	// headers, footers and body size are judged across all selected pages
	var lines [][]layout.Line
	var heights []float64
	var frags [][]layout.Fragment
	for _, p := range pages {
		p.lines = layout.GroupLines(p.frags)
		lines = append(lines, p.lines)
		heights = append(heights, p.height)
		frags = append(frags, p.frags)
	}
	edges := layout.DetectEdges(lines, heights, edgeMargin)
	body := layout.BodyFontSize(frags)

	for _, p := range pages {
		sec := doc.AddSection(fmt.Sprintf("Page %d", p.num))
		r.fillSection(sec, p, edges, body)
	}
	return doc, nil
}

// selectedPages returns the page numbers to extract in ascending order.
func (r *Reader) selectedPages() []int {
	if len(r.pages) == 0 {
		all := make([]int, r.numPages)
		for i := range all {
			all[i] = i + 1
		}
		return all
	}
	seen := map[int]bool{}
	var out []int
	for _, n := range r.pages {
		if n >= 1 && n <= r.numPages && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}

// fillSection lays out one page into sec. Pages whose text layer fails
// the quality check become a region holding the largest page image.
func (r *Reader) fillSection(sec *model.Section, p *page, edges *layout.EdgeFilter, body float64) {
	if p.err != nil {
		return
	}
	q := assess(p)
	if q.needsOCR() {
		region := model.NewRegion(largestImage(p.images))
		box := model.NewBBox(0, 0, p.width, p.height)
		region.BBox = &box
		sec.Add(region)
		if region.Image == nil {
			r.warnings = append(r.warnings, fmt.Sprintf("page %d: text layer unreadable and no page image", p.num))
		}
		for _, img := range p.images {
			if img != region.Image {
				sec.Add(model.NewImageElement(img))
			}
		}
		return
	}

	kept := edges.Filter(p.lines, p.height)
	blocks := layout.AnalyzeLines(kept, layout.Options{BodyFontSize: body, DisableTables: !r.tables})
	for _, el := range layout.Elements(blocks) {
		sec.Add(el)
	}
	for _, img := range p.images {
		sec.Add(model.NewImageElement(img))
	}
}

// largestImage returns the image with the most pixels, or nil.
func largestImage(images []*model.Image) *model.Image {
	var best *model.Image
	for _, img := range images {
		if best == nil || img.Width*img.Height > best.Width*best.Height {
			best = img
		}
	}
	return best
}
