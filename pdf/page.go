package pdf

import (
	"fmt"
	"strings"
	"unicode"

	lpdf "github.com/ledongthuc/pdf"

	"github.com/tsawler/intelliparse/layout"
	"github.com/tsawler/intelliparse/model"
)

// Default page size (US Letter) used when MediaBox is missing.
const (
	defaultWidth  = 612
	defaultHeight = 792
)

// Page quality thresholds. A page with fewer characters than
// minPageChars that holds an image is taken to be scanned; a text layer
// whose printable ratio is under minPrintable is garbled.
const (
	minPageChars = 50
	minPrintable = 0.85
)

// page is the raw content of one PDF page.
type page struct {
	num           int
	width, height float64
	frags         []layout.Fragment
	lines         []layout.Line
	images        []*model.Image
	err           error
}

// readPage collects the positioned text runs of page n. A panic inside the
// PDF library is recovered into the returned error; the page is still
// returned so that it keeps its section.
func (r *Reader) readPage(n int) (p *page, err error) {
	p = &page{num: n, width: defaultWidth, height: defaultHeight}
	defer func() {
		if rec := recover(); rec != nil {
			p.frags = nil
			err = fmt.Errorf("page %d: %v", n, rec)
		}
		p.err = err
	}()

	pg := r.pdf.Page(n)
	if pg.V.IsNull() {
		return p, fmt.Errorf("page %d: missing page object", n)
	}
	p.width, p.height = pageSize(pg)

	for _, t := range pg.Content().Text {
		if t.S == "" {
			continue
		}
		p.frags = append(p.frags, layout.Fragment{
			Text:     t.S,
			X:        t.X,
			Y:        t.Y,
			Width:    t.W,
			FontSize: t.FontSize,
			Font:     t.Font,
		})
	}
	return p, nil
}

// pageSize reads the MediaBox, which may be inherited from the page tree.
func pageSize(pg lpdf.Page) (float64, float64) {
	for v := pg.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Len() == 4 {
			w := box.Index(2).Float64() - box.Index(0).Float64()
			h := box.Index(3).Float64() - box.Index(1).Float64()
			if w > 0 && h > 0 {
				return w, h
			}
		}
	}
	return defaultWidth, defaultHeight
}

// quality summarizes how usable a page's text layer is.
type quality struct {
	chars     int
	printable float64
	hasImages bool
}

func (q quality) needsOCR() bool {
	return (q.chars < minPageChars && q.hasImages) || q.printable < minPrintable
}

func assess(p *page) quality {
	var sb strings.Builder
	for _, f := range p.frags {
		sb.WriteString(f.Text)
	}
	text := sb.String()
	chars := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			chars++
		}
	}
	return quality{chars: chars, printable: printableRatio(text), hasImages: len(p.images) > 0}
}

// printableRatio returns the share of printable characters in text.
// Private use code points and the replacement character count as garbage;
// empty text is fully printable.
func printableRatio(text string) float64 {
	total, printable := 0, 0
	for _, r := range text {
		total++
		if isGarbageRune(r) {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(printable) / float64(total)
}

func isGarbageRune(r rune) bool {
	switch {
	case r >= 0xE000 && r <= 0xF8FF:
		return true
	case r == unicode.ReplacementChar:
		return true
	case r < 0x20 && r != '\n' && r != '\r' && r != '\t':
		return true
	}
	return false
}
