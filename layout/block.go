package layout

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/tsawler/intelliparse/model"
)

// BlockKind classifies a block.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockListItem
	BlockTable
)

// Block is a unit of page content in reading order.
type Block struct {
	Kind  BlockKind
	Text  string
	Level int // heading level, or list nesting level
	// Ordered is set for numbered list items.
	Ordered bool
	Rows    [][]string
	BBox    model.BBox
	Lines   []Line
}

// Options tune page analysis.
type Options struct {
	// BodyFontSize is the size of running text. Zero derives it from the
	// page; pass a document-wide value for consistent heading levels.
	BodyFontSize float64
	// DisableTables turns off table detection.
	DisableTables bool
}

// headingRatios are the minimum font size ratios to body text for heading
// levels 1 to 4.
var headingRatios = []float64{1.8, 1.5, 1.3, 1.15}

var (
	bulletMarkers  = "•◦▪▫■□●○‣►→-*–"
	numberedMarker = regexp.MustCompile(`^(\(?\d{1,3}[.)]|\(?[a-zA-Z][.)]|\(?[ivxIVX]{1,4}[.)])\s+`)
)

// Analyze groups a page's fragments into blocks in reading order.
func Analyze(frags []Fragment, opts Options) []Block {
	return AnalyzeLines(GroupLines(frags), opts)
}

// AnalyzeLines is Analyze for lines that were already grouped, e.g. after
// header and footer removal.
func AnalyzeLines(lines []Line, opts Options) []Block {
	lines = ReadingOrder(lines)
	if len(lines) == 0 {
		return nil
	}
	body := opts.BodyFontSize
	if body <= 0 {
		body = bodySize(lines)
	}

	var runs []tableRun
	if !opts.DisableTables {
		runs = findTables(lines)
	}

	var blocks []Block
	next := 0
	for _, run := range runs {
		blocks = append(blocks, textBlocks(lines[next:run.start], body)...)
		tb := Block{Kind: BlockTable, Rows: run.rows, Lines: lines[run.start:run.end]}
		tb.BBox = linesBBox(tb.Lines)
		tb.Text = rowsText(run.rows)
		blocks = append(blocks, tb)
		next = run.end
	}
	return append(blocks, textBlocks(lines[next:], body)...)
}

// textBlocks groups lines into paragraphs, headings and list items.
func textBlocks(lines []Line, body float64) []Block {
	if len(lines) == 0 {
		return nil
	}
	spacing := lineSpacing(lines)
	listX := -1.0

	var blocks []Block
	var cur []Line
	flush := func() {
		if len(cur) > 0 {
			blocks = append(blocks, classify(cur, body, &listX))
		}
		cur = nil
	}
	for _, l := range lines {
		if len(cur) > 0 && breaksBefore(cur[len(cur)-1], l, cur[0], spacing) {
			flush()
		}
		cur = append(cur, l)
	}
	flush()
	return blocks
}

// breaksBefore decides whether l starts a new block after prev.
func breaksBefore(prev, l, first Line, spacing float64) bool {
	if prev.Column != l.Column {
		return true
	}
	gap := prev.Y - l.Y
	if gap <= 0 || gap > spacing*1.4 {
		return true
	}
	ratio := l.FontSize / max(prev.FontSize, 0.1)
	if ratio > 1.15 || ratio < 1/1.15 {
		return true
	}
	if prev.Bold != l.Bold {
		return true
	}
	if hasListMarker(l.Text) {
		return true
	}
	// a short line ends its paragraph
	return prev.Width < first.Width*0.6 && !hasListMarker(first.Text)
}

// classify turns a group of lines into one block.
func classify(lines []Line, body float64, listX *float64) Block {
	b := Block{Kind: BlockParagraph, Lines: lines, BBox: linesBBox(lines)}
	b.Text = joinLines(lines)
	first := lines[0]

	level := headingLevel(lines, b.Text, body)
	if level > 0 && level <= len(headingRatios) {
		// large type wins over a leading number such as "1. Introduction"
		*listX = -1
		b.Kind, b.Level = BlockHeading, level
		return b
	}

	if marker, ordered, ok := listMarker(b.Text); ok {
		b.Kind = BlockListItem
		b.Ordered = ordered
		b.Text = strings.TrimSpace(strings.TrimPrefix(b.Text, marker))
		if *listX < 0 || first.X < *listX {
			*listX = first.X
		}
		step := max(first.FontSize*1.5, 6)
		b.Level = min(int((first.X-*listX)/step), 5)
		return b
	}
	*listX = -1

	if level > 0 {
		b.Kind, b.Level = BlockHeading, level
	}
	return b
}

// headingLevel returns the heading level of a block, or 0. Larger type
// maps to a level by ratio; a short bold line at body size is level 5.
func headingLevel(lines []Line, text string, body float64) int {
	if len(lines) > 3 || len([]rune(text)) > 200 || body <= 0 {
		return 0
	}
	if !strings.ContainsFunc(text, unicode.IsLetter) {
		return 0
	}
	size := lines[0].FontSize
	ratio := size / body
	for i, r := range headingRatios {
		if ratio >= r {
			return i + 1
		}
	}
	bold := true
	for _, l := range lines {
		bold = bold && l.Bold
	}
	if bold && len(lines) == 1 && ratio >= 0.95 && len([]rune(text)) <= 80 && !strings.HasSuffix(text, ".") {
		return 5
	}
	return 0
}

func hasListMarker(text string) bool {
	_, _, ok := listMarker(text)
	return ok
}

// listMarker returns the bullet or number prefix of a list item.
func listMarker(text string) (marker string, ordered, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false, false
	}
	r := []rune(text)
	if strings.ContainsRune(bulletMarkers, r[0]) && len(r) > 1 && unicode.IsSpace(r[1]) {
		return string(r[0]), false, true
	}
	if m := numberedMarker.FindString(text); m != "" {
		return m, true, true
	}
	return "", false, false
}

// joinLines joins a block's lines with spaces, rejoining words
// hyphenated across a line break.
func joinLines(lines []Line) string {
	var sb strings.Builder
	for i, l := range lines {
		t := l.Text
		if i > 0 {
			prev := sb.String()
			next, _ := firstRune(t)
			if strings.HasSuffix(prev, "-") && len(prev) > 1 && unicode.IsLower(next) {
				trimmed := strings.TrimSuffix(prev, "-")
				sb.Reset()
				sb.WriteString(trimmed)
			} else {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(t)
	}
	return sb.String()
}

func firstRune(s string) (rune, bool) {
	for _, r := range s {
		return r, true
	}
	return 0, false
}

// lineSpacing returns the typical baseline distance between consecutive
// lines of the same size: the lower quartile, so that paragraph gaps do
// not inflate it. Without such pairs it is 1.2 times the median size.
func lineSpacing(lines []Line) float64 {
	var gaps, sizes []float64
	for i, l := range lines {
		sizes = append(sizes, l.FontSize)
		if i == 0 {
			continue
		}
		prev := lines[i-1]
		g := prev.Y - l.Y
		ratio := l.FontSize / max(prev.FontSize, 0.1)
		if g > 0 && g < 3*l.FontSize && ratio < 1.15 && ratio > 1/1.15 && prev.Column == l.Column {
			gaps = append(gaps, g)
		}
	}
	if len(gaps) == 0 {
		return median(sizes) * 1.2
	}
	sort.Float64s(gaps)
	return gaps[len(gaps)/4]
}

// bodySize returns the most common font size, weighted by characters.
func bodySize(lines []Line) float64 {
	counts := map[float64]int{}
	for _, l := range lines {
		counts[roundHalf(l.FontSize)] += len([]rune(l.Text))
	}
	return modeSize(counts)
}

// BodyFontSize returns the dominant text size across several pages.
func BodyFontSize(pages [][]Fragment) float64 {
	counts := map[float64]int{}
	for _, frags := range pages {
		for _, f := range frags {
			counts[roundHalf(f.FontSize)] += len([]rune(strings.TrimSpace(f.Text)))
		}
	}
	return modeSize(counts)
}

func modeSize(counts map[float64]int) float64 {
	best, bestN := 0.0, -1
	for size, n := range counts {
		if n > bestN || (n == bestN && size < best) {
			best, bestN = size, n
		}
	}
	return best
}

func roundHalf(v float64) float64 {
	return float64(int(v*2+0.5)) / 2
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	return s[len(s)/2]
}

func linesBBox(lines []Line) model.BBox {
	var box model.BBox
	for _, l := range lines {
		box = box.Union(l.BBox())
	}
	return box
}

// Element converts the block to a document element. Headings and tables
// found by heuristics carry a confidence below 1.
func (b Block) Element() *model.Element {
	var el *model.Element
	switch b.Kind {
	case BlockHeading:
		el = model.NewHeading(b.Text, b.Level)
		el.Confidence = 0.8
	case BlockTable:
		el = model.NewTableElement(newTable(b.Rows))
	case BlockListItem:
		el = model.NewListElement(&model.List{
			Items:   []model.ListItem{{Text: b.Text, Level: b.Level}},
			Ordered: b.Ordered,
		})
	default:
		el = model.NewText(b.Text)
	}
	box := b.BBox
	el.BBox = &box
	return el
}

// Elements converts blocks to elements, merging consecutive list items of
// the same kind into one list.
func Elements(blocks []Block) []*model.Element {
	var out []*model.Element
	var list *model.Element
	for _, b := range blocks {
		if b.Kind == BlockListItem && list != nil && list.List.Ordered == b.Ordered {
			list.List.Items = append(list.List.Items, model.ListItem{Text: b.Text, Level: b.Level})
			merged := list.BBox.Union(b.BBox)
			list.BBox = &merged
			continue
		}
		el := b.Element()
		list = nil
		if b.Kind == BlockListItem {
			list = el
		}
		out = append(out, el)
	}
	return out
}
