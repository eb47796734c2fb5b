package htmldoc

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"github.com/tsawler/intelliparse/imagedoc"
	"github.com/tsawler/intelliparse/model"
)

// maxSpan caps rowspan and colspan attributes.
const maxSpan = 100

// blockTags are elements that break the inline flow.
var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "body": true,
	"dd": true, "details": true, "dialog": true, "div": true, "dl": true, "dt": true,
	"fieldset": true, "figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true, "ol": true,
	"p": true, "pre": true, "section": true, "summary": true, "table": true, "ul": true,
}

// walker turns a cleaned DOM into section elements. Inline content is
// buffered until the next block boundary so that text loose inside a
// container still becomes a paragraph in the right place.
type walker struct {
	sec      *model.Section
	loader   ImageLoader
	inline   strings.Builder
	pending  []*model.Image
	warnings []string
}

// container walks the children of a block element.
func (w *walker) container(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && blockTags[c.Data] {
			w.flush()
			w.block(c)
			continue
		}
		w.collect(c)
	}
	w.flush()
}

// block emits the element for one block-level node.
func (w *walker) block(n *html.Node) {
	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		if text := strings.Join(strings.Fields(textContent(n, false)), " "); text != "" {
			w.sec.Add(model.NewHeading(text, int(n.Data[1]-'0')))
		}
		w.images(n)
	case "ul", "ol":
		list := &model.List{Ordered: n.Data == "ol"}
		w.listItems(n, 0, list)
		if len(list.Items) > 0 {
			w.sec.Add(model.NewListElement(list))
		}
		w.flush()
	case "table":
		if tbl := parseTable(n); tbl.RowCount() > 0 {
			w.sec.Add(model.NewTableElement(tbl))
		}
	case "pre":
		if text := strings.Trim(textContent(n, true), "\n"); strings.TrimSpace(text) != "" {
			w.sec.Add(model.NewText(text))
		}
	case "hr":
	default:
		w.container(n)
	}
}

// listItems flattens li children, descending into nested lists with a
// deeper level. Images inside items are emitted after the list.
func (w *walker) listItems(n *html.Node, level int, list *model.List) {
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		var sb strings.Builder
		var nested []*html.Node
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "ul" || c.Data == "ol") {
				nested = append(nested, c)
				continue
			}
			w.inlineText(c, &sb)
			sb.WriteByte(' ')
		}
		if text := collapseSpace(sb.String()); text != "" {
			list.Items = append(list.Items, model.ListItem{Text: text, Level: level})
		}
		for _, sub := range nested {
			w.listItems(sub, level+1, list)
		}
	}
}

// collect appends an inline node to the paragraph buffer.
func (w *walker) collect(n *html.Node) {
	w.inlineText(n, &w.inline)
}

// inlineText writes the text of n, registering images and descending into
// block children as plain text.
func (w *walker) inlineText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(flatten(n.Data))
		return
	case html.ElementNode:
		switch n.Data {
		case "br":
			sb.WriteByte('\n')
			return
		case "img":
			if img := w.image(n); img != nil {
				w.pending = append(w.pending, img)
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.inlineText(c, sb)
	}
	if n.Type == html.ElementNode && blockTags[n.Data] {
		sb.WriteByte('\n')
	}
}

// images registers the pictures found under n.
func (w *walker) images(n *html.Node) {
	var visit func(*html.Node)
	visit = func(c *html.Node) {
		if c.Type == html.ElementNode && c.Data == "img" {
			if img := w.image(c); img != nil {
				w.pending = append(w.pending, img)
			}
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			visit(k)
		}
	}
	visit(n)
	w.flush()
}

// flush emits the buffered paragraph and then any buffered images.
func (w *walker) flush() {
	if text := collapseSpace(w.inline.String()); text != "" {
		w.sec.Add(model.NewText(text))
	}
	w.inline.Reset()
	for _, img := range w.pending {
		w.sec.Add(model.NewImageElement(img))
	}
	w.pending = nil
}

// image builds a model.Image for an <img>. Data URLs are decoded in place;
// other sources go through the loader when one is set. Without data the
// image still carries its name and alt text.
func (w *walker) image(n *html.Node) *model.Image {
	src := strings.TrimSpace(attr(n, "src"))
	alt := collapseSpace(attr(n, "alt"))
	if src == "" {
		return nil
	}
	var data []byte
	name := path.Base(src)
	if strings.HasPrefix(src, "data:") {
		var err error
		if data, err = decodeDataURL(src); err != nil {
			w.warnings = append(w.warnings, fmt.Sprintf("image: %v", err))
			return nil
		}
		name = fmt.Sprintf("inline_%d", len(w.sec.Images)+len(w.pending)+1)
	} else if w.loader != nil {
		var err error
		if data, err = w.loader(src); err != nil {
			w.warnings = append(w.warnings, fmt.Sprintf("image %s: %v", src, err))
			data = nil
		}
	}
	if data == nil {
		return &model.Image{Name: name, Alt: alt}
	}
	img := imagedoc.NewImage(name, data)
	img.Alt = alt
	return img
}

// decodeDataURL decodes the payload of a data: URL.
func decodeDataURL(src string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URL")
	}
	if strings.HasSuffix(header, ";base64") {
		return base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	}
	s, err := url.PathUnescape(payload)
	return []byte(s), err
}

// parseTable builds a grid from an HTML table. A spanning cell is followed
// by zero-span placeholders in the columns and rows it covers.
func parseTable(n *html.Node) *model.Table {
	tbl := &model.Table{Confidence: 1}
	carry := map[int]int{} // column -> rows still covered by a rowspan
	theadRows := 0

	var rows []*html.Node
	var inHead []bool
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "tr":
			rows = append(rows, c)
			inHead = append(inHead, false)
		case "thead", "tbody", "tfoot":
			for tr := c.FirstChild; tr != nil; tr = tr.NextSibling {
				if tr.Type == html.ElementNode && tr.Data == "tr" {
					rows = append(rows, tr)
					inHead = append(inHead, c.Data == "thead")
				}
			}
		}
	}

	for i, tr := range rows {
		var row []model.Cell
		col := 0
		fill := func() {
			for carry[col] > 0 {
				carry[col]--
				row = append(row, model.Cell{})
				col++
			}
		}
		allTH := true
		for td := tr.FirstChild; td != nil; td = td.NextSibling {
			if td.Type != html.ElementNode || (td.Data != "td" && td.Data != "th") {
				continue
			}
			fill()
			colspan := spanAttr(td, "colspan")
			rowspan := spanAttr(td, "rowspan")
			if td.Data != "th" {
				allTH = false
			}
			row = append(row, model.Cell{
				Text:     collapseSpace(textContent(td, false)),
				ColSpan:  colspan,
				RowSpan:  rowspan,
				IsHeader: inHead[i] || td.Data == "th",
			})
			for k := 1; k < colspan; k++ {
				row = append(row, model.Cell{})
			}
			if rowspan > 1 {
				for k := 0; k < colspan; k++ {
					carry[col+k] = rowspan - 1
				}
			}
			col += colspan
		}
		// rowspans reaching past the last cell of this row
		for c, left := range carry {
			if c >= col && left > 0 {
				for len(row) <= c {
					row = append(row, model.Cell{})
				}
				carry[c]--
			}
		}
		if len(row) == 0 {
			continue
		}
		if inHead[i] || (len(tbl.Rows) == 0 && allTH) {
			theadRows++
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	tbl.HasHeader = theadRows > 0
	return tbl
}

func spanAttr(n *html.Node, key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(attr(n, key)))
	if err != nil || v < 1 {
		return 1
	}
	return min(v, maxSpan)
}

// textContent returns the text under n with <br> and block ends as
// newlines. Unless raw is set, source whitespace counts as spaces.
func textContent(n *html.Node, raw bool) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(c *html.Node) {
		switch {
		case c.Type == html.TextNode && raw:
			sb.WriteString(c.Data)
		case c.Type == html.TextNode:
			sb.WriteString(flatten(c.Data))
		case c.Type == html.ElementNode && c.Data == "br":
			sb.WriteByte('\n')
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			visit(k)
		}
		if c.Type == html.ElementNode && blockTags[c.Data] {
			sb.WriteByte('\n')
		}
	}
	visit(n)
	return sb.String()
}

// flatten turns every whitespace rune into a plain space, so that only
// <br> and block boundaries produce line breaks.
func flatten(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)
}

// collapseSpace folds whitespace runs within each line to one space and
// drops blank lines.
func collapseSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// attr returns the value of an attribute, or "".
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
