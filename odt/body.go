package odt

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tsawler/intelliparse/model"
)

// ODF XML namespaces
const (
	nsOffice = "urn:oasis:names:tc:opendocument:xmlns:office:1.0"
	nsText   = "urn:oasis:names:tc:opendocument:xmlns:text:1.0"
	nsTable  = "urn:oasis:names:tc:opendocument:xmlns:table:1.0"
	nsDraw   = "urn:oasis:names:tc:opendocument:xmlns:drawing:1.0"
	nsSVG    = "urn:oasis:names:tc:opendocument:xmlns:svg-compatible:1.0"
	nsXLink  = "http://www.w3.org/1999/xlink"
)

// maxRepeat caps number-columns-repeated and number-rows-repeated, which
// LibreOffice uses to pad tables out to the sheet edge.
const maxRepeat = 64

// blockKind identifies a top-level body element.
type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
	blockList
	blockTable
)

// block is one body element in document order.
type block struct {
	kind   blockKind
	text   string
	level  int
	list   *model.List
	table  *model.Table
	images []imageRef
}

// imageRef points at a picture inside the package.
type imageRef struct {
	href string
	alt  string
}

// bodyParser walks office:text with a token decoder so paragraphs,
// lists and tables keep their order.
type bodyParser struct {
	dec    *xml.Decoder
	styles *styleResolver
	blocks []block
}

// parseBody reads the body of content.xml. On a decode error the blocks
// read so far are returned with the error.
func parseBody(r io.Reader, styles *styleResolver) ([]block, error) {
	p := &bodyParser{dec: xml.NewDecoder(r), styles: styles}
	inBody := false
	for {
		tok, err := p.dec.Token()
		if errors.Is(err, io.EOF) {
			return p.blocks, nil
		}
		if err != nil {
			return p.blocks, fmt.Errorf("content.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space == nsOffice && t.Name.Local == "text" {
				inBody = true
				continue
			}
			if !inBody {
				continue
			}
			if err := p.element(t); err != nil {
				return p.blocks, fmt.Errorf("content.xml: %w", err)
			}
		case xml.EndElement:
			if t.Name.Space == nsOffice && t.Name.Local == "text" {
				inBody = false
			}
		}
	}
}

// element handles one start tag inside the body. Containers such as
// text:section are not consumed, so their children arrive as later tokens.
func (p *bodyParser) element(t xml.StartElement) error {
	switch {
	case t.Name.Space == nsText && t.Name.Local == "h":
		text, images, err := p.inline(t)
		if err != nil {
			return err
		}
		level := 0
		if n, err := strconv.Atoi(attr(t, nsText, "outline-level")); err == nil {
			level = n
		}
		if level < 1 {
			level = max(1, p.styles.headingLevel(attr(t, nsText, "style-name")))
		}
		p.add(block{kind: blockHeading, text: text, level: level, images: images})
	case t.Name.Space == nsText && t.Name.Local == "p":
		text, images, err := p.inline(t)
		if err != nil {
			return err
		}
		b := block{kind: blockParagraph, text: text, images: images}
		if level := p.styles.headingLevel(attr(t, nsText, "style-name")); level > 0 {
			b.kind, b.level = blockHeading, level
		}
		p.add(b)
	case t.Name.Space == nsText && t.Name.Local == "list":
		list := &model.List{Ordered: p.styles.ordered(attr(t, nsText, "style-name"), 0)}
		var images []imageRef
		if err := p.list(t, list, 0, &images); err != nil {
			return err
		}
		if len(list.Items) > 0 || len(images) > 0 {
			p.blocks = append(p.blocks, block{kind: blockList, list: list, images: images})
		}
	case t.Name.Space == nsTable && t.Name.Local == "table":
		tbl, err := p.table(t)
		if err != nil {
			return err
		}
		if len(tbl.Rows) > 0 {
			p.blocks = append(p.blocks, block{kind: blockTable, table: tbl})
		}
	case t.Name.Space == nsText && (t.Name.Local == "sequence-decls" || t.Name.Local == "tracked-changes" || t.Name.Local == "table-of-content"):
		return p.dec.Skip()
	case t.Name.Space == nsOffice && t.Name.Local == "forms":
		return p.dec.Skip()
	}
	return nil
}

// add appends a paragraph or heading, dropping empty ones that carry no
// images.
func (p *bodyParser) add(b block) {
	b.text = strings.TrimSpace(b.text)
	if b.text == "" && len(b.images) == 0 {
		return
	}
	p.blocks = append(p.blocks, b)
}

// list flattens a text:list into items with their nesting depth.
func (p *bodyParser) list(start xml.StartElement, out *model.List, level int, images *[]imageRef) error {
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Space == nsText && t.Name.Local == "list":
				if err := p.list(t, out, level+1, images); err != nil {
					return err
				}
			case t.Name.Space == nsText && (t.Name.Local == "p" || t.Name.Local == "h"):
				text, imgs, err := p.inline(t)
				if err != nil {
					return err
				}
				*images = append(*images, imgs...)
				if text = strings.TrimSpace(text); text != "" {
					out.Items = append(out.Items, model.ListItem{Text: text, Level: level})
				}
			}
		case xml.EndElement:
			if t.Name == start.Name {
				return nil
			}
		}
	}
}

// inline collects the text of a paragraph-like element, expanding
// text:s, text:tab and text:line-break, and the pictures of any frames
// it anchors. Notes and annotations are left out of the flow.
func (p *bodyParser) inline(start xml.StartElement) (string, []imageRef, error) {
	var sb strings.Builder
	var images []imageRef
	frameStart := -1
	depth := 1
	for depth > 0 {
		tok, err := p.dec.Token()
		if err != nil {
			return sb.String(), images, err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			depth++
			switch {
			case t.Name.Space == nsText && t.Name.Local == "s":
				n, err := strconv.Atoi(attr(t, nsText, "c"))
				if err != nil || n < 1 {
					n = 1
				}
				sb.WriteString(strings.Repeat(" ", min(n, 256)))
			case t.Name.Space == nsText && t.Name.Local == "tab":
				sb.WriteByte('\t')
			case t.Name.Space == nsText && t.Name.Local == "line-break":
				sb.WriteByte('\n')
			case t.Name.Space == nsText && (t.Name.Local == "note" || t.Name.Local == "bookmark-ref"):
				if err := p.dec.Skip(); err != nil {
					return sb.String(), images, err
				}
				depth--
			case t.Name.Space == nsOffice && t.Name.Local == "annotation":
				if err := p.dec.Skip(); err != nil {
					return sb.String(), images, err
				}
				depth--
			case t.Name.Space == nsDraw && t.Name.Local == "frame":
				frameStart = len(images)
			case t.Name.Space == nsDraw && t.Name.Local == "image":
				if href := attr(t, nsXLink, "href"); href != "" {
					images = append(images, imageRef{href: href})
				}
			case t.Name.Space == nsSVG && (t.Name.Local == "title" || t.Name.Local == "desc"):
				var alt string
				if err := p.dec.DecodeElement(&alt, &t); err != nil {
					return sb.String(), images, err
				}
				depth--
				if frameStart >= 0 {
					for i := frameStart; i < len(images); i++ {
						if images[i].alt == "" {
							images[i].alt = strings.TrimSpace(alt)
						}
					}
				}
			}
		case xml.EndElement:
			depth--
			// paragraphs nested in text boxes or cells end a line
			if depth > 0 && t.Name.Space == nsText && (t.Name.Local == "p" || t.Name.Local == "h") {
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String(), images, nil
}

// table reads a table:table. Spanned cells carry their spans and the
// covered cells that follow them become zero-span placeholders, so every
// row covers the full grid.
func (p *bodyParser) table(start xml.StartElement) (*model.Table, error) {
	tbl := &model.Table{Confidence: 1}
	header := false
	var row []model.Cell
	rowRepeat := 1
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return tbl, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Space == nsTable && t.Name.Local == "table-header-rows":
				header = true
			case t.Name.Space == nsTable && t.Name.Local == "table-row":
				row = nil
				rowRepeat = min(positive(attr(t, nsTable, "number-rows-repeated")), maxRepeat)
			case t.Name.Space == nsTable && t.Name.Local == "table-cell":
				text, _, err := p.inline(t)
				if err != nil {
					return tbl, err
				}
				cell := model.Cell{
					Text:     strings.TrimSpace(text),
					ColSpan:  positive(attr(t, nsTable, "number-columns-spanned")),
					RowSpan:  positive(attr(t, nsTable, "number-rows-spanned")),
					IsHeader: header,
				}
				repeat := min(positive(attr(t, nsTable, "number-columns-repeated")), maxRepeat)
				for range repeat {
					row = append(row, cell)
				}
			case t.Name.Space == nsTable && t.Name.Local == "covered-table-cell":
				repeat := min(positive(attr(t, nsTable, "number-columns-repeated")), maxRepeat)
				for range repeat {
					row = append(row, model.Cell{})
				}
				if err := p.dec.Skip(); err != nil {
					return tbl, err
				}
			case t.Name.Space == nsTable && t.Name.Local == "table":
				// nested tables are flattened into the cell text by inline;
				// one reached here sits outside any cell
				if err := p.dec.Skip(); err != nil {
					return tbl, err
				}
			}
		case xml.EndElement:
			switch {
			case t.Name.Space == nsTable && t.Name.Local == "table-header-rows":
				header = false
				tbl.HasHeader = len(tbl.Rows) > 0
			case t.Name.Space == nsTable && t.Name.Local == "table-row":
				for range rowRepeat {
					tbl.Rows = append(tbl.Rows, append([]model.Cell(nil), row...))
				}
				row = nil
			case t.Name == start.Name:
				trimTable(tbl)
				if !tbl.HasHeader && len(tbl.Rows) > 1 {
					tbl.HasHeader = true
					for i := range tbl.Rows[0] {
						tbl.Rows[0][i].IsHeader = true
					}
				}
				return tbl, nil
			}
		}
	}
}

// trimTable drops trailing empty rows and columns left by repeated
// padding cells.
func trimTable(tbl *model.Table) {
	for len(tbl.Rows) > 0 && emptyRow(tbl.Rows[len(tbl.Rows)-1]) {
		tbl.Rows = tbl.Rows[:len(tbl.Rows)-1]
	}
	width := 0
	for _, r := range tbl.Rows {
		for j := len(r) - 1; j >= 0; j-- {
			if r[j].Text != "" || r[j].ColSpan > 1 {
				width = max(width, j+max(1, r[j].ColSpan))
				break
			}
		}
	}
	for i, r := range tbl.Rows {
		if len(r) > width {
			tbl.Rows[i] = r[:width]
		}
	}
}

func emptyRow(r []model.Cell) bool {
	for _, c := range r {
		if c.Text != "" {
			return false
		}
	}
	return true
}

// positive parses a count attribute, defaulting to 1.
func positive(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// attr returns the value of the attribute space:local.
func attr(t xml.StartElement, space, local string) string {
	for _, a := range t.Attr {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
