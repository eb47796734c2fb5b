package docx

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// bodyElement is one block-level child of <w:body>, in document order.
type bodyElement struct {
	Paragraph *paragraphXML
	Table     *tableXML
}

// paragraphXML is a <w:p> flattened to its text, properties and drawings.
type paragraphXML struct {
	StyleID    string
	NumID      string
	ILvl       int
	OutlineLvl int // -1 when unset
	Text       string
	Drawings   []drawingRef
}

// drawingRef is an image reference found inside a paragraph.
type drawingRef struct {
	Embed string
	Name  string
	Alt   string
}

type pPrXML struct {
	Style      valXML  `xml:"pStyle"`
	OutlineLvl *valXML `xml:"outlineLvl"`
	NumPr      *struct {
		ILvl  valXML `xml:"ilvl"`
		NumID valXML `xml:"numId"`
	} `xml:"numPr"`
}

// UnmarshalXML walks the paragraph subtree in order. Text from runs,
// hyperlinks, insertions and text boxes is concatenated; deleted text,
// field instructions and fallback content are skipped.
func (p *paragraphXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	p.OutlineLvl = -1
	var sb strings.Builder
	var pending drawingRef
	depth := 0
	seenPPr := false

	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pPr":
				var ppr pPrXML
				if err := d.DecodeElement(&ppr, &t); err != nil {
					return err
				}
				if !seenPPr && depth == 0 {
					p.applyProps(ppr)
					seenPPr = true
				}
				continue
			case "t":
				var s string
				if err := d.DecodeElement(&s, &t); err != nil {
					return err
				}
				sb.WriteString(s)
				continue
			case "tab":
				sb.WriteString("\t")
			case "br", "cr":
				sb.WriteString("\n")
			case "delText", "instrText", "Fallback":
				if err := d.Skip(); err != nil {
					return err
				}
				continue
			case "p":
				// nested paragraph inside a text box
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
			case "docPr":
				pending = drawingRef{Name: attr(t, "name"), Alt: firstNonEmpty(attr(t, "descr"), attr(t, "title"))}
			case "blip":
				if embed := attr(t, "embed"); embed != "" {
					pending.Embed = embed
					p.Drawings = append(p.Drawings, pending)
					pending = drawingRef{}
				}
			}
			depth++
		case xml.EndElement:
			if depth == 0 {
				p.Text = sb.String()
				return nil
			}
			depth--
		}
	}
}

func (p *paragraphXML) applyProps(ppr pPrXML) {
	p.StyleID = ppr.Style.Val
	if ppr.OutlineLvl != nil {
		if n, err := strconv.Atoi(ppr.OutlineLvl.Val); err == nil {
			p.OutlineLvl = n
		}
	}
	if ppr.NumPr != nil {
		p.NumID = ppr.NumPr.NumID.Val
		p.ILvl, _ = strconv.Atoi(ppr.NumPr.ILvl.Val)
	}
}

// tableXML represents <w:tbl>.
type tableXML struct {
	Rows []rowXML `xml:"tr"`
}

type rowXML struct {
	Props struct {
		Header *valXML `xml:"tblHeader"`
	} `xml:"trPr"`
	Cells []cellXML `xml:"tc"`
}

type cellXML struct {
	Props struct {
		GridSpan valXML  `xml:"gridSpan"`
		VMerge   *valXML `xml:"vMerge"`
	} `xml:"tcPr"`
	Paragraphs []paragraphXML `xml:"p"`
	Tables     []tableXML     `xml:"tbl"`
}

// text joins the cell's paragraphs, flattening nested tables.
func (c cellXML) text() string {
	parts := make([]string, 0, len(c.Paragraphs))
	for _, p := range c.Paragraphs {
		if t := strings.TrimSpace(p.Text); t != "" {
			parts = append(parts, t)
		}
	}
	for _, nested := range c.Tables {
		for _, r := range nested.Rows {
			for _, nc := range r.Cells {
				if t := nc.text(); t != "" {
					parts = append(parts, t)
				}
			}
		}
	}
	return strings.Join(parts, "\n")
}

// parseBody streams word/document.xml and returns the block-level
// elements of the body in document order.
func parseBody(r io.Reader) ([]bodyElement, error) {
	d := xml.NewDecoder(r)
	inBody := false
	var out []bodyElement

	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, fmt.Errorf("parsing document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !inBody {
				if t.Name.Local == "body" {
					inBody = true
				}
				continue
			}
			switch t.Name.Local {
			case "p":
				var p paragraphXML
				if err := d.DecodeElement(&p, &t); err != nil {
					return out, fmt.Errorf("parsing paragraph: %w", err)
				}
				out = append(out, bodyElement{Paragraph: &p})
			case "tbl":
				var tbl tableXML
				if err := d.DecodeElement(&tbl, &t); err != nil {
					return out, fmt.Errorf("parsing table: %w", err)
				}
				out = append(out, bodyElement{Table: &tbl})
			case "sdt", "sdtContent", "customXml", "ins", "moveTo":
				// containers: descend and keep reading their children
			default:
				if err := d.Skip(); err != nil {
					return out, err
				}
			}
		case xml.EndElement:
			if inBody && t.Name.Local == "body" {
				return out, nil
			}
		}
	}
	if !inBody {
		return nil, fmt.Errorf("parsing document.xml: no body element")
	}
	return out, nil
}

func attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
