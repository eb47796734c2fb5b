// Package docx provides DOCX (Office Open XML) document parsing.
//
// The body of word/document.xml is streamed in order, so paragraphs,
// headings, lists, tables and images come out in reading order.
package docx

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tsawler/intelliparse/imagedoc"
	"github.com/tsawler/intelliparse/internal/ooxml"
	"github.com/tsawler/intelliparse/model"
)

const documentPart = "word/document.xml"

// Reader provides access to DOCX document content.
type Reader struct {
	name     string
	pkg      *ooxml.Package
	rels     *ooxml.Relationships
	styles   *styleResolver
	body     []bodyElement
	meta     model.Metadata
	warnings []string
}

// Open opens a DOCX file for reading.
func Open(filename string) (*Reader, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return OpenBytes(filepath.Base(filename), data)
}

// OpenBytes opens a DOCX document held in memory.
func OpenBytes(name string, data []byte) (*Reader, error) {
	pkg, err := ooxml.Open(data)
	if err != nil {
		return nil, err
	}
	if err := pkg.Require(documentPart); err != nil {
		return nil, err
	}

	r := &Reader{name: name, pkg: pkg}

	// Relationships are needed for images; a broken rels part only costs those
	if r.rels, err = pkg.Relationships(documentPart); err != nil {
		r.warnings = append(r.warnings, fmt.Sprintf("relationships: %v", err))
	}

	// Styles and numbering are optional
	var styles stylesXML
	var numbering numberingXML
	stylesPtr, numberingPtr := &styles, &numbering
	if err := pkg.ReadXML("word/styles.xml", stylesPtr); err != nil {
		stylesPtr = nil
	}
	if err := pkg.ReadXML("word/numbering.xml", numberingPtr); err != nil {
		numberingPtr = nil
	}
	r.styles = newStyleResolver(stylesPtr, numberingPtr)

	data, err = pkg.Read(documentPart)
	if err != nil {
		return nil, err
	}
	r.body, err = parseBody(bytes.NewReader(data))
	if err != nil {
		if len(r.body) == 0 {
			return nil, fmt.Errorf("parsing document: %w", err)
		}
		// keep what was read before the damage
		r.warnings = append(r.warnings, err.Error())
	}

	r.meta = pkg.Metadata()
	return r, nil
}

// Close releases resources associated with the Reader.
func (r *Reader) Close() error {
	r.pkg = nil
	return nil
}

// Warnings returns problems met while reading that did not stop parsing.
func (r *Reader) Warnings() []string {
	return r.warnings
}

// Metadata returns document metadata.
func (r *Reader) Metadata() model.Metadata {
	return r.meta
}

// Text extracts and returns all text content from the document.
func (r *Reader) Text() (string, error) {
	doc, err := r.Document()
	if err != nil {
		return "", err
	}
	return doc.Text(), nil
}

// Document returns the document as a single section. DOCX has no fixed
// pages.
func (r *Reader) Document() (*model.Document, error) {
	if r.pkg == nil {
		return nil, fmt.Errorf("reader is closed")
	}
	doc := model.NewDocument(r.name, "DOCX")
	doc.Metadata = r.meta
	sec := doc.AddSection("")

	var list *model.List
	var listNum string
	flush := func() {
		if list != nil && len(list.Items) > 0 {
			sec.Add(model.NewListElement(list))
		}
		list = nil
		listNum = ""
	}

	for _, el := range r.body {
		if el.Table != nil {
			flush()
			if len(el.Table.Rows) > 0 {
				sec.Add(model.NewTableElement(convertTable(el.Table)))
			}
			continue
		}

		p := el.Paragraph
		text := strings.TrimSpace(p.Text)
		numID := r.styles.listNumID(p.StyleID, p.NumID)

		level := r.styles.headingLevel(p.StyleID, p.OutlineLvl)

		switch {
		case text == "":
			// images-only paragraphs still fall through to drawings below
		case level == 0 && numID != "" && numID != "0":
			if list == nil || listNum != numID {
				flush()
				list = &model.List{Ordered: r.styles.ordered(numID, p.ILvl)}
				listNum = numID
			}
			list.Items = append(list.Items, model.ListItem{Text: text, Level: p.ILvl})
		default:
			flush()
			if level > 0 {
				sec.Add(model.NewHeading(text, level))
				if doc.Metadata.Title == "" && strings.EqualFold(p.StyleID, "title") {
					doc.Metadata.Title = text
				}
			} else {
				sec.Add(model.NewText(text))
			}
		}

		for _, dr := range p.Drawings {
			if img := r.image(dr); img != nil {
				flush()
				sec.Add(model.NewImageElement(img))
			}
		}
	}
	flush()
	return doc, nil
}

// image resolves a drawing reference to its media part.
func (r *Reader) image(dr drawingRef) *model.Image {
	if r.rels == nil {
		return nil
	}
	target, ok := r.rels.Target(dr.Embed)
	if !ok {
		return nil
	}
	data, err := r.pkg.Read(target)
	if err != nil {
		r.warnings = append(r.warnings, fmt.Sprintf("image %s: %v", target, err))
		return nil
	}
	img := imagedoc.NewImage(path.Base(target), data)
	img.Alt = dr.Alt
	return img
}
