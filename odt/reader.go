// Package odt provides ODT (OpenDocument Text) document parsing.
package odt

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/tsawler/intelliparse/imagedoc"
	"github.com/tsawler/intelliparse/internal/ooxml"
	"github.com/tsawler/intelliparse/model"
)

const contentPart = "content.xml"

// Reader provides access to ODT document content.
type Reader struct {
	name     string
	pkg      *ooxml.Package
	blocks   []block
	meta     model.Metadata
	warnings []string
}

// Open opens an ODT file for reading.
func Open(filename string) (*Reader, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return OpenBytes(filepath.Base(filename), data)
}

// OpenBytes opens an ODT document held in memory.
func OpenBytes(name string, data []byte) (*Reader, error) {
	pkg, err := ooxml.Open(data)
	if err != nil {
		return nil, err
	}
	if err := pkg.Require(contentPart); err != nil {
		return nil, err
	}
	r := &Reader{name: name, pkg: pkg}

	content, err := pkg.Read(contentPart)
	if err != nil {
		return nil, err
	}

	// styles.xml is optional; content.xml automatic styles override it
	var docStyles stylesXML
	if err := pkg.ReadXML("styles.xml", &docStyles); err != nil && pkg.Has("styles.xml") {
		r.warnings = append(r.warnings, fmt.Sprintf("styles: %v", err))
	}
	var auto contentStylesXML
	_ = xml.Unmarshal(content, &auto)
	styles := newStyleResolver(docStyles.Styles, docStyles.AutoStyles, auto.AutoStyles)

	r.blocks, err = parseBody(bytes.NewReader(content), styles)
	if err != nil {
		if len(r.blocks) == 0 {
			return nil, fmt.Errorf("parsing content: %w", err)
		}
		r.warnings = append(r.warnings, err.Error())
	}

	r.meta = r.readMeta()
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

// Document returns the document as a single section. ODT has no fixed
// pages.
func (r *Reader) Document() (*model.Document, error) {
	if r.pkg == nil {
		return nil, fmt.Errorf("reader is closed")
	}
	doc := model.NewDocument(r.name, "ODT")
	doc.Metadata = r.meta
	sec := doc.AddSection("")

	for _, b := range r.blocks {
		switch b.kind {
		case blockHeading:
			if b.text != "" {
				sec.Add(model.NewHeading(b.text, b.level))
			}
		case blockParagraph:
			if b.text != "" {
				sec.Add(model.NewText(b.text))
			}
		case blockList:
			if len(b.list.Items) > 0 {
				sec.Add(model.NewListElement(b.list))
			}
		case blockTable:
			sec.Add(model.NewTableElement(b.table))
		}
		for _, ref := range b.images {
			if img := r.image(ref); img != nil {
				sec.Add(model.NewImageElement(img))
			}
		}
	}
	return doc, nil
}

// image loads a picture stored in the package. Linked external images
// are skipped.
func (r *Reader) image(ref imageRef) *model.Image {
	name := strings.TrimPrefix(ref.href, "./")
	if strings.Contains(name, "://") || !r.pkg.Has(name) {
		return nil
	}
	data, err := r.pkg.Read(name)
	if err != nil {
		r.warnings = append(r.warnings, fmt.Sprintf("image %s: %v", name, err))
		return nil
	}
	img := imagedoc.NewImage(path.Base(name), data)
	img.Alt = ref.alt
	return img
}

// metaXML represents meta.xml.
type metaXML struct {
	XMLName xml.Name `xml:"document-meta"`
	Meta    struct {
		Title          string   `xml:"title"`
		Description    string   `xml:"description"`
		Subject        string   `xml:"subject"`
		Keywords       []string `xml:"keyword"`
		InitialCreator string   `xml:"initial-creator"`
		Creator        string   `xml:"creator"`
		CreationDate   string   `xml:"creation-date"`
		Date           string   `xml:"date"`
		Generator      string   `xml:"generator"`
		Language       string   `xml:"language"`
		Stats          struct {
			PageCount string `xml:"page-count,attr"`
			WordCount string `xml:"word-count,attr"`
		} `xml:"document-statistic"`
	} `xml:"meta"`
}

// readMeta maps meta.xml onto model.Metadata. A missing or broken
// meta.xml yields empty metadata.
func (r *Reader) readMeta() model.Metadata {
	meta := model.Metadata{PageCount: 1}
	var x metaXML
	if err := r.pkg.ReadXML("meta.xml", &x); err != nil {
		return meta
	}
	m := x.Meta
	meta.Title = strings.TrimSpace(m.Title)
	meta.Subject = strings.TrimSpace(m.Subject)
	meta.Author = strings.TrimSpace(m.InitialCreator)
	if meta.Author == "" {
		meta.Author = strings.TrimSpace(m.Creator)
	}
	meta.Creator = strings.TrimSpace(m.Generator)
	meta.Language = strings.TrimSpace(m.Language)
	for _, k := range m.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			meta.Keywords = append(meta.Keywords, k)
		}
	}
	meta.Created = parseODFDate(m.CreationDate)
	meta.Modified = parseODFDate(m.Date)
	if m.Description != "" || m.Stats.WordCount != "" || m.Creator != "" {
		meta.Custom = map[string]string{}
		if m.Description != "" {
			meta.Custom["description"] = strings.TrimSpace(m.Description)
		}
		if m.Stats.WordCount != "" {
			meta.Custom["word_count"] = m.Stats.WordCount
		}
		if m.Creator != "" {
			meta.Custom["last_modified_by"] = strings.TrimSpace(m.Creator)
		}
	}
	return meta
}

// parseODFDate parses an xsd:dateTime, with or without zone and
// fractional seconds.
func parseODFDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
