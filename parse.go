package intelliparse

import (
	"fmt"
	"runtime/debug"

	"github.com/tsawler/intelliparse/cad"
	"github.com/tsawler/intelliparse/docx"
	"github.com/tsawler/intelliparse/epubdoc"
	"github.com/tsawler/intelliparse/format"
	"github.com/tsawler/intelliparse/htmldoc"
	"github.com/tsawler/intelliparse/imagedoc"
	"github.com/tsawler/intelliparse/model"
	"github.com/tsawler/intelliparse/odt"
	"github.com/tsawler/intelliparse/pdf"
	"github.com/tsawler/intelliparse/pptx"
	"github.com/tsawler/intelliparse/textdoc"
	"github.com/tsawler/intelliparse/xlsx"
)

// documentReader is what every format reader provides.
type documentReader interface {
	Document() (*model.Document, error)
	Warnings() []string
	Close() error
}

// imageReader gives imagedoc.Reader the warnings method it lacks.
type imageReader struct{ *imagedoc.Reader }

func (imageReader) Warnings() []string { return nil }

// parse opens data with the reader for f and builds its document. A panic
// inside a reader becomes an error.
func (p *Pipeline) parse(name string, data []byte, f format.Format) (doc *model.Document, warnings []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error("parser panic", "file", name, "format", f.String(), "panic", rec, "stack", string(debug.Stack()))
			doc, err = nil, fmt.Errorf("%s: parser panic: %v", name, rec)
		}
	}()

	rd, err := p.open(name, data, f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", f, err)
	}
	defer rd.Close()

	doc, err = rd.Document()
	if err != nil {
		return nil, rd.Warnings(), fmt.Errorf("extracting %s: %w", name, err)
	}
	return doc, rd.Warnings(), nil
}

// openReader selects the reader for f.
func (p *Pipeline) openReader(name string, data []byte, f format.Format) (documentReader, error) {
	switch f {
	case format.PDF:
		opts := []pdf.Option{pdf.WithImages(true)}
		if len(p.cfg.Pages) > 0 {
			opts = append(opts, pdf.WithPages(p.cfg.Pages...))
		}
		return pdf.OpenBytes(name, data, opts...)
	case format.DOCX:
		return docx.OpenBytes(name, data)
	case format.PPTX:
		return pptx.OpenBytes(name, data, pptx.WithNotes(p.cfg.IncludeNotes))
	case format.XLSX:
		return xlsx.OpenBytes(name, data)
	case format.ODT:
		return odt.OpenBytes(name, data)
	case format.HTML:
		return htmldoc.OpenBytes(name, data)
	case format.EPUB:
		return epubdoc.OpenBytes(name, data)
	case format.TXT, format.Markdown, format.CSV:
		return textdoc.OpenBytes(name, data, textdoc.WithFormat(f))
	case format.DXF, format.DWG:
		return cad.OpenBytes(name, data)
	case format.PNG, format.JPEG, format.GIF, format.TIFF, format.BMP, format.WEBP:
		r, err := imagedoc.OpenBytes(name, data)
		if err != nil {
			return nil, err
		}
		return imageReader{r}, nil
	}
	return nil, fmt.Errorf("%s: %w", f, format.ErrUnsupported)
}
