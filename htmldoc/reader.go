// Package htmldoc provides HTML document parsing.
//
// Input is decoded to UTF-8 from its declared or sniffed charset, scripts
// and boilerplate navigation are removed, and the remaining body is walked
// in document order into headings, paragraphs, lists, tables and images.
// Section markdown comes from a sanitized copy of the same body.
package htmldoc

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html/charset"

	"github.com/tsawler/intelliparse/model"
)

// skipSelector matches elements that never carry readable content.
const skipSelector = "script, style, noscript, template, svg, math, iframe, object, embed"

// ImageLoader returns the bytes of an image referenced by src. It is used
// for non-data URLs, e.g. pictures inside an EPUB package.
type ImageLoader func(src string) ([]byte, error)

// Reader provides access to HTML document content.
type Reader struct {
	name        string
	doc         *goquery.Document
	body        *goquery.Selection
	meta        model.Metadata
	mode        NavigationExclusionMode
	contentType string
	loader      ImageLoader
	warnings    []string
	closed      bool
}

// Option configures a Reader.
type Option func(*Reader)

// WithNavigationExclusion sets how navigation, headers and footers are
// filtered. The default is NavigationExclusionStandard.
func WithNavigationExclusion(mode NavigationExclusionMode) Option {
	return func(r *Reader) { r.mode = mode }
}

// WithContentType passes a Content-Type header whose charset parameter
// takes precedence over sniffing.
func WithContentType(ct string) Option {
	return func(r *Reader) { r.contentType = ct }
}

// WithImageLoader resolves <img> sources that are not data URLs.
func WithImageLoader(l ImageLoader) Option {
	return func(r *Reader) { r.loader = l }
}

// Open opens an HTML file for reading.
func Open(filename string, opts ...Option) (*Reader, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return OpenBytes(filepath.Base(filename), data, opts...)
}

// OpenBytes parses an HTML document held in memory.
func OpenBytes(name string, data []byte, opts ...Option) (*Reader, error) {
	return OpenReader(name, bytes.NewReader(data), opts...)
}

// OpenReader parses HTML from an io.Reader.
func OpenReader(name string, rd io.Reader, opts ...Option) (*Reader, error) {
	r := &Reader{name: name, mode: NavigationExclusionStandard}
	for _, opt := range opts {
		opt(r)
	}

	decoded, err := charset.NewReader(rd, r.contentType)
	if err != nil {
		return nil, fmt.Errorf("decoding charset: %w", err)
	}
	r.doc, err = goquery.NewDocumentFromReader(decoded)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	r.meta = readMeta(r.doc)
	r.doc.Find(skipSelector).Remove()

	r.body = r.doc.Find("body").First()
	if r.body.Length() == 0 {
		r.body = r.doc.Selection
	}
	if r.body.Length() > 0 {
		excludeNavigation(r.mode, r.body.Get(0))
	}
	return r, nil
}

// Close releases resources associated with the Reader.
func (r *Reader) Close() error {
	r.closed = true
	r.doc = nil
	return nil
}

// Warnings returns problems met while reading that did not stop parsing.
func (r *Reader) Warnings() []string {
	return r.warnings
}

// Metadata returns document metadata from <title>, <html lang> and
// <meta> tags.
func (r *Reader) Metadata() model.Metadata {
	return r.meta
}

// Text extracts and returns all text content from the HTML document.
func (r *Reader) Text() (string, error) {
	doc, err := r.Document()
	if err != nil {
		return "", err
	}
	return doc.Text(), nil
}

// Markdown converts the cleaned, sanitized body to Markdown.
func (r *Reader) Markdown() (string, error) {
	if r.closed {
		return "", fmt.Errorf("reader is closed")
	}
	src, err := r.body.Html()
	if err != nil {
		return "", fmt.Errorf("rendering body: %w", err)
	}
	md, err := newConverter().ConvertString(sanitizer().Sanitize(src))
	if err != nil {
		return "", fmt.Errorf("converting to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}

// Document returns the page as a single section. The section markdown is
// produced by the HTML to Markdown converter; a failed conversion falls
// back to markdown rendered from the elements.
func (r *Reader) Document() (*model.Document, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}
	doc := model.NewDocument(r.name, "HTML")
	doc.Metadata = r.meta
	sec := doc.AddSection(r.meta.Title)

	w := &walker{sec: sec, loader: r.loader}
	if r.body.Length() > 0 {
		w.container(r.body.Get(0))
	}
	w.flush()
	r.warnings = append(r.warnings, w.warnings...)

	if md, err := r.Markdown(); err == nil && md != "" {
		sec.Markdown = md
	} else if err != nil {
		r.warnings = append(r.warnings, err.Error())
	}
	return doc, nil
}

// Title returns the document title, falling back to the first heading.
func (r *Reader) Title() string {
	if r.meta.Title != "" {
		return r.meta.Title
	}
	if r.doc == nil {
		return ""
	}
	return collapseSpace(r.body.Find("h1, h2, h3, h4, h5, h6").First().Text())
}

func newConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
}

// sanitizer keeps user-generated-content markup plus inline images.
func sanitizer() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowDataURIImages()
	return p
}

// readMeta collects the title, language and named <meta> tags.
func readMeta(doc *goquery.Document) model.Metadata {
	meta := model.Metadata{PageCount: 1}
	meta.Title = collapseSpace(doc.Find("head title").First().Text())
	if lang, ok := doc.Find("html").First().Attr("lang"); ok {
		meta.Language = strings.TrimSpace(lang)
	}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key := s.AttrOr("name", s.AttrOr("property", ""))
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if key == "" || content == "" {
			return
		}
		switch strings.ToLower(key) {
		case "author":
			meta.Author = content
		case "description", "og:description":
			if meta.Subject == "" {
				meta.Subject = content
			}
		case "keywords":
			for _, kw := range strings.Split(content, ",") {
				if kw = strings.TrimSpace(kw); kw != "" {
					meta.Keywords = append(meta.Keywords, kw)
				}
			}
		case "generator":
			meta.Creator = content
		case "og:title":
			if meta.Title == "" {
				meta.Title = content
			}
		default:
			if meta.Custom == nil {
				meta.Custom = map[string]string{}
			}
			meta.Custom[key] = content
		}
	})
	return meta
}
