package epubdoc

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tsawler/intelliparse/htmldoc"
	"github.com/tsawler/intelliparse/internal/ooxml"
	"github.com/tsawler/intelliparse/model"
)

// Reader-related errors.
var (
	ErrInvalidArchive  = errors.New("epub: invalid or corrupted archive")
	ErrInvalidMimetype = errors.New("epub: invalid mimetype (not an EPUB)")
	ErrMissingContent  = errors.New("epub: referenced content file not found")
)

// Reader provides access to EPUB content.
type Reader struct {
	name     string
	pkg      *ooxml.Package
	pub      *Publication
	baseDir  string // directory containing the OPF
	chapters []*Chapter
	toc      *TableOfContents
	mode     htmldoc.NavigationExclusionMode
	warnings []string
}

// Option configures a Reader.
type Option func(*Reader)

// WithNavigationExclusion sets the boilerplate filter applied to every
// chapter. The default is htmldoc.NavigationExclusionStandard.
func WithNavigationExclusion(mode htmldoc.NavigationExclusionMode) Option {
	return func(r *Reader) { r.mode = mode }
}

// Open opens an EPUB file from a path.
func Open(filename string, opts ...Option) (*Reader, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return OpenBytes(filepath.Base(filename), data, opts...)
}

// OpenBytes opens an EPUB held in memory. DRM-protected books fail with
// ErrDRMProtected.
func OpenBytes(name string, data []byte, opts ...Option) (*Reader, error) {
	pkg, err := ooxml.Open(data)
	if err != nil {
		return nil, ErrInvalidArchive
	}
	r := &Reader{name: name, pkg: pkg, mode: htmldoc.NavigationExclusionStandard}
	for _, opt := range opts {
		opt(r)
	}

	// some books omit the mimetype entry; that alone is not fatal
	if err := r.validateMimetype(); err != nil {
		r.warnings = append(r.warnings, err.Error())
	}
	if err := checkForDRM(pkg); err != nil {
		return nil, err
	}

	opfPath, err := parseContainer(pkg)
	if err != nil {
		return nil, err
	}
	if r.pub, r.baseDir, err = parseOPF(pkg, opfPath); err != nil {
		return nil, err
	}
	if err := r.loadChapters(); err != nil {
		return nil, err
	}
	r.applyTOCTitles()
	return r, nil
}

func (r *Reader) validateMimetype() error {
	data, err := r.pkg.Read("mimetype")
	if err != nil || strings.TrimSpace(string(data)) != "application/epub+zip" {
		return ErrInvalidMimetype
	}
	return nil
}

// loadChapters reads every spine item. Missing or unreadable items become
// warnings; a book with no readable chapter is an error.
func (r *Reader) loadChapters() error {
	r.chapters = make([]*Chapter, 0, len(r.pub.Spine))
	for i, si := range r.pub.Spine {
		item, ok := r.pub.Manifest[si.IDRef]
		if !ok {
			r.warnings = append(r.warnings, fmt.Sprintf("spine item %q not in manifest", si.IDRef))
			continue
		}
		href := r.resolveHref(item.Href)
		content, err := r.pkg.Read(href)
		if err != nil {
			r.warnings = append(r.warnings, fmt.Sprintf("%v: %s", ErrMissingContent, href))
			continue
		}
		r.chapters = append(r.chapters, &Chapter{
			ID:      item.ID,
			Index:   i,
			Href:    href,
			Linear:  si.Linear,
			Content: content,
			Title:   chapterTitle(content),
		})
	}
	if len(r.chapters) == 0 {
		return ErrEmptySpine
	}
	return nil
}

// chapterTitle returns the <title> of a chapter or its first heading.
func chapterTitle(content []byte) string {
	hr, err := htmldoc.OpenBytes("", content, htmldoc.WithNavigationExclusion(htmldoc.NavigationExclusionNone))
	if err != nil {
		return ""
	}
	defer hr.Close()
	return hr.Title()
}

// applyTOCTitles prefers the first navigation label that points at a
// chapter over the chapter's own title.
func (r *Reader) applyTOCTitles() {
	labels := map[string]string{}
	for _, e := range r.TableOfContents().Flatten() {
		file, _, _ := strings.Cut(e.Href, "#")
		if _, seen := labels[file]; !seen && e.Title != "" {
			labels[file] = e.Title
		}
	}
	for _, ch := range r.chapters {
		if label, ok := labels[ch.Href]; ok {
			ch.Title = label
		}
	}
}

// resolveHref resolves a manifest href against the OPF directory.
func (r *Reader) resolveHref(href string) string {
	return path.Join(r.baseDir, unescape(href))
}

func unescape(s string) string {
	if decoded, err := url.PathUnescape(s); err == nil {
		return decoded
	}
	return s
}

// Close releases resources associated with the Reader.
func (r *Reader) Close() error {
	r.pkg = nil
	r.chapters = nil
	return nil
}

// Warnings returns problems met while reading that did not stop parsing.
func (r *Reader) Warnings() []string {
	return r.warnings
}

// Publication returns the parsed package document.
func (r *Reader) Publication() *Publication {
	return r.pub
}

// Metadata maps the Dublin Core metadata onto model.Metadata.
func (r *Reader) Metadata() model.Metadata {
	m := r.pub.Metadata
	meta := model.Metadata{
		Title:     m.Title,
		Author:    strings.Join(m.Creator, ", "),
		Subject:   m.Description,
		Keywords:  m.Subjects,
		Producer:  m.Publisher,
		Language:  m.Language,
		Created:   parseDate(m.Date),
		Modified:  m.Modified,
		PageCount: len(r.chapters),
		Custom:    map[string]string{},
	}
	if r.pub.Version != "" {
		meta.Custom["epub_version"] = r.pub.Version
	}
	if m.Identifier != "" {
		meta.Custom["identifier"] = m.Identifier
	}
	if m.Rights != "" {
		meta.Custom["rights"] = m.Rights
	}
	return meta
}

// ChapterCount returns the number of chapters.
func (r *Reader) ChapterCount() int {
	return len(r.chapters)
}

// Chapters returns all chapters in spine order.
func (r *Reader) Chapters() []*Chapter {
	return r.chapters
}

// Text extracts plain text from all chapters.
func (r *Reader) Text() (string, error) {
	doc, err := r.Document()
	if err != nil {
		return "", err
	}
	return doc.Text(), nil
}

// Document returns one section per chapter. A chapter that fails to parse
// is skipped with a warning.
func (r *Reader) Document() (*model.Document, error) {
	if r.pkg == nil {
		return nil, fmt.Errorf("reader is closed")
	}
	doc := model.NewDocument(r.name, "EPUB")
	doc.Metadata = r.Metadata()

	for _, ch := range r.chapters {
		hr, err := htmldoc.OpenBytes(path.Base(ch.Href), ch.Content,
			htmldoc.WithNavigationExclusion(r.mode),
			htmldoc.WithImageLoader(r.imageLoader(ch.Href)))
		if err != nil {
			r.warnings = append(r.warnings, fmt.Sprintf("chapter %s: %v", ch.Href, err))
			continue
		}
		chDoc, err := hr.Document()
		for _, w := range hr.Warnings() {
			r.warnings = append(r.warnings, fmt.Sprintf("chapter %s: %s", ch.Href, w))
		}
		hr.Close()
		if err != nil {
			r.warnings = append(r.warnings, fmt.Sprintf("chapter %s: %v", ch.Href, err))
			continue
		}

		sec := doc.AddSection(ch.Title)
		for _, s := range chDoc.Sections {
			for _, el := range s.Elements {
				sec.Add(el)
			}
			sec.Markdown = strings.TrimSpace(sec.Markdown + "\n\n" + s.Markdown)
		}
	}
	return doc, nil
}

// imageLoader resolves <img> sources relative to the chapter.
func (r *Reader) imageLoader(chapterHref string) htmldoc.ImageLoader {
	return func(src string) ([]byte, error) {
		if strings.Contains(src, "://") {
			return nil, fmt.Errorf("external image not fetched")
		}
		file, _, _ := strings.Cut(src, "#")
		data, err := r.pkg.Read(ooxml.ResolveTarget(chapterHref, unescape(file)))
		if err != nil {
			return nil, ErrMissingContent
		}
		return data, nil
	}
}
