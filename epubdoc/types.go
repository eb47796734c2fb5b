// Package epubdoc provides EPUB document parsing.
//
// The container is located through META-INF/container.xml, the package
// document (OPF) supplies metadata and the spine, and each spine item is
// parsed as an HTML chapter. DRM-protected books are rejected.
package epubdoc

import (
	"time"
)

// Publication represents the parsed OPF document.
type Publication struct {
	Metadata Metadata
	Manifest map[string]ManifestItem // keyed by ID
	Spine    []SpineItem
	Version  string // "2.0" or "3.0"
}

// Metadata contains EPUB metadata (Dublin Core).
type Metadata struct {
	Title       string
	Creator     []string
	Language    string
	Identifier  string // ISBN, UUID, etc.
	Publisher   string
	Date        string
	Description string
	Subjects    []string
	Rights      string
	Modified    time.Time
}

// ManifestItem represents a file in the EPUB.
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties []string // "nav", "cover-image", etc.
}

// HasProperty reports whether the item carries the given property.
func (m ManifestItem) HasProperty(p string) bool {
	for _, prop := range m.Properties {
		if prop == p {
			return true
		}
	}
	return false
}

// SpineItem represents a content document in reading order.
type SpineItem struct {
	IDRef  string
	Linear bool // true if part of main reading order
}

// Chapter is one spine item with its raw XHTML.
type Chapter struct {
	ID      string
	Title   string
	Index   int
	Href    string
	Linear  bool
	Content []byte
}

// TableOfContents represents the navigation structure.
type TableOfContents struct {
	Title   string
	Entries []TOCEntry
}

// TOCEntry represents a single navigation entry.
type TOCEntry struct {
	Title    string
	Href     string
	Children []TOCEntry
}

// Flatten returns the entries in depth-first order.
func (t *TableOfContents) Flatten() []TOCEntry {
	var out []TOCEntry
	var walk func([]TOCEntry)
	walk = func(entries []TOCEntry) {
		for _, e := range entries {
			out = append(out, e)
			walk(e.Children)
		}
	}
	walk(t.Entries)
	return out
}
