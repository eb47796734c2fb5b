package model

import (
	"fmt"
	"strings"
	"time"
)

// MergedName is the name given to documents built by MergeDocuments.
const MergedName = "MergedFile"

// Document represents a complete extracted file
type Document struct {
	Name     string     `json:"name"`
	Format   string     `json:"format"`
	Metadata Metadata   `json:"metadata"`
	Sections []*Section `json:"sections"`
}

// Metadata contains document-level information
type Metadata struct {
	Title     string    `json:"title,omitempty"`
	Author    string    `json:"author,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Keywords  []string  `json:"keywords,omitempty"`
	Creator   string    `json:"creator,omitempty"`
	Producer  string    `json:"producer,omitempty"`
	Language  string    `json:"language,omitempty"`
	Created   time.Time `json:"created,omitzero"`
	Modified  time.Time `json:"modified,omitzero"`
	PageCount int       `json:"page_count,omitempty"`
	// Custom metadata
	Custom map[string]string `json:"custom,omitempty"`
}

// NewDocument creates a new empty document
func NewDocument(name, format string) *Document {
	return &Document{
		Name:   name,
		Format: format,
		Metadata: Metadata{
			Custom: make(map[string]string),
		},
		Sections: make([]*Section, 0),
	}
}

// AddSection appends a new section and returns it. Sections are numbered
// from 1 in the order they are added.
func (d *Document) AddSection(title string) *Section {
	s := &Section{Number: len(d.Sections) + 1, Title: title}
	d.Sections = append(d.Sections, s)
	return s
}

// Section returns a section by number (1-indexed)
func (d *Document) Section(number int) *Section {
	if number < 1 || number > len(d.Sections) {
		return nil
	}
	return d.Sections[number-1]
}

// Elements returns every element of the document in reading order.
func (d *Document) Elements() []*Element {
	var out []*Element
	for _, s := range d.Sections {
		out = append(out, s.Elements...)
	}
	return out
}

// Tables returns all tables from all sections
func (d *Document) Tables() []*Table {
	var tables []*Table
	for _, el := range d.Elements() {
		if el.Type == ElementTypeTable && el.Table != nil {
			tables = append(tables, el.Table)
		}
	}
	return tables
}

// Images returns all images from all sections
func (d *Document) Images() []*Image {
	var images []*Image
	for _, s := range d.Sections {
		images = append(images, s.Images...)
	}
	return images
}

// Text returns the plain text of all sections separated by blank lines.
func (d *Document) Text() string {
	parts := make([]string, 0, len(d.Sections))
	for _, s := range d.Sections {
		if t := s.text(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Markdown returns the markdown of all sections joined by newlines.
func (d *Document) Markdown() string {
	parts := make([]string, len(d.Sections))
	for i, s := range d.Sections {
		parts[i] = s.markdown()
	}
	return strings.Join(parts, "\n")
}

// LLMDescribedText renders the document in the tagged form used when the
// whole file is handed to a language model.
func (d *Document) LLMDescribedText() string {
	sections := make([]string, len(d.Sections))
	for i, s := range d.Sections {
		sections[i] = fmt.Sprintf("<section_%d> %s </section_%d>", i, s.markdown(), i)
	}
	return fmt.Sprintf("<file>\n\n**name:** %s \n**sections:** %s\n\n</file>", d.Name, strings.Join(sections, " "))
}

// MergeSections collapses every section into the first one.
func (d *Document) MergeSections() {
	if len(d.Sections) < 2 {
		return
	}
	first := d.Sections[0]
	for _, s := range d.Sections[1:] {
		first.Merge(s)
	}
	d.Sections = d.Sections[:1]
}

// Append adds the sections of other after the receiver's sections and
// renumbers them.
func (d *Document) Append(others ...*Document) {
	for _, o := range others {
		if o == nil {
			continue
		}
		d.Sections = append(d.Sections, o.Sections...)
	}
	d.Renumber()
}

// Renumber assigns consecutive section numbers starting at 1.
func (d *Document) Renumber() {
	for i, s := range d.Sections {
		s.Number = i + 1
	}
}

// MergeDocuments combines several documents into one named MergedName.
// Metadata is taken from the first document that has a title.
func MergeDocuments(docs ...*Document) *Document {
	merged := NewDocument(MergedName, "merged")
	for _, d := range docs {
		if d != nil && merged.Metadata.Title == "" && d.Metadata.Title != "" {
			merged.Metadata.Title = d.Metadata.Title
		}
	}
	merged.Append(docs...)
	merged.Metadata.PageCount = len(merged.Sections)
	return merged
}
