package intelliparse

import (
	"github.com/tsawler/intelliparse/format"
	"github.com/tsawler/intelliparse/model"
)

// ExtractionResult is the outcome of extracting one file.
type ExtractionResult struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Format format.Format `json:"format"`
	// Document may be partial; it is nil only when nothing could be parsed.
	Document *model.Document `json:"document,omitempty"`
	Warnings []Warning       `json:"warnings,omitempty"`
	// Err is the fatal error for the file, if any.
	Err error `json:"-"`
	// Entries holds one result per member when the file is an archive.
	Entries []*ExtractionResult `json:"entries,omitempty"`
	Job     model.JobMetadata   `json:"job"`
}

// OK reports whether the file was extracted without a fatal error.
func (r *ExtractionResult) OK() bool {
	return r.Err == nil && r.Document != nil
}

// Partial reports whether a document was produced with warnings.
func (r *ExtractionResult) Partial() bool {
	return r.Document != nil && len(r.Warnings) > 0
}

// Error returns the fatal error message, or "".
func (r *ExtractionResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func (r *ExtractionResult) warn(stage Stage, section int, msg string) {
	r.Warnings = append(r.Warnings, Warning{Stage: stage, Section: section, Message: msg})
}

// clone copies r deeply enough that the copy can be normalized, enriched
// or stripped without touching r.
func (r *ExtractionResult) clone() *ExtractionResult {
	c := *r
	c.Document = copyDocument(r.Document)
	c.Warnings = append([]Warning(nil), r.Warnings...)
	if r.Entries != nil {
		c.Entries = make([]*ExtractionResult, len(r.Entries))
		for i, e := range r.Entries {
			c.Entries[i] = e.clone()
		}
	}
	return &c
}

func copyDocument(d *model.Document) *model.Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Metadata.Keywords = append([]string(nil), d.Metadata.Keywords...)
	if d.Metadata.Custom != nil {
		c.Metadata.Custom = make(map[string]string, len(d.Metadata.Custom))
		for k, v := range d.Metadata.Custom {
			c.Metadata.Custom[k] = v
		}
	}
	c.Sections = make([]*model.Section, len(d.Sections))
	for i, s := range d.Sections {
		c.Sections[i] = copySection(s)
	}
	return &c
}

func copySection(s *model.Section) *model.Section {
	c := *s
	c.Elements = make([]*model.Element, len(s.Elements))
	c.Images = nil
	for i, el := range s.Elements {
		e := *el
		if el.Table != nil {
			t := *el.Table
			t.Rows = make([][]model.Cell, len(el.Table.Rows))
			for j, row := range el.Table.Rows {
				t.Rows[j] = append([]model.Cell(nil), row...)
			}
			e.Table = &t
		}
		if el.List != nil {
			l := *el.List
			l.Items = append([]model.ListItem(nil), el.List.Items...)
			e.List = &l
		}
		if el.Image != nil {
			img := *el.Image
			e.Image = &img
			c.Images = append(c.Images, &img)
		}
		c.Elements[i] = &e
	}
	return &c
}
