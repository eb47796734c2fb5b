package model

import (
	"fmt"
	"strings"
)

// Section is one page, slide, sheet or chapter of a document.
type Section struct {
	Number   int        `json:"number"`
	Title    string     `json:"title,omitempty"`
	Text     string     `json:"text"`
	Markdown string     `json:"md"`
	Images   []*Image   `json:"images,omitempty"`
	Elements []*Element `json:"items"`
}

// ID returns the stable section identifier, e.g. "page_3".
func (s *Section) ID() string {
	return fmt.Sprintf("page_%d", s.Number)
}

// Add appends an element. Image and region elements that carry an image
// also register it in Images.
func (s *Section) Add(el *Element) *Element {
	s.Elements = append(s.Elements, el)
	if el.Image != nil && (el.Type == ElementTypeImage || el.Type == ElementTypeRegion) {
		s.Images = append(s.Images, el.Image)
	}
	return el
}

// Merge appends the content of other to s. The receiver keeps its number.
func (s *Section) Merge(other *Section) {
	if other == nil {
		return
	}
	s.Text += other.Text
	s.Markdown += other.Markdown
	s.Images = append(s.Images, other.Images...)
	s.Elements = append(s.Elements, other.Elements...)
}

// IsEmpty reports whether the section has no elements.
func (s *Section) IsEmpty() bool {
	return len(s.Elements) == 0
}

// RenderText builds the plain text of the section from its elements.
func (s *Section) RenderText() string {
	parts := make([]string, 0, len(s.Elements))
	for _, el := range s.Elements {
		if t := el.PlainText(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// RenderMarkdown builds the markdown of the section from its elements.
func (s *Section) RenderMarkdown() string {
	parts := make([]string, 0, len(s.Elements))
	for _, el := range s.Elements {
		if md := el.Markdown(); md != "" {
			parts = append(parts, md)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (s *Section) text() string {
	if s.Text != "" {
		return s.Text
	}
	return s.RenderText()
}

func (s *Section) markdown() string {
	if s.Markdown != "" {
		return s.Markdown
	}
	return s.RenderMarkdown()
}
