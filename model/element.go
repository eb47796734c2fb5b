package model

import (
	"fmt"
	"strings"
)

// ElementType represents the type of document element
type ElementType int

const (
	ElementTypeUnknown ElementType = iota
	ElementTypeText
	ElementTypeHeading
	ElementTypeList
	ElementTypeTable
	ElementTypeImage
	ElementTypeRegion
)

var elementTypeNames = map[ElementType]string{
	ElementTypeUnknown: "unknown",
	ElementTypeText:    "text",
	ElementTypeHeading: "heading",
	ElementTypeList:    "list",
	ElementTypeTable:   "table",
	ElementTypeImage:   "image",
	ElementTypeRegion:  "region",
}

// String returns a string representation of the element type
func (et ElementType) String() string {
	if name, ok := elementTypeNames[et]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (et ElementType) MarshalText() ([]byte, error) {
	return []byte(et.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (et *ElementType) UnmarshalText(b []byte) error {
	for k, v := range elementTypeNames {
		if v == string(b) {
			*et = k
			return nil
		}
	}
	return fmt.Errorf("unknown element type %q", b)
}

// Source records which stage produced an element's content.
type Source string

const (
	SourceDeterministic Source = "deterministic"
	SourceOCR           Source = "ocr"
	SourceAI            Source = "ai"
)

// Element is a typed unit of document content. Type selects the payload:
// Text and Level for text and headings, List, Table, or Image.
type Element struct {
	Type  ElementType `json:"type"`
	Order int         `json:"order"`
	Text  string      `json:"text,omitempty"`
	// Level is the heading level (1-6)
	Level      int     `json:"level,omitempty"`
	List       *List   `json:"list,omitempty"`
	Table      *Table  `json:"table,omitempty"`
	Image      *Image  `json:"image,omitempty"`
	BBox       *BBox   `json:"bbox,omitempty"`
	Source     Source  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// NewText creates a deterministic text element
func NewText(text string) *Element {
	return &Element{Type: ElementTypeText, Text: text, Source: SourceDeterministic, Confidence: 1}
}

// NewHeading creates a heading element. The level is clamped to 1-6.
func NewHeading(text string, level int) *Element {
	return &Element{Type: ElementTypeHeading, Text: text, Level: clampLevel(level), Source: SourceDeterministic, Confidence: 1}
}

// NewListElement wraps a list
func NewListElement(l *List) *Element {
	return &Element{Type: ElementTypeList, List: l, Source: SourceDeterministic, Confidence: 1}
}

// NewTableElement wraps a table
func NewTableElement(t *Table) *Element {
	conf := t.Confidence
	if conf == 0 {
		conf = 1
	}
	return &Element{Type: ElementTypeTable, Table: t, Source: SourceDeterministic, Confidence: conf}
}

// NewImageElement wraps an embedded image
func NewImageElement(img *Image) *Element {
	return &Element{Type: ElementTypeImage, Image: img, Source: SourceDeterministic, Confidence: 1}
}

// NewRegion creates an element for content that could not be read
// deterministically. img may be nil when no raster is available.
func NewRegion(img *Image) *Element {
	return &Element{Type: ElementTypeRegion, Image: img, Source: SourceDeterministic, Confidence: 0}
}

// IsTextual reports whether the element carries readable content.
func (e *Element) IsTextual() bool {
	return strings.TrimSpace(e.PlainText()) != ""
}

// PlainText returns the element's content without markup.
func (e *Element) PlainText() string {
	switch e.Type {
	case ElementTypeText, ElementTypeHeading, ElementTypeRegion:
		return e.Text
	case ElementTypeList:
		if e.List == nil {
			return ""
		}
		return e.List.PlainText()
	case ElementTypeTable:
		if e.Table == nil {
			return ""
		}
		return e.Table.PlainText()
	case ElementTypeImage:
		if e.Image == nil {
			return e.Text
		}
		return e.Image.Caption()
	}
	return e.Text
}

// Markdown renders the element as markdown.
func (e *Element) Markdown() string {
	switch e.Type {
	case ElementTypeHeading:
		if e.Text == "" {
			return ""
		}
		return strings.Repeat("#", clampLevel(e.Level)) + " " + e.Text
	case ElementTypeList:
		if e.List == nil {
			return ""
		}
		return e.List.Markdown()
	case ElementTypeTable:
		if e.Table == nil {
			return ""
		}
		return strings.TrimRight(e.Table.ToMarkdown(), "\n")
	case ElementTypeImage:
		if e.Image == nil {
			return ""
		}
		md := fmt.Sprintf("![%s](%s)", e.Image.Alt, e.Image.Name)
		if c := e.Image.Caption(); c != "" && c != e.Image.Alt {
			md += "\n\n" + c
		}
		return md
	}
	return e.Text
}

func clampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > 6 {
		return 6
	}
	return level
}

// List represents a list
type List struct {
	Items   []ListItem `json:"items"`
	Ordered bool       `json:"ordered"`
}

// ListItem represents a single list item
type ListItem struct {
	Text  string `json:"text"`
	Level int    `json:"level,omitempty"`
}

// PlainText returns one item per line
func (l *List) PlainText() string {
	lines := make([]string, 0, len(l.Items))
	for _, it := range l.Items {
		lines = append(lines, it.Text)
	}
	return strings.Join(lines, "\n")
}

// Markdown renders the list with two-space indentation per nesting level.
func (l *List) Markdown() string {
	var sb strings.Builder
	counters := map[int]int{}
	for i, it := range l.Items {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strings.Repeat("  ", it.Level))
		if l.Ordered {
			counters[it.Level]++
			for lvl := range counters {
				if lvl > it.Level {
					delete(counters, lvl)
				}
			}
			fmt.Fprintf(&sb, "%d. ", counters[it.Level])
		} else {
			sb.WriteString("- ")
		}
		sb.WriteString(it.Text)
	}
	return sb.String()
}
