// Package normalize maps parser output onto one consistent shape.
//
// Normalize is run after parsing and again after the OCR and AI stages.
// Running it twice yields the same document.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/tsawler/intelliparse/model"
)

// Options tune normalization.
type Options struct {
	// MaxSectionChars truncates each section's rendered Text. Zero means
	// no limit. Elements are never truncated.
	MaxSectionChars int
}

var (
	hspace     = regexp.MustCompile(`[ \t\f\v\x{00A0}\x{2000}-\x{200A}\x{202F}\x{205F}\x{3000}]+`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// Normalize cleans doc in place and returns warnings for anything it had
// to cut.
func Normalize(doc *model.Document, opts Options) []string {
	if doc == nil {
		return nil
	}
	var warnings []string

	normalizeMetadata(&doc.Metadata)

	order := 0
	var all strings.Builder
	for i, sec := range doc.Sections {
		sec.Number = i + 1
		sec.Title = Line(sec.Title)

		kept := sec.Elements[:0]
		sec.Images = nil
		for _, el := range sec.Elements {
			if !normalizeElement(el) {
				continue
			}
			el.Order = order
			order++
			kept = append(kept, el)
			if el.Image != nil && (el.Type == model.ElementTypeImage || el.Type == model.ElementTypeRegion) {
				sec.Images = append(sec.Images, el.Image)
			}
		}
		clear(sec.Elements[len(kept):])
		sec.Elements = kept

		sec.Text = sec.RenderText()
		// markdown set by a parser, such as converted HTML, is kept
		md := sec.Markdown
		if md == "" {
			md = sec.RenderMarkdown()
		}
		sec.Markdown = strings.TrimSpace(norm.NFC.String(md))

		if limit := opts.MaxSectionChars; limit > 0 && utf8.RuneCountInString(sec.Text) > limit {
			sec.Text = truncate(sec.Text, limit)
			warnings = append(warnings, fmt.Sprintf("section %d: text truncated to %d characters", sec.Number, limit))
		}
		all.WriteString(sec.Text)
		all.WriteByte('\n')
	}

	if doc.Metadata.PageCount == 0 {
		doc.Metadata.PageCount = len(doc.Sections)
	}
	if doc.Metadata.Title == "" {
		doc.Metadata.Title = firstHeading(doc)
	}
	if dir := DetectDirection(all.String()); dir != Neutral {
		if doc.Metadata.Custom == nil {
			doc.Metadata.Custom = map[string]string{}
		}
		doc.Metadata.Custom["direction"] = strings.ToLower(dir.String())
	}
	return warnings
}

// normalizeElement cleans one element and reports whether it is worth
// keeping.
func normalizeElement(el *model.Element) bool {
	if el == nil {
		return false
	}
	switch el.Type {
	case model.ElementTypeHeading:
		el.Text = Line(el.Text)
		return el.Text != ""
	case model.ElementTypeList:
		if el.List == nil {
			return false
		}
		items := el.List.Items[:0]
		for _, it := range el.List.Items {
			if it.Text = Line(it.Text); it.Text != "" {
				items = append(items, it)
			}
		}
		el.List.Items = items
		return len(items) > 0
	case model.ElementTypeTable:
		if el.Table == nil || len(el.Table.Rows) == 0 {
			return false
		}
		for _, row := range el.Table.Rows {
			for j := range row {
				row[j].Text = Text(row[j].Text)
			}
		}
		return true
	case model.ElementTypeImage:
		if el.Image == nil {
			return false
		}
		normalizeImage(el.Image)
		return true
	case model.ElementTypeRegion:
		el.Text = Text(el.Text)
		if el.Image != nil {
			normalizeImage(el.Image)
		}
		return el.Image != nil || el.Text != ""
	}
	el.Text = Text(el.Text)
	return el.Text != ""
}

func normalizeImage(img *model.Image) {
	img.Alt = Line(img.Alt)
	img.OCRText = Text(img.OCRText)
	img.Description = Text(img.Description)
}

func normalizeMetadata(m *model.Metadata) {
	m.Title = Line(m.Title)
	m.Author = Line(m.Author)
	m.Subject = Line(m.Subject)
	m.Creator = Line(m.Creator)
	m.Producer = Line(m.Producer)
	kw := m.Keywords[:0]
	for _, k := range m.Keywords {
		if k = Line(k); k != "" {
			kw = append(kw, k)
		}
	}
	m.Keywords = kw
}

// Text NFC-normalizes s, collapses horizontal whitespace inside each line
// while keeping its indentation, and allows at most one blank line in a
// row.
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		body := strings.TrimLeft(line, " \t")
		indent := line[:len(line)-len(body)]
		body = strings.TrimSpace(hspace.ReplaceAllString(body, " "))
		if body == "" {
			lines[i] = ""
			continue
		}
		lines[i] = indent + body
	}
	s = blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.Trim(s, "\n")
}

// Line NFC-normalizes s and folds all whitespace, newlines included, into
// single spaces.
func Line(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// truncate cuts s to at most n runes, preferring the last line or word
// break in the final tenth.
func truncate(s string, n int) string {
	cut := 0
	for i := range s {
		if n == 0 {
			cut = i
			break
		}
		n--
	}
	if n > 0 || cut == 0 {
		return s
	}
	head := s[:cut]
	if i := strings.LastIndexAny(head, "\n "); i > len(head)*9/10 {
		head = head[:i]
	}
	return strings.TrimRight(head, " \n")
}

func firstHeading(doc *model.Document) string {
	for _, el := range doc.Elements() {
		if el.Type == model.ElementTypeHeading && el.Text != "" {
			return el.Text
		}
	}
	return ""
}
