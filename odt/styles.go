package odt

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// stylesXML is the subset of styles.xml needed to classify paragraphs.
type stylesXML struct {
	XMLName    xml.Name      `xml:"document-styles"`
	Styles     *styleListXML `xml:"styles"`
	AutoStyles *styleListXML `xml:"automatic-styles"`
}

// styleListXML holds the style definitions of office:styles or
// office:automatic-styles.
type styleListXML struct {
	Styles     []styleDefXML  `xml:"style"`
	ListStyles []listStyleXML `xml:"list-style"`
}

// contentStylesXML picks the automatic styles out of content.xml.
type contentStylesXML struct {
	XMLName    xml.Name      `xml:"document-content"`
	AutoStyles *styleListXML `xml:"automatic-styles"`
}

// styleDefXML represents a style definition (<style:style>).
type styleDefXML struct {
	Name                string        `xml:"name,attr"`
	Family              string        `xml:"family,attr"`
	ParentStyleName     string        `xml:"parent-style-name,attr"`
	DisplayName         string        `xml:"display-name,attr"`
	DefaultOutlineLevel string        `xml:"default-outline-level,attr"`
	TextProps           *textPropsXML `xml:"text-properties"`
}

type textPropsXML struct {
	FontWeight string `xml:"font-weight,attr"`
	FontSize   string `xml:"font-size,attr"`
}

// listStyleXML represents a list style definition (<text:list-style>).
type listStyleXML struct {
	Name         string              `xml:"name,attr"`
	BulletLevels []listLevelStyleXML `xml:"list-level-style-bullet"`
	NumberLevels []listLevelStyleXML `xml:"list-level-style-number"`
}

type listLevelStyleXML struct {
	Level      string `xml:"level,attr"`
	NumFormat  string `xml:"num-format,attr"`
	StartValue string `xml:"start-value,attr"`
}

// styleResolver answers the two questions the body walker asks of a
// style: is this paragraph style a heading, and is this list numbered.
type styleResolver struct {
	styles     map[string]*styleDefXML
	listStyles map[string]*listStyleXML
	headings   map[string]int
}

// newStyleResolver indexes named styles first so that automatic styles
// from content.xml override them.
func newStyleResolver(lists ...*styleListXML) *styleResolver {
	sr := &styleResolver{
		styles:     map[string]*styleDefXML{},
		listStyles: map[string]*listStyleXML{},
		headings:   map[string]int{},
	}
	for _, l := range lists {
		if l == nil {
			continue
		}
		for i := range l.Styles {
			sr.styles[l.Styles[i].Name] = &l.Styles[i]
		}
		for i := range l.ListStyles {
			sr.listStyles[l.ListStyles[i].Name] = &l.ListStyles[i]
		}
	}
	return sr
}

// headingLevel returns the outline level of a paragraph style, following
// the parent chain, or 0 when the style is not a heading.
func (sr *styleResolver) headingLevel(name string) int {
	if name == "" {
		return 0
	}
	if level, ok := sr.headings[name]; ok {
		return level
	}
	level := 0
	seen := map[string]bool{}
	for cur := name; cur != "" && !seen[cur]; {
		seen[cur] = true
		def, ok := sr.styles[cur]
		if !ok {
			level = builtInHeading(cur)
			break
		}
		if n, err := strconv.Atoi(def.DefaultOutlineLevel); err == nil && n >= 1 && n <= 9 {
			level = n
			break
		}
		if l := builtInHeading(def.DisplayName); l > 0 {
			level = l
			break
		}
		cur = def.ParentStyleName
	}
	sr.headings[name] = level
	return level
}

// builtInHeading recognizes the names LibreOffice and Word give their
// heading styles, e.g. "Heading_20_2" or "Heading 2".
func builtInHeading(name string) int {
	n := strings.ToLower(strings.ReplaceAll(name, "_20_", " "))
	switch n {
	case "title":
		return 1
	case "subtitle":
		return 2
	}
	if !strings.HasPrefix(n, "heading") {
		return 0
	}
	rest := strings.TrimSpace(strings.TrimPrefix(n, "heading"))
	rest = strings.TrimPrefix(rest, "_")
	if rest == "" {
		return 1
	}
	if level, err := strconv.Atoi(rest); err == nil && level >= 1 && level <= 9 {
		return level
	}
	return 0
}

// ordered reports whether level (0-based) of a list style is numbered.
// Unknown styles are bullets.
func (sr *styleResolver) ordered(listStyle string, level int) bool {
	ls, ok := sr.listStyles[listStyle]
	if !ok {
		return false
	}
	want := strconv.Itoa(level + 1)
	for _, nl := range ls.NumberLevels {
		// num-format="" is a numbered level that prints no number
		if nl.Level == want {
			return nl.NumFormat != ""
		}
	}
	return false
}
