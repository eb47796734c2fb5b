package textdoc

import (
	"regexp"
	"strings"

	"github.com/tsawler/intelliparse/model"
)

var (
	atxHeading  = regexp.MustCompile(`^ {0,3}(#{1,6})(?:[ \t]+(.*?))?(?:[ \t]+#+)?[ \t]*$`)
	setextUnder = regexp.MustCompile(`^ {0,3}(=+|-+)[ \t]*$`)
	listMarker  = regexp.MustCompile(`^([ \t]*)([-*+]|\d{1,9}[.)])[ \t]+(.*)$`)
	fenceOpen   = regexp.MustCompile("^ {0,3}(```+|~~~+)")
	thematic    = regexp.MustCompile(`^ {0,3}((\*[ \t]*){3,}|(-[ \t]*){3,}|(_[ \t]*){3,})$`)
)

// mdParser is a line-oriented Markdown block scanner. It recognises the
// blocks that map onto model elements and keeps inline markup as text.
type mdParser struct {
	sec   *model.Section
	lines []string
	para  []string
	list  *model.List
	// indentation of the first item, and of each open nesting level
	indents []int
}

// parseMarkdown adds the blocks of src to sec in order.
func parseMarkdown(src string, sec *model.Section) {
	p := &mdParser{sec: sec, lines: strings.Split(src, "\n")}
	for i := 0; i < len(p.lines); i++ {
		line := p.lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			p.flushPara()
			// a blank line inside a list is allowed; the list ends at the
			// next non-item block
		case fenceOpen.MatchString(line):
			p.flush()
			i = p.fence(i)
		case atxHeading.MatchString(line):
			p.flush()
			m := atxHeading.FindStringSubmatch(line)
			if text := strings.TrimSpace(m[2]); text != "" {
				p.sec.Add(model.NewHeading(text, len(m[1])))
			}
		case len(p.para) > 0 && p.list == nil && setextUnder.MatchString(line):
			level := 1
			if strings.HasPrefix(trimmed, "-") {
				level = 2
			}
			text := strings.Join(p.para, " ")
			p.para = nil
			p.sec.Add(model.NewHeading(text, level))
		case thematic.MatchString(line):
			p.flush()
		case strings.HasPrefix(trimmed, "|") && i+1 < len(p.lines) && isTableSeparator(p.lines[i+1]):
			p.flush()
			i = p.table(i)
		case listMarker.MatchString(line):
			p.flushPara()
			p.item(listMarker.FindStringSubmatch(line))
		case p.list != nil && len(p.para) == 0 && leadingSpace(line) > 0:
			// lazy continuation of the previous item
			last := &p.list.Items[len(p.list.Items)-1]
			last.Text += " " + trimmed
		default:
			if p.list != nil {
				p.flushList()
			}
			p.para = append(p.para, strings.TrimPrefix(trimmed, "> "))
		}
	}
	p.flush()
}

// fence consumes a fenced code block starting at line i and returns the
// index of its closing line.
func (p *mdParser) fence(i int) int {
	marker := fenceOpen.FindStringSubmatch(p.lines[i])[1]
	var body []string
	j := i + 1
	for ; j < len(p.lines); j++ {
		if strings.HasPrefix(strings.TrimSpace(p.lines[j]), marker) {
			break
		}
		body = append(body, p.lines[j])
	}
	if code := strings.Join(body, "\n"); strings.TrimSpace(code) != "" {
		p.sec.Add(model.NewText(code))
	}
	return j
}

// table consumes a pipe table starting at line i and returns the index of
// its last line.
func (p *mdParser) table(i int) int {
	j := i
	for j < len(p.lines) && strings.HasPrefix(strings.TrimSpace(p.lines[j]), "|") {
		j++
	}
	if tbl, err := model.ParseMarkdownTable(strings.Join(p.lines[i:j], "\n")); err == nil {
		p.sec.Add(model.NewTableElement(tbl))
	}
	return j - 1
}

// item adds a list item, opening a new list when the marker kind changes
// at the outermost level.
func (p *mdParser) item(m []string) {
	indent := leadingSpace(m[1])
	ordered := m[2] != "-" && m[2] != "*" && m[2] != "+"
	if p.list == nil {
		p.list = &model.List{Ordered: ordered}
		p.indents = []int{indent}
	}
	for len(p.indents) > 1 && indent < p.indents[len(p.indents)-1] {
		p.indents = p.indents[:len(p.indents)-1]
	}
	if indent > p.indents[len(p.indents)-1] {
		p.indents = append(p.indents, indent)
	}
	if len(p.indents) == 1 && ordered != p.list.Ordered {
		p.flushList()
		p.list = &model.List{Ordered: ordered}
		p.indents = []int{indent}
	}
	p.list.Items = append(p.list.Items, model.ListItem{Text: strings.TrimSpace(m[3]), Level: len(p.indents) - 1})
}

func (p *mdParser) flush() {
	p.flushPara()
	p.flushList()
}

func (p *mdParser) flushPara() {
	if len(p.para) > 0 {
		p.sec.Add(model.NewText(strings.Join(p.para, "\n")))
		p.para = nil
	}
}

func (p *mdParser) flushList() {
	if p.list != nil && len(p.list.Items) > 0 {
		p.sec.Add(model.NewListElement(p.list))
	}
	p.list = nil
	p.indents = nil
}

func isTableSeparator(line string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "|") || !strings.Contains(line, "-") {
		return false
	}
	return strings.Trim(line, "|-: \t") == ""
}

// leadingSpace counts indentation, with a tab as four columns.
func leadingSpace(s string) int {
	n := 0
	for _, r := range s {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}
