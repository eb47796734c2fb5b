package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Table represents a table with cells organized in rows and columns
type Table struct {
	Rows       [][]Cell `json:"rows"`
	HasHeader  bool     `json:"has_header"`
	Confidence float64  `json:"confidence"`
}

// Cell represents a table cell
type Cell struct {
	Text     string `json:"text"`
	RowSpan  int    `json:"row_span,omitempty"`
	ColSpan  int    `json:"col_span,omitempty"`
	IsHeader bool   `json:"is_header,omitempty"`
}

// NewTable creates a new table with given dimensions
func NewTable(rows, cols int) *Table {
	table := &Table{
		Rows:       make([][]Cell, rows),
		Confidence: 1.0,
	}
	for i := 0; i < rows; i++ {
		table.Rows[i] = make([]Cell, cols)
		for j := 0; j < cols; j++ {
			table.Rows[i][j] = Cell{
				RowSpan: 1,
				ColSpan: 1,
			}
		}
	}
	return table
}

// NewTableFromStrings builds a table from a row-major string grid. When
// header is true the first row is marked as the header.
func NewTableFromStrings(rows [][]string, header bool) *Table {
	t := &Table{Rows: make([][]Cell, len(rows)), HasHeader: header && len(rows) > 0, Confidence: 1}
	for i, r := range rows {
		t.Rows[i] = make([]Cell, len(r))
		for j, v := range r {
			t.Rows[i][j] = Cell{Text: v, RowSpan: 1, ColSpan: 1, IsHeader: header && i == 0}
		}
	}
	return t
}

// RowCount returns the number of rows
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// ColCount returns the width of the widest row
func (t *Table) ColCount() int {
	n := 0
	for _, r := range t.Rows {
		if len(r) > n {
			n = len(r)
		}
	}
	return n
}

// GetCell returns the cell at the given row and column (0-indexed)
func (t *Table) GetCell(row, col int) *Cell {
	if row < 0 || row >= len(t.Rows) {
		return nil
	}
	if col < 0 || col >= len(t.Rows[row]) {
		return nil
	}
	return &t.Rows[row][col]
}

// SetCell sets the cell at the given position
func (t *Table) SetCell(row, col int, cell Cell) error {
	if row < 0 || row >= len(t.Rows) {
		return fmt.Errorf("row index %d out of bounds", row)
	}
	if col < 0 || col >= len(t.Rows[row]) {
		return fmt.Errorf("col index %d out of bounds", col)
	}
	t.Rows[row][col] = cell
	return nil
}

// IsPerfect reports whether the table is a clean grid: at least one row,
// every row the same width, and no merged cells.
func (t *Table) IsPerfect() bool {
	if len(t.Rows) == 0 {
		return false
	}
	width := len(t.Rows[0])
	if width == 0 {
		return false
	}
	for _, r := range t.Rows {
		if len(r) != width {
			return false
		}
		for _, c := range r {
			if c.RowSpan > 1 || c.ColSpan > 1 {
				return false
			}
		}
	}
	return true
}

// Strings returns the cell texts as a row-major grid.
func (t *Table) Strings() [][]string {
	out := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = make([]string, len(r))
		for j, c := range r {
			out[i][j] = c.Text
		}
	}
	return out
}

// PlainText returns tab-separated rows
func (t *Table) PlainText() string {
	var sb strings.Builder
	for i, row := range t.Rows {
		if i > 0 {
			sb.WriteString("\n")
		}
		for j, cell := range row {
			if j > 0 {
				sb.WriteString("\t")
			}
			sb.WriteString(cell.Text)
		}
	}
	return sb.String()
}

// ToMarkdown converts the table to markdown format. Short rows are padded
// to the widest row.
func (t *Table) ToMarkdown() string {
	if len(t.Rows) == 0 {
		return ""
	}
	cols := t.ColCount()
	var sb strings.Builder

	writeRow := func(row []Cell) {
		for j := 0; j < cols; j++ {
			text := ""
			if j < len(row) {
				text = markdownCell(row[j].Text)
			}
			sb.WriteString("| ")
			sb.WriteString(text)
			sb.WriteString(" ")
		}
		sb.WriteString("|\n")
	}

	writeRow(t.Rows[0])
	for j := 0; j < cols; j++ {
		sb.WriteString("|---")
	}
	sb.WriteString("|\n")
	for i := 1; i < len(t.Rows); i++ {
		writeRow(t.Rows[i])
	}
	return sb.String()
}

func markdownCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}

// ToCSV converts the table to CSV format
func (t *Table) ToCSV() string {
	var sb strings.Builder
	for _, row := range t.Rows {
		for j, cell := range row {
			// Escape quotes and wrap in quotes if necessary
			text := cell.Text
			if strings.ContainsAny(text, ",\"\n\r") {
				text = "\"" + strings.ReplaceAll(text, "\"", "\"\"") + "\""
			}
			sb.WriteString(text)
			if j < len(row)-1 {
				sb.WriteString(",")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// MarshalJSON adds the derived csv and is_perfect fields.
func (t *Table) MarshalJSON() ([]byte, error) {
	type plain Table
	return json.Marshal(struct {
		*plain
		CSV       string `json:"csv"`
		IsPerfect bool   `json:"is_perfect"`
	}{(*plain)(t), t.ToCSV(), t.IsPerfect()})
}

// ParseMarkdownTable parses the first pipe table found in md. The separator
// row is required; the row above it becomes the header.
func ParseMarkdownTable(md string) (*Table, error) {
	lines := strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n")
	var rows [][]string
	sepSeen := false
	started := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") {
			if started {
				break
			}
			continue
		}
		started = true
		cells := splitPipeRow(line)
		if isSeparatorRow(cells) {
			sepSeen = true
			continue
		}
		rows = append(rows, cells)
	}
	if !sepSeen || len(rows) == 0 {
		return nil, fmt.Errorf("no markdown table found")
	}
	return NewTableFromStrings(rows, true), nil
}

func splitPipeRow(line string) []string {
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	var cells []string
	var cur strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(cells, strings.TrimSpace(cur.String()))
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		c = strings.Trim(c, ": ")
		if c == "" || strings.Trim(c, "-") != "" {
			return false
		}
	}
	return len(cells) > 0
}
