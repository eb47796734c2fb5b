package xlsx

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tsawler/intelliparse/internal/ooxml"
	"github.com/tsawler/intelliparse/model"
)

const workbookPart = "xl/workbook.xml"

// maxCells bounds the grid built for a single sheet. A stray cell at
// XFD1048576 would otherwise allocate billions of cells.
const maxCells = 4 << 20

// sheetRef is a worksheet listed in the workbook.
type sheetRef struct {
	Name   string
	Part   string
	Hidden bool
}

// Reader provides access to XLSX workbook content.
type Reader struct {
	name     string
	pkg      *ooxml.Package
	sheets   []sheetRef
	strings  []string
	dateFmt  map[int]bool // style index -> renders as date
	date1904 bool
	hidden   bool
	meta     model.Metadata
	warnings []string
}

// Option configures a Reader.
type Option func(*Reader)

// WithHiddenSheets includes sheets marked hidden in the workbook.
func WithHiddenSheets(include bool) Option {
	return func(r *Reader) { r.hidden = include }
}

// Open opens an XLSX file for reading.
func Open(filename string, opts ...Option) (*Reader, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return OpenBytes(filepath.Base(filename), data, opts...)
}

// OpenBytes opens an XLSX workbook held in memory.
func OpenBytes(name string, data []byte, opts ...Option) (*Reader, error) {
	pkg, err := ooxml.Open(data)
	if err != nil {
		return nil, err
	}
	if err := pkg.Require(workbookPart); err != nil {
		return nil, err
	}
	r := &Reader{name: name, pkg: pkg, dateFmt: map[int]bool{}}
	for _, opt := range opts {
		opt(r)
	}

	var wb workbookXML
	if err := pkg.ReadXML(workbookPart, &wb); err != nil {
		return nil, fmt.Errorf("parsing workbook.xml: %w", err)
	}
	r.date1904 = xmlBool(wb.WorkbookPr.Date1904)

	rels, err := pkg.Relationships(workbookPart)
	if err != nil {
		r.warnings = append(r.warnings, fmt.Sprintf("workbook relationships: %v", err))
	}
	for i, s := range wb.Sheets {
		part := fmt.Sprintf("xl/worksheets/sheet%d.xml", i+1)
		if rels != nil {
			if target, ok := rels.Target(s.RID); ok {
				part = target
			}
		}
		r.sheets = append(r.sheets, sheetRef{
			Name:   s.Name,
			Part:   part,
			Hidden: s.State == "hidden" || s.State == "veryHidden",
		})
	}

	r.loadSharedStrings()
	r.loadStyles()
	r.meta = pkg.Metadata()
	r.meta.PageCount = len(r.visibleSheets())
	return r, nil
}

func (r *Reader) loadSharedStrings() {
	if !r.pkg.Has("xl/sharedStrings.xml") {
		return
	}
	var sst sharedStringsXML
	if err := r.pkg.ReadXML("xl/sharedStrings.xml", &sst); err != nil {
		r.warnings = append(r.warnings, fmt.Sprintf("shared strings: %v", err))
		return
	}
	r.strings = make([]string, len(sst.SI))
	for i, si := range sst.SI {
		r.strings[i] = si.text()
	}
}

func (r *Reader) loadStyles() {
	var st stylesXML
	if err := r.pkg.ReadXML("xl/styles.xml", &st); err != nil {
		return
	}
	custom := make(map[int]string, len(st.NumFmts))
	for _, nf := range st.NumFmts {
		custom[nf.ID] = nf.Code
	}
	for i, xf := range st.CellXfs {
		if builtinDateFormats[xf.NumFmtID] {
			r.dateFmt[i] = true
		} else if code, ok := custom[xf.NumFmtID]; ok && isDateFormat(code) {
			r.dateFmt[i] = true
		}
	}
}

func (r *Reader) visibleSheets() []sheetRef {
	out := make([]sheetRef, 0, len(r.sheets))
	for _, s := range r.sheets {
		if !s.Hidden || r.hidden {
			out = append(out, s)
		}
	}
	return out
}

// Close releases resources associated with the Reader.
func (r *Reader) Close() error {
	r.pkg = nil
	return nil
}

// Warnings returns problems met while reading that did not stop parsing.
func (r *Reader) Warnings() []string {
	return r.warnings
}

// Metadata returns document metadata.
func (r *Reader) Metadata() model.Metadata {
	return r.meta
}

// SheetNames returns the names of the sheets that will be extracted.
func (r *Reader) SheetNames() []string {
	var names []string
	for _, s := range r.visibleSheets() {
		names = append(names, s.Name)
	}
	return names
}

// Text extracts and returns all text content from the workbook.
func (r *Reader) Text() (string, error) {
	doc, err := r.Document()
	if err != nil {
		return "", err
	}
	return doc.Text(), nil
}

// Document returns one section per sheet, titled with the sheet name.
func (r *Reader) Document() (*model.Document, error) {
	if r.pkg == nil {
		return nil, fmt.Errorf("reader is closed")
	}
	doc := model.NewDocument(r.name, "XLSX")
	doc.Metadata = r.meta

	for _, s := range r.visibleSheets() {
		sec := doc.AddSection(s.Name)
		sec.Add(model.NewHeading(s.Name, 2))
		tbl, err := r.readSheet(s.Part)
		if err != nil {
			r.warnings = append(r.warnings, fmt.Sprintf("sheet %q: %v", s.Name, err))
			continue
		}
		if tbl != nil {
			sec.Add(model.NewTableElement(tbl))
		}
	}
	return doc, nil
}

// readSheet returns the used range of a worksheet as a table, or nil
// for an empty sheet.
func (r *Reader) readSheet(part string) (*model.Table, error) {
	var ws worksheetXML
	if err := r.pkg.ReadXML(part, &ws); err != nil {
		return nil, err
	}

	type pos struct{ row, col int }
	values := map[pos]string{}
	minRow, minCol, maxRow, maxCol := -1, -1, -1, -1
	for ri, row := range ws.Rows {
		rowIdx := row.R - 1
		if row.R == 0 {
			rowIdx = ri
		}
		for ci, c := range row.Cells {
			col := ci
			if c.R != "" {
				cc, rr, err := ParseCellRef(c.R)
				if err != nil {
					continue
				}
				col, rowIdx = cc, rr
			}
			v := strings.TrimSpace(r.cellValue(c))
			if v == "" {
				continue
			}
			values[pos{rowIdx, col}] = v
			if minRow < 0 || rowIdx < minRow {
				minRow = rowIdx
			}
			if minCol < 0 || col < minCol {
				minCol = col
			}
			maxRow = max(maxRow, rowIdx)
			maxCol = max(maxCol, col)
		}
	}
	if len(values) == 0 {
		return nil, nil
	}
	rows, cols := maxRow-minRow+1, maxCol-minCol+1
	if rows*cols > maxCells {
		return nil, fmt.Errorf("used range %dx%d exceeds %d cells", rows, cols, maxCells)
	}

	tbl := model.NewTable(rows, cols)
	for p, v := range values {
		tbl.Rows[p.row-minRow][p.col-minCol].Text = v
	}

	for _, mc := range ws.MergeCells {
		c1, r1, c2, r2, err := ParseRangeRef(mc.Ref)
		if err != nil {
			continue
		}
		r1, c1 = max(r1-minRow, 0), max(c1-minCol, 0)
		r2, c2 = min(r2-minRow, rows-1), min(c2-minCol, cols-1)
		if r1 > r2 || c1 > c2 {
			continue
		}
		for i := r1; i <= r2; i++ {
			for j := c1; j <= c2; j++ {
				cell := &tbl.Rows[i][j]
				switch {
				case i == r1 && j == c1:
					cell.RowSpan, cell.ColSpan = r2-r1+1, c2-c1+1
				case i == r1:
					*cell = model.Cell{RowSpan: 1, ColSpan: 0}
				default:
					*cell = model.Cell{RowSpan: 0, ColSpan: 1}
				}
			}
		}
	}

	tbl.HasHeader = rows > 1
	if tbl.HasHeader {
		for j := range tbl.Rows[0] {
			tbl.Rows[0][j].IsHeader = true
		}
	}
	return tbl, nil
}

// cellValue returns the display text of a cell.
func (r *Reader) cellValue(c cellXML) string {
	switch c.T {
	case "s":
		idx, err := strconv.Atoi(c.V)
		if err != nil || idx < 0 || idx >= len(r.strings) {
			return ""
		}
		return r.strings[idx]
	case "inlineStr":
		if c.Is != nil {
			return c.Is.text()
		}
		return ""
	case "b":
		if c.V == "1" {
			return "TRUE"
		}
		return "FALSE"
	case "str", "e":
		return c.V
	}
	if c.V != "" && r.dateFmt[c.S] {
		if s, ok := formatDate(c.V, r.date1904); ok {
			return s
		}
	}
	return c.V
}

func xmlBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
