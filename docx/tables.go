package docx

import (
	"strconv"

	"github.com/tsawler/intelliparse/model"
)

// convertTable builds a model.Table from <w:tbl>. Horizontally merged
// cells (gridSpan) are followed by empty placeholders so that every row
// covers the full grid. Vertically merged continuation cells are emptied
// and counted into the RowSpan of the cell that started the merge.
func convertTable(tbl *tableXML) *model.Table {
	table := &model.Table{Confidence: 1}
	// origin[col] is the row index of the cell that began an open vMerge
	origin := map[int]int{}

	for ri, row := range tbl.Rows {
		var cells []model.Cell
		col := 0
		header := row.Props.Header != nil && row.Props.Header.Val != "0" && row.Props.Header.Val != "false"
		for _, c := range row.Cells {
			span := 1
			if n, err := strconv.Atoi(c.Props.GridSpan.Val); err == nil && n > 1 {
				span = n
			}

			cell := model.Cell{Text: c.text(), RowSpan: 1, ColSpan: span, IsHeader: header}
			if vm := c.Props.VMerge; vm != nil {
				if vm.Val == "restart" {
					origin[col] = ri
				} else if start, ok := origin[col]; ok && start < len(table.Rows) {
					if oc := cellAtColumn(table.Rows[start], col); oc != nil {
						oc.RowSpan++
					}
					cell.Text = ""
					cell.RowSpan = 0
				}
			} else {
				delete(origin, col)
			}

			cells = append(cells, cell)
			for k := 1; k < span; k++ {
				cells = append(cells, model.Cell{ColSpan: 0, RowSpan: 1})
			}
			col += span
		}
		table.Rows = append(table.Rows, cells)
		if ri == 0 && header {
			table.HasHeader = true
		}
	}
	if !table.HasHeader && len(table.Rows) > 1 {
		// Word tables rarely flag their header row; treat the first as one
		table.HasHeader = true
		for i := range table.Rows[0] {
			table.Rows[0][i].IsHeader = true
		}
	}
	return table
}

// cellAtColumn returns the cell occupying grid column col. Placeholders
// are real entries, so the grid column equals the slice index.
func cellAtColumn(row []model.Cell, col int) *model.Cell {
	if col < 0 || col >= len(row) {
		return nil
	}
	return &row[col]
}
