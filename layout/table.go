package layout

import (
	"sort"
	"strings"

	"github.com/tsawler/intelliparse/model"
)

// TableConfidence is assigned to tables recovered from text alignment
// alone. There are no ruling lines to confirm the grid.
const TableConfidence = 0.6

// minTableRows is the shortest run of aligned lines taken as a table.
const minTableRows = 3

// tableRun marks lines[start:end] as a table with the given rows.
type tableRun struct {
	start, end int
	rows       [][]string
}

// findTables scans ordered lines for runs whose segments start at shared
// column anchors.
func findTables(lines []Line) []tableRun {
	segs := make([][]segment, len(lines))
	for i, l := range lines {
		segs[i] = l.segments(segmentGapEm)
	}

	var runs []tableRun
	for i := 0; i < len(lines); {
		if len(segs[i]) < 2 {
			i++
			continue
		}
		j := i + 1
		for j < len(lines) && len(segs[j]) >= 2 && sameRegion(lines[j-1], lines[j]) {
			j++
		}
		if j-i >= minTableRows {
			if rows := alignRows(segs[i:j], lines[i].FontSize); rows != nil {
				runs = append(runs, tableRun{start: i, end: j, rows: rows})
			}
		}
		i = j
	}
	return runs
}

// sameRegion reports whether two consecutive lines belong to one block:
// same column and no large vertical jump.
func sameRegion(prev, cur Line) bool {
	if prev.Column != cur.Column {
		return false
	}
	gap := prev.Y - cur.Y
	return gap > 0 && gap < 3*max(prev.FontSize, cur.FontSize)
}

// alignRows clusters segment left edges into column anchors and assigns
// each segment to its anchor. It returns nil when the segments do not
// line up well enough to be a table.
func alignRows(segs [][]segment, fontSize float64) [][]string {
	var xs []float64
	for _, row := range segs {
		for _, s := range row {
			xs = append(xs, s.x)
		}
	}
	sort.Float64s(xs)
	anchors := clusterValues(xs, max(fontSize, 4))
	if len(anchors) < 2 {
		return nil
	}

	// an anchor used by only one row is noise, not a column
	uses := make([]int, len(anchors))
	rows := make([][]string, len(segs))
	aligned := 0
	for r, row := range segs {
		cells := make([]string, len(anchors))
		distinct := true
		for _, s := range row {
			a := nearestAnchor(anchors, s.x)
			if cells[a] != "" {
				distinct = false
				cells[a] += " "
			}
			cells[a] += s.text
		}
		for a, c := range cells {
			if c != "" {
				uses[a]++
			}
		}
		if distinct {
			aligned++
		}
		rows[r] = cells
	}
	if aligned*10 < len(segs)*7 {
		return nil
	}
	for _, u := range uses {
		if u < 2 {
			return nil
		}
	}
	return rows
}

func nearestAnchor(anchors []float64, x float64) int {
	best, dist := 0, abs(anchors[0]-x)
	for i, a := range anchors[1:] {
		if d := abs(a - x); d < dist {
			best, dist = i+1, d
		}
	}
	return best
}

// newTable builds a model table from aligned rows, treating the first row
// as the header.
func newTable(rows [][]string) *model.Table {
	t := model.NewTableFromStrings(rows, len(rows) > 1)
	t.Confidence = TableConfidence
	return t
}

// rowsText joins a table's rows for debugging and fallbacks.
func rowsText(rows [][]string) string {
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = strings.Join(r, "\t")
	}
	return strings.Join(lines, "\n")
}
