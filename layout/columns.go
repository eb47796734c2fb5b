package layout

const (
	// segmentGapEm separates line segments: word spaces are far below it,
	// column gutters and table gaps above.
	segmentGapEm = 1.2
	// minProseChars is the mean segment length a column side needs. Table
	// cells are shorter, so tables are not mistaken for columns.
	minProseChars = 15
)

// findGutters returns the x positions of vertical gutters between text
// columns, left to right. Candidates are near-empty vertical strips in
// the text coverage; a gutter must be crossed by at most 15% of the lines,
// have at least 20% of the lines on each side, and both sides must read
// like prose.
func findGutters(lines []Line) []float64 {
	if len(lines) < 4 {
		return nil
	}
	segs := make([][]segment, len(lines))
	minX, maxX := lines[0].X, lines[0].Right()
	for i, l := range lines {
		segs[i] = l.segments(segmentGapEm)
		minX, maxX = min(minX, l.X), max(maxX, l.Right())
	}
	const bin = 2.0
	nbins := int((maxX-minX)/bin) + 1
	if nbins < 3 || nbins > 100000 {
		return nil
	}
	coverage := make([]int, nbins)
	for _, ss := range segs {
		for _, s := range ss {
			for b := int((s.x - minX) / bin); b <= int((s.right-minX)/bin) && b < nbins; b++ {
				coverage[b]++
			}
		}
	}

	n := float64(len(lines))
	// a title or footnote may run across the gutter
	allowed := max(1, n*0.15)
	var candidates []float64
	start := -1
	for b := 0; b <= nbins; b++ {
		low := b < nbins && float64(coverage[b]) <= allowed
		if low && start < 0 {
			start = b
		}
		if !low && start >= 0 {
			if start > 0 && b < nbins && float64(b-start)*bin >= 8 {
				candidates = append(candidates, minX+float64(start+b)*bin/2)
			}
			start = -1
		}
	}

	var gutters []float64
	for _, g := range candidates {
		crossed, left, right := 0, 0, 0
		var leftChars, leftSegs, rightChars, rightSegs int
		for i := range lines {
			onLeft, onRight := false, false
			for _, s := range segs[i] {
				switch {
				case s.x < g && s.right > g:
					crossed++
				case s.right <= g:
					onLeft = true
					leftChars += len([]rune(s.text))
					leftSegs++
				default:
					onRight = true
					rightChars += len([]rune(s.text))
					rightSegs++
				}
			}
			if onLeft {
				left++
			}
			if onRight {
				right++
			}
		}
		if float64(crossed) > allowed || float64(left) < n*0.2 || float64(right) < n*0.2 {
			continue
		}
		if leftChars/leftSegs < minProseChars || rightChars/rightSegs < minProseChars {
			continue
		}
		if len(gutters) > 0 && g-gutters[len(gutters)-1] < 50 {
			continue
		}
		gutters = append(gutters, g)
	}
	return gutters
}

// ReadingOrder returns lines in reading order. On multi-column pages each
// column is read top to bottom before the next; lines that cross a gutter
// close the current run of columns.
func ReadingOrder(lines []Line) []Line {
	gutters := findGutters(lines)
	if len(gutters) == 0 {
		return lines
	}

	columns := make([][]Line, len(gutters)+1)
	var out []Line
	flush := func() {
		for i := range columns {
			out = append(out, columns[i]...)
			columns[i] = nil
		}
	}
	for _, l := range lines {
		if crossesGutter(l, gutters) {
			flush()
			out = append(out, l)
			continue
		}
		for _, part := range splitAtGutters(l, gutters) {
			columns[part.Column] = append(columns[part.Column], part)
		}
	}
	flush()
	return out
}

func crossesGutter(l Line, gutters []float64) bool {
	for _, s := range l.segments(segmentGapEm) {
		for _, g := range gutters {
			if s.x < g && s.right > g {
				return true
			}
		}
	}
	return false
}

func columnOf(x float64, gutters []float64) int {
	for i, g := range gutters {
		if x < g {
			return i
		}
	}
	return len(gutters)
}

// splitAtGutters divides a line into per-column lines.
func splitAtGutters(l Line, gutters []float64) []Line {
	parts := map[int][]Fragment{}
	for _, f := range l.Fragments {
		c := columnOf(f.X+f.Width/2, gutters)
		parts[c] = append(parts[c], f)
	}
	out := make([]Line, 0, len(parts))
	for c := 0; c <= len(gutters); c++ {
		frags, ok := parts[c]
		if !ok {
			continue
		}
		nl := newLine(frags)
		if nl.Text == "" {
			continue
		}
		nl.Column = c
		out = append(out, nl)
	}
	return out
}

// clusterValues merges sorted values closer than tolerance, averaging each
// cluster's running center.
func clusterValues(values []float64, tolerance float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	clustered := []float64{values[0]}
	for _, v := range values[1:] {
		last := &clustered[len(clustered)-1]
		if v-*last > tolerance {
			clustered = append(clustered, v)
		} else {
			*last = (*last + v) / 2
		}
	}
	return clustered
}
