package layout

import (
	"sort"
	"strings"

	"github.com/tsawler/intelliparse/model"
)

// Fragment is a run of text drawn at one position. Extractors often emit
// one fragment per glyph; lines reassemble them.
type Fragment struct {
	Text     string
	X, Y     float64
	Width    float64
	FontSize float64
	Font     string
}

// Right returns the right edge of the fragment.
func (f Fragment) Right() float64 {
	return f.X + f.Width
}

// Bold reports whether the font name indicates a bold face.
func (f Fragment) Bold() bool {
	n := strings.ToLower(f.Font)
	return strings.Contains(n, "bold") || strings.Contains(n, "black") || strings.Contains(n, "heavy")
}

// Line is a set of fragments sharing a baseline, sorted left to right.
type Line struct {
	Fragments []Fragment
	Text      string
	X, Y      float64
	Width     float64
	FontSize  float64
	Bold      bool
	// Column is the column index on multi-column pages, -1 for lines
	// that span columns.
	Column int
}

// Right returns the right edge of the line.
func (l Line) Right() float64 {
	return l.X + l.Width
}

// BBox returns the line's bounding box, using the font size as height.
func (l Line) BBox() model.BBox {
	return model.NewBBox(l.X, l.Y, l.Width, l.FontSize)
}

// segment is a horizontally contiguous part of a line.
type segment struct {
	text      string
	x, right  float64
	fragments []Fragment
}

// segments splits the line wherever the gap between fragments exceeds
// gapEm times the font size.
func (l Line) segments(gapEm float64) []segment {
	var out []segment
	var cur []Fragment
	flush := func() {
		if len(cur) == 0 {
			return
		}
		text := strings.TrimSpace(assemble(cur))
		if text != "" {
			out = append(out, segment{text: text, x: cur[0].X, right: cur[len(cur)-1].Right(), fragments: cur})
		}
		cur = nil
	}
	limit := gapEm * max(l.FontSize, 1)
	for _, f := range l.Fragments {
		if strings.TrimSpace(f.Text) == "" {
			// whitespace glyphs do not bridge a gap
			continue
		}
		if len(cur) > 0 && f.X-cur[len(cur)-1].Right() > limit {
			flush()
		}
		cur = append(cur, f)
	}
	flush()
	return out
}

// GroupLines groups fragments into lines ordered top to bottom.
func GroupLines(frags []Fragment) []Line {
	if len(frags) == 0 {
		return nil
	}
	tol := lineTolerance(frags)

	sorted := make([]Fragment, len(frags))
	copy(sorted, frags)
	// stream order is kept for fragments on the same baseline
	sort.SliceStable(sorted, func(i, j int) bool {
		d := sorted[i].Y - sorted[j].Y
		if d > tol || d < -tol {
			return d > 0
		}
		return false
	})

	var lines []Line
	var cur []Fragment
	var sumY float64
	for _, f := range sorted {
		if len(cur) > 0 {
			avg := sumY / float64(len(cur))
			if abs(f.Y-avg) > tol {
				lines = append(lines, newLine(cur))
				cur, sumY = nil, 0
			}
		}
		cur = append(cur, f)
		sumY += f.Y
	}
	if len(cur) > 0 {
		lines = append(lines, newLine(cur))
	}

	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l.Text) != "" {
			out = append(out, l)
		}
	}
	return out
}

// lineTolerance derives the baseline tolerance from the page. It starts
// from 40% of the mean font size and shrinks when distinct baselines sit
// closer together than that, as happens with compressed coordinates.
func lineTolerance(frags []Fragment) float64 {
	var total float64
	ys := make([]float64, 0, len(frags))
	for _, f := range frags {
		total += f.FontSize
		ys = append(ys, f.Y)
	}
	avg := total / float64(len(frags))
	if avg <= 0 {
		avg = 10
	}
	tol := avg * 0.4

	sort.Float64s(ys)
	var gaps []float64
	for i := 1; i < len(ys); i++ {
		if g := ys[i] - ys[i-1]; g > 0.1 {
			gaps = append(gaps, g)
		}
	}
	if len(gaps) < 3 {
		return tol
	}
	sort.Float64s(gaps)
	p10 := gaps[len(gaps)/10]
	if p10 < avg*0.5 {
		return max(p10*0.2, 0.15)
	}
	return tol
}

func newLine(frags []Fragment) Line {
	sort.SliceStable(frags, func(i, j int) bool {
		tol := frags[i].FontSize * 0.1
		if abs(frags[i].X-frags[j].X) < tol {
			return false
		}
		return frags[i].X < frags[j].X
	})

	l := Line{Fragments: frags, X: frags[0].X, Y: frags[0].Y, Column: -1}
	right := frags[0].Right()
	var size float64
	boldChars, chars := 0, 0
	for _, f := range frags {
		l.X = min(l.X, f.X)
		l.Y = min(l.Y, f.Y)
		right = max(right, f.Right())
		size = max(size, f.FontSize)
		n := len([]rune(strings.TrimSpace(f.Text)))
		chars += n
		if f.Bold() {
			boldChars += n
		}
	}
	l.Width = right - l.X
	l.FontSize = size
	l.Bold = chars > 0 && boldChars*10 >= chars*8
	l.Text = strings.TrimSpace(assemble(frags))
	return l
}

// assemble joins fragments, inserting a space where the gap between two
// fragments is wider than a fraction of the font size.
func assemble(frags []Fragment) string {
	var sb strings.Builder
	for i, f := range frags {
		if i > 0 {
			prev := frags[i-1]
			gap := f.X - prev.Right()
			size := max(f.FontSize, prev.FontSize, 1)
			if gap > size*0.15 && !endsWithSpace(&sb) && !strings.HasPrefix(f.Text, " ") {
				sb.WriteByte(' ')
			}
		}
		if f.Text == " " && endsWithSpace(&sb) {
			continue
		}
		sb.WriteString(f.Text)
	}
	return sb.String()
}

func endsWithSpace(sb *strings.Builder) bool {
	s := sb.String()
	return s == "" || strings.HasSuffix(s, " ")
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
