package layout

import (
	"regexp"
	"strings"
)

// EdgeFilter removes running headers and footers: lines near the top or
// bottom of the page whose text, with digits masked, repeats on many
// pages.
type EdgeFilter struct {
	repeated map[string]bool
	margin   float64
}

var digitRun = regexp.MustCompile(`\d+`)

// edgeKey masks page numbers so "Page 3 of 10" matches on every page.
func edgeKey(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(digitRun.ReplaceAllString(text, "#")), " "))
}

// DetectEdges inspects the lines of every page. margin is the fraction of
// page height treated as header or footer area. Fewer than three pages
// never produce a filter that removes anything.
func DetectEdges(pages [][]Line, heights []float64, margin float64) *EdgeFilter {
	ef := &EdgeFilter{repeated: map[string]bool{}, margin: margin}
	if len(pages) < 3 || len(pages) != len(heights) {
		return ef
	}
	counts := map[string]int{}
	for i, lines := range pages {
		seen := map[string]bool{}
		for _, l := range lines {
			if !inEdge(l, heights[i], margin) {
				continue
			}
			k := edgeKey(l.Text)
			if k != "" && !seen[k] {
				seen[k] = true
				counts[k]++
			}
		}
	}
	need := max(3, len(pages)/2)
	for k, n := range counts {
		if n >= need {
			ef.repeated[k] = true
		}
	}
	return ef
}

func inEdge(l Line, height, margin float64) bool {
	if height <= 0 {
		return false
	}
	band := height * margin
	return l.Y >= height-band || l.Y <= band
}

// Filter returns the lines of a page with running headers and footers
// removed.
func (ef *EdgeFilter) Filter(lines []Line, height float64) []Line {
	if ef == nil || len(ef.repeated) == 0 {
		return lines
	}
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if inEdge(l, height, ef.margin) && ef.repeated[edgeKey(l.Text)] {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Len returns the number of distinct repeated header or footer texts.
func (ef *EdgeFilter) Len() int {
	if ef == nil {
		return 0
	}
	return len(ef.repeated)
}
