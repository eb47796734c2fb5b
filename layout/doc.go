// Package layout turns positioned text fragments from a fixed-layout page
// into structured blocks in reading order.
//
// The analysis runs in stages:
//
//   - fragments are grouped into lines by baseline, with a tolerance
//     derived from the spacing actually present on the page
//   - vertical gutters split multi-column pages; lines that cross a
//     gutter act as separators between column runs
//   - runs of lines whose segments line up on shared column anchors
//     become tables
//   - remaining lines are grouped into paragraphs, list items and
//     headings by spacing, indentation, markers and font size
//
// Coordinates follow PDF user space: Y grows upward and a fragment's Y is
// its baseline.
package layout
