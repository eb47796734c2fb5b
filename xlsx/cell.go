package xlsx

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseCellRef parses a reference such as "B7" or "$AA$100" into 0-based
// column and row indices.
func ParseCellRef(ref string) (col, row int, err error) {
	ref = strings.ReplaceAll(ref, "$", "")
	split := strings.IndexFunc(ref, func(r rune) bool { return r < 'A' || (r > 'Z' && r < 'a') || r > 'z' })
	switch {
	case ref == "":
		return 0, 0, fmt.Errorf("empty cell reference")
	case split == 0:
		return 0, 0, fmt.Errorf("invalid cell reference %q: no column letters", ref)
	case split < 0:
		return 0, 0, fmt.Errorf("invalid cell reference %q: no row number", ref)
	}
	col = ColumnToIndex(ref[:split])
	n, err := strconv.Atoi(ref[split:])
	if err != nil || n < 1 {
		return 0, 0, fmt.Errorf("invalid row in cell reference %q", ref)
	}
	return col, n - 1, nil
}

// ParseRangeRef parses "A1:D10" into its corners. A single cell reference
// is a one-cell range.
func ParseRangeRef(ref string) (c1, r1, c2, r2 int, err error) {
	first, last, found := strings.Cut(ref, ":")
	if c1, r1, err = ParseCellRef(first); err != nil {
		return 0, 0, 0, 0, err
	}
	if !found {
		return c1, r1, c1, r1, nil
	}
	if c2, r2, err = ParseCellRef(last); err != nil {
		return 0, 0, 0, 0, err
	}
	if c2 < c1 {
		c1, c2 = c2, c1
	}
	if r2 < r1 {
		r1, r2 = r2, r1
	}
	return c1, r1, c2, r2, nil
}

// ColumnToIndex converts column letters to a 0-based index: A=0, Z=25,
// AA=26. It returns -1 for anything but letters.
func ColumnToIndex(letters string) int {
	n := 0
	for _, c := range strings.ToUpper(letters) {
		if c < 'A' || c > 'Z' {
			return -1
		}
		n = n*26 + int(c-'A'+1)
	}
	return n - 1
}

// IndexToColumn converts a 0-based column index to letters.
func IndexToColumn(index int) string {
	if index < 0 {
		return ""
	}
	var buf []byte
	for index++; index > 0; index = (index - 1) / 26 {
		buf = append([]byte{byte('A' + (index-1)%26)}, buf...)
	}
	return string(buf)
}

// builtinDateFormats are the predefined numFmtIds that render dates or
// times.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true,
	20: true, 21: true, 22: true, 45: true, 46: true, 47: true,
}

// isDateFormat reports whether a custom format code renders a date.
// Quoted literals and bracketed sections such as colors are ignored.
func isDateFormat(code string) bool {
	var b strings.Builder
	quoted, bracket := false, false
	for _, r := range code {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '[':
			bracket = true
		case r == ']':
			bracket = false
		case bracket:
		default:
			b.WriteRune(r)
		}
	}
	plain := strings.ToLower(b.String())
	return strings.ContainsAny(plain, "dy") || strings.Contains(plain, "mm") && strings.ContainsAny(plain, "hs")
}

// serialToTime converts a spreadsheet date serial to a time. The 1900
// system counts the nonexistent 1900-02-29, so serials after it are
// shifted by one day.
func serialToTime(serial float64, date1904 bool) time.Time {
	epoch := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	if date1904 {
		epoch = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)
	} else if serial < 60 {
		epoch = epoch.AddDate(0, 0, 1)
	}
	days := math.Floor(serial)
	secs := math.Round((serial - days) * 86400)
	return epoch.AddDate(0, 0, int(days)).Add(time.Duration(secs) * time.Second)
}

// formatDate renders a serial as a date, with the time when it has one.
func formatDate(raw string, date1904 bool) (string, bool) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return "", false
	}
	t := serialToTime(f, date1904)
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02"), true
	}
	if f < 1 {
		return t.Format("15:04:05"), true
	}
	return t.Format("2006-01-02 15:04:05"), true
}
