package pdf

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	lpdf "github.com/ledongthuc/pdf"

	"github.com/tsawler/intelliparse/model"
)

// Version represents a PDF version
type Version struct {
	Major int
	Minor int
}

// String returns the version as a string (e.g., "1.7")
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

var versionPattern = regexp.MustCompile(`^%PDF-(\d+)\.(\d+)`)

// parseHeader reads the version from the "%PDF-x.y" header. Some writers
// put junk before the header, so the first kilobyte is searched.
func parseHeader(data []byte) (Version, error) {
	head := data[:min(len(data), 1024)]
	i := bytes.Index(head, []byte("%PDF-"))
	if i < 0 {
		return Version{}, fmt.Errorf("invalid PDF header")
	}
	m := versionPattern.FindSubmatch(head[i:])
	if m == nil {
		return Version{}, fmt.Errorf("invalid PDF version in header")
	}
	major, _ := strconv.Atoi(string(m[1]))
	minor, _ := strconv.Atoi(string(m[2]))
	return Version{Major: major, Minor: minor}, nil
}

// countPages returns the number of pages, or 0 when the page tree is
// unreadable.
func (r *Reader) countPages() (n int) {
	defer func() {
		if rec := recover(); rec != nil {
			r.warnings = append(r.warnings, fmt.Sprintf("page tree: %v", rec))
			n = 0
		}
	}()
	return r.pdf.NumPage()
}

// readInfo maps the trailer's Info dictionary onto model.Metadata.
func (r *Reader) readInfo() (meta model.Metadata) {
	meta.Custom = make(map[string]string)
	defer func() {
		if rec := recover(); rec != nil {
			r.warnings = append(r.warnings, fmt.Sprintf("info dictionary: %v", rec))
		}
	}()

	info := r.pdf.Trailer().Key("Info")
	if info.IsNull() {
		return meta
	}
	meta.Title = infoText(info, "Title")
	meta.Author = infoText(info, "Author")
	meta.Subject = infoText(info, "Subject")
	meta.Creator = infoText(info, "Creator")
	meta.Producer = infoText(info, "Producer")
	meta.Keywords = splitKeywords(infoText(info, "Keywords"))
	meta.Created = parseDate(infoText(info, "CreationDate"))
	meta.Modified = parseDate(infoText(info, "ModDate"))

	known := map[string]bool{
		"Title": true, "Author": true, "Subject": true, "Creator": true,
		"Producer": true, "Keywords": true, "CreationDate": true, "ModDate": true,
		"Trapped": true,
	}
	for _, k := range info.Keys() {
		if known[k] {
			continue
		}
		if v := infoText(info, k); v != "" {
			meta.Custom[k] = v
		}
	}
	return meta
}

func infoText(info lpdf.Value, key string) string {
	v := info.Key(key)
	if v.Kind() != lpdf.String {
		return ""
	}
	return strings.TrimSpace(v.Text())
}

// splitKeywords splits a keyword string on commas or semicolons.
func splitKeywords(s string) []string {
	var out []string
	for _, k := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// parseDate parses a PDF date such as "D:20240115103000+01'00'". Missing
// trailing fields default to their minimum; a malformed date yields the
// zero time.
func parseDate(s string) time.Time {
	s = strings.TrimPrefix(strings.TrimSpace(s), "D:")
	s = strings.ReplaceAll(s, "'", "")
	if s == "" {
		return time.Time{}
	}

	stamp, zone := s, ""
	if i := strings.IndexAny(s, "Z+-"); i >= 0 {
		stamp, zone = s[:i], s[i:]
	}
	layouts := map[int]string{
		4:  "2006",
		6:  "200601",
		8:  "20060102",
		10: "2006010215",
		12: "200601021504",
		14: "20060102150405",
	}
	layout, ok := layouts[len(stamp)]
	if !ok {
		return time.Time{}
	}

	loc := time.UTC
	if zone != "" && zone[0] != 'Z' && len(zone) >= 3 {
		hours, err1 := strconv.Atoi(zone[1:3])
		mins := 0
		var err2 error
		if len(zone) >= 5 {
			mins, err2 = strconv.Atoi(zone[3:5])
		}
		if err1 == nil && err2 == nil {
			offset := hours*3600 + mins*60
			if zone[0] == '-' {
				offset = -offset
			}
			loc = time.FixedZone("", offset)
		}
	}
	t, err := time.ParseInLocation(layout, stamp, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}
