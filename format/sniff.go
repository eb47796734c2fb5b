package format

import (
	"bytes"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Result is the outcome of sniffing one file.
type Result struct {
	Format Format `json:"format"`
	MIME   string `json:"mime"`
	// ByContent is true when the format was decided from the bytes rather
	// than the file name.
	ByContent bool `json:"by_content"`
	// ExtensionMismatch is true when the file name claims a different
	// known format than the content.
	ExtensionMismatch bool `json:"extension_mismatch"`
	// Claimed is the format implied by the file name.
	Claimed Format `json:"claimed"`
}

// MarshalText implements encoding.TextMarshaler so formats serialize by name.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Sniff determines the true format of data. The name is consulted only to
// refine text formats and as a last resort.
func Sniff(name string, data []byte) Result {
	claimed := Detect(name)
	res := Result{Claimed: claimed}

	f, err := DetectFromReader(bytes.NewReader(data), int64(len(data)))
	if err == nil && f != Unknown {
		res.Format = f
		res.ByContent = true
	} else {
		res.Format, res.ByContent = sniffContent(data, claimed)
	}

	if res.Format == Unknown {
		res.Format = claimed
	}
	res.MIME = res.Format.MIME()
	res.ExtensionMismatch = claimed != Unknown && res.ByContent && !compatible(claimed, res.Format)
	return res
}

// sniffContent falls back to mimetype content detection for the formats
// that have no magic number.
func sniffContent(data []byte, claimed Format) (Format, bool) {
	if len(data) == 0 {
		return Unknown, false
	}
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		switch {
		case m.Is("text/html"):
			return HTML, true
		case m.Is("text/csv"), m.Is("text/tab-separated-values"):
			return CSV, true
		case m.Is("text/plain"):
			// Plain text carries no marker for Markdown or CSV; trust the
			// name within the text family.
			if claimed.IsText() {
				return claimed, true
			}
			if looksLikeMarkdown(data) {
				return Markdown, true
			}
			return TXT, true
		}
	}
	return Unknown, false
}

func looksLikeMarkdown(data []byte) bool {
	head := string(data[:min(len(data), 4096)])
	for _, line := range strings.Split(head, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") || strings.HasPrefix(line, "## ") || strings.HasPrefix(line, "```") {
			return true
		}
	}
	return false
}

// compatible reports whether a file named as claimed may legitimately hold
// detected content.
func compatible(claimed, detected Format) bool {
	if claimed == detected {
		return true
	}
	if claimed.IsText() && detected.IsText() {
		return true
	}
	if claimed == HTML && detected == TXT {
		return true
	}
	return false
}
