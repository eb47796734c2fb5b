// Package textdoc reads plain text, Markdown and delimited text files.
//
// Input is decoded to UTF-8 first: a byte order mark wins, valid UTF-8 is
// kept as is, and anything else is decoded with the charset sniffed from
// the content. Markdown keeps its block structure, CSV and TSV become a
// single table, and plain text is split into paragraphs on blank lines.
package textdoc

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/tsawler/intelliparse/format"
	"github.com/tsawler/intelliparse/model"
)

// DefaultMaxRows caps the rows read from a delimited file.
const DefaultMaxRows = 100_000

// Reader provides access to a text document.
type Reader struct {
	name     string
	kind     format.Format
	text     string
	encoding string
	maxRows  int
	comma    rune
	warnings []string
	closed   bool
}

// Option configures a Reader.
type Option func(*Reader)

// WithFormat overrides the format implied by the file extension. Only
// format.TXT, format.Markdown and format.CSV are meaningful.
func WithFormat(f format.Format) Option {
	return func(r *Reader) { r.kind = f }
}

// WithMaxRows caps the rows read from CSV input. Extra rows are dropped
// with a warning.
func WithMaxRows(n int) Option {
	return func(r *Reader) { r.maxRows = n }
}

// WithDelimiter fixes the CSV field separator instead of sniffing it.
func WithDelimiter(c rune) Option {
	return func(r *Reader) { r.comma = c }
}

// Open opens a text file for reading.
func Open(filename string, opts ...Option) (*Reader, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return OpenBytes(filepath.Base(filename), data, opts...)
}

// OpenBytes decodes a text document held in memory.
func OpenBytes(name string, data []byte, opts ...Option) (*Reader, error) {
	r := &Reader{name: name, kind: format.Detect(name), maxRows: DefaultMaxRows}
	if !r.kind.IsText() {
		r.kind = format.TXT
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.comma == 0 && strings.EqualFold(filepath.Ext(name), ".tsv") {
		r.comma = '\t'
	}

	text, enc, err := decode(data)
	if err != nil {
		return nil, err
	}
	r.text = strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\r", "\n")
	r.encoding = enc
	return r, nil
}

// decode converts data to UTF-8 and names the source encoding.
func decode(data []byte) (string, string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return string(data[3:]), "utf-8", nil
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, data)
		if err != nil {
			return "", "", fmt.Errorf("decoding UTF-16: %w", err)
		}
		return string(out), "utf-16", nil
	case utf8.Valid(data):
		return string(data), "utf-8", nil
	}
	enc, name, _ := charset.DetermineEncoding(data, "text/plain")
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", "", fmt.Errorf("decoding %s: %w", name, err)
	}
	return string(out), name, nil
}

// Close releases resources associated with the Reader.
func (r *Reader) Close() error {
	r.closed = true
	r.text = ""
	return nil
}

// Warnings returns problems met while reading that did not stop parsing.
func (r *Reader) Warnings() []string {
	return r.warnings
}

// Encoding returns the detected source encoding.
func (r *Reader) Encoding() string {
	return r.encoding
}

// Metadata returns what can be known about a text file.
func (r *Reader) Metadata() model.Metadata {
	return model.Metadata{PageCount: 1, Custom: map[string]string{"encoding": r.encoding}}
}

// Text returns the decoded text.
func (r *Reader) Text() (string, error) {
	if r.closed {
		return "", fmt.Errorf("reader is closed")
	}
	return r.text, nil
}

// Document returns the content as a single section.
func (r *Reader) Document() (*model.Document, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}
	doc := model.NewDocument(r.name, r.kind.String())
	doc.Metadata = r.Metadata()
	sec := doc.AddSection("")

	switch r.kind {
	case format.Markdown:
		parseMarkdown(r.text, sec)
		sec.Markdown = strings.TrimSpace(r.text)
	case format.CSV:
		tbl, err := r.table()
		if err != nil && (tbl == nil || tbl.RowCount() == 0) {
			return nil, err
		}
		if err != nil {
			r.warnings = append(r.warnings, err.Error())
		}
		if tbl.RowCount() > 0 {
			sec.Add(model.NewTableElement(tbl))
		}
	default:
		for _, p := range paragraphs(r.text) {
			sec.Add(model.NewText(p))
		}
	}
	return doc, nil
}

// paragraphs splits text on blank lines, trimming trailing spaces.
func paragraphs(text string) []string {
	var out []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, "\n"))
			cur = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return out
}

// table reads delimited text. The first record is the header; short
// records are padded. A parse error returns the rows read so far.
func (r *Reader) table() (*model.Table, error) {
	cr := csv.NewReader(strings.NewReader(r.text))
	cr.Comma = r.comma
	if cr.Comma == 0 {
		cr.Comma = sniffDelimiter(r.text)
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	width := 0
	var readErr error
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = fmt.Errorf("csv: %w", err)
			break
		}
		if len(rows) == r.maxRows {
			r.warnings = append(r.warnings, fmt.Sprintf("csv: truncated to %d rows", r.maxRows))
			break
		}
		rows = append(rows, rec)
		width = max(width, len(rec))
	}
	for i, rec := range rows {
		for len(rec) < width {
			rec = append(rec, "")
		}
		rows[i] = rec
	}
	return model.NewTableFromStrings(rows, len(rows) > 1), readErr
}

// sniffDelimiter picks the most frequent candidate separator on the first
// line, defaulting to a comma.
func sniffDelimiter(text string) rune {
	line, _, _ := strings.Cut(text, "\n")
	best, bestCount := ',', 0
	for _, c := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(line, string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}
