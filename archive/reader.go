// Package archive lists and reads the members of ZIP, TAR, gzip (including
// .tar.gz) and RAR archives under size and count limits.
//
// Members are returned as raw bytes; the caller decides how to parse each
// one. Unsafe member paths and oversized members are skipped with a
// warning. Exceeding the entry count or total size limit aborts the whole
// archive, since it usually signals a decompression bomb.
package archive

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tsawler/intelliparse/format"
	"github.com/tsawler/intelliparse/model"
)

var (
	// ErrLimitExceeded is returned when an archive or member exceeds a
	// configured limit.
	ErrLimitExceeded = errors.New("archive limit exceeded")
	// ErrUnsafePath is returned for member names that are absolute or
	// escape the archive root.
	ErrUnsafePath = errors.New("unsafe path in archive")
)

// Limits bound the resources spent on one archive. Zero fields take the
// defaults.
type Limits struct {
	MaxEntries   int   `yaml:"max_entries"`
	MaxTotalSize int64 `yaml:"max_total_size"`
	MaxEntrySize int64 `yaml:"max_entry_size"`
}

// Default limits.
const (
	DefaultMaxEntries   = 1000
	DefaultMaxTotalSize = 512 << 20
	DefaultMaxEntrySize = 100 << 20
)

func (l Limits) withDefaults() Limits {
	if l.MaxEntries <= 0 {
		l.MaxEntries = DefaultMaxEntries
	}
	if l.MaxTotalSize <= 0 {
		l.MaxTotalSize = DefaultMaxTotalSize
	}
	if l.MaxEntrySize <= 0 {
		l.MaxEntrySize = DefaultMaxEntrySize
	}
	return l
}

// Entry is one regular file inside an archive.
type Entry struct {
	Name string
	Data []byte
}

// Size returns the uncompressed size of the entry.
func (e Entry) Size() int64 {
	return int64(len(e.Data))
}

// Reader holds the members of an archive.
type Reader struct {
	name     string
	kind     format.Format
	limits   Limits
	entries  []Entry
	total    int64
	warnings []string
	closed   bool
}

// Option configures a Reader.
type Option func(*Reader)

// WithLimits sets the archive limits.
func WithLimits(l Limits) Option {
	return func(r *Reader) { r.limits = l }
}

// Open opens an archive file for reading.
func Open(filename string, opts ...Option) (*Reader, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return OpenBytes(filepath.Base(filename), data, opts...)
}

// OpenBytes reads every member of an archive held in memory. The archive
// type is detected from its content.
func OpenBytes(name string, data []byte, opts ...Option) (*Reader, error) {
	r := &Reader{name: name}
	for _, opt := range opts {
		opt(r)
	}
	r.limits = r.limits.withDefaults()
	r.kind = format.DetectFromMagic(data)

	var err error
	switch r.kind {
	case format.ZIP:
		err = r.readZip(data)
	case format.TAR:
		err = r.readTar(data)
	case format.GZIP:
		err = r.readGzip(data)
	case format.RAR:
		err = r.readRar(data)
	default:
		return nil, fmt.Errorf("%s: not an archive: %w", name, format.ErrUnsupported)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Close releases resources associated with the Reader.
func (r *Reader) Close() error {
	r.entries = nil
	r.closed = true
	return nil
}

// Format returns the detected archive type.
func (r *Reader) Format() format.Format {
	return r.kind
}

// Entries returns the regular file members in archive order.
func (r *Reader) Entries() []Entry {
	return r.entries
}

// Warnings returns problems with individual members.
func (r *Reader) Warnings() []string {
	return r.warnings
}

// Metadata returns archive metadata. PageCount is the number of members.
func (r *Reader) Metadata() model.Metadata {
	return model.Metadata{
		PageCount: len(r.entries),
		Custom: map[string]string{
			"archive_format": r.kind.String(),
			"entries":        fmt.Sprint(len(r.entries)),
			"total_size":     fmt.Sprint(r.total),
		},
	}
}

// Document returns a listing of the archive: one list element naming each
// member. Member content is parsed by the caller.
func (r *Reader) Document() (*model.Document, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}
	doc := model.NewDocument(r.name, strings.ToLower(r.kind.String()))
	doc.Metadata = r.Metadata()
	sec := doc.AddSection(r.name)
	if len(r.entries) == 0 {
		return doc, nil
	}
	list := &model.List{}
	for _, e := range r.entries {
		list.Items = append(list.Items, model.ListItem{Text: fmt.Sprintf("%s (%d bytes)", e.Name, e.Size())})
	}
	sec.Add(model.NewListElement(list))
	return doc, nil
}

// add checks a member against the limits and records it. It returns an
// error only when the archive as a whole must be rejected.
func (r *Reader) add(name string, data []byte) error {
	if len(r.entries) >= r.limits.MaxEntries {
		return fmt.Errorf("%s: more than %d entries: %w", r.name, r.limits.MaxEntries, ErrLimitExceeded)
	}
	r.total += int64(len(data))
	if r.total > r.limits.MaxTotalSize {
		return fmt.Errorf("%s: more than %d bytes uncompressed: %w", r.name, r.limits.MaxTotalSize, ErrLimitExceeded)
	}
	r.entries = append(r.entries, Entry{Name: name, Data: data})
	return nil
}

func (r *Reader) warn(name string, err error) {
	r.warnings = append(r.warnings, fmt.Sprintf("%s: %v", name, err))
}

// SafePath cleans a member name and rejects absolute paths and paths that
// climb out of the archive root.
func SafePath(name string) (string, error) {
	n := strings.ReplaceAll(name, `\`, "/")
	if n == "" || strings.HasPrefix(n, "/") || hasDriveLetter(n) {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafePath)
	}
	clean := path.Clean(n)
	if clean == ".." || strings.HasPrefix(clean, "../") || clean == "." {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafePath)
	}
	return clean, nil
}

func hasDriveLetter(n string) bool {
	return len(n) >= 2 && n[1] == ':' && (n[0]|0x20) >= 'a' && (n[0]|0x20) <= 'z'
}
