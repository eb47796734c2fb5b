// Package format provides file type sniffing for intelliparse.
//
// Detection never trusts the file name alone. [Sniff] checks magic bytes,
// then inspects ZIP containers to tell OOXML, OpenDocument and EPUB
// packages apart, then falls back to content sniffing, and only then to
// the extension.
package format

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned when no parser exists for a format.
var ErrUnsupported = errors.New("unsupported format")

// Format represents a supported document format.
type Format int

const (
	// Unknown indicates an unrecognized format.
	Unknown Format = iota
	PDF
	DOCX
	ODT
	XLSX
	PPTX
	HTML
	EPUB
	TXT
	Markdown
	CSV
	DXF
	DWG
	ZIP
	TAR
	GZIP
	RAR
	PNG
	JPEG
	GIF
	TIFF
	BMP
	WEBP
)

type info struct {
	name       string
	mime       string
	extensions []string
}

var formats = map[Format]info{
	Unknown:  {"Unknown", "application/octet-stream", nil},
	PDF:      {"PDF", "application/pdf", []string{".pdf"}},
	DOCX:     {"DOCX", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", []string{".docx"}},
	ODT:      {"ODT", "application/vnd.oasis.opendocument.text", []string{".odt"}},
	XLSX:     {"XLSX", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", []string{".xlsx", ".xlsm"}},
	PPTX:     {"PPTX", "application/vnd.openxmlformats-officedocument.presentationml.presentation", []string{".pptx"}},
	HTML:     {"HTML", "text/html", []string{".html", ".htm", ".xhtml"}},
	EPUB:     {"EPUB", "application/epub+zip", []string{".epub"}},
	TXT:      {"TXT", "text/plain", []string{".txt", ".text", ".log"}},
	Markdown: {"Markdown", "text/markdown", []string{".md", ".markdown"}},
	CSV:      {"CSV", "text/csv", []string{".csv", ".tsv"}},
	DXF:      {"DXF", "image/vnd.dxf", []string{".dxf"}},
	DWG:      {"DWG", "image/vnd.dwg", []string{".dwg"}},
	ZIP:      {"ZIP", "application/zip", []string{".zip"}},
	TAR:      {"TAR", "application/x-tar", []string{".tar"}},
	GZIP:     {"GZIP", "application/gzip", []string{".gz", ".tgz"}},
	RAR:      {"RAR", "application/vnd.rar", []string{".rar"}},
	PNG:      {"PNG", "image/png", []string{".png"}},
	JPEG:     {"JPEG", "image/jpeg", []string{".jpg", ".jpeg"}},
	GIF:      {"GIF", "image/gif", []string{".gif"}},
	TIFF:     {"TIFF", "image/tiff", []string{".tif", ".tiff"}},
	BMP:      {"BMP", "image/bmp", []string{".bmp"}},
	WEBP:     {"WEBP", "image/webp", []string{".webp"}},
}

// All returns every known format except Unknown, in declaration order.
func All() []Format {
	out := make([]Format, 0, len(formats)-1)
	for f := PDF; f <= WEBP; f++ {
		out = append(out, f)
	}
	return out
}

// String returns the string representation of the format.
func (f Format) String() string {
	if i, ok := formats[f]; ok {
		return i.name
	}
	return "Unknown"
}

// Extension returns the typical file extension for the format.
func (f Format) Extension() string {
	if i, ok := formats[f]; ok && len(i.extensions) > 0 {
		return i.extensions[0]
	}
	return ""
}

// MIME returns the canonical media type of the format.
func (f Format) MIME() string {
	if i, ok := formats[f]; ok {
		return i.mime
	}
	return formats[Unknown].mime
}

// IsArchive reports whether the format is a container of other files.
func (f Format) IsArchive() bool {
	return f == ZIP || f == TAR || f == GZIP || f == RAR
}

// IsImage reports whether the format is a raster image.
func (f Format) IsImage() bool {
	return f >= PNG && f <= WEBP
}

// IsText reports whether the format is a plain text family member.
func (f Format) IsText() bool {
	return f == TXT || f == Markdown || f == CSV
}

// Parse resolves a format name such as "pdf" or "DOCX".
func Parse(name string) Format {
	for f, i := range formats {
		if strings.EqualFold(i.name, name) {
			return f
		}
	}
	return Unknown
}

// Detect determines file format from filename extension.
func Detect(filename string) Format {
	name := strings.ToLower(filename)
	if strings.HasSuffix(name, ".tar.gz") {
		return GZIP
	}
	ext := filepath.Ext(name)
	if ext == "" {
		return Unknown
	}
	for f, i := range formats {
		for _, e := range i.extensions {
			if e == ext {
				return f
			}
		}
	}
	return Unknown
}

var (
	magicPDF   = []byte("%PDF-")
	magicZIP   = []byte("PK\x03\x04")
	magicZIP0  = []byte("PK\x05\x06")
	magicRAR4  = []byte("Rar!\x1a\x07\x00")
	magicRAR5  = []byte("Rar!\x1a\x07\x01\x00")
	magicGZIP  = []byte{0x1f, 0x8b}
	magicPNG   = []byte("\x89PNG\r\n\x1a\n")
	magicJPEG  = []byte{0xff, 0xd8, 0xff}
	magicGIF87 = []byte("GIF87a")
	magicGIF89 = []byte("GIF89a")
	magicTIFFI = []byte("II*\x00")
	magicTIFFM = []byte("MM\x00*")
	magicBMP   = []byte("BM")
	magicDWG   = []byte("AC10")
)

// DetectFromMagic checks file magic bytes to determine format.
// ZIP data yields ZIP; use DetectFromReader to look inside the container.
// Returns Unknown if the format cannot be determined from magic bytes alone.
func DetectFromMagic(data []byte) Format {
	switch {
	case len(data) < 2:
		return Unknown
	case bytes.HasPrefix(data, magicZIP), bytes.HasPrefix(data, magicZIP0):
		return ZIP
	case bytes.HasPrefix(data, magicRAR4), bytes.HasPrefix(data, magicRAR5):
		return RAR
	case bytes.HasPrefix(data, magicGZIP):
		return GZIP
	case hasMagicPDF(data):
		return PDF
	case bytes.HasPrefix(data, magicPNG):
		return PNG
	case bytes.HasPrefix(data, magicJPEG):
		return JPEG
	case bytes.HasPrefix(data, magicGIF87), bytes.HasPrefix(data, magicGIF89):
		return GIF
	case bytes.HasPrefix(data, magicTIFFI), bytes.HasPrefix(data, magicTIFFM):
		return TIFF
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return WEBP
	case bytes.HasPrefix(data, magicDWG) && len(data) >= 6:
		return DWG
	case bytes.HasPrefix(data, magicBMP) && isBMPHeader(data):
		return BMP
	case len(data) >= 262 && string(data[257:262]) == "ustar":
		return TAR
	case detectHTMLMagic(data):
		return HTML
	case detectDXFMagic(data):
		return DXF
	}
	return Unknown
}

// hasMagicPDF matches the %PDF- header at the start of the data, after an
// optional BOM and leading whitespace.
func hasMagicPDF(data []byte) bool {
	data = bytes.TrimLeft(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), " \t\r\n")
	return bytes.HasPrefix(data, magicPDF)
}

// isBMPHeader checks the DIB header size that follows the file header.
func isBMPHeader(data []byte) bool {
	if len(data) < 18 {
		return false
	}
	switch binary.LittleEndian.Uint32(data[14:18]) {
	case 12, 40, 52, 56, 64, 108, 124:
		return true
	}
	return false
}

// detectHTMLMagic checks if the data looks like HTML content.
func detectHTMLMagic(data []byte) bool {
	data = bytes.TrimLeft(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), " \t\r\n")
	if len(data) == 0 {
		return false
	}
	head := strings.ToUpper(string(data[:min(512, len(data))]))
	switch {
	case strings.HasPrefix(head, "<!DOCTYPE HTML"), strings.HasPrefix(head, "<HTML"):
		return true
	case strings.HasPrefix(head, "<?XML") && strings.Contains(head, "<HTML"):
		return true
	}
	return false
}

// detectDXFMagic recognizes ASCII DXF, which opens with a group code 0
// followed by SECTION.
func detectDXFMagic(data []byte) bool {
	head := data[:min(64, len(data))]
	fields := strings.Fields(string(head))
	return len(fields) >= 2 && fields[0] == "0" && fields[1] == "SECTION"
}

// DetectFromReader inspects the content to determine format. It can
// distinguish between the ZIP based formats (DOCX, XLSX, PPTX, ODT, EPUB).
func DetectFromReader(r io.ReaderAt, size int64) (Format, error) {
	magic := make([]byte, 1024)
	n, err := r.ReadAt(magic, 0)
	if err != nil && err != io.EOF {
		return Unknown, err
	}
	f := DetectFromMagic(magic[:n])
	if f == ZIP {
		return detectZIPFormat(r, size)
	}
	return f, nil
}

// detectZIPFormat inspects a ZIP archive to determine if it's DOCX, XLSX,
// PPTX, ODT, EPUB or a plain ZIP.
func detectZIPFormat(r io.ReaderAt, size int64) (Format, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		// Truncated or damaged archives are still archives.
		return ZIP, nil
	}

	// OpenDocument and EPUB store their media type in a "mimetype" entry
	for _, f := range zr.File {
		if f.Name != "mimetype" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			break
		}
		data, _ := io.ReadAll(io.LimitReader(rc, 256))
		rc.Close()
		mimeType := strings.TrimSpace(string(data))
		switch {
		case strings.HasPrefix(mimeType, "application/vnd.oasis.opendocument.text"):
			return ODT, nil
		case mimeType == "application/epub+zip":
			return EPUB, nil
		}
	}

	for _, f := range zr.File {
		switch {
		case strings.HasPrefix(f.Name, "word/"):
			return DOCX, nil
		case strings.HasPrefix(f.Name, "xl/"):
			return XLSX, nil
		case strings.HasPrefix(f.Name, "ppt/"):
			return PPTX, nil
		}
	}

	return ZIP, nil
}
