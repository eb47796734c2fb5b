package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tsawler/intelliparse/format"
)

type testFile struct {
	name string
	body string
}

func createTestZip(t *testing.T, files ...testFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: f.name, Method: zip.Store})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(f.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func createTestTar(t *testing.T, files ...testFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := tar.NewWriter(&buf)
	for _, f := range files {
		hdr := &tar.Header{Name: f.name, Mode: 0o644, Size: int64(len(f.body)), Typeflag: tar.TypeReg}
		if strings.HasSuffix(f.name, "/") {
			hdr = &tar.Header{Name: f.name, Mode: 0o755, Typeflag: tar.TypeDir}
		}
		if err := w.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(f.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func gzipBytes(t *testing.T, name string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	w.Name = name
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func names(r *Reader) []string {
	var out []string
	for _, e := range r.Entries() {
		out = append(out, e.Name)
	}
	return out
}

func TestOpenBytes_Zip(t *testing.T) {
	data := createTestZip(t,
		testFile{"docs/", ""},
		testFile{"docs/readme.txt", "hello"},
		testFile{"report.csv", "a,b\n1,2\n"},
	)
	r, err := OpenBytes("bundle.zip", data)
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	defer r.Close()

	if r.Format() != format.ZIP {
		t.Errorf("Format = %v", r.Format())
	}
	if got := strings.Join(names(r), ","); got != "docs/readme.txt,report.csv" {
		t.Errorf("entries = %s", got)
	}
	if string(r.Entries()[0].Data) != "hello" {
		t.Errorf("data = %q", r.Entries()[0].Data)
	}
	meta := r.Metadata()
	if meta.PageCount != 2 || meta.Custom["total_size"] != "13" {
		t.Errorf("metadata = %+v", meta)
	}
}

func TestOpenBytes_TarAndTarGz(t *testing.T) {
	tarData := createTestTar(t,
		testFile{"dir/", ""},
		testFile{"dir/a.txt", "alpha"},
		testFile{"b.md", "# beta"},
	)
	for name, data := range map[string][]byte{
		"files.tar":    tarData,
		"files.tar.gz": gzipBytes(t, "", tarData),
	} {
		t.Run(name, func(t *testing.T) {
			r, err := OpenBytes(name, data)
			if err != nil {
				t.Fatalf("OpenBytes failed: %v", err)
			}
			if got := strings.Join(names(r), ","); got != "dir/a.txt,b.md" {
				t.Errorf("entries = %s", got)
			}
		})
	}
}

func TestOpenBytes_SingleGzip(t *testing.T) {
	r, err := OpenBytes("notes.txt.gz", gzipBytes(t, "", []byte("compressed notes")))
	if err != nil {
		t.Fatal(err)
	}
	if got := names(r); len(got) != 1 || got[0] != "notes.txt" {
		t.Errorf("entries = %v", got)
	}

	r, err = OpenBytes("x.gz", gzipBytes(t, "original.log", []byte("log")))
	if err != nil {
		t.Fatal(err)
	}
	if got := names(r); len(got) != 1 || got[0] != "original.log" {
		t.Errorf("entries = %v", got)
	}
}

func TestUnsafePaths(t *testing.T) {
	data := createTestZip(t,
		testFile{"../escape.txt", "x"},
		testFile{"/etc/passwd", "x"},
		testFile{`C:\windows\evil.txt`, "x"},
		testFile{"ok/../fine.txt", "fine"},
	)
	r, err := OpenBytes("evil.zip", data)
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	if got := strings.Join(names(r), ","); got != "fine.txt" {
		t.Errorf("entries = %s", got)
	}
	if len(r.Warnings()) != 3 {
		t.Errorf("warnings = %v", r.Warnings())
	}
}

func TestSafePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"a/b.txt", "a/b.txt", true},
		{`a\b.txt`, "a/b.txt", true},
		{"./a//b.txt", "a/b.txt", true},
		{"..", "", false},
		{"a/../../b", "", false},
		{"/abs", "", false},
		{"d:/x", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := SafePath(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("SafePath(%q) = %q, %v", tt.in, got, err)
		}
		if err != nil && !errors.Is(err, ErrUnsafePath) {
			t.Errorf("SafePath(%q) error should wrap ErrUnsafePath", tt.in)
		}
	}
}

func TestLimits(t *testing.T) {
	files := []testFile{{"a.txt", "aaaa"}, {"b.txt", "bbbbbbbbbb"}, {"c.txt", "cc"}}
	data := createTestZip(t, files...)

	t.Run("entry size skips member", func(t *testing.T) {
		r, err := OpenBytes("x.zip", data, WithLimits(Limits{MaxEntrySize: 5}))
		if err != nil {
			t.Fatal(err)
		}
		if got := strings.Join(names(r), ","); got != "a.txt,c.txt" {
			t.Errorf("entries = %s", got)
		}
		if len(r.Warnings()) != 1 || !strings.Contains(r.Warnings()[0], "b.txt") {
			t.Errorf("warnings = %v", r.Warnings())
		}
	})

	t.Run("entry count rejects archive", func(t *testing.T) {
		_, err := OpenBytes("x.zip", data, WithLimits(Limits{MaxEntries: 2}))
		if !errors.Is(err, ErrLimitExceeded) {
			t.Errorf("err = %v, want ErrLimitExceeded", err)
		}
	})

	t.Run("total size rejects archive", func(t *testing.T) {
		_, err := OpenBytes("x.zip", data, WithLimits(Limits{MaxTotalSize: 10}))
		if !errors.Is(err, ErrLimitExceeded) {
			t.Errorf("err = %v, want ErrLimitExceeded", err)
		}
	})

	t.Run("gzip bomb", func(t *testing.T) {
		bomb := gzipBytes(t, "zeros", make([]byte, 1<<20))
		_, err := OpenBytes("zeros.gz", bomb, WithLimits(Limits{MaxTotalSize: 1024}))
		if !errors.Is(err, ErrLimitExceeded) {
			t.Errorf("err = %v, want ErrLimitExceeded", err)
		}
	})
}

func TestCorruptMember(t *testing.T) {
	data := createTestZip(t, testFile{"good.txt", "good content"}, testFile{"bad.txt", "original content"})
	// flip a byte of the stored body so its CRC no longer matches
	i := bytes.Index(data, []byte("original content"))
	data[i] = 'X'

	r, err := OpenBytes("x.zip", data)
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	if got := strings.Join(names(r), ","); got != "good.txt" {
		t.Errorf("entries = %s", got)
	}
	if len(r.Warnings()) != 1 || !strings.Contains(r.Warnings()[0], "bad.txt") {
		t.Errorf("warnings = %v", r.Warnings())
	}
}

func TestOpenBytes_Errors(t *testing.T) {
	if _, err := OpenBytes("plain.txt", []byte("just text")); !errors.Is(err, format.ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
	if _, err := OpenBytes("bad.rar", append([]byte("Rar!\x1a\x07\x00"), bytes.Repeat([]byte{0xff}, 64)...)); err == nil {
		t.Error("expected error for corrupt rar")
	}
	if _, err := Open(filepath.Join(t.TempDir(), "missing.zip")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.zip")
	if err := os.WriteFile(path, createTestZip(t, testFile{"a.txt", "abc"}), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := r.Document()
	if err != nil {
		t.Fatal(err)
	}
	if doc.Format != "zip" || !strings.Contains(doc.Sections[0].RenderText(), "a.txt (3 bytes)") {
		t.Errorf("listing = %q", doc.Sections[0].RenderText())
	}
	r.Close()
	if _, err := r.Document(); err == nil {
		t.Error("expected error after Close")
	}
}
