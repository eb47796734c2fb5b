package intelliparse

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/tsawler/intelliparse/archive"
	"github.com/tsawler/intelliparse/format"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type zipMember struct {
	name string
	data []byte
}

// zipBytes builds an in-memory zip holding members in order.
func zipBytes(t *testing.T, members ...zipMember) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		w, err := zw.Create(m.name)
		if err != nil {
			t.Fatalf("creating %s: %v", m.name, err)
		}
		if _, err := w.Write(m.data); err != nil {
			t.Fatalf("writing %s: %v", m.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractZip(t *testing.T) {
	data := zipBytes(t,
		zipMember{"a.txt", []byte("Alpha text.")},
		zipMember{"docs/b.md", []byte("# Beta\n\nBeta body.")},
		zipMember{"junk.bin", []byte{0x00, 0x01, 0x02, 0x03, 0xfe, 0xff}},
	)
	res := New(quietConfig()).Extract(context.Background(), Input{Name: "bundle.zip", Data: data})
	if !res.OK() {
		t.Fatalf("extraction failed: %v", res.Err)
	}
	if res.Format != format.ZIP {
		t.Errorf("format = %v, want ZIP", res.Format)
	}
	if len(res.Entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(res.Entries))
	}
	if res.Entries[0].Format != format.TXT || res.Entries[1].Format != format.Markdown {
		t.Errorf("entry formats = %v, %v", res.Entries[0].Format, res.Entries[1].Format)
	}
	if res.Entries[2].Err == nil {
		t.Error("junk member should fail")
	}

	text := res.Document.Text()
	alpha, beta := strings.Index(text, "Alpha text."), strings.Index(text, "Beta body.")
	if alpha < 0 || beta < 0 || alpha > beta {
		t.Errorf("members missing or out of order: %q", text)
	}
	if res.Document.Sections[0].Title != "a.txt" {
		t.Errorf("first section title = %q, want member name", res.Document.Sections[0].Title)
	}

	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w.Message, "junk.bin") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a warning for junk.bin, got %v", res.Warnings)
	}
	if res.Job.Pages != len(res.Document.Sections) {
		t.Errorf("pages = %d, sections = %d", res.Job.Pages, len(res.Document.Sections))
	}
}

func TestExtractZipEntriesUnaffectedByMerge(t *testing.T) {
	data := zipBytes(t,
		zipMember{"one.txt", []byte("One.")},
		zipMember{"two.txt", []byte("Two.")},
	)
	res := New(quietConfig()).Extract(context.Background(), Input{Name: "pair.zip", Data: data})
	if !res.OK() {
		t.Fatalf("extraction failed: %v", res.Err)
	}
	if got := res.Document.Sections[1].Number; got != 2 {
		t.Errorf("merged section number = %d, want 2", got)
	}
	if got := res.Entries[1].Document.Sections[0].Number; got != 1 {
		t.Errorf("entry section number = %d, want 1", got)
	}
	if res.Entries[1].Document.Sections[0].Title != "" {
		t.Error("merging retitled the entry document")
	}
}

func TestNestedArchiveDepth(t *testing.T) {
	deepest := zipBytes(t, zipMember{"c.txt", []byte("Deep text.")})
	inner := zipBytes(t,
		zipMember{"b.txt", []byte("Inner text.")},
		zipMember{"deeper.zip", deepest},
	)
	outer := zipBytes(t,
		zipMember{"a.txt", []byte("Outer text.")},
		zipMember{"inner.zip", inner},
	)

	cfg := quietConfig()
	cfg.MaxArchiveDepth = 1
	res := New(cfg).Extract(context.Background(), Input{Name: "outer.zip", Data: outer})
	if !res.OK() {
		t.Fatalf("extraction failed: %v", res.Err)
	}
	text := res.Document.Text()
	if !strings.Contains(text, "Inner text.") {
		t.Errorf("first nested level missing: %q", text)
	}
	if strings.Contains(text, "Deep text.") {
		t.Errorf("archive beyond the depth limit was read: %q", text)
	}

	innerRes := res.Entries[1]
	if innerRes.Format != format.ZIP {
		t.Fatalf("inner format = %v, want ZIP", innerRes.Format)
	}
	skipped := false
	for _, w := range innerRes.Warnings {
		if strings.Contains(w.Message, "deeper.zip") && strings.Contains(w.Message, "skipped") {
			skipped = true
		}
	}
	if !skipped {
		t.Errorf("expected a depth warning, got %v", innerRes.Warnings)
	}

	cfg.MaxArchiveDepth = 3
	res = New(cfg).Extract(context.Background(), Input{Name: "outer.zip", Data: outer})
	if !strings.Contains(res.Document.Text(), "Deep text.") {
		t.Errorf("deep member missing with a higher limit: %q", res.Document.Text())
	}
}

func TestExtractZipLimitExceeded(t *testing.T) {
	data := zipBytes(t,
		zipMember{"1.txt", []byte("one")},
		zipMember{"2.txt", []byte("two")},
		zipMember{"3.txt", []byte("three")},
	)
	cfg := quietConfig()
	cfg.Archive = archive.Limits{MaxEntries: 2}
	res := New(cfg).Extract(context.Background(), Input{Name: "many.zip", Data: data})
	if res.Err == nil {
		t.Fatal("expected the archive to be rejected")
	}
}

func TestExtractZipCancelled(t *testing.T) {
	data := zipBytes(t, zipMember{"a.txt", []byte("a")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := New(quietConfig()).Extract(ctx, Input{Name: "a.zip", Data: data})
	if res.Err == nil {
		t.Error("expected cancellation error")
	}
}
