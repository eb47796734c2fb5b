package odt

import (
	"archive/zip"
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tsawler/intelliparse/model"
)

const contentHeader = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
  xmlns:style="urn:oasis:names:tc:opendocument:xmlns:style:1.0"
  xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0"
  xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0"
  xmlns:draw="urn:oasis:names:tc:opendocument:xmlns:drawing:1.0"
  xmlns:svg="urn:oasis:names:tc:opendocument:xmlns:svg-compatible:1.0"
  xmlns:xlink="http://www.w3.org/1999/xlink">`

const testMeta = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-meta xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
  xmlns:dc="http://purl.org/dc/elements/1.1/"
  xmlns:meta="urn:oasis:names:tc:opendocument:xmlns:meta:1.0">
  <office:meta>
    <dc:title>Test Document</dc:title>
    <meta:initial-creator>Test Author</meta:initial-creator>
    <dc:creator>Editor</dc:creator>
    <meta:generator>Test Generator</meta:generator>
    <meta:keyword>alpha</meta:keyword>
    <meta:keyword>beta</meta:keyword>
    <meta:creation-date>2024-03-05T10:20:30</meta:creation-date>
    <dc:date>2024-03-06T08:00:00.123456789</dc:date>
    <dc:language>en-GB</dc:language>
  </office:meta>
</office:document-meta>`

// createTestODT writes a minimal ODT file. styles and body go into
// content.xml; extra holds additional parts keyed by name.
func createTestODT(t *testing.T, styles, body string, extra map[string][]byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.odt")
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	// mimetype must be first and stored
	w, _ := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	w.Write([]byte("application/vnd.oasis.opendocument.text"))

	w, _ = zw.Create("content.xml")
	w.Write([]byte(contentHeader +
		`<office:automatic-styles>` + styles + `</office:automatic-styles>` +
		`<office:body><office:text>` + body + `</office:text></office:body></office:document-content>`))

	w, _ = zw.Create("meta.xml")
	w.Write([]byte(testMeta))

	for name, data := range extra {
		w, _ = zw.Create(name)
		w.Write(data)
	}
	zw.Close()

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func openTestODT(t *testing.T, styles, body string, extra map[string][]byte) *model.Document {
	t.Helper()
	r, err := Open(createTestODT(t, styles, body, extra))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()
	doc, err := r.Document()
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}
	return doc
}

func elementSummary(doc *model.Document) []string {
	var out []string
	for _, el := range doc.Sections[0].Elements {
		out = append(out, el.Type.String()+":"+el.PlainText())
	}
	return out
}

func TestOpenAndClose(t *testing.T) {
	r, err := Open(createTestODT(t, "", `<text:p>Hello, World!</text:p>`, nil))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	text, err := r.Text()
	if err != nil {
		t.Fatal(err)
	}
	if text != "Hello, World!" {
		t.Errorf("Text = %q", text)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if _, err := r.Document(); err == nil {
		t.Error("expected error after Close")
	}
}

func TestInlineText(t *testing.T) {
	doc := openTestODT(t, "", `<text:p>one<text:s text:c="3"/>two<text:tab/>three<text:line-break/>four`+
		`<text:span>!</text:span><text:note><text:note-body><text:p>footnote</text:p></text:note-body></text:note></text:p>`, nil)
	got := doc.Sections[0].Elements[0].Text
	if got != "one   two\tthree\nfour!" {
		t.Errorf("text = %q", got)
	}
}

func TestHeadings(t *testing.T) {
	styles := `<style:style style:name="P1" style:family="paragraph" style:parent-style-name="Heading_20_2"/>` +
		`<style:style style:name="P2" style:family="paragraph" style:default-outline-level="3"/>`
	body := `<text:h text:outline-level="1">Chapter</text:h>` +
		`<text:h>No Level</text:h>` +
		`<text:p text:style-name="P1">Styled Heading</text:p>` +
		`<text:p text:style-name="P2">Outline Heading</text:p>` +
		`<text:p text:style-name="Standard">Body</text:p>` +
		`<text:p>   </text:p>`
	doc := openTestODT(t, styles, body, nil)

	els := doc.Sections[0].Elements
	want := []struct {
		typ   model.ElementType
		level int
		text  string
	}{
		{model.ElementTypeHeading, 1, "Chapter"},
		{model.ElementTypeHeading, 1, "No Level"},
		{model.ElementTypeHeading, 2, "Styled Heading"},
		{model.ElementTypeHeading, 3, "Outline Heading"},
		{model.ElementTypeText, 0, "Body"},
	}
	if len(els) != len(want) {
		t.Fatalf("got %d elements, want %d: %v", len(els), len(want), elementSummary(doc))
	}
	for i, w := range want {
		if els[i].Type != w.typ || els[i].Level != w.level || els[i].Text != w.text {
			t.Errorf("element %d = %v/%d/%q, want %v/%d/%q", i, els[i].Type, els[i].Level, els[i].Text, w.typ, w.level, w.text)
		}
	}
}

func TestLists(t *testing.T) {
	styles := `<text:list-style style:name="L1"><text:list-level-style-number text:level="1" style:num-format="1"/></text:list-style>` +
		`<text:list-style style:name="L2"><text:list-level-style-bullet text:level="1" text:bullet-char="•"/></text:list-style>`
	body := `<text:p>Before</text:p>
<text:list text:style-name="L1">
  <text:list-item><text:p>First</text:p></text:list-item>
  <text:list-item><text:p>Second</text:p>
    <text:list><text:list-item><text:p>Nested</text:p></text:list-item></text:list>
  </text:list-item>
</text:list>
<text:list text:style-name="L2"><text:list-item><text:p>Bullet</text:p></text:list-item></text:list>
<text:p>After</text:p>`
	doc := openTestODT(t, styles, body, nil)

	els := doc.Sections[0].Elements
	if len(els) != 4 {
		t.Fatalf("elements = %v", elementSummary(doc))
	}
	numbered := els[1].List
	if numbered == nil || !numbered.Ordered || len(numbered.Items) != 3 {
		t.Fatalf("numbered list = %+v", numbered)
	}
	if numbered.Items[2].Text != "Nested" || numbered.Items[2].Level != 1 {
		t.Errorf("nested item = %+v", numbered.Items[2])
	}
	if bullets := els[2].List; bullets == nil || bullets.Ordered {
		t.Errorf("bullet list = %+v", bullets)
	}
	if els[3].Text != "After" {
		t.Errorf("order broken: %v", elementSummary(doc))
	}
}

func TestTables(t *testing.T) {
	body := `<text:p>Intro</text:p>
<table:table table:name="T1">
  <table:table-column table:number-columns-repeated="3"/>
  <table:table-header-rows>
    <table:table-row>
      <table:table-cell><text:p>Name</text:p></table:table-cell>
      <table:table-cell table:number-columns-spanned="2"><text:p>Scores</text:p></table:table-cell>
      <table:covered-table-cell/>
    </table:table-row>
  </table:table-header-rows>
  <table:table-row>
    <table:table-cell><text:p>Alice</text:p><text:p>Smith</text:p></table:table-cell>
    <table:table-cell><text:p>90</text:p></table:table-cell>
    <table:table-cell><text:p>85</text:p></table:table-cell>
    <table:table-cell table:number-columns-repeated="1000"/>
  </table:table-row>
  <table:table-row table:number-rows-repeated="500"><table:table-cell/></table:table-row>
</table:table>
<text:p>Outro</text:p>`
	doc := openTestODT(t, "", body, nil)

	els := doc.Sections[0].Elements
	if len(els) != 3 || els[1].Type != model.ElementTypeTable {
		t.Fatalf("elements = %v", elementSummary(doc))
	}
	tbl := els[1].Table
	if tbl.RowCount() != 2 || tbl.ColCount() != 3 {
		t.Fatalf("table is %dx%d: %v", tbl.RowCount(), tbl.ColCount(), tbl.Strings())
	}
	if !tbl.HasHeader || !tbl.Rows[0][0].IsHeader || tbl.Rows[1][0].IsHeader {
		t.Errorf("header flags wrong: %+v", tbl.Rows)
	}
	if tbl.Rows[0][1].ColSpan != 2 || tbl.Rows[0][2].ColSpan != 0 {
		t.Errorf("span = %+v", tbl.Rows[0])
	}
	if tbl.Rows[1][0].Text != "Alice\nSmith" {
		t.Errorf("cell = %q", tbl.Rows[1][0].Text)
	}
}

func TestSectionsAndFrames(t *testing.T) {
	var pngBuf bytes.Buffer
	png.Encode(&pngBuf, image.NewRGBA(image.Rect(0, 0, 4, 3)))

	body := `<text:section text:name="S1">
  <text:p>Inside section</text:p>
  <text:p><draw:frame draw:name="F1"><draw:image xlink:href="Pictures/chart.png"/><svg:title>Sales chart</svg:title></draw:frame></text:p>
  <text:p><draw:frame><draw:image xlink:href="https://example.com/remote.png"/></draw:frame>Caption</text:p>
</text:section>
<text:sequence-decls><text:sequence-decl text:name="Figure"/></text:sequence-decls>`
	doc := openTestODT(t, "", body, map[string][]byte{"Pictures/chart.png": pngBuf.Bytes()})

	els := doc.Sections[0].Elements
	if len(els) != 3 {
		t.Fatalf("elements = %v", elementSummary(doc))
	}
	img := els[1].Image
	if els[1].Type != model.ElementTypeImage || img == nil {
		t.Fatalf("element 1 = %+v", els[1])
	}
	if img.Name != "chart.png" || img.Alt != "Sales chart" || img.Width != 4 || img.Height != 3 {
		t.Errorf("image = %+v", img)
	}
	if els[2].Text != "Caption" {
		t.Errorf("caption = %q", els[2].Text)
	}
	if len(doc.Sections[0].Images) != 1 {
		t.Errorf("section images = %d", len(doc.Sections[0].Images))
	}
}

func TestMetadata(t *testing.T) {
	r, err := Open(createTestODT(t, "", `<text:p>x</text:p>`, nil))
	if err != nil {
		t.Fatal(err)
	}
	meta := r.Metadata()
	if meta.Title != "Test Document" || meta.Author != "Test Author" || meta.Creator != "Test Generator" {
		t.Errorf("metadata = %+v", meta)
	}
	if strings.Join(meta.Keywords, ",") != "alpha,beta" || meta.Language != "en-GB" {
		t.Errorf("keywords/language = %v/%q", meta.Keywords, meta.Language)
	}
	if !meta.Created.Equal(time.Date(2024, 3, 5, 10, 20, 30, 0, time.UTC)) {
		t.Errorf("Created = %v", meta.Created)
	}
	if meta.Modified.Day() != 6 || meta.Custom["last_modified_by"] != "Editor" {
		t.Errorf("Modified = %v custom = %v", meta.Modified, meta.Custom)
	}
}

func TestTruncatedContent(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("content.xml")
	w.Write([]byte(contentHeader + `<office:body><office:text><text:p>Kept</text:p><text:p>Lost`))
	zw.Close()

	r, err := OpenBytes("cut.odt", buf.Bytes())
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	if len(r.Warnings()) != 1 {
		t.Errorf("warnings = %v", r.Warnings())
	}
	if text, _ := r.Text(); text != "Kept" {
		t.Errorf("Text = %q", text)
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.odt")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := OpenBytes("bad.odt", []byte("not a zip")); err == nil {
		t.Error("expected error for invalid zip")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("styles.xml")
	w.Write([]byte("<x/>"))
	zw.Close()
	_, err := OpenBytes("nocontent.odt", buf.Bytes())
	if err == nil || !strings.Contains(err.Error(), "content.xml") {
		t.Errorf("err = %v, want missing content.xml", err)
	}
}

func TestBuiltInHeading(t *testing.T) {
	tests := map[string]int{
		"Heading_20_1": 1,
		"Heading 4":    4,
		"Heading":      1,
		"Title":        1,
		"Subtitle":     2,
		"Text_20_body": 0,
		"Headings_x":   0,
	}
	for name, want := range tests {
		if got := builtInHeading(name); got != want {
			t.Errorf("builtInHeading(%q) = %d, want %d", name, got, want)
		}
	}
}
