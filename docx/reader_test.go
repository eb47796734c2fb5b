package docx

import (
	"archive/zip"
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tsawler/intelliparse/model"
)

const docHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"
  xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"
  xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
  xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
  xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture"
  xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006">
  <w:body>`

// createTestDOCX creates a minimal DOCX file for testing. extra holds
// additional parts keyed by name.
func createTestDOCX(t *testing.T, content string, extra map[string][]byte) string {
	t.Helper()

	tmpDir := t.TempDir()
	docxPath := filepath.Join(tmpDir, "test.docx")

	f, err := os.Create(docxPath)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	zw := zip.NewWriter(f)

	w, _ := zw.Create("[Content_Types].xml")
	w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`))

	w, _ = zw.Create("word/document.xml")
	w.Write([]byte(docHeader + content + `</w:body></w:document>`))

	for name, data := range extra {
		w, _ = zw.Create(name)
		w.Write(data)
	}

	zw.Close()
	f.Close()
	return docxPath
}

func openTestDOCX(t *testing.T, content string, extra map[string][]byte) *model.Document {
	t.Helper()
	r, err := Open(createTestDOCX(t, content, extra))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()
	doc, err := r.Document()
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	return doc
}

func TestOpen_NotFound(t *testing.T) {
	if _, err := Open("/nonexistent/file.docx"); err == nil {
		t.Error("Open() should return error for nonexistent file")
	}
}

func TestOpenBytes_InvalidZip(t *testing.T) {
	if _, err := OpenBytes("x.docx", []byte("not a zip file")); err == nil {
		t.Error("OpenBytes() should return error for invalid ZIP")
	}
}

func TestOpen_MissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("[Content_Types].xml")
	w.Write([]byte(`<Types/>`))
	zw.Close()

	if _, err := OpenBytes("missing.docx", buf.Bytes()); err == nil {
		t.Error("OpenBytes() should return error when document.xml is missing")
	}
}

func TestReader_Text(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name:     "simple paragraph",
			content:  `<w:p><w:r><w:t>Hello World</w:t></w:r></w:p>`,
			expected: "Hello World",
		},
		{
			name: "multiple runs",
			content: `<w:p>
  <w:r><w:t xml:space="preserve">Hello </w:t></w:r>
  <w:r><w:t>World</w:t></w:r>
</w:p>`,
			expected: "Hello World",
		},
		{
			name:     "hyperlink text is kept",
			content:  `<w:p><w:r><w:t xml:space="preserve">See </w:t></w:r><w:hyperlink r:id="rId9"><w:r><w:t>docs</w:t></w:r></w:hyperlink></w:p>`,
			expected: "See docs",
		},
		{
			name:     "deleted text and field codes are dropped",
			content:  `<w:p><w:r><w:t>Kept</w:t></w:r><w:del><w:r><w:delText>Gone</w:delText></w:r></w:del><w:r><w:instrText>PAGE</w:instrText></w:r></w:p>`,
			expected: "Kept",
		},
		{
			name:     "tabs and breaks",
			content:  `<w:p><w:r><w:t>a</w:t><w:tab/><w:t>b</w:t><w:br/><w:t>c</w:t></w:r></w:p>`,
			expected: "a\tb\nc",
		},
		{
			name:     "fallback content is skipped",
			content:  `<w:p><mc:AlternateContent><mc:Choice><w:r><w:t>new</w:t></w:r></mc:Choice><mc:Fallback><w:r><w:t>old</w:t></w:r></mc:Fallback></mc:AlternateContent></w:p>`,
			expected: "new",
		},
		{
			name:     "empty document",
			content:  ``,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Open(createTestDOCX(t, tt.content, nil))
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer r.Close()

			got, err := r.Text()
			if err != nil {
				t.Fatalf("Text() error = %v", err)
			}
			if got != tt.expected {
				t.Errorf("Text() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestReader_HeadingDetection(t *testing.T) {
	styles := []byte(`<?xml version="1.0"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:style w:type="paragraph" w:styleId="MyHeading"><w:name w:val="My Heading"/><w:pPr><w:outlineLvl w:val="1"/></w:pPr></w:style>
  <w:style w:type="paragraph" w:styleId="Derived"><w:name w:val="Derived"/><w:basedOn w:val="Heading3"/></w:style>
</w:styles>`)
	content := `<w:p><w:pPr><w:pStyle w:val="Title"/></w:pPr><w:r><w:t>Doc Title</w:t></w:r></w:p>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Chapter</w:t></w:r></w:p>
<w:p><w:pPr><w:pStyle w:val="MyHeading"/></w:pPr><w:r><w:t>Custom</w:t></w:r></w:p>
<w:p><w:pPr><w:pStyle w:val="Derived"/></w:pPr><w:r><w:t>Inherited</w:t></w:r></w:p>
<w:p><w:pPr><w:outlineLvl w:val="3"/></w:pPr><w:r><w:t>Direct</w:t></w:r></w:p>
<w:p><w:r><w:t>Body</w:t></w:r></w:p>`

	doc := openTestDOCX(t, content, map[string][]byte{"word/styles.xml": styles})
	els := doc.Sections[0].Elements
	want := []struct {
		typ   model.ElementType
		level int
		text  string
	}{
		{model.ElementTypeHeading, 1, "Doc Title"},
		{model.ElementTypeHeading, 1, "Chapter"},
		{model.ElementTypeHeading, 2, "Custom"},
		{model.ElementTypeHeading, 3, "Inherited"},
		{model.ElementTypeHeading, 4, "Direct"},
		{model.ElementTypeText, 0, "Body"},
	}
	if len(els) != len(want) {
		t.Fatalf("got %d elements, want %d", len(els), len(want))
	}
	for i, w := range want {
		if els[i].Type != w.typ || els[i].Level != w.level || els[i].Text != w.text {
			t.Errorf("element %d = %v/%d/%q, want %v/%d/%q", i, els[i].Type, els[i].Level, els[i].Text, w.typ, w.level, w.text)
		}
	}
	if doc.Metadata.Title != "Doc Title" {
		t.Errorf("Title = %q", doc.Metadata.Title)
	}
}

func TestReader_Lists(t *testing.T) {
	numbering := []byte(`<?xml version="1.0"?>
<w:numbering xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:abstractNum w:abstractNumId="0"><w:lvl w:ilvl="0"><w:numFmt w:val="decimal"/></w:lvl></w:abstractNum>
  <w:abstractNum w:abstractNumId="1"><w:lvl w:ilvl="0"><w:numFmt w:val="bullet"/></w:lvl></w:abstractNum>
  <w:num w:numId="1"><w:abstractNumId w:val="0"/></w:num>
  <w:num w:numId="2"><w:abstractNumId w:val="1"/></w:num>
</w:numbering>`)
	item := func(num, lvl, text string) string {
		return `<w:p><w:pPr><w:numPr><w:ilvl w:val="` + lvl + `"/><w:numId w:val="` + num + `"/></w:numPr></w:pPr><w:r><w:t>` + text + `</w:t></w:r></w:p>`
	}
	content := item("1", "0", "one") + item("1", "0", "two") +
		`<w:p><w:r><w:t>between</w:t></w:r></w:p>` +
		item("2", "0", "bullet") + item("2", "1", "nested")

	doc := openTestDOCX(t, content, map[string][]byte{"word/numbering.xml": numbering})
	els := doc.Sections[0].Elements
	if len(els) != 3 {
		t.Fatalf("got %d elements, want 3", len(els))
	}
	if els[0].Type != model.ElementTypeList || !els[0].List.Ordered || len(els[0].List.Items) != 2 {
		t.Errorf("first element should be ordered list of 2, got %+v", els[0])
	}
	if els[1].Text != "between" {
		t.Errorf("second element = %q", els[1].Text)
	}
	if els[2].List == nil || els[2].List.Ordered || els[2].List.Items[1].Level != 1 {
		t.Errorf("third element should be bullet list with nested item, got %+v", els[2])
	}
}

func TestReader_TablesInOrder(t *testing.T) {
	content := `<w:p><w:r><w:t>Before</w:t></w:r></w:p>
<w:tbl>
  <w:tr>
    <w:tc><w:p><w:r><w:t>A</w:t></w:r></w:p></w:tc>
    <w:tc><w:p><w:r><w:t>B</w:t></w:r></w:p></w:tc>
  </w:tr>
  <w:tr>
    <w:tc><w:p><w:r><w:t>1</w:t></w:r></w:p></w:tc>
    <w:tc><w:p><w:r><w:t>2</w:t></w:r></w:p></w:tc>
  </w:tr>
</w:tbl>
<w:p><w:r><w:t>After</w:t></w:r></w:p>`

	doc := openTestDOCX(t, content, nil)
	els := doc.Sections[0].Elements
	if len(els) != 3 {
		t.Fatalf("got %d elements, want 3", len(els))
	}
	if els[0].Text != "Before" || els[2].Text != "After" {
		t.Errorf("surrounding paragraphs out of order: %q, %q", els[0].Text, els[2].Text)
	}
	tbl := els[1].Table
	if tbl == nil || !tbl.IsPerfect() || !tbl.HasHeader {
		t.Fatalf("expected perfect table with header, got %+v", tbl)
	}
	if got := tbl.Rows[1][1].Text; got != "2" {
		t.Errorf("cell(1,1) = %q", got)
	}
}

func TestReader_MergedCells(t *testing.T) {
	content := `<w:tbl>
  <w:tr>
    <w:tc><w:tcPr><w:gridSpan w:val="2"/></w:tcPr><w:p><w:r><w:t>Wide</w:t></w:r></w:p></w:tc>
    <w:tc><w:tcPr><w:vMerge w:val="restart"/></w:tcPr><w:p><w:r><w:t>Tall</w:t></w:r></w:p></w:tc>
  </w:tr>
  <w:tr>
    <w:tc><w:p><w:r><w:t>x</w:t></w:r></w:p></w:tc>
    <w:tc><w:p><w:r><w:t>y</w:t></w:r></w:p></w:tc>
    <w:tc><w:tcPr><w:vMerge/></w:tcPr><w:p/></w:tc>
  </w:tr>
</w:tbl>`

	doc := openTestDOCX(t, content, nil)
	tbl := doc.Tables()[0]
	if tbl.IsPerfect() {
		t.Error("table with merges should not be perfect")
	}
	if tbl.ColCount() != 3 {
		t.Errorf("ColCount() = %d, want 3", tbl.ColCount())
	}
	if tbl.Rows[0][0].ColSpan != 2 {
		t.Errorf("ColSpan = %d, want 2", tbl.Rows[0][0].ColSpan)
	}
	if tbl.Rows[0][2].RowSpan != 2 {
		t.Errorf("RowSpan = %d, want 2", tbl.Rows[0][2].RowSpan)
	}
	if tbl.Rows[1][2].Text != "" {
		t.Errorf("continuation cell should be empty, got %q", tbl.Rows[1][2].Text)
	}
}

func TestReader_Images(t *testing.T) {
	var pngBuf bytes.Buffer
	png.Encode(&pngBuf, image.NewGray(image.Rect(0, 0, 8, 4)))

	rels := []byte(`<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId5" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image1.png"/>
</Relationships>`)
	content := `<w:p><w:r><w:t>Figure:</w:t></w:r><w:r><w:drawing><wp:inline>
  <wp:docPr id="1" name="Picture 1" descr="A chart"/>
  <a:graphic><a:graphicData><pic:pic><pic:blipFill><a:blip r:embed="rId5"/></pic:blipFill></pic:pic></a:graphicData></a:graphic>
</wp:inline></w:drawing></w:r></w:p>`

	doc := openTestDOCX(t, content, map[string][]byte{
		"word/_rels/document.xml.rels": rels,
		"word/media/image1.png":        pngBuf.Bytes(),
	})
	sec := doc.Sections[0]
	if len(sec.Elements) != 2 {
		t.Fatalf("got %d elements, want 2", len(sec.Elements))
	}
	img := sec.Elements[1].Image
	if img == nil || img.Alt != "A chart" || img.Width != 8 || img.Height != 4 || img.Name != "image1.png" {
		t.Errorf("unexpected image %+v", img)
	}
	if len(sec.Images) != 1 {
		t.Errorf("section images = %d", len(sec.Images))
	}
}

func TestReader_Metadata(t *testing.T) {
	core := []byte(`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:title>Spec</dc:title><dc:creator>Ann</dc:creator></cp:coreProperties>`)
	r, err := Open(createTestDOCX(t, `<w:p><w:r><w:t>x</w:t></w:r></w:p>`, map[string][]byte{"docProps/core.xml": core}))
	if err != nil {
		t.Fatal(err)
	}
	meta := r.Metadata()
	if meta.Title != "Spec" || meta.Author != "Ann" {
		t.Errorf("Metadata() = %+v", meta)
	}
}

func TestReader_Close(t *testing.T) {
	r, err := Open(createTestDOCX(t, `<w:p><w:r><w:t>x</w:t></w:r></w:p>`, nil))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, err := r.Document(); err == nil || !strings.Contains(err.Error(), "closed") {
		t.Errorf("Document() after Close() = %v", err)
	}
}
