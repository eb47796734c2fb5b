package pptx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tsawler/intelliparse/model"
)

const slideHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
  xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"
  xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld><p:spTree>
    <p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>
    <p:grpSpPr/>`

const slideFooter = `</p:spTree></p:cSld></p:sld>`

// createTestPPTX writes a presentation whose slides are listed in
// presentation.xml in the given order. extra holds additional parts.
func createTestPPTX(t *testing.T, slides []string, extra map[string]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.pptx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	zw := zip.NewWriter(f)

	write := func(name, content string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
		w.Write([]byte(content))
	}

	var ids, rels strings.Builder
	for i, s := range slides {
		fmt.Fprintf(&ids, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, i+1)
		fmt.Fprintf(&rels, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide%d.xml"/>`, i+1, i+1)
		write(fmt.Sprintf("ppt/slides/slide%d.xml", i+1), slideHeader+s+slideFooter)
	}

	write("[Content_Types].xml", `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`)
	write("ppt/presentation.xml", `<?xml version="1.0"?>
<p:presentation xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"
  xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
  <p:sldIdLst>`+ids.String()+`</p:sldIdLst><p:sldSz cx="9144000" cy="6858000"/>
</p:presentation>`)
	write("ppt/_rels/presentation.xml.rels", `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+rels.String()+`</Relationships>`)

	for name, content := range extra {
		write(name, content)
	}

	zw.Close()
	f.Close()
	return path
}

func openTestPPTX(t *testing.T, slides []string, extra map[string]string, opts ...Option) (*Reader, *model.Document) {
	t.Helper()
	r, err := Open(createTestPPTX(t, slides, extra), opts...)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { r.Close() })
	doc, err := r.Document()
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	return r, doc
}

func textShape(id int, ph string, x, y int, paras ...string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="Shape %d"/><p:cNvSpPr/><p:nvPr>`, id, id)
	if ph != "" {
		fmt.Fprintf(&sb, `<p:ph type="%s"/>`, ph)
	}
	sb.WriteString(`</p:nvPr></p:nvSpPr><p:spPr>`)
	if x >= 0 {
		fmt.Fprintf(&sb, `<a:xfrm><a:off x="%d" y="%d"/><a:ext cx="1000000" cy="500000"/></a:xfrm>`, x, y)
	}
	sb.WriteString(`</p:spPr><p:txBody><a:bodyPr/>`)
	for _, p := range paras {
		sb.WriteString(p)
	}
	sb.WriteString(`</p:txBody></p:sp>`)
	return sb.String()
}

func para(text string) string {
	return `<a:p><a:r><a:t>` + text + `</a:t></a:r></a:p>`
}

func TestOpen_NotFound(t *testing.T) {
	if _, err := Open("/nonexistent/file.pptx"); err == nil {
		t.Error("Open() should return error for nonexistent file")
	}
}

func TestOpenBytes_InvalidZip(t *testing.T) {
	if _, err := OpenBytes("x.pptx", []byte("not a zip")); err == nil {
		t.Error("OpenBytes() should return error for invalid ZIP")
	}
}

func TestOpen_MissingPresentation(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("ppt/slides/slide1.xml")
	w.Write([]byte(slideHeader + slideFooter))
	zw.Close()

	if _, err := OpenBytes("x.pptx", buf.Bytes()); err == nil {
		t.Error("OpenBytes() should fail without ppt/presentation.xml")
	}
}

func TestDocument_SectionPerSlide(t *testing.T) {
	r, doc := openTestPPTX(t, []string{
		textShape(2, "title", -1, 0, para("First")),
		textShape(2, "title", -1, 0, para("Second")),
		textShape(2, "title", -1, 0, para("Third")),
	}, nil)

	if r.SlideCount() != 3 {
		t.Errorf("SlideCount() = %d, want 3", r.SlideCount())
	}
	if len(doc.Sections) != 3 {
		t.Fatalf("got %d sections, want 3", len(doc.Sections))
	}
	for i, want := range []string{"First", "Second", "Third"} {
		sec := doc.Sections[i]
		if sec.Number != i+1 {
			t.Errorf("section %d Number = %d", i, sec.Number)
		}
		if sec.Title != want {
			t.Errorf("section %d Title = %q, want %q", i, sec.Title, want)
		}
	}
	if doc.Metadata.PageCount != 3 {
		t.Errorf("PageCount = %d, want 3", doc.Metadata.PageCount)
	}
	if doc.Metadata.Title != "First" {
		t.Errorf("Metadata.Title = %q, want First", doc.Metadata.Title)
	}
}

func TestDocument_ReadingOrder(t *testing.T) {
	// Document order is bottom, right, left; reading order is by position
	slide := textShape(3, "", 0, 3000000, para("Bottom")) +
		textShape(4, "", 4000000, 1000000, para("Right")) +
		textShape(5, "", 0, 1000000, para("Left")) +
		textShape(2, "title", -1, 0, para("Heading"))

	_, doc := openTestPPTX(t, []string{slide}, nil)
	els := doc.Sections[0].Elements

	var got []string
	for _, el := range els {
		got = append(got, el.PlainText())
	}
	want := []string{"Heading", "Left", "Right", "Bottom"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", got, want)
	}
	if els[0].Type != model.ElementTypeHeading || els[0].Level != 1 {
		t.Errorf("first element = %v level %d, want level-1 heading", els[0].Type, els[0].Level)
	}
}

func TestDocument_Bullets(t *testing.T) {
	body := textShape(3, "body", -1, 0,
		`<a:p><a:pPr lvl="0"/><a:r><a:t>One</a:t></a:r></a:p>`,
		`<a:p><a:pPr lvl="1"/><a:r><a:t>Nested</a:t></a:r></a:p>`,
		`<a:p><a:pPr><a:buNone/></a:pPr><a:r><a:t>Plain line</a:t></a:r></a:p>`,
	)
	numbered := textShape(4, "", 0, 4000000,
		`<a:p><a:pPr><a:buAutoNum type="arabicPeriod"/></a:pPr><a:r><a:t>Step one</a:t></a:r></a:p>`,
		`<a:p><a:pPr><a:buAutoNum type="arabicPeriod"/></a:pPr><a:r><a:t>Step two</a:t></a:r></a:p>`,
	)
	_, doc := openTestPPTX(t, []string{body + numbered}, nil)
	els := doc.Sections[0].Elements
	if len(els) != 3 {
		t.Fatalf("got %d elements, want 3", len(els))
	}

	if els[0].Type != model.ElementTypeList || els[0].List.Ordered {
		t.Fatalf("element 0 = %v, want unordered list", els[0].Type)
	}
	if len(els[0].List.Items) != 2 || els[0].List.Items[1].Level != 1 {
		t.Errorf("bullet items = %+v", els[0].List.Items)
	}
	if els[1].Type != model.ElementTypeText || els[1].Text != "Plain line" {
		t.Errorf("element 1 = %v %q, want text", els[1].Type, els[1].Text)
	}
	if els[2].Type != model.ElementTypeList || !els[2].List.Ordered {
		t.Errorf("element 2 should be an ordered list")
	}
}

func TestDocument_LineBreaksAndFields(t *testing.T) {
	shape := textShape(3, "", 0, 0,
		`<a:p><a:r><a:t>Line one</a:t></a:r><a:br/><a:r><a:t>Line two</a:t></a:r></a:p>`,
		`<a:p><a:r><a:t>Page </a:t></a:r><a:fld id="{1}" type="slidenum"><a:t>7</a:t></a:fld></a:p>`,
	)
	_, doc := openTestPPTX(t, []string{shape}, nil)
	got := doc.Sections[0].Elements[0].Text
	if got != "Line one\nLine two\nPage 7" {
		t.Errorf("text = %q", got)
	}
}

func TestDocument_Table(t *testing.T) {
	frame := `<p:graphicFrame>
  <p:nvGraphicFramePr><p:cNvPr id="4" name="Table"/><p:cNvGraphicFramePr/><p:nvPr/></p:nvGraphicFramePr>
  <p:xfrm><a:off x="0" y="2000000"/><a:ext cx="4000000" cy="1000000"/></p:xfrm>
  <a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/table">
    <a:tbl>
      <a:tr h="100"><a:tc gridSpan="2"><a:txBody><a:bodyPr/><a:p><a:r><a:t>Merged</a:t></a:r></a:p></a:txBody></a:tc><a:tc hMerge="1"><a:txBody><a:bodyPr/><a:p/></a:txBody></a:tc></a:tr>
      <a:tr h="100"><a:tc><a:txBody><a:bodyPr/><a:p><a:r><a:t>A</a:t></a:r></a:p></a:txBody></a:tc><a:tc><a:txBody><a:bodyPr/><a:p><a:r><a:t>B</a:t></a:r></a:p></a:txBody></a:tc></a:tr>
    </a:tbl>
  </a:graphicData></a:graphic>
</p:graphicFrame>`
	_, doc := openTestPPTX(t, []string{frame}, nil)
	tables := doc.Tables()
	if len(tables) != 1 {
		t.Fatalf("got %d tables, want 1", len(tables))
	}
	tbl := tables[0]
	if tbl.RowCount() != 2 || tbl.ColCount() != 2 {
		t.Fatalf("table is %dx%d, want 2x2", tbl.RowCount(), tbl.ColCount())
	}
	if c := tbl.GetCell(0, 0); c.Text != "Merged" || c.ColSpan != 2 {
		t.Errorf("cell(0,0) = %+v", c)
	}
	if c := tbl.GetCell(0, 1); c.ColSpan != 0 || c.Text != "" {
		t.Errorf("cell(0,1) should be a merge placeholder, got %+v", c)
	}
	if tbl.IsPerfect() {
		t.Error("merged table should not be perfect")
	}
	if !tbl.HasHeader {
		t.Error("first row should be the header")
	}
}

func TestDocument_PictureAndNotes(t *testing.T) {
	var img bytes.Buffer
	png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 4, 3)))

	pic := `<p:pic>
  <p:nvPicPr><p:cNvPr id="5" name="Picture" descr="A chart"/><p:cNvPicPr/><p:nvPr/></p:nvPicPr>
  <p:blipFill><a:blip r:embed="rId2"/></p:blipFill>
  <p:spPr><a:xfrm><a:off x="0" y="1000000"/><a:ext cx="100" cy="100"/></a:xfrm></p:spPr>
</p:pic>`
	extra := map[string]string{
		"ppt/slides/_rels/slide1.xml.rels": `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="../media/image1.png"/>
  <Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesSlide" Target="../notesSlides/notesSlide1.xml"/>
</Relationships>`,
		"ppt/media/image1.png": img.String(),
		"ppt/notesSlides/notesSlide1.xml": `<?xml version="1.0"?>
<p:notes xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld><p:spTree>
    <p:sp><p:nvSpPr><p:cNvPr id="2" name="Slide Image"/><p:cNvSpPr/><p:nvPr><p:ph type="sldImg"/></p:nvPr></p:nvSpPr><p:spPr/></p:sp>
    <p:sp><p:nvSpPr><p:cNvPr id="3" name="Notes"/><p:cNvSpPr/><p:nvPr><p:ph type="body" idx="1"/></p:nvPr></p:nvSpPr><p:spPr/>
      <p:txBody><a:bodyPr/><a:p><a:r><a:t>Remember the demo</a:t></a:r></a:p></p:txBody></p:sp>
  </p:spTree></p:cSld>
</p:notes>`,
	}

	t.Run("with notes", func(t *testing.T) {
		_, doc := openTestPPTX(t, []string{pic}, extra)
		sec := doc.Sections[0]
		if len(sec.Images) != 1 {
			t.Fatalf("got %d images, want 1", len(sec.Images))
		}
		if got := sec.Images[0]; got.Alt != "A chart" || got.Width != 4 || got.Height != 3 {
			t.Errorf("image = %+v", got)
		}
		if !strings.Contains(doc.Text(), "Remember the demo") {
			t.Errorf("notes missing from text: %q", doc.Text())
		}
	})

	t.Run("without notes", func(t *testing.T) {
		_, doc := openTestPPTX(t, []string{pic}, extra, WithNotes(false))
		if strings.Contains(doc.Text(), "Remember the demo") {
			t.Error("notes should be excluded")
		}
	})
}

func TestDocument_GroupShapes(t *testing.T) {
	group := `<p:grpSp><p:nvGrpSpPr><p:cNvPr id="9" name="Group"/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>
<p:grpSpPr><a:xfrm><a:off x="0" y="500000"/><a:ext cx="10" cy="10"/><a:chOff x="0" y="0"/><a:chExt cx="10" cy="10"/></a:xfrm></p:grpSpPr>` +
		textShape(11, "", 0, 900000, para("Inner second")) +
		textShape(10, "", 0, 100000, para("Inner first")) +
		`</p:grpSp>`
	slide := textShape(3, "", 0, 4000000, para("After group")) + group

	_, doc := openTestPPTX(t, []string{slide}, nil)
	var got []string
	for _, el := range doc.Sections[0].Elements {
		got = append(got, el.Text)
	}
	want := "Inner first,Inner second,After group"
	if strings.Join(got, ",") != want {
		t.Errorf("order = %v, want %s", got, want)
	}
}

func TestDocument_BrokenSlide(t *testing.T) {
	r, doc := openTestPPTX(t, []string{
		textShape(2, "title", -1, 0, para("Good")),
		`<p:sp><unclosed>`,
	}, nil)
	if len(doc.Sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(doc.Sections))
	}
	if !doc.Sections[1].IsEmpty() {
		t.Error("broken slide should produce an empty section")
	}
	if len(r.Warnings()) == 0 {
		t.Error("expected a warning for the broken slide")
	}
	if doc.Sections[0].Title != "Good" {
		t.Errorf("first slide title = %q", doc.Sections[0].Title)
	}
}

func TestSlideNumber(t *testing.T) {
	tests := map[string]int{
		"ppt/slides/slide1.xml":  1,
		"ppt/slides/slide12.xml": 12,
		"ppt/slides/other.xml":   0,
	}
	for in, want := range tests {
		if got := slideNumber(in); got != want {
			t.Errorf("slideNumber(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestClose(t *testing.T) {
	r, _ := openTestPPTX(t, []string{textShape(2, "title", -1, 0, para("x"))}, nil)
	r.Close()
	if _, err := r.Document(); err == nil {
		t.Error("Document() after Close() should fail")
	}
}
