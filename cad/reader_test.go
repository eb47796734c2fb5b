package cad

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tsawler/intelliparse/model"
)

// dxf joins group code and value pairs into DXF text.
func dxf(pairs ...string) []byte {
	return []byte(strings.Join(pairs, "\n") + "\n")
}

func textEntity(kind, layer, x, y, height, text string) []string {
	return []string{"0", kind, "8", layer, "10", x, "20", y, "30", "0.0", "40", height, "1", text}
}

func testDrawing(entities ...[]string) []byte {
	pairs := []string{
		"999", "written by a test",
		"0", "SECTION", "2", "HEADER",
		"9", "$ACADVER", "1", "AC1015",
		"9", "$TDCREATE", "40", "2460325.5",
		"9", "$INSUNITS", "70", "4",
		"9", "$EXTMIN", "10", "0.0", "20", "0.0", "30", "0.0",
		"0", "ENDSEC",
		"0", "SECTION", "2", "TABLES",
		"0", "TABLE", "2", "LAYER", "0", "ENDTAB",
		"0", "ENDSEC",
		"0", "SECTION", "2", "ENTITIES",
		"0", "LINE", "8", "0", "10", "0", "20", "0", "11", "10", "21", "10",
	}
	for _, e := range entities {
		pairs = append(pairs, e...)
	}
	pairs = append(pairs, "0", "ENDSEC", "0", "EOF")
	return dxf(pairs...)
}

func TestOpen_NotFound(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.dxf")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestOpenBytes_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not dxf", []byte("hello\nworld\n")},
		{"binary dxf", []byte("AutoCAD Binary DXF\r\n\x1a\x00")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := OpenBytes("bad.dxf", tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDXF_Metadata(t *testing.T) {
	r, err := OpenBytes("plan.dxf", testDrawing())
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	defer r.Close()

	if r.Version() != "AC1015" {
		t.Errorf("Version = %q", r.Version())
	}
	meta := r.Metadata()
	if meta.Custom["release"] != "AutoCAD 2000" {
		t.Errorf("release = %q", meta.Custom["release"])
	}
	if meta.Custom["units"] != "millimeters" {
		t.Errorf("units = %q", meta.Custom["units"])
	}
	want := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	if !meta.Created.Equal(want) {
		t.Errorf("Created = %v, want %v", meta.Created, want)
	}
	if len(r.Warnings()) != 0 {
		t.Errorf("warnings = %v", r.Warnings())
	}
}

func TestDXF_ReadingOrderWithinLayer(t *testing.T) {
	data := testDrawing(
		textEntity("TEXT", "NOTES", "50", "10", "2.5", "bottom"),
		textEntity("TEXT", "NOTES", "40", "100", "2.5", "top right"),
		textEntity("TEXT", "NOTES", "0", "100.5", "2.5", "top left"),
	)
	r, err := OpenBytes("plan.dxf", data)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := r.Document()
	if err != nil {
		t.Fatal(err)
	}
	sec := doc.Sections[0]
	var got []string
	for _, el := range sec.Elements {
		got = append(got, el.Text)
	}
	if strings.Join(got, "|") != "top left|top right|bottom" {
		t.Errorf("order = %q", got)
	}
	if sec.Elements[0].BBox == nil || sec.Elements[0].BBox.Y != 100.5 {
		t.Errorf("bbox = %v", sec.Elements[0].BBox)
	}
}

func TestDXF_LayersAndEntityKinds(t *testing.T) {
	mtext := []string{"0", "MTEXT", "8", "TITLE", "10", "0", "20", "200", "40", "5",
		"3", `{\fArial|b1;Site plan}\P`, "1", `Scale 1:100 \S1^2;`}
	attrib := []string{"0", "ATTRIB", "8", "BLOCKS", "10", "0", "20", "50", "40", "2", "2", "ROOM", "1", "Kitchen"}
	data := testDrawing(
		mtext,
		textEntity("TEXT", "DIMS", "0", "10", "2", "45%%d"),
		attrib,
	)
	r, err := OpenBytes("plan.dxf", data)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := r.Document()
	if err != nil {
		t.Fatal(err)
	}
	els := doc.Sections[0].Elements
	var got []string
	for _, el := range els {
		got = append(got, el.Type.String()+":"+el.Text)
	}
	want := []string{
		"heading:Layer TITLE", "text:Site plan\nScale 1:100 1/2",
		"heading:Layer DIMS", "text:45°",
		"heading:Layer BLOCKS", "text:ROOM: Kitchen",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("elements:\n got %q\nwant %q", got, want)
	}
	if r.Metadata().Custom["layers"] != "3" {
		t.Errorf("layers = %q", r.Metadata().Custom["layers"])
	}
}

func TestDXF_Truncated(t *testing.T) {
	data := dxf("0", "SECTION", "2", "ENTITIES",
		"0", "TEXT", "8", "0", "10", "1", "20", "1", "1", "survivor",
		"0", "TEXT", "8", "0", "1")
	r, err := OpenBytes("cut.dxf", data)
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	if len(r.Warnings()) != 1 {
		t.Errorf("warnings = %v", r.Warnings())
	}
	text, err := r.Text()
	if err != nil {
		t.Fatal(err)
	}
	if text != "survivor" {
		t.Errorf("Text = %q", text)
	}
}

func TestDXF_CodePage(t *testing.T) {
	// "Café" in Windows-1252
	data := append(dxf("0", "SECTION", "2", "HEADER", "9", "$DWGCODEPAGE", "3", "ANSI_1252", "0", "ENDSEC",
		"0", "SECTION", "2", "ENTITIES", "0", "TEXT", "8", "0", "1", "Caf"), []byte("\xe9\n0\nENDSEC\n0\nEOF\n")...)
	// the value line was split above; rejoin it
	data = []byte(strings.Replace(string(data), "Caf\n\xe9", "Caf\xe9", 1))

	r, err := OpenBytes("latin.dxf", data)
	if err != nil {
		t.Fatal(err)
	}
	text, _ := r.Text()
	if text != "Café" {
		t.Errorf("Text = %q", text)
	}
}

func TestDWG(t *testing.T) {
	data := append([]byte("AC1032"), make([]byte, 128)...)
	path := filepath.Join(t.TempDir(), "plan.dwg")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if r.Version() != "AC1032" || r.Metadata().Custom["release"] != "AutoCAD 2018" {
		t.Errorf("version = %q, meta = %v", r.Version(), r.Metadata().Custom)
	}
	if len(r.Warnings()) != 1 {
		t.Errorf("warnings = %v", r.Warnings())
	}
	doc, err := r.Document()
	if err != nil {
		t.Fatal(err)
	}
	els := doc.Sections[0].Elements
	if len(els) != 1 || els[0].Type != model.ElementTypeRegion {
		t.Fatalf("elements = %+v", els)
	}
	if len(els[0].Image.Data) != len(data) || doc.Format != "dwg" {
		t.Errorf("region should hold the raw drawing")
	}

	r.Close()
	if _, err := r.Document(); err == nil {
		t.Error("expected error after Close")
	}
}

func TestCleanMText(t *testing.T) {
	tests := []struct{ in, want string }{
		{`plain`, "plain"},
		{`line one\Pline two`, "line one\nline two"},
		{`{\H2.5;\C1;red}`, "red"},
		{`50\~mm`, "50 mm"},
		{`\Lunderlined\l text`, "underlined text"},
		{`a\\b \{c\}`, `a\b {c}`},
		{`\U+00E9t\U+00E9`, "été"},
		{`\S3#4;`, "3/4"},
	}
	for _, tt := range tests {
		if got := cleanMText(tt.in); got != tt.want {
			t.Errorf("cleanMText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanText(t *testing.T) {
	if got := cleanText("%%c50 %%p0.1 %%uTitle%%u 100%%%"); got != "⌀50 ±0.1 Title 100%" {
		t.Errorf("cleanText = %q", got)
	}
}
