package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/intelliparse/model"
)

func sampleDocument() *model.Document {
	doc := model.NewDocument("sample.docx", "DOCX")
	s1 := doc.AddSection(" Intro\n")
	s1.Add(model.NewHeading("  Café   menu \n", 1))
	s1.Add(model.NewText("first   line\t\tend  \n\n\n\n    indented  code"))
	s1.Add(model.NewText(" \n\t "))
	s1.Add(model.NewListElement(&model.List{Items: []model.ListItem{{Text: " a "}, {Text: "  "}, {Text: "b\nc"}}}))
	s1.Add(model.NewListElement(&model.List{Items: []model.ListItem{{Text: ""}}}))

	s2 := doc.AddSection("")
	s2.Add(model.NewTableElement(model.NewTableFromStrings([][]string{{" h1 ", "h2"}, {"x  y", ""}}, true)))
	s2.Add(model.NewTableElement(&model.Table{}))
	s2.Add(model.NewImageElement(&model.Image{Name: "pic.png", Alt: " a  chart "}))
	s2.Add(model.NewImageElement(nil))
	s2.Add(model.NewRegion(nil))
	s2.Add(model.NewRegion(&model.Image{Name: "region_1"}))

	doc.Sections = append(doc.Sections, &model.Section{Number: 9})
	return doc
}

func TestNormalize(t *testing.T) {
	doc := sampleDocument()
	warnings := Normalize(doc, Options{})
	assert.Empty(t, warnings)

	require.Len(t, doc.Sections, 3)
	for i, s := range doc.Sections {
		assert.Equal(t, i+1, s.Number)
	}

	s1 := doc.Sections[0]
	assert.Equal(t, "Intro", s1.Title)
	require.Len(t, s1.Elements, 3)
	assert.Equal(t, "Café menu", s1.Elements[0].Text, "heading should be NFC and single-line")
	assert.Equal(t, "first line end\n\n    indented code", s1.Elements[1].Text)
	assert.Equal(t, []model.ListItem{{Text: "a"}, {Text: "b c"}}, s1.Elements[2].List.Items)

	s2 := doc.Sections[1]
	require.Len(t, s2.Elements, 3)
	assert.Equal(t, "h1", s2.Elements[0].Table.Rows[0][0].Text)
	assert.Equal(t, "x y", s2.Elements[0].Table.Rows[1][0].Text)
	assert.Equal(t, "a chart", s2.Elements[1].Image.Alt)
	assert.Equal(t, model.ElementTypeRegion, s2.Elements[2].Type)
	assert.Len(t, s2.Images, 2, "images are rebuilt from surviving elements")

	var orders []int
	for _, el := range doc.Elements() {
		orders = append(orders, el.Order)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, orders)

	assert.Equal(t, "Café menu\n\nfirst line end\n\n    indented code\n\na\nb c", s1.Text)
	assert.Equal(t, "# Café menu\n\nfirst line end\n\n    indented code\n\n- a\n- b c", s1.Markdown)
	assert.Equal(t, 3, doc.Metadata.PageCount)
	assert.Equal(t, "Café menu", doc.Metadata.Title)
	assert.Equal(t, "ltr", doc.Metadata.Custom["direction"])
}

func TestNormalizeIsIdempotent(t *testing.T) {
	doc := sampleDocument()
	Normalize(doc, Options{MaxSectionChars: 20})

	once := doc.Markdown() + "|" + doc.Text()
	var first []string
	for _, el := range doc.Elements() {
		first = append(first, el.PlainText())
	}

	warnings := Normalize(doc, Options{MaxSectionChars: 20})
	assert.Equal(t, once, doc.Markdown()+"|"+doc.Text())
	var second []string
	for _, el := range doc.Elements() {
		second = append(second, el.PlainText())
	}
	assert.Equal(t, first, second)
	assert.Len(t, warnings, 1)
}

func TestNormalizeKeepsPresetMarkdown(t *testing.T) {
	doc := model.NewDocument("page.html", "HTML")
	sec := doc.AddSection("")
	sec.Add(model.NewText("Hello"))
	sec.Markdown = "  **Hello**\n"

	Normalize(doc, Options{})
	assert.Equal(t, "**Hello**", sec.Markdown)
	assert.Equal(t, "Hello", sec.Text)

	// stages that change elements clear the markdown to have it rebuilt
	sec.Add(model.NewText("World"))
	sec.Markdown = ""
	Normalize(doc, Options{})
	assert.Equal(t, "Hello\n\nWorld", sec.Markdown)
}

func TestNormalizeTruncates(t *testing.T) {
	doc := model.NewDocument("long.txt", "TXT")
	sec := doc.AddSection("")
	sec.Add(model.NewText(strings.Repeat("word ", 50)))

	warnings := Normalize(doc, Options{MaxSectionChars: 42})
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "section 1")
	assert.LessOrEqual(t, len([]rune(sec.Text)), 42)
	assert.True(t, strings.HasSuffix(sec.Text, "word"), "cut falls on a word break: %q", sec.Text)
	assert.Len(t, sec.Elements[0].Text, len(strings.Repeat("word ", 50))-1, "elements are not truncated")
}

func TestNormalizeMetadata(t *testing.T) {
	doc := model.NewDocument("x.pdf", "PDF")
	doc.Metadata.Title = "  Annual\nReport "
	doc.Metadata.Keywords = []string{" a ", "", "b"}
	doc.Metadata.PageCount = 12
	doc.AddSection("").Add(model.NewHeading("Ignored", 1))

	Normalize(doc, Options{})
	assert.Equal(t, "Annual Report", doc.Metadata.Title)
	assert.Equal(t, []string{"a", "b"}, doc.Metadata.Keywords)
	assert.Equal(t, 12, doc.Metadata.PageCount, "a reader-supplied page count is kept")
}

func TestNormalizeNil(t *testing.T) {
	assert.Nil(t, Normalize(nil, Options{}))
}

func TestDetectDirection(t *testing.T) {
	tests := []struct {
		text string
		want Direction
	}{
		{"", Neutral},
		{"123 ... !!", Neutral},
		{"Hello world", LTR},
		{"مرحبا بالعالم", RTL},
		{"שלום עולם and a bit", RTL},
		{"中文 text", LTR},
		{"Mostly English with שלום", LTR},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectDirection(tt.text), "DetectDirection(%q)", tt.text)
	}
	assert.Equal(t, Neutral, CharDirection('َ'), "Arabic fatha is an Arabic-script mark")
	assert.Equal(t, "RTL", RTL.String())
}

func TestText(t *testing.T) {
	assert.Equal(t, "", Text(""))
	assert.Equal(t, "a b", Text("a  b"))
	assert.Equal(t, "x\n\ny", Text("\n\nx\r\n\r\n\r\n\r\ny\n"))
	assert.Equal(t, "é", Line("é"))
}
