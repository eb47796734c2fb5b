// Package pptx provides PPTX (Office Open XML Presentation) document parsing.
//
// Each slide becomes one section. Shapes are put into reading order by
// position: top to bottom, then left to right within a row.
package pptx

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tsawler/intelliparse/imagedoc"
	"github.com/tsawler/intelliparse/internal/ooxml"
	"github.com/tsawler/intelliparse/model"
)

const presentationPart = "ppt/presentation.xml"

// rowBand is the vertical distance, in EMUs, within which shapes are
// treated as sitting on the same row (about 0.1 inch).
const rowBand = 91440

// Reader provides access to PPTX presentation content.
type Reader struct {
	name     string
	pkg      *ooxml.Package
	slides   []string
	meta     model.Metadata
	notes    bool
	warnings []string
}

// Option configures a Reader.
type Option func(*Reader)

// WithNotes includes speaker notes at the end of each slide section.
func WithNotes(include bool) Option {
	return func(r *Reader) { r.notes = include }
}

// Open opens a PPTX file for reading.
func Open(filename string, opts ...Option) (*Reader, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return OpenBytes(filepath.Base(filename), data, opts...)
}

// OpenBytes opens a PPTX presentation held in memory.
func OpenBytes(name string, data []byte, opts ...Option) (*Reader, error) {
	pkg, err := ooxml.Open(data)
	if err != nil {
		return nil, err
	}
	if err := pkg.Require(presentationPart); err != nil {
		return nil, err
	}

	r := &Reader{name: name, pkg: pkg, notes: true}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.loadSlideList(); err != nil {
		return nil, err
	}
	r.meta = pkg.Metadata()
	r.meta.PageCount = len(r.slides)
	return r, nil
}

// loadSlideList resolves the slide parts in presentation order. When the
// slide ID list is missing or unusable, slide parts are ordered by number.
func (r *Reader) loadSlideList() error {
	var pres presentationXML
	if err := r.pkg.ReadXML(presentationPart, &pres); err != nil {
		return fmt.Errorf("parsing presentation.xml: %w", err)
	}
	rels, err := r.pkg.Relationships(presentationPart)
	if err != nil {
		r.warnings = append(r.warnings, fmt.Sprintf("presentation relationships: %v", err))
	}
	if pres.SlideIDList != nil && rels != nil {
		for _, id := range pres.SlideIDList.SlideIDs {
			if target, ok := rels.Target(id.RID); ok && r.pkg.Has(target) {
				r.slides = append(r.slides, target)
			}
		}
	}
	if len(r.slides) > 0 {
		return nil
	}

	for _, name := range r.pkg.Names() {
		if strings.HasPrefix(name, "ppt/slides/slide") && strings.HasSuffix(name, ".xml") {
			r.slides = append(r.slides, name)
		}
	}
	sort.Slice(r.slides, func(i, j int) bool {
		return slideNumber(r.slides[i]) < slideNumber(r.slides[j])
	})
	return nil
}

// slideNumber extracts the number from a path like "ppt/slides/slide12.xml".
func slideNumber(p string) int {
	name := strings.TrimSuffix(strings.TrimPrefix(path.Base(p), "slide"), ".xml")
	var n int
	fmt.Sscanf(name, "%d", &n)
	return n
}

// Close releases resources associated with the Reader.
func (r *Reader) Close() error {
	r.pkg = nil
	return nil
}

// Warnings returns problems met while reading that did not stop parsing.
func (r *Reader) Warnings() []string {
	return r.warnings
}

// Metadata returns document metadata.
func (r *Reader) Metadata() model.Metadata {
	return r.meta
}

// SlideCount returns the number of slides.
func (r *Reader) SlideCount() int {
	return len(r.slides)
}

// Text extracts and returns all text content from the presentation.
func (r *Reader) Text() (string, error) {
	doc, err := r.Document()
	if err != nil {
		return "", err
	}
	return doc.Text(), nil
}

// Document returns one section per slide. A slide that cannot be parsed
// yields an empty section and a warning.
func (r *Reader) Document() (*model.Document, error) {
	if r.pkg == nil {
		return nil, fmt.Errorf("reader is closed")
	}
	doc := model.NewDocument(r.name, "PPTX")
	doc.Metadata = r.meta

	for i, part := range r.slides {
		sec := doc.AddSection("")
		if err := r.readSlide(part, sec); err != nil {
			r.warnings = append(r.warnings, fmt.Sprintf("slide %d: %v", i+1, err))
		}
	}
	if doc.Metadata.Title == "" && len(doc.Sections) > 0 {
		doc.Metadata.Title = doc.Sections[0].Title
	}
	return doc, nil
}

func (r *Reader) readSlide(part string, sec *model.Section) error {
	var slide slideXML
	if err := r.pkg.ReadXML(part, &slide); err != nil {
		return err
	}
	rels, err := r.pkg.Relationships(part)
	if err != nil {
		r.warnings = append(r.warnings, fmt.Sprintf("%s relationships: %v", part, err))
	}

	b := &slideBuilder{r: r, sec: sec, rels: rels}
	b.walk(orderNodes(slide.CSld.SpTree.Nodes))

	if r.notes && rels != nil {
		if notes := r.readNotes(rels); notes != "" {
			sec.Add(model.NewHeading("Notes", 3))
			sec.Add(model.NewText(notes))
		}
	}
	return nil
}

// readNotes returns the speaker notes text of a slide, if any.
func (r *Reader) readNotes(rels *ooxml.Relationships) string {
	for _, rel := range rels.ByType("/notesSlide") {
		target, ok := rels.Target(rel.ID)
		if !ok {
			continue
		}
		var notes slideXML
		if err := r.pkg.ReadXML(target, &notes); err != nil {
			r.warnings = append(r.warnings, fmt.Sprintf("notes %s: %v", target, err))
			return ""
		}
		var lines []string
		for _, n := range notes.CSld.SpTree.Nodes {
			if n.Shape == nil || n.Shape.TxBody == nil {
				continue
			}
			if ph := n.Shape.NvSpPr.NvPr.Ph; ph != nil && (ph.Type == "sldImg" || ph.Type == "sldNum") {
				continue
			}
			for _, p := range n.Shape.TxBody.P {
				if t := strings.TrimSpace(p.Text); t != "" {
					lines = append(lines, t)
				}
			}
		}
		return strings.Join(lines, "\n")
	}
	return ""
}

// position returns the top-left offset of a node, if it declares one.
func (n shapeNode) position() (x, y int64, ok bool) {
	var xf *xfrmXML
	switch {
	case n.Shape != nil:
		xf = n.Shape.SpPr.Xfrm
	case n.Pic != nil:
		xf = n.Pic.SpPr.Xfrm
	case n.Frame != nil:
		xf = n.Frame.Xfrm
	case n.Group != nil:
		xf = n.Group.Xfrm
	}
	if xf == nil {
		return 0, 0, false
	}
	return xf.Off.X, xf.Off.Y, true
}

func (n shapeNode) isTitle() bool {
	if n.Shape == nil || n.Shape.NvSpPr.NvPr.Ph == nil {
		return false
	}
	t := n.Shape.NvSpPr.NvPr.Ph.Type
	return t == "title" || t == "ctrTitle"
}

// orderNodes sorts shapes into reading order. Title placeholders come
// first. Shapes without their own offset usually inherit it from the
// layout; they keep the position of the shape before them.
func orderNodes(nodes []shapeNode) []shapeNode {
	type keyed struct {
		node  shapeNode
		band  int64
		x     int64
		title bool
	}
	items := make([]keyed, len(nodes))
	var lastBand, lastX int64
	for i, n := range nodes {
		k := keyed{node: n, band: lastBand, x: lastX, title: n.isTitle()}
		if x, y, ok := n.position(); ok {
			k.band, k.x = y/rowBand, x
			lastBand, lastX = k.band, k.x
		}
		items[i] = k
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.title != b.title {
			return a.title
		}
		if a.band != b.band {
			return a.band < b.band
		}
		return a.x < b.x
	})
	out := make([]shapeNode, len(items))
	for i, k := range items {
		out[i] = k.node
	}
	return out
}

// slideBuilder turns ordered shapes into section elements.
type slideBuilder struct {
	r    *Reader
	sec  *model.Section
	rels *ooxml.Relationships
}

func (b *slideBuilder) walk(nodes []shapeNode) {
	for _, n := range nodes {
		switch {
		case n.Group != nil:
			b.walk(orderNodes(n.Group.Nodes))
		case n.Shape != nil:
			b.shape(n.Shape)
		case n.Pic != nil:
			b.picture(n.Pic)
		case n.Frame != nil:
			if tbl := n.Frame.Graphic.GraphicData.Tbl; tbl != nil {
				if t := convertTable(tbl); t.RowCount() > 0 {
					b.sec.Add(model.NewTableElement(t))
				}
			}
		}
	}
}

func (b *slideBuilder) shape(sp *spXML) {
	if sp.TxBody == nil || sp.NvSpPr.CNvPr.Hidden {
		return
	}
	phType := ""
	if sp.NvSpPr.NvPr.Ph != nil {
		phType = sp.NvSpPr.NvPr.Ph.Type
		// body placeholders default to bullets; an idx-only ph is a body too
		if phType == "" {
			phType = "body"
		}
	}
	switch phType {
	case "title", "ctrTitle":
		text := joinParagraphs(sp.TxBody.P, " ")
		if text == "" {
			return
		}
		if b.sec.Title == "" {
			b.sec.Title = text
		}
		b.sec.Add(model.NewHeading(text, 1))
		return
	case "subTitle":
		if text := joinParagraphs(sp.TxBody.P, " "); text != "" {
			b.sec.Add(model.NewHeading(text, 2))
		}
		return
	case "dt", "ftr", "sldNum":
		return
	}

	var list *model.List
	var plain []string
	flushList := func() {
		if list != nil && len(list.Items) > 0 {
			b.sec.Add(model.NewListElement(list))
		}
		list = nil
	}
	flushText := func() {
		if len(plain) > 0 {
			b.sec.Add(model.NewText(strings.Join(plain, "\n")))
		}
		plain = nil
	}

	for _, p := range sp.TxBody.P {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		bullet, ordered := paragraphBullet(p.PPr, phType == "body" || phType == "obj")
		if !bullet {
			flushList()
			plain = append(plain, text)
			continue
		}
		flushText()
		if list == nil || list.Ordered != ordered {
			flushList()
			list = &model.List{Ordered: ordered}
		}
		lvl := 0
		if p.PPr != nil {
			lvl = p.PPr.Lvl
		}
		list.Items = append(list.Items, model.ListItem{Text: text, Level: lvl})
	}
	flushList()
	flushText()
}

// paragraphBullet reports whether a paragraph renders with a bullet and
// whether that bullet is a number.
func paragraphBullet(ppr *pPrXML, bodyDefault bool) (bullet, ordered bool) {
	if ppr == nil {
		return bodyDefault, false
	}
	switch {
	case ppr.BuNone != nil:
		return false, false
	case ppr.BuAutoNum != nil:
		return true, true
	case ppr.BuChar != nil:
		return true, false
	}
	return bodyDefault, false
}

func (b *slideBuilder) picture(pic *picXML) {
	if b.rels == nil || pic.NvPicPr.CNvPr.Hidden {
		return
	}
	target, ok := b.rels.Target(pic.BlipFill.Blip.Embed)
	if !ok {
		return
	}
	data, err := b.r.pkg.Read(target)
	if err != nil {
		b.r.warnings = append(b.r.warnings, fmt.Sprintf("image %s: %v", target, err))
		return
	}
	img := imagedoc.NewImage(path.Base(target), data)
	img.Alt = pic.NvPicPr.CNvPr.Descr
	if img.Alt == "" {
		img.Alt = pic.NvPicPr.CNvPr.Title
	}
	b.sec.Add(model.NewImageElement(img))
}

func joinParagraphs(ps []pXML, sep string) string {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		if t := strings.TrimSpace(p.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, sep)
}

// convertTable builds a model.Table from <a:tbl>. Merged-over cells stay
// in the grid as empty placeholders.
func convertTable(tbl *tblXML) *model.Table {
	t := &model.Table{Confidence: 1}
	for ri, row := range tbl.Rows {
		cells := make([]model.Cell, 0, len(row.Cells))
		for _, tc := range row.Cells {
			c := model.Cell{RowSpan: 1, ColSpan: 1, IsHeader: ri == 0}
			if tc.TxBody != nil {
				c.Text = joinParagraphs(tc.TxBody.P, "\n")
			}
			if tc.GridSpan > 1 {
				c.ColSpan = tc.GridSpan
			}
			if tc.RowSpan > 1 {
				c.RowSpan = tc.RowSpan
			}
			if xmlBool(tc.HMerge) {
				c = model.Cell{ColSpan: 0, RowSpan: 1, IsHeader: ri == 0}
			}
			if xmlBool(tc.VMerge) {
				c = model.Cell{ColSpan: 1, RowSpan: 0, IsHeader: ri == 0}
			}
			cells = append(cells, c)
		}
		t.Rows = append(t.Rows, cells)
	}
	t.HasHeader = len(t.Rows) > 1
	if !t.HasHeader {
		for i := range t.Rows {
			for j := range t.Rows[i] {
				t.Rows[i][j].IsHeader = false
			}
		}
	}
	return t
}
