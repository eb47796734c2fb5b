// Package cad extracts text from CAD drawings.
//
// ASCII DXF is read group by group: header variables become metadata and
// TEXT, MTEXT, ATTRIB and ATTDEF entities become text elements grouped by
// layer, each layer read top to bottom then left to right. Binary DWG is
// only identified; the drawing is kept as a region for OCR or AI.
package cad

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tsawler/intelliparse/model"
)

var binaryDXFSentinel = []byte("AutoCAD Binary DXF")

// versionNames maps $ACADVER and DWG header codes to release names.
var versionNames = map[string]string{
	"AC1006": "R10",
	"AC1009": "R11/R12",
	"AC1012": "R13",
	"AC1014": "R14",
	"AC1015": "AutoCAD 2000",
	"AC1018": "AutoCAD 2004",
	"AC1021": "AutoCAD 2007",
	"AC1024": "AutoCAD 2010",
	"AC1027": "AutoCAD 2013",
	"AC1032": "AutoCAD 2018",
}

// Reader provides access to a DXF or DWG drawing.
type Reader struct {
	name     string
	data     []byte
	dwg      bool
	version  string
	drawing  *drawing
	meta     model.Metadata
	warnings []string
}

// Open opens a DXF or DWG file for reading.
func Open(filename string) (*Reader, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return OpenBytes(filepath.Base(filename), data)
}

// OpenBytes opens a drawing held in memory. The format is told apart by
// content: DWG files start with an "AC10xx" version code.
func OpenBytes(name string, data []byte) (*Reader, error) {
	r := &Reader{name: name, data: data}
	switch {
	case isDWG(data):
		r.dwg = true
		r.version = string(data[:6])
		r.warnings = append(r.warnings, "DWG text extraction is not supported; drawing kept as a region")
	case bytes.HasPrefix(data, binaryDXFSentinel):
		return nil, fmt.Errorf("binary DXF is not supported")
	default:
		text := decodeCodePage(data, codePageOf(data))
		d, err := parseDXF(text)
		if err != nil {
			if len(d.entities) == 0 && len(d.header) == 0 {
				return nil, fmt.Errorf("parsing dxf: %w", err)
			}
			r.warnings = append(r.warnings, fmt.Sprintf("dxf: %v", err))
		}
		r.drawing = d
		r.version = d.header["$ACADVER"]
	}
	r.meta = r.buildMetadata()
	return r, nil
}

func isDWG(data []byte) bool {
	if len(data) < 6 || !bytes.HasPrefix(data, []byte("AC10")) {
		return false
	}
	_, err := strconv.Atoi(string(data[4:6]))
	return err == nil
}

// Close releases resources associated with the Reader.
func (r *Reader) Close() error {
	r.data = nil
	r.drawing = nil
	return nil
}

// Version returns the AutoCAD version code, e.g. "AC1015".
func (r *Reader) Version() string {
	return r.version
}

// Warnings returns problems met while reading that did not stop parsing.
func (r *Reader) Warnings() []string {
	return r.warnings
}

// Metadata returns drawing metadata.
func (r *Reader) Metadata() model.Metadata {
	return r.meta
}

// Text extracts and returns all text of the drawing.
func (r *Reader) Text() (string, error) {
	doc, err := r.Document()
	if err != nil {
		return "", err
	}
	return doc.Text(), nil
}

func (r *Reader) buildMetadata() model.Metadata {
	meta := model.Metadata{PageCount: 1, Custom: map[string]string{}}
	if r.version != "" {
		meta.Custom["acad_version"] = r.version
		if name, ok := versionNames[r.version]; ok {
			meta.Custom["release"] = name
		}
	}
	if r.drawing == nil {
		return meta
	}
	h := r.drawing.header
	meta.Created = julianTime(h["$TDCREATE"])
	meta.Modified = julianTime(h["$TDUPDATE"])
	if v := h["$INSUNITS"]; v != "" {
		meta.Custom["units"] = unitName(v)
	}
	if v := h["$DWGCODEPAGE"]; v != "" {
		meta.Custom["code_page"] = v
	}
	if v := h["$LASTSAVEDBY"]; v != "" {
		meta.Author = v
	}
	meta.Custom["layers"] = strconv.Itoa(len(r.drawing.layers))
	return meta
}

// Document returns a single-section document. DXF text is grouped under
// one heading per layer; a DWG drawing is a single region.
func (r *Reader) Document() (*model.Document, error) {
	if r.data == nil {
		return nil, fmt.Errorf("reader is closed")
	}
	format := "dxf"
	if r.dwg {
		format = "dwg"
	}
	doc := model.NewDocument(r.name, format)
	doc.Metadata = r.meta
	sec := doc.AddSection("")

	if r.dwg {
		sec.Add(model.NewRegion(&model.Image{
			Name: r.name,
			MIME: "image/vnd.dwg",
			Data: r.data,
		}))
		return doc, nil
	}

	byLayer := map[string][]entity{}
	for _, e := range r.drawing.entities {
		byLayer[e.layer] = append(byLayer[e.layer], e)
	}
	multiLayer := len(r.drawing.layers) > 1
	for _, layer := range r.drawing.layers {
		ents := readingOrder(byLayer[layer])
		var els []*model.Element
		for _, e := range ents {
			text := e.content()
			if text == "" {
				continue
			}
			el := model.NewText(text)
			box := model.NewBBox(e.x, e.y, 0, e.height)
			el.BBox = &box
			els = append(els, el)
		}
		if len(els) == 0 {
			continue
		}
		if multiLayer {
			sec.Add(model.NewHeading("Layer "+layer, 2))
		}
		for _, el := range els {
			sec.Add(el)
		}
	}
	return doc, nil
}

// content returns the readable text of an entity.
func (e entity) content() string {
	switch e.kind {
	case "MTEXT":
		return cleanMText(strings.Join(e.parts, "") + e.text)
	case "ATTRIB", "ATTDEF":
		value := cleanText(e.text)
		if value == "" {
			return ""
		}
		if e.tag != "" {
			return e.tag + ": " + value
		}
		return value
	}
	return cleanText(e.text)
}

// readingOrder sorts entities top to bottom, then left to right. Entities
// whose insertion points are within half a text height vertically share a
// row.
func readingOrder(ents []entity) []entity {
	out := append([]entity(nil), ents...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].y > out[j].y
	})
	var rows [][]entity
	for _, e := range out {
		if n := len(rows); n > 0 {
			last := rows[n-1][0]
			tol := max(last.height, e.height, 1e-9) / 2
			if math.Abs(last.y-e.y) <= tol {
				rows[n-1] = append(rows[n-1], e)
				continue
			}
		}
		rows = append(rows, []entity{e})
	}
	out = out[:0]
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].x < row[j].x })
		out = append(out, row...)
	}
	return out
}

// julianTime converts a DXF Julian date such as 2460325.5 to a time.
func julianTime(s string) time.Time {
	jd, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || jd <= 0 {
		return time.Time{}
	}
	const unixEpochJD = 2440587.5
	secs := (jd - unixEpochJD) * 86400
	return time.Unix(0, 0).UTC().Add(time.Duration(secs * float64(time.Second))).Round(time.Second)
}

// unitName maps $INSUNITS codes to names.
func unitName(code string) string {
	names := map[string]string{
		"0": "unitless", "1": "inches", "2": "feet", "3": "miles",
		"4": "millimeters", "5": "centimeters", "6": "meters", "7": "kilometers",
	}
	if n, ok := names[code]; ok {
		return n
	}
	return code
}
