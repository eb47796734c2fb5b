// Package ooxml reads the ZIP package layer shared by the Office Open XML
// formats: part access, relationship files and core properties.
package ooxml

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/tsawler/intelliparse/model"
)

// MaxPartSize caps the decompressed size of a single part.
const MaxPartSize = 256 << 20

// ErrPartNotFound is returned when a part is missing from the package.
var ErrPartNotFound = errors.New("part not found")

// Package is an opened OOXML (or OpenDocument) ZIP container.
type Package struct {
	files map[string]*zip.File
	names []string
}

// Open reads a package from memory.
func Open(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening ZIP archive: %w", err)
	}
	p := &Package{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		name := strings.TrimPrefix(f.Name, "/")
		p.files[name] = f
		p.names = append(p.names, name)
	}
	return p, nil
}

// Has reports whether the named part exists.
func (p *Package) Has(name string) bool {
	_, ok := p.files[name]
	return ok
}

// Names returns all part names in archive order.
func (p *Package) Names() []string {
	return p.names
}

// Require returns an error naming the first missing part.
func (p *Package) Require(names ...string) error {
	for _, n := range names {
		if !p.Has(n) {
			return fmt.Errorf("missing required file: %s", n)
		}
	}
	return nil
}

// Read returns the content of a part.
func (p *Package) Read(name string) ([]byte, error) {
	f, ok := p.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPartNotFound, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, MaxPartSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if len(data) > MaxPartSize {
		return nil, fmt.Errorf("part %s exceeds %d bytes", name, MaxPartSize)
	}
	return data, nil
}

// ReadXML unmarshals a part into v.
func (p *Package) ReadXML(name string, v any) error {
	data, err := p.Read(name)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshaling %s: %w", name, err)
	}
	return nil
}

// Relationship is one entry of a .rels part.
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

// External reports whether the target lies outside the package.
func (r Relationship) External() bool {
	return strings.EqualFold(r.TargetMode, "External")
}

// Relationships maps relationship IDs to entries for one source part.
type Relationships struct {
	source string
	byID   map[string]Relationship
	list   []Relationship
}

type relationshipsXML struct {
	XMLName       xml.Name       `xml:"Relationships"`
	Relationships []Relationship `xml:"Relationship"`
}

// RelsPath returns the .rels part name for a source part, e.g.
// "word/document.xml" -> "word/_rels/document.xml.rels".
func RelsPath(part string) string {
	dir, file := path.Split(part)
	return dir + "_rels/" + file + ".rels"
}

// Relationships loads the relationships of a source part. A missing .rels
// part yields an empty set.
func (p *Package) Relationships(part string) (*Relationships, error) {
	rels := &Relationships{source: part, byID: map[string]Relationship{}}
	name := RelsPath(part)
	if !p.Has(name) {
		return rels, nil
	}
	var x relationshipsXML
	if err := p.ReadXML(name, &x); err != nil {
		return rels, err
	}
	for _, r := range x.Relationships {
		rels.byID[r.ID] = r
		rels.list = append(rels.list, r)
	}
	return rels, nil
}

// Get returns the relationship with the given ID.
func (r *Relationships) Get(id string) (Relationship, bool) {
	rel, ok := r.byID[id]
	return rel, ok
}

// Target resolves the part name a relationship points at. External
// targets are returned unchanged with ok false.
func (r *Relationships) Target(id string) (string, bool) {
	rel, ok := r.byID[id]
	if !ok || rel.External() {
		return rel.Target, false
	}
	return ResolveTarget(r.source, rel.Target), true
}

// ByType returns the relationships whose type ends with suffix, e.g.
// "/slide" or "/notesSlide".
func (r *Relationships) ByType(suffix string) []Relationship {
	var out []Relationship
	for _, rel := range r.list {
		if strings.HasSuffix(rel.Type, suffix) {
			out = append(out, rel)
		}
	}
	return out
}

// ResolveTarget resolves a relationship target relative to its source part.
func ResolveTarget(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return path.Clean(path.Join(path.Dir(source), target))
}

type corePropertiesXML struct {
	XMLName     xml.Name `xml:"coreProperties"`
	Title       string   `xml:"title"`
	Subject     string   `xml:"subject"`
	Creator     string   `xml:"creator"`
	Keywords    string   `xml:"keywords"`
	Description string   `xml:"description"`
	Language    string   `xml:"language"`
	Created     string   `xml:"created"`
	Modified    string   `xml:"modified"`
}

type appPropertiesXML struct {
	XMLName     xml.Name `xml:"Properties"`
	Application string   `xml:"Application"`
	Pages       int      `xml:"Pages"`
	Slides      int      `xml:"Slides"`
}

// Metadata reads docProps/core.xml and docProps/app.xml. Both parts are
// optional.
func (p *Package) Metadata() model.Metadata {
	meta := model.Metadata{Custom: map[string]string{}}

	var core corePropertiesXML
	if err := p.ReadXML("docProps/core.xml", &core); err == nil {
		meta.Title = strings.TrimSpace(core.Title)
		meta.Author = strings.TrimSpace(core.Creator)
		meta.Subject = strings.TrimSpace(core.Subject)
		meta.Language = strings.TrimSpace(core.Language)
		meta.Keywords = SplitKeywords(core.Keywords)
		meta.Created = ParseTime(core.Created)
		meta.Modified = ParseTime(core.Modified)
		if core.Description != "" {
			meta.Custom["description"] = strings.TrimSpace(core.Description)
		}
	}

	var app appPropertiesXML
	if err := p.ReadXML("docProps/app.xml", &app); err == nil {
		meta.Creator = strings.TrimSpace(app.Application)
	}
	return meta
}

// SplitKeywords splits a comma or semicolon separated keyword list.
func SplitKeywords(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ParseTime parses the W3CDTF timestamps used in package metadata. An
// unparseable value yields the zero time.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
