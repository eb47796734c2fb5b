package epubdoc

import (
	"encoding/xml"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/tsawler/intelliparse/internal/ooxml"
)

// OPF-related errors.
var (
	ErrNoOPF      = errors.New("epub: missing package document (OPF)")
	ErrInvalidOPF = errors.New("epub: invalid package document")
	ErrEmptySpine = errors.New("epub: no content in spine")
)

// opfPackage represents the OPF package document.
type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Version  string      `xml:"version,attr"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest struct {
		Items []opfItem `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Toc      string `xml:"toc,attr"` // NCX ID for EPUB 2
		ItemRefs []struct {
			IDRef  string `xml:"idref,attr"`
			Linear string `xml:"linear,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

type opfMetadata struct {
	Title       []dcElement `xml:"title"`
	Creator     []dcElement `xml:"creator"`
	Language    []dcElement `xml:"language"`
	Identifier  []dcElement `xml:"identifier"`
	Publisher   []dcElement `xml:"publisher"`
	Date        []dcElement `xml:"date"`
	Description []dcElement `xml:"description"`
	Subject     []dcElement `xml:"subject"`
	Rights      []dcElement `xml:"rights"`
	Meta        []opfMeta   `xml:"meta"`
}

type dcElement struct {
	ID      string `xml:"id,attr"`
	Content string `xml:",chardata"`
}

type opfMeta struct {
	Property string `xml:"property,attr"`
	Refines  string `xml:"refines,attr"`
	Name     string `xml:"name,attr"`    // EPUB 2 style
	Content  string `xml:"content,attr"` // EPUB 2 style
	Value    string `xml:",chardata"`    // EPUB 3 style
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// parseOPF reads the package document and returns it with the directory
// that manifest hrefs are relative to.
func parseOPF(pkg *ooxml.Package, opfPath string) (*Publication, string, error) {
	if !pkg.Has(opfPath) {
		return nil, "", ErrNoOPF
	}

	var opf opfPackage
	if err := pkg.ReadXML(opfPath, &opf); err != nil {
		return nil, "", ErrInvalidOPF
	}

	pub := &Publication{
		Version:  opf.Version,
		Metadata: convertMetadata(&opf.Metadata),
		Manifest: make(map[string]ManifestItem, len(opf.Manifest.Items)),
	}
	for _, item := range opf.Manifest.Items {
		pub.Manifest[item.ID] = ManifestItem{
			ID:         item.ID,
			Href:       item.Href,
			MediaType:  item.MediaType,
			Properties: strings.Fields(item.Properties),
		}
	}
	for _, ref := range opf.Spine.ItemRefs {
		pub.Spine = append(pub.Spine, SpineItem{IDRef: ref.IDRef, Linear: ref.Linear != "no"})
	}
	if len(pub.Spine) == 0 {
		return nil, "", ErrEmptySpine
	}

	baseDir := path.Dir(opfPath)
	if baseDir == "." {
		baseDir = ""
	}
	return pub, baseDir, nil
}

func first(els []dcElement) string {
	for _, e := range els {
		if s := strings.TrimSpace(e.Content); s != "" {
			return s
		}
	}
	return ""
}

func all(els []dcElement) []string {
	var out []string
	for _, e := range els {
		if s := strings.TrimSpace(e.Content); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func convertMetadata(m *opfMetadata) Metadata {
	meta := Metadata{
		Title:       first(m.Title),
		Creator:     all(m.Creator),
		Language:    first(m.Language),
		Identifier:  first(m.Identifier),
		Publisher:   first(m.Publisher),
		Date:        first(m.Date),
		Description: first(m.Description),
		Subjects:    all(m.Subject),
		Rights:      first(m.Rights),
	}
	for _, mt := range m.Meta {
		if mt.Property == "dcterms:modified" {
			if t, err := time.Parse(time.RFC3339, strings.TrimSpace(mt.Value)); err == nil {
				meta.Modified = t
			}
		}
	}
	return meta
}

// parseDate accepts the W3CDTF subsets allowed for dc:date.
func parseDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
