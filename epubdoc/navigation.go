package epubdoc

import (
	"bytes"
	"encoding/xml"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// ncxDocument represents an EPUB 2 NCX navigation document.
type ncxDocument struct {
	XMLName xml.Name `xml:"ncx"`
	Title   string   `xml:"docTitle>text"`
	NavMap  struct {
		NavPoints []ncxNavPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

type ncxNavPoint struct {
	ID        string `xml:"id,attr"`
	PlayOrder string `xml:"playOrder,attr"`
	Label     string `xml:"navLabel>text"`
	Content   struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []ncxNavPoint `xml:"navPoint"`
}

// parseNavigation reads the EPUB 3 nav document, falling back to the
// EPUB 2 NCX and then to the spine. Entry hrefs are resolved to package
// paths.
func (r *Reader) parseNavigation() *TableOfContents {
	if item, ok := r.findManifest(func(m ManifestItem) bool { return m.HasProperty("nav") }); ok {
		href := r.resolveHref(item.Href)
		if content, err := r.pkg.Read(href); err == nil {
			if toc := parseNavXHTML(content); toc != nil {
				resolveEntries(toc.Entries, path.Dir(href))
				return toc
			}
		}
	}

	if item, ok := r.findManifest(func(m ManifestItem) bool { return m.MediaType == "application/x-dtbncx+xml" }); ok {
		href := r.resolveHref(item.Href)
		if content, err := r.pkg.Read(href); err == nil {
			var ncx ncxDocument
			if err := xml.Unmarshal(content, &ncx); err == nil {
				toc := &TableOfContents{
					Title:   strings.TrimSpace(ncx.Title),
					Entries: convertNCXNavPoints(ncx.NavMap.NavPoints),
				}
				resolveEntries(toc.Entries, path.Dir(href))
				return toc
			}
		}
	}

	return r.generateTOCFromSpine()
}

// findManifest returns the first manifest item, in spine-independent ID
// order, that matches.
func (r *Reader) findManifest(match func(ManifestItem) bool) (ManifestItem, bool) {
	var found ManifestItem
	ok := false
	for _, item := range r.pub.Manifest {
		if match(item) && (!ok || item.ID < found.ID) {
			found, ok = item, true
		}
	}
	return found, ok
}

// parseNavXHTML parses an EPUB 3 nav document. It returns nil when there
// is no toc nav.
func parseNavXHTML(content []byte) *TableOfContents {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil
	}

	nav := findNode(doc, func(n *html.Node) bool {
		if n.Data != "nav" {
			return false
		}
		for _, a := range n.Attr {
			if (a.Key == "epub:type" || a.Key == "type" || a.Key == "role") && strings.Contains(a.Val, "toc") {
				return true
			}
		}
		return false
	})
	if nav == nil {
		return nil
	}

	toc := &TableOfContents{}
	if h := findNode(nav, func(n *html.Node) bool {
		switch n.Data {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			return true
		}
		return false
	}); h != nil {
		toc.Title = extractText(h)
	}
	if ol := findNode(nav, func(n *html.Node) bool { return n.Data == "ol" }); ol != nil {
		toc.Entries = parseOLEntries(ol)
	}
	return toc
}

// findNode returns the first element under n, depth first, that matches.
func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

// parseOLEntries parses TOC entries from an <ol> element.
func parseOLEntries(ol *html.Node) []TOCEntry {
	var entries []TOCEntry
	for c := ol.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "li" {
			continue
		}
		entry := parseLIEntry(c)
		if entry.Title != "" || entry.Href != "" || len(entry.Children) > 0 {
			entries = append(entries, entry)
		}
	}
	return entries
}

// parseLIEntry parses a single TOC entry from an <li> element.
func parseLIEntry(li *html.Node) TOCEntry {
	var entry TOCEntry
	for c := li.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "a":
			entry.Title = extractText(c)
			for _, a := range c.Attr {
				if a.Key == "href" {
					entry.Href = a.Val
				}
			}
		case "span":
			if entry.Title == "" {
				entry.Title = extractText(c)
			}
		case "ol":
			entry.Children = parseOLEntries(c)
		}
	}
	return entry
}

// convertNCXNavPoints converts NCX navPoints to TOCEntries.
func convertNCXNavPoints(points []ncxNavPoint) []TOCEntry {
	entries := make([]TOCEntry, 0, len(points))
	for _, p := range points {
		entries = append(entries, TOCEntry{
			Title:    strings.TrimSpace(p.Label),
			Href:     p.Content.Src,
			Children: convertNCXNavPoints(p.Children),
		})
	}
	return entries
}

// resolveEntries rewrites hrefs relative to dir into package paths,
// keeping any fragment.
func resolveEntries(entries []TOCEntry, dir string) {
	for i := range entries {
		if href := entries[i].Href; href != "" && !strings.Contains(href, "://") {
			file, frag, _ := strings.Cut(href, "#")
			if file != "" {
				file = path.Join(dir, unescape(file))
			}
			if frag != "" {
				file += "#" + frag
			}
			entries[i].Href = file
		}
		resolveEntries(entries[i].Children, dir)
	}
}

// generateTOCFromSpine creates a basic TOC from the spine when no
// navigation is present.
func (r *Reader) generateTOCFromSpine() *TableOfContents {
	toc := &TableOfContents{
		Title:   r.pub.Metadata.Title,
		Entries: make([]TOCEntry, 0, len(r.chapters)),
	}
	for _, chapter := range r.chapters {
		title := chapter.Title
		if title == "" {
			title = chapter.ID
		}
		toc.Entries = append(toc.Entries, TOCEntry{Title: title, Href: chapter.Href})
	}
	return toc
}

// extractText returns the whitespace-folded text under n.
func extractText(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			visit(k)
		}
	}
	visit(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// TableOfContents returns the parsed table of contents.
func (r *Reader) TableOfContents() *TableOfContents {
	if r.toc == nil {
		r.toc = r.parseNavigation()
	}
	return r.toc
}
