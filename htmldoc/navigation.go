package htmldoc

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// boilerplatePattern matches class and id values of navigation, site
// headers and footers, and sidebars.
var boilerplatePattern = regexp.MustCompile(
	`(?i)(^|[^a-z])(nav|navbar|navigation|menu|topnav|sidenav|breadcrumb|breadcrumbs|` +
		`site-header|page-header|masthead|banner|` +
		`footer|site-footer|page-footer|colophon|` +
		`sidebar|widget-area|widget|aside)([^a-z]|$)`)

// exclusionChecker decides which subtrees of a body are boilerplate.
type exclusionChecker struct {
	mode    NavigationExclusionMode
	body    *html.Node
	wrapper *html.Node // single top-level div/main, if any
	density map[*html.Node]float64
}

// excludeNavigation removes navigation and boilerplate subtrees from body
// in place. Positions are judged on the untouched tree before anything is
// removed.
func excludeNavigation(mode NavigationExclusionMode, body *html.Node) {
	if mode == NavigationExclusionNone {
		return
	}
	ec := &exclusionChecker{
		mode:    mode,
		body:    body,
		wrapper: detectTopLevelWrapper(body),
		density: map[*html.Node]float64{},
	}
	var doomed []*html.Node
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n != body && ec.shouldExclude(n) {
			doomed = append(doomed, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(body)
	for _, n := range doomed {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

// detectTopLevelWrapper finds a single structural wrapper element if one
// exists, as in <body><div id="wrapper">...</div></body>.
func detectTopLevelWrapper(body *html.Node) *html.Node {
	var structural []*html.Node
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "div", "main":
			structural = append(structural, c)
		default:
			return nil
		}
	}
	if len(structural) == 1 {
		return structural[0]
	}
	return nil
}

// shouldExclude determines if a node should be excluded based on the exclusion mode.
func (ec *exclusionChecker) shouldExclude(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}

	if ec.mode == NavigationExclusionNone {
		return false
	}

	// Check explicit semantic elements (all modes except None)
	if ec.shouldExcludeExplicit(n) {
		return true
	}

	// Check class/id patterns (Standard and Aggressive modes)
	if ec.mode >= NavigationExclusionStandard {
		if ec.shouldExcludeByPattern(n) {
			return true
		}
	}

	// Check link density (Aggressive mode only)
	if ec.mode >= NavigationExclusionAggressive {
		if ec.shouldExcludeByLinkDensity(n) {
			return true
		}
	}

	return false
}

// shouldExcludeExplicit checks for explicit semantic HTML5 elements and ARIA roles.
func (ec *exclusionChecker) shouldExcludeExplicit(n *html.Node) bool {
	// Always exclude <nav> and <aside> regardless of position
	switch n.Data {
	case "nav", "aside":
		return true
	}

	// Check ARIA roles
	role := attr(n, "role")
	switch role {
	case "navigation", "complementary":
		return true
	case "banner", "contentinfo":
		// These correspond to header/footer - check depth
		return ec.isTopLevel(n)
	}

	// <header> and <footer> - only exclude if top-level
	switch n.Data {
	case "header", "footer":
		return ec.isTopLevel(n)
	}

	return false
}

// isTopLevel returns true if the node is a direct child of body or a single top-level wrapper.
func (ec *exclusionChecker) isTopLevel(n *html.Node) bool {
	parent := n.Parent
	if parent == nil {
		return false
	}

	return parent == ec.body || (ec.wrapper != nil && parent == ec.wrapper)
}

// shouldExcludeByPattern checks class and id attributes for common navigation patterns.
func (ec *exclusionChecker) shouldExcludeByPattern(n *html.Node) bool {
	class := attr(n, "class")
	id := attr(n, "id")

	// Check combined pattern against class and id
	if class != "" && boilerplatePattern.MatchString(class) {
		return true
	}
	if id != "" && boilerplatePattern.MatchString(id) {
		return true
	}

	return false
}

// shouldExcludeByLinkDensity checks if an element has an unusually high link-to-text ratio.
// This is used in Aggressive mode to catch navigation sections that lack semantic markup.
func (ec *exclusionChecker) shouldExcludeByLinkDensity(n *html.Node) bool {
	// Only check block-level container elements
	switch n.Data {
	case "div", "section", "ul", "ol":
		// Continue with check
	default:
		return false
	}

	density := ec.calculateLinkDensity(n)

	// Threshold: if more than 60% of text is within links, likely navigation
	// Also require a minimum amount of links to avoid false positives on small elements
	linkCount := countLinks(n)
	return density > 0.6 && linkCount >= 4
}

// calculateLinkDensity returns the ratio of link text to total text (0.0 to 1.0).
func (ec *exclusionChecker) calculateLinkDensity(n *html.Node) float64 {
	if cached, ok := ec.density[n]; ok {
		return cached
	}
	density := 0.0
	if total := textLength(n); total > 0 {
		density = float64(linkTextLength(n)) / float64(total)
	}
	ec.density[n] = density
	return density
}

// textLength returns the total length of text content in a node.
func textLength(n *html.Node) int {
	if n.Type == html.TextNode {
		return len(strings.TrimSpace(n.Data))
	}

	total := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		total += textLength(c)
	}
	return total
}

// linkTextLength returns the length of text content within <a> tags.
func linkTextLength(n *html.Node) int {
	if n.Type == html.ElementNode && n.Data == "a" {
		return textLength(n)
	}

	total := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		total += linkTextLength(c)
	}
	return total
}

// countLinks returns the number of <a> elements within a node.
func countLinks(n *html.Node) int {
	count := 0
	if n.Type == html.ElementNode && n.Data == "a" {
		count = 1
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		count += countLinks(c)
	}
	return count
}
