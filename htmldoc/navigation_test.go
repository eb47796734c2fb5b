package htmldoc

import (
	"strings"
	"testing"
)

func TestNavigationExclusionModes(t *testing.T) {
	tests := []struct {
		name           string
		html           string
		mode           NavigationExclusionMode
		wantContains   []string
		wantNotContain []string
	}{
		{
			name: "None mode includes everything",
			html: `<html><body>
				<nav><p>Home | About</p></nav>
				<main><h1>Title</h1><p>Content</p></main>
				<footer><p>Copyright 2024</p></footer>
			</body></html>`,
			mode:           NavigationExclusionNone,
			wantContains:   []string{"Title", "Content", "Home", "About", "Copyright"},
			wantNotContain: []string{},
		},
		{
			name: "Explicit mode excludes nav element",
			html: `<html><body>
				<nav><a href="/">Home</a><a href="/about">About</a></nav>
				<main><h1>Title</h1><p>Content</p></main>
			</body></html>`,
			mode:           NavigationExclusionExplicit,
			wantContains:   []string{"Title", "Content"},
			wantNotContain: []string{"Home", "About"},
		},
		{
			name: "Explicit mode excludes aside element",
			html: `<html><body>
				<aside><p>Sidebar content</p></aside>
				<main><h1>Title</h1><p>Main content</p></main>
			</body></html>`,
			mode:           NavigationExclusionExplicit,
			wantContains:   []string{"Title", "Main content"},
			wantNotContain: []string{"Sidebar content"},
		},
		{
			name: "Explicit mode excludes top-level header but not article header",
			html: `<html><body>
				<header><h1>Site Header</h1></header>
				<article>
					<header><h2>Article Header</h2></header>
					<p>Article content</p>
				</article>
			</body></html>`,
			mode:           NavigationExclusionExplicit,
			wantContains:   []string{"Article Header", "Article content"},
			wantNotContain: []string{"Site Header"},
		},
		{
			name: "Explicit mode excludes top-level footer but not article footer",
			html: `<html><body>
				<article>
					<p>Article content</p>
					<footer><p>Article author info</p></footer>
				</article>
				<footer><p>Site footer copyright</p></footer>
			</body></html>`,
			mode:           NavigationExclusionExplicit,
			wantContains:   []string{"Article content", "Article author info"},
			wantNotContain: []string{"Site footer copyright"},
		},
		{
			name: "Explicit mode excludes elements with ARIA navigation role",
			html: `<html><body>
				<div role="navigation"><a href="/">Home</a></div>
				<main><h1>Title</h1><p>Content</p></main>
			</body></html>`,
			mode:           NavigationExclusionExplicit,
			wantContains:   []string{"Title", "Content"},
			wantNotContain: []string{"Home"},
		},
		{
			name: "Explicit mode excludes elements with ARIA banner role at top level",
			html: `<html><body>
				<div role="banner"><h1>Site Banner</h1></div>
				<main><h1>Main Title</h1><p>Content</p></main>
			</body></html>`,
			mode:           NavigationExclusionExplicit,
			wantContains:   []string{"Main Title", "Content"},
			wantNotContain: []string{"Site Banner"},
		},
		{
			name: "Standard mode excludes div with nav class",
			html: `<html><body>
				<div class="main-navigation"><a href="/">Home</a></div>
				<main><h1>Title</h1><p>Content</p></main>
			</body></html>`,
			mode:           NavigationExclusionStandard,
			wantContains:   []string{"Title", "Content"},
			wantNotContain: []string{"Home"},
		},
		{
			name: "Standard mode excludes div with navbar class",
			html: `<html><body>
				<div class="navbar"><a href="/">Home</a></div>
				<main><h1>Title</h1><p>Content</p></main>
			</body></html>`,
			mode:           NavigationExclusionStandard,
			wantContains:   []string{"Title", "Content"},
			wantNotContain: []string{"Home"},
		},
		{
			name: "Standard mode excludes div with footer id",
			html: `<html><body>
				<main><h1>Title</h1><p>Content</p></main>
				<div id="footer"><p>Copyright 2024</p></div>
			</body></html>`,
			mode:           NavigationExclusionStandard,
			wantContains:   []string{"Title", "Content"},
			wantNotContain: []string{"Copyright"},
		},
		{
			name: "Standard mode excludes div with sidebar class",
			html: `<html><body>
				<div class="sidebar"><p>Widget content</p></div>
				<main><h1>Title</h1><p>Content</p></main>
			</body></html>`,
			mode:           NavigationExclusionStandard,
			wantContains:   []string{"Title", "Content"},
			wantNotContain: []string{"Widget content"},
		},
		{
			name: "Standard mode excludes breadcrumb navigation",
			html: `<html><body>
				<div class="breadcrumb"><a href="/">Home</a> > <a href="/cat">Category</a></div>
				<main><h1>Title</h1><p>Content</p></main>
			</body></html>`,
			mode:           NavigationExclusionStandard,
			wantContains:   []string{"Title", "Content"},
			wantNotContain: []string{"Category"},
		},
		{
			name: "Standard mode does not exclude content with similar but non-matching names",
			html: `<html><body>
				<div class="navigator-results"><p>Search navigator</p></div>
				<main><h1>Title</h1><p>Content</p></main>
			</body></html>`,
			mode:           NavigationExclusionStandard,
			wantContains:   []string{"Title", "Content", "Search navigator"},
			wantNotContain: []string{},
		},
		{
			name: "Standard mode with wrapper div still detects top-level header/footer",
			html: `<html><body>
				<div id="wrapper">
					<header><h1>Site Header</h1></header>
					<main><h1>Title</h1><p>Content</p></main>
					<footer><p>Copyright</p></footer>
				</div>
			</body></html>`,
			mode:           NavigationExclusionStandard,
			wantContains:   []string{"Title", "Content"},
			wantNotContain: []string{"Site Header", "Copyright"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := docText(t, tt.html, WithNavigationExclusion(tt.mode))
			for _, want := range tt.wantContains {
				if !strings.Contains(text, want) {
					t.Errorf("text missing %q\n%s", want, text)
				}
			}
			for _, unwanted := range tt.wantNotContain {
				if strings.Contains(text, unwanted) {
					t.Errorf("text should not contain %q\n%s", unwanted, text)
				}
			}
		})
	}
}

func TestAggressiveModeWithLinkDensity(t *testing.T) {
	html := `<html><body>
		<div class="links"><a href="/a">Alpha</a> <a href="/b">Beta</a> <a href="/c">Gamma</a> <a href="/d">Delta</a></div>
		<main><h1>Title</h1><p>Content that is mostly prose with one <a href="/x">link</a> in it.</p></main>
	</body></html>`

	standard := docText(t, html, WithNavigationExclusion(NavigationExclusionStandard))
	if !strings.Contains(standard, "Alpha") {
		t.Errorf("standard mode should keep link block without markup hints:\n%s", standard)
	}

	aggressive := docText(t, html, WithNavigationExclusion(NavigationExclusionAggressive))
	if strings.Contains(aggressive, "Alpha") {
		t.Errorf("aggressive mode should drop link-dense block:\n%s", aggressive)
	}
	if !strings.Contains(aggressive, "mostly prose") {
		t.Errorf("aggressive mode dropped main content:\n%s", aggressive)
	}
}

func TestDefaultModeIsStandard(t *testing.T) {
	html := `<html><body>
		<div class="navbar"><a href="/">Home</a></div>
		<main><h1>Title</h1><p>Content</p></main>
	</body></html>`

	r, err := OpenBytes("page.html", []byte(html))
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	if r.mode != NavigationExclusionStandard {
		t.Errorf("mode = %v, want standard", r.mode)
	}
	md, err := r.Markdown()
	if err != nil {
		t.Fatalf("Markdown failed: %v", err)
	}
	if strings.Contains(md, "Home") {
		t.Error("Markdown() should exclude navigation by default")
	}
	if !strings.Contains(md, "# Title") {
		t.Errorf("Markdown() missing heading:\n%s", md)
	}
}

func TestParseNavigationExclusion(t *testing.T) {
	tests := map[string]NavigationExclusionMode{
		"none":       NavigationExclusionNone,
		"off":        NavigationExclusionNone,
		"explicit":   NavigationExclusionExplicit,
		"standard":   NavigationExclusionStandard,
		"aggressive": NavigationExclusionAggressive,
		"bogus":      NavigationExclusionStandard,
	}
	for in, want := range tests {
		if got := ParseNavigationExclusion(in); got != want {
			t.Errorf("ParseNavigationExclusion(%q) = %v, want %v", in, got, want)
		}
	}
	if NavigationExclusionAggressive.String() != "aggressive" {
		t.Errorf("String() = %q", NavigationExclusionAggressive.String())
	}
}

func TestPatternMatchingWordBoundaries(t *testing.T) {
	tests := []struct {
		name       string
		html       string
		shouldSkip bool
	}{
		{
			name:       "nav as exact match",
			html:       `<div class="nav">Skip me</div>`,
			shouldSkip: true,
		},
		{
			name:       "nav with prefix",
			html:       `<div class="top-nav">Skip me</div>`,
			shouldSkip: true,
		},
		{
			name:       "nav with suffix",
			html:       `<div class="nav-bar">Skip me</div>`,
			shouldSkip: true,
		},
		{
			name:       "navbar as word",
			html:       `<div class="navbar">Skip me</div>`,
			shouldSkip: true,
		},
		{
			name:       "navigator should not match",
			html:       `<div class="navigator">Keep me</div>`,
			shouldSkip: false,
		},
		{
			name:       "navigation embedded in longer word should not match",
			html:       `<div class="mynavigationsystem">Keep me</div>`,
			shouldSkip: false,
		},
		{
			name:       "footer exact match",
			html:       `<div id="footer">Skip me</div>`,
			shouldSkip: true,
		},
		{
			name:       "site-footer",
			html:       `<div class="site-footer">Skip me</div>`,
			shouldSkip: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fullHTML := "<html><body>" + tt.html + "<main><p>Main content</p></main></body></html>"
			text := docText(t, fullHTML)
			if tt.shouldSkip && strings.Contains(text, "Skip me") {
				t.Errorf("expected content to be skipped:\n%s", text)
			}
			if !tt.shouldSkip && !strings.Contains(text, "Keep me") {
				t.Errorf("expected content to be kept:\n%s", text)
			}
		})
	}
}

// docText opens html and returns the document text.
func docText(t *testing.T, html string, opts ...Option) string {
	t.Helper()
	r, err := OpenBytes("page.html", []byte(html), opts...)
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	defer r.Close()
	text, err := r.Text()
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	return text
}
