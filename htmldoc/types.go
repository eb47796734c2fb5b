package htmldoc

// NavigationExclusionMode controls how navigation, headers, and footers are filtered.
type NavigationExclusionMode int

const (
	// NavigationExclusionNone includes all content without filtering.
	NavigationExclusionNone NavigationExclusionMode = iota

	// NavigationExclusionExplicit skips <nav>, <aside> and the ARIA roles
	// navigation and complementary. <header> and <footer> are skipped only
	// as direct children of <body> or of a single top-level wrapper.
	NavigationExclusionExplicit

	// NavigationExclusionStandard (default) also matches common class and
	// id names such as nav, menu, footer and sidebar.
	NavigationExclusionStandard

	// NavigationExclusionAggressive also drops containers whose text is
	// mostly link text. Link-heavy documentation may lose content.
	NavigationExclusionAggressive
)

// String returns the mode name used in configuration.
func (m NavigationExclusionMode) String() string {
	switch m {
	case NavigationExclusionNone:
		return "none"
	case NavigationExclusionExplicit:
		return "explicit"
	case NavigationExclusionAggressive:
		return "aggressive"
	}
	return "standard"
}

// ParseNavigationExclusion maps a configuration value to a mode. Unknown
// values select NavigationExclusionStandard.
func ParseNavigationExclusion(s string) NavigationExclusionMode {
	switch s {
	case "none", "off":
		return NavigationExclusionNone
	case "explicit":
		return NavigationExclusionExplicit
	case "aggressive":
		return NavigationExclusionAggressive
	}
	return NavigationExclusionStandard
}
