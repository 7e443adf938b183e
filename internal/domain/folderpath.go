package domain

import "strings"

// Canonical root tokens.
const (
	RootToolbar = "toolbar"
	RootOther   = "other"
	RootMenu    = "menu"
)

// rootAliases maps lowercased host root-container names to canonical tokens.
// The canonical tokens map to themselves so NormalizePath is idempotent.
var rootAliases = map[string]string{
	"toolbar":           RootToolbar,
	"bookmarks bar":     RootToolbar,
	"bookmarks toolbar": RootToolbar,
	"favorites bar":     RootToolbar,
	"favourites bar":    RootToolbar,
	"speed dial":        RootToolbar,

	"other":              RootOther,
	"other bookmarks":    RootOther,
	"unsorted bookmarks": RootOther,
	"other favorites":    RootOther,
	"other favourites":   RootOther,
	"unfiled":            RootOther,

	"menu":           RootMenu,
	"bookmarks menu": RootMenu,
}

// NormalizePath canonicalizes the root segment of a folder path so the same
// logical position compares equal across bookmark managers.
// "Bookmarks Bar/Work" and "Bookmarks Toolbar/Work/" both become "toolbar/Work".
// Unknown roots are left untouched. Only used for comparison.
func NormalizePath(path string) string {
	path = strings.TrimRight(path, "/")
	if path == "" {
		return ""
	}
	head, rest, hasRest := strings.Cut(path, "/")
	canonical, ok := CanonicalRoot(head)
	if !ok {
		return path
	}
	if !hasRest {
		return canonical
	}
	return canonical + "/" + rest
}

// CanonicalRoot returns the canonical token for a root-container name.
func CanonicalRoot(name string) (string, bool) {
	c, ok := rootAliases[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// SplitPath splits a folder path into its non-empty segments.
func SplitPath(path string) []string {
	raw := strings.Split(path, "/")
	segs := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// JoinPath appends a child segment to a folder path.
func JoinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "/" + child
}
