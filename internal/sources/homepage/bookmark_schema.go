package homepage

// BookmarkEntry is one Homepage bookmark.
type BookmarkEntry struct {
	Icon        string `yaml:"icon,omitempty"`
	Abbr        string `yaml:"abbr,omitempty"`
	Href        string `yaml:"href"`
	Description string `yaml:"description,omitempty"`
}

// BookmarkCategory maps a category name to its bookmarks.
// Homepage uses dynamic keys, so each bookmark is a single-key map whose
// value is a one-element list.
type BookmarkCategory map[string][]map[string][]BookmarkEntry

// BookmarksConfig is the top-level structure of bookmarks.yaml.
type BookmarksConfig []BookmarkCategory
