package homepage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

// BookmarkMapper converts Homepage bookmark config to flat bookmark items
// placed under a root container, one folder per category.
type BookmarkMapper struct {
	root string
}

// NewBookmarkMapper creates a mapper that files categories under root.
// An empty root means the toolbar.
func NewBookmarkMapper(root string) *BookmarkMapper {
	if root == "" {
		root = domain.RootToolbar
	}
	return &BookmarkMapper{root: root}
}

// MapBookmarks converts BookmarksConfig to items. Each category yields a
// folder item followed by its bookmarks, in file order. Entries without href
// and repeated URLs are skipped.
func (m *BookmarkMapper) MapBookmarks(config BookmarksConfig) ([]domain.Item, error) {
	var items []domain.Item
	seen := make(map[string]bool)
	folderIndex := 0

	for _, category := range config {
		// Categories are single-key maps; sort for a stable order if not.
		names := make([]string, 0, len(category))
		for name := range category {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, categoryName := range names {
			categoryName = strings.TrimSpace(categoryName)
			if categoryName == "" {
				continue
			}
			folderPath := domain.JoinPath(m.root, categoryName)

			var bookmarks []domain.Item
			for _, bookmarkMap := range category[categoryName] {
				for bookmarkName, entryList := range bookmarkMap {
					// Each bookmark has a list with a single entry
					if len(entryList) == 0 {
						continue
					}
					entry := entryList[0]

					href := strings.TrimSpace(entry.Href)
					if href == "" || href == `""` || seen[href] {
						continue
					}
					seen[href] = true

					title := strings.TrimSpace(bookmarkName)
					if title == "" {
						title = entry.Abbr
					}

					bookmarks = append(bookmarks, domain.Item{
						Kind:       domain.KindBookmark,
						Title:      title,
						URL:        href,
						FolderPath: folderPath,
						Index:      len(bookmarks),
					})
				}
			}
			if len(bookmarks) == 0 {
				continue
			}

			items = append(items, domain.Item{
				Kind:       domain.KindFolder,
				Title:      categoryName,
				FolderPath: m.root,
				Index:      folderIndex,
			})
			folderIndex++
			items = append(items, bookmarks...)
		}
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("no valid bookmarks found in config")
	}

	return items, nil
}
