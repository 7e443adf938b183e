package domain

import "sort"

// Classification partitions remote items against the local tree.
type Classification struct {
	// ToAdd holds remote bookmarks missing locally plus remote folders
	// without a local (path, title) match. Sorted by placement.
	ToAdd []Item

	// ToUpdate pairs remote bookmarks with the local copy they differ from.
	ToUpdate []Update

	// Suppressed holds remote bookmarks blocked by a tombstone or by an
	// unsynced local edit.
	Suppressed []Item
}

// Classify decides what to do with each remote item.
//
// For a remote bookmark: a tombstone with DeletedAt >= CreatedAt suppresses it,
// a missing local URL makes it an add, a locally modified local copy suppresses
// it, and a difference in title, normalized path or index makes it an update.
// Remote folders are only placed: they are added when no local folder shares
// their normalized path and title.
//
// The result does not depend on the order of the inputs.
func Classify(remote, local []Item, tombstones []Tombstone, modified map[string]bool) Classification {
	tombs := TombstoneIndex(tombstones)
	localByURL := indexLocalBookmarks(local)
	localFolders := make(map[string]bool)
	for _, it := range local {
		if it.IsFolder() {
			localFolders[folderKey(it)] = true
		}
	}

	remote = sortedCopy(remote)

	var c Classification
	seenURL := make(map[string]bool)
	seenFolder := make(map[string]bool)

	for _, r := range remote {
		if r.IsFolder() {
			key := folderKey(r)
			if r.Title == "" || seenFolder[key] || localFolders[key] {
				continue
			}
			seenFolder[key] = true
			c.ToAdd = append(c.ToAdd, r)
			continue
		}

		if r.URL == "" || seenURL[r.URL] {
			continue
		}
		seenURL[r.URL] = true

		if t, ok := tombs[r.URL]; ok && r.CreatedAt <= t.DeletedAt {
			c.Suppressed = append(c.Suppressed, r)
			continue
		}

		l, ok := localByURL[r.URL]
		if !ok {
			c.ToAdd = append(c.ToAdd, r)
			continue
		}
		if modified[l.ID] {
			c.Suppressed = append(c.Suppressed, r)
			continue
		}
		if r.Title != l.Title ||
			NormalizePath(r.FolderPath) != NormalizePath(l.FolderPath) ||
			r.Index != l.Index {
			c.ToUpdate = append(c.ToUpdate, Update{Remote: r, Local: l})
		}
	}

	sort.SliceStable(c.ToUpdate, func(i, j int) bool { return c.ToUpdate[i].Remote.URL < c.ToUpdate[j].Remote.URL })
	sort.SliceStable(c.Suppressed, func(i, j int) bool { return c.Suppressed[i].URL < c.Suppressed[j].URL })
	return c
}

// indexLocalBookmarks maps URL to a local bookmark. When a URL appears more
// than once locally the first in placement order wins.
func indexLocalBookmarks(local []Item) map[string]Item {
	byURL := make(map[string]Item, len(local))
	for _, it := range sortedCopy(local) {
		if !it.IsBookmark() || it.URL == "" {
			continue
		}
		if _, ok := byURL[it.URL]; !ok {
			byURL[it.URL] = it
		}
	}
	return byURL
}

// folderKey identifies a folder by normalized path and title. Only the root
// segment is matched case-insensitively; folder titles compare exactly, the
// same way the mutator finds parents.
func folderKey(it Item) string {
	return NormalizePath(it.FolderPath) + "\x00" + it.Title
}

// sortedCopy orders items by placement: normalized path, index, then stable
// tie-breakers so equal inputs in any order sort identically.
func sortedCopy(items []Item) []Item {
	out := append([]Item(nil), items...)
	SortByPlacement(out)
	return out
}

// SortByPlacement sorts items in place by (normalized path, index, kind, url, title, id).
func SortByPlacement(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		pa, pb := NormalizePath(a.FolderPath), NormalizePath(b.FolderPath)
		if pa != pb {
			return pa < pb
		}
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.URL != b.URL {
			return a.URL < b.URL
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.ID < b.ID
	})
}

// BookmarkURLs returns the set of bookmark URLs in items.
func BookmarkURLs(items []Item) map[string]bool {
	urls := make(map[string]bool, len(items))
	for _, it := range items {
		if it.IsBookmark() && it.URL != "" {
			urls[it.URL] = true
		}
	}
	return urls
}

// DedupeBookmarks drops repeated bookmark URLs, keeping the first in placement order.
func DedupeBookmarks(items []Item) []Item {
	sorted := sortedCopy(items)
	seen := make(map[string]bool, len(sorted))
	out := make([]Item, 0, len(sorted))
	for _, it := range sorted {
		if it.IsBookmark() {
			if seen[it.URL] {
				continue
			}
			seen[it.URL] = true
		}
		out = append(out, it)
	}
	return out
}
