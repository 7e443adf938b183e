package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// checksumEntry is the projection that feeds the checksum.
// CreatedAt and host IDs are deliberately absent.
type checksumEntry struct {
	Kind       Kind   `json:"type"`
	Title      string `json:"title"`
	FolderPath string `json:"folderPath"`
	Index      int    `json:"index"`
	URL        string `json:"url,omitempty"`
}

// Checksum returns an order-independent sha256 digest over the normalized
// projection of items.
func Checksum(items []Item) string {
	entries := make([]checksumEntry, 0, len(items))
	for _, it := range items {
		e := checksumEntry{
			Kind:       it.Kind,
			Title:      it.Title,
			FolderPath: NormalizePath(it.FolderPath),
			Index:      it.Index,
		}
		if it.IsBookmark() {
			e.URL = it.URL
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.FolderPath != b.FolderPath {
			return a.FolderPath < b.FolderPath
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
		return a.Title < b.Title
	})

	// Marshal of a slice of flat structs cannot fail.
	data, _ := json.Marshal(entries)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
