package domain

import (
	"encoding/json"
	"fmt"
)

// Kind tags an Item as a bookmark or a folder.
type Kind string

const (
	KindBookmark Kind = "bookmark"
	KindFolder   Kind = "folder"
)

// Item is one entry of the flat bookmark list exchanged with the remote store.
type Item struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// Kind distinguishes bookmarks from folders.
	Kind Kind `json:"type" validate:"required,oneof=bookmark folder"`

	// ID is the host-assigned identifier. It is not portable across hosts
	// and is only meaningful to the agent that produced the item.
	ID string `json:"id,omitempty" validate:"max=256"`

	// URL is the merge identity of a bookmark. Empty for folders.
	URL string `json:"url,omitempty" validate:"required_if=Kind bookmark,max=8192"`

	// ─────────────────────────────
	// Placement
	// ─────────────────────────────

	Title string `json:"title" validate:"max=4096"`

	// FolderPath is the slash-separated path of the parent folder,
	// starting with the host's root container name.
	// Example: "Bookmarks Bar/Work"
	FolderPath string `json:"folderPath" validate:"max=8192"`

	// Index is the position among siblings sharing FolderPath.
	Index int `json:"index" validate:"min=0"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	// CreatedAt is the host creation time in unix milliseconds.
	// Hosts reassign it on every creation, so it never feeds the checksum.
	CreatedAt int64 `json:"dateAdded,omitempty" validate:"min=0"`
}

// IsBookmark reports whether the item is a bookmark.
func (i Item) IsBookmark() bool { return i.Kind == KindBookmark }

// IsFolder reports whether the item is a folder.
func (i Item) IsFolder() bool { return i.Kind == KindFolder }

// UnmarshalJSON accepts items without an explicit type and infers the kind
// from the presence of a url.
func (i *Item) UnmarshalJSON(data []byte) error {
	type plain Item
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	switch p.Kind {
	case KindBookmark, KindFolder:
	case "":
		if p.URL != "" {
			p.Kind = KindBookmark
		} else {
			p.Kind = KindFolder
		}
	default:
		return fmt.Errorf("unknown item type %q", p.Kind)
	}
	*i = Item(p)
	return nil
}

// Update pairs a remote item with the local item it should be applied to.
type Update struct {
	Remote Item `json:"remote"`
	Local  Item `json:"local"`
}
