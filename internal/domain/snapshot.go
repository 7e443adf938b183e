package domain

import "encoding/json"

// Snapshot is the single remote blob per account.
type Snapshot struct {
	Items      []Item      `json:"bookmarks"`
	Tombstones []Tombstone `json:"tombstones"`
	Checksum   string      `json:"checksum"`
	Version    int64       `json:"version"`

	// UpdatedAt is unix milliseconds of the last accepted write.
	UpdatedAt int64  `json:"updatedAt,omitempty"`
	Source    string `json:"source,omitempty"`
}

// PushRequest is the body of POST /bookmarks.
type PushRequest struct {
	Items      []Item      `json:"bookmarks" validate:"dive"`
	Tombstones []Tombstone `json:"tombstones" validate:"dive"`
	Source     string      `json:"source" validate:"max=256"`
}

// PushResponse is the answer to POST /bookmarks.
type PushResponse struct {
	Version  int64  `json:"version"`
	Checksum string `json:"checksum"`
	Skipped  bool   `json:"skipped,omitempty"`
}

// VersionData is the payload archived in a version-history entry.
type VersionData struct {
	Items      []Item      `json:"bookmarks"`
	Tombstones []Tombstone `json:"tombstones,omitempty"`
}

// VersionRequest is the body of POST /versions.
type VersionRequest struct {
	BookmarkData  json.RawMessage `json:"bookmarkData" validate:"required"`
	SourceType    string          `json:"sourceType" validate:"required,max=64"`
	DeviceName    string          `json:"deviceName" validate:"max=256"`
	ChangeSummary string          `json:"changeSummary" validate:"max=1024"`
}

// VersionRecord is a stored version-history entry.
type VersionRecord struct {
	ID            string          `json:"id"`
	Version       int64           `json:"version"`
	CreatedAt     int64           `json:"createdAt"`
	BookmarkData  json.RawMessage `json:"bookmarkData"`
	SourceType    string          `json:"sourceType"`
	DeviceName    string          `json:"deviceName,omitempty"`
	ChangeSummary string          `json:"changeSummary,omitempty"`
}
