package domain

import "sort"

// Tombstone records that a bookmark URL was deleted.
type Tombstone struct {
	URL string `json:"url" validate:"required,max=8192"`

	// DeletedAt is unix milliseconds. Zero means unknown.
	DeletedAt int64 `json:"deletedAt,omitempty" validate:"min=0"`
}

// SyncState is the per-agent persisted bookkeeping.
type SyncState struct {
	// LastSyncTime is unix milliseconds of the last successful or no-op run.
	// Zero means the agent never synced.
	LastSyncTime int64 `json:"lastSyncTime"`

	LastRemoteChecksum string `json:"lastRemoteChecksum,omitempty"`

	// LocallyModified holds host IDs changed since the last successful push.
	LocallyModified map[string]bool `json:"locallyModified,omitempty"`

	Tombstones []Tombstone `json:"tombstones,omitempty"`
}

// NewSyncState returns an empty state for a fresh install.
func NewSyncState() *SyncState {
	return &SyncState{LocallyModified: map[string]bool{}}
}

// HasSynced reports whether a sync has ever completed.
func (s *SyncState) HasSynced() bool { return s.LastSyncTime > 0 }

// ModifiedIDs returns a sorted copy of the locally modified set.
func (s *SyncState) ModifiedIDs() []string {
	ids := make([]string, 0, len(s.LocallyModified))
	for id := range s.LocallyModified {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MarkModified adds ids to the locally modified set.
func (s *SyncState) MarkModified(ids ...string) {
	if s.LocallyModified == nil {
		s.LocallyModified = map[string]bool{}
	}
	for _, id := range ids {
		if id != "" {
			s.LocallyModified[id] = true
		}
	}
}

// ClearModified removes ids from the locally modified set.
func (s *SyncState) ClearModified(ids ...string) {
	for _, id := range ids {
		delete(s.LocallyModified, id)
	}
}

// RecordDeletion adds or refreshes the local tombstone for url.
func (s *SyncState) RecordDeletion(url string, at int64) {
	if url == "" {
		return
	}
	s.Tombstones = MergeTombstones(s.Tombstones, []Tombstone{{URL: url, DeletedAt: at}})
}

// ForgetDeletion drops the local tombstone for url, if any.
func (s *SyncState) ForgetDeletion(url string) bool {
	for i, t := range s.Tombstones {
		if t.URL == url {
			s.Tombstones = append(s.Tombstones[:i:i], s.Tombstones[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (s *SyncState) Clone() *SyncState {
	c := &SyncState{
		LastSyncTime:       s.LastSyncTime,
		LastRemoteChecksum: s.LastRemoteChecksum,
		LocallyModified:    make(map[string]bool, len(s.LocallyModified)),
		Tombstones:         append([]Tombstone(nil), s.Tombstones...),
	}
	for id := range s.LocallyModified {
		c.LocallyModified[id] = true
	}
	return c
}
