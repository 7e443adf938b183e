package domain

import (
	"sort"
	"time"
)

// TombstoneMaxAge is how long a deletion is remembered.
const TombstoneMaxAge = 30 * 24 * time.Hour

// MergeTombstones unions the given sets keyed by URL, keeping the greatest
// DeletedAt per URL. The result is sorted by URL.
func MergeTombstones(sets ...[]Tombstone) []Tombstone {
	byURL := make(map[string]Tombstone)
	for _, set := range sets {
		for _, t := range set {
			if t.URL == "" {
				continue
			}
			if cur, ok := byURL[t.URL]; !ok || t.DeletedAt > cur.DeletedAt {
				byURL[t.URL] = t
			}
		}
	}

	merged := make([]Tombstone, 0, len(byURL))
	for _, t := range byURL {
		merged = append(merged, t)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].URL < merged[j].URL })
	return merged
}

// FilterApplicable returns the remote tombstones this agent may apply.
//
// Nothing is applicable before the first completed sync (lastSync <= 0).
// Afterwards a remote tombstone applies when the agent already holds a local
// tombstone for the URL, or when it was recorded strictly after lastSync.
// Anything else is stale and ignored.
func FilterApplicable(remote, local []Tombstone, lastSync int64) []Tombstone {
	if lastSync <= 0 {
		return []Tombstone{}
	}

	known := make(map[string]bool, len(local))
	for _, t := range local {
		known[t.URL] = true
	}

	applicable := make([]Tombstone, 0)
	for _, t := range remote {
		if t.URL == "" {
			continue
		}
		if known[t.URL] || t.DeletedAt > lastSync {
			applicable = append(applicable, t)
		}
	}
	return MergeTombstones(applicable)
}

// GCTombstones drops tombstones older than maxAge relative to now.
// Tombstones without DeletedAt are kept since their age is unknown.
func GCTombstones(ts []Tombstone, now time.Time, maxAge time.Duration) []Tombstone {
	if maxAge <= 0 {
		maxAge = TombstoneMaxAge
	}
	cutoff := now.Add(-maxAge).UnixMilli()

	kept := make([]Tombstone, 0, len(ts))
	for _, t := range ts {
		if t.DeletedAt == 0 || t.DeletedAt >= cutoff {
			kept = append(kept, t)
		}
	}
	return kept
}

// DropSuperseded removes tombstones whose URL is held in items by a bookmark
// created strictly after the deletion. Such a URL was re-created and the
// tombstone no longer describes it.
func DropSuperseded(ts []Tombstone, items []Item) []Tombstone {
	newest := make(map[string]int64, len(items))
	for _, it := range items {
		if it.IsBookmark() && it.URL != "" && it.CreatedAt > newest[it.URL] {
			newest[it.URL] = it.CreatedAt
		}
	}

	kept := make([]Tombstone, 0, len(ts))
	for _, t := range ts {
		if created, ok := newest[t.URL]; ok && created > t.DeletedAt {
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

// TombstoneIndex maps URL to tombstone.
func TombstoneIndex(ts []Tombstone) map[string]Tombstone {
	idx := make(map[string]Tombstone, len(ts))
	for _, t := range MergeTombstones(ts) {
		idx[t.URL] = t
	}
	return idx
}

// SameTombstones reports whether two sets hold the same URLs with the same timestamps.
func SameTombstones(a, b []Tombstone) bool {
	ma, mb := MergeTombstones(a), MergeTombstones(b)
	if len(ma) != len(mb) {
		return false
	}
	for i := range ma {
		if ma[i] != mb[i] {
			return false
		}
	}
	return true
}
