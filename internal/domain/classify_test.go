package domain

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bm(id, url, title, path string, idx int, created int64) Item {
	return Item{Kind: KindBookmark, ID: id, URL: url, Title: title, FolderPath: path, Index: idx, CreatedAt: created}
}

func TestClassifyUpdateAndAdd(t *testing.T) {
	local := []Item{
		bm("A", "u1", "A", "Bookmarks Bar", 0, 1),
		bm("B", "u2", "B", "Bookmarks Bar", 1, 1),
	}
	remoteA := bm("rA", "u1", "A renamed", "Bookmarks Bar", 0, 1)
	remoteC := bm("rC", "u3", "C", "Other Bookmarks", 0, 1)

	got := Classify([]Item{remoteA, remoteC}, local, nil, nil)

	assert.Equal(t, []Update{{Remote: remoteA, Local: local[0]}}, got.ToUpdate)
	assert.Equal(t, []Item{remoteC}, got.ToAdd)
	assert.Empty(t, got.Suppressed)
}

func TestClassifyTombstones(t *testing.T) {
	tests := []struct {
		name      string
		created   int64
		deletedAt int64
		wantAdd   bool
		wantSuppr bool
	}{
		{name: "tie favors deletion", created: 2000, deletedAt: 2000, wantSuppr: true},
		{name: "older item suppressed", created: 1000, deletedAt: 2000, wantSuppr: true},
		{name: "re-creation after deletion wins", created: 3000, deletedAt: 2000, wantAdd: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := []Item{bm("r", "u1", "X", "toolbar", 0, tt.created)}
			got := Classify(remote, nil, []Tombstone{{URL: "u1", DeletedAt: tt.deletedAt}}, nil)
			assert.Equal(t, tt.wantAdd, len(got.ToAdd) == 1)
			assert.Equal(t, tt.wantSuppr, len(got.Suppressed) == 1)
		})
	}
}

func TestClassifyLocallyModifiedWins(t *testing.T) {
	local := []Item{bm("L1", "u1", "mine", "Bookmarks Bar", 0, 1)}
	remote := []Item{bm("r", "u1", "theirs", "Bookmarks Bar", 3, 1)}

	got := Classify(remote, local, nil, map[string]bool{"L1": true})
	assert.Empty(t, got.ToUpdate)
	assert.Equal(t, remote, got.Suppressed)
}

func TestClassifyNoOpAcrossRootNames(t *testing.T) {
	local := []Item{bm("L1", "u1", "Go", "Bookmarks Bar/Dev", 2, 1)}
	remote := []Item{bm("r", "u1", "Go", "Bookmarks Toolbar/Dev", 2, 99)}

	got := Classify(remote, local, nil, nil)
	assert.Empty(t, got.ToAdd)
	assert.Empty(t, got.ToUpdate)
	assert.Empty(t, got.Suppressed)
}

func TestClassifyFolders(t *testing.T) {
	local := []Item{{Kind: KindFolder, ID: "F", Title: "Work", FolderPath: "Bookmarks Bar", Index: 0}}
	remote := []Item{
		{Kind: KindFolder, Title: "Work", FolderPath: "Bookmarks Toolbar", Index: 4},
		{Kind: KindFolder, Title: "Play", FolderPath: "Bookmarks Toolbar", Index: 5},
		{Kind: KindFolder, Title: "Play", FolderPath: "toolbar", Index: 5},
	}

	got := Classify(remote, local, nil, nil)
	require.Len(t, got.ToAdd, 1)
	assert.Equal(t, "Play", got.ToAdd[0].Title)
	assert.Empty(t, got.ToUpdate)
}

func TestClassifyFolderTitlesAreCaseSensitive(t *testing.T) {
	local := []Item{
		{Kind: KindFolder, ID: "F", Title: "Work", FolderPath: "Bookmarks Bar", Index: 0},
		{Kind: KindFolder, ID: "G", Title: "Go", FolderPath: "Bookmarks Bar/Work", Index: 0},
	}
	remote := []Item{
		{Kind: KindFolder, Title: "Work", FolderPath: "BOOKMARKS BAR", Index: 0},
		{Kind: KindFolder, Title: "work", FolderPath: "Bookmarks Bar", Index: 1},
		{Kind: KindFolder, Title: "Go", FolderPath: "Bookmarks Bar/work", Index: 0},
	}

	got := Classify(remote, local, nil, nil)
	require.Len(t, got.ToAdd, 2)
	assert.Equal(t, "work", got.ToAdd[0].Title)
	assert.Equal(t, "Go", got.ToAdd[1].Title)
	assert.Equal(t, "Bookmarks Bar/work", got.ToAdd[1].FolderPath)
}

func TestClassifyDuplicateRemoteURL(t *testing.T) {
	remote := []Item{
		bm("r2", "u1", "second", "Bookmarks Bar", 5, 1),
		bm("r1", "u1", "first", "Bookmarks Bar", 1, 1),
	}
	got := Classify(remote, nil, nil, nil)
	require.Len(t, got.ToAdd, 1)
	assert.Equal(t, "first", got.ToAdd[0].Title)
}

func TestClassifyOrderIndependent(t *testing.T) {
	local := []Item{
		bm("A", "u1", "A", "Bookmarks Bar", 0, 1),
		bm("B", "u2", "B", "Bookmarks Bar", 1, 1),
		bm("B2", "u2", "B dup", "Other Bookmarks", 0, 1),
		bm("D", "u4", "D", "Bookmarks Bar", 2, 1),
	}
	remote := []Item{
		bm("", "u1", "A'", "Bookmarks Bar", 0, 1),
		bm("", "u2", "B", "Bookmarks Bar", 3, 1),
		bm("", "u3", "C", "Bookmarks Bar/New", 0, 5),
		bm("", "u5", "E", "Bookmarks Bar", 4, 1),
		bm("", "u4", "D", "Bookmarks Bar", 2, 1),
		{Kind: KindFolder, Title: "New", FolderPath: "Bookmarks Bar", Index: 1},
	}
	tombs := []Tombstone{{URL: "u5", DeletedAt: 10}}
	modified := map[string]bool{"D": true}

	want := Classify(remote, local, tombs, modified)

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		rr := append([]Item(nil), remote...)
		ll := append([]Item(nil), local...)
		r.Shuffle(len(rr), func(a, b int) { rr[a], rr[b] = rr[b], rr[a] })
		r.Shuffle(len(ll), func(a, b int) { ll[a], ll[b] = ll[b], ll[a] })
		assert.Equal(t, want, Classify(rr, ll, tombs, modified))
	}

	assert.Len(t, want.ToAdd, 2)
	assert.Len(t, want.ToUpdate, 2)
	assert.Len(t, want.Suppressed, 2)
}

func TestDedupeBookmarks(t *testing.T) {
	items := []Item{
		bm("2", "u1", "b", "toolbar", 3, 1),
		bm("1", "u1", "a", "toolbar", 1, 1),
		{Kind: KindFolder, Title: "F", FolderPath: "toolbar", Index: 2},
	}
	got := DedupeBookmarks(items)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.True(t, got[1].IsFolder())
}
