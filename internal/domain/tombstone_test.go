package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMergeTombstones(t *testing.T) {
	a := []Tombstone{{URL: "u1", DeletedAt: 100}, {URL: "u2", DeletedAt: 300}}
	b := []Tombstone{{URL: "u1", DeletedAt: 200}, {URL: "u3", DeletedAt: 50}, {URL: "u2", DeletedAt: 10}}

	want := []Tombstone{{URL: "u1", DeletedAt: 200}, {URL: "u2", DeletedAt: 300}, {URL: "u3", DeletedAt: 50}}

	t.Run("keeps max deletedAt", func(t *testing.T) {
		assert.Equal(t, want, MergeTombstones(a, b))
	})
	t.Run("commutative", func(t *testing.T) {
		assert.Equal(t, MergeTombstones(a, b), MergeTombstones(b, a))
	})
	t.Run("idempotent", func(t *testing.T) {
		m := MergeTombstones(a, b)
		assert.Equal(t, m, MergeTombstones(m, m))
		assert.Equal(t, m, MergeTombstones(m))
	})
	t.Run("drops empty urls", func(t *testing.T) {
		assert.Empty(t, MergeTombstones([]Tombstone{{URL: "", DeletedAt: 1}}))
	})
}

func TestFilterApplicable(t *testing.T) {
	remote := []Tombstone{
		{URL: "old", DeletedAt: 500},
		{URL: "boundary", DeletedAt: 1000},
		{URL: "new", DeletedAt: 1500},
		{URL: "known", DeletedAt: 200},
	}
	local := []Tombstone{{URL: "known", DeletedAt: 100}}

	t.Run("first sync applies nothing", func(t *testing.T) {
		assert.Empty(t, FilterApplicable(remote, local, 0))
		assert.NotNil(t, FilterApplicable(remote, local, 0))
	})

	t.Run("new or known only", func(t *testing.T) {
		got := FilterApplicable(remote, local, 1000)
		assert.Equal(t, []Tombstone{{URL: "known", DeletedAt: 200}, {URL: "new", DeletedAt: 1500}}, got)
	})

	t.Run("equality is not newer", func(t *testing.T) {
		got := FilterApplicable([]Tombstone{{URL: "boundary", DeletedAt: 1000}}, nil, 1000)
		assert.Empty(t, got)
	})
}

func TestGCTombstones(t *testing.T) {
	now := time.UnixMilli(100 * 24 * 3600 * 1000)
	fresh := now.Add(-24 * time.Hour).UnixMilli()
	stale := now.Add(-31 * 24 * time.Hour).UnixMilli()

	ts := []Tombstone{
		{URL: "fresh", DeletedAt: fresh},
		{URL: "stale", DeletedAt: stale},
		{URL: "unknown"},
	}

	got := GCTombstones(ts, now, TombstoneMaxAge)
	assert.Equal(t, []Tombstone{{URL: "fresh", DeletedAt: fresh}, {URL: "unknown"}}, got)
}

func TestDropSuperseded(t *testing.T) {
	ts := []Tombstone{
		{URL: "recreated", DeletedAt: 100},
		{URL: "tie", DeletedAt: 200},
		{URL: "older", DeletedAt: 300},
		{URL: "absent", DeletedAt: 400},
		{URL: "folder", DeletedAt: 50},
	}
	items := []Item{
		{Kind: KindBookmark, URL: "recreated", CreatedAt: 90},
		{Kind: KindBookmark, URL: "recreated", CreatedAt: 150},
		{Kind: KindBookmark, URL: "tie", CreatedAt: 200},
		{Kind: KindBookmark, URL: "older", CreatedAt: 10},
		{Kind: KindFolder, Title: "folder", CreatedAt: 500},
	}

	got := DropSuperseded(ts, items)
	assert.Equal(t, []Tombstone{
		{URL: "tie", DeletedAt: 200},
		{URL: "older", DeletedAt: 300},
		{URL: "absent", DeletedAt: 400},
		{URL: "folder", DeletedAt: 50},
	}, got)
	assert.Len(t, ts, 5)
}

func TestSameTombstones(t *testing.T) {
	a := []Tombstone{{URL: "b", DeletedAt: 2}, {URL: "a", DeletedAt: 1}}
	b := []Tombstone{{URL: "a", DeletedAt: 1}, {URL: "b", DeletedAt: 2}}
	assert.True(t, SameTombstones(a, b))
	assert.False(t, SameTombstones(a, b[:1]))
	assert.False(t, SameTombstones(a, []Tombstone{{URL: "a", DeletedAt: 1}, {URL: "b", DeletedAt: 3}}))
}

func TestSyncStateBookkeeping(t *testing.T) {
	s := NewSyncState()
	assert.False(t, s.HasSynced())

	s.RecordDeletion("u1", 100)
	s.RecordDeletion("u1", 50)
	assert.Equal(t, []Tombstone{{URL: "u1", DeletedAt: 100}}, s.Tombstones)

	assert.True(t, s.ForgetDeletion("u1"))
	assert.False(t, s.ForgetDeletion("u1"))
	assert.Empty(t, s.Tombstones)

	s.MarkModified("b", "a", "")
	assert.Equal(t, []string{"a", "b"}, s.ModifiedIDs())

	c := s.Clone()
	s.ClearModified("a")
	assert.Equal(t, []string{"b"}, s.ModifiedIDs())
	assert.Equal(t, []string{"a", "b"}, c.ModifiedIDs())
}
