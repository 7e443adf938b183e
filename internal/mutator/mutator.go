package mutator

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/host"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

// DefaultConcurrency bounds parallel folder resolution.
const DefaultConcurrency = 4

// WriteRecorder is told about every host node the mutator touches.
type WriteRecorder interface {
	RecordWrite(id string)
}

// ItemError describes a single add/update/delete that failed and was skipped.
type ItemError struct {
	Op   string
	Item domain.Item
	Err  error
}

func (e *ItemError) Error() string {
	ref := e.Item.URL
	if ref == "" {
		ref = e.Item.FolderPath + "/" + e.Item.Title
	}
	return fmt.Sprintf("%s %s: %v", e.Op, ref, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// Result counts applied and skipped operations.
type Result struct {
	Applied int
	Failed  []*ItemError
}

func (r *Result) fail(op string, it domain.Item, err error) {
	r.Failed = append(r.Failed, &ItemError{Op: op, Item: it, Err: err})
}

// Mutator applies classified changes to the host tree.
type Mutator struct {
	tree        host.Tree
	log         logger.Logger
	folders     *FolderResolver
	recorder    WriteRecorder
	concurrency int
}

// New creates a Mutator. rec may be nil.
func New(tree host.Tree, log logger.Logger, rec WriteRecorder) *Mutator {
	m := &Mutator{
		tree:        tree,
		log:         log,
		recorder:    rec,
		concurrency: DefaultConcurrency,
	}
	m.folders = NewFolderResolver(tree, log, m.record)
	return m
}

// Folders exposes the resolver.
func (m *Mutator) Folders() *FolderResolver { return m.folders }

// Reset drops cached folder lookups. Call it at the start of every run.
func (m *Mutator) Reset() { m.folders.Reset() }

func (m *Mutator) record(id string) {
	if m.recorder != nil && id != "" {
		m.recorder.RecordWrite(id)
	}
}

type addGroup struct {
	key      string
	path     string
	depth    int
	items    []domain.Item
	parentID string
	err      error
}

// ApplyAdds materializes items. Items are grouped by parent folder and applied
// in ascending index order within each group, never reordered by kind.
// Shallower groups go first so folder items land before their contents.
func (m *Mutator) ApplyAdds(ctx context.Context, items []domain.Item) Result {
	var res Result
	if len(items) == 0 {
		return res
	}

	groups := groupByParent(items)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, grp := range groups {
		g.Go(func() error {
			grp.parentID, grp.err = m.folders.Resolve(gctx, grp.path)
			return nil
		})
	}
	_ = g.Wait()

	for _, grp := range groups {
		if grp.err != nil {
			m.log.Warn("failed to resolve target folder, skipping its items",
				logger.String("folder_path", grp.path),
				logger.Int("items", len(grp.items)),
				logger.Error(grp.err))
			for _, it := range grp.items {
				res.fail("add", it, grp.err)
			}
			continue
		}
		for _, it := range grp.items {
			if err := ctx.Err(); err != nil {
				res.fail("add", it, err)
				continue
			}
			var err error
			if it.IsFolder() {
				err = m.addFolder(ctx, grp.parentID, it)
			} else {
				err = m.addBookmark(ctx, grp.parentID, it)
			}
			if err != nil {
				m.log.Warn("failed to add item, skipping",
					logger.String("kind", string(it.Kind)),
					logger.String("title", it.Title),
					logger.String("url", it.URL),
					logger.String("folder_path", it.FolderPath),
					logger.Error(err))
				res.fail("add", it, err)
				continue
			}
			res.Applied++
		}
	}
	return res
}

func groupByParent(items []domain.Item) []*addGroup {
	byKey := make(map[string]*addGroup)
	for _, it := range items {
		key := domain.NormalizePath(it.FolderPath)
		grp, ok := byKey[key]
		if !ok {
			grp = &addGroup{key: key, path: it.FolderPath, depth: len(domain.SplitPath(key))}
			byKey[key] = grp
		}
		grp.items = append(grp.items, it)
	}

	groups := make([]*addGroup, 0, len(byKey))
	for _, grp := range byKey {
		domain.SortByPlacement(grp.items)
		groups = append(groups, grp)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].depth != groups[j].depth {
			return groups[i].depth < groups[j].depth
		}
		return groups[i].key < groups[j].key
	})
	return groups
}

func (m *Mutator) addBookmark(ctx context.Context, parentID string, it domain.Item) error {
	idx := it.Index
	n, err := m.tree.Create(ctx, host.CreateDetails{
		ParentID: parentID,
		Title:    it.Title,
		URL:      it.URL,
		Index:    &idx,
	})
	if err != nil {
		return err
	}
	m.record(n.ID)
	return nil
}

// addFolder finds or creates the folder and places it at the item's index.
func (m *Mutator) addFolder(ctx context.Context, parentID string, it domain.Item) error {
	idx := it.Index
	id, created, err := m.folders.Ensure(ctx, parentID, it.Title, &idx)
	if err != nil {
		return err
	}
	if created {
		return nil
	}

	kids, err := m.tree.GetChildren(ctx, parentID)
	if err != nil {
		return err
	}
	for _, k := range kids {
		if k.ID == id && k.Index != idx {
			if _, err := m.tree.Move(ctx, id, parentID, idx); err != nil {
				return err
			}
			m.record(id)
			break
		}
	}
	return nil
}

// ApplyUpdates renames and moves local items to match their remote versions.
// A title change only renames; a folder or index change is a single move.
func (m *Mutator) ApplyUpdates(ctx context.Context, updates []domain.Update) Result {
	var res Result
	if len(updates) == 0 {
		return res
	}

	ordered := append([]domain.Update(nil), updates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].Remote, ordered[j].Remote
		pa, pb := domain.NormalizePath(a.FolderPath), domain.NormalizePath(b.FolderPath)
		if pa != pb {
			return pa < pb
		}
		return a.Index < b.Index
	})

	for _, u := range ordered {
		if err := m.applyUpdate(ctx, u); err != nil {
			m.log.Warn("failed to update item, skipping",
				logger.String("id", u.Local.ID),
				logger.String("url", u.Remote.URL),
				logger.Error(err))
			res.fail("update", u.Remote, err)
			continue
		}
		res.Applied++
	}
	return res
}

func (m *Mutator) applyUpdate(ctx context.Context, u domain.Update) error {
	r, l := u.Remote, u.Local
	if r.Title != l.Title {
		if _, err := m.tree.Update(ctx, l.ID, r.Title); err != nil {
			return fmt.Errorf("rename: %w", err)
		}
		m.record(l.ID)
	}

	if domain.NormalizePath(r.FolderPath) != domain.NormalizePath(l.FolderPath) || r.Index != l.Index {
		parentID, err := m.folders.Resolve(ctx, r.FolderPath)
		if err != nil {
			return fmt.Errorf("resolve target: %w", err)
		}
		if _, err := m.tree.Move(ctx, l.ID, parentID, r.Index); err != nil {
			return fmt.Errorf("move: %w", err)
		}
		m.record(l.ID)
	}
	return nil
}

// ApplyDeletions removes every local bookmark whose URL carries an applicable
// tombstone. The bookmark's own CreatedAt is not consulted. Locally modified
// IDs are exempt.
func (m *Mutator) ApplyDeletions(ctx context.Context, applicable []domain.Tombstone, local []domain.Item, modified map[string]bool) Result {
	var res Result
	if len(applicable) == 0 {
		return res
	}

	doomed := make(map[string]bool, len(applicable))
	for _, t := range applicable {
		doomed[t.URL] = true
	}

	for _, it := range local {
		if !it.IsBookmark() || !doomed[it.URL] {
			continue
		}
		if modified[it.ID] {
			m.log.Debug("keeping locally modified bookmark despite tombstone",
				logger.String("id", it.ID),
				logger.String("url", it.URL))
			continue
		}
		if err := m.tree.Remove(ctx, it.ID); err != nil {
			m.log.Warn("failed to remove tombstoned bookmark, skipping",
				logger.String("id", it.ID),
				logger.String("url", it.URL),
				logger.Error(err))
			res.fail("delete", it, err)
			continue
		}
		m.record(it.ID)
		res.Applied++
	}
	return res
}

// Clear removes everything below the root containers.
func (m *Mutator) Clear(ctx context.Context) Result {
	var res Result
	roots, err := m.tree.GetChildren(ctx, host.RootID)
	if err != nil {
		res.fail("clear", domain.Item{Kind: domain.KindFolder}, err)
		return res
	}
	for _, root := range roots {
		kids, err := m.tree.GetChildren(ctx, root.ID)
		if err != nil {
			res.fail("clear", domain.Item{Kind: domain.KindFolder, Title: root.Title}, err)
			continue
		}
		for _, k := range kids {
			if k.IsFolder() {
				err = m.tree.RemoveTree(ctx, k.ID)
			} else {
				err = m.tree.Remove(ctx, k.ID)
			}
			it := domain.Item{ID: k.ID, Title: k.Title, URL: k.URL, FolderPath: root.Title, Kind: domain.KindBookmark}
			if k.IsFolder() {
				it.Kind = domain.KindFolder
			}
			if err != nil {
				m.log.Warn("failed to clear node", logger.String("id", k.ID), logger.Error(err))
				res.fail("clear", it, err)
				continue
			}
			m.record(k.ID)
			res.Applied++
		}
	}
	m.folders.Reset()
	return res
}
