package mutator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/host"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

// FolderResolver maps folder paths to host folder IDs, creating missing
// folders. Find-or-create is a single critical section per (parentID, title).
type FolderResolver struct {
	tree   host.Tree
	log    logger.Logger
	record func(id string)

	group singleflight.Group

	mu    sync.Mutex
	cache map[string]string // parentID + "\x00" + title -> folder ID
}

// NewFolderResolver creates a resolver over tree. record is called with the
// ID of every node the resolver writes.
func NewFolderResolver(tree host.Tree, log logger.Logger, record func(id string)) *FolderResolver {
	if record == nil {
		record = func(string) {}
	}
	return &FolderResolver{
		tree:   tree,
		log:    log,
		record: record,
		cache:  make(map[string]string),
	}
}

// Reset forgets cached lookups.
func (r *FolderResolver) Reset() {
	r.mu.Lock()
	r.cache = make(map[string]string)
	r.mu.Unlock()
}

// Resolve returns the ID of the folder at path, creating missing segments.
// The first segment selects the host root container by canonical name, then by
// case-insensitive title. Paths rooted elsewhere land under the "other" container.
func (r *FolderResolver) Resolve(ctx context.Context, path string) (string, error) {
	roots, err := r.tree.GetChildren(ctx, host.RootID)
	if err != nil {
		return "", fmt.Errorf("failed to list root containers: %w", err)
	}
	if len(roots) == 0 {
		return "", fmt.Errorf("host tree has no root containers")
	}

	segs := domain.SplitPath(path)
	parentID, consumed := pickRoot(roots, segs)
	for _, seg := range segs[consumed:] {
		id, _, err := r.Ensure(ctx, parentID, seg, nil)
		if err != nil {
			return "", err
		}
		parentID = id
	}
	return parentID, nil
}

func pickRoot(roots []*domain.Node, segs []string) (string, int) {
	if len(segs) > 0 {
		if canonical, ok := domain.CanonicalRoot(segs[0]); ok {
			for _, c := range roots {
				if rc, ok := domain.CanonicalRoot(c.Title); ok && rc == canonical {
					return c.ID, 1
				}
			}
		}
		for _, c := range roots {
			if strings.EqualFold(strings.TrimSpace(c.Title), strings.TrimSpace(segs[0])) {
				return c.ID, 1
			}
		}
	}
	for _, c := range roots {
		if rc, ok := domain.CanonicalRoot(c.Title); ok && rc == domain.RootOther {
			return c.ID, 0
		}
	}
	return roots[0].ID, 0
}

// Ensure returns the folder titled title under parentID, creating it at index
// when missing. If a concurrent writer produced a duplicate, the oldest folder
// is kept and the others are merged into it.
func (r *FolderResolver) Ensure(ctx context.Context, parentID, title string, index *int) (string, bool, error) {
	key := parentID + "\x00" + title

	r.mu.Lock()
	if id, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return id, false, nil
	}
	r.mu.Unlock()

	type result struct {
		id      string
		created bool
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		r.mu.Lock()
		if id, ok := r.cache[key]; ok {
			r.mu.Unlock()
			return result{id: id}, nil
		}
		r.mu.Unlock()

		existing, err := r.findFolder(ctx, parentID, title)
		if err != nil {
			return nil, err
		}
		if existing != "" {
			r.remember(key, existing)
			return result{id: existing}, nil
		}

		n, err := r.tree.Create(ctx, host.CreateDetails{ParentID: parentID, Title: title, Index: index})
		if err != nil {
			return nil, fmt.Errorf("failed to create folder %q: %w", title, err)
		}
		r.record(n.ID)

		keeper, err := r.reconcile(ctx, parentID, title)
		if err != nil {
			return nil, err
		}
		if keeper == "" {
			keeper = n.ID
		}
		r.remember(key, keeper)
		return result{id: keeper, created: keeper == n.ID}, nil
	})
	if err != nil {
		return "", false, err
	}
	res := v.(result)
	return res.id, res.created, nil
}

func (r *FolderResolver) remember(key, id string) {
	r.mu.Lock()
	r.cache[key] = id
	r.mu.Unlock()
}

func (r *FolderResolver) findFolder(ctx context.Context, parentID, title string) (string, error) {
	folders, err := r.foldersNamed(ctx, parentID, title)
	if err != nil {
		return "", err
	}
	if len(folders) == 0 {
		return "", nil
	}
	return folders[0].ID, nil
}

// foldersNamed lists folders titled title under parentID, oldest first.
func (r *FolderResolver) foldersNamed(ctx context.Context, parentID, title string) ([]*domain.Node, error) {
	kids, err := r.tree.GetChildren(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children of %s: %w", parentID, err)
	}
	var out []*domain.Node
	for _, k := range kids {
		if k.IsFolder() && k.Title == title {
			out = append(out, k)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DateAdded != out[j].DateAdded {
			return out[i].DateAdded < out[j].DateAdded
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// reconcile collapses duplicate folders titled title under parentID into the
// oldest one and returns its ID.
func (r *FolderResolver) reconcile(ctx context.Context, parentID, title string) (string, error) {
	folders, err := r.foldersNamed(ctx, parentID, title)
	if err != nil {
		return "", err
	}
	if len(folders) == 0 {
		return "", nil
	}
	keeper := folders[0]
	for _, dup := range folders[1:] {
		r.log.Warn("duplicate folder detected, merging into oldest",
			logger.String("title", title),
			logger.String("keep_id", keeper.ID),
			logger.String("duplicate_id", dup.ID))

		kids, err := r.tree.GetChildren(ctx, dup.ID)
		if err != nil {
			return "", fmt.Errorf("failed to list duplicate folder: %w", err)
		}
		for _, k := range kids {
			if _, err := r.tree.Move(ctx, k.ID, keeper.ID, 1<<30); err != nil {
				return "", fmt.Errorf("failed to migrate %s out of duplicate folder: %w", k.ID, err)
			}
			r.record(k.ID)
		}
		if err := r.tree.Remove(ctx, dup.ID); err != nil {
			return "", fmt.Errorf("failed to remove duplicate folder: %w", err)
		}
		r.record(dup.ID)
	}
	return keeper.ID, nil
}
