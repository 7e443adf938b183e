package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/host"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/mutator"
	"github.com/MrSnakeDoc/marksync/internal/sources/homepage"
)

// DeletionSource reports URLs the user deleted locally.
type DeletionSource interface {
	DeletedURLs(ctx context.Context) (map[string]bool, error)
}

// HomepageImporter periodically copies Homepage bookmarks into the host tree.
// Only missing entries are created, so user edits to imported items stick.
type HomepageImporter struct {
	loader        *homepage.BookmarkLoader
	mapper        *homepage.BookmarkMapper
	tree          host.Tree
	mutator       *mutator.Mutator
	deletions     DeletionSource
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewHomepageImporter creates a new importer. Writes go through a mutator
// of its own so the host reports them as ordinary local edits.
// deletions may be nil.
func NewHomepageImporter(
	bookmarkFile string,
	tree host.Tree,
	deletions DeletionSource,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *HomepageImporter {
	return &HomepageImporter{
		loader:        homepage.NewBookmarkLoader(bookmarkFile),
		mapper:        homepage.NewBookmarkMapper(domain.RootToolbar),
		tree:          tree,
		mutator:       mutator.New(tree, log, nil),
		deletions:     deletions,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start begins the periodic import process
func (hi *HomepageImporter) Start(ctx context.Context) error {
	// Import immediately on start
	if _, err := hi.Import(ctx); err != nil {
		return fmt.Errorf("initial homepage import failed: %w", err)
	}

	ticker := time.NewTicker(hi.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := hi.Import(ctx); err != nil {
					hi.logger.Error("failed to import homepage bookmarks",
						logger.Error(err))
				}
			case <-hi.manualTrigger:
				hi.logger.Info("manual homepage import triggered")
				if _, err := hi.Import(ctx); err != nil {
					hi.logger.Error("failed to import homepage bookmarks",
						logger.Error(err))
				}
			case <-hi.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the importer
func (hi *HomepageImporter) Stop() {
	close(hi.stopCh)
}

// Import loads bookmarks.yaml and creates what the host tree lacks.
// It returns how many items were created.
func (hi *HomepageImporter) Import(ctx context.Context) (int, error) {
	config, err := hi.loader.Load()
	if err != nil {
		return 0, fmt.Errorf("failed to load bookmarks: %w", err)
	}

	items, err := hi.mapper.MapBookmarks(config)
	if err != nil {
		return 0, fmt.Errorf("failed to map bookmarks: %w", err)
	}

	root, err := hi.tree.GetTree(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read host tree: %w", err)
	}
	local := domain.Flatten(root)

	var deleted map[string]bool
	if hi.deletions != nil {
		deleted, err = hi.deletions.DeletedURLs(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to read local tombstones: %w", err)
		}
	}

	missing := missingItems(items, local, deleted)
	if len(missing) == 0 {
		hi.logger.Debug("homepage bookmarks already present",
			logger.String("file", hi.loader.Path()),
			logger.Int("count", len(items)))
		return 0, nil
	}

	hi.mutator.Reset()
	res := hi.mutator.ApplyAdds(ctx, missing)

	hi.logger.Info("imported homepage bookmarks",
		logger.String("file", hi.loader.Path()),
		logger.Int("created", res.Applied),
		logger.Int("failed", len(res.Failed)))

	return res.Applied, nil
}

// missingItems keeps the imported items the host does not have yet. Bookmarks
// match by URL anywhere in the tree, folders by normalized path. A missing
// folder is only created when it receives at least one bookmark. Missing
// items are appended after the existing siblings of their folder.
func missingItems(items, local []domain.Item, deleted map[string]bool) []domain.Item {
	urls := make(map[string]bool, len(local))
	folders := make(map[string]bool)
	siblings := make(map[string]int)
	for _, it := range local {
		parent := domain.NormalizePath(it.FolderPath)
		siblings[parent]++
		if it.IsBookmark() {
			urls[it.URL] = true
		} else {
			folders[domain.JoinPath(parent, it.Title)] = true
		}
	}

	wanted := make(map[string]bool)
	for _, it := range items {
		if it.IsBookmark() && !urls[it.URL] && !deleted[it.URL] {
			wanted[domain.NormalizePath(it.FolderPath)] = true
		}
	}

	var missing []domain.Item
	for _, it := range items {
		parent := domain.NormalizePath(it.FolderPath)
		if it.IsBookmark() {
			if urls[it.URL] || deleted[it.URL] {
				continue
			}
		} else {
			path := domain.JoinPath(parent, it.Title)
			if folders[path] || !wanted[path] {
				continue
			}
		}
		it.Index = siblings[parent]
		siblings[parent]++
		missing = append(missing, it)
	}
	return missing
}
