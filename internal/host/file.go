package host

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/utils"
)

// reloadDelay coalesces bursts of file system events into one reload.
const reloadDelay = 100 * time.Millisecond

// treeDocument is the on-disk layout of a FileTree.
type treeDocument struct {
	Flavor string         `yaml:"flavor"`
	Roots  []*domain.Node `yaml:"roots"`
}

// FileTree is a MemoryTree persisted to a YAML file. External edits of the
// file are picked up by Watch and surface as change events.
type FileTree struct {
	*MemoryTree

	path   string
	flavor Flavor
	log    logger.Logger

	writeMu  sync.Mutex
	lastHash string
	dirty    bool

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// OpenFileTree loads path, creating it with the flavor's root containers when missing.
func OpenFileTree(path string, flavor Flavor, log logger.Logger) (*FileTree, error) {
	ft := &FileTree{
		MemoryTree: NewMemoryTree(flavor),
		path:       path,
		flavor:     flavor,
		log:        log,
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Info("bookmark tree file not found, creating it",
			logger.String("file", path),
			logger.String("flavor", flavor.Name))
		if err := ft.save(); err != nil {
			return nil, err
		}
		return ft, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read tree file: %w", err)
	}

	root, missingIDs, err := ft.parse(data)
	if err != nil {
		return nil, err
	}
	ft.MemoryTree.mu.Lock()
	ft.MemoryTree.load(root)
	ft.MemoryTree.mu.Unlock()
	ft.lastHash = hashBytes(data)

	if missingIDs {
		if err := ft.save(); err != nil {
			return nil, err
		}
	}
	return ft, nil
}

// Path returns the backing file.
func (ft *FileTree) Path() string { return ft.path }

func (ft *FileTree) parse(data []byte) (*domain.Node, bool, error) {
	var doc treeDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, false, fmt.Errorf("failed to parse tree yaml: %w", err)
	}

	root := &domain.Node{ID: RootID}
	byTitle := make(map[string]bool, len(doc.Roots))
	for _, r := range doc.Roots {
		if r == nil {
			continue
		}
		root.Children = append(root.Children, r)
		byTitle[r.Title] = true
	}
	for _, c := range ft.flavor.Roots {
		if !byTitle[c.Title] {
			root.Children = append(root.Children, &domain.Node{ID: c.ID, Title: c.Title})
		}
	}

	missing := false
	domain.Walk(root, func(n *domain.Node) {
		if n.ID == "" {
			missing = true
		}
	})
	return root, missing, nil
}

func (ft *FileTree) save() error {
	ft.writeMu.Lock()
	defer ft.writeMu.Unlock()

	tree, err := ft.MemoryTree.GetTree(context.Background())
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(treeDocument{Flavor: ft.flavor.Name, Roots: tree.Children})
	if err != nil {
		return fmt.Errorf("failed to marshal tree: %w", err)
	}
	if err := utils.WriteFileAtomic(ft.path, data, 0o644); err != nil {
		ft.dirty = true
		return fmt.Errorf("failed to write tree file: %w", err)
	}
	ft.lastHash = hashBytes(data)
	ft.dirty = false
	return nil
}

// persist saves after a mutation. The mutation is already live and its
// events emitted, so a failed write only leaves the file behind; the next
// successful save or Flush catches it up.
func (ft *FileTree) persist() {
	if err := ft.save(); err != nil {
		ft.log.Warn("bookmark tree changed but the file could not be written",
			logger.String("file", ft.path),
			logger.Error(err))
	}
}

// Dirty reports whether the file lags behind the in-memory tree.
func (ft *FileTree) Dirty() bool {
	ft.writeMu.Lock()
	defer ft.writeMu.Unlock()
	return ft.dirty
}

// Flush writes the tree when an earlier save failed.
func (ft *FileTree) Flush() error {
	if !ft.Dirty() {
		return nil
	}
	return ft.save()
}

// Create creates a node and persists the tree.
func (ft *FileTree) Create(ctx context.Context, d CreateDetails) (*domain.Node, error) {
	n, err := ft.MemoryTree.Create(ctx, d)
	if err != nil {
		return nil, err
	}
	ft.persist()
	return n, nil
}

// Move moves a node and persists the tree.
func (ft *FileTree) Move(ctx context.Context, id, parentID string, index int) (*domain.Node, error) {
	n, err := ft.MemoryTree.Move(ctx, id, parentID, index)
	if err != nil {
		return nil, err
	}
	ft.persist()
	return n, nil
}

// Update renames a node and persists the tree.
func (ft *FileTree) Update(ctx context.Context, id, title string) (*domain.Node, error) {
	n, err := ft.MemoryTree.Update(ctx, id, title)
	if err != nil {
		return nil, err
	}
	ft.persist()
	return n, nil
}

// Remove removes a node and persists the tree.
func (ft *FileTree) Remove(ctx context.Context, id string) error {
	if err := ft.MemoryTree.Remove(ctx, id); err != nil {
		return err
	}
	ft.persist()
	return nil
}

// RemoveTree removes a subtree and persists the tree.
func (ft *FileTree) RemoveTree(ctx context.Context, id string) error {
	if err := ft.MemoryTree.RemoveTree(ctx, id); err != nil {
		return err
	}
	ft.persist()
	return nil
}

// Watch starts reloading the tree when the file is edited by someone else.
// The parent directory is watched because atomic writes replace the file.
func (ft *FileTree) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(ft.path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	ft.watcher = w
	ft.done = make(chan struct{})
	ft.wg.Add(1)
	go ft.processEvents(ctx)

	ft.log.Info("watching bookmark tree file", logger.String("file", ft.path))
	return nil
}

// Close stops the watcher and writes any change an earlier save lost.
func (ft *FileTree) Close() error {
	if err := ft.Flush(); err != nil {
		ft.log.Warn("failed to flush bookmark tree file", logger.Error(err))
	}
	if ft.watcher == nil {
		return nil
	}
	close(ft.done)
	err := ft.watcher.Close()
	ft.wg.Wait()
	ft.watcher = nil
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (ft *FileTree) processEvents(ctx context.Context) {
	defer ft.wg.Done()

	target := filepath.Clean(ft.path)
	timer := time.NewTimer(reloadDelay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ft.done:
			return
		case <-ctx.Done():
			return

		case ev, ok := <-ft.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(reloadDelay)

		case <-timer.C:
			if err := ft.Reload(); err != nil {
				ft.log.Warn("failed to reload bookmark tree file",
					logger.String("file", ft.path),
					logger.Error(err))
			}

		case err, ok := <-ft.watcher.Errors:
			if !ok {
				return
			}
			ft.log.Warn("tree file watcher error", logger.Error(err))
		}
	}
}

// Reload re-reads the file and applies it when it differs from what this
// process last wrote or read.
func (ft *FileTree) Reload() error {
	data, err := os.ReadFile(ft.path)
	if err != nil {
		return fmt.Errorf("failed to read tree file: %w", err)
	}

	ft.writeMu.Lock()
	same := hashBytes(data) == ft.lastHash
	ft.writeMu.Unlock()
	if same {
		return nil
	}

	root, missingIDs, err := ft.parse(data)
	if err != nil {
		return err
	}
	ft.MemoryTree.Replace(root)

	ft.writeMu.Lock()
	ft.lastHash = hashBytes(data)
	ft.writeMu.Unlock()

	ft.log.Info("bookmark tree reloaded after external edit", logger.String("file", ft.path))

	if missingIDs {
		return ft.save()
	}
	return nil
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
