package host

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

func TestFileTreeCreatesAndPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tree.yaml")
	flavor, err := LookupFlavor("firefox")
	require.NoError(t, err)
	log := logger.New("error", false)

	ft, err := OpenFileTree(path, flavor, log)
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)

	folder, err := ft.Create(ctx, CreateDetails{ParentID: "toolbar_____", Title: "Work"})
	require.NoError(t, err)
	_, err = ft.Create(ctx, CreateDetails{ParentID: folder.ID, Title: "Go", URL: "https://go.dev"})
	require.NoError(t, err)

	reopened, err := OpenFileTree(path, flavor, log)
	require.NoError(t, err)
	root, err := reopened.GetTree(ctx)
	require.NoError(t, err)

	items := domain.Flatten(root)
	require.Len(t, items, 2)
	assert.Equal(t, "Bookmarks Toolbar/Work", items[1].FolderPath)
	assert.Equal(t, "https://go.dev", items[1].URL)
	assert.Equal(t, folder.ID, items[0].ID)
}

func TestFileTreeKeepsMutationWhenSaveFails(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "trees")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "tree.yaml")
	flavor, err := LookupFlavor("chrome")
	require.NoError(t, err)
	log := logger.New("error", false)

	ft, err := OpenFileTree(path, flavor, log)
	require.NoError(t, err)
	require.False(t, ft.Dirty())

	// A regular file where the directory was makes every write fail.
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("blocked"), 0o644))

	n, err := ft.Create(ctx, CreateDetails{ParentID: "1", Title: "Go", URL: "https://go.dev"})
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.True(t, ft.Dirty())

	root, err := ft.GetTree(ctx)
	require.NoError(t, err)
	assert.True(t, domain.BookmarkURLs(domain.Flatten(root))["https://go.dev"])

	require.NoError(t, os.Remove(dir))
	require.NoError(t, ft.Flush())
	assert.False(t, ft.Dirty())

	reopened, err := OpenFileTree(path, flavor, log)
	require.NoError(t, err)
	root, err = reopened.GetTree(ctx)
	require.NoError(t, err)
	assert.True(t, domain.BookmarkURLs(domain.Flatten(root))["https://go.dev"])
}

func TestFileTreeAssignsMissingIDs(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tree.yaml")
	content := `flavor: chrome
roots:
  - id: "1"
    title: Bookmarks Bar
    children:
      - title: Go
        url: https://go.dev
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	flavor, err := LookupFlavor("chrome")
	require.NoError(t, err)
	ft, err := OpenFileTree(path, flavor, logger.New("error", false))
	require.NoError(t, err)

	root, err := ft.GetTree(ctx)
	require.NoError(t, err)
	require.Len(t, root.Children, 3)
	items := domain.Flatten(root)
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].ID)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), items[0].ID)
}

func TestFileTreeReloadEmitsEvents(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tree.yaml")
	flavor, err := LookupFlavor("chrome")
	require.NoError(t, err)

	ft, err := OpenFileTree(path, flavor, logger.New("error", false))
	require.NoError(t, err)
	bmk, err := ft.Create(ctx, CreateDetails{ParentID: "1", Title: "Go", URL: "https://go.dev"})
	require.NoError(t, err)

	events := ft.Events()

	// Reloading our own write is a no-op.
	require.NoError(t, ft.Reload())
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}

	content := `flavor: chrome
roots:
  - id: "1"
    title: Bookmarks Bar
  - id: "2"
    title: Other Bookmarks
  - id: "3"
    title: Mobile Bookmarks
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, ft.Reload())

	select {
	case ev := <-events:
		assert.Equal(t, EventRemoved, ev.Type)
		assert.Equal(t, bmk.ID, ev.ID)
		assert.Equal(t, "https://go.dev", ev.Node.URL)
	case <-time.After(time.Second):
		t.Fatal("expected removal event")
	}
}

func TestFileTreeWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "tree.yaml")
	flavor, err := LookupFlavor("chrome")
	require.NoError(t, err)
	ft, err := OpenFileTree(path, flavor, logger.New("error", false))
	require.NoError(t, err)
	require.NoError(t, ft.Watch(ctx))
	defer func() { _ = ft.Close() }()

	events := ft.Events()

	content := `flavor: chrome
roots:
  - id: "1"
    title: Bookmarks Bar
    children:
      - id: ext-1
        title: Added by hand
        url: https://hand.example.com
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	select {
	case ev := <-events:
		assert.Equal(t, EventCreated, ev.Type)
		assert.Equal(t, "ext-1", ev.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the external edit")
	}
}
