package host

import (
	"context"
	"errors"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

var (
	// ErrNotFound is returned for unknown node IDs.
	ErrNotFound = errors.New("bookmark node not found")
	// ErrRootModification is returned when a caller tries to move, rename or remove a root container.
	ErrRootModification = errors.New("root containers cannot be modified")
	// ErrNotFolder is returned when a bookmark is used as a parent.
	ErrNotFolder = errors.New("parent is not a folder")
	// ErrFolderNotEmpty is returned by Remove on a non-empty folder.
	ErrFolderNotEmpty = errors.New("folder is not empty")
)

// CreateDetails describes a node to create. An empty URL creates a folder.
// A nil Index appends.
type CreateDetails struct {
	ParentID string
	Title    string
	URL      string
	Index    *int
}

// Tree is the host's native bookmark storage.
type Tree interface {
	// GetTree returns a copy of the whole tree. The root's children are the root containers.
	GetTree(ctx context.Context) (*domain.Node, error)
	// GetChildren returns copies of the direct children of parentID, without their own children.
	GetChildren(ctx context.Context, parentID string) ([]*domain.Node, error)
	Create(ctx context.Context, d CreateDetails) (*domain.Node, error)
	Move(ctx context.Context, id, parentID string, index int) (*domain.Node, error)
	Update(ctx context.Context, id, title string) (*domain.Node, error)
	// Remove deletes a bookmark or an empty folder.
	Remove(ctx context.Context, id string) error
	// RemoveTree deletes a folder and everything below it.
	RemoveTree(ctx context.Context, id string) error
}

// EventType names a host change notification.
type EventType string

const (
	EventCreated EventType = "created"
	EventRemoved EventType = "removed"
	EventChanged EventType = "changed"
	EventMoved   EventType = "moved"
)

// Event is a change notification. Node is a snapshot of the affected node;
// for removals it includes the removed subtree.
type Event struct {
	Type     EventType
	ID       string
	ParentID string
	Node     *domain.Node
}

// Notifier delivers change events on a bounded channel.
type Notifier interface {
	Events() <-chan Event
}

// WatchedTree is a Tree that also reports changes.
type WatchedTree interface {
	Tree
	Notifier
}
