package host

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

const eventBuffer = 256

// MemoryTree is an in-process host tree with browser-like semantics.
// Mutations are serialized; events are delivered after the lock is released.
type MemoryTree struct {
	mu     sync.RWMutex
	root   *domain.Node
	nodes  map[string]*domain.Node
	roots  map[string]bool
	now    func() time.Time
	newID  func() string
	events chan Event

	subMu      sync.Mutex
	subscribed bool
}

// NewMemoryTree returns an empty tree with the root containers of flavor.
func NewMemoryTree(flavor Flavor) *MemoryTree {
	root := &domain.Node{ID: RootID}
	for _, c := range flavor.Roots {
		root.Children = append(root.Children, &domain.Node{ID: c.ID, Title: c.Title})
	}
	t := &MemoryTree{
		now:    time.Now,
		newID:  uuid.NewString,
		events: make(chan Event, eventBuffer),
	}
	t.load(root)
	return t
}

// load installs root as the current tree and rebuilds indexes.
// Caller holds mu or has exclusive access.
func (t *MemoryTree) load(root *domain.Node) {
	t.root = root
	t.root.ID = RootID
	t.root.ParentID = ""
	t.nodes = make(map[string]*domain.Node)
	t.roots = make(map[string]bool)

	t.nodes[RootID] = root
	for _, c := range root.Children {
		t.roots[c.ID] = true
	}

	stack := []*domain.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for i, c := range n.Children {
			if c.ID == "" {
				c.ID = t.newID()
			}
			c.ParentID = n.ID
			c.Index = i
			t.nodes[c.ID] = c
			stack = append(stack, c)
		}
	}
}

// SetClock replaces the source of DateAdded for nodes created afterwards.
func (t *MemoryTree) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Events returns the change notification channel.
func (t *MemoryTree) Events() <-chan Event {
	t.subMu.Lock()
	t.subscribed = true
	t.subMu.Unlock()
	return t.events
}

func (t *MemoryTree) emit(evs ...Event) {
	t.subMu.Lock()
	sub := t.subscribed
	t.subMu.Unlock()
	if !sub {
		return
	}
	for _, ev := range evs {
		t.events <- ev
	}
}

// GetTree returns a deep copy of the tree.
func (t *MemoryTree) GetTree(ctx context.Context) (*domain.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return domain.CloneNode(t.root), nil
}

// Roots returns copies of the root containers.
func (t *MemoryTree) Roots() []*domain.Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*domain.Node, 0, len(t.root.Children))
	for _, c := range t.root.Children {
		out = append(out, shallow(c))
	}
	return out
}

// GetChildren returns shallow copies of the children of parentID.
func (t *MemoryTree) GetChildren(ctx context.Context, parentID string) ([]*domain.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.nodes[parentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, parentID)
	}
	out := make([]*domain.Node, 0, len(p.Children))
	for _, c := range p.Children {
		out = append(out, shallow(c))
	}
	return out, nil
}

// Create adds a bookmark or folder under d.ParentID.
func (t *MemoryTree) Create(ctx context.Context, d CreateDetails) (*domain.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	p, err := t.folderLocked(d.ParentID)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}

	n := &domain.Node{
		ID:        t.newID(),
		ParentID:  p.ID,
		Title:     d.Title,
		URL:       d.URL,
		DateAdded: t.now().UnixMilli(),
	}
	idx := len(p.Children)
	if d.Index != nil {
		idx = clamp(*d.Index, len(p.Children))
	}
	insertChild(p, n, idx)
	t.nodes[n.ID] = n
	ev := Event{Type: EventCreated, ID: n.ID, ParentID: p.ID, Node: shallow(n)}
	out := shallow(n)
	t.mu.Unlock()

	t.emit(ev)
	return out, nil
}

// Move relocates id to parentID at index.
func (t *MemoryTree) Move(ctx context.Context, id, parentID string, index int) (*domain.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	n, err := t.mutableLocked(id)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	p, err := t.folderLocked(parentID)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	for cur := p; cur != nil; cur = t.nodes[cur.ParentID] {
		if cur.ID == n.ID {
			t.mu.Unlock()
			return nil, fmt.Errorf("cannot move %s into its own subtree", id)
		}
		if cur.ID == RootID {
			break
		}
	}

	old := t.nodes[n.ParentID]
	removeChild(old, n)
	insertChild(p, n, clamp(index, len(p.Children)))
	ev := Event{Type: EventMoved, ID: n.ID, ParentID: p.ID, Node: shallow(n)}
	out := shallow(n)
	t.mu.Unlock()

	t.emit(ev)
	return out, nil
}

// Update renames id.
func (t *MemoryTree) Update(ctx context.Context, id, title string) (*domain.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	n, err := t.mutableLocked(id)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	n.Title = title
	ev := Event{Type: EventChanged, ID: n.ID, ParentID: n.ParentID, Node: shallow(n)}
	out := shallow(n)
	t.mu.Unlock()

	t.emit(ev)
	return out, nil
}

// Remove deletes a bookmark or an empty folder.
func (t *MemoryTree) Remove(ctx context.Context, id string) error {
	return t.remove(ctx, id, false)
}

// RemoveTree deletes a node with its whole subtree.
func (t *MemoryTree) RemoveTree(ctx context.Context, id string) error {
	return t.remove(ctx, id, true)
}

func (t *MemoryTree) remove(ctx context.Context, id string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	n, err := t.mutableLocked(id)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	if !recursive && len(n.Children) > 0 {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrFolderNotEmpty, id)
	}

	removeChild(t.nodes[n.ParentID], n)
	snapshot := domain.CloneNode(n)
	delete(t.nodes, n.ID)
	domain.Walk(n, func(c *domain.Node) { delete(t.nodes, c.ID) })
	ev := Event{Type: EventRemoved, ID: n.ID, ParentID: n.ParentID, Node: snapshot}
	t.mu.Unlock()

	t.emit(ev)
	return nil
}

// Replace swaps the whole tree and emits the events that turn the old tree
// into the new one. Root containers are kept from the new tree.
func (t *MemoryTree) Replace(root *domain.Node) {
	t.mu.Lock()
	before := make(map[string]domain.Node, len(t.nodes))
	for id, n := range t.nodes {
		before[id] = *n
	}
	oldNodes := t.nodes
	t.load(root)
	evs := diffTrees(before, oldNodes, t.nodes)
	t.mu.Unlock()

	t.emit(evs...)
}

func diffTrees(before map[string]domain.Node, oldNodes, newNodes map[string]*domain.Node) []Event {
	var evs []Event
	for id, old := range before {
		if _, ok := newNodes[id]; ok || id == RootID {
			continue
		}
		// Only report the topmost removed node of a removed subtree.
		if _, parentKept := newNodes[old.ParentID]; !parentKept {
			continue
		}
		evs = append(evs, Event{Type: EventRemoved, ID: id, ParentID: old.ParentID, Node: domain.CloneNode(oldNodes[id])})
	}
	for id, n := range newNodes {
		if id == RootID {
			continue
		}
		old, ok := before[id]
		switch {
		case !ok:
			evs = append(evs, Event{Type: EventCreated, ID: id, ParentID: n.ParentID, Node: shallow(n)})
		case old.ParentID != n.ParentID || old.Index != n.Index:
			evs = append(evs, Event{Type: EventMoved, ID: id, ParentID: n.ParentID, Node: shallow(n)})
			if old.Title != n.Title || old.URL != n.URL {
				evs = append(evs, Event{Type: EventChanged, ID: id, ParentID: n.ParentID, Node: shallow(n)})
			}
		case old.Title != n.Title || old.URL != n.URL:
			evs = append(evs, Event{Type: EventChanged, ID: id, ParentID: n.ParentID, Node: shallow(n)})
		}
	}
	return evs
}

func (t *MemoryTree) folderLocked(id string) (*domain.Node, error) {
	p, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if id == RootID {
		return nil, ErrRootModification
	}
	if !p.IsFolder() {
		return nil, fmt.Errorf("%w: %s", ErrNotFolder, id)
	}
	return p, nil
}

func (t *MemoryTree) mutableLocked(id string) (*domain.Node, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if id == RootID || t.roots[id] {
		return nil, fmt.Errorf("%w: %s", ErrRootModification, id)
	}
	return n, nil
}

func shallow(n *domain.Node) *domain.Node {
	c := *n
	c.Children = nil
	return &c
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

func insertChild(p, n *domain.Node, idx int) {
	p.Children = append(p.Children, nil)
	copy(p.Children[idx+1:], p.Children[idx:])
	p.Children[idx] = n
	n.ParentID = p.ID
	reindex(p)
}

func removeChild(p, n *domain.Node) {
	if p == nil {
		return
	}
	for i, c := range p.Children {
		if c == n {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			break
		}
	}
	reindex(p)
}

func reindex(p *domain.Node) {
	for i, c := range p.Children {
		c.Index = i
	}
}
