package domain

// Node is one entry of a host bookmark tree.
// The tree root is an unnamed node whose children are the host's root containers.
type Node struct {
	ID        string  `json:"id" yaml:"id"`
	ParentID  string  `json:"parentId,omitempty" yaml:"-"`
	Title     string  `json:"title" yaml:"title"`
	URL       string  `json:"url,omitempty" yaml:"url,omitempty"`
	Index     int     `json:"index" yaml:"-"`
	DateAdded int64   `json:"dateAdded,omitempty" yaml:"dateAdded,omitempty"`
	Children  []*Node `json:"children,omitempty" yaml:"children,omitempty"`
}

// IsFolder reports whether the node is a folder (it has no url).
func (n *Node) IsFolder() bool { return n.URL == "" }

type flattenFrame struct {
	node       *Node
	parentPath string
	index      int
}

// Flatten walks the tree depth-first and returns the flat item list.
// Root containers are never emitted, only their contents. Folders carry the
// path of their parent, bookmarks the path of the folder holding them.
// Index is the position among the node's siblings.
func Flatten(root *Node) []Item {
	if root == nil {
		return nil
	}

	var items []Item
	stack := make([]flattenFrame, 0, 16)
	pushChildren := func(n *Node, path string) {
		for i := len(n.Children) - 1; i >= 0; i-- {
			if c := n.Children[i]; c != nil {
				stack = append(stack, flattenFrame{node: c, parentPath: path, index: i})
			}
		}
	}
	pushChildren(root, "")

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := f.node

		if !n.IsFolder() {
			items = append(items, Item{
				Kind:       KindBookmark,
				ID:         n.ID,
				URL:        n.URL,
				Title:      n.Title,
				FolderPath: f.parentPath,
				Index:      f.index,
				CreatedAt:  n.DateAdded,
			})
			continue
		}

		if n.Title != "" && f.parentPath != "" {
			items = append(items, Item{
				Kind:       KindFolder,
				ID:         n.ID,
				Title:      n.Title,
				FolderPath: f.parentPath,
				Index:      f.index,
				CreatedAt:  n.DateAdded,
			})
		}
		pushChildren(n, JoinPath(f.parentPath, n.Title))
	}
	return items
}

// Walk visits every node below root (root excluded) depth-first.
func Walk(root *Node, fn func(n *Node)) {
	if root == nil {
		return
	}
	stack := append([]*Node(nil), root.Children...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		fn(n)
		stack = append(stack, n.Children...)
	}
}

// CloneNode deep-copies a subtree.
func CloneNode(n *Node) *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.Children = nil
	type pair struct{ src, dst *Node }
	stack := []pair{{n, &out}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if len(p.src.Children) == 0 {
			continue
		}
		p.dst.Children = make([]*Node, len(p.src.Children))
		for i, c := range p.src.Children {
			cc := *c
			cc.Children = nil
			p.dst.Children[i] = &cc
			stack = append(stack, pair{c, &cc})
		}
	}
	return &out
}
