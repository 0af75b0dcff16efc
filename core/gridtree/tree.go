// Package gridtree builds and prints the grid node hierarchy of the platform.
package gridtree

// TreeNode is a node of an ordered tree holding a value of type T.
type TreeNode[T any] struct {
	Value    T
	parent   *TreeNode[T]
	children []*TreeNode[T]
}

// New returns a root node holding v.
func New[T any](v T) *TreeNode[T] { return &TreeNode[T]{Value: v} }

// Parent returns nil for a root.
func (n *TreeNode[T]) Parent() *TreeNode[T] { return n.parent }

// Children returns a copy of the child list.
func (n *TreeNode[T]) Children() []*TreeNode[T] {
	out := make([]*TreeNode[T], len(n.children))
	copy(out, n.children)
	return out
}

// Child returns the i-th child. It panics when i is out of range, like a slice
// index would.
func (n *TreeNode[T]) Child(i int) *TreeNode[T] { return n.children[i] }

// AddChild appends a new child holding v and returns it.
func (n *TreeNode[T]) AddChild(v T) *TreeNode[T] {
	c := &TreeNode[T]{Value: v, parent: n}
	n.children = append(n.children, c)
	return c
}

// AddChildren appends one child per value, in order.
func (n *TreeNode[T]) AddChildren(vs ...T) []*TreeNode[T] {
	out := make([]*TreeNode[T], 0, len(vs))
	for _, v := range vs {
		out = append(out, n.AddChild(v))
	}
	return out
}

// RemoveChild detaches c and reports whether it was a child of n.
func (n *TreeNode[T]) RemoveChild(c *TreeNode[T]) bool {
	for i, ch := range n.children {
		if ch == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			c.parent = nil
			return true
		}
	}
	return false
}

// Traverse visits the tree depth-first, parent before children, passing the
// depth of each node relative to n.
func (n *TreeNode[T]) Traverse(fn func(v T, depth int)) {
	n.traverse(fn, 0)
}

func (n *TreeNode[T]) traverse(fn func(T, int), depth int) {
	fn(n.Value, depth)
	for _, c := range n.children {
		c.traverse(fn, depth+1)
	}
}

// Flatten returns the values in Traverse order.
func (n *TreeNode[T]) Flatten() []T {
	var out []T
	n.Traverse(func(v T, _ int) { out = append(out, v) })
	return out
}
