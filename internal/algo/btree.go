// Package algo implements the structural operations of the persistent
// B+tree: path-copying insert and delete with split/borrow/merge
// rebalancing, and point search. Every function here is pure with respect
// to published nodes — an edit returns new nodes for the affected path and
// shares all other subtrees with the input.
package algo

import (
	"github.com/rohan-flutterint/echodb/internal/base"
)

// Search descends from root and returns the value stored under key.
func Search(n *base.Node, key []byte) ([]byte, bool) {
	for !n.IsLeaf() {
		n = n.Children[n.ChildIndex(key)]
	}
	if i, ok := n.SearchLeaf(key); ok {
		return n.Values[i], true
	}
	return nil, false
}

// Insert returns the root of a tree with key set to value. The input root
// and every node reachable from it are left untouched; only the nodes on
// the root-to-key path (at most O(log n)) are newly built.
func Insert(root *base.Node, key, value []byte) *base.Node {
	left, right, sep := insert(root, key, value)
	if right != nil {
		return NewBranchRoot(left, right, sep)
	}
	return left
}

// insert returns the rebuilt subtree, plus a new right sibling and
// separator when the subtree had to split
func insert(n *base.Node, key, value []byte) (*base.Node, *base.Node, []byte) {
	if n.IsLeaf() {
		pos, found := n.SearchLeaf(key)
		nn := n.Clone()
		if found {
			nn.Values[pos] = value
			return nn, nil, nil
		}
		nn.Keys = InsertAt(nn.Keys, pos, key)
		nn.Values = InsertAt(nn.Values, pos, value)
		if nn.IsFull() {
			return SplitLeaf(nn)
		}
		return nn, nil, nil
	}

	i := n.ChildIndex(key)
	left, right, sep := insert(n.Children[i], key, value)

	nn := n.Clone()
	nn.Children[i] = left
	if right != nil {
		nn.Keys = InsertAt(nn.Keys, i, sep)
		nn.Children = InsertChildAt(nn.Children, i+1, right)
	}
	if nn.IsFull() {
		return SplitBranch(nn)
	}
	return nn, nil, nil
}

// Delete returns the root of a tree without key. When the key is absent the
// original root is returned as-is and found is false — a structural no-op,
// not an error.
func Delete(root *base.Node, key []byte) (*base.Node, bool) {
	nn, found := remove(root, key)
	if !found {
		return root, false
	}
	// Shrink: a branch root left with a single child hands the root role
	// to that child
	if !nn.IsLeaf() && len(nn.Children) == 1 {
		nn = nn.Children[0]
	}
	return nn, true
}

func remove(n *base.Node, key []byte) (*base.Node, bool) {
	if n.IsLeaf() {
		pos, found := n.SearchLeaf(key)
		if !found {
			return n, false
		}
		nn := n.Clone()
		nn.Keys = RemoveAt(nn.Keys, pos)
		nn.Values = RemoveAt(nn.Values, pos)
		return nn, true
	}

	i := n.ChildIndex(key)
	child, found := remove(n.Children[i], key)
	if !found {
		return n, false
	}

	nn := n.Clone()
	nn.Children[i] = child
	if child.IsUnderflow() {
		fixUnderflow(nn, i)
	}
	return nn, true
}

// fixUnderflow restores the occupancy invariant for parent.Children[i] by
// borrowing from a sibling when one can spare a key, merging otherwise.
// parent must already be a fresh copy; siblings are copied here before any
// modification.
func fixUnderflow(parent *base.Node, i int) {
	if i > 0 && parent.Children[i-1].NumKeys() > base.MinKeysPerNode {
		BorrowFromLeft(parent, i)
		return
	}
	if i < len(parent.Children)-1 && parent.Children[i+1].NumKeys() > base.MinKeysPerNode {
		BorrowFromRight(parent, i)
		return
	}
	if i > 0 {
		MergeChildren(parent, i-1)
	} else {
		MergeChildren(parent, i)
	}
}

// BorrowFromLeft moves the last entry of the left sibling to the front of
// parent.Children[i] and updates the separator
func BorrowFromLeft(parent *base.Node, i int) {
	left := parent.Children[i-1].Clone()
	child := parent.Children[i].Clone()
	last := left.NumKeys() - 1

	if child.IsLeaf() {
		child.Keys = InsertAt(child.Keys, 0, left.Keys[last])
		child.Values = InsertAt(child.Values, 0, left.Values[last])
		left.Keys = RemoveAt(left.Keys, last)
		left.Values = RemoveAt(left.Values, last)
		parent.Keys[i-1] = child.Keys[0]
	} else {
		// Rotate through the parent separator
		child.Keys = InsertAt(child.Keys, 0, parent.Keys[i-1])
		child.Children = InsertChildAt(child.Children, 0, left.Children[len(left.Children)-1])
		parent.Keys[i-1] = left.Keys[last]
		left.Keys = RemoveAt(left.Keys, last)
		left.Children = RemoveChildAt(left.Children, len(left.Children)-1)
	}

	parent.Children[i-1] = left
	parent.Children[i] = child
}

// BorrowFromRight moves the first entry of the right sibling to the end of
// parent.Children[i] and updates the separator
func BorrowFromRight(parent *base.Node, i int) {
	right := parent.Children[i+1].Clone()
	child := parent.Children[i].Clone()

	if child.IsLeaf() {
		child.Keys = append(child.Keys, right.Keys[0])
		child.Values = append(child.Values, right.Values[0])
		right.Keys = RemoveAt(right.Keys, 0)
		right.Values = RemoveAt(right.Values, 0)
		parent.Keys[i] = right.Keys[0]
	} else {
		child.Keys = append(child.Keys, parent.Keys[i])
		child.Children = append(child.Children, right.Children[0])
		parent.Keys[i] = right.Keys[0]
		right.Keys = RemoveAt(right.Keys, 0)
		right.Children = RemoveChildAt(right.Children, 0)
	}

	parent.Children[i] = child
	parent.Children[i+1] = right
}

// MergeChildren combines parent.Children[i] and parent.Children[i+1] into a
// single fresh node and removes the separator between them. Both siblings
// are underfull when this is called, so the result never overflows.
func MergeChildren(parent *base.Node, i int) {
	left, right := parent.Children[i], parent.Children[i+1]

	var merged *base.Node
	if left.IsLeaf() {
		keys := make([][]byte, 0, len(left.Keys)+len(right.Keys))
		keys = append(keys, left.Keys...)
		keys = append(keys, right.Keys...)
		values := make([][]byte, 0, len(left.Values)+len(right.Values))
		values = append(values, left.Values...)
		values = append(values, right.Values...)
		merged = &base.Node{Leaf: true, Keys: keys, Values: values}
	} else {
		// Branch merge pulls the separator down between the two key runs
		keys := make([][]byte, 0, len(left.Keys)+len(right.Keys)+1)
		keys = append(keys, left.Keys...)
		keys = append(keys, parent.Keys[i])
		keys = append(keys, right.Keys...)
		children := make([]*base.Node, 0, len(left.Children)+len(right.Children))
		children = append(children, left.Children...)
		children = append(children, right.Children...)
		merged = base.NewBranch(keys, children)
	}

	parent.Keys = RemoveAt(parent.Keys, i)
	parent.Children[i] = merged
	parent.Children = RemoveChildAt(parent.Children, i+1)
}

// SplitLeaf splits an overfull fresh leaf in the middle. The separator is
// the first key of the right half.
func SplitLeaf(n *base.Node) (*base.Node, *base.Node, []byte) {
	mid := len(n.Keys) / 2

	right := &base.Node{
		Leaf:   true,
		Keys:   append([][]byte(nil), n.Keys[mid:]...),
		Values: append([][]byte(nil), n.Values[mid:]...),
	}
	n.Keys = n.Keys[:mid:mid]
	n.Values = n.Values[:mid:mid]

	return n, right, right.Keys[0]
}

// SplitBranch splits an overfull fresh branch in the middle. The middle key
// moves up as the separator.
func SplitBranch(n *base.Node) (*base.Node, *base.Node, []byte) {
	mid := len(n.Keys) / 2
	sep := n.Keys[mid]

	right := base.NewBranch(
		append([][]byte(nil), n.Keys[mid+1:]...),
		append([]*base.Node(nil), n.Children[mid+1:]...),
	)
	n.Keys = n.Keys[:mid:mid]
	n.Children = n.Children[: mid+1 : mid+1]

	return n, right, sep
}

// NewBranchRoot creates a new branch root from two children after a split
func NewBranchRoot(left, right *base.Node, sep []byte) *base.Node {
	return base.NewBranch([][]byte{sep}, []*base.Node{left, right})
}

// InsertAt inserts item at index i, shifting the tail right
func InsertAt(s [][]byte, i int, item []byte) [][]byte {
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = item
	return s
}

// RemoveAt removes the item at index i, shifting the tail left
func RemoveAt(s [][]byte, i int) [][]byte {
	return append(s[:i], s[i+1:]...)
}

// InsertChildAt inserts child at index i, shifting the tail right
func InsertChildAt(s []*base.Node, i int, child *base.Node) []*base.Node {
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = child
	return s
}

// RemoveChildAt removes the child at index i, shifting the tail left
func RemoveChildAt(s []*base.Node, i int) []*base.Node {
	return append(s[:i], s[i+1:]...)
}
