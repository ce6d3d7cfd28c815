package base

import "bytes"

const (
	MaxKeysPerNode = 64
	// MinKeysPerNode is the minimum Keys for non-root nodes
	MinKeysPerNode = MaxKeysPerNode / 4
)

// Node is the structural unit of the persistent tree. A Node is either a
// leaf (Keys/Values in parallel, sorted ascending) or a branch (separator
// Keys plus Children, len(Keys) == len(Children)-1). The variant set is
// closed: everything switches on IsLeaf().
//
// Nodes are immutable once reachable from a published or snapshotted root.
// Edits construct fresh nodes along the root-to-key path and share every
// untouched subtree by pointer, so any number of old roots stay valid while
// new roots are built. Reclamation is by reachability: a node lives as long
// as any root, working tree, or cursor can still reach it.
type Node struct {
	Leaf bool

	Keys     [][]byte
	Values   [][]byte // leaf nodes only
	Children []*Node  // branch nodes only
}

// NewLeaf returns an empty leaf node
func NewLeaf() *Node {
	return &Node{Leaf: true}
}

// NewBranch returns a branch node over the given separators and children
func NewBranch(keys [][]byte, children []*Node) *Node {
	if len(keys) != len(children)-1 {
		panic("base: branch separator/child count mismatch")
	}
	return &Node{Keys: keys, Children: children}
}

func (n *Node) IsLeaf() bool {
	return n.Leaf
}

// NumKeys returns the key count (separator count for branch nodes)
func (n *Node) NumKeys() int {
	return len(n.Keys)
}

// IsFull reports whether this node holds more keys than a node may carry
// and must be split
func (n *Node) IsFull() bool {
	return len(n.Keys) > MaxKeysPerNode
}

// IsUnderflow reports whether the node has too few keys (never applies to
// the root, which is allowed to shrink to empty)
func (n *Node) IsUnderflow() bool {
	return len(n.Keys) < MinKeysPerNode
}

// SearchLeaf returns the insertion position for key and whether the key is
// present at that position. Valid on leaf nodes only.
func (n *Node) SearchLeaf(key []byte) (int, bool) {
	i := 0
	for i < len(n.Keys) && bytes.Compare(key, n.Keys[i]) > 0 {
		i++
	}
	if i < len(n.Keys) && bytes.Equal(key, n.Keys[i]) {
		return i, true
	}
	return i, false
}

// ChildIndex returns the index of the child to descend into for key.
// Separator Keys[i] is the smallest key of Children[i+1], so equal keys
// descend right.
func (n *Node) ChildIndex(key []byte) int {
	i := 0
	for i < len(n.Keys) && bytes.Compare(key, n.Keys[i]) >= 0 {
		i++
	}
	return i
}

// Clone returns a fresh node with copied slice headers for copy-on-write.
// Key, value, and child contents are shared with the original; they are
// never mutated in place, only replaced in the copy.
func (n *Node) Clone() *Node {
	cloned := &Node{Leaf: n.Leaf}

	cloned.Keys = make([][]byte, len(n.Keys), len(n.Keys)+1)
	copy(cloned.Keys, n.Keys)

	if n.Leaf {
		cloned.Values = make([][]byte, len(n.Values), len(n.Values)+1)
		copy(cloned.Values, n.Values)
	} else {
		cloned.Children = make([]*Node, len(n.Children), len(n.Children)+1)
		copy(cloned.Children, n.Children)
	}

	return cloned
}
