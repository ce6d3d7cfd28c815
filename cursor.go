package echodb

import (
	"bytes"

	"github.com/rohan-flutterint/echodb/internal/base"
)

// path is one level in the cursor's navigation from root to leaf.
// For branch nodes childIndex is the child we descended into; for the leaf
// at the top of the stack it is the key the cursor is positioned on.
type path struct {
	node       *base.Node
	childIndex int
}

// Cursor provides ordered iteration over the keys visible to a
// transaction. It is bound to the transaction's root at creation time, so
// a write transaction's cursor does not observe edits made after the
// cursor was created — create a fresh cursor to re-traverse.
type Cursor struct {
	tx    *Tx
	root  *base.Node
	stack []path
	key   []byte
	value []byte
	valid bool
}

// Cursor creates a cursor over this transaction's current view.
func (tx *Tx) Cursor() *Cursor {
	return &Cursor{tx: tx, root: tx.root}
}

// First positions the cursor at the smallest key.
func (c *Cursor) First() ([]byte, []byte) {
	if err := c.active(); err != nil {
		return nil, nil
	}

	c.stack = c.stack[:0]
	c.valid = false

	// Descend to leftmost leaf
	n := c.root
	for !n.IsLeaf() {
		c.stack = append(c.stack, path{node: n, childIndex: 0})
		n = n.Children[0]
	}
	c.stack = append(c.stack, path{node: n, childIndex: 0})

	if n.NumKeys() > 0 {
		c.key = n.Keys[0]
		c.value = n.Values[0]
		c.valid = true
		return c.key, c.value
	}
	return nil, nil
}

// Last positions the cursor at the largest key.
func (c *Cursor) Last() ([]byte, []byte) {
	if err := c.active(); err != nil {
		return nil, nil
	}

	c.stack = c.stack[:0]
	c.valid = false

	// Descend to rightmost leaf
	n := c.root
	for !n.IsLeaf() {
		last := len(n.Children) - 1
		c.stack = append(c.stack, path{node: n, childIndex: last})
		n = n.Children[last]
	}
	lastIndex := n.NumKeys() - 1
	c.stack = append(c.stack, path{node: n, childIndex: lastIndex})

	if lastIndex >= 0 {
		c.key = n.Keys[lastIndex]
		c.value = n.Values[lastIndex]
		c.valid = true
		return c.key, c.value
	}
	return nil, nil
}

// Seek positions the cursor at the first key >= seek. A nil seek is
// equivalent to First.
func (c *Cursor) Seek(seek []byte) ([]byte, []byte) {
	if err := c.active(); err != nil {
		return nil, nil
	}
	if len(seek) == 0 {
		return c.First()
	}

	c.stack = c.stack[:0]
	c.valid = false

	n := c.root
	for !n.IsLeaf() {
		i := n.ChildIndex(seek)
		c.stack = append(c.stack, path{node: n, childIndex: i})
		n = n.Children[i]
	}

	i, _ := n.SearchLeaf(seek)
	c.stack = append(c.stack, path{node: n, childIndex: i})

	if i < n.NumKeys() {
		c.key = n.Keys[i]
		c.value = n.Values[i]
		c.valid = true
		return c.key, c.value
	}

	// Landed past the end of this leaf; the target lives in the next one
	c.valid = true
	c.nextLeaf()
	if !c.valid {
		return nil, nil
	}
	return c.key, c.value
}

// Next advances the cursor. Returns (nil, nil) when exhausted.
func (c *Cursor) Next() ([]byte, []byte) {
	if err := c.active(); err != nil {
		c.valid = false
		return nil, nil
	}
	if !c.valid || len(c.stack) == 0 {
		return nil, nil
	}

	leaf := &c.stack[len(c.stack)-1]
	leaf.childIndex++
	if leaf.childIndex < leaf.node.NumKeys() {
		c.key = leaf.node.Keys[leaf.childIndex]
		c.value = leaf.node.Values[leaf.childIndex]
		return c.key, c.value
	}

	c.nextLeaf()
	if !c.valid {
		return nil, nil
	}
	return c.key, c.value
}

// Prev steps the cursor back. Returns (nil, nil) at the beginning.
func (c *Cursor) Prev() ([]byte, []byte) {
	if err := c.active(); err != nil {
		c.valid = false
		return nil, nil
	}
	if !c.valid || len(c.stack) == 0 {
		return nil, nil
	}

	leaf := &c.stack[len(c.stack)-1]
	leaf.childIndex--
	if leaf.childIndex >= 0 {
		c.key = leaf.node.Keys[leaf.childIndex]
		c.value = leaf.node.Values[leaf.childIndex]
		return c.key, c.value
	}

	c.prevLeaf()
	if !c.valid {
		return nil, nil
	}
	return c.key, c.value
}

// SeekPrefix positions the cursor at the first key with the given prefix,
// returning (nil, nil) when no key matches.
func (c *Cursor) SeekPrefix(prefix []byte) ([]byte, []byte) {
	k, v := c.Seek(prefix)
	if k == nil || !bytes.HasPrefix(k, prefix) {
		c.valid = false
		return nil, nil
	}
	return k, v
}

// Key returns the current key, or nil if the cursor is not positioned.
func (c *Cursor) Key() []byte {
	if !c.Valid() {
		return nil
	}
	return c.key
}

// Value returns the current value, or nil if the cursor is not positioned.
func (c *Cursor) Value() []byte {
	if !c.Valid() {
		return nil
	}
	return c.value
}

// Valid reports whether the cursor is positioned on a key.
func (c *Cursor) Valid() bool {
	if err := c.active(); err != nil {
		return false
	}
	return c.valid
}

// active validates that the cursor's transaction is still usable
func (c *Cursor) active() error {
	return c.tx.check()
}

// nextLeaf advances to the first key of the next leaf, walking up until a
// parent has a further child
func (c *Cursor) nextLeaf() {
	for len(c.stack) > 1 {
		c.stack = c.stack[:len(c.stack)-1]

		parent := &c.stack[len(c.stack)-1]
		parent.childIndex++
		if parent.childIndex >= len(parent.node.Children) {
			continue
		}

		// Descend to leftmost leaf of the next subtree
		n := parent.node.Children[parent.childIndex]
		for !n.IsLeaf() {
			c.stack = append(c.stack, path{node: n, childIndex: 0})
			n = n.Children[0]
		}
		c.stack = append(c.stack, path{node: n, childIndex: 0})

		if n.NumKeys() > 0 {
			c.key = n.Keys[0]
			c.value = n.Values[0]
			c.valid = true
		} else {
			c.valid = false
		}
		return
	}
	c.valid = false
}

// prevLeaf steps back to the last key of the previous leaf
func (c *Cursor) prevLeaf() {
	for len(c.stack) > 1 {
		c.stack = c.stack[:len(c.stack)-1]

		parent := &c.stack[len(c.stack)-1]
		parent.childIndex--
		if parent.childIndex < 0 {
			continue
		}

		// Descend to rightmost leaf of the previous subtree
		n := parent.node.Children[parent.childIndex]
		for !n.IsLeaf() {
			last := len(n.Children) - 1
			c.stack = append(c.stack, path{node: n, childIndex: last})
			n = n.Children[last]
		}
		lastIndex := n.NumKeys() - 1
		c.stack = append(c.stack, path{node: n, childIndex: lastIndex})

		if lastIndex >= 0 {
			c.key = n.Keys[lastIndex]
			c.value = n.Values[lastIndex]
			c.valid = true
		} else {
			c.valid = false
		}
		return
	}
	c.valid = false
}
