package echodb

import (
	"sync/atomic"

	"github.com/zhangyunhao116/skipmap"

	"github.com/rohan-flutterint/echodb/internal/base"
)

// version is one committed snapshot of the keyspace: a root, the id it was
// published under, and a reference count of the readers bound to it.
//
// Snapshot safety does not depend on the table: a reader holds the version
// pointer directly, which keeps the root and everything under it reachable.
// The refcount exists so the table can drop historical entries the moment
// the last reader lets go.
type version struct {
	id     uint64
	parent uint64 // id this version was built on, for diagnostics
	root   *base.Node
	refs   atomic.Int64
}

// versionTable owns the single atomically-swapped "current" slot plus the
// set of retained historical versions. It is per-DB state, so independent
// stores never share version numbering.
type versionTable struct {
	current atomic.Pointer[version]
	history *skipmap.Uint64Map[*version]
}

// newVersionTable starts the table at version 0 over the given empty root
func newVersionTable(root *base.Node) *versionTable {
	vt := &versionTable{history: skipmap.NewUint64[*version]()}
	v := &version{id: 0, root: root}
	vt.history.Store(v.id, v)
	vt.current.Store(v)
	return vt
}

// head returns the current version. Lock-free; the pointer load is the
// entire synchronization with concurrent publishes.
func (vt *versionTable) head() *version {
	return vt.current.Load()
}

// publish installs root as the new current version and returns its id.
// Only the transaction manager calls this, while holding the writer slot,
// so two publishes never race; ids are strictly increasing and never
// reused.
func (vt *versionTable) publish(root *base.Node) uint64 {
	prev := vt.current.Load()
	v := &version{id: prev.id + 1, parent: prev.id, root: root}
	vt.history.Store(v.id, v)
	vt.current.Store(v)

	// The displaced head stays in history only while readers hold it
	if prev.refs.Load() == 0 {
		vt.history.Delete(prev.id)
	}
	return v.id
}

// retain pins v for the lifetime of a read transaction
func (vt *versionTable) retain(v *version) {
	v.refs.Add(1)
}

// release drops a reader's pin; a non-current version with no readers left
// is removed from the table
func (vt *versionTable) release(v *version) {
	if v.refs.Add(-1) == 0 && vt.current.Load() != v {
		vt.history.Delete(v.id)
	}
}

// live returns the number of retained versions, including the current one
func (vt *versionTable) live() int {
	return vt.history.Len()
}
