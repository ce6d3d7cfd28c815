package echodb

import (
	"bytes"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/rohan-flutterint/echodb/internal/algo"
	"github.com/rohan-flutterint/echodb/internal/base"
)

// KV is one key-value pair returned by Scan.
type KV struct {
	Key   []byte
	Value []byte
}

// Tx represents a transaction on the database.
//
// CONCURRENCY: a Tx is NOT thread-safe and must only be used by a single
// goroutine at a time. Different transactions may run on different
// goroutines freely.
//
// A transaction observes the database exactly as it was when it began.
// Read transactions can run concurrently; only one write transaction is
// active at a time. A write transaction additionally observes its own
// uncommitted edits (reads go through the working root).
//
// Slices returned by Get/Scan/Cursor are owned by the immutable snapshot
// and must not be modified; keys and values passed to writes are copied.
type Tx struct {
	db       *DB
	writable bool // Is this a read-write transaction?
	done     bool // Has Commit() or Rollback() been called?

	version *version   // Version this transaction was opened against
	root    *base.Node // Working root (writers) or snapshot root (readers)
}

// Writable reports whether this transaction accepts writes
func (tx *Tx) Writable() bool {
	return tx.writable
}

// Version returns the committed version this transaction was opened against
func (tx *Tx) Version() uint64 {
	return tx.version.id
}

// Get retrieves the value for a key. Absence is not an error: a missing key
// returns (nil, nil).
func (tx *Tx) Get(key []byte) ([]byte, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, ErrKeyEmpty
	}

	val, ok := algo.Search(tx.root, key)
	if !ok {
		return nil, nil
	}
	return val, nil
}

// Exists reports whether a key is present.
func (tx *Tx) Exists(key []byte) (bool, error) {
	if err := tx.check(); err != nil {
		return false, err
	}
	if len(key) == 0 {
		return false, ErrKeyEmpty
	}

	_, ok := algo.Search(tx.root, key)
	return ok, nil
}

// Put writes a key-value pair, replacing any existing value.
// Returns ErrTxNotWritable on a read-only transaction.
func (tx *Tx) Put(key, value []byte) error {
	if err := tx.checkWrite(key, value); err != nil {
		return err
	}

	tx.root = algo.Insert(tx.root, cloneBytes(key), cloneBytes(value))
	return nil
}

// PutIfAbsent writes a key-value pair only when the key does not exist yet.
// Returns ErrKeyExists otherwise.
func (tx *Tx) PutIfAbsent(key, value []byte) error {
	if err := tx.checkWrite(key, value); err != nil {
		return err
	}
	if _, ok := algo.Search(tx.root, key); ok {
		return ErrKeyExists
	}

	tx.root = algo.Insert(tx.root, cloneBytes(key), cloneBytes(value))
	return nil
}

// PutIf writes a key-value pair only when the current value equals
// expected; expected == nil demands the key be absent. Returns
// ErrValueMismatch when the guard fails.
func (tx *Tx) PutIf(key, value, expected []byte) error {
	if err := tx.checkWrite(key, value); err != nil {
		return err
	}
	if err := tx.checkGuard(key, expected); err != nil {
		return err
	}

	tx.root = algo.Insert(tx.root, cloneBytes(key), cloneBytes(value))
	return nil
}

// Delete removes a key. Idempotent: deleting an absent key is a no-op, not
// an error, and leaves the working root untouched.
func (tx *Tx) Delete(key []byte) error {
	if err := tx.checkWrite(key, nil); err != nil {
		return err
	}

	tx.root, _ = algo.Delete(tx.root, key)
	return nil
}

// DeleteIf removes a key only when its current value equals expected;
// expected == nil demands the key be absent (making the call a guarded
// no-op). Returns ErrValueMismatch when the guard fails.
func (tx *Tx) DeleteIf(key, expected []byte) error {
	if err := tx.checkWrite(key, nil); err != nil {
		return err
	}
	if err := tx.checkGuard(key, expected); err != nil {
		return err
	}

	tx.root, _ = algo.Delete(tx.root, key)
	return nil
}

// Scan returns up to limit key-value pairs in [start, end), ascending.
// A nil start begins at the first key; a nil end runs to the last. A
// negative limit means no limit. An empty or inverted range yields an
// empty result, not an error.
func (tx *Tx) Scan(start, end []byte, limit int) ([]KV, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	if limit == 0 {
		return nil, nil
	}
	if start != nil && end != nil && bytes.Compare(start, end) >= 0 {
		return nil, nil
	}

	var out []KV
	c := tx.Cursor()
	for k, v := c.Seek(start); k != nil; k, v = c.Next() {
		if end != nil && bytes.Compare(k, end) >= 0 {
			break
		}
		out = append(out, KV{Key: k, Value: v})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ForEach calls fn for every key-value pair in ascending key order,
// stopping at the first error.
func (tx *Tx) ForEach(fn func(key, value []byte) error) error {
	if err := tx.check(); err != nil {
		return err
	}

	c := tx.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

// ForEachPrefix calls fn for every key-value pair whose key starts with
// prefix, in ascending key order.
func (tx *Tx) ForEachPrefix(prefix []byte, fn func(key, value []byte) error) error {
	if err := tx.check(); err != nil {
		return err
	}

	c := tx.Cursor()
	for k, v := c.Seek(prefix); k != nil; k, v = c.Next() {
		if !bytes.HasPrefix(k, prefix) {
			break
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Checksum returns an xxhash digest over every key-value pair in the
// transaction's view. Two transactions bound to the same version always
// produce the same digest, no matter what commits in between.
func (tx *Tx) Checksum() (uint64, error) {
	if err := tx.check(); err != nil {
		return 0, err
	}

	h := xxhash.New()
	var n [8]byte
	c := tx.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		// Length-prefix both fields so pair boundaries stay unambiguous
		binary.BigEndian.PutUint64(n[:], uint64(len(k)))
		_, _ = h.Write(n[:])
		_, _ = h.Write(k)
		binary.BigEndian.PutUint64(n[:], uint64(len(v)))
		_, _ = h.Write(n[:])
		_, _ = h.Write(v)
	}
	return h.Sum64(), nil
}

// Commit publishes all changes atomically and makes them visible to every
// transaction begun afterwards.
// Returns ErrTxNotWritable on a read-only transaction and ErrTxDone when
// the transaction has already been committed or rolled back.
func (tx *Tx) Commit() error {
	if err := tx.check(); err != nil {
		return err
	}
	if !tx.writable {
		return ErrTxNotWritable
	}

	// Holding the writer slot means nothing can have published since this
	// transaction began; anything else is a broken invariant
	if head := tx.db.versions.head(); head != tx.version {
		panic("echodb: version advanced during exclusive write transaction")
	}

	tx.done = true
	id := tx.db.versions.publish(tx.root)
	tx.db.releaseWriter()
	tx.db.log.Info("committed version", "version", id)
	return nil
}

// Rollback discards all changes made in the transaction; nothing it wrote
// is ever observable by any other transaction.
// Safe to call after Commit() (becomes a no-op) and safe to call multiple
// times (idempotent). Read-only transactions end with Rollback.
func (tx *Tx) Rollback() error {
	if tx.done {
		return nil // Already committed or rolled back
	}
	tx.done = true

	if tx.writable {
		// The working root was never published; dropping the reference is
		// the entire rollback
		tx.root = nil
		tx.db.releaseWriter()
	} else {
		tx.db.versions.release(tx.version)
	}
	return nil
}

// check verifies the transaction is still active.
func (tx *Tx) check() error {
	if tx.done {
		return ErrTxDone
	}
	return nil
}

// checkWrite verifies the transaction accepts writes and validates the
// key/value against configured limits. A nil value is allowed for deletes.
func (tx *Tx) checkWrite(key, value []byte) error {
	if err := tx.check(); err != nil {
		return err
	}
	if !tx.writable {
		return ErrTxNotWritable
	}
	if len(key) == 0 {
		return ErrKeyEmpty
	}
	if max := tx.db.opts.maxKeySize; max > 0 && len(key) > max {
		return ErrKeyTooLarge
	}
	if max := tx.db.opts.maxValueSize; max > 0 && len(value) > max {
		return ErrValueTooLarge
	}
	return nil
}

// checkGuard enforces the expected-value precondition of PutIf/DeleteIf
func (tx *Tx) checkGuard(key, expected []byte) error {
	cur, ok := algo.Search(tx.root, key)
	if expected == nil {
		if ok {
			return ErrValueMismatch
		}
		return nil
	}
	if !ok || !bytes.Equal(cur, expected) {
		return ErrValueMismatch
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
