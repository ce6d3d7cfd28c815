// Package echodb is an embedded, in-memory, versioned key-value store with
// multi-version concurrency control, serializable ACID transactions, and
// lock-free concurrent reads.
//
// The keyspace is a persistent B+tree: every commit publishes a new
// immutable root and shares all unchanged subtrees with prior versions.
// Readers bind to the root that was current when they began and keep that
// exact view for their whole lifetime, regardless of later commits. At most
// one write transaction is active at a time.
package echodb

import (
	"sync"
	"time"

	"github.com/rohan-flutterint/echodb/internal/base"
)

type DB struct {
	opts DBOptions
	log  Logger

	versions  *versionTable
	writer    chan struct{} // Capacity-1 writer slot; holding the token is holding the write lock
	closed    chan struct{} // Closed on DB.Close
	closeOnce sync.Once
}

// New creates an empty store at version 0. Nothing is loaded from or
// written to external storage; the store lives and dies with the process.
func New(options ...DBOption) *DB {
	opts := defaultDBOptions()
	for _, opt := range options {
		opt(&opts)
	}

	return &DB{
		opts:     opts,
		log:      opts.logger,
		versions: newVersionTable(base.NewLeaf()),
		writer:   make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
}

// Begin starts a transaction.
//
// Read transactions bind to the current version, never block, and may run
// in any number concurrently. Write transactions contend for the single
// writer slot: by default a held slot fails immediately with
// ErrTxInProgress; with WithWriteWait the call blocks for up to the
// configured duration before giving up.
func (db *DB) Begin(writable bool) (*Tx, error) {
	if !writable {
		return db.beginRead()
	}
	return db.BeginWrite(db.opts.writeWait)
}

// BeginWrite starts a write transaction, waiting up to wait for the writer
// slot. wait <= 0 fails immediately when the slot is held.
func (db *DB) BeginWrite(wait time.Duration) (*Tx, error) {
	if db.isClosed() {
		return nil, ErrDatabaseClosed
	}
	if err := db.acquireWriter(wait); err != nil {
		return nil, err
	}
	if db.isClosed() {
		db.releaseWriter()
		return nil, ErrDatabaseClosed
	}

	// The working root starts as the current root; edits replace it via
	// copy-on-write and stay invisible until Commit publishes it
	v := db.versions.head()
	return &Tx{db: db, writable: true, version: v, root: v.root}, nil
}

func (db *DB) beginRead() (*Tx, error) {
	if db.isClosed() {
		return nil, ErrDatabaseClosed
	}
	v := db.versions.head()
	db.versions.retain(v)
	return &Tx{db: db, version: v, root: v.root}, nil
}

func (db *DB) acquireWriter(wait time.Duration) error {
	select {
	case db.writer <- struct{}{}:
		return nil
	default:
	}
	if wait <= 0 {
		return ErrTxInProgress
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case db.writer <- struct{}{}:
		return nil
	case <-t.C:
		db.log.Warn("writer slot wait timed out", "wait", wait)
		return ErrTxInProgress
	}
}

func (db *DB) releaseWriter() {
	<-db.writer
}

// View executes a function within a read-only transaction.
func (db *DB) View(fn func(*Tx) error) error {
	tx, err := db.Begin(false)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	return fn(tx)
}

// Update executes a function within a read-write transaction.
// If the function returns an error, the transaction is rolled back.
// If the function returns nil, the transaction is committed.
func (db *DB) Update(fn func(*Tx) error) error {
	tx, err := db.Begin(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// Get retrieves the value for a key in a one-shot read transaction.
// Returns nil when the key is absent.
func (db *DB) Get(key []byte) ([]byte, error) {
	var result []byte
	err := db.View(func(tx *Tx) error {
		val, err := tx.Get(key)
		if err != nil {
			return err
		}
		result = val
		return nil
	})
	return result, err
}

// Set writes a key-value pair in a one-shot write transaction.
func (db *DB) Set(key, value []byte) error {
	return db.Update(func(tx *Tx) error {
		return tx.Put(key, value)
	})
}

// Delete removes a key in a one-shot write transaction.
func (db *DB) Delete(key []byte) error {
	return db.Update(func(tx *Tx) error {
		return tx.Delete(key)
	})
}

// Close marks the store closed. Transactions already in flight finish
// normally; new ones fail with ErrDatabaseClosed.
func (db *DB) Close() error {
	err := ErrDatabaseClosed
	db.closeOnce.Do(func() {
		close(db.closed)
		db.log.Info("store closed", "version", db.versions.head().id)
		err = nil
	})
	return err
}

func (db *DB) isClosed() bool {
	select {
	case <-db.closed:
		return true
	default:
		return false
	}
}

// Stats is a point-in-time snapshot of engine counters.
type Stats struct {
	Version      uint64 // Current committed version number
	LiveVersions int    // Versions retained for readers, including current
}

func (db *DB) Stats() Stats {
	return Stats{
		Version:      db.versions.head().id,
		LiveVersions: db.versions.live(),
	}
}
