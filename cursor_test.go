package echodb

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// populate fills the store with n sequential keys in one transaction
func populate(t *testing.T, db *DB, n int) {
	t.Helper()

	err := db.Update(func(tx *Tx) error {
		for i := 0; i < n; i++ {
			if err := tx.Put([]byte(fmt.Sprintf("key-%05d", i)), []byte(fmt.Sprintf("val-%05d", i))); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestCursorFirstLast(t *testing.T) {
	t.Parallel()

	db := setup(t)
	populate(t, db, 1000)

	err := db.View(func(tx *Tx) error {
		c := tx.Cursor()

		k, v := c.First()
		assert.Equal(t, "key-00000", string(k))
		assert.Equal(t, "val-00000", string(v))

		k, v = c.Last()
		assert.Equal(t, "key-00999", string(k))
		assert.Equal(t, "val-00999", string(v))
		return nil
	})
	require.NoError(t, err)
}

func TestCursorAscendingOrder(t *testing.T) {
	t.Parallel()

	db := setup(t)
	populate(t, db, 2000)

	err := db.View(func(tx *Tx) error {
		c := tx.Cursor()
		count := 0
		var prev []byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if prev != nil {
				require.Negative(t, bytes.Compare(prev, k), "iteration out of order")
			}
			prev = k
			count++
		}
		assert.Equal(t, 2000, count)
		return nil
	})
	require.NoError(t, err)
}

func TestCursorSeek(t *testing.T) {
	t.Parallel()

	db := setup(t)
	err := db.Update(func(tx *Tx) error {
		for _, k := range []string{"b", "d", "f", "h"} {
			if err := tx.Put([]byte(k), []byte("v")); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = db.View(func(tx *Tx) error {
		c := tx.Cursor()

		// Exact hit
		k, _ := c.Seek([]byte("d"))
		assert.Equal(t, "d", string(k))

		// Between keys lands on the next one
		k, _ = c.Seek([]byte("c"))
		assert.Equal(t, "d", string(k))

		// Before the first key
		k, _ = c.Seek([]byte("a"))
		assert.Equal(t, "b", string(k))

		// Past the last key
		k, _ = c.Seek([]byte("z"))
		assert.Nil(t, k)
		assert.False(t, c.Valid())

		// nil seek is First
		k, _ = c.Seek(nil)
		assert.Equal(t, "b", string(k))
		return nil
	})
	require.NoError(t, err)
}

func TestCursorSeekAcrossLeaves(t *testing.T) {
	t.Parallel()

	db := setup(t)
	populate(t, db, 3000)

	err := db.View(func(tx *Tx) error {
		c := tx.Cursor()
		// Seeks that land between existing keys must cross leaf
		// boundaries correctly in a deep tree
		for i := 0; i < 2999; i += 123 {
			target := []byte(fmt.Sprintf("key-%05d~", i))
			k, _ := c.Seek(target)
			require.NotNil(t, k)
			assert.Equal(t, fmt.Sprintf("key-%05d", i+1), string(k))
		}
		return nil
	})
	require.NoError(t, err)
}

func TestCursorPrev(t *testing.T) {
	t.Parallel()

	db := setup(t)
	populate(t, db, 500)

	err := db.View(func(tx *Tx) error {
		c := tx.Cursor()
		count := 0
		var prev []byte
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			if prev != nil {
				require.Positive(t, bytes.Compare(prev, k), "reverse iteration out of order")
			}
			prev = k
			count++
		}
		assert.Equal(t, 500, count)
		return nil
	})
	require.NoError(t, err)
}

func TestCursorSeekPrefix(t *testing.T) {
	t.Parallel()

	db := setup(t)
	err := db.Update(func(tx *Tx) error {
		for _, k := range []string{"aa", "ab:1", "ab:2", "ac"} {
			if err := tx.Put([]byte(k), []byte("v")); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = db.View(func(tx *Tx) error {
		c := tx.Cursor()

		k, _ := c.SeekPrefix([]byte("ab:"))
		assert.Equal(t, "ab:1", string(k))

		k, _ = c.SeekPrefix([]byte("zz"))
		assert.Nil(t, k)
		assert.False(t, c.Valid())
		return nil
	})
	require.NoError(t, err)
}

func TestCursorEmptyStore(t *testing.T) {
	t.Parallel()

	db := setup(t)

	err := db.View(func(tx *Tx) error {
		c := tx.Cursor()

		k, v := c.First()
		assert.Nil(t, k)
		assert.Nil(t, v)

		k, _ = c.Last()
		assert.Nil(t, k)

		k, _ = c.Seek([]byte("any"))
		assert.Nil(t, k)

		assert.False(t, c.Valid())
		assert.Nil(t, c.Key())
		assert.Nil(t, c.Value())
		return nil
	})
	require.NoError(t, err)
}

func TestCursorFinishedTx(t *testing.T) {
	t.Parallel()

	db := setup(t)
	populate(t, db, 10)

	tx, err := db.Begin(false)
	require.NoError(t, err)
	c := tx.Cursor()
	k, _ := c.First()
	require.NotNil(t, k)

	require.NoError(t, tx.Rollback())
	k, _ = c.Next()
	assert.Nil(t, k)
	assert.False(t, c.Valid())
}

func TestCursorBindsToCreationRoot(t *testing.T) {
	t.Parallel()

	db := setup(t)
	require.NoError(t, db.Set([]byte("a"), []byte("1")))

	err := db.Update(func(tx *Tx) error {
		c := tx.Cursor()
		require.NoError(t, tx.Put([]byte("b"), []byte("2")))

		// The old cursor walks the root it was created over
		count := 0
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			count++
		}
		assert.Equal(t, 1, count)

		// A fresh cursor sees the pending write
		count = 0
		c2 := tx.Cursor()
		for k, _ := c2.First(); k != nil; k, _ = c2.Next() {
			count++
		}
		assert.Equal(t, 2, count)
		return nil
	})
	require.NoError(t, err)
}
