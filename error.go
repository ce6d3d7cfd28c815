package echodb

import "errors"

var (
	ErrDatabaseClosed = errors.New("database is closed")
	ErrKeyEmpty       = errors.New("key cannot be empty")
	ErrKeyTooLarge    = errors.New("key too large")
	ErrValueTooLarge  = errors.New("value too large")
	ErrKeyExists      = errors.New("key already exists")
	ErrValueMismatch  = errors.New("value does not match expected value")

	ErrTxNotWritable = errors.New("transaction is read-only")
	ErrTxInProgress  = errors.New("write transaction already in progress")
	ErrTxDone        = errors.New("transaction has been committed or rolled back")
)
