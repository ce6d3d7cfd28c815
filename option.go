package echodb

import "time"

// DBOptions configures database behavior.
type DBOptions struct {
	writeWait    time.Duration // How long Begin(true) waits for the writer slot. 0 fails immediately.
	maxKeySize   int           // Maximum key length in bytes. 0 means no limit.
	maxValueSize int           // Maximum value length in bytes. 0 means no limit.
	logger       Logger
}

func defaultDBOptions() DBOptions {
	return DBOptions{
		writeWait:    0,
		maxKeySize:   0,
		maxValueSize: 0,
		logger:       DiscardLogger{},
	}
}

// DBOption configures database options using the functional options pattern.
type DBOption func(*DBOptions)

// WithWriteWait makes Begin(true) block for up to d waiting for the writer
// slot instead of failing immediately with ErrTxInProgress.
func WithWriteWait(d time.Duration) DBOption {
	return func(opts *DBOptions) {
		opts.writeWait = d
	}
}

// WithMaxKeySize caps key length; writes with longer keys fail with
// ErrKeyTooLarge.
func WithMaxKeySize(n int) DBOption {
	return func(opts *DBOptions) {
		opts.maxKeySize = n
	}
}

// WithMaxValueSize caps value length; writes with longer values fail with
// ErrValueTooLarge.
func WithMaxValueSize(n int) DBOption {
	return func(opts *DBOptions) {
		opts.maxValueSize = n
	}
}

// WithLogger sets the logger for engine events. Defaults to DiscardLogger.
func WithLogger(l Logger) DBOption {
	return func(opts *DBOptions) {
		opts.logger = l
	}
}
