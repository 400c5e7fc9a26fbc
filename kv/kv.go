// Package kv defines the collaborator interface boundary relkv expects
// from the underlying ordered, byte-addressable key/value store: an
// Index providing Cursor/Transaction access, a Cursor implementing the
// same valid/invalid state-machine discipline as a physical b-tree
// cursor (just over an opaque ordered keyspace instead of paged
// storage), and a Transaction/Lock pair modeling the predicate-lock
// protocol the scan and trigger layers build on.
//
// Storage engine internals (on-disk page format, WAL, checkpointing) are
// out of scope for this module; kv/memkv supplies a minimal in-process
// implementation purely as a reference and test double.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Cursor.Find when no entry matches.
var ErrNotFound = errors.New("kv: entry not found")

// LockMode selects the isolation level a Transaction requests from the
// predicate-lock protocol.
type LockMode uint8

const (
	LockModeNone LockMode = iota
	LockModeReadUncommitted
	LockModeReadCommitted
	LockModeRepeatableRead
	LockModeUpgradableRead
	LockModeUnsafe
)

func (m LockMode) String() string {
	switch m {
	case LockModeNone:
		return "NONE"
	case LockModeReadUncommitted:
		return "READ_UNCOMMITTED"
	case LockModeReadCommitted:
		return "READ_COMMITTED"
	case LockModeRepeatableRead:
		return "REPEATABLE_READ"
	case LockModeUpgradableRead:
		return "UPGRADABLE_READ"
	case LockModeUnsafe:
		return "UNSAFE"
	default:
		return "LockMode(?)"
	}
}

// Index is an ordered, byte-keyed collection: the storage-engine
// collaborator every table (primary or secondary) is backed by.
type Index interface {
	// Name identifies the index for logging/diagnostics.
	Name() string

	// NewCursor opens a cursor bound to txn (nil means auto-commit,
	// single-operation scope).
	NewCursor(ctx context.Context, txn Transaction) (Cursor, error)

	// Load reads the value for key within txn, returning kv.ErrNotFound
	// if absent.
	Load(ctx context.Context, txn Transaction, key []byte) ([]byte, error)

	// Store writes key/value within txn (nil value deletes).
	Store(ctx context.Context, txn Transaction, key, value []byte) error

	// Close releases the index. Any cursor or transaction still open
	// against it should subsequently fail with *errs.ClosedIndexError.
	Close() error
}

// Cursor is a bidirectional, order-preserving iterator over an Index's
// key range, following the same valid/invalid discipline as a physical
// b-tree cursor: after any positioning call, Valid reports whether Key/
// Value may be read.
type Cursor interface {
	// First positions at the lowest key >= lowBound (lowBound nil means
	// unbounded).
	First(ctx context.Context, lowBound []byte) error

	// Last positions at the highest key <= highBound (highBound nil
	// means unbounded).
	Last(ctx context.Context, highBound []byte) error

	// Find positions at key exactly, or returns kv.ErrNotFound leaving
	// the cursor Invalid.
	Find(ctx context.Context, key []byte) error

	// Next/Previous advance the cursor; after the last/first entry the
	// cursor becomes Invalid.
	Next(ctx context.Context) error
	Previous(ctx context.Context) error

	// Valid reports whether Key/Value currently return a usable entry.
	Valid() bool

	Key() []byte
	Value() []byte

	// Store writes value at the cursor's current key (or inserts key if
	// the cursor is positioned between entries, implementation defined).
	Store(ctx context.Context, value []byte) error

	// Close releases cursor resources, including any held row lock.
	Close() error
}

// Transaction is the scope predicate locks and row locks are acquired
// and released against. It does not expose commit/rollback directly —
// scan/txscope owns that lifecycle — but upward layers use it as an
// opaque handle to pass to Index/Cursor calls.
type Transaction interface {
	// Mode reports the isolation level this transaction was opened
	// with.
	Mode() LockMode

	// LockShared/LockExclusive acquire a row lock on key, blocking until
	// available or ctx is done.
	LockShared(ctx context.Context, index Index, key []byte) error
	LockExclusive(ctx context.Context, index Index, key []byte) error

	// Unlock releases a previously acquired row lock on key.
	Unlock(index Index, key []byte)

	// AcquirePredicate installs a predicate lock matching the given
	// Range's low/high byte bounds, blocking until no conflicting
	// in-flight insert/replace would violate it.
	AcquirePredicate(ctx context.Context, index Index, lowBound, highBound []byte) (PredicateLock, error)
}

// PredicateLock is a released-on-scope-exit handle returned by
// AcquirePredicate.
type PredicateLock interface {
	Release()
}
