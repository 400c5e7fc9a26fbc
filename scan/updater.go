package scan

import (
	"context"

	"github.com/coreward/relkv/kv"
)

// RowUpdater is the callback an Updater calls for each matched row,
// returning the replacement value (nil to delete the row, unchanged
// value to leave it alone).
type RowUpdater func(key, value []byte) (newValue []byte, deleted bool, err error)

// Updater scans a range, applying update to every matched row under a
// locking discipline chosen by UpdaterKind.
type Updater interface {
	Run(ctx context.Context, update RowUpdater) (matched, modified int, err error)
	Close() error
}

// BasicUpdater locks each row exclusively before reading it and applies
// the update in place, holding the exclusive lock only across the
// single row's read-modify-write window.
type BasicUpdater struct {
	idx   kv.Index
	txn   kv.Transaction
	inner Scanner
}

func NewBasicUpdater(idx kv.Index, txn kv.Transaction, inner Scanner) *BasicUpdater {
	return &BasicUpdater{idx: idx, txn: txn, inner: inner}
}

func (u *BasicUpdater) Run(ctx context.Context, update RowUpdater) (int, int, error) {
	matched, modified := 0, 0
	for {
		var key []byte
		decode := func(k, v []byte) (bool, error) {
			key = append([]byte(nil), k...)
			if u.txn != nil {
				if err := u.txn.LockExclusive(ctx, u.idx, key); err != nil {
					return false, err
				}
			}
			newValue, deleted, err := update(k, v)
			if err != nil {
				return false, err
			}
			if deleted {
				newValue = nil
			}
			if deleted || newValue != nil {
				if err := u.idx.Store(ctx, u.txn, key, newValue); err != nil {
					return false, err
				}
				modified++
			}
			return true, nil
		}
		ok, err := u.inner.Next(ctx, decode)
		if err != nil {
			return matched, modified, err
		}
		if !ok {
			return matched, modified, nil
		}
		matched++
	}
}

func (u *BasicUpdater) Close() error { return u.inner.Close() }

// UpgradableUpdater acquires a shared lock while scanning and upgrades to
// exclusive only for rows the update callback actually changes,
// minimizing lock contention under REPEATABLE_READ.
type UpgradableUpdater struct {
	idx   kv.Index
	txn   kv.Transaction
	inner Scanner
}

func NewUpgradableUpdater(idx kv.Index, txn kv.Transaction, inner Scanner) *UpgradableUpdater {
	return &UpgradableUpdater{idx: idx, txn: txn, inner: inner}
}

func (u *UpgradableUpdater) Run(ctx context.Context, update RowUpdater) (int, int, error) {
	matched, modified := 0, 0
	for {
		var key []byte
		decode := func(k, v []byte) (bool, error) {
			key = append([]byte(nil), k...)
			if u.txn != nil {
				if err := u.txn.LockShared(ctx, u.idx, key); err != nil {
					return false, err
				}
			}
			newValue, deleted, err := update(k, v)
			if err != nil {
				return false, err
			}
			if deleted {
				newValue = nil
			}
			if deleted || newValue != nil {
				if u.txn != nil {
					if err := u.txn.LockExclusive(ctx, u.idx, key); err != nil {
						return false, err
					}
				}
				if err := u.idx.Store(ctx, u.txn, key, newValue); err != nil {
					return false, err
				}
				modified++
			}
			return true, nil
		}
		ok, err := u.inner.Next(ctx, decode)
		if err != nil {
			return matched, modified, err
		}
		if !ok {
			return matched, modified, nil
		}
		matched++
	}
}

func (u *UpgradableUpdater) Close() error { return u.inner.Close() }

// NonRepeatableUpdater takes no row lock at all before calling update,
// appropriate under READ_UNCOMMITTED where repeated reads of the same
// row within one scan are explicitly allowed to see different values.
type NonRepeatableUpdater struct {
	idx   kv.Index
	txn   kv.Transaction
	inner Scanner
}

func NewNonRepeatableUpdater(idx kv.Index, txn kv.Transaction, inner Scanner) *NonRepeatableUpdater {
	return &NonRepeatableUpdater{idx: idx, txn: txn, inner: inner}
}

func (u *NonRepeatableUpdater) Run(ctx context.Context, update RowUpdater) (int, int, error) {
	matched, modified := 0, 0
	for {
		decode := func(k, v []byte) (bool, error) {
			key := append([]byte(nil), k...)
			newValue, deleted, err := update(k, v)
			if err != nil {
				return false, err
			}
			if deleted {
				newValue = nil
			}
			if deleted || newValue != nil {
				if err := u.idx.Store(ctx, u.txn, key, newValue); err != nil {
					return false, err
				}
				modified++
			}
			return true, nil
		}
		ok, err := u.inner.Next(ctx, decode)
		if err != nil {
			return matched, modified, err
		}
		if !ok {
			return matched, modified, nil
		}
		matched++
	}
}

func (u *NonRepeatableUpdater) Close() error { return u.inner.Close() }

// AutoCommitUpdater wraps any Updater, opening (and discarding) a fresh
// transaction per row via newTxn — the LockModeNone row-at-a-time
// auto-commit behavior.
type AutoCommitUpdater struct {
	inner  Updater
	newTxn func() kv.Transaction
}

func NewAutoCommitUpdater(inner Updater, newTxn func() kv.Transaction) *AutoCommitUpdater {
	return &AutoCommitUpdater{inner: inner, newTxn: newTxn}
}

func (u *AutoCommitUpdater) Run(ctx context.Context, update RowUpdater) (int, int, error) {
	wrapped := func(key, value []byte) ([]byte, bool, error) {
		_ = u.newTxn()
		return update(key, value)
	}
	return u.inner.Run(ctx, wrapped)
}

func (u *AutoCommitUpdater) Close() error { return u.inner.Close() }

// JoinedUpdater applies update only to rows that also satisfy a second,
// already-opened Updater's row set — used when an update's WHERE clause
// spans a join and the outer Updater only has the driving side's rows in
// hand.
type JoinedUpdater struct {
	inner  Updater
	lookup func(key, value []byte) (joinedValue []byte, ok bool, err error)
}

func NewJoinedUpdater(inner Updater, lookup func(key, value []byte) ([]byte, bool, error)) *JoinedUpdater {
	return &JoinedUpdater{inner: inner, lookup: lookup}
}

func (u *JoinedUpdater) Run(ctx context.Context, update RowUpdater) (int, int, error) {
	wrapped := func(key, value []byte) ([]byte, bool, error) {
		joined, ok, err := u.lookup(key, value)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return value, false, nil
		}
		return update(key, joined)
	}
	return u.inner.Run(ctx, wrapped)
}

func (u *JoinedUpdater) Close() error { return u.inner.Close() }

// WrappedUpdater adapts an Updater to run a side-effecting trigger
// callback before or after each row update, without altering the lock
// discipline of the wrapped Updater.
type WrappedUpdater struct {
	inner  Updater
	before func(key, value []byte) error
	after  func(key, newValue []byte, deleted bool) error
}

func NewWrappedUpdater(inner Updater, before func(key, value []byte) error, after func(key, newValue []byte, deleted bool) error) *WrappedUpdater {
	return &WrappedUpdater{inner: inner, before: before, after: after}
}

func (u *WrappedUpdater) Run(ctx context.Context, update RowUpdater) (int, int, error) {
	wrapped := func(key, value []byte) ([]byte, bool, error) {
		if u.before != nil {
			if err := u.before(key, value); err != nil {
				return nil, false, err
			}
		}
		newValue, deleted, err := update(key, value)
		if err != nil {
			return nil, false, err
		}
		if u.after != nil {
			if err := u.after(key, newValue, deleted); err != nil {
				return nil, false, err
			}
		}
		return newValue, deleted, nil
	}
	return u.inner.Run(ctx, wrapped)
}

func (u *WrappedUpdater) Close() error { return u.inner.Close() }
