// Package txscope implements predicate-lock acquisition over a key range
// within a transaction, plus a deadlock-mitigation wrapper that releases
// held row locks, retries the acquisition once and re-finds the rows.
// Range scans acquire through it; insert and replace calls do not consult
// it, and nothing here blocks a write because another transaction holds a
// predicate lock covering the written key.
//
// Generalizes a savepoint/retry-on-busy discipline from whole-statement
// retry down to the single-row predicate-check granularity the rest of
// this module's scan/trigger layers need.
package txscope

import (
	"context"

	"github.com/google/uuid"

	"github.com/coreward/relkv/kv"
)

// Acquired is a released-on-scope-exit predicate lock handle, returned
// by OpenAcquire/OpenAcquireBytes. ScopeID tags the acquisition with an
// opaque identifier so a log line recording contention or a retry can be
// correlated with the specific acquisition that produced it, without
// that identifier ever being interpreted as anything but an opaque tag.
type Acquired struct {
	lock    kv.PredicateLock
	ScopeID uuid.UUID
}

// Release frees the underlying predicate lock.
func (a *Acquired) Release() {
	if a.lock != nil {
		a.lock.Release()
	}
}

// OpenAcquireBytes acquires a predicate lock over [lowBound, highBound]
// on idx within txn. It is a thin pass-through to kv.Transaction's
// AcquirePredicate, kept as its own function so callers needn't import
// kv directly for this one call, and so the deadlock-mitigation wrapper
// below has a single choke point to retry through.
func OpenAcquireBytes(ctx context.Context, txn kv.Transaction, idx kv.Index, lowBound, highBound []byte) (*Acquired, error) {
	lock, err := txn.AcquirePredicate(ctx, idx, lowBound, highBound)
	if err != nil {
		return nil, err
	}
	return &Acquired{lock: lock, ScopeID: uuid.New()}, nil
}

// Refinder re-locates a row by key after a deadlock-mitigation retry has
// released and reacquired its locks; Find should leave the cursor
// invalid (and return kv.ErrNotFound) if the row no longer exists.
type Refinder interface {
	Find(ctx context.Context, key []byte) error
}

// OpenAcquire acquires a predicate lock over [lowBound, highBound] on
// idx within txn. If acquisition fails with an error the caller's
// isDeadlock hook recognizes (any other error, or any error when the hook
// is nil, is returned as is), it releases held row locks on the given
// keys via txn.Unlock, retries the acquisition once, immediately, and
// then re-finds each row through refind, re-locking the rows still
// present and reporting presence per key in the returned flags. Re-found
// rows are checked for presence only: their contents are not compared
// and the transaction is not rolled back.
func OpenAcquire(ctx context.Context, txn kv.Transaction, idx kv.Index, lowBound, highBound []byte, heldKeys [][]byte, refind Refinder, isDeadlock func(error) bool) (*Acquired, []bool, error) {
	lock, err := OpenAcquireBytes(ctx, txn, idx, lowBound, highBound)
	if err == nil {
		return lock, nil, nil
	}
	if isDeadlock == nil || !isDeadlock(err) {
		return nil, nil, err
	}

	for _, key := range heldKeys {
		txn.Unlock(idx, key)
	}

	lock, err = OpenAcquireBytes(ctx, txn, idx, lowBound, highBound)
	if err != nil {
		return nil, nil, err
	}

	stillPresent := make([]bool, len(heldKeys))
	for i, key := range heldKeys {
		ferr := refind.Find(ctx, key)
		stillPresent[i] = ferr == nil
		if ferr == nil {
			if lerr := txn.LockExclusive(ctx, idx, key); lerr != nil {
				lock.Release()
				return nil, nil, lerr
			}
		} else if ferr != kv.ErrNotFound {
			lock.Release()
			return nil, nil, ferr
		}
	}
	return lock, stillPresent, nil
}
