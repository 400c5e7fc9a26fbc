// Package scan implements range scanning and updating over a kv.Index,
// the lock-mode policy table that selects scanner/updater/predicate-lock
// behavior from a transaction's isolation level, and (in the txscope
// subpackage) the predicate-lock acquisition protocol with its
// deadlock-mitigation re-find path.
//
// This generalizes an explicit Valid/Invalid position,
// MoveToFirst/Next/Previous cursor state machine from physical b-tree
// traversal to a logical range scan layered over kv.Cursor.
package scan

import (
	"context"

	"github.com/coreward/relkv/kv"
	"github.com/coreward/relkv/rangex"
)

// Row is the materialize-on-demand callback a Scanner uses to turn a raw
// key/value pair into caller-visible columns; scan itself stays
// byte-oriented so it has no dependency on the codec/rowtype packages.
type RowDecoder func(key, value []byte) (matched bool, err error)

// Scanner iterates a single rangex.Range over an Index, applying Range's
// remainder filter via a caller-supplied quick-match hook before handing
// control to decode.
type Scanner interface {
	// Next advances to the next matching row, calling decode with its
	// raw key/value. It returns false when the scan is exhausted.
	Next(ctx context.Context, decode RowDecoder) (bool, error)
	Close() error
}

// BasicScanner is a straightforward forward/backward range scan with no
// special lock handling beyond what the Transaction already provides.
type BasicScanner struct {
	cursor  kv.Cursor
	rng     rangex.Range
	reverse bool
}

// NewBasicScanner opens a BasicScanner over idx within txn, positioned by
// rng's low/high byte bounds (already encoded by the caller — this
// package has no codec dependency, so bound encoding happens upstream in
// plan).
func NewBasicScanner(ctx context.Context, idx kv.Index, txn kv.Transaction, rng rangex.Range, lowKey, highKey []byte, reverse bool) (*BasicScanner, error) {
	cur, err := idx.NewCursor(ctx, txn)
	if err != nil {
		return nil, err
	}
	s := &BasicScanner{cursor: cur, rng: rng, reverse: reverse}
	if reverse {
		err = cur.Last(ctx, highKey)
	} else {
		err = cur.First(ctx, lowKey)
	}
	if err != nil {
		cur.Close()
		return nil, err
	}
	return s, nil
}

func (s *BasicScanner) Next(ctx context.Context, decode RowDecoder) (bool, error) {
	for s.cursor.Valid() {
		key, value := s.cursor.Key(), s.cursor.Value()
		matched, err := decode(key, value)
		if err != nil {
			return false, err
		}
		if s.reverse {
			if adverr := s.cursor.Previous(ctx); adverr != nil {
				return false, adverr
			}
		} else {
			if adverr := s.cursor.Next(ctx); adverr != nil {
				return false, adverr
			}
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

func (s *BasicScanner) Close() error { return s.cursor.Close() }

// AutoUnlockScanner wraps a Scanner opened against a secondary index,
// releasing the secondary row lock once the corresponding primary row has
// been joined and validated — the secondary lock only needed to exist to
// keep the candidate key stable across the join window.
type AutoUnlockScanner struct {
	inner     Scanner
	txn       kv.Transaction
	secondary kv.Index
	lastKey   []byte
}

func NewAutoUnlockScanner(inner Scanner, txn kv.Transaction, secondary kv.Index) *AutoUnlockScanner {
	return &AutoUnlockScanner{inner: inner, txn: txn, secondary: secondary}
}

func (s *AutoUnlockScanner) Next(ctx context.Context, decode RowDecoder) (bool, error) {
	if s.lastKey != nil {
		s.txn.Unlock(s.secondary, s.lastKey)
		s.lastKey = nil
	}
	var key []byte
	wrapped := func(k, v []byte) (bool, error) {
		key = k
		return decode(k, v)
	}
	ok, err := s.inner.Next(ctx, wrapped)
	if ok {
		s.lastKey = key
	}
	return ok, err
}

func (s *AutoUnlockScanner) Close() error {
	if s.lastKey != nil {
		s.txn.Unlock(s.secondary, s.lastKey)
	}
	return s.inner.Close()
}

// TxnResetScanner wraps a Scanner opened with a nil (auto-commit)
// transaction. Each call to Next calls newTxn and discards the result;
// the inner scanner keeps using the transaction it was opened with.
type TxnResetScanner struct {
	inner Scanner
	newTxn func() kv.Transaction
}

func NewTxnResetScanner(inner Scanner, newTxn func() kv.Transaction) *TxnResetScanner {
	return &TxnResetScanner{inner: inner, newTxn: newTxn}
}

func (s *TxnResetScanner) Next(ctx context.Context, decode RowDecoder) (bool, error) {
	_ = s.newTxn() // the returned transaction is not used
	return s.inner.Next(ctx, decode)
}

func (s *TxnResetScanner) Close() error { return s.inner.Close() }
