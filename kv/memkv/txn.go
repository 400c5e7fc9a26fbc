package memkv

import (
	"bytes"
	"context"
	"sync"

	"github.com/coreward/relkv/kv"
)

// Txn is memkv's kv.Transaction implementation: row locks are recorded in
// a per-transaction key set and never block (a shared lock is taken as an
// exclusive one); predicate locks append a [low,high] byte range, both
// ends inclusive, to the index's list. Only MatchesPredicate consults that
// list; writes to the index do not check it. Fine for test-scale
// concurrency, not for production use.
type Txn struct {
	mode kv.LockMode

	mu    sync.Mutex
	rows  map[string]struct{}
}

// NewTxn opens a Txn in the given lock mode.
func NewTxn(mode kv.LockMode) *Txn {
	return &Txn{mode: mode, rows: make(map[string]struct{})}
}

func (t *Txn) Mode() kv.LockMode { return t.mode }

func (t *Txn) LockShared(ctx context.Context, index kv.Index, key []byte) error {
	return t.LockExclusive(ctx, index, key)
}

func (t *Txn) LockExclusive(ctx context.Context, index kv.Index, key []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[rowKey(index, key)] = struct{}{}
	return nil
}

func (t *Txn) Unlock(index kv.Index, key []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rows, rowKey(index, key))
}

func (t *Txn) AcquirePredicate(ctx context.Context, index kv.Index, lowBound, highBound []byte) (kv.PredicateLock, error) {
	mi, ok := index.(*Index)
	if !ok {
		return noopLock{}, nil
	}
	mi.predMu.Lock()
	mi.predicates = append(mi.predicates, predicateRange{low: lowBound, high: highBound})
	mi.predMu.Unlock()
	return &predLock{idx: mi, low: lowBound, high: highBound}, nil
}

func rowKey(index kv.Index, key []byte) string {
	return index.Name() + "\x00" + string(key)
}

type predLock struct {
	idx       *Index
	low, high []byte
}

func (p *predLock) Release() {
	p.idx.predMu.Lock()
	defer p.idx.predMu.Unlock()
	for i, r := range p.idx.predicates {
		if bytes.Equal(r.low, p.low) && bytes.Equal(r.high, p.high) {
			p.idx.predicates = append(p.idx.predicates[:i], p.idx.predicates[i+1:]...)
			break
		}
	}
	p.idx.predCond.Broadcast()
}

type noopLock struct{}

func (noopLock) Release() {}

// MatchesPredicate reports whether key falls inside any currently held
// predicate lock range on idx, bounds inclusive and a nil bound meaning
// unbounded.
func MatchesPredicate(idx *Index, key []byte) bool {
	idx.predMu.Lock()
	defer idx.predMu.Unlock()
	for _, r := range idx.predicates {
		if r.low != nil && bytes.Compare(key, r.low) < 0 {
			continue
		}
		if r.high != nil && bytes.Compare(key, r.high) > 0 {
			continue
		}
		return true
	}
	return false
}
