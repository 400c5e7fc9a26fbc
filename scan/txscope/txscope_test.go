package txscope

import (
	"context"
	"errors"
	"testing"

	"github.com/coreward/relkv/kv"
	"github.com/coreward/relkv/kv/memkv"
)

func TestOpenAcquireBytesSucceeds(t *testing.T) {
	ctx := context.Background()
	idx := memkv.New("t")
	txn := memkv.NewTxn(kv.LockModeRepeatableRead)

	lock, err := OpenAcquireBytes(ctx, txn, idx, []byte("a"), []byte("m"))
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	if !memkv.MatchesPredicate(idx, []byte("b")) {
		t.Fatal("expected predicate lock to cover b")
	}
}

func TestOpenAcquireBytesAssignsDistinctScopeIDs(t *testing.T) {
	ctx := context.Background()
	txn := memkv.NewTxn(kv.LockModeRepeatableRead)

	first, err := OpenAcquireBytes(ctx, txn, memkv.New("a"), []byte("a"), []byte("m"))
	if err != nil {
		t.Fatal(err)
	}
	defer first.Release()

	second, err := OpenAcquireBytes(ctx, txn, memkv.New("b"), []byte("a"), []byte("m"))
	if err != nil {
		t.Fatal(err)
	}
	defer second.Release()

	if first.ScopeID == second.ScopeID {
		t.Fatal("expected distinct ScopeID per acquisition")
	}
	var zero [16]byte
	if [16]byte(first.ScopeID) == zero {
		t.Fatal("expected a non-zero ScopeID")
	}
}

var errDeadlock = errors.New("deadlock detected")

// flakyTxn wraps a real kv.Transaction, failing its first
// AcquirePredicate call with errDeadlock and succeeding on every
// subsequent call, so the retry branch in OpenAcquire can be exercised
// deterministically.
type flakyTxn struct {
	kv.Transaction
	failedOnce bool
	unlocked   [][]byte
	relocked   [][]byte
}

func (f *flakyTxn) AcquirePredicate(ctx context.Context, index kv.Index, lowBound, highBound []byte) (kv.PredicateLock, error) {
	if !f.failedOnce {
		f.failedOnce = true
		return nil, errDeadlock
	}
	return f.Transaction.AcquirePredicate(ctx, index, lowBound, highBound)
}

func (f *flakyTxn) Unlock(index kv.Index, key []byte) {
	f.unlocked = append(f.unlocked, key)
	f.Transaction.Unlock(index, key)
}

func (f *flakyTxn) LockExclusive(ctx context.Context, index kv.Index, key []byte) error {
	f.relocked = append(f.relocked, key)
	return f.Transaction.LockExclusive(ctx, index, key)
}

type fakeRefinder struct {
	present map[string]bool
}

func (f fakeRefinder) Find(ctx context.Context, key []byte) error {
	if f.present[string(key)] {
		return nil
	}
	return kv.ErrNotFound
}

func TestOpenAcquireSucceedsWithoutRetryWhenFirstAttemptWorks(t *testing.T) {
	ctx := context.Background()
	idx := memkv.New("t")
	txn := memkv.NewTxn(kv.LockModeRepeatableRead)

	lock, present, err := OpenAcquire(ctx, txn, idx, []byte("a"), []byte("z"), nil, fakeRefinder{}, func(error) bool { return true })
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()
	if present != nil {
		t.Fatalf("present = %v, want nil (no retry happened)", present)
	}
}

func TestOpenAcquireNonDeadlockErrorFailsImmediately(t *testing.T) {
	ctx := context.Background()
	idx := memkv.New("t")
	base := memkv.NewTxn(kv.LockModeRepeatableRead)
	txn := &flakyTxn{Transaction: base}

	_, _, err := OpenAcquire(ctx, txn, idx, []byte("a"), []byte("z"), nil, fakeRefinder{}, func(error) bool { return false })
	if !errors.Is(err, errDeadlock) {
		t.Fatalf("err = %v, want errDeadlock surfaced unchanged", err)
	}
}

func TestOpenAcquireRetriesAndRefindsOnDeadlock(t *testing.T) {
	ctx := context.Background()
	idx := memkv.New("t")
	idx.Store(ctx, nil, []byte("a"), []byte("1"))
	idx.Store(ctx, nil, []byte("b"), []byte("2"))
	base := memkv.NewTxn(kv.LockModeRepeatableRead)
	txn := &flakyTxn{Transaction: base}

	held := [][]byte{[]byte("a"), []byte("b")}
	refind := fakeRefinder{present: map[string]bool{"a": true}} // b was deleted by the conflicting writer

	lock, present, err := OpenAcquire(ctx, txn, idx, []byte("a"), []byte("z"), held, refind, func(error) bool { return true })
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	if len(txn.unlocked) != 2 {
		t.Fatalf("expected both held keys released before retry, got %v", txn.unlocked)
	}
	if len(present) != 2 || !present[0] || present[1] {
		t.Fatalf("present = %v, want [true false]", present)
	}
	if len(txn.relocked) != 1 || string(txn.relocked[0]) != "a" {
		t.Fatalf("relocked = %v, want only 'a' re-locked", txn.relocked)
	}
}
