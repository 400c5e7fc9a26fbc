// Package memkv is a minimal in-process implementation of the kv
// collaborator interfaces, backed by a sorted byte-slice index rather
// than any paged storage structure. It exists purely as a reference and
// test double implementing the same cursor contract a page-structured
// on-disk b-tree would, but deliberately not a page-structured on-disk
// b-tree itself, since on-disk page format is out of scope for this
// module.
package memkv

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/coreward/relkv/errs"
	"github.com/coreward/relkv/kv"
)

type entry struct {
	key   []byte
	value []byte
}

// Index is a sorted in-memory key/value collection guarded by a single
// RWMutex. Predicate locks are tracked as a flat list checked linearly;
// fine for test-scale data, not for production concurrency.
type Index struct {
	name string

	mu      sync.RWMutex
	entries []entry
	closed  bool

	predMu     sync.Mutex
	predicates []predicateRange
	predCond   *sync.Cond
}

type predicateRange struct {
	low, high []byte
}

// New creates an empty named Index.
func New(name string) *Index {
	idx := &Index{name: name}
	idx.predCond = sync.NewCond(&idx.predMu)
	return idx
}

func (idx *Index) Name() string { return idx.name }

func (idx *Index) find(key []byte) (int, bool) {
	i := sort.Search(len(idx.entries), func(i int) bool {
		return bytes.Compare(idx.entries[i].key, key) >= 0
	})
	if i < len(idx.entries) && bytes.Equal(idx.entries[i].key, key) {
		return i, true
	}
	return i, false
}

func (idx *Index) Load(ctx context.Context, txn kv.Transaction, key []byte) ([]byte, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, &errs.ClosedIndexError{Index: idx.name}
	}
	i, ok := idx.find(key)
	if !ok {
		return nil, kv.ErrNotFound
	}
	return append([]byte(nil), idx.entries[i].value...), nil
}

func (idx *Index) Store(ctx context.Context, txn kv.Transaction, key, value []byte) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return &errs.ClosedIndexError{Index: idx.name}
	}
	i, ok := idx.find(key)
	if value == nil {
		if ok {
			idx.entries = append(idx.entries[:i], idx.entries[i+1:]...)
		}
		return nil
	}
	stored := entry{key: append([]byte(nil), key...), value: append([]byte(nil), value...)}
	if ok {
		idx.entries[i] = stored
		return nil
	}
	idx.entries = append(idx.entries, entry{})
	copy(idx.entries[i+1:], idx.entries[i:])
	idx.entries[i] = stored
	return nil
}

func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	return nil
}

func (idx *Index) NewCursor(ctx context.Context, txn kv.Transaction) (kv.Cursor, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, &errs.ClosedIndexError{Index: idx.name}
	}
	return &cursor{idx: idx, pos: -1}, nil
}

// cursor implements kv.Cursor over a snapshot of the index's entries
// taken at First/Last/Find time: an explicit valid/invalid position
// rather than a live iterator.
type cursor struct {
	idx    *Index
	snap   []entry
	pos    int
	closed bool
}

func (c *cursor) snapshot() {
	c.idx.mu.RLock()
	defer c.idx.mu.RUnlock()
	c.snap = append([]entry(nil), c.idx.entries...)
}

func (c *cursor) First(ctx context.Context, lowBound []byte) error {
	c.snapshot()
	if lowBound == nil {
		c.pos = 0
	} else {
		c.pos = sort.Search(len(c.snap), func(i int) bool {
			return bytes.Compare(c.snap[i].key, lowBound) >= 0
		})
	}
	return nil
}

func (c *cursor) Last(ctx context.Context, highBound []byte) error {
	c.snapshot()
	if highBound == nil {
		c.pos = len(c.snap) - 1
	} else {
		i := sort.Search(len(c.snap), func(i int) bool {
			return bytes.Compare(c.snap[i].key, highBound) > 0
		})
		c.pos = i - 1
	}
	return nil
}

func (c *cursor) Find(ctx context.Context, key []byte) error {
	c.snapshot()
	i := sort.Search(len(c.snap), func(i int) bool {
		return bytes.Compare(c.snap[i].key, key) >= 0
	})
	if i >= len(c.snap) || !bytes.Equal(c.snap[i].key, key) {
		c.pos = -1
		return kv.ErrNotFound
	}
	c.pos = i
	return nil
}

func (c *cursor) Next(ctx context.Context) error {
	if c.pos < 0 {
		return nil
	}
	c.pos++
	if c.pos >= len(c.snap) {
		c.pos = -1
	}
	return nil
}

func (c *cursor) Previous(ctx context.Context) error {
	if c.pos < 0 {
		return nil
	}
	c.pos--
	if c.pos < 0 {
		c.pos = -1
	}
	return nil
}

func (c *cursor) Valid() bool { return c.pos >= 0 && c.pos < len(c.snap) }

func (c *cursor) Key() []byte {
	if !c.Valid() {
		return nil
	}
	return c.snap[c.pos].key
}

func (c *cursor) Value() []byte {
	if !c.Valid() {
		return nil
	}
	return c.snap[c.pos].value
}

func (c *cursor) Store(ctx context.Context, value []byte) error {
	if !c.Valid() {
		return kv.ErrNotFound
	}
	key := c.snap[c.pos].key
	if err := c.idx.Store(ctx, nil, key, value); err != nil {
		return err
	}
	c.snap[c.pos].value = append([]byte(nil), value...)
	return nil
}

func (c *cursor) Close() error {
	c.closed = true
	return nil
}
