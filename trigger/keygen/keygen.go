// Package keygen implements automatic primary-key generation: picking an
// unused key within a configured signed/unsigned, 32/64-bit range by
// asking a caller-supplied TryAcquire callback whether each candidate is
// free, without storing a row until a candidate key actually succeeds.
// Table's callback checks for an existing primary row at the candidate
// key and takes no predicate lock.
//
// This is a bounded-retry loop over a contended resource, the same shape
// as a token-bucket retry guarded by a mutex, except the contended
// resource is a key space rather than a rate budget: each pass picks a
// fresh random candidate instead of waiting out a window.
package keygen

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
)

// Width is the integer width a generated key is encoded at.
type Width int

const (
	Width32 Width = 32
	Width64 Width = 64
)

// Range bounds the key values a Generator may pick, inclusive at both
// ends. Signed ranges may include negative values; unsigned ranges must
// have Min >= 0.
type Range struct {
	Min, Max int64
	Signed   bool
	Width    Width
}

// DefaultRange returns the full representable range for the given
// signedness and width.
func DefaultRange(signed bool, width Width) Range {
	switch {
	case signed && width == Width32:
		return Range{Min: -(1 << 31), Max: (1 << 31) - 1, Signed: true, Width: Width32}
	case signed && width == Width64:
		return Range{Min: -(1 << 63), Max: (1 << 63) - 1, Signed: true, Width: Width64}
	case !signed && width == Width32:
		return Range{Min: 0, Max: (1 << 32) - 1, Signed: false, Width: Width32}
	default:
		return Range{Min: 0, Max: int64(^uint64(0) >> 1), Signed: false, Width: Width64}
	}
}

// ErrRangeExhausted is returned when no unused key could be found within
// the configured number of attempts.
var ErrRangeExhausted = errors.New("keygen: no unused key found in range")

// TryAcquire reports whether candidate is free to use, without storing a
// row at it. Table's implementation probes the primary index for an
// existing row at the candidate key; no predicate lock is taken.
type TryAcquire func(ctx context.Context, candidate int64) (acquired bool, err error)

// Generator picks unused keys within a Range.
type Generator struct {
	rng        Range
	rand       *rand.Rand
	maxAttempts int
}

// New creates a Generator over rng. seed controls the candidate-picking
// sequence; a fixed seed makes tests deterministic.
func New(rng Range, seed int64) *Generator {
	return &Generator{
		rng:         rng,
		rand:        rand.New(rand.NewSource(seed)),
		maxAttempts: 64,
	}
}

// Next picks candidates within the range and calls tryAcquire on each
// until one succeeds, returning that key. It gives up after a bounded
// number of attempts, returning ErrRangeExhausted.
func (g *Generator) Next(ctx context.Context, tryAcquire TryAcquire) (int64, error) {
	span := uint64(g.rng.Max-g.rng.Min) + 1
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		r := g.rand.Uint64()
		if span != 0 { // span wraps to 0 for the full 64-bit signed range
			r %= span
		}
		candidate := g.rng.Min + int64(r)
		acquired, err := tryAcquire(ctx, candidate)
		if err != nil {
			return 0, fmt.Errorf("keygen: try acquire %d: %w", candidate, err)
		}
		if acquired {
			return candidate, nil
		}
	}
	return 0, ErrRangeExhausted
}
