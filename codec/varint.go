package codec

// putVarint and getVarint implement a big-endian, base-128 variable length
// integer encoding (continuation bit set on every byte but the last),
// used for non-order-preserving length prefixes on string, BigInteger and
// BigDecimal columns. This is a plain loop rather than a hand-unrolled fast path:
// codec columns are a few bytes at most, so unrolling isn't worth the
// duplication here.
func putVarint(dst []byte, v uint64) int {
	var buf [10]byte
	n := 0
	buf[9] = byte(v & 0x7f)
	n = 1
	v >>= 7
	for v != 0 {
		n++
		buf[10-n] = byte(v&0x7f) | 0x80
		v >>= 7
	}
	copy(dst, buf[10-n:])
	return n
}

func varintLen(v uint64) int {
	n := 1
	v >>= 7
	for v != 0 {
		n++
		v >>= 7
	}
	return n
}

func getVarint(src []byte, offset int) (uint64, int) {
	var v uint64
	n := 0
	for {
		if offset+n >= len(src) {
			return 0, 0
		}
		b := src[offset+n]
		v = (v << 7) | uint64(b&0x7f)
		n++
		if b&0x80 == 0 {
			return v, n
		}
		if n >= 10 {
			return 0, 0
		}
	}
}
