package codec

import (
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/coreward/relkv/rowtype"
)

// FingerprintSchema hashes a canonical textual rendering of a row type's
// column layout with blake3, giving a cheap, fixed-size identifier that
// changes whenever a column is added, removed, reordered, or retyped. A
// stored row's schema-version prefix (see EncodeVersion) says which
// generation of a row type produced it; the fingerprint lets a reader
// confirm that a given version number still means what it meant when the
// row was written, rather than trusting the integer alone across a schema
// migration that reused or skipped a version number.
func FingerprintSchema(info *rowtype.RowInfo) [32]byte {
	var b strings.Builder
	b.WriteString(info.Name)
	for _, c := range info.KeyColumns {
		writeColumn(&b, c)
	}
	b.WriteByte('\x00')
	for _, c := range info.ValueColumns {
		writeColumn(&b, c)
	}
	return blake3.Sum256([]byte(b.String()))
}

func writeColumn(b *strings.Builder, c rowtype.Column) {
	b.WriteByte('\x00')
	b.WriteString(c.Name)
	b.WriteByte('\x00')
	b.WriteString(c.Type.String())
	if c.Nullable {
		b.WriteString("\x00null")
	}
}

// FingerprintString renders a fingerprint as a short hex string suitable
// for log lines and cache keys.
func FingerprintString(fp [32]byte) string {
	return fmt.Sprintf("%x", fp[:8])
}
