// Package snapshot implements xz-compressed export and import of a
// table's row stream: a simple length-prefixed key/value framing wrapped
// in an xz writer/reader pair, independent of any particular backing
// index implementation.
//
// Uses github.com/ulikunitz/xz, the same compression wrapper applied to a
// row stream here that an archive pack/unpack step would apply to a tar
// byte stream.
package snapshot

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

// Source yields a table's rows in the backing index's natural key order.
type Source interface {
	// Next returns the next key/value pair, or ok=false once exhausted.
	Next() (key, value []byte, ok bool, err error)
}

// Sink receives rows during import, in the order Export wrote them.
type Sink interface {
	Put(key, value []byte) error
}

// formatMagic tags the stream so Import can reject non-snapshot input
// early rather than failing deep inside xz decompression.
var formatMagic = [4]byte{'r', 'k', 'v', '1'}

// Export writes every row of src to w as an xz-compressed stream.
func Export(w io.Writer, src Source) error {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("snapshot: open xz writer: %w", err)
	}
	if _, err := xw.Write(formatMagic[:]); err != nil {
		return err
	}
	for {
		key, value, ok, err := src.Next()
		if err != nil {
			return fmt.Errorf("snapshot: read row: %w", err)
		}
		if !ok {
			break
		}
		if err := writeFrame(xw, key); err != nil {
			return err
		}
		if err := writeFrame(xw, value); err != nil {
			return err
		}
	}
	// A zero-length key frame only ever appears as the terminator: a
	// real key is never empty (every row type has at least one key
	// column).
	if err := writeFrame(xw, nil); err != nil {
		return err
	}
	return xw.Close()
}

// Import reads an xz-compressed stream written by Export and replays
// each row into sink.
func Import(r io.Reader, sink Sink) error {
	xr, err := xz.NewReader(r)
	if err != nil {
		return fmt.Errorf("snapshot: open xz reader: %w", err)
	}
	var magic [4]byte
	if _, err := io.ReadFull(xr, magic[:]); err != nil {
		return fmt.Errorf("snapshot: read magic: %w", err)
	}
	if magic != formatMagic {
		return fmt.Errorf("snapshot: not a snapshot stream (bad magic %q)", magic)
	}
	for {
		key, err := readFrame(xr)
		if err != nil {
			return fmt.Errorf("snapshot: read key frame: %w", err)
		}
		if len(key) == 0 {
			return nil
		}
		value, err := readFrame(xr)
		if err != nil {
			return fmt.Errorf("snapshot: read value frame: %w", err)
		}
		if err := sink.Put(key, value); err != nil {
			return fmt.Errorf("snapshot: put row: %w", err)
		}
	}
}

func writeFrame(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
