// Package wire implements the remote pipe protocol: a per-row streaming
// framing format over any io.Reader/io.Writer, used to carry scan
// results across a process boundary. Each frame starts with a one-byte
// tag naming what follows, so a receiver never has to guess.
//
// Uses the same big-endian, explicitly-offset binary framing discipline
// (named tag/offset constants, encoding/binary reads and writes) that a
// page format would apply, applied here to a row stream instead of a
// fixed-size page.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/coreward/relkv/rowtype"
)

// Tag is the one-byte frame-kind prefix of the remote pipe protocol.
type Tag byte

const (
	// TagEndOfStream marks the end of the row stream; no further frames
	// follow.
	TagEndOfStream Tag = 0
	// TagDecoderUnchanged introduces a row body decoded with whatever
	// decoder is currently selected.
	TagDecoderUnchanged Tag = 1
	// TagNewDecoderFollows introduces a RowHeader defining a new decoder,
	// registered and selected as current, followed by the row body it
	// decodes.
	TagNewDecoderFollows Tag = 2
	// TagException introduces a serialized error; the pipe is done after
	// this frame.
	TagException Tag = 3
	// TagExtendedDecoderID selects a previously registered decoder by id
	// without resending its header, followed by the row body it decodes.
	TagExtendedDecoderID Tag = 4
)

// RowHeader describes the columns a decoder id is registered against.
type RowHeader struct {
	Columns []rowtype.Column
}

// RemoteError wraps an error message received via TagException.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return "wire: remote error: " + e.Message }

// Writer emits frames of the remote pipe protocol. It is not safe for
// concurrent use by multiple goroutines.
type Writer struct {
	w        io.Writer
	headers  []RowHeader // registered decoders, indexed by id
	byShape  map[string]int
	currentID int
	haveCurrent bool
}

// NewWriter wraps w for remote-pipe-protocol framing.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, byShape: make(map[string]int), currentID: -1}
}

// WriteRow writes one row's body, registering a new decoder for columns
// if this shape hasn't been seen yet, referencing an existing decoder by
// extended id if it has and it isn't the current one, or simply reusing
// the current decoder if the shape is unchanged.
func (wr *Writer) WriteRow(columns []rowtype.Column, body []byte) error {
	shape := shapeKey(columns)
	id, known := wr.byShape[shape]

	switch {
	case !known:
		id = len(wr.headers)
		wr.headers = append(wr.headers, RowHeader{Columns: columns})
		wr.byShape[shape] = id
		if err := writeTag(wr.w, TagNewDecoderFollows); err != nil {
			return err
		}
		if err := writeRowHeader(wr.w, RowHeader{Columns: columns}); err != nil {
			return err
		}
	case wr.haveCurrent && id == wr.currentID:
		if err := writeTag(wr.w, TagDecoderUnchanged); err != nil {
			return err
		}
	default:
		if err := writeTag(wr.w, TagExtendedDecoderID); err != nil {
			return err
		}
		if err := binary.Write(wr.w, binary.BigEndian, uint32(id)); err != nil {
			return err
		}
	}
	wr.currentID = id
	wr.haveCurrent = true
	return writeLengthPrefixed(wr.w, body)
}

// WriteEndOfStream writes the terminal end-of-stream frame.
func (wr *Writer) WriteEndOfStream() error {
	return writeTag(wr.w, TagEndOfStream)
}

// WriteException writes a terminal exception frame carrying message; the
// caller must not write further frames afterward.
func (wr *Writer) WriteException(message string) error {
	if err := writeTag(wr.w, TagException); err != nil {
		return err
	}
	return writeLengthPrefixed(wr.w, []byte(message))
}

func shapeKey(columns []rowtype.Column) string {
	var b []byte
	for _, c := range columns {
		b = append(b, []byte(c.Name)...)
		b = append(b, 0, byte(c.Type), byte(c.ElementType))
	}
	return string(b)
}

// Reader consumes frames of the remote pipe protocol.
type Reader struct {
	r       io.Reader
	headers []RowHeader
	current int
}

// NewReader wraps r for remote-pipe-protocol framing.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, current: -1}
}

// ReadRow reads the next frame. end is true once TagEndOfStream is
// reached, after which body and columns are both nil and err is nil.
// TagException frames are surfaced as a *RemoteError.
func (r *Reader) ReadRow() (columns []rowtype.Column, body []byte, end bool, err error) {
	tag, err := readTag(r.r)
	if err != nil {
		return nil, nil, false, err
	}
	switch tag {
	case TagEndOfStream:
		return nil, nil, true, nil
	case TagException:
		msg, err := readLengthPrefixed(r.r)
		if err != nil {
			return nil, nil, false, err
		}
		return nil, nil, false, &RemoteError{Message: string(msg)}
	case TagNewDecoderFollows:
		header, err := readRowHeader(r.r)
		if err != nil {
			return nil, nil, false, err
		}
		r.headers = append(r.headers, header)
		r.current = len(r.headers) - 1
	case TagExtendedDecoderID:
		var id uint32
		if err := binary.Read(r.r, binary.BigEndian, &id); err != nil {
			return nil, nil, false, err
		}
		if int(id) >= len(r.headers) {
			return nil, nil, false, fmt.Errorf("wire: unknown decoder id %d", id)
		}
		r.current = int(id)
	case TagDecoderUnchanged:
		// current stays as-is
	default:
		return nil, nil, false, fmt.Errorf("wire: unknown frame tag %d", tag)
	}
	if r.current < 0 {
		return nil, nil, false, fmt.Errorf("wire: row body with no decoder selected")
	}
	body, err = readLengthPrefixed(r.r)
	if err != nil {
		return nil, nil, false, err
	}
	return r.headers[r.current].Columns, body, false, nil
}

func writeTag(w io.Writer, tag Tag) error {
	_, err := w.Write([]byte{byte(tag)})
	return err
}

func readTag(r io.Reader) (Tag, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return Tag(b[0]), nil
}

func writeRowHeader(w io.Writer, h RowHeader) error {
	if err := binary.Write(w, binary.BigEndian, uint16(len(h.Columns))); err != nil {
		return err
	}
	for _, c := range h.Columns {
		if err := writeLengthPrefixed16(w, []byte(c.Name)); err != nil {
			return err
		}
		flags := byte(0)
		if c.Nullable {
			flags |= 0x01
		}
		if c.Descending() {
			flags |= 0x02
		}
		if c.NullLow() {
			flags |= 0x04
		}
		if c.Automatic {
			flags |= 0x08
		}
		if _, err := w.Write([]byte{byte(c.Type), byte(c.ElementType), flags}); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, uint32(c.ArrayLen)); err != nil {
			return err
		}
	}
	return nil
}

func readRowHeader(r io.Reader) (RowHeader, error) {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return RowHeader{}, err
	}
	columns := make([]rowtype.Column, count)
	for i := range columns {
		name, err := readLengthPrefixed16(r)
		if err != nil {
			return RowHeader{}, err
		}
		var head [3]byte
		if _, err := io.ReadFull(r, head[:]); err != nil {
			return RowHeader{}, err
		}
		var arrayLen uint32
		if err := binary.Read(r, binary.BigEndian, &arrayLen); err != nil {
			return RowHeader{}, err
		}
		flags := head[2]
		col := rowtype.Column{
			Name:        string(name),
			Type:        rowtype.Type(head[0]),
			ElementType: rowtype.Type(head[1]),
			ArrayLen:    int(arrayLen),
			Nullable:    flags&0x01 != 0,
		}
		if flags&0x02 != 0 {
			col.Direction = rowtype.Descending
		}
		if flags&0x04 == 0 {
			col.NullOrder = rowtype.NullHigh
		}
		col.Automatic = flags&0x08 != 0
		columns[i] = col
	}
	return RowHeader{Columns: columns}, nil
}

func writeLengthPrefixed16(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint16(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readLengthPrefixed16(r io.Reader) ([]byte, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// writeLengthPrefixed writes body with a 2-byte length prefix when it
// fits in 15 bits, or a 4-byte prefix (high bit of the first byte set)
// otherwise.
func writeLengthPrefixed(w io.Writer, body []byte) error {
	n := len(body)
	if n < 0x8000 {
		if err := binary.Write(w, binary.BigEndian, uint16(n)); err != nil {
			return err
		}
	} else {
		if err := binary.Write(w, binary.BigEndian, uint32(n)|0x80000000); err != nil {
			return err
		}
	}
	_, err := w.Write(body)
	return err
}

func readLengthPrefixed(r io.Reader) ([]byte, error) {
	var first [1]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return nil, err
	}
	var n uint32
	if first[0]&0x80 == 0 {
		var second [1]byte
		if _, err := io.ReadFull(r, second[:]); err != nil {
			return nil, err
		}
		n = uint32(first[0])<<8 | uint32(second[0])
	} else {
		var rest [3]byte
		if _, err := io.ReadFull(r, rest[:]); err != nil {
			return nil, err
		}
		n = uint32(first[0]&0x7F)<<24 | uint32(rest[0])<<16 | uint32(rest[1])<<8 | uint32(rest[2])
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
