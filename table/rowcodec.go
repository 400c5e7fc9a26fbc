// Package table wires every other package in this module together into
// the public Database/Table surface: encoding rows to and from key/value
// bytes, compiling and running queries, maintaining secondary indexes via
// triggers, generating primary keys, caching compiled plans, and
// exporting/importing table contents.
package table

import (
	"fmt"

	"github.com/coreward/relkv/codec"
	"github.com/coreward/relkv/rowtype"
)

// RowCodec composes the per-column codecs for one row type into whole-key
// and whole-value encode/decode, using map[string]any as the row's
// in-memory representation (column name to decoded Go value, nil for
// unset/NULL).
//
// Null handling lives entirely inside each column's own codec.Encode/
// Decode; this layer only has to walk columns in order and thread the
// byte offset through, so the composition itself stays a thin loop.
type RowCodec struct {
	info        *rowtype.RowInfo
	keyColumns  []rowtype.Column
	valColumns  []rowtype.Column
	keyCodecs   []codec.Codec
	valueCodecs []codec.Codec
	version     uint32
}

// NewRowCodec builds the codec set for info's key and value columns.
// version is the schema version stamped on every encoded value (see
// EncodeValue); it lets a later schema change add value columns without
// invalidating rows encoded under an earlier version.
func NewRowCodec(info *rowtype.RowInfo, version uint32) *RowCodec {
	return &RowCodec{
		info:        info,
		keyColumns:  info.KeyColumns,
		valColumns:  info.ValueColumns,
		keyCodecs:   buildCodecs(info.KeyColumns, true),
		valueCodecs: buildCodecs(info.ValueColumns, false),
		version:     version,
	}
}

func buildCodecs(columns []rowtype.Column, lex bool) []codec.Codec {
	codecs := make([]codec.Codec, len(columns))
	for i, c := range columns {
		last := i == len(columns)-1
		codecs[i] = codec.New(c, last, lex)
	}
	return codecs
}

// Info returns the row type this codec was built for.
func (rc *RowCodec) Info() *rowtype.RowInfo { return rc.info }

// EncodeKey encodes row's key columns into bytes in key-column order. Any
// column absent from row is treated as NULL.
func (rc *RowCodec) EncodeKey(row map[string]any) ([]byte, error) {
	return encodeColumns(rc.keyColumns, rc.keyCodecs, row)
}

// EncodeValue encodes row's value columns into bytes, prefixed by the
// codec's schema version.
func (rc *RowCodec) EncodeValue(row map[string]any) ([]byte, error) {
	body, err := encodeColumns(rc.valColumns, rc.valueCodecs, row)
	if err != nil {
		return nil, err
	}
	prefixSize := codec.EncodeVersionSize(rc.version)
	out := make([]byte, prefixSize+len(body))
	codec.EncodeVersion(rc.version, out, 0)
	copy(out[prefixSize:], body)
	return out, nil
}

func encodeColumns(columns []rowtype.Column, codecs []codec.Codec, row map[string]any) ([]byte, error) {
	values := make([]any, len(columns))
	acc := 0
	minSize := 0
	for i, c := range codecs {
		values[i] = row[columns[i].Name]
		acc = c.EncodeSize(values[i], acc)
		minSize += c.MinSize()
	}
	dst := make([]byte, acc+minSize)
	offset := 0
	for i, c := range codecs {
		offset = c.Encode(values[i], dst, offset)
	}
	return dst[:offset], nil
}

// DecodeKey decodes key into a column-name-to-value map.
func (rc *RowCodec) DecodeKey(key []byte) (map[string]any, error) {
	return decodeColumns(rc.keyColumns, rc.keyCodecs, key)
}

// DecodeValue strips the schema-version prefix and decodes the remaining
// bytes into a column-name-to-value map. A version older than the
// codec's own is accepted as-is: columns added since that version simply
// come back unset (nil), matching the schema-evolution contract the
// version prefix exists to support.
func (rc *RowCodec) DecodeValue(value []byte) (map[string]any, error) {
	_, offset := codec.DecodeVersion(value, 0)
	return decodeColumns(rc.valColumns, rc.valueCodecs, value[offset:])
}

func decodeColumns(columns []rowtype.Column, codecs []codec.Codec, src []byte) (map[string]any, error) {
	row := make(map[string]any, len(columns))
	offset := 0
	for i, c := range codecs {
		if offset >= len(src) {
			// Schema evolved since this row was written: trailing
			// columns are simply absent.
			break
		}
		v, next, err := c.Decode(src, offset, -1)
		if err != nil {
			return nil, fmt.Errorf("table: decode column %q: %w", columns[i].Name, err)
		}
		row[columns[i].Name] = v
		offset = next
	}
	return row, nil
}

// DecodeRow decodes a full key/value pair into a single merged row map.
func (rc *RowCodec) DecodeRow(key, value []byte) (map[string]any, error) {
	row, err := rc.DecodeKey(key)
	if err != nil {
		return nil, err
	}
	valCols, err := rc.DecodeValue(value)
	if err != nil {
		return nil, err
	}
	for k, v := range valCols {
		row[k] = v
	}
	return row, nil
}

// EncodeBoundPrefix encodes a conjunction of leading-key-column equality
// (and at most one closing range) terms — as produced by rangex.Range's
// Low/High — into an inclusive byte bound for cursor positioning. The
// bound is coarse: an exclusive (>, <) closing term encodes as if it were
// inclusive, so the byte range may admit one extra boundary row. Callers
// must re-check the original filter.Expr exactly against the decoded row
// (see Evaluate) to reject that row if the bound term was truly
// exclusive.
func (rc *RowCodec) EncodeBoundPrefix(bound map[string]any) ([]byte, error) {
	columns := make([]rowtype.Column, 0, len(bound))
	for _, c := range rc.keyColumns {
		if _, ok := bound[c.Name]; ok {
			columns = append(columns, c)
		}
	}
	coerced := make(map[string]any, len(columns))
	for _, c := range columns {
		v, err := coerceTo(c.Name, bound[c.Name], c.Type)
		if err != nil {
			return nil, err
		}
		coerced[c.Name] = v
	}
	codecs := make([]codec.Codec, len(columns))
	for i, c := range columns {
		codecs[i] = codec.New(c, false, true)
	}
	return encodeColumns(columns, codecs, coerced)
}
