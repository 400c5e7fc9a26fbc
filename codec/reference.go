package codec

import "fmt"

// referenceCodec backs TypeReference columns: opaque, in-memory-only
// values (callbacks, live handles, unexported pointers) that have no
// persistable byte representation. It participates in the Codec interface
// so a reference column can sit alongside persistable columns in a
// RowInfo, but any attempt to actually encode or decode one is a usage
// error in the caller, not a recoverable condition.
type referenceCodec struct {
	base
}

func (c referenceCodec) MinSize() int { return 0 }

func (c referenceCodec) EncodeSize(src any, acc int) int { return acc }

func (c referenceCodec) Encode(src any, dst []byte, offset int) int {
	panic(fmt.Sprintf("codec: column %q is a reference type and cannot be encoded", c.column.Name))
}

func (c referenceCodec) Decode(src []byte, offset, end int) (any, int, error) {
	return nil, offset, fmt.Errorf("codec: column %q is a reference type and cannot be decoded", c.column.Name)
}

func (c referenceCodec) DecodeSkip(src []byte, offset, end int) (int, error) {
	return offset, nil
}

func (c referenceCodec) Equal(other Codec) bool {
	o, ok := other.(referenceCodec)
	return ok && c.equalBase(o.base)
}
