package cd

// Written by hand in the shape msgp emits for Row. Running go generate
// on types.go replaces this file with the generated codec.

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// MarshalMsg appends the msgpack encoding of r to b.
func (r *Row) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 6)
	b = msgp.AppendString(b, "o")
	b = msgp.AppendUint32(b, r.OwnerID)
	b = msgp.AppendString(b, "p")
	b = msgp.AppendInt32(b, r.ParentRef)
	b = msgp.AppendString(b, "s")
	b = msgp.AppendInt32(b, r.SequenceID)
	b = msgp.AppendString(b, "t")
	b = msgp.AppendUint16(b, r.ItemType)
	b = msgp.AppendString(b, "c")
	b = msgp.AppendUint16(b, r.Count)
	b = msgp.AppendString(b, "a")
	b = msgp.AppendBytes(b, r.Attributes)
	return b, nil
}

// UnmarshalMsg decodes r from b and returns the remaining bytes.
// Unknown keys are skipped.
func (r *Row) UnmarshalMsg(b []byte) ([]byte, error) {
	sz, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return b, err
	}
	for ; sz > 0; sz-- {
		var key []byte
		key, b, err = msgp.ReadMapKeyZC(b)
		if err != nil {
			return b, err
		}
		switch string(key) {
		case "o":
			r.OwnerID, b, err = msgp.ReadUint32Bytes(b)
		case "p":
			r.ParentRef, b, err = msgp.ReadInt32Bytes(b)
		case "s":
			r.SequenceID, b, err = msgp.ReadInt32Bytes(b)
		case "t":
			r.ItemType, b, err = msgp.ReadUint16Bytes(b)
		case "c":
			r.Count, b, err = msgp.ReadUint16Bytes(b)
		case "a":
			r.Attributes, b, err = msgp.ReadBytesBytes(b, nil)
		default:
			b, err = msgp.Skip(b)
		}
		if err != nil {
			return b, fmt.Errorf("row field %q: %w", key, err)
		}
	}
	return b, nil
}
