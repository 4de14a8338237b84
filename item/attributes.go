package item

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// Attributes are the optional per-instance properties of an item.
// Zero values mean "not set" and are not serialized.
type Attributes struct {
	Text        string
	Description string
	Writer      string
	Date        int64
	Charges     uint16
	Duration    int32
	ActionID    uint16
	UniqueID    uint16
	Custom      map[string]string
}

func (a Attributes) IsZero() bool {
	return a.Text == "" && a.Description == "" && a.Writer == "" &&
		a.Date == 0 && a.Charges == 0 && a.Duration == 0 &&
		a.ActionID == 0 && a.UniqueID == 0 && len(a.Custom) == 0
}

func (a Attributes) clone() Attributes {
	c := a
	if a.Custom != nil {
		c.Custom = make(map[string]string, len(a.Custom))
		for k, v := range a.Custom {
			c.Custom[k] = v
		}
	}
	return c
}

func (a Attributes) fieldCount() uint32 {
	var n uint32
	for _, set := range []bool{
		a.Text != "", a.Description != "", a.Writer != "", a.Date != 0,
		a.Charges != 0, a.Duration != 0, a.ActionID != 0, a.UniqueID != 0,
		len(a.Custom) > 0,
	} {
		if set {
			n++
		}
	}
	return n
}

// SerializeAttr encodes the item's attributes as a msgpack map holding
// only the fields that are set. An item without attributes yields an
// empty blob.
func (i *Item) SerializeAttr() []byte {
	a := i.Attrs
	n := a.fieldCount()
	if n == 0 {
		return []byte{}
	}
	b := make([]byte, 0, 32)
	b = msgp.AppendMapHeader(b, n)
	if a.Text != "" {
		b = msgp.AppendString(b, "text")
		b = msgp.AppendString(b, a.Text)
	}
	if a.Description != "" {
		b = msgp.AppendString(b, "desc")
		b = msgp.AppendString(b, a.Description)
	}
	if a.Writer != "" {
		b = msgp.AppendString(b, "writer")
		b = msgp.AppendString(b, a.Writer)
	}
	if a.Date != 0 {
		b = msgp.AppendString(b, "date")
		b = msgp.AppendInt64(b, a.Date)
	}
	if a.Charges != 0 {
		b = msgp.AppendString(b, "charges")
		b = msgp.AppendUint16(b, a.Charges)
	}
	if a.Duration != 0 {
		b = msgp.AppendString(b, "duration")
		b = msgp.AppendInt32(b, a.Duration)
	}
	if a.ActionID != 0 {
		b = msgp.AppendString(b, "aid")
		b = msgp.AppendUint16(b, a.ActionID)
	}
	if a.UniqueID != 0 {
		b = msgp.AppendString(b, "uid")
		b = msgp.AppendUint16(b, a.UniqueID)
	}
	if len(a.Custom) > 0 {
		b = msgp.AppendString(b, "custom")
		b = msgp.AppendMapStrStr(b, a.Custom)
	}
	return b
}

// UnserializeAttr replaces the item's attributes with the ones decoded
// from b. Unknown keys are skipped so older readers accept newer blobs.
func (i *Item) UnserializeAttr(b []byte) error {
	var a Attributes
	if len(b) == 0 {
		i.Attrs = a
		return nil
	}
	sz, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return fmt.Errorf("attributes header: %w", err)
	}
	for ; sz > 0; sz-- {
		var key []byte
		key, b, err = msgp.ReadMapKeyZC(b)
		if err != nil {
			return fmt.Errorf("attributes key: %w", err)
		}
		switch string(key) {
		case "text":
			a.Text, b, err = msgp.ReadStringBytes(b)
		case "desc":
			a.Description, b, err = msgp.ReadStringBytes(b)
		case "writer":
			a.Writer, b, err = msgp.ReadStringBytes(b)
		case "date":
			a.Date, b, err = msgp.ReadInt64Bytes(b)
		case "charges":
			a.Charges, b, err = msgp.ReadUint16Bytes(b)
		case "duration":
			a.Duration, b, err = msgp.ReadInt32Bytes(b)
		case "aid":
			a.ActionID, b, err = msgp.ReadUint16Bytes(b)
		case "uid":
			a.UniqueID, b, err = msgp.ReadUint16Bytes(b)
		case "custom":
			a.Custom, b, err = readStrMap(b)
		default:
			b, err = msgp.Skip(b)
		}
		if err != nil {
			return fmt.Errorf("attribute %q: %w", key, err)
		}
	}
	i.Attrs = a
	return nil
}

func readStrMap(b []byte) (map[string]string, []byte, error) {
	sz, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return nil, b, err
	}
	m := make(map[string]string, sz)
	for ; sz > 0; sz-- {
		var k, v string
		k, b, err = msgp.ReadStringBytes(b)
		if err != nil {
			return nil, b, err
		}
		v, b, err = msgp.ReadStringBytes(b)
		if err != nil {
			return nil, b, err
		}
		m[k] = v
	}
	return m, b, nil
}
