package persist

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"

	"playercache/cd"
)

// PebbleBackend stores rows in an embedded pebble database.
//
// Table|Owner|SequenceID
// owner and sequence id are big endian so an owner's rows are contiguous
// and sorted by sequence id.
type PebbleBackend struct {
	path string
	opts *pebble.Options
	db   *pebble.DB
}

func NewPebbleBackend(path string, opts *pebble.Options) *PebbleBackend {
	if opts == nil {
		opts = &pebble.Options{}
	}
	return &PebbleBackend{path: path, opts: opts}
}

func (p *PebbleBackend) Connect(ctx context.Context) error {
	db, err := pebble.Open(p.path, p.opts)
	if err != nil {
		return err
	}
	p.db = db
	return nil
}

func ownerPrefix(table cd.Table, ownerID uint32) []byte {
	b := make([]byte, 5, 9)
	b[0] = byte(table)
	binary.BigEndian.PutUint32(b[1:], ownerID)
	return b
}

func rowKey(table cd.Table, ownerID uint32, sid int32) []byte {
	b := ownerPrefix(table, ownerID)
	return binary.BigEndian.AppendUint32(b, uint32(sid))
}

// upperBound returns the smallest key greater than every key starting
// with prefix.
func upperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // prefix was all 0xff
}

func (p *PebbleBackend) DeleteItems(ctx context.Context, table cd.Table, ownerID uint32) error {
	prefix := ownerPrefix(table, ownerID)
	return p.db.DeleteRange(prefix, upperBound(prefix), pebble.Sync)
}

func (p *PebbleBackend) InsertItems(ctx context.Context, table cd.Table, rows []cd.Row) error {
	if len(rows) == 0 {
		return nil
	}
	b := p.db.NewBatch()
	defer b.Close()
	for _, r := range rows {
		d, err := r.MarshalMsg(nil)
		if err != nil {
			return err
		}
		err = b.Set(rowKey(table, r.OwnerID, r.SequenceID), d, nil)
		if err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (p *PebbleBackend) LoadItems(ctx context.Context, table cd.Table, ownerID uint32) ([]cd.Row, error) {
	prefix := ownerPrefix(table, ownerID)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var rows []cd.Row
	for iter.First(); iter.Valid(); iter.Next() {
		var r cd.Row
		_, err := r.UnmarshalMsg(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("decode %x: %w", iter.Key(), err)
		}
		rows = append(rows, r)
	}
	return rows, iter.Error()
}

func (p *PebbleBackend) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}
