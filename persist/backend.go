package persist

import (
	"context"
	"sort"
	"sync"

	"playercache/cd"
)

// Backend is the durable store behind the cache. InsertItems must write
// all rows or none.
type Backend interface {
	Connect(ctx context.Context) error
	DeleteItems(ctx context.Context, table cd.Table, ownerID uint32) error
	InsertItems(ctx context.Context, table cd.Table, rows []cd.Row) error
	LoadItems(ctx context.Context, table cd.Table, ownerID uint32) ([]cd.Row, error)
	Close() error
}

// Op is one call recorded by MemBackend.
type Op struct {
	Kind    string // "delete" or "insert"
	Table   cd.Table
	OwnerID uint32
	Rows    int
}

type memKey struct {
	table cd.Table
	owner uint32
}

// MemBackend keeps rows in process memory. It records every call and can
// be told to fail, which makes it the backend of choice for tests and for
// running the server without a database.
type MemBackend struct {
	mu        sync.Mutex
	rows      map[memKey][]cd.Row
	ops       []Op
	connected bool

	// FailOn, when set, is consulted before every write; a non-nil
	// return is reported as the write's error.
	FailOn func(op Op) error
	// OnWrite, when set, is called before every write while no lock is held.
	OnWrite func(op Op)
}

func NewMemBackend() *MemBackend {
	return &MemBackend{rows: map[memKey][]cd.Row{}}
}

func (m *MemBackend) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

func (m *MemBackend) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MemBackend) write(op Op, apply func()) error {
	if m.OnWrite != nil {
		m.OnWrite(op)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, op)
	if m.FailOn != nil {
		if err := m.FailOn(op); err != nil {
			return err
		}
	}
	apply()
	return nil
}

func (m *MemBackend) DeleteItems(ctx context.Context, table cd.Table, ownerID uint32) error {
	op := Op{Kind: "delete", Table: table, OwnerID: ownerID}
	return m.write(op, func() {
		delete(m.rows, memKey{table, ownerID})
	})
}

func (m *MemBackend) InsertItems(ctx context.Context, table cd.Table, rows []cd.Row) error {
	if len(rows) == 0 {
		return nil
	}
	op := Op{Kind: "insert", Table: table, OwnerID: rows[0].OwnerID, Rows: len(rows)}
	return m.write(op, func() {
		for _, r := range rows {
			r.Attributes = append([]byte(nil), r.Attributes...)
			k := memKey{table, r.OwnerID}
			m.rows[k] = append(m.rows[k], r)
		}
	})
}

func (m *MemBackend) LoadItems(ctx context.Context, table cd.Table, ownerID uint32) ([]cd.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.rows[memKey{table, ownerID}]
	out := make([]cd.Row, len(stored))
	copy(out, stored)
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceID < out[j].SequenceID })
	return out, nil
}

func (m *MemBackend) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// Ops returns a copy of the calls recorded so far.
func (m *MemBackend) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Op, len(m.ops))
	copy(out, m.ops)
	return out
}
