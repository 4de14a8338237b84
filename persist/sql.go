package persist

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"playercache/cd"
)

const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "postgres"
)

const itemColumns = "player_id, pid, sid, itemtype, count, attributes"

const paramsPerRow = 6

// bind parameter limits per statement; sqlite builds older than 3.32
// stop at 999
var maxParams = map[string]int{
	DialectSQLite:   999,
	DialectPostgres: 65535,
}

var schemas = map[string]string{
	DialectSQLite: `CREATE TABLE IF NOT EXISTS %[1]s (
	player_id INTEGER NOT NULL,
	pid INTEGER NOT NULL DEFAULT 0,
	sid INTEGER NOT NULL DEFAULT 0,
	itemtype INTEGER NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	attributes BLOB NOT NULL,
	UNIQUE (player_id, sid)
)`,
	DialectPostgres: `CREATE TABLE IF NOT EXISTS %[1]s (
	player_id BIGINT NOT NULL,
	pid INTEGER NOT NULL DEFAULT 0,
	sid INTEGER NOT NULL DEFAULT 0,
	itemtype INTEGER NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	attributes BYTEA NOT NULL,
	UNIQUE (player_id, sid)
)`,
}

// SQLBackend stores rows in a relational database through database/sql.
// The connection is opened by Connect, which also creates missing tables.
type SQLBackend struct {
	dialect   string
	dsn       string
	db        *sql.DB
	batchRows int // rows per INSERT statement
}

func NewSQLBackend(dialect, dsn string) (*SQLBackend, error) {
	if _, ok := schemas[dialect]; !ok {
		return nil, fmt.Errorf("%q: %w", dialect, cd.ErrUnknownDialect)
	}
	return &SQLBackend{
		dialect:   dialect,
		dsn:       dsn,
		batchRows: maxParams[dialect] / paramsPerRow,
	}, nil
}

func (s *SQLBackend) Connect(ctx context.Context) error {
	db, err := sql.Open(s.dialect, s.dsn)
	if err != nil {
		return err
	}
	if s.dialect == DialectSQLite {
		// one writer; also keeps ":memory:" databases on a single connection
		db.SetMaxOpenConns(1)
	}
	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return fmt.Errorf("ping %s: %w", s.dialect, err)
	}
	for _, t := range cd.Tables {
		_, err = db.ExecContext(ctx, fmt.Sprintf(schemas[s.dialect], t))
		if err != nil {
			db.Close()
			return fmt.Errorf("create %s: %w", t, err)
		}
	}
	s.db = db
	return nil
}

// placeholder returns the n-th (1 based) bind parameter for the dialect
func (s *SQLBackend) placeholder(n int) string {
	if s.dialect == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (s *SQLBackend) DeleteItems(ctx context.Context, table cd.Table, ownerID uint32) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM "+table.String()+" WHERE player_id = "+s.placeholder(1), ownerID)
	return err
}

// insertBatch accumulates rows for one multi-row INSERT statement.
type insertBatch struct {
	s    *SQLBackend
	sb   strings.Builder
	args []any
}

func (s *SQLBackend) newInsert(table cd.Table) *insertBatch {
	ib := &insertBatch{s: s}
	ib.sb.WriteString("INSERT INTO ")
	ib.sb.WriteString(table.String())
	ib.sb.WriteString(" (" + itemColumns + ") VALUES ")
	return ib
}

func (ib *insertBatch) addRow(r cd.Row) {
	if len(ib.args) > 0 {
		ib.sb.WriteByte(',')
	}
	attrs := r.Attributes
	if attrs == nil {
		attrs = []byte{}
	}
	ib.sb.WriteByte('(')
	for i, v := range []any{int64(r.OwnerID), r.ParentRef, r.SequenceID, int32(r.ItemType), int32(r.Count), attrs} {
		if i > 0 {
			ib.sb.WriteByte(',')
		}
		ib.args = append(ib.args, v)
		ib.sb.WriteString(ib.s.placeholder(len(ib.args)))
	}
	ib.sb.WriteByte(')')
}

// InsertItems writes rows with as few statements as the dialect's bind
// parameter limit allows. When more than one statement is needed they
// share a transaction, so either every row is stored or none is.
func (s *SQLBackend) InsertItems(ctx context.Context, table cd.Table, rows []cd.Row) error {
	if len(rows) == 0 {
		return nil
	}
	if len(rows) <= s.batchRows {
		return s.insertChunk(ctx, s.db, table, rows)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for len(rows) > 0 {
		n := min(len(rows), s.batchRows)
		err = s.insertChunk(ctx, tx, table, rows[:n])
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert into %s: %w", table, err)
		}
		rows = rows[n:]
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLBackend) insertChunk(ctx context.Context, db execer, table cd.Table, rows []cd.Row) error {
	ib := s.newInsert(table)
	for _, r := range rows {
		ib.addRow(r)
	}
	_, err := db.ExecContext(ctx, ib.sb.String(), ib.args...)
	return err
}

func (s *SQLBackend) LoadItems(ctx context.Context, table cd.Table, ownerID uint32) ([]cd.Row, error) {
	q := "SELECT " + itemColumns + " FROM " + table.String() + " WHERE player_id = " + s.placeholder(1) + " ORDER BY sid"
	res, err := s.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	var rows []cd.Row
	for res.Next() {
		var (
			r               cd.Row
			owner           int64
			itemType, count int32
		)
		err = res.Scan(&owner, &r.ParentRef, &r.SequenceID, &itemType, &count, &r.Attributes)
		if err != nil {
			return nil, err
		}
		r.OwnerID = uint32(owner)
		r.ItemType = uint16(itemType)
		r.Count = uint16(count)
		rows = append(rows, r)
	}
	return rows, res.Err()
}

func (s *SQLBackend) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
