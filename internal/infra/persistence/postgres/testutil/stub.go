// Package testutil provides a stub database for postgres store tests. It keeps
// inserted rows per table, assigns keys to INSERT ... RETURNING statements and
// answers single-table selects filtered by one equality predicate, which is
// the shape of every read the simulation store issues.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync/atomic"
)

// Row is one stored row keyed by lower-case column name.
type Row map[string]any

// StubConn records statements issued by the postgres store during tests.
type StubConn struct {
	Execs      []string
	Tables     map[string][]Row
	FailExec   bool
	FailPing   bool
	FailBegin  bool
	FailCommit bool
	FailTables map[string]bool
	RowsErr    error
	seq        map[string]int64
}

var stubSeq atomic.Int64

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string][]Row), seq: make(map[string]int64)}
	name := fmt.Sprintf("stubpg%d", stubSeq.Add(1))
	sql.Register(name, stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct{ conn *StubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

var errUnsupported = errors.New("stub: unsupported statement")

// Prepare implements driver.Conn. Every statement goes through the
// context-aware Exec/Query paths instead.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, errUnsupported }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("stub: ping failed")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, errors.New("stub: begin failed")
	}
	return stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext. DDL and UPDATE statements are
// only recorded.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, errors.New("stub: exec failed")
	}
	if isInsert(query) {
		if _, err := c.insert(query, args); err != nil {
			return nil, err
		}
	}
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext. INSERT ... RETURNING yields
// the generated key; SELECT returns the matching rows and COUNT(*) counts
// them.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if isInsert(query) {
		c.Execs = append(c.Execs, query)
		id, err := c.insert(query, args)
		if err != nil {
			return nil, err
		}
		return &stubRows{cols: []string{returningColumn(query)}, rows: [][]driver.Value{{id}}}, nil
	}
	sel, err := parseSelect(query)
	if err != nil {
		return nil, err
	}
	if c.FailTables[sel.table] {
		return nil, fmt.Errorf("stub: query failed for %s", sel.table)
	}
	matched := c.match(sel, args)
	if len(sel.cols) == 1 && sel.cols[0] == "count(*)" {
		return &stubRows{cols: sel.cols, rows: [][]driver.Value{{int64(len(matched))}}, err: c.RowsErr}, nil
	}
	out := make([][]driver.Value, 0, len(matched))
	for _, row := range matched {
		vals := make([]driver.Value, len(sel.cols))
		for i, col := range sel.cols {
			vals[i] = row[col]
		}
		out = append(out, vals)
	}
	return &stubRows{cols: sel.cols, rows: out, err: c.RowsErr}, nil
}

func (c *StubConn) match(sel selectStmt, args []driver.NamedValue) []Row {
	rows := c.Tables[sel.table]
	if sel.where == "" || len(args) == 0 {
		return rows
	}
	want := fmt.Sprint(args[0].Value)
	var out []Row
	for _, row := range rows {
		if fmt.Sprint(row[sel.where]) == want {
			out = append(out, row)
		}
	}
	return out
}

func (c *StubConn) insert(query string, args []driver.NamedValue) (int64, error) {
	table, cols, err := parseInsert(query)
	if err != nil {
		return 0, err
	}
	if c.FailTables[table] {
		return 0, fmt.Errorf("stub: exec failed for %s", table)
	}
	if len(cols) != len(args) {
		return 0, fmt.Errorf("stub: %d columns but %d args for %s", len(cols), len(args), table)
	}
	if c.Tables == nil {
		c.Tables = make(map[string][]Row)
	}
	if c.seq == nil {
		c.seq = make(map[string]int64)
	}
	c.seq[table]++
	id := c.seq[table]
	row := Row{"id": id}
	if key := returningColumn(query); key != "" {
		row[key] = id
	}
	for i, col := range cols {
		row[col] = args[i].Value
	}
	c.Tables[table] = append(c.Tables[table], row)
	return id, nil
}

type stubTx struct{ conn *StubConn }

func (t stubTx) Commit() error {
	if t.conn.FailCommit {
		return errors.New("stub: commit failed")
	}
	return nil
}

func (stubTx) Rollback() error { return nil }

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

var (
	insertPattern    = regexp.MustCompile(`(?is)^\s*insert\s+into\s+(\w+)\s*\(([^)]*)\)`)
	returningPattern = regexp.MustCompile(`(?is)\breturning\s+(\w+)`)
	selectPattern    = regexp.MustCompile(`(?is)^\s*select\s+(.+?)\s+from\s+(\w+)(?:\s+where\s+(\w+)\s*=\s*\$1)?`)
)

func isInsert(query string) bool {
	return insertPattern.MatchString(query)
}

func returningColumn(query string) string {
	if m := returningPattern.FindStringSubmatch(query); m != nil {
		return strings.ToLower(m[1])
	}
	return ""
}

func parseInsert(query string) (string, []string, error) {
	m := insertPattern.FindStringSubmatch(query)
	if m == nil {
		return "", nil, fmt.Errorf("%w: %s", errUnsupported, query)
	}
	return strings.ToLower(m[1]), splitColumns(m[2]), nil
}

type selectStmt struct {
	table string
	cols  []string
	where string
}

func parseSelect(query string) (selectStmt, error) {
	m := selectPattern.FindStringSubmatch(query)
	if m == nil {
		return selectStmt{}, fmt.Errorf("%w: %s", errUnsupported, query)
	}
	return selectStmt{table: strings.ToLower(m[2]), cols: splitColumns(m[1]), where: strings.ToLower(m[3])}, nil
}

func splitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(part)))
	}
	return out
}
