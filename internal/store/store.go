// Package store is the SQLite execution engine: it compiles DML descriptors
// into parameterized SQL and runs them. It implements engine.Executor and is
// the only package that touches database/sql.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/davrell/fluentdml/internal/dml"
	"github.com/davrell/fluentdml/internal/engine"
)

// Store executes descriptors against one SQLite database file.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens a SQLite database at the given path.
//
// The connection is configured with WAL mode for concurrent reads, NORMAL
// synchronous mode, a 5-second busy timeout, and foreign key enforcement.
// SQLite supports a single writer, so the pool is capped at one connection.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// DB returns the underlying sql.DB. Tests use it to install schemas and
// fixtures; production code goes through Execute.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Connect verifies the connection. Part of engine.Executor.
func (s *Store) Connect(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Disconnect closes the database. Part of engine.Executor.
func (s *Store) Disconnect() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Execute compiles and runs one descriptor. Failures are reported in the
// response status, never by panicking or half-applied state: SQLite rolls
// back the single statement on error.
func (s *Store) Execute(ctx context.Context, d dml.Descriptor) engine.Response {
	query, params, err := Compile(d)
	if err != nil {
		return engine.Response{Status: engine.StatusError, Message: err.Error()}
	}

	if d.Type == dml.StatementSelect {
		rows, err := s.db.QueryContext(ctx, query, params...)
		if err != nil {
			return engine.Response{Status: engine.StatusError, Message: err.Error()}
		}
		defer rows.Close()

		data, err := readRows(rows)
		if err != nil {
			return engine.Response{Status: engine.StatusError, Message: err.Error()}
		}
		return engine.Response{Status: engine.StatusOK, Data: data}
	}

	result, err := s.db.ExecContext(ctx, query, params...)
	if err != nil {
		return engine.Response{Status: engine.StatusError, Message: err.Error()}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return engine.Response{Status: engine.StatusError, Message: err.Error()}
	}

	// A mutation that matched nothing is reported at the warning tier.
	if affected == 0 && d.Type != dml.StatementInsert {
		return engine.Response{Status: engine.StatusWarning, Message: "no rows affected"}
	}

	return engine.Response{
		Status:  engine.StatusOK,
		Message: fmt.Sprintf("%d row(s) affected", affected),
	}
}

// readRows scans a result set into generic rows. []byte values become
// strings; everything else keeps the driver's native type.
func readRows(rows *sql.Rows) ([]dml.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}

	var out []dml.Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(dml.Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}
