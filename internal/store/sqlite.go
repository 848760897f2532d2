package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	name TEXT PRIMARY KEY,
	document TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// SQLiteBackend keeps every workspace as one row in a single database file.
type SQLiteBackend struct {
	db  *sql.DB
	now func() time.Time
}

func OpenSQLite(path string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "create database dir")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeStore, err, "open database")
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errdef.Wrap(errdef.CodeStore, err, "connect database")
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, errdef.Wrap(errdef.CodeStore, err, "initialize schema")
	}
	return &SQLiteBackend{db: db, now: time.Now}, nil
}

func (s *SQLiteBackend) Read(ctx context.Context, name string) ([]byte, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM snapshots WHERE name = ?`, name).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeStore, err, "read snapshot %q", name)
	}
	return []byte(doc), nil
}

func (s *SQLiteBackend) Write(ctx context.Context, name string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (name, document, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		name, string(data), s.now().UnixMilli(),
	)
	if err != nil {
		return errdef.Wrap(errdef.CodeStore, err, "write snapshot %q", name)
	}
	return nil
}

// Names lists stored workspaces, most recently saved first.
func (s *SQLiteBackend) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM snapshots ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeStore, err, "list snapshots")
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errdef.Wrap(errdef.CodeStore, err, "scan snapshot name")
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errdef.Wrap(errdef.CodeStore, err, "list snapshots")
	}
	return names, nil
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
