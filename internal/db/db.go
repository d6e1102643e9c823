// Package db keeps a local SQLite mirror of the remote persona and
// conversation trees. Records are stored as raw JSON so decoding
// stays with the parser and malformed records survive the round
// trip.
package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// DB is a mirror file. Imports go through a single writer
// connection; fetches and stats use a small read-only pool so a
// running dashboard refresh never waits on an import.
type DB struct {
	path   string
	writer *sql.DB
	reader *sql.DB
	mu     sync.Mutex // one import at a time
}

func dsn(path string, readOnly bool) string {
	q := url.Values{
		"_journal_mode": {"WAL"},
		"_busy_timeout": {"5000"},
	}
	if readOnly {
		q.Set("mode", "ro")
	} else {
		q.Set("_synchronous", "NORMAL")
	}
	return path + "?" + q.Encode()
}

// Open opens the mirror at path, creating the file and schema if
// needed.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating mirror directory: %w", err)
	}

	writer, err := sql.Open("sqlite3", dsn(path, false))
	if err != nil {
		return nil, fmt.Errorf("opening mirror: %w", err)
	}
	writer.SetMaxOpenConns(1)
	// A read-only connection cannot create the file, so the
	// schema goes first.
	if _, err := writer.Exec(schemaSQL); err != nil {
		writer.Close()
		return nil, fmt.Errorf("creating mirror schema: %w", err)
	}

	reader, err := sql.Open("sqlite3", dsn(path, true))
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("opening mirror reader: %w", err)
	}
	reader.SetMaxOpenConns(4)
	return &DB{path: path, writer: writer, reader: reader}, nil
}

// Path returns the mirror file location.
func (db *DB) Path() string { return db.path }

// Close closes both connection pools.
func (db *DB) Close() error {
	return errors.Join(db.writer.Close(), db.reader.Close())
}

// Update runs fn in a write transaction, committing when fn
// returns nil.
func (db *DB) Update(
	ctx context.Context, fn func(tx *sql.Tx) error,
) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
