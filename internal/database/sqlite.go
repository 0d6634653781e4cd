package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jason-s-yu/shootingstars/internal/store"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		key        TEXT NOT NULL,
		body       TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (collection, key)
	)
`

// SQLiteBackend stores state records in a single SQLite file.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. The special path
// ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteBackend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Load(ctx context.Context, collection, key string) (store.Document, error) {
	doc := store.Document{Collection: collection, Key: key}
	var body string
	var updated int64
	err := b.db.QueryRowContext(ctx,
		`SELECT body, updated_at FROM documents WHERE collection = ? AND key = ?`,
		collection, key,
	).Scan(&body, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, store.ErrNotFound
	}
	if err != nil {
		return store.Document{}, err
	}
	doc.Body = []byte(body)
	doc.UpdatedAt = time.UnixMilli(updated).UTC()
	return doc, nil
}

func (b *SQLiteBackend) Save(ctx context.Context, doc store.Document) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO documents (collection, key, body, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (collection, key)
		 DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		doc.Collection, doc.Key, string(doc.Body), doc.UpdatedAt.UTC().UnixMilli(),
	)
	return err
}

func (b *SQLiteBackend) List(ctx context.Context, collection string) ([]store.Document, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT key, body, updated_at FROM documents WHERE collection = ? ORDER BY key`,
		collection,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var (
			key, body string
			updated   int64
		)
		if err := rows.Scan(&key, &body, &updated); err != nil {
			return nil, err
		}
		docs = append(docs, store.Document{
			Collection: collection,
			Key:        key,
			Body:       []byte(body),
			UpdatedAt:  time.UnixMilli(updated).UTC(),
		})
	}
	return docs, rows.Err()
}

func (b *SQLiteBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
