package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/shootingstars/internal/store"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		key        TEXT NOT NULL,
		body       JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (collection, key)
	)
`

// PostgresBackend stores state records as JSONB rows, one row per record.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend creates the documents table if needed and returns a backend
// over pool. The backend owns the pool and closes it on Close.
func NewPostgresBackend(ctx context.Context, pool *pgxpool.Pool) (*PostgresBackend, error) {
	err := pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, postgresSchema)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

func (b *PostgresBackend) Load(ctx context.Context, collection, key string) (store.Document, error) {
	q := `
		SELECT body, updated_at
		FROM documents
		WHERE collection = $1 AND key = $2
	`
	doc := store.Document{Collection: collection, Key: key}
	var body []byte
	err := b.pool.QueryRow(ctx, q, collection, key).Scan(&body, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Document{}, store.ErrNotFound
	}
	if err != nil {
		return store.Document{}, err
	}
	doc.Body = body
	return doc, nil
}

func (b *PostgresBackend) Save(ctx context.Context, doc store.Document) error {
	q := `
		INSERT INTO documents (collection, key, body, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection, key)
		DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
	`
	_, err := b.pool.Exec(ctx, q, doc.Collection, doc.Key, string(doc.Body), doc.UpdatedAt)
	return err
}

func (b *PostgresBackend) List(ctx context.Context, collection string) ([]store.Document, error) {
	q := `
		SELECT key, body, updated_at
		FROM documents
		WHERE collection = $1
		ORDER BY key
	`
	rows, err := b.pool.Query(ctx, q, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		d := store.Document{Collection: collection}
		var body []byte
		if err := rows.Scan(&d.Key, &body, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.Body = body
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}
