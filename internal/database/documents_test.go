package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jason-s-yu/shootingstars/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPostgresBackend needs a reachable database configured through the same
// environment variables as the server.
func TestPostgresBackend(t *testing.T) {
	if os.Getenv("PG_HOST") == "" {
		t.Skip("PG_HOST not set; skipping postgres integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := ConnectDB(ctx, PostgresConfig{
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Host:     os.Getenv("PG_HOST"),
		Port:     os.Getenv("PG_PORT"),
		Database: os.Getenv("PG_DATABASE"),
	}, logrus.New())
	require.NoError(t, err)
	b, err := NewPostgresBackend(ctx, pool)
	require.NoError(t, err)
	defer b.Close()

	key := "test-" + time.Now().Format("150405.000000")
	_, err = b.Load(ctx, "tests", key)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, b.Save(ctx, store.Document{Collection: "tests", Key: key, Body: []byte(`{"n":1}`), UpdatedAt: time.Now()}))
	require.NoError(t, b.Save(ctx, store.Document{Collection: "tests", Key: key, Body: []byte(`{"n":2}`), UpdatedAt: time.Now()}))

	d, err := b.Load(ctx, "tests", key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(d.Body))
}

func TestPostgresConfigURL(t *testing.T) {
	c := PostgresConfig{User: "u", Password: "p", Host: "db", Port: "5432", Database: "lights"}
	assert.Equal(t, "postgres://u:p@db:5432/lights", c.URL())
}
