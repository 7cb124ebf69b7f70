package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lazyClient builds a client whose pool never dials; migrations are stubbed.
func lazyClient(t *testing.T) *PostgresClient {
	t.Helper()
	pool, err := pgxpool.New(context.Background(), "postgres://u:p@127.0.0.1:1/equiptrack?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return &PostgresClient{pool: pool, keepLatest: 10}
}

func stubGoose(t *testing.T, fn func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error) {
	t.Helper()
	orig := gooseUpContext
	gooseUpContext = fn
	t.Cleanup(func() { gooseUpContext = orig })
}

func TestRunMigrationsUsesEmbeddedDir(t *testing.T) {
	var gotDir string
	stubGoose(t, func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		assert.NotNil(t, db)
		gotDir = dir
		return nil
	})

	require.NoError(t, lazyClient(t).RunMigrations(context.Background()))
	assert.Equal(t, ".", gotDir)
}

func TestRunMigrationsWrapsError(t *testing.T) {
	boom := errors.New("boom")
	stubGoose(t, func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error { return boom })

	err := lazyClient(t).RunMigrations(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to run migrations")
}
