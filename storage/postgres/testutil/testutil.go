// Package testutil provides a postgres client for tests that need a live
// database.
package testutil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres driver for golang_migrate
	_ "github.com/golang-migrate/migrate/v4/source/file"       // file source for golang_migrate
	"github.com/stretchr/testify/require"

	"github.com/obscura-labs/obscura/log"
	"github.com/obscura-labs/obscura/storage/postgres"
)

// ConnStringEnv names the environment variable holding the CI database.
const ConnStringEnv = "CI_TEST_CONN_STRING"

// SkipIfShort skips tests that need a live database.
func SkipIfShort(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test in short mode")
	}
	if os.Getenv(ConnStringEnv) == "" {
		t.Skipf("skipping test, %s not set", ConnStringEnv)
	}
}

// NewTestClient returns a postgres client used in CI tests.
func NewTestClient(t *testing.T) *postgres.Client {
	connString := os.Getenv(ConnStringEnv)
	logger, err := log.NewLogger("postgres-test", os.Stdout, log.FmtJSON, log.LevelError)
	require.Nil(t, err, "log.NewLogger")

	client, err := postgres.NewClient(connString, logger)
	require.Nil(t, err, "postgres.NewClient")
	return client
}

// MigrationsDir returns the location of the schema migrations.
func MigrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

// NewMigratedClient wipes the CI database, applies the schema migrations and
// returns a client to it. The client is closed when the test ends.
func NewMigratedClient(t *testing.T) *postgres.Client {
	SkipIfShort(t)
	client := NewTestClient(t)
	t.Cleanup(client.Close)
	require.NoError(t, client.Wipe(context.Background()), "failed to wipe database")

	m, err := migrate.New("file://"+MigrationsDir(), os.Getenv(ConnStringEnv))
	require.NoError(t, err, "migrate.New")
	defer m.Close()
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		require.NoError(t, err, "migrating schema")
	}
	return client
}
