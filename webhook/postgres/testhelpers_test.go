//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/marcelsud/tymbug/webhook/postgres"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

/* Integration test helpers using testcontainers
 * Spins up a real PostgreSQL container, applies the schema and hands
 * back a ready repository. Run with: go test -tags integration ./...
 */

const (
	testDatabase = "tymbug_test"
	testUser     = "testuser"
	testPassword = "testpass"
)

// setupRepository starts a PostgreSQL container and returns a repository
// with the schema applied. Cleanup is registered on the test.
func setupRepository(t *testing.T, ctx context.Context) *postgres.Repository {
	t.Helper()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(testDatabase),
		tcpostgres.WithUsername(testUser),
		tcpostgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	repo, err := postgres.NewRepository(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close(ctx) })

	require.NoError(t, repo.EnsureSchema(ctx))

	return repo
}
