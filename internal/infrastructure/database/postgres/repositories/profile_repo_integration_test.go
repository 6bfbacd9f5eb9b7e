//go:build integration

package repositories_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/pkasolver/internal/domain/profile"
	"github.com/turtacn/pkasolver/internal/infrastructure/database/postgres"
	"github.com/turtacn/pkasolver/internal/infrastructure/database/postgres/repositories"
)

// startPostgres launches a PostgreSQL 16 container, applies the embedded
// migrations and returns an open connection.
func startPostgres(t *testing.T) *postgres.Connection {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "pkasolver_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/pkasolver_test?sslmode=disable", host, port.Port())
	require.NoError(t, postgres.RunMigrations(dsn))
	require.NoError(t, postgres.RunMigrations(dsn))

	version, dirty, err := postgres.MigrationStatus(dsn)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.EqualValues(t, 2, version)

	conn, err := postgres.NewConnection(ctx, postgres.Config{
		Host: host, Port: port.Int(), User: "test", Password: "test", DBName: "pkasolver_test",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestProfileRepository_RoundTrip(t *testing.T) {
	conn := startPostgres(t)
	repo := repositories.NewProfileRepository(conn, nil)
	ctx := context.Background()

	older := &profile.Record{
		SMILES: "CC(=O)O", PH: 7.4, Mode: "ph", ModelVersion: "v1",
		CreatedAt: time.Now().Add(-time.Hour).UTC().Truncate(time.Microsecond),
	}
	newer := &profile.Record{
		SMILES: "CC(=O)O", PH: 7.4, Mode: "ph", ModelVersion: "v2",
		Entries:   []profile.Entry{{Site: 3, PKa: 4.76, Protonated: "CC(=O)O", Deprotonated: "CC(=O)[O-]"}},
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Save(ctx, older))
	require.NoError(t, repo.Save(ctx, newer))
	require.NoError(t, repo.Save(ctx, newer))

	got, err := repo.GetByID(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, newer.Entries, got.Entries)
	assert.True(t, newer.CreatedAt.Equal(got.CreatedAt))

	list, err := repo.ListBySMILES(ctx, "CC(=O)O", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "v2", list[0].ModelVersion)
	assert.Empty(t, list[1].Entries)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, profile.ErrNotFound)

	n, err := repo.DeleteOlderThan(ctx, time.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

//Personal.AI order the ending
