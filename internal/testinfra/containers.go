// Package testinfra starts throwaway Postgres and Redis containers for integration tests.
// Tests using it are skipped under -short.
package testinfra

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/redis"
)

func Logger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func migrationFolder() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "db", "pg")
}

func start(t *testing.T, req testcontainers.ContainerRequest, port string) (string, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("containers unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, port)
	require.NoError(t, err)
	return host, mapped.Port()
}

// Postgres starts a migrated Postgres and returns a database handle.
func Postgres(t *testing.T) database.DB {
	t.Helper()
	host, port := start(t, testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "clover",
			"POSTGRES_PASSWORD": "clover",
			"POSTGRES_DB":       "clover",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432")

	dsn := fmt.Sprintf("host=%s port=%s user=clover password=clover dbname=clover sslmode=disable", host, port)
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	require.NoError(t, err)
	migrations := database.NewMigrationService(Logger(), &database.MigrationConfig{MigrationFolderPath: migrationFolder()})
	require.NoError(t, migrations.Migrate("clover", driver))

	return database.NewDatabaseInstance(db, Logger())
}

// Redis starts a Redis server and returns a connected client.
func Redis(t *testing.T) *redis.Client {
	t.Helper()
	host, port := start(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(30 * time.Second),
	}, "6379")

	rdb := goredis.NewClient(&goredis.Options{Addr: host + ":" + port})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	return redis.NewClientFromRedis(rdb, Logger())
}
