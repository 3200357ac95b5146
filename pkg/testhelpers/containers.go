package testhelpers

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/homebrew-hq/homebrew-engine/pkg/database"
)

// PostgresImage is the PostgreSQL image integration tests run against.
const PostgresImage = "postgres:16-alpine"

const (
	testDatabase = "homebrew_test"
	testUser     = "homebrew"
	testPassword = "test_password"
)

// EngineDB is a migrated HomeBrew database in a container shared by every
// integration test in the run.
type EngineDB struct {
	DB        *database.DB
	ConnStr   string
	Container testcontainers.Container
}

var (
	sharedEngineDB     *EngineDB
	sharedEngineDBOnce sync.Once
	sharedEngineDBErr  error
)

// GetEngineDB starts the container on first use and applies migrations.
// Integration tests are skipped with -short since they need Docker.
func GetEngineDB(t *testing.T) *EngineDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedEngineDBOnce.Do(func() {
		sharedEngineDB, sharedEngineDBErr = startEngineDB(context.Background())
	})
	if sharedEngineDBErr != nil {
		t.Fatalf("Failed to set up engine database: %v", sharedEngineDBErr)
	}
	return sharedEngineDB
}

// Scope opens a tenant scope for userID that is closed when the test ends.
func (e *EngineDB) Scope(t *testing.T, userID string) *database.TenantScope {
	t.Helper()

	scope, err := e.DB.WithTenant(context.Background(), userID)
	if err != nil {
		t.Fatalf("Failed to open tenant scope for %s: %v", userID, err)
	}
	t.Cleanup(scope.Close)
	return scope
}

func startEngineDB(ctx context.Context) (*EngineDB, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        PostgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       testDatabase,
				"POSTGRES_USER":     testUser,
				"POSTGRES_PASSWORD": testPassword,
			},
			// Readiness is logged twice: once by the init server, once for real.
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
			).WithDeadline(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		testUser, testPassword, host, port.Port(), testDatabase)

	db, err := database.ConnectWithRetry(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: 5,
	}, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to engine database: %w", err)
	}

	sqlDB := db.SQLDB()
	defer sqlDB.Close()
	if err := database.RunMigrations(sqlDB, MigrationsPath(), zap.NewNop()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &EngineDB{DB: db, ConnStr: connStr, Container: container}, nil
}

// MigrationsPath returns the absolute path of the repository's migrations
// directory, independent of the package the test runs in.
func MigrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}
