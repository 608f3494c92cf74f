package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // DuckDB driver for database/sql
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/database"
)

// PostgresImage is the stock image the match schema is migrated into.
const PostgresImage = "postgres:16-alpine"

// MatchDB holds a shared PostgreSQL container with the match schema and fixtures loaded.
type MatchDB struct {
	Container testcontainers.Container
	DB        *database.DB
	ConnStr   string
}

var (
	sharedMatchDB     *MatchDB
	sharedMatchDBOnce sync.Once
	sharedMatchDBErr  error
)

// GetMatchDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetMatchDB(t *testing.T) *MatchDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedMatchDBOnce.Do(func() {
		sharedMatchDB, sharedMatchDBErr = setupMatchDB()
	})

	if sharedMatchDBErr != nil {
		t.Fatalf("Failed to setup match database: %v", sharedMatchDBErr)
	}

	return sharedMatchDB
}

func setupMatchDB() (*MatchDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "vlr_scouting",
			"POSTGRES_USER":     "scout",
			"POSTGRES_PASSWORD": "test_password",
		},
		// The entrypoint restarts postgres once after init; wait for the second start.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://scout:test_password@%s:%s/vlr_scouting?sslmode=disable",
		host, port.Port())

	// Run migrations using database/sql (required by golang-migrate)
	sqlDB, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open sql connection: %w", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	for _, stmt := range FixtureStatements {
		if _, err := sqlDB.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to load fixtures: %w", err)
		}
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: 5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to match database: %w", err)
	}

	return &MatchDB{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
	}, nil
}

// NewDuckDBFixture writes the match schema and fixtures into a fresh DuckDB file
// and returns its path. Extra statements run after the fixtures.
func NewDuckDBFixture(t *testing.T, extra ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scouting.duckdb")
	db, err := sql.Open("duckdb", path)
	if err != nil {
		t.Fatalf("failed to open duckdb: %v", err)
	}
	defer db.Close()

	schema, err := database.SchemaStatements()
	if err != nil {
		t.Fatalf("failed to read schema: %v", err)
	}

	stmts := append(append(schema, FixtureStatements...), extra...)
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to execute %q: %v", stmt, err)
		}
	}
	return path
}
