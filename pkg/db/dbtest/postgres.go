package dbtest

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/wiedu/wiedu-backend/pkg/config"
	"github.com/wiedu/wiedu-backend/pkg/db"
	"github.com/wiedu/wiedu-backend/pkg/migrate"
)

// PostgresDSNEnv names the database used by integration tests.
const PostgresDSNEnv = "WIEDU_TEST_POSTGRES_DSN"

// OpenPostgres connects to the database named by WIEDU_TEST_POSTGRES_DSN,
// migrates it up and returns a client with a multi-connection pool. The test
// is skipped when the variable is unset.
func OpenPostgres(t testing.TB) *db.Client {
	t.Helper()

	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}
	ctx := context.Background()
	client, err := db.New(ctx, config.DBConfig{
		DSN:          dsn,
		Driver:       config.DBDriverPostgres,
		MaxOpenConns: 16,
		MaxIdleConns: 16,
	}, nil)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.DB().DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	if err := migrate.Run(ctx, sqlDB, migrationsDir(), "up"); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	return client
}

func migrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrate", "migrations")
}
