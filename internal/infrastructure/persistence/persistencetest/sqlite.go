// Package persistencetest opens migrated throwaway databases for tests
package persistencetest

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/garyjia/cost-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/cost-approval/migrations"
	"github.com/garyjia/cost-approval/pkg/database"
)

// NewSQLite returns a migrated SQLite database in t's temp dir
func NewSQLite(t testing.TB) *sqlite.DB {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, logger)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.NewMigrator(db, logger).RunMigrationsFS(migrations.SQLite()); err != nil {
		t.Fatalf("migrate database: %v", err)
	}

	return sqlite.NewDB(db.DB, logger)
}
