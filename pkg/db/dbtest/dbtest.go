// Package dbtest opens migrated in-memory sqlite databases for tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/atelier/internal/migration"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var counter atomic.Int64

// New returns a gorm handle on a fresh, fully migrated in-memory database.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:atelier_test_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", counter.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migration.RunMigrations(sqlDB, "sqlite"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

// Count runs a COUNT(*) style query and returns its scalar.
func Count(t testing.TB, conn *gorm.DB, query string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := conn.Raw(query, args...).Scan(&n).Error; err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}

// AssertCount fails the test when query does not return want.
func AssertCount(t testing.TB, conn *gorm.DB, want int64, query string, args ...any) {
	t.Helper()
	if got := Count(t, conn, query, args...); got != want {
		t.Fatalf("expected %d rows for %q, got %d", want, query, got)
	}
}
