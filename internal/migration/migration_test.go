package migration_test

import (
	"testing"

	"github.com/smallbiznis/atelier/internal/migration"
	"github.com/smallbiznis/atelier/pkg/db/dbtest"
	"github.com/stretchr/testify/require"
)

func TestMigrationsCreateSchema(t *testing.T) {
	conn := dbtest.New(t)

	for _, table := range []string{
		"categories", "stones", "colors", "products", "product_images",
		"product_stones", "product_colors", "boutique_images", "settings",
		"orders", "order_items", "outbox_messages",
		"contacts", "message_threads", "thread_messages",
		"admins", "admin_sessions", "payment_events",
	} {
		dbtest.AssertCount(t, conn, 1, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	conn := dbtest.New(t)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	require.NoError(t, migration.RunMigrations(sqlDB, "sqlite"))
}

func TestRunMigrationsRejectsUnknownDialect(t *testing.T) {
	conn := dbtest.New(t)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	require.Error(t, migration.RunMigrations(sqlDB, "oracle"))
	require.Error(t, migration.RunMigrations(nil, "sqlite"))
}

func TestUpReportsVersion(t *testing.T) {
	conn := dbtest.New(t)
	sqlDB, err := conn.DB()
	require.NoError(t, err)

	res, err := migration.Up(sqlDB, "sqlite")
	require.NoError(t, err)
	require.False(t, res.Applied, "dbtest already migrated the schema")
	require.NotZero(t, res.Version)
}
