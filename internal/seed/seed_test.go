package seed_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/auth/password"
	"github.com/smallbiznis/atelier/internal/seed"
	"github.com/smallbiznis/atelier/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunIsIdempotent(t *testing.T) {
	db := dbtest.New(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ctx := context.Background()
	opts := seed.Options{Now: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)}

	report, err := seed.Run(ctx, db, node, opts)
	require.NoError(t, err)
	assert.True(t, report.AdminCreated)
	assert.Zero(t, report.Products)

	report, err = seed.Run(ctx, db, node, opts)
	require.NoError(t, err)
	assert.False(t, report.AdminCreated)

	dbtest.AssertCount(t, db, 8, `SELECT COUNT(*) FROM categories`)
	dbtest.AssertCount(t, db, 15, `SELECT COUNT(*) FROM stones`)
	dbtest.AssertCount(t, db, 11, `SELECT COUNT(*) FROM colors`)
	dbtest.AssertCount(t, db, 1, `SELECT COUNT(*) FROM settings WHERE setting_key = 'theme' AND value = 'auto'`)
	dbtest.AssertCount(t, db, 0, `SELECT COUNT(*) FROM products`)

	var hash string
	require.NoError(t, db.Raw(`SELECT password_hash FROM admins WHERE username = 'admin'`).Scan(&hash).Error)
	assert.True(t, password.Verify(seed.DefaultAdminPassword, hash))
}

func TestRunKeepsCustomTheme(t *testing.T) {
	db := dbtest.New(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	now := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	require.NoError(t, db.Exec(`INSERT INTO settings (setting_key, value, updated_at) VALUES ('theme', 'noel', ?)`, now).Error)

	_, err = seed.Run(context.Background(), db, node, seed.Options{Now: now})
	require.NoError(t, err)
	dbtest.AssertCount(t, db, 1, `SELECT COUNT(*) FROM settings WHERE setting_key = 'theme' AND value = 'noel'`)
}

func TestRunSampleProductsOnlyOnEmptyCatalog(t *testing.T) {
	db := dbtest.New(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ctx := context.Background()
	opts := seed.Options{AdminUsername: "lea", AdminPassword: "bijoux-2026", SampleData: true}

	report, err := seed.Run(ctx, db, node, opts)
	require.NoError(t, err)
	assert.Equal(t, 10, report.Products)

	report, err = seed.Run(ctx, db, node, opts)
	require.NoError(t, err)
	assert.Zero(t, report.Products)

	dbtest.AssertCount(t, db, 10, `SELECT COUNT(*) FROM products`)
	dbtest.AssertCount(t, db, 1, `SELECT COUNT(*) FROM admins WHERE username = 'lea'`)
	dbtest.AssertCount(t, db, 3, `SELECT COUNT(*) FROM product_colors pc
		JOIN products p ON p.id = pc.product_id WHERE p.name = 'Cordon lunettes Bohème'`)
	dbtest.AssertCount(t, db, 3, `SELECT COUNT(*) FROM product_stones ps
		JOIN stones s ON s.id = ps.stone_id WHERE s.name = 'Améthyste'`)
}
