package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestEmbeddedMigrationsValidate(t *testing.T) {
	require.NoError(t, ValidateDir(""))
}

func readEmbedded(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := fs.Glob(Embedded(), "migrations/*_"+suffix+".sql")
	require.NoError(t, err)
	require.Len(t, matches, 1, "migration %s", suffix)
	data, err := fs.ReadFile(Embedded(), matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestOrdersMigrationEnforcesSingleBasket(t *testing.T) {
	content := readEmbedded(t, "create_orders")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_one_basket_per_user",
		"ON orders (user_id) WHERE status = 'basket'",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_order_items_order_product_info",
		"'basket', 'new', 'confirmed', 'assembled', 'sent', 'delivered', 'canceled'",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestCatalogMigrationContainsListingConstraints(t *testing.T) {
	content := readEmbedded(t, "create_catalog")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS product_infos",
		"product_infos_product_shop_external_key",
		"price numeric(12,2) NOT NULL CHECK (price >= 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS categories_name_key",
		"CREATE UNIQUE INDEX IF NOT EXISTS shops_user_id_key",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestRetireListingsMigrationKeepsOrderedListings(t *testing.T) {
	content := readEmbedded(t, "retire_listings")
	for _, sub := range []string{
		"ADD COLUMN IF NOT EXISTS retired_at timestamptz",
		"ON product_infos (product_id, shop_id, external_id) WHERE retired_at IS NULL",
		"REFERENCES product_infos(id) ON DELETE RESTRICT",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestUsersMigrationUniqueEmail(t *testing.T) {
	assert.Contains(t, readEmbedded(t, "create_users"), "users_email_key")
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid migration filename")
}

func TestValidateDirRejectsMissingDown(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_x.sql"), []byte("-- +goose Up\n"), 0o644))
	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "+goose Down")
}

func TestValidateFSReportsEveryProblem(t *testing.T) {
	fsys := fstest.MapFS{
		"m/20260101000000_a.sql": {Data: []byte("-- +goose Down\n-- +goose Up\n")},
		"m/20260101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"m/bad name.sql":         {Data: []byte("")},
		"m/README.md":            {Data: []byte("ignored")},
	}
	err := ValidateFS(fsys, "m")
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
	assert.Contains(t, err.Error(), "Down section before Up")
	assert.Contains(t, err.Error(), "used by both")
	assert.Contains(t, err.Error(), "invalid migration filename")
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Shop Rating!")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_shop_rating.sql"), path)
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}

func TestCreateRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	path, err := createAt(dir, "shop_rating", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260203040506_shop_rating.sql"), path)

	_, err = createAt(dir, "Shop Rating", now)
	assert.ErrorIs(t, err, os.ErrExist)
}
