// Package dbtest opens throwaway sqlite databases carrying the marketplace
// schema for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// schema mirrors pkg/migrate/migrations in sqlite types: TEXT ids, DATETIME
// timestamps and TEXT decimals so values round-trip exactly. Foreign keys and
// their ON DELETE actions match Postgres.
var schema = []string{
	`CREATE TABLE users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  company TEXT NOT NULL DEFAULT '',
  position TEXT NOT NULL DEFAULT '',
  type TEXT NOT NULL DEFAULT 'buyer',
  is_active BOOLEAN NOT NULL DEFAULT 0,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE UNIQUE INDEX users_email_key ON users (email)`,
	`CREATE TABLE confirm_email_tokens (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  key TEXT NOT NULL,
  expires_at DATETIME NOT NULL,
  created_at DATETIME
)`,
	`CREATE UNIQUE INDEX confirm_email_tokens_key_key ON confirm_email_tokens (key)`,
	`CREATE TABLE shops (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id),
  name TEXT NOT NULL,
  url TEXT,
  state BOOLEAN NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE UNIQUE INDEX shops_user_id_key ON shops (user_id)`,
	`CREATE TABLE categories (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL
)`,
	`CREATE UNIQUE INDEX categories_name_key ON categories (name)`,
	`CREATE TABLE shop_categories (
  shop_id TEXT NOT NULL REFERENCES shops(id) ON DELETE CASCADE,
  category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
  PRIMARY KEY (shop_id, category_id)
)`,
	`CREATE TABLE products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  category_id TEXT NOT NULL REFERENCES categories(id)
)`,
	`CREATE UNIQUE INDEX products_name_category_key ON products (name, category_id)`,
	`CREATE TABLE product_infos (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL REFERENCES products(id),
  shop_id TEXT NOT NULL REFERENCES shops(id) ON DELETE CASCADE,
  external_id INTEGER NOT NULL,
  model TEXT NOT NULL DEFAULT '',
  price TEXT NOT NULL,
  price_rrc TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  retired_at DATETIME
)`,
	`CREATE UNIQUE INDEX product_infos_product_shop_external_key ON product_infos (product_id, shop_id, external_id) WHERE retired_at IS NULL`,
	`CREATE TABLE parameters (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL
)`,
	`CREATE UNIQUE INDEX parameters_name_key ON parameters (name)`,
	`CREATE TABLE product_parameters (
  id TEXT PRIMARY KEY,
  product_info_id TEXT NOT NULL REFERENCES product_infos(id) ON DELETE CASCADE,
  parameter_id TEXT NOT NULL REFERENCES parameters(id),
  value TEXT NOT NULL
)`,
	`CREATE UNIQUE INDEX product_parameters_info_parameter_key ON product_parameters (product_info_id, parameter_id)`,
	`CREATE TABLE contacts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id),
  city TEXT NOT NULL,
  street TEXT NOT NULL,
  house TEXT NOT NULL DEFAULT '',
  structure TEXT NOT NULL DEFAULT '',
  building TEXT NOT NULL DEFAULT '',
  apartment TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id),
  status TEXT NOT NULL DEFAULT 'basket',
  contact_id TEXT REFERENCES contacts(id) ON DELETE SET NULL,
  placed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE UNIQUE INDEX ux_orders_one_basket_per_user ON orders (user_id) WHERE status = 'basket'`,
	`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  product_info_id TEXT NOT NULL REFERENCES product_infos(id) ON DELETE RESTRICT,
  quantity INTEGER NOT NULL CHECK (quantity > 0),
  created_at DATETIME
)`,
	`CREATE UNIQUE INDEX ux_order_items_order_product_info ON order_items (order_id, product_info_id)`,
	`CREATE TABLE notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id),
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  order_id TEXT REFERENCES orders(id) ON DELETE SET NULL,
  read_at DATETIME,
  created_at DATETIME
)`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
)`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json BLOB NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
)`,
}

// Open returns a fresh named in-memory database with the full schema.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000&_foreign_keys=on", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	// one connection serializes writers the way the user-row lock does on Postgres
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v\n%s", err, stmt)
		}
	}
	return conn
}
