// Package dbtest opens throwaway sqlite databases carrying the shop schema so
// repository and service tests run without Postgres.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/craftmart/craftmart-backend/pkg/db/models"
)

var schema = []string{
	`CREATE TABLE categories (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  slug TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  description TEXT,
  sort_order INTEGER NOT NULL DEFAULT 0,
  active BOOLEAN NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE products (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  category_id INTEGER NOT NULL REFERENCES categories(id),
  slug TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  description TEXT,
  image_url TEXT,
  price_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  active BOOLEAN NOT NULL DEFAULT 1,
  commands TEXT,
  sort_order INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE players (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL UNIQUE COLLATE NOCASE,
  uuid TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE carts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT NOT NULL UNIQUE,
  user_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE cart_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  cart_id INTEGER NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
  product_id INTEGER NOT NULL REFERENCES products(id),
  quantity INTEGER NOT NULL CHECK (quantity > 0),
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (cart_id, product_id)
)`,
	`CREATE TABLE orders (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  external_order_id TEXT UNIQUE,
  checkout_id TEXT,
  user_id TEXT,
  session_id TEXT,
  player_id INTEGER REFERENCES players(id),
  customer_email TEXT,
  customer_name TEXT,
  currency TEXT NOT NULL DEFAULT 'USD',
  subtotal_cents INTEGER NOT NULL DEFAULT 0,
  tax_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'pending',
  delivery_status TEXT NOT NULL DEFAULT 'pending',
  delivery_attempts INTEGER NOT NULL DEFAULT 0,
  delivery_error TEXT,
  delivered_at DATETIME,
  refunded BOOLEAN NOT NULL DEFAULT 0,
  refunded_at DATETIME,
  test_mode BOOLEAN NOT NULL DEFAULT 0,
  checkout_url TEXT,
  receipt_url TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE order_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  product_id INTEGER,
  product_name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  commands TEXT,
  created_at DATETIME
)`,
	`CREATE TABLE webhook_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  event_name TEXT NOT NULL,
  external_id TEXT,
  payload TEXT NOT NULL,
  processed_at DATETIME,
  processing_error TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
}

// Open returns a fresh in-memory database with the schema applied. The
// connection pool is pinned to one connection so every query in a test sees
// the same memory database.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}

// SeedProduct inserts an active category (once per slug) and product.
func SeedProduct(t *testing.T, conn *gorm.DB, slug string, priceCents int64, commands ...string) *models.Product {
	t.Helper()

	category := models.Category{Slug: "ranks", Name: "Ranks", Active: true}
	if err := conn.Where("slug = ?", category.Slug).FirstOrCreate(&category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	product := &models.Product{
		CategoryID: category.ID,
		Slug:       slug,
		Name:       strings.ToUpper(slug[:1]) + slug[1:],
		PriceCents: priceCents,
		Currency:   "USD",
		Active:     true,
		Commands:   commands,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}
