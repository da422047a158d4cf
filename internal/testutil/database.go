package testutil

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	_ "github.com/go-sql-driver/mysql"
)

const defaultTestDSN = "root:@tcp(localhost:3306)/stockwise_test?parseTime=true&multiStatements=true"

// SetupTestDB abre la BD de prueba indicada por STOCKWISE_TEST_DSN.
// El test se omite si no hay un MySQL disponible.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("STOCKWISE_TEST_DSN")
	if dsn == "" {
		dsn = defaultTestDSN
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("test database not available: %v", err)
	}

	return db
}

// CleanupTestDB vacia las tablas en orden inverso a sus dependencias.
func CleanupTestDB(t *testing.T, db *sql.DB) {
	if db == nil {
		return
	}

	tables := []string{
		"purchase_order_items",
		"purchase_orders",
		"replenishment_suggestions",
		"low_stock_alerts",
		"reorder_rules",
		"stock_reservations",
		"sales_order_lines",
		"sales_orders",
		"stock_lots",
		"stock_balances",
		"product_variants",
	}
	for _, table := range tables {
		if _, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}

	db.Close()
}

// SetupTestTables applies the up migration. The DSN must allow multi
// statements.
func SetupTestTables(t *testing.T, db *sql.DB) {
	t.Helper()

	_, file, _, _ := runtime.Caller(0)
	path := filepath.Join(filepath.Dir(file), "..", "..", "migrations", "000001_init.up.sql")

	schema, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read schema: %v", err)
	}

	if _, err := db.Exec(string(schema)); err != nil {
		t.Logf("failed to apply schema (tables may already exist): %v", err)
	}
}
