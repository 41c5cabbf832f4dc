package testutil

import (
	"database/sql"
	"fmt"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"
)

const defaultTestDSN = "root:@tcp(localhost:3306)/campcart_test?parseTime=true"

// SetupTestDB opens the MySQL test database named by CAMPCART_TEST_DSN
// (default campcart_test on localhost) and skips the test when it is not
// reachable.
func SetupTestDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("CAMPCART_TEST_DSN")
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

// CleanupTestDB empties the test tables and closes the connection.
func CleanupTestDB(t *testing.T, db *sql.DB) {
	if db == nil {
		return
	}

	tables := []string{"CheckoutRecords", "Carts", "PromoCodes"}
	for _, table := range tables {
		if _, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}

	db.Close()
}

// SetupTestTables creates the tables used by the MySQL repositories.
func SetupTestTables(t *testing.T, db *sql.DB) {
	for _, tbl := range Schema {
		if _, err := db.Exec(tbl.Query); err != nil {
			t.Logf("failed to create table %s: %v", tbl.Name, err)
		}
	}
}

type Table struct {
	Name  string
	Query string
}

var Schema = []Table{
	{"PromoCodes", `
	CREATE TABLE IF NOT EXISTS PromoCodes (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		code VARCHAR(64) NOT NULL UNIQUE,
		percentOff INT NOT NULL,
		active TINYINT(1) NOT NULL DEFAULT 1,
		expiresAt DATETIME NULL,
		createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	)`},
	{"Carts", `
	CREATE TABLE IF NOT EXISTS Carts (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		items JSON NOT NULL,
		promoCode VARCHAR(64) NULL,
		promoPercentOff INT NULL,
		updatedAt DATETIME(6) NOT NULL
	)`},
	{"CheckoutRecords", `
	CREATE TABLE IF NOT EXISTS CheckoutRecords (
		cartId VARCHAR(64) NOT NULL PRIMARY KEY,
		attemptId VARCHAR(64) NOT NULL,
		userId VARCHAR(128) NOT NULL,
		kind VARCHAR(20) NOT NULL,
		reservationId BIGINT NOT NULL,
		paymentMethod VARCHAR(32) NOT NULL,
		status VARCHAR(32) NOT NULL,
		serverTotal BIGINT NOT NULL DEFAULT 0,
		createdAt DATETIME(6) NOT NULL,
		updatedAt DATETIME(6) NOT NULL,
		INDEX idx_reservation (kind, reservationId)
	)`},
}
