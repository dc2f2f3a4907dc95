package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// DSN builds the go-sql-driver connection string.
func DSN(user, pass, host, port, name string) string {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)
}

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	return OpenDSN(DSN(user, pass, host, port, name))
}

// OpenDSN is Open for a prebuilt DSN (tests use TEST_DB_DSN).
func OpenDSN(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings. Ledger submissions hold a row lock for the length of
	// one instruction, so the pool is the effective write concurrency.
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// schema is applied in order by Migrate. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS ledger_accounts (
		address    BINARY(32) NOT NULL PRIMARY KEY,
		data       VARBINARY(1024) NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS ledger_balances (
		address BINARY(32) NOT NULL PRIMARY KEY,
		amount  BIGINT UNSIGNED NOT NULL DEFAULT 0
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS ledger_tokens (
		mint      BINARY(32) NOT NULL PRIMARY KEY,
		authority BINARY(32) NOT NULL,
		holder    BINARY(32) NOT NULL,
		KEY idx_tokens_holder (holder)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS ledger_transactions (
		slot       BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		tx_id      VARCHAR(100) NOT NULL,
		kind       VARCHAR(32) NOT NULL,
		signers    TEXT NOT NULL,
		logs       TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_transactions_tx (tx_id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS operators (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		username      VARCHAR(64) NOT NULL,
		password_hash VARCHAR(100) NOT NULL,
		role          VARCHAR(16) NOT NULL DEFAULT 'SCANNER',
		is_active     TINYINT(1) NOT NULL DEFAULT 1,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_operators_username (username)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS operator_sessions (
		id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		operator_id BIGINT UNSIGNED NOT NULL,
		token_hash  CHAR(64) NOT NULL,
		expires_at  DATETIME NOT NULL,
		revoked_at  DATETIME NULL,
		UNIQUE KEY uq_sessions_hash (token_hash),
		KEY idx_sessions_operator (operator_id)
	) ENGINE=InnoDB`,
}

// Migrate creates the ledger, operator and session tables when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
