package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a database connection with the dialect used to talk to it.
type DB struct {
	*sql.DB
	dialect dialect
	logger  *slog.Logger
}

// Open connects to the store selected by driver (sqlite3, pgx or mysql),
// verifies the connection and applies migrations. The caller owns the handle
// and must Close it.
func Open(driver, dsn string, logger *slog.Logger) (*DB, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	if driver == "sqlite3" && !strings.HasPrefix(dsn, "file:") {
		dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", dsn)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := newDB(sqlDB, d, logger)

	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.Info("database opened", "driver", driver)
	return db, nil
}

func newDB(sqlDB *sql.DB, d dialect, logger *slog.Logger) *DB {
	return &DB{DB: sqlDB, dialect: d, logger: logger}
}

// StoreError reports a failed schema change or insert.
type StoreError struct {
	Op    string
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
