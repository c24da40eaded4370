package storage

import (
	"fmt"

	"nyctaxi/internal/trips"
)

// migrate creates the bookkeeping tables if they don't exist. Trip tables are
// managed by Loader.EnsureSchema.
func (db *DB) migrate() error {
	for i, stmt := range db.migrations() {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	db.logger.Info("database migrations applied")
	return nil
}

func (db *DB) migrations() []string {
	ts := db.dialect.columnType(trips.Datetime)
	return []string{
		// One row per loaded source file
		`CREATE TABLE IF NOT EXISTS ingest_log (
			run_id      VARCHAR(36)  NOT NULL,
			file_name   VARCHAR(255) NOT NULL,
			variant     VARCHAR(64)  NOT NULL,
			table_name  VARCHAR(128) NOT NULL,
			rows_read   BIGINT NOT NULL,
			rows_loaded BIGINT NOT NULL,
			started_at  ` + ts + ` NOT NULL,
			finished_at ` + ts + ` NOT NULL,
			error_message TEXT,
			PRIMARY KEY (run_id, file_name)
		)`,
	}
}
