package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"nyctaxi/internal/trips"
)

// progressEvery is how often, in rows, Load reports progress.
const progressEvery = 500000

// Loader writes cleaned trips into per-variant tables.
type Loader struct {
	db        *DB
	batchSize int
	logger    *slog.Logger
}

// NewLoader creates a Loader that inserts batchSize rows per transaction.
func NewLoader(db *DB, batchSize int, logger *slog.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Loader{db: db, batchSize: batchSize, logger: logger}
}

// EnsureSchema prepares table for a load. In replace mode the table is
// dropped and recreated, discarding earlier rows; in append mode it is only
// created when absent.
func (l *Loader) EnsureSchema(ctx context.Context, table string, columns []trips.Column, mode trips.LoadMode) error {
	d := l.db.dialect

	if mode == trips.ModeReplace {
		if _, err := l.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+d.quote(table)); err != nil {
			return &StoreError{Op: "drop", Table: table, Err: err}
		}
		l.logger.Info("dropped table", "table", table)
	}

	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = d.quote(c.Name) + " " + d.columnType(c.Type)
		if c.NotNull {
			defs[i] += " NOT NULL"
		}
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", d.quote(table), strings.Join(defs, ",\n\t"))
	if _, err := l.db.ExecContext(ctx, stmt); err != nil {
		return &StoreError{Op: "create", Table: table, Err: err}
	}
	return nil
}

// Load appends rows to table in insertion order, one transaction per batch.
// Batches committed before a failure stay in the table. It returns the
// number of rows committed.
func (l *Loader) Load(ctx context.Context, table string, columns []trips.Column, rows []trips.Trip) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	d := l.db.dialect

	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = d.quote(c.Name)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.quote(table), strings.Join(names, ", "), d.placeholders(len(columns)))

	start := time.Now()
	loaded := 0
	for lo := 0; lo < len(rows); lo += l.batchSize {
		hi := min(lo+l.batchSize, len(rows))
		if err := l.insertBatch(ctx, insert, len(columns), rows[lo:hi]); err != nil {
			return loaded, &StoreError{Op: "insert", Table: table, Err: fmt.Errorf("batch at row %d: %w", lo, err)}
		}
		prev := loaded
		loaded = hi
		if loaded/progressEvery > prev/progressEvery {
			l.logger.Info("loading rows", "table", table, "rows", loaded)
		}
	}

	l.logger.Info("rows loaded",
		"table", table,
		"count", loaded,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return loaded, nil
}

func (l *Loader) insertBatch(ctx context.Context, insert string, width int, rows []trips.Trip) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, width)
	for i := range rows {
		if len(rows[i].Values) != width {
			return fmt.Errorf("row has %d values, want %d", len(rows[i].Values), width)
		}
		for j, v := range rows[i].Values {
			args[j] = l.db.dialect.arg(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// IngestEntry records one loaded source file. Error is set when the file
// failed partway; RowsLoaded then counts the batches committed before it.
type IngestEntry struct {
	RunID      string
	FileName   string
	Variant    string
	Table      string
	RowsRead   int
	RowsLoaded int
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string
}

// RecordIngest appends an entry to ingest_log.
func (db *DB) RecordIngest(ctx context.Context, e IngestEntry) error {
	d := db.dialect
	var errMsg any
	if e.Error != "" {
		errMsg = e.Error
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO ingest_log (run_id, file_name, variant, table_name, rows_read, rows_loaded, started_at, finished_at, error_message)
		 VALUES (`+d.placeholders(9)+`)`,
		e.RunID, e.FileName, e.Variant, e.Table, e.RowsRead, e.RowsLoaded,
		d.arg(e.StartedAt), d.arg(e.FinishedAt), errMsg)
	if err != nil {
		return &StoreError{Op: "insert", Table: "ingest_log", Err: err}
	}
	return nil
}
