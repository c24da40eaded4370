// Package pipeline runs the fetch, process, load and report stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"nyctaxi/internal/config"
	"nyctaxi/internal/fetch"
	"nyctaxi/internal/storage"
	"nyctaxi/internal/trips"
)

// defaultChunk is the number of source rows held in memory at once.
const defaultChunk = 100000

// Runner executes pipeline stages against one configuration.
type Runner struct {
	cfg       *config.Config
	logger    *slog.Logger
	chunkSize int
	open      func(path string) (trips.Source, error)
}

// New creates a Runner.
func New(cfg *config.Config, logger *slog.Logger) *Runner {
	return &Runner{cfg: cfg, logger: logger, chunkSize: defaultChunk, open: trips.Open}
}

// Run fetches the configured year and then loads everything in the data
// directory. Each stage finishes before the next starts.
func (r *Runner) Run(ctx context.Context) error {
	if _, err := r.Fetch(ctx); err != nil {
		return err
	}
	return r.Load(ctx)
}

// Fetch discovers the year's files on the listing page and downloads the
// ones not yet in the data directory.
func (r *Runner) Fetch(ctx context.Context) (fetch.Summary, error) {
	f := fetch.NewFetcher(fetch.Options{
		ListingURL:  r.cfg.ListingURL,
		BaseURL:     r.cfg.BaseURL,
		Extension:   r.cfg.Extension,
		MaxAttempts: r.cfg.MaxAttempts,
		Backoff:     fetch.Backoff{Initial: r.cfg.BackoffInitial, Max: r.cfg.BackoffMax},
		Timeout:     r.cfg.HTTPTimeout,
	}, r.logger)

	urls, err := f.Discover(ctx, r.cfg.Year)
	if err != nil {
		return fetch.Summary{}, err
	}
	r.logger.Info("discovered files", "year", r.cfg.Year, "count", len(urls))

	return f.DownloadAll(ctx, urls, r.cfg.DataDir)
}

// Process cleans every recognised source file and appends the result to the
// per-variant processed CSV files. Unlike Load, it drops rows without a fare
// for every variant that has a fare field.
func (r *Runner) Process(ctx context.Context) error {
	logger := r.logger.With("run_id", uuid.NewString(), "stage", "process")

	files, err := r.sourceFiles(logger)
	if err != nil {
		return err
	}
	for _, sf := range files {
		pv := *sf.variant
		pv.RequireFare = pv.RequireFare || pv.FareField != ""
		sf.variant = &pv

		flog := logger.With("file", sf.name, "variant", sf.variant.Name)
		agg := trips.NewAggregator(sf.variant)
		read, kept, err := r.eachChunk(ctx, sf, func(ts []trips.Trip) (int, error) {
			agg.Add(ts)
			if err := trips.AppendProcessed(r.cfg.ProcessedDir, sf.variant, ts); err != nil {
				return 0, err
			}
			return len(ts), nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			flog.Error("failed to process file", "error", err)
			continue
		}
		flog.Info("file processed", "rows_read", read, "rows_kept", kept,
			"output", trips.ProcessedPath(r.cfg.ProcessedDir, sf.variant))
		logDaily(flog, agg.Summaries())
	}
	return nil
}

// Load writes every recognised source file into its variant table. Replace
// mode variants rebuild their table for each file. A file that cannot be
// read is logged and skipped, with whatever it loaded before the failure
// recorded in ingest_log; a store failure aborts the stage.
func (r *Runner) Load(ctx context.Context) error {
	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID, "stage", "load")

	files, err := r.sourceFiles(logger)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Info("no source files to load", "dir", r.cfg.DataDir)
		return nil
	}

	db, err := storage.Open(r.cfg.DBDriver, r.cfg.DBDSN, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	loader := storage.NewLoader(db, r.cfg.BatchSize, logger)
	for _, sf := range files {
		v := sf.variant
		flog := logger.With("file", sf.name, "variant", v.Name)
		started := time.Now().UTC()

		if err := loader.EnsureSchema(ctx, v.Table, v.Columns, v.LoadMode); err != nil {
			return err
		}

		agg := trips.NewAggregator(v)
		read, loaded, err := r.eachChunk(ctx, sf, func(ts []trips.Trip) (int, error) {
			agg.Add(ts)
			return loader.Load(ctx, v.Table, v.Columns, ts)
		})
		entry := storage.IngestEntry{
			RunID:      runID,
			FileName:   sf.name,
			Variant:    v.Name,
			Table:      v.Table,
			RowsRead:   read,
			RowsLoaded: loaded,
			StartedAt:  started,
		}
		if err != nil {
			var se *storage.StoreError
			if errors.As(err, &se) || ctx.Err() != nil {
				return err
			}
			flog.Error("failed to read file", "rows_read", read, "rows_loaded", loaded, "error", err)
			entry.Error = err.Error()
		} else {
			flog.Info("file loaded", "table", v.Table, "rows_read", read, "rows_loaded", loaded)
			logDaily(flog, agg.Summaries())
		}

		entry.FinishedAt = time.Now().UTC()
		if err := db.RecordIngest(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

type sourceFile struct {
	name    string
	path    string
	variant *trips.Variant
}

// sourceFiles lists the data directory in name order and pairs each trip
// file with its variant. Other files are logged and skipped.
func (r *Runner) sourceFiles(logger *slog.Logger) ([]sourceFile, error) {
	entries, err := os.ReadDir(r.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var out []sourceFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".parquet", ".csv":
		default:
			logger.Debug("skipping non-trip file", "file", name)
			continue
		}
		v, ok := trips.VariantFor(name, r.cfg.Variants)
		if !ok {
			logger.Warn("no variant matches file, skipping", "file", name)
			continue
		}
		out = append(out, sourceFile{name: name, path: filepath.Join(r.cfg.DataDir, name), variant: v})
	}
	return out, nil
}

// eachChunk reads sf in chunks, cleans each chunk and hands the trips to fn.
// It returns the raw rows read and the sum of fn's counts.
func (r *Runner) eachChunk(ctx context.Context, sf sourceFile, fn func([]trips.Trip) (int, error)) (int, int, error) {
	src, err := r.open(sf.path)
	if err != nil {
		return 0, 0, err
	}
	defer src.Close()

	read, kept := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return read, kept, err
		}
		recs, err := src.Next(r.chunkSize)
		if len(recs) > 0 {
			read += len(recs)
			n, ferr := fn(trips.Clean(recs, sf.variant))
			kept += n
			if ferr != nil {
				return read, kept, ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return read, kept, nil
		}
		if err != nil {
			return read, kept, fmt.Errorf("read %s: %w", sf.name, err)
		}
	}
}

func logDaily(logger *slog.Logger, days []trips.DailySummary) {
	for _, d := range days {
		attrs := []any{"date", d.Date.Format("2006-01-02"), "trips", d.Trips}
		if d.AvgFare != nil {
			attrs = append(attrs, "avg_fare", fmt.Sprintf("%.2f", *d.AvgFare))
		}
		logger.Info("daily aggregate", attrs...)
	}
}
