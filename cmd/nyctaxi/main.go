package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"nyctaxi/internal/config"
	"nyctaxi/internal/pipeline"
)

const usage = `usage: nyctaxi [flags] <command>

commands:
  fetch    discover and download the year's trip files
  process  clean downloaded files into processed CSVs
  load     clean downloaded files into the database
  report   print summary queries for loaded tables
  run      fetch, then load

flags:
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// CLI flags
	flag.IntVar(&cfg.Year, "year", cfg.Year, "Year of trip data to fetch")
	flag.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory for downloaded trip files")
	flag.StringVar(&cfg.ProcessedDir, "processed-dir", cfg.ProcessedDir, "Directory for processed CSV files")
	flag.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "Database driver: sqlite3, pgx or mysql")
	flag.StringVar(&cfg.DBDSN, "db", cfg.DBDSN, "Database file or connection string")
	flag.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Rows per insert transaction")
	variant := flag.String("variant", "", "Only handle this dataset (green, yellow, fhv, fhvhv)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if *variant != "" {
		if err := cfg.SelectVariant(*variant); err != nil {
			logger.Error("invalid -variant", "error", err)
			os.Exit(2)
		}
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Cancel on SIGINT/SIGTERM so downloads and loads stop between batches
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := pipeline.New(cfg, logger)

	cmd := flag.Arg(0)
	switch cmd {
	case "fetch":
		_, err = runner.Fetch(ctx)
	case "process":
		err = runner.Process(ctx)
	case "load":
		err = runner.Load(ctx)
	case "report":
		err = runner.Report(ctx, os.Stdout)
	case "run":
		err = runner.Run(ctx)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		flag.Usage()
		stop()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", "command", cmd, "error", err)
		stop()
		os.Exit(1)
	}
	logger.Info("command complete", "command", cmd)
}
