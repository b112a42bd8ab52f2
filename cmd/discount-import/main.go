package main

import (
	"cmp"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"

	"github.com/xenking/farmtocup-pos/internal/importer"
	"github.com/xenking/farmtocup-pos/internal/storage/postgres"
)

const batchSize = 500

func main() {
	var (
		dataDir     string
		databaseURL string
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.csv.gz discount files")
	flag.StringVar(&databaseURL, "database-url", "", "postgres DSN to import into, DATABASE_URL when unset")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and report without writing to the database")
	flag.Parse()

	databaseURL = cmp.Or(databaseURL, os.Getenv("DATABASE_URL"))
	if databaseURL == "" && !dryRun {
		slog.Error("no database to import into, pass --database-url, set DATABASE_URL or use --dry-run")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, dataDir, databaseURL, dryRun); err != nil {
		slog.Error("discount import failed", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("discount import completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, dryRun bool) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "list files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.csv.gz files in %s", dataDir)
	}

	slog.Info("reading discount files", slog.Int("files", len(files)))

	res, err := importer.ReadFiles(ctx, files)
	if err != nil {
		return errors.Wrap(err, "read files")
	}
	for _, d := range res.Duplicates {
		slog.Warn("skipping code defined in an earlier file",
			slog.String("code", d.Code),
			slog.String("file", d.File),
			slog.Int("line", d.Line),
		)
	}

	slog.Info("discounts parsed",
		slog.Int("count", len(res.Discounts)),
		slog.Int("duplicates", len(res.Duplicates)),
	)

	if dryRun || len(res.Discounts) == 0 {
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "open pool")
	}
	defer pool.Close()

	repo := postgres.NewStore(pool).Discounts()
	for start := 0; start < len(res.Discounts); start += batchSize {
		end := min(start+batchSize, len(res.Discounts))
		if err := repo.UpsertBatch(ctx, res.Discounts[start:end]); err != nil {
			return errors.Wrap(err, "write discounts")
		}
		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(res.Discounts)))
	}

	return nil
}
