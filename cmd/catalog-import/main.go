// Command catalog-import loads products from gzipped NDJSON files into the
// catalog store. Files are read concurrently and a product id seen in more
// than one file is imported once.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/artelab/backoffice/internal/storage"
)

func main() {
	var (
		cfg          storage.Config
		dataDir      string
		pattern      string
		skipExisting bool
	)
	flag.StringVar(&cfg.Driver, "driver", envOr("ARTELAB_STORAGE_DRIVER", storage.DriverPostgres), "storage driver: postgres or mongo")
	flag.StringVar(&cfg.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&cfg.MongoURI, "mongo-uri", envOr("ARTELAB_STORAGE_MONGO_URI", "mongodb://localhost:27017"), "MongoDB connection URI")
	flag.StringVar(&cfg.MongoDatabase, "mongo-database", envOr("ARTELAB_STORAGE_MONGO_DATABASE", "artelab"), "MongoDB database name")
	flag.StringVar(&dataDir, "data-dir", "data", "directory containing product files")
	flag.StringVar(&pattern, "pattern", "*.ndjson.gz", "glob of product files inside data-dir")
	flag.BoolVar(&skipExisting, "skip-existing", false, "leave products already in the store untouched")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	files, err := filepath.Glob(filepath.Join(dataDir, pattern))
	if err != nil {
		lg.Fatal("Bad file pattern", zap.Error(err))
	}
	if len(files) == 0 {
		lg.Fatal("No product files found", zap.String("dir", dataDir), zap.String("pattern", pattern))
	}

	if err := run(ctx, lg, cfg, files, skipExisting); err != nil {
		lg.Fatal("Catalog import failed", zap.Error(err))
	}
	lg.Info("Catalog import completed")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, lg *zap.Logger, cfg storage.Config, files []string, skipExisting bool) error {
	backend, err := storage.Open(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close(context.Background()) }()

	seen := newDedupe(bloomCapacity, bloomFPR)
	if skipExisting {
		ids, err := backend.Products.IDs(ctx)
		if err != nil {
			return errors.Wrap(err, "load existing ids")
		}
		for _, id := range ids {
			seen.Seen(id)
		}
		lg.Info("Existing products skipped", zap.Int("count", len(ids)))
	}

	stats, err := importFiles(ctx, lg, files, seen, backend.Products)
	if err != nil {
		return err
	}
	lg.Info("Import summary",
		zap.Int("files", len(files)),
		zap.Int64("lines", stats.Lines),
		zap.Int64("written", stats.Written),
		zap.Int64("duplicates", stats.Duplicates),
	)
	return nil
}
