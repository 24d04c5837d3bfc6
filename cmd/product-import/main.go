// Command product-import bulk-loads products from JSON-lines files into the
// database. Files ending in .gz are decompressed on the fly.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/Freeman-md/funcify/internal/domain/product"
	"github.com/Freeman-md/funcify/internal/storage/postgres"
)

const progressEvery = 1000

func main() {
	var (
		databaseURL string
		workers     int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 4, "number of concurrent upsert workers")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if flag.NArg() == 0 {
		slog.Error("at least one products file is required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, flag.Args(), workers); err != nil {
		slog.Error("product import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("product import completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string, workers int) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewProductRepository(pool)

	lines := make(chan []byte, workers*2)
	var imported, skipped atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(lines)
		for _, f := range files {
			if err := streamFile(ctx, f, lines); err != nil {
				return errors.Wrapf(err, "stream %s", f)
			}
		}
		return nil
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for line := range lines {
				if err := importLine(ctx, repo, line, &imported, &skipped); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Int64("imported", imported.Load()),
		slog.Int64("skipped", skipped.Load()),
	)
	return nil
}

// streamFile sends each non-empty line of path to out. Gzip files are
// detected by extension.
func streamFile(ctx context.Context, path string, out chan<- []byte) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrap(err, "create gzip reader")
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- []byte(line):
		}
	}
	return errors.Wrap(scanner.Err(), "scan")
}

// importLine parses and upserts one product. Lines failing validation are
// counted and skipped rather than aborting the whole import.
func importLine(ctx context.Context, repo product.Repository, line []byte, imported, skipped *atomic.Int64) error {
	var p product.Product
	if err := json.Unmarshal(line, &p); err != nil {
		slog.Warn("skipping unparsable line", slog.String("error", err.Error()))
		skipped.Add(1)
		return nil
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Category == "" {
		p.Category = product.DefaultPartitionKey
	}

	if err := product.Validate(&p); err != nil {
		slog.Warn("skipping invalid product", slog.String("id", p.ID), slog.String("error", err.Error()))
		skipped.Add(1)
		return nil
	}

	if _, err := repo.Replace(ctx, &p); err != nil {
		return errors.Wrapf(err, "upsert product %s", p.ID)
	}

	if n := imported.Add(1); n%progressEvery == 0 {
		slog.Info("import progress", slog.Int64("imported", n))
	}
	return nil
}
