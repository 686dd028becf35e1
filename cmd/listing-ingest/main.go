// Command listing-ingest bulk-loads card listings from gzipped CSV
// exports. A bloom filter primed with the IDs already in the database
// routes rows onto one of two paths: definitely-new rows go through the
// COPY protocol in large batches, while possible duplicates fall back to
// individual conflict-ignoring inserts. Duplicate IDs within the files
// or already present in the database are skipped, not errors.
//
// CSV columns: listing_id, title, description, price, condition,
// image_url, seller. Prices are decimal amounts in major currency units
// (e.g. "12.50") and are converted exactly to minor units.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/card-market/internal/domain/identity"
	"github.com/xenking/card-market/internal/domain/listing"
	"github.com/xenking/card-market/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	copyBatchSize = 5000
)

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	files := flag.Args()
	if len(files) == 0 {
		slog.Error("usage: listing-ingest [flags] file.csv.gz ...")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files); err != nil {
		slog.Error("listing ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL string, files []string) error {
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := repository.NewListingRepository(pool)

	// Prime the filter with every ID already stored, so re-runs against a
	// populated database stay on the conflict-safe path.
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	var existing int
	err = repo.IDs(ctx, func(id string) error {
		seen.AddString(id)
		existing++
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "load existing listing ids")
	}
	slog.Info("primed duplicate filter", slog.Int("existing", existing))

	ing := &ingester{repo: repo, seen: seen}

	// Files are parsed concurrently; a single consumer owns the filter
	// and the database writes.
	rows := make(chan listing.Listing, copyBatchSize)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ing.consume(ctx, rows)
	})

	producers, ctx := errgroup.WithContext(ctx)
	for _, f := range files {
		producers.Go(func() error {
			return parseFile(ctx, f, rows)
		})
	}
	err = producers.Wait()
	close(rows)
	if werr := g.Wait(); err == nil {
		err = werr
	}
	if err != nil {
		return err
	}

	slog.Info("listing ingest completed",
		slog.Int64("inserted", ing.inserted),
		slog.Int64("skipped", ing.skipped),
	)
	return nil
}

type ingester struct {
	repo *repository.ListingRepository
	seen *bloom.BloomFilter

	batch    []listing.Listing
	inserted int64
	skipped  int64
}

func (ing *ingester) consume(ctx context.Context, rows <-chan listing.Listing) error {
	ing.batch = make([]listing.Listing, 0, copyBatchSize)

	for l := range rows {
		// A negative test is authoritative: the ID is in neither the
		// database nor any earlier row, so the COPY path cannot conflict.
		// A positive test may be a false positive, so those rows take the
		// slower insert that tolerates duplicates.
		if ing.seen.TestAndAddString(l.ID) {
			if err := ing.flush(ctx); err != nil {
				return err
			}
			created, err := ing.repo.CreateIgnoreConflict(ctx, &l)
			if err != nil {
				return err
			}
			if created {
				ing.inserted++
			} else {
				ing.skipped++
			}
			continue
		}

		ing.batch = append(ing.batch, l)
		if len(ing.batch) == copyBatchSize {
			if err := ing.flush(ctx); err != nil {
				return err
			}
		}
	}
	return ing.flush(ctx)
}

// flush writes the pending COPY batch. It runs before every slow-path
// insert as well, to keep row order stable when an ID repeats across
// the two paths.
func (ing *ingester) flush(ctx context.Context) error {
	if len(ing.batch) == 0 {
		return nil
	}
	n, err := ing.repo.CopyBatch(ctx, ing.batch)
	if err != nil {
		return errors.Wrap(err, "copy batch")
	}
	ing.inserted += n
	ing.batch = ing.batch[:0]
	return nil
}

func parseFile(ctx context.Context, path string, out chan<- listing.Listing) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader %s", path)
	}
	defer gz.Close()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = 7
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		if row[0] == "listing_id" {
			continue
		}

		l, err := parseRow(row)
		if err != nil {
			slog.Warn("skipping malformed row",
				slog.String("file", path),
				slog.String("listing_id", row[0]),
				slog.String("error", err.Error()),
			)
			continue
		}

		select {
		case out <- l:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// parseRow converts a CSV row into an active listing, converting the
// decimal major-unit price exactly into minor units.
func parseRow(row []string) (listing.Listing, error) {
	id := strings.TrimSpace(row[0])
	title := strings.TrimSpace(row[1])
	description := strings.TrimSpace(row[2])
	seller := strings.TrimSpace(row[6])
	if id == "" || title == "" || description == "" || seller == "" {
		return listing.Listing{}, errors.New("listing_id, title, description, and seller must not be empty")
	}

	price, err := decimal.NewFromString(strings.TrimSpace(row[3]))
	if err != nil {
		return listing.Listing{}, errors.Wrap(err, "parse price")
	}
	minor := price.Shift(2)
	if !minor.IsInteger() || minor.IsNegative() {
		return listing.Listing{}, errors.Errorf("price %s does not convert to whole non-negative minor units", price)
	}

	condition := listing.Condition(strings.TrimSpace(row[4]))
	if !condition.Valid() {
		return listing.Listing{}, errors.Errorf("unknown condition %q", row[4])
	}

	return listing.Listing{
		ID:          id,
		Title:       title,
		Description: description,
		Price:       minor.IntPart(),
		Condition:   condition,
		ImageURL:    strings.TrimSpace(row[5]),
		Status:      listing.StatusActive,
		Seller:      identity.ID(seller),
		CreatedAt:   time.Now().UTC(),
	}, nil
}
