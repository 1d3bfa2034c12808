// Command reindex recomputes the geohash cell columns of every listing and
// amenity. Run it after changing cell precisions or bulk-loading rows
// without cells.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dwelligence/internal/config"
	"dwelligence/internal/geo"
	"dwelligence/internal/model"
	"dwelligence/internal/repository"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	batchSize := flag.Int("batch", 500, "rows fetched per page")
	dryRun := flag.Bool("dry-run", false, "count stale rows without writing")
	flag.Parse()

	log.DefaultLogger = log.Logger{
		Level:  log.InfoLevel,
		Writer: &log.ConsoleWriter{ColorOutput: true, EndWithMessage: true},
	}

	cfg, err := config.LoadDatabase()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	repo, err := repository.NewPostgresRepository(cfg.GetPostgreSQLDSN(), cfg.PostgreSQL.MaxConnections, cfg.PostgreSQL.MaxIdleConnections)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return reindexListings(gctx, repo, *batchSize, *dryRun) })
	g.Go(func() error { return reindexAmenities(gctx, repo, *batchSize, *dryRun) })
	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("reindex failed")
	}
	log.Info().Dur("took", time.Since(start)).Bool("dry_run", *dryRun).Msg("reindex complete")
}

func reindexListings(ctx context.Context, repo *repository.PostgresRepository, batch int, dryRun bool) error {
	var afterID int64
	scanned, updated := 0, 0
	for {
		page, err := repo.AllListings(ctx, afterID, batch)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}
		for i := range page {
			l := &page[i]
			afterID = l.ID
			scanned++

			before := listingCells(l)
			l.AssignCells()
			if before == listingCells(l) {
				continue
			}
			updated++
			if dryRun {
				continue
			}
			if err := repo.UpdateListingCells(ctx, l); err != nil {
				return err
			}
		}
		log.Info().Int("scanned", scanned).Int("updated", updated).Msg("listings progress")
	}
	log.Info().Int("scanned", scanned).Int("updated", updated).Msg("listings reindexed")
	return nil
}

func reindexAmenities(ctx context.Context, repo *repository.PostgresRepository, batch int, dryRun bool) error {
	var afterID int64
	scanned, updated := 0, 0
	for {
		page, err := repo.AllAmenities(ctx, afterID, batch)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}
		for i := range page {
			a := &page[i]
			afterID = a.ID
			scanned++
			if !stale(a) {
				continue
			}
			updated++
			if dryRun {
				continue
			}
			if err := repo.UpdateAmenityCells(ctx, a); err != nil {
				return err
			}
		}
		log.Info().Int("scanned", scanned).Int("updated", updated).Msg("amenities progress")
	}
	log.Info().Int("scanned", scanned).Int("updated", updated).Msg("amenities reindexed")
	return nil
}

func listingCells(l *model.Listing) [3]string {
	return [3]string{l.Cell(geo.Fine), l.Cell(geo.Medium), l.Cell(geo.Coarse)}
}

// stale assigns fresh cells and reports whether any changed.
func stale(a *model.AmenityPoint) bool {
	before := [3]string{a.CellFine, a.CellMedium, a.CellCoarse}
	a.AssignCells()
	return before != [3]string{a.CellFine, a.CellMedium, a.CellCoarse}
}
