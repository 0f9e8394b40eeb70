package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"olt-pricewatch/internal/config"
	"olt-pricewatch/internal/models"
	"olt-pricewatch/internal/refresher"
	"olt-pricewatch/internal/repository"
	"olt-pricewatch/internal/seourl"
	"olt-pricewatch/internal/te"
)

// Discovers all upcoming events for a performer via the paged TE /events
// endpoint and bulk-upserts tracking rows.
func main() {
	var (
		performerID int64
		perPage     int
		primaryOnly bool
		dryRun      bool
	)
	flag.Int64Var(&performerID, "performer-id", 0, "TE performer id (required)")
	flag.IntVar(&perPage, "per-page", 100, "page size for TE /events")
	flag.BoolVar(&primaryOnly, "primary-only", false, "only events where the performer is the headliner")
	flag.BoolVar(&dryRun, "dry-run", false, "list events without writing")
	flag.Parse()

	if performerID == 0 {
		log.Fatal("--performer-id is required")
	}

	_ = godotenv.Load()
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.DatabaseURL == "" && !dryRun {
		log.Fatal("DATABASE_URL or DB_URL is required")
	}

	client, err := te.NewClient(te.ClientConfig{
		BaseURL:           cfg.TEBaseURL,
		Token:             cfg.TEAPIToken,
		Secret:            cfg.TEAPISecret,
		MaxRetries:        cfg.MaxRetries,
		RequestsPerSecond: 2,
	})
	if err != nil {
		log.Fatalf("failed to create TE client: %v", err)
	}

	urlBase := os.Getenv("OLT_URL_BASE")
	if urlBase == "" {
		urlBase = "https://www.onelastticket.com"
	}
	builder, err := seourl.NewBuilder(urlBase, cfg.EventTimeZone)
	if err != nil {
		log.Fatalf("failed to create URL builder: %v", err)
	}

	var repo *repository.Repository
	if !dryRun {
		repo, err = repository.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect repository: %v", err)
		}
		defer repo.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var (
		imported int
		skipped  int
	)
	for page := 1; ; page++ {
		pg, err := client.GetEventsByPerformer(ctx, performerID, page, perPage, primaryOnly)
		if err != nil {
			log.Fatalf("[import_performer] page %d: %v", page, err)
		}
		if len(pg.Events) == 0 {
			break
		}
		log.Printf("[import_performer] page %d: %d events", page, len(pg.Events))

		for _, teEv := range pg.Events {
			startsAt, err := time.Parse("2006-01-02T15:04:05", teEv.OccursAt)
			if err != nil {
				if startsAt, err = time.Parse(time.RFC3339, teEv.OccursAt); err != nil {
					log.Printf("[import_performer] skip event %d: bad occurs_at %q", teEv.ID, teEv.OccursAt)
					skipped++
					continue
				}
			}
			startsAt = startsAt.UTC()
			if startsAt.Before(time.Now().UTC()) {
				skipped++
				continue
			}
			endsAt := startsAt.Add(refresher.EventDuration)

			teEvCopy := teEv
			oltURL, err := builder.Build(&teEvCopy, 2)
			if err != nil {
				log.Printf("[import_performer] skip event %d: %v", teEv.ID, err)
				skipped++
				continue
			}

			if dryRun {
				log.Printf("[import_performer] would import %d %q (%s)", teEv.ID, teEv.Name, teEv.OccursAt)
				imported++
				continue
			}

			ev := models.Event{
				TEEventID:      teEv.ID,
				Title:          teEv.Name,
				StartsAt:       &startsAt,
				EndsAt:         &endsAt,
				PollingEnabled: true,
				OltURL:         &oltURL,
			}
			if err := repo.UpsertEvent(ctx, ev); err != nil {
				log.Printf("[import_performer] upsert event %d: %v", teEv.ID, err)
				skipped++
				continue
			}
			imported++
		}

		if pg.PerPage > 0 && page*pg.PerPage >= pg.TotalEntries {
			break
		}
	}

	log.Printf("[import_performer] done: %d imported, %d skipped (dry_run=%v)", imported, skipped, dryRun)
}
