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

// Fetches one event from TE, derives its SEO URL, and upserts the tracking
// row so the hourly poller picks it up.
func main() {
	var (
		eventID        int64
		pollingEnabled bool
	)
	flag.Int64Var(&eventID, "event-id", 0, "TE event id to track (required)")
	flag.BoolVar(&pollingEnabled, "polling-enabled", true, "enable hourly polling for the event")
	flag.Parse()

	if eventID == 0 {
		log.Fatal("--event-id is required")
	}

	_ = godotenv.Load()
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or DB_URL is required")
	}

	repo, err := repository.NewRepository(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect repository: %v", err)
	}
	defer repo.Close()

	client, err := te.NewClient(te.ClientConfig{
		BaseURL:    cfg.TEBaseURL,
		Token:      cfg.TEAPIToken,
		Secret:     cfg.TEAPISecret,
		MaxRetries: cfg.MaxRetries,
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

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	teEv, err := client.GetEvent(ctx, eventID)
	if err != nil {
		log.Fatalf("[upsert_event] fetch event %d: %v", eventID, err)
	}

	startsAt, err := time.Parse("2006-01-02T15:04:05", teEv.OccursAt)
	if err != nil {
		if startsAt, err = time.Parse(time.RFC3339, teEv.OccursAt); err != nil {
			log.Fatalf("[upsert_event] event %d has bad occurs_at %q", eventID, teEv.OccursAt)
		}
	}
	startsAt = startsAt.UTC()
	endsAt := startsAt.Add(refresher.EventDuration)

	oltURL, err := builder.Build(teEv, 2)
	if err != nil {
		log.Fatalf("[upsert_event] build URL for event %d: %v", eventID, err)
	}

	ev := models.Event{
		TEEventID:      teEv.ID,
		Title:          teEv.Name,
		StartsAt:       &startsAt,
		EndsAt:         &endsAt,
		PollingEnabled: pollingEnabled,
		OltURL:         &oltURL,
	}
	if err := repo.UpsertEvent(ctx, ev); err != nil {
		log.Fatalf("[upsert_event] upsert event %d: %v", eventID, err)
	}

	log.Printf("[upsert_event] event %d (%q) upserted, polling_enabled=%v", teEv.ID, teEv.Name, pollingEnabled)
	log.Printf("[upsert_event] url: %s", oltURL)
}
