package main

import (
	"context"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"olt-pricewatch/internal/api"
	"olt-pricewatch/internal/config"
	"olt-pricewatch/internal/eventbus"
	"olt-pricewatch/internal/models"
	"olt-pricewatch/internal/poller"
	"olt-pricewatch/internal/refresher"
	"olt-pricewatch/internal/repository"
	"olt-pricewatch/internal/seourl"
	"olt-pricewatch/internal/te"
)

// BuildCommit is set at build time via -ldflags.
var BuildCommit = "dev"

func main() {
	// .env is optional; real deployments inject env vars directly.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_FILE")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL (or DB_URL) is required")
	}

	log.Println("Initializing OLT PriceWatch Backend...")
	log.Printf("Build: %s", BuildCommit)
	log.Printf("DB: %s", redactDatabaseURL(cfg.DatabaseURL))
	log.Printf("TE API: %s", cfg.TEBaseURL)
	log.Printf("API Port: %d", cfg.APIPort)

	repo, err := repository.NewRepository(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer repo.Close()

	if os.Getenv("SKIP_MIGRATION") == "true" {
		log.Println("Database Migration SKIPPED (SKIP_MIGRATION=true)")
	} else {
		log.Println("Running Database Migration...")
		if err := repo.Migrate("schema.sql"); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Database Migration Complete.")
	}

	teClient, err := te.NewClient(te.ClientConfig{
		BaseURL:           cfg.TEBaseURL,
		Token:             cfg.TEAPIToken,
		Secret:            cfg.TEAPISecret,
		MaxRetries:        cfg.MaxRetries,
		RequestsPerSecond: 5,
	})
	if err != nil {
		log.Fatalf("Failed to create TE client: %v", err)
	}

	urlBase := os.Getenv("OLT_URL_BASE")
	if urlBase == "" {
		urlBase = "https://www.onelastticket.com"
	}
	urlBuilder, err := seourl.NewBuilder(urlBase, cfg.EventTimeZone)
	if err != nil {
		log.Fatalf("Failed to create URL builder: %v", err)
	}

	bus := eventbus.New()
	defer bus.Close()

	retention := poller.NewRetention(repo, cfg.RetentionDays)
	coordinator := poller.NewCoordinator(repo, time.Duration(cfg.StaleLockMinutes)*time.Minute, cfg.BatchSize)
	engine := poller.NewEngine(repo, teClient, retention, cfg.BatchSize)
	engine.OnHourlyPrice = func(p models.HourlyPrice) {
		bus.Publish(eventbus.Event{
			Type:      eventbus.TopicHourlyPrice,
			TEEventID: p.TEEventID,
			Timestamp: p.CapturedAtHour,
			Data:      p,
		})
	}
	jobs := poller.NewService(coordinator, engine, retention, repo)
	ref := refresher.New(repo, teClient, urlBuilder)

	server := api.NewServer(repo, jobs, ref, bus, api.Options{
		Port:          cfg.APIPort,
		JobAuthSecret: cfg.JobAuthSecret,
		JobAPIKey:     cfg.JobAPIKey,
		RedisURL:      cfg.RedisURL,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.SchedulerEnabled {
		go runHourlySchedule(ctx, jobs)
		go runDailySchedule(ctx, jobs)
	} else {
		log.Println("[Scheduler] disabled; expecting external POSTs to /jobs/*")
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		log.Fatalf("API server: %v", err)
	}
}

// runHourlySchedule fires the hourly job shortly after each top of hour.
// The run lock makes concurrent external triggers harmless.
func runHourlySchedule(ctx context.Context, jobs *poller.Service) {
	log.Println("[Scheduler] hourly poll enabled")
	for {
		now := time.Now().UTC()
		next := now.Truncate(time.Hour).Add(time.Hour + 15*time.Second)
		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
		}

		runCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
		result, err := jobs.RunHourly(runCtx)
		cancel()
		if err != nil {
			log.Printf("[Scheduler] hourly job error: %v", err)
			continue
		}
		log.Printf("[Scheduler] hourly job: status=%s reason=%s", result.Status, result.Reason)
	}
}

// runDailySchedule fires the rollup + retention pass once a day at 00:10 UTC.
func runDailySchedule(ctx context.Context, jobs *poller.Service) {
	log.Println("[Scheduler] daily rollup enabled")
	for {
		now := time.Now().UTC()
		next := now.Truncate(24 * time.Hour).Add(24*time.Hour + 10*time.Minute)
		if next.Sub(now) > 24*time.Hour {
			next = next.Add(-24 * time.Hour)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
		}

		runCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
		result, err := jobs.RunDaily(runCtx)
		cancel()
		if err != nil {
			log.Printf("[Scheduler] daily job error: %v", err)
			continue
		}
		log.Printf("[Scheduler] daily job: rolled up %d rows, pruned %d hourly rows",
			result.RolledUpRows, result.Retention.DeletedHourlyRows)
	}
}

// redactDatabaseURL hides the password when logging the connection string.
func redactDatabaseURL(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "<unparseable>"
	}
	if u.User != nil {
		if _, has := u.User.Password(); has {
			u.User = url.UserPassword(u.User.Username(), "*****")
		}
	}
	return u.String()
}
