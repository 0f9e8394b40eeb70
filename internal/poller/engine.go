package poller

import (
	"context"
	"log"
	"sync"
	"time"

	"olt-pricewatch/internal/aggregate"
	"olt-pricewatch/internal/models"
)

// EngineStore is the slice of the repository the engine writes through.
type EngineStore interface {
	GetActiveEvents(ctx context.Context, now time.Time) ([]models.Event, error)
	UpdateRunTotals(ctx context.Context, hourBucket time.Time, eventsTotal int) error
	UpdateRunProcessed(ctx context.Context, hourBucket time.Time, eventsProcessed int) error
	FinalizeRun(ctx context.Context, run models.PollerRun, debug map[string]interface{}) error
	UpsertRunEvent(ctx context.Context, re models.PollerRunEvent) error
	UpsertHourlyPrice(ctx context.Context, p models.HourlyPrice) error
	GetLatestHourlyBefore(ctx context.Context, teEventID int64, bucket time.Time) (*models.HourlyPrice, error)
}

// ListingsClient fetches TE listings for one event.
type ListingsClient interface {
	GetListings(ctx context.Context, eventID int64) (*models.TEListingsPayload, error)
}

// HourlyPriceCallback is invoked for every hourly row written, for real-time
// fan-out to websocket subscribers.
type HourlyPriceCallback func(models.HourlyPrice)

// Engine runs one hour's poll: selects active events, fans out TE listing
// fetches in bounded-concurrency batches, and writes hourly aggregates plus
// per-event audit rows. The caller must hold the hour lock.
type Engine struct {
	store     EngineStore
	client    ListingsClient
	retention *Retention
	batchSize int

	OnHourlyPrice HourlyPriceCallback
}

func NewEngine(store EngineStore, client ListingsClient, retention *Retention, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Engine{
		store:     store,
		client:    client,
		retention: retention,
		batchSize: batchSize,
	}
}

// eventOutcome is one event's result, collected over the batch channel.
type eventOutcome struct {
	status string
	errStr string
}

// Run executes the poll for the given (already locked) hour bucket and
// finalizes the run row. Per-event failures never abort the run; only a
// failure to read the active-event set does.
func (e *Engine) Run(ctx context.Context, bucket time.Time) (*models.PollerRun, error) {
	started := time.Now()
	now := time.Now().UTC()

	run := models.PollerRun{
		HourBucket: bucket,
		BatchSize:  e.batchSize,
	}
	debug := map[string]interface{}{}

	events, err := e.store.GetActiveEvents(ctx, now)
	if err != nil {
		// Best-effort terminal state so the lock does not read as live.
		errStr := err.Error()
		run.Status = models.RunStatusFailed
		run.ErrorSample = &errStr
		if ferr := e.store.FinalizeRun(ctx, run, debug); ferr != nil {
			log.Printf("[Poller] failed to finalize aborted run: %v", ferr)
		}
		return nil, err
	}

	run.EventsTotal = len(events)
	if err := e.store.UpdateRunTotals(ctx, bucket, len(events)); err != nil {
		log.Printf("[Poller] failed to update run totals: %v", err)
	}

	// Retention piggybacks on the hourly run; failures are diagnostic only.
	if e.retention != nil {
		if summary, rerr := e.retention.Enforce(ctx, now); rerr != nil {
			debug["retention"] = map[string]interface{}{"error": rerr.Error()}
		} else {
			debug["retention"] = summary
		}
	}

	batchCount := 0
	for start := 0; start < len(events); start += e.batchSize {
		end := start + e.batchSize
		if end > len(events) {
			end = len(events)
		}
		batch := events[start:end]
		batchCount++

		outcomes := make(chan eventOutcome, len(batch))
		var wg sync.WaitGroup
		for _, ev := range batch {
			ev := ev
			wg.Add(1)
			go func() {
				defer wg.Done()
				outcomes <- e.processEvent(ctx, ev, bucket)
			}()
		}
		wg.Wait()
		close(outcomes)

		for oc := range outcomes {
			switch oc.status {
			case models.RunEventSucceeded:
				run.EventsSucceeded++
			case models.RunEventSkipped:
				run.EventsSkipped++
			default:
				run.EventsFailed++
				if run.ErrorSample == nil {
					errStr := oc.errStr
					run.ErrorSample = &errStr
				}
			}
		}

		run.EventsProcessed += len(batch)
		if err := e.store.UpdateRunProcessed(ctx, bucket, run.EventsProcessed); err != nil {
			log.Printf("[Poller] failed to update run progress: %v", err)
		}
	}

	switch {
	case run.EventsFailed == 0:
		run.Status = models.RunStatusSucceeded
	case run.EventsSucceeded > 0:
		run.Status = models.RunStatusPartial
	default:
		run.Status = models.RunStatusFailed
	}

	debug["duration_ms"] = time.Since(started).Milliseconds()
	debug["batch_count"] = batchCount
	debug["skipped_count"] = run.EventsSkipped

	if err := e.store.FinalizeRun(ctx, run, debug); err != nil {
		return &run, err
	}

	log.Printf("[Poller] hour %s: %d events (%d ok, %d skipped, %d failed) in %s",
		bucket.Format(time.RFC3339), run.EventsTotal, run.EventsSucceeded,
		run.EventsSkipped, run.EventsFailed, time.Since(started).Round(time.Millisecond))
	return &run, nil
}

func (e *Engine) processEvent(ctx context.Context, ev models.Event, bucket time.Time) eventOutcome {
	payload, err := e.client.GetListings(ctx, ev.TEEventID)
	if err != nil {
		return e.recordFailure(ctx, ev.TEEventID, bucket, err)
	}

	agg := aggregate.Compute(payload.Groups())

	// Unchanged min price across consecutive captures is usually legitimate
	// (quiet market), but surfaces stuck upstream caches; log only.
	if agg != nil {
		if prior, perr := e.store.GetLatestHourlyBefore(ctx, ev.TEEventID, bucket); perr == nil && prior != nil {
			if prior.MinPrice != nil && *prior.MinPrice == agg.MinPrice && !prior.CapturedAtHour.Equal(bucket) {
				log.Printf("[Poller] event %d: min price unchanged since %s",
					ev.TEEventID, prior.CapturedAtHour.Format(time.RFC3339))
			}
		}
	}

	row := models.HourlyPrice{TEEventID: ev.TEEventID, CapturedAtHour: bucket}
	runEvent := models.PollerRunEvent{HourBucket: bucket, TEEventID: ev.TEEventID}

	if agg == nil {
		zero := 0
		row.ListingCount = &zero
		if err := e.store.UpsertHourlyPrice(ctx, row); err != nil {
			return e.recordFailure(ctx, ev.TEEventID, bucket, err)
		}
		reason := "no_eligible_listings"
		runEvent.Status = models.RunEventSkipped
		runEvent.ListingCount = &zero
		runEvent.Error = &reason
	} else {
		row.MinPrice = &agg.MinPrice
		row.AvgPrice = &agg.AvgPrice
		row.MaxPrice = &agg.MaxPrice
		row.ListingCount = &agg.ListingCount
		if err := e.store.UpsertHourlyPrice(ctx, row); err != nil {
			return e.recordFailure(ctx, ev.TEEventID, bucket, err)
		}
		runEvent.Status = models.RunEventSucceeded
		runEvent.ListingCount = &agg.ListingCount
		runEvent.MinPrice = &agg.MinPrice
		runEvent.AvgPrice = &agg.AvgPrice
		runEvent.MaxPrice = &agg.MaxPrice
	}

	if err := e.store.UpsertRunEvent(ctx, runEvent); err != nil {
		log.Printf("[Poller] event %d: failed to record run event: %v", ev.TEEventID, err)
	}

	if runEvent.Status == models.RunEventSucceeded && e.OnHourlyPrice != nil {
		e.OnHourlyPrice(row)
	}

	return eventOutcome{status: runEvent.Status}
}

// recordFailure writes the per-event failed row; no hourly row is written
// for a failed event.
func (e *Engine) recordFailure(ctx context.Context, teEventID int64, bucket time.Time, cause error) eventOutcome {
	errStr := cause.Error()
	re := models.PollerRunEvent{
		HourBucket: bucket,
		TEEventID:  teEventID,
		Status:     models.RunEventFailed,
		Error:      &errStr,
	}
	if err := e.store.UpsertRunEvent(ctx, re); err != nil {
		log.Printf("[Poller] event %d: failed to record failure: %v", teEventID, err)
	}
	return eventOutcome{status: models.RunEventFailed, errStr: errStr}
}
