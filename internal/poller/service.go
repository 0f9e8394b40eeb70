package poller

import (
	"context"
	"fmt"
	"time"

	"olt-pricewatch/internal/models"
)

// RollupStore adds the daily-rollup entry point used by the daily job.
type RollupStore interface {
	RollupHourlyToDaily(ctx context.Context) (int64, error)
}

// Service wires the run coordinator and engine into the two jobs the
// scheduler invokes: the hourly poll and the daily rollup + retention pass.
type Service struct {
	coordinator *Coordinator
	engine      *Engine
	retention   *Retention
	rollup      RollupStore
}

func NewService(coordinator *Coordinator, engine *Engine, retention *Retention, rollup RollupStore) *Service {
	return &Service{
		coordinator: coordinator,
		engine:      engine,
		retention:   retention,
		rollup:      rollup,
	}
}

// HourlyResult is the response body of the hourly job.
type HourlyResult struct {
	Status          string     `json:"status"`
	Reason          string     `json:"reason,omitempty"`
	HourBucket      *time.Time `json:"hour_bucket,omitempty"`
	EventsTotal     int        `json:"events_total,omitempty"`
	EventsSucceeded int        `json:"events_succeeded,omitempty"`
	EventsFailed    int        `json:"events_failed,omitempty"`
	EventsSkipped   int        `json:"events_skipped,omitempty"`
	TotalDurationMs int64      `json:"total_duration_ms"`
}

// RunHourly acquires the hour lock and runs the poll. Lock contention is
// reported as a skipped result, not an error.
func (s *Service) RunHourly(ctx context.Context) (*HourlyResult, error) {
	started := time.Now()

	bucket, outcome, err := s.coordinator.Acquire(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	if outcome != Acquired {
		return &HourlyResult{
			Status:          "skipped",
			Reason:          outcome.String(),
			TotalDurationMs: time.Since(started).Milliseconds(),
		}, nil
	}

	run, err := s.engine.Run(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("hourly run for %s: %w", bucket.Format(time.RFC3339), err)
	}

	return &HourlyResult{
		Status:          run.Status,
		HourBucket:      &bucket,
		EventsTotal:     run.EventsTotal,
		EventsSucceeded: run.EventsSucceeded,
		EventsFailed:    run.EventsFailed,
		EventsSkipped:   run.EventsSkipped,
		TotalDurationMs: time.Since(started).Milliseconds(),
	}, nil
}

// DailyResult is the response body of the daily job.
type DailyResult struct {
	Status          string            `json:"status"`
	RolledUpRows    int64             `json:"rolled_up_rows"`
	Retention       *RetentionSummary `json:"retention,omitempty"`
	TotalDurationMs int64             `json:"total_duration_ms"`
}

// RunDaily folds hourly rows into daily rows, then enforces retention.
func (s *Service) RunDaily(ctx context.Context) (*DailyResult, error) {
	started := time.Now()

	rows, err := s.rollup.RollupHourlyToDaily(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := s.retention.Enforce(ctx, time.Now())
	if err != nil {
		return nil, err
	}

	return &DailyResult{
		Status:          models.RunStatusSucceeded,
		RolledUpRows:    rows,
		Retention:       summary,
		TotalDurationMs: time.Since(started).Milliseconds(),
	}, nil
}
