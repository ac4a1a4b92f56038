// Package rankingqueue runs the ranking module's river jobs.
package rankingqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/maprank/app/observability"
	"github.com/Black-And-White-Club/maprank/app/observability/attr"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertype"
)

type Config struct {
	AuditInterval time.Duration
	MaxWorkers    int
}

// QueueService schedules and runs ranking jobs.
type QueueService interface {
	EnqueueResync(ctx context.Context, mapID, requestedBy string) (*rivertype.JobInsertResult, error)
	ListJobs(ctx context.Context, kind string) ([]JobInfo, error)
	HealthCheck(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

var _ QueueService = (*Service)(nil)

// Service is the river-backed QueueService.
type Service struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics observability.RankingMetrics
}

// resyncUniqueStates leaves completed jobs out so a map can be resynced again
// once the previous request has run.
var resyncUniqueStates = []rivertype.JobState{
	rivertype.JobStateAvailable,
	rivertype.JobStatePending,
	rivertype.JobStateRetryable,
	rivertype.JobStateRunning,
	rivertype.JobStateScheduled,
}

// NewService creates a queue that works jobs: the periodic audit and queued resyncs.
func NewService(ctx context.Context, dsn string, cfg Config, auditor Auditor, publisher message.Publisher, logger *slog.Logger, metrics observability.RankingMetrics) (*Service, error) {
	logger = logger.With(attr.String("component", "river_queue"))

	if cfg.AuditInterval <= 0 {
		cfg.AuditInterval = 10 * time.Minute
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}

	pool, err := openPool(ctx, dsn)
	if err != nil {
		return nil, err
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewConsistencyAuditWorker(logger, auditor))
	river.AddWorker(workers, NewMapResyncWorker(logger, publisher))

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			Queue: {MaxWorkers: cfg.MaxWorkers},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(cfg.AuditInterval),
				func() (river.JobArgs, *river.InsertOpts) {
					return ConsistencyAuditJob{}, &river.InsertOpts{Queue: Queue}
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
		Logger: logger,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	logger.Info("Ranking queue service initialized", attr.Duration("audit_interval", cfg.AuditInterval))
	return &Service{client: client, pool: pool, logger: logger, metrics: metrics}, nil
}

// NewInsertOnly creates a client that can enqueue jobs but never works them.
func NewInsertOnly(ctx context.Context, dsn string, logger *slog.Logger, metrics observability.RankingMetrics) (*Service, error) {
	pool, err := openPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{Logger: logger})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}
	return &Service{client: client, pool: pool, logger: logger, metrics: metrics}, nil
}

func openPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Migrate applies river's own schema migrations.
func Migrate(ctx context.Context, dsn string) error {
	pool, err := openPool(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		return fmt.Errorf("failed to run River migrations: %w", err)
	}
	return nil
}

func (s *Service) Start(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		s.logger.Error("Failed to start River client", attr.Error(err))
		return fmt.Errorf("failed to start River client: %w", err)
	}
	s.logger.Info("Ranking queue service started")
	return nil
}

// Stop waits for running jobs, then closes the pool.
func (s *Service) Stop(ctx context.Context) error {
	defer s.pool.Close()
	if err := s.client.Stop(ctx); err != nil {
		s.logger.Error("Failed to stop River client", attr.Error(err))
		return fmt.Errorf("failed to stop River client: %w", err)
	}
	return nil
}

// Close releases an insert-only client.
func (s *Service) Close() {
	s.pool.Close()
}

// EnqueueResync queues a resync of mapID. A request for a map that already
// has one pending is skipped as a duplicate.
func (s *Service) EnqueueResync(ctx context.Context, mapID, requestedBy string) (*rivertype.JobInsertResult, error) {
	const op = "enqueue_resync"
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, op)

	res, err := s.client.Insert(ctx, MapResyncJob{
		MapID:       mapID,
		RequestedBy: requestedBy,
		RequestedAt: time.Now().UTC(),
	}, &river.InsertOpts{
		Queue: Queue,
		UniqueOpts: river.UniqueOpts{
			ByArgs:  true,
			ByState: resyncUniqueStates,
		},
	})
	if err != nil {
		s.metrics.RecordOperationFailure(ctx, op)
		s.logger.ErrorContext(ctx, "Failed to enqueue resync", attr.String("map_id", mapID), attr.Error(err))
		return nil, fmt.Errorf("failed to enqueue resync: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, op)
	s.metrics.RecordOperationDuration(ctx, op, time.Since(start))
	s.logger.InfoContext(ctx, "Resync enqueued",
		attr.String("map_id", mapID),
		attr.Int64("job_id", res.Job.ID),
		attr.Bool("duplicate", res.UniqueSkippedAsDuplicate),
	)
	return res, nil
}

// ListJobs returns the most recent ranking jobs of kind, newest first.
func (s *Service) ListJobs(ctx context.Context, kind string) ([]JobInfo, error) {
	res, err := s.client.JobList(ctx, river.NewJobListParams().
		Kinds(kind).
		Queues(Queue).
		OrderBy(river.JobListOrderByTime, river.SortOrderDesc).
		First(50))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s jobs: %w", kind, err)
	}

	out := make([]JobInfo, 0, len(res.Jobs))
	for _, job := range res.Jobs {
		info := JobInfo{
			ID:          job.ID,
			Kind:        job.Kind,
			State:       string(job.State),
			ScheduledAt: job.ScheduledAt.Format(time.RFC3339),
			Attempt:     job.Attempt,
		}
		if job.Kind == (MapResyncJob{}).Kind() {
			var args MapResyncJob
			if err := json.Unmarshal(job.EncodedArgs, &args); err == nil {
				info.MapID = args.MapID
			}
		}
		out = append(out, info)
	}
	return out, nil
}

func (s *Service) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("queue database unreachable: %w", err)
	}
	return nil
}
