package rankingservice

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	rankingdb "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/maprank/app/observability"
	"github.com/Black-And-White-Club/maprank/app/observability/attr"
	"github.com/Black-And-White-Club/maprank/app/shared/results"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Sync scopes decide which leaderboard drives observer windows.
const (
	ScopeMap    = "map"
	ScopeGlobal = "global"
)

// Options tunes a RankingService. Zero values select the defaults.
type Options struct {
	Points rankingdomain.PointsConfig
	Scope  string
	Clock  func() time.Time
}

// RankingService implements the Service interface.
type RankingService struct {
	repo        rankingdb.Repository
	logger      *slog.Logger
	metrics     observability.RankingMetrics
	tracer      trace.Tracer
	db          *bun.DB
	broadcaster Broadcaster

	points     rankingdomain.PointsConfig
	scope      string
	now        func() time.Time
	mapLocks   *keyedMutex[rankingdomain.MapID]
	aggregator *RankAggregator
	cache      *snapshotCache
	names      *PlayerDirectory
}

var _ Service = (*RankingService)(nil)

// NewRankingService creates a new RankingService. db may be nil for stores
// without transactions; broadcaster may be nil when no observers are served.
func NewRankingService(
	repo rankingdb.Repository,
	logger *slog.Logger,
	metrics observability.RankingMetrics,
	tracer trace.Tracer,
	db *bun.DB,
	broadcaster Broadcaster,
	opts Options,
) *RankingService {
	if opts.Points == (rankingdomain.PointsConfig{}) {
		opts.Points = rankingdomain.DefaultPointsConfig()
	}
	if opts.Scope == "" {
		opts.Scope = ScopeMap
	}
	if opts.Clock == nil {
		// Postgres keeps microseconds; rows read back must compare equal.
		opts.Clock = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
	}
	if broadcaster == nil {
		broadcaster = nopBroadcaster{}
	}

	s := &RankingService{
		repo:        repo,
		logger:      logger,
		metrics:     metrics,
		tracer:      tracer,
		db:          db,
		broadcaster: broadcaster,
		points:      opts.Points,
		scope:       opts.Scope,
		now:         opts.Clock,
		mapLocks:    newKeyedMutex[rankingdomain.MapID](),
		cache:       newSnapshotCache(),
		names:       NewPlayerDirectory(),
	}
	s.aggregator = NewRankAggregator(repo, s.runInTx, logger, metrics, opts.Clock)
	return s
}

// Directory exposes the display-name registry.
func (s *RankingService) Directory() *PlayerDirectory { return s.names }

// operationFunc is the generic signature for service operation functions.
type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *RankingService,
	ctx context.Context,
	operationName string,
	mapID rankingdomain.MapID,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	ctx, span := s.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("operation", operationName),
		attribute.String("map_id", mapID.String()),
	))
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName)

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, time.Since(startTime))
	}()

	s.logger.DebugContext(ctx, operationName+" triggered",
		attr.String("operation", operationName),
		attr.MapID(mapID),
		attr.ExtractCorrelationID(ctx),
	)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.MapID(mapID),
				attr.ExtractCorrelationID(ctx),
				attr.Error(err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName)
			span.RecordError(err)
			result = results.OperationResult[S, F]{}
		}
	}()

	result, err = op(ctx)

	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.MapID(mapID),
			attr.Error(wrappedErr),
		)
		s.metrics.RecordOperationFailure(ctx, operationName)
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	if result.IsFailure() {
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.MapID(mapID),
			attr.Any("failure_payload", *result.Failure),
		)
	}

	if result.IsSuccess() {
		s.logger.DebugContext(ctx, operationName+" completed successfully",
			attr.String("operation", operationName),
			attr.MapID(mapID),
			attr.ExtractCorrelationID(ctx),
		)
		s.metrics.RecordOperationSuccess(ctx, operationName)
	}

	return result, nil
}

// runInTx runs fn inside a transaction, or directly against the store when
// there is no database handle.
func (s *RankingService) runInTx(ctx context.Context, fn func(ctx context.Context, db bun.IDB) error) error {
	if s.db == nil {
		return fn(ctx, nil)
	}
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

type nopBroadcaster struct{}

func (nopBroadcaster) Connect(rankingdomain.ParticipantID, rankingdomain.SyncView) {}
func (nopBroadcaster) Disconnect(rankingdomain.ParticipantID)                      {}
func (nopBroadcaster) Publish(rankingdomain.SyncView)                              {}
