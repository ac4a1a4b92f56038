package ranking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Black-And-White-Club/maprank/app/eventbus"
	rankingservice "github.com/Black-And-White-Club/maprank/app/modules/ranking/application"
	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	rankingapi "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/api"
	rankingbroadcast "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/broadcast"
	"github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/gamebridge"
	rankinghandlers "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/handlers"
	rankingqueue "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/queue"
	rankingdb "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/repositories"
	rankingrouter "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/router"
	"github.com/Black-And-White-Club/maprank/app/observability"
	"github.com/Black-And-White-Club/maprank/app/observability/attr"
	"github.com/Black-And-White-Club/maprank/config"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
)

// Module represents the ranking module.
type Module struct {
	EventBus       eventbus.EventBus
	RankingService rankingservice.Service
	RankingRouter  *rankingrouter.RankingRouter
	Broadcaster    *rankingbroadcast.SyncBroadcaster

	config        *config.Config
	observability observability.Observability
	queue         *rankingqueue.Service
	bridge        *gamebridge.Bridge
	cancelFunc    context.CancelFunc
}

// NewRankingModule wires the ranking pipeline onto the shared bus, watermill
// router and HTTP router. db is nil when the memory store is used; httpRouter
// may be nil to skip the read API.
func NewRankingModule(
	ctx context.Context,
	cfg *config.Config,
	obs observability.Observability,
	repo rankingdb.Repository,
	db *bun.DB,
	bus eventbus.EventBus,
	router *message.Router,
	httpRouter chi.Router,
) (*Module, error) {
	logger := obs.Logger
	metrics := obs.Metrics
	tracer := obs.Tracer

	logger.InfoContext(ctx, "ranking.NewRankingModule called")

	broadcaster := rankingbroadcast.NewSyncBroadcaster(
		rankingbroadcast.NewPublisherDeliverer(bus),
		rankingbroadcast.Config{
			Scope: cfg.Sync.Scope,
			Window: rankingdomain.WindowConfig{
				TopCount:      cfg.Sync.TopCount,
				ExtendedCount: cfg.Sync.ExtendedCount,
				Before:        cfg.Sync.Before,
				After:         cfg.Sync.After,
			},
			DeliveryTimeout: cfg.Sync.DeliveryTimeout,
		},
		logger,
		metrics,
	)

	service := rankingservice.NewRankingService(repo, logger, metrics, tracer, db, broadcaster, rankingservice.Options{
		Points: rankingdomain.PointsConfig{
			MinValue:   cfg.Scoring.MinValue,
			Multiplier: cfg.Scoring.Multiplier,
		},
		Scope: cfg.Sync.Scope,
	})

	handlers := rankinghandlers.NewRankingHandlers(service, logger, tracer)
	rankingRouter := rankingrouter.NewRankingRouter(logger, router, bus, bus, tracer, obs.Registry)
	if err := rankingRouter.Configure(ctx, handlers); err != nil {
		broadcaster.Close()
		return nil, fmt.Errorf("failed to configure ranking router: %w", err)
	}

	if httpRouter != nil {
		rankingapi.Register(httpRouter, rankingapi.NewHTTPHandlers(service, logger), rankingapi.Config{
			RateLimit:     cfg.HTTP.RateLimit,
			RateBurst:     cfg.HTTP.RateBurst,
			ExportCost:    cfg.HTTP.ExportCost,
			ClientIdleTTL: cfg.HTTP.ClientIdleTTL,
		})
	}

	m := &Module{
		EventBus:       bus,
		RankingService: service,
		RankingRouter:  rankingRouter,
		Broadcaster:    broadcaster,
		config:         cfg,
		observability:  obs,
	}

	if cfg.Queue.Enabled {
		q, err := rankingqueue.NewService(ctx, cfg.Postgres.DSN, rankingqueue.Config{
			AuditInterval: cfg.Queue.AuditInterval,
			MaxWorkers:    cfg.Queue.MaxWorkers,
		}, service, bus, logger, metrics)
		if err != nil {
			broadcaster.Close()
			return nil, fmt.Errorf("failed to create ranking queue: %w", err)
		}
		m.queue = q
	}

	if cfg.NATS.URL != "" {
		bridge, err := gamebridge.Dial(ctx, gamebridge.Config{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
		}, bus, logger)
		if err != nil {
			broadcaster.Close()
			return nil, fmt.Errorf("failed to connect game bridge: %w", err)
		}
		m.bridge = bridge
	}

	return m, nil
}

// Start rebuilds ranking state from the store. It must complete before the
// router consumes events.
func (m *Module) Start(ctx context.Context) error {
	if err := m.RankingService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start ranking service: %w", err)
	}
	return nil
}

// Run starts the job queue and the game bridge, then blocks until ctx is
// cancelled. Call once the router is running so no inbound event is dropped.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	logger := m.observability.Logger
	logger.InfoContext(ctx, "Starting ranking module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	if m.queue != nil {
		if err := m.queue.Start(ctx); err != nil {
			logger.ErrorContext(ctx, "Ranking queue failed to start", attr.Error(err))
		}
	}

	if m.bridge != nil {
		if err := m.bridge.Run(ctx); err != nil {
			logger.ErrorContext(ctx, "Game bridge stopped", attr.Error(err))
		}
	}

	<-ctx.Done()
	logger.InfoContext(ctx, "Ranking module goroutine stopped")
}

// Close stops the module and cleans up resources.
func (m *Module) Close() error {
	logger := m.observability.Logger
	logger.Info("Stopping ranking module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	var errs []error
	if m.bridge != nil {
		errs = append(errs, m.bridge.Close())
	}
	if m.queue != nil {
		errs = append(errs, m.queue.Stop(context.Background()))
	}
	m.Broadcaster.Close()

	logger.Info("Ranking module stopped")
	return errors.Join(errs...)
}
