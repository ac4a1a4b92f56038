package rankingrouter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Black-And-White-Club/maprank/app/eventbus"
	"github.com/Black-And-White-Club/maprank/app/eventbus/handlerwrapper"
	rankingevents "github.com/Black-And-White-Club/maprank/app/modules/ranking/events"
	rankinghandlers "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/handlers"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

const (
	TestEnvironmentFlag  = "APP_ENV"
	TestEnvironmentValue = "test"

	// PoisonTopic receives messages whose handler kept failing.
	PoisonTopic = "ranking.poison.v1"
)

type RankingRouter struct {
	logger             *slog.Logger
	Router             *message.Router
	subscriber         eventbus.EventBus
	publisher          eventbus.EventBus
	tracer             trace.Tracer
	metricsBuilder     *metrics.PrometheusMetricsBuilder
	prometheusRegistry *prometheus.Registry
	metricsEnabled     bool
}

// NewRankingRouter creates a new instance of the router.
func NewRankingRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber eventbus.EventBus,
	publisher eventbus.EventBus,
	tracer trace.Tracer,
	prometheusRegistry *prometheus.Registry,
) *RankingRouter {
	inTestEnv := os.Getenv(TestEnvironmentFlag) == TestEnvironmentValue

	var metricsBuilder *metrics.PrometheusMetricsBuilder
	if prometheusRegistry != nil && !inTestEnv {
		builder := metrics.NewPrometheusMetricsBuilder(prometheusRegistry, "", "")
		metricsBuilder = &builder
	}

	return &RankingRouter{
		logger:             logger,
		Router:             router,
		subscriber:         subscriber,
		publisher:          publisher,
		tracer:             tracer,
		metricsBuilder:     metricsBuilder,
		prometheusRegistry: prometheusRegistry,
		metricsEnabled:     metricsBuilder != nil,
	}
}

// Configure sets up the middlewares and registers the ranking handlers.
func (r *RankingRouter) Configure(routerCtx context.Context, handlers rankinghandlers.Handlers) error {
	if r.metricsEnabled {
		r.logger.Info("Adding Prometheus router metrics middleware for Ranking")
		r.metricsBuilder.AddPrometheusRouterMetrics(r.Router)
	}

	poison, err := middleware.PoisonQueue(r.publisher, PoisonTopic)
	if err != nil {
		return fmt.Errorf("poison queue middleware: %w", err)
	}

	r.Router.AddMiddleware(
		middleware.CorrelationID,
		poison,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: 100 * time.Millisecond,
			Multiplier:      2,
			Logger:          watermill.NewSlogLogger(r.logger),
		}.Middleware,
		middleware.Recoverer,
	)

	return r.RegisterHandlers(routerCtx, handlers)
}

// handlerDeps provides a scannable structure for the registerHandler helper.
type handlerDeps struct {
	router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	logger     *slog.Logger
	tracer     trace.Tracer
}

// registerHandler is a generic helper to reduce boilerplate when adding topics to the router.
func registerHandler[T any](
	deps handlerDeps,
	topic string,
	handler func(context.Context, *T) ([]handlerwrapper.Result, error),
) {
	handlerName := "ranking." + topic
	deps.router.AddConsumerHandler(
		handlerName,
		topic,
		deps.subscriber,
		handlerwrapper.WrapTransformingTyped(
			handlerName,
			deps.logger,
			deps.tracer,
			deps.publisher,
			handler,
		),
	)
}

// RegisterHandlers binds ranking topics to their handlers.
func (r *RankingRouter) RegisterHandlers(ctx context.Context, handlers rankinghandlers.Handlers) error {
	r.logger.InfoContext(ctx, "Registering Ranking Event Handlers")

	deps := handlerDeps{
		router:     r.Router,
		subscriber: r.subscriber,
		publisher:  r.publisher,
		logger:     r.logger,
		tracer:     r.tracer,
	}

	// MUTATIONS
	registerHandler(deps, rankingevents.FinishRecordedV1, handlers.HandleFinishRecorded)
	registerHandler(deps, rankingevents.MapBeganV1, handlers.HandleMapBegan)
	registerHandler(deps, rankingevents.MapEndedV1, handlers.HandleMapEnded)
	registerHandler(deps, rankingevents.ResyncRequestedV1, handlers.HandleResyncRequested)

	// OBSERVERS
	registerHandler(deps, rankingevents.ObserverConnectedV1, handlers.HandleObserverConnected)
	registerHandler(deps, rankingevents.ObserverDisconnectedV1, handlers.HandleObserverDisconnected)

	return nil
}

// Close stops the router and cleans up resources.
func (r *RankingRouter) Close() error {
	return r.Router.Close()
}
