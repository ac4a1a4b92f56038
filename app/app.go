package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Black-And-White-Club/maprank/app/eventbus"
	"github.com/Black-And-White-Club/maprank/app/modules/ranking"
	rankingapi "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/api"
	rankingdb "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/maprank/app/observability"
	"github.com/Black-And-White-Club/maprank/app/observability/attr"
	"github.com/Black-And-White-Club/maprank/config"
	"github.com/Black-And-White-Club/maprank/db/bundb"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
)

// App holds the process-wide infrastructure and the modules built on it.
type App struct {
	Config        *config.Config
	Observability observability.Observability
	DB            *bundb.DBService
	EventBus      eventbus.EventBus
	Router        *message.Router
	HTTPRouter    chi.Router
	RankingModule *ranking.Module

	wg sync.WaitGroup
}

// Options adjust how NewApp prepares the process.
type Options struct {
	// Migrate applies pending schema migrations before modules start.
	Migrate bool
	// Observability replaces the one built from config, mainly for tests.
	Observability *observability.Observability
}

// NewApp builds observability, storage, the event bus and every module.
func NewApp(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg}

	if opts.Observability != nil {
		app.Observability = *opts.Observability
	} else {
		obs, err := observability.Init(observability.Config{
			ServiceName: "maprank",
			Environment: cfg.Observability.Environment,
			LogLevel:    cfg.Observability.LogLevel,
			LogFormat:   cfg.Observability.LogFormat,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize observability: %w", err)
		}
		app.Observability = obs
	}
	logger := app.Observability.Logger

	var (
		repo rankingdb.Repository
		db   *bun.DB
	)
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		logger.WarnContext(ctx, "Using in-memory storage; rankings are lost on restart")
		repo = rankingdb.NewMemoryRepository()
	default:
		dbService, err := bundb.NewBunDBService(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if opts.Migrate {
			if err := dbService.Migrate(ctx); err != nil {
				_ = dbService.Close()
				return nil, err
			}
		}
		app.DB = dbService
		repo = dbService.RankingDB
		db = dbService.GetDB()
	}

	app.EventBus = eventbus.NewInProcess(eventbus.Config{}, logger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, watermill.NewSlogLogger(logger))
	if err != nil {
		app.closeInfra()
		return nil, fmt.Errorf("failed to create message router: %w", err)
	}
	app.Router = router
	app.HTTPRouter = rankingapi.NewRootRouter(app.Observability.Registry, app.health)

	module, err := ranking.NewRankingModule(ctx, cfg, app.Observability, repo, db, app.EventBus, router, app.HTTPRouter)
	if err != nil {
		app.closeInfra()
		return nil, fmt.Errorf("failed to initialize ranking module: %w", err)
	}
	app.RankingModule = module

	return app, nil
}

func (app *App) health(ctx context.Context) error {
	if app.DB == nil {
		return nil
	}
	return app.DB.Ping(ctx)
}

// Close stops modules first, then the router, bus and database.
func (app *App) Close() error {
	var errs []error
	if app.RankingModule != nil {
		errs = append(errs, app.RankingModule.Close())
	}
	app.wg.Wait()
	errs = append(errs, app.closeInfra())
	if err := errors.Join(errs...); err != nil {
		app.Observability.Logger.Error("Shutdown finished with errors", attr.Error(err))
		return err
	}
	return nil
}

func (app *App) closeInfra() error {
	var errs []error
	if app.Router != nil {
		errs = append(errs, app.Router.Close())
	}
	if app.EventBus != nil {
		errs = append(errs, app.EventBus.Close())
	}
	if app.DB != nil {
		errs = append(errs, app.DB.Close())
	}
	return errors.Join(errs...)
}
