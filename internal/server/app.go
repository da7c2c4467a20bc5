// Package server wires configuration, storage, caches and services into the
// HTTP and gRPC servers and runs them until shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/saasgate/internal/logging"
	"github.com/dmitrijs2005/saasgate/internal/server/assets"
	"github.com/dmitrijs2005/saasgate/internal/server/auth"
	"github.com/dmitrijs2005/saasgate/internal/server/config"
	"github.com/dmitrijs2005/saasgate/internal/server/httpapi"
	"github.com/dmitrijs2005/saasgate/internal/server/metrics"
	"github.com/dmitrijs2005/saasgate/internal/server/oauthstate"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/memstore"
	"github.com/dmitrijs2005/saasgate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/saasgate/internal/server/services"
	"github.com/dmitrijs2005/saasgate/internal/server/tenancy"

	gs "github.com/dmitrijs2005/saasgate/internal/server/grpc"
)

const (
	purgeInterval = 10 * time.Minute
	sweepInterval = time.Minute
)

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	clock   clock.Clock
	db      *sql.DB
	rdb     *redis.Client
	metrics *metrics.Registry

	memCache  *tenancy.MemoryCache
	memStates *oauthstate.MemoryStore

	resolver *tenancy.Resolver
	tokens   *services.TokenService
	auth     *services.AuthService
	handoff  *services.HandoffService

	httpServer *httpapi.Server
	grpcServer *gs.GRPCServer
}

// NewApp validates c and builds every component. Postgres migrations run
// here, before any listener is opened.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &App{config: c, logger: logger, clock: clock.New(), metrics: metrics.New()}

	store, err := app.initStorage(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	cache, states, err := app.initCache(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	signer, err := auth.NewSigner(c.SecretKey, c.AccessTokenTTL, app.clock)
	if err != nil {
		app.Close()
		return nil, err
	}

	var assetSigner services.AssetSigner
	if c.S3Bucket != "" {
		p, err := assets.NewS3Presigner(ctx, assets.S3Config{
			Region:       c.S3Region,
			Bucket:       c.S3Bucket,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
		assetSigner = p
	}

	var google *services.GoogleOAuth
	if c.GoogleEnabled() {
		google = services.NewGoogleOAuth(c.GoogleClientID, c.GoogleClientSecret, c.GoogleCallbackURL)
	}

	audit := services.NewAudit(logger, app.metrics)
	app.tokens = services.NewTokenService(store, signer, c.RefreshTokenTTL, app.clock, logger, audit)
	app.auth = services.NewAuthService(store, app.tokens, services.NewLogMailer(logger), app.clock, logger, audit)
	app.handoff = services.NewHandoffService(store, app.tokens, app.clock, logger, audit)
	app.resolver = tenancy.NewResolver(store.Tenants(), cache, logger,
		tenancy.WithTTL(c.TenantCacheTTL), tenancy.WithObserver(app.metrics))

	app.httpServer = httpapi.NewServer(c.HTTPAddr, logger, httpapi.Deps{
		Config:        c,
		Resolver:      app.resolver,
		Tokens:        app.tokens,
		Auth:          app.auth,
		Impersonation: services.NewImpersonationController(store, app.tokens, logger, audit),
		Admin:         services.NewTenantAdmin(store, cache, assetSigner, app.clock, logger, audit),
		Handoff:       app.handoff,
		Google:        google,
		States:        states,
		Metrics:       app.metrics,
		Clock:         app.clock,
	})
	app.grpcServer = gs.NewGRPCServer(c.GRPCAddr, logger, app.tokens, app.resolver)

	return app, nil
}

func (app *App) initStorage(ctx context.Context) (services.Storage, error) {
	store, db, err := OpenStorage(ctx, app.config, app.logger, app.clock)
	app.db = db
	return store, err
}

// OpenStorage opens the configured backend. For Postgres it pings the
// database and applies pending migrations; the returned *sql.DB, nil for
// memory storage, is owned by the caller even when err is not nil.
func OpenStorage(ctx context.Context, c *config.Config, logger logging.Logger, clk clock.Clock) (services.Storage, *sql.DB, error) {
	if c.Storage == config.StorageMemory {
		logger.Warn(ctx, "using in-memory storage, data is lost on restart")
		mem := memstore.New(clk)
		return services.NewMemoryStorage(repomanager.NewInMemoryRepositoryManager(mem)), nil, nil
	}

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return services.Storage{}, nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return services.Storage{}, db, fmt.Errorf("db ping error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return services.Storage{}, db, fmt.Errorf("db migration error: %w", err)
	}
	return services.NewSQLStorage(db, repos), db, nil
}

// initCache picks where resolved tenants and OAuth states live. Redis lets
// several instances share them.
func (app *App) initCache(ctx context.Context) (tenancy.Cache, oauthstate.Store, error) {
	if app.config.CacheBackend != config.CacheRedis {
		app.memCache = tenancy.NewMemoryCache(app.clock)
		app.memStates = oauthstate.NewMemoryStore(app.clock)
		return app.memCache, app.memStates, nil
	}

	app.rdb = redis.NewClient(&redis.Options{
		Addr:     app.config.RedisAddr,
		Password: app.config.RedisPassword,
		DB:       app.config.RedisDB,
	})
	if err := app.rdb.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("redis ping error: %w", err)
	}
	return tenancy.NewRedisCache(app.rdb, app.logger), oauthstate.NewRedisStore(app.rdb), nil
}

func (app *App) initSignalHandler(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
}

// purge deletes expired refresh tokens and handoff codes.
func (app *App) purge(ctx context.Context) {
	if n, err := app.tokens.PurgeExpired(ctx); err != nil {
		app.logger.Error(ctx, "refresh token purge failed", "error", err)
	} else if n > 0 {
		app.logger.Info(ctx, "purged refresh tokens", "count", n)
	}
	if n, err := app.handoff.PurgeExpired(ctx); err != nil {
		app.logger.Error(ctx, "handoff code purge failed", "error", err)
	} else if n > 0 {
		app.logger.Info(ctx, "purged handoff codes", "count", n)
	}
}

func (app *App) runPurger(ctx context.Context) {
	t := app.clock.Ticker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			app.purge(ctx)
		}
	}
}

func (app *App) runStateSweeper(ctx context.Context) {
	t := app.clock.Ticker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			app.memStates.Sweep()
		}
	}
}

// Run serves until a signal arrives, ctx is cancelled or a server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := app.initSignalHandler(ctx)
	defer stop()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.Storage, "cache", app.config.CacheBackend)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return app.httpServer.Run(ctx) })
	g.Go(func() error { return app.grpcServer.Run(ctx) })
	g.Go(func() error { app.runPurger(ctx); return nil })
	if app.memCache != nil {
		g.Go(func() error { app.memCache.Run(ctx, sweepInterval); return nil })
		g.Go(func() error { app.runStateSweeper(ctx); return nil })
	}

	err := g.Wait()
	app.logger.Info(context.Background(), "App stopped")
	app.Close()
	return err
}

// Close waits for background work and releases connections.
func (app *App) Close() {
	if app.tokens != nil {
		app.tokens.Wait()
	}
	if app.auth != nil {
		app.auth.Wait()
	}
	var errs []error
	if app.db != nil {
		errs = append(errs, app.db.Close())
	}
	if app.rdb != nil {
		errs = append(errs, app.rdb.Close())
	}
	if err := errors.Join(errs...); err != nil {
		app.logger.Error(context.Background(), "close failed", "error", err)
	}
}
