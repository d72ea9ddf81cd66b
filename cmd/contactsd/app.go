package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/annnsvm/contactsd/internal/api"
	"github.com/annnsvm/contactsd/internal/auth"
	"github.com/annnsvm/contactsd/internal/cache"
	"github.com/annnsvm/contactsd/internal/clients"
	"github.com/annnsvm/contactsd/internal/config"
	"github.com/annnsvm/contactsd/internal/mailer"
	"github.com/annnsvm/contactsd/internal/repository"
	"github.com/annnsvm/contactsd/internal/service"
	"github.com/annnsvm/contactsd/internal/storage"
	"github.com/annnsvm/contactsd/internal/telemetry"
)

// AppContext holds all constructed application dependencies shared across
// subcommands. It is built once in PersistentPreRunE and referenced by
// server.go and migrate.go.
type AppContext struct {
	cfg          *config.Config
	otelProvider *telemetry.Provider

	pg     *clients.PostgresClient
	redis  *clients.RedisClient
	nats   *clients.NATSClient
	health *service.Health
	tokens *auth.Manager
}

// buildAppContext constructs the dependencies every subcommand needs:
//  1. Initialises the OTEL provider (best-effort, non-fatal)
//  2. Creates one circuit breaker per infrastructure client
//  3. Creates the Postgres, Redis, and NATS clients
//  4. Creates the health aggregator and token manager
//
// Clients connect lazily; nothing here touches the network except OTEL.
func buildAppContext(cfg *config.Config) (*AppContext, error) {
	app := &AppContext{cfg: cfg}

	// OTEL is best-effort: a missing collector must never block startup.
	if cfg.Telemetry.OTLPEndpoint == "" {
		slog.Info("OTEL telemetry disabled (no endpoint configured)")
	} else {
		tp, err := telemetry.InitProvider(
			context.Background(),
			cfg.Telemetry.OTLPEndpoint,
			cfg.Telemetry.ServiceName,
			cfg.Telemetry.OTLPInsecure,
		)
		if err != nil {
			slog.Warn("OTEL provider init failed, telemetry disabled", "err", err)
		} else {
			app.otelProvider = tp
		}
	}

	// One circuit breaker per client so each dependency trips independently.
	app.pg = clients.NewPostgresClient(cfg.Postgres, clients.NewCircuitBreaker("postgres"))
	app.redis = clients.NewRedisClient(cfg.Redis, clients.NewCircuitBreaker("redis"))
	app.nats = clients.NewNATSClient(cfg.NATS, clients.NewCircuitBreaker("nats"))

	app.health = service.NewInfraHealth(app.pg, app.redis, app.nats)
	app.tokens = auth.NewManager(cfg.Auth)

	return app, nil
}

// buildRouter wires the repositories, services, and HTTP router. Called by
// the server subcommand after the database readiness poll has succeeded, so
// app.pg.Pool() is safe to use.
func (app *AppContext) buildRouter(ctx context.Context) (*api.Router, *mailer.Worker, error) {
	pool := app.pg.Pool()
	if pool == nil {
		return nil, nil, fmt.Errorf("postgres pool not initialised")
	}

	users := repository.NewUserRepository(pool)
	contacts := repository.NewContactRepository(pool)

	userCache := cache.NewUserCache(app.redis.Client(), app.cfg.Auth.UserCacheTTL)
	resolver := cache.NewResolver(userCache, users)

	avatars, err := storage.NewAvatarStore(ctx, app.cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("building avatar store: %w", err)
	}

	mailQueue := mailer.NewQueue(app.nats)
	worker := mailer.NewWorker(app.nats, mailer.NewSMTPSender(app.cfg.Mail))

	host := app.cfg.Server.PublicURL
	authSvc := service.NewAuthService(users, app.tokens, mailQueue, host)
	userSvc := service.NewUserService(users, avatars, userCache, app.tokens, mailQueue, host)
	contactSvc := service.NewContactService(contacts)

	handler := api.NewHandler(authSvc, userSvc, contactSvc, app.health)
	rateLimit := api.NewRedisRateLimit(app.redis.Client(), app.cfg.RateLimit)

	router := api.NewRouter(handler, app.tokens, resolver, rateLimit, app.cfg.Server)
	return router, worker, nil
}
