package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/neurobridge/matchcore/internal/audit"
	"github.com/neurobridge/matchcore/internal/cache"
	"github.com/neurobridge/matchcore/internal/config"
	"github.com/neurobridge/matchcore/internal/consent"
	"github.com/neurobridge/matchcore/internal/gateway"
	"github.com/neurobridge/matchcore/internal/llm"
	"github.com/neurobridge/matchcore/internal/logger"
	"github.com/neurobridge/matchcore/internal/matching"
	"github.com/neurobridge/matchcore/internal/ratelimit"
	"github.com/neurobridge/matchcore/internal/store"
)

// app holds the assembled service graph.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	engine   *matching.Engine
	workflow *consent.Workflow
	gateway  *gateway.Gateway
	matches  store.MatchStore
	auditLog *audit.Log

	closers []func()
}

// buildApp wires the service from configuration. Postgres and Redis are used
// when configured; otherwise the in-memory implementations serve a single
// instance.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log, err := logger.New(true, cfg.Verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{cfg: cfg, log: log}

	var (
		matchStore      store.MatchStore
		connectionStore store.ConnectionStore
		auditStore      store.AuditStore
	)
	if cfg.DatabaseURL != "" {
		pg, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		matchStore = pg.Matches()
		connectionStore = pg.Connections()
		auditStore = pg.Audit()
		log.Info("using postgres stores")
	} else {
		matchStore = store.NewMemoryMatchStore()
		connectionStore = store.NewMemoryConnectionStore()
		auditStore = store.NewMemoryAuditStore()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	var (
		windowStore ratelimit.WindowStore
		cacheStore  cache.Store
	)
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		windowStore = ratelimit.NewRedisStore(client)
		cacheStore = cache.NewRedisStore(client)
		log.Info("using redis limiter and cache")
	} else {
		windowStore = ratelimit.NewMemoryStore(time.Minute, time.Hour)
		cacheStore = cache.NewMemoryStore()
		log.Warn("REDIS_URL not set, using in-memory limiter and cache")
	}

	var client llm.Client
	if cfg.GeminiAPIKey != "" {
		client, err = llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create inference client: %w", err)
		}
	} else {
		client = llm.NewDisabledClient()
		log.Warn("GEMINI_API_KEY not set, every inference call will use the deterministic fallback")
	}

	a.auditLog = audit.New(auditStore, log)

	limiter := ratelimit.NewLimiter(windowStore)
	gwCfg := gateway.DefaultConfig()
	gwCfg.Timeout = cfg.InferenceTimeout()
	a.gateway = gateway.New(client, limiter, cache.New(cacheStore), a.auditLog, log, gwCfg)
	a.closers = append(a.closers, func() { _ = a.gateway.Close() })

	a.matches = matchStore
	a.engine = matching.NewEngine(matchStore, a.gateway, a.auditLog, log)
	a.workflow = consent.NewWorkflow(matchStore, connectionStore, a.auditLog, log)

	return a, nil
}

// close releases the app's resources in reverse construction order.
func (a *app) close() {
	a.engine.Wait()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.log.Sync()
}
