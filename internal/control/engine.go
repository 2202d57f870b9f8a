package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/applyflow/agent/internal/auth"
	"github.com/applyflow/agent/internal/core/config"
	"github.com/applyflow/agent/internal/health"
	"github.com/applyflow/agent/internal/infra/browser"
	redisclient "github.com/applyflow/agent/internal/infra/redis"
	"github.com/applyflow/agent/internal/infra/storage"
	"github.com/applyflow/agent/internal/infra/storage/memory"
	"github.com/applyflow/agent/internal/infra/storage/postgres"
	"github.com/applyflow/agent/internal/recovery"
	"github.com/applyflow/agent/internal/session"
)

// Engine wires together the session pool, authentication, persistence and
// the health server, and manages their lifecycle.
type Engine struct {
	cfg          *config.AppConfig
	pool         *session.Pool
	runner       *Runner
	provisioner  *browser.PlaywrightProvisioner
	healthServer *health.Server
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger

	cancel context.CancelFunc
}

// NewEngine creates an engine with all dependencies initialized. Postgres
// and Redis are used when configured; otherwise in-memory fallbacks serve
// local development.
func NewEngine(cfg *config.AppConfig, log *slog.Logger) (*Engine, error) {
	var (
		subs  storage.SubscriptionRepository
		apps  storage.ApplicationRepository
		creds storage.CredentialStore
		db    *postgres.DB
		rdc   *redisclient.Client
		mem   *memory.Storage
	)

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		subs = postgres.NewSubscriptionRepo(db)
		apps = postgres.NewApplicationRepo(db)
		log.Info("using PostgreSQL storage")
	} else {
		mem = memory.NewStorage()
		subs = mem
		apps = mem
		log.Info("using memory storage")
	}

	if cfg.Redis.URL != "" {
		var err error
		rdc, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		creds = redisclient.NewCredentialStore(rdc)
		log.Info("using Redis credential store")
	} else {
		if mem == nil {
			mem = memory.NewStorage()
		}
		creds = mem
		log.Info("using memory credential store")
	}

	provisioner, err := browser.NewPlaywrightProvisioner(cfg.Browser, log)
	if err != nil {
		return nil, fmt.Errorf("failed to init browser provisioner: %w", err)
	}

	pool := session.NewPool(session.Config{
		MaxSessions:   cfg.Pool.MaxSessions,
		IdleTimeout:   time.Duration(cfg.Pool.IdleTimeoutSeconds) * time.Second,
		EvictInterval: time.Duration(cfg.Pool.EvictIntervalSeconds) * time.Second,
	}, provisioner, subs, log)

	authenticator := auth.NewAuthenticator(auth.Config{
		BaseURL:       cfg.Auth.BaseURL,
		PollInterval:  time.Duration(cfg.Auth.PollIntervalSeconds) * time.Second,
		ChallengeWait: time.Duration(cfg.Auth.ChallengeWaitSeconds) * time.Second,
	}, creds, log)

	policy := recovery.Policy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  time.Duration(cfg.Retry.BaseDelaySeconds * float64(time.Second)),
	}
	runner := NewRunner(pool, authenticator, apps, policy, cfg.Artifacts.ScreenshotDir, log)

	checks := map[string]health.Check{}
	if db != nil {
		checks["database"] = db.Health
	}
	if rdc != nil {
		checks["redis"] = rdc.Health
	}
	healthServer := health.NewServer(cfg.Server.Port, checks)

	return &Engine{
		cfg:          cfg,
		pool:         pool,
		runner:       runner,
		provisioner:  provisioner,
		healthServer: healthServer,
		db:           db,
		redisClient:  rdc,
		log:          log,
	}, nil
}

// Runner returns the workflow runner.
func (e *Engine) Runner() *Runner {
	return e.runner
}

// Start launches the idle eviction loop and the health server.
func (e *Engine) Start(ctx context.Context) error {
	ctx, e.cancel = context.WithCancel(ctx)

	go e.pool.Start(ctx)
	go func() {
		if err := e.healthServer.Start(); err != nil {
			e.log.Error("health server failed", "error", err)
		}
	}()

	e.log.Info("engine started", "port", e.cfg.Server.Port)
	return nil
}

// Stop shuts down every component. Safe to call once after Start.
func (e *Engine) Stop(ctx context.Context) error {
	e.log.Info("stopping engine")

	if e.cancel != nil {
		e.cancel()
	}
	e.pool.Shutdown()

	if err := e.provisioner.Stop(); err != nil {
		e.log.Warn("failed to stop browser provisioner", "error", err)
	}
	if e.redisClient != nil {
		if err := e.redisClient.Close(); err != nil {
			e.log.Warn("failed to close redis", "error", err)
		}
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.log.Warn("failed to close db", "error", err)
		}
	}

	return e.healthServer.Stop(ctx)
}
