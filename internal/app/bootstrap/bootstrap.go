// Package bootstrap is the composition root. Construction and wiring live
// here so module code stays framework-agnostic.
package bootstrap

import (
	"context"
	"log/slog"
	"strings"
	"time"

	incidentservice "reefwatch/contexts/incident-tracking/incident-service"
	feedadapter "reefwatch/contexts/incident-tracking/incident-service/adapters/feed"
	notifyadapter "reefwatch/contexts/incident-tracking/incident-service/adapters/notify"
	postgresadapter "reefwatch/contexts/incident-tracking/incident-service/adapters/postgres"
	"reefwatch/contexts/incident-tracking/incident-service/application/workers"
	"reefwatch/contexts/incident-tracking/incident-service/ports"
	"reefwatch/internal/platform/config"
	"reefwatch/internal/platform/db"
	"reefwatch/internal/platform/httpserver"
	"reefwatch/internal/platform/messaging"
	platformredis "reefwatch/internal/platform/redis"
	"reefwatch/internal/shared/dedupe"
	"reefwatch/internal/shared/events"
)

// APIApp hosts the whole pipeline in one process: HTTP transport, the
// event log, the fan-out consumer and the recovery projector.
type APIApp struct {
	server   *httpserver.Server
	eventLog *messaging.EventLog
	module   incidentservice.Module
	grace    time.Duration
	postgres *db.Postgres
	redis    *platformredis.Client
	logger   *slog.Logger
}

type WorkerApp struct {
	eventLog *messaging.EventLog
	module   incidentservice.Module
	resync   bool
	grace    time.Duration
	postgres *db.Postgres
	logger   *slog.Logger
}

// eventBus bridges the platform event log into the context's subscriber
// port so application code never imports platform types.
type eventBus struct {
	log *messaging.EventLog
}

func (b eventBus) Append(ctx context.Context, env events.Envelope) (events.Envelope, error) {
	return b.log.Append(ctx, env)
}

func (b eventBus) Subscribe(
	ctx context.Context,
	aggregateType string,
	eventType string,
	group string,
	handler func(context.Context, events.Envelope) error,
	opts ports.SubscribeOptions,
) error {
	return b.log.Subscribe(ctx, aggregateType, eventType, group, handler, messaging.SubscribeOptions{
		ReplayOnly: opts.ReplayOnly,
	})
}

type builtDeps struct {
	module   incidentservice.Module
	eventLog *messaging.EventLog
	postgres *db.Postgres
	redis    *platformredis.Client
	logger   *slog.Logger
	cfg      config.Config
}

func buildDeps(process string) (builtDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return builtDeps{}, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", process)
	eventLog := messaging.NewEventLog(logger)
	bus := eventBus{log: eventLog}

	clock := postgresadapter.SystemClock{}
	feed := feedadapter.NewClient(cfg.FeedURL, cfg.FeedTimeout, logger)

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return builtDeps{}, err
	}

	deps := incidentservice.Dependencies{
		Events:      bus,
		Subscriber:  bus,
		Feed:        feed,
		Dedupe:      dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTrimTo),
		Metrics:     workers.NewConsumerMetrics(),
		Clock:       clock,
		IDGenerator: postgresadapter.UUIDGenerator{},

		RetryAttempts: cfg.ConsumerRetryAttempts,
		RetryDelay:    cfg.ConsumerRetryDelay,
		Logger:        logger,
	}

	var notifier *notifyadapter.Publisher
	if redisClient != nil {
		notifier = notifyadapter.NewPublisher(redisClient.Client, clock, logger)
		deps.Notifier = notifier
		deps.Views = notifier
	} else {
		noop := noopNotifier{}
		deps.Notifier = noop
		deps.Views = noop
		logger.Info("redis not configured, notifications disabled",
			"event", "bootstrap_notifier_disabled",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}

	var pg *db.Postgres
	if strings.TrimSpace(cfg.PostgresDSN) != "" {
		pg, err = db.Connect(cfg.PostgresDSN)
		if err != nil {
			return builtDeps{}, err
		}
		repo := postgresadapter.NewRepository(pg.DB, logger)
		deps.Incidents = repo
		deps.Recovery = repo
		deps.DeadLetters = repo
		return builtDeps{
			module:   incidentservice.NewModule(deps),
			eventLog: eventLog,
			postgres: pg,
			redis:    redisClient,
			logger:   logger,
			cfg:      cfg,
		}, nil
	}

	logger.Info("postgres not configured, using in-memory store",
		"event", "bootstrap_memory_store",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	return builtDeps{
		module:   incidentservice.NewInMemoryModule(nil, deps, logger),
		eventLog: eventLog,
		redis:    redisClient,
		logger:   logger,
		cfg:      cfg,
	}, nil
}

func BuildAPI() (*APIApp, error) {
	built, err := buildDeps("api")
	if err != nil {
		return nil, err
	}

	auth := httpserver.NewAuthenticator(built.cfg.JWTSigningKey)
	server := httpserver.New(built.module, auth, built.logger, normalizeAddr(built.cfg.HTTPPort))
	return &APIApp{
		server:   server,
		eventLog: built.eventLog,
		module:   built.module,
		grace:    built.cfg.ShutdownGrace,
		postgres: built.postgres,
		redis:    built.redis,
		logger:   built.logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	built, err := buildDeps("worker")
	if err != nil {
		return nil, err
	}
	return &WorkerApp{
		eventLog: built.eventLog,
		module:   built.module,
		resync:   built.cfg.Resync,
		grace:    built.cfg.ShutdownGrace,
		postgres: built.postgres,
		logger:   built.logger,
	}, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	if err := a.module.Projector.Start(ctx); err != nil {
		return err
	}
	if err := a.module.Consumer.Start(ctx); err != nil {
		return err
	}

	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	return a.server.Start()
}

// Drain first waits for the event log to deliver everything it accepted,
// queued envelopes included, then for the consumer's in-flight handling to
// settle. Returns false when the grace period expired first.
func (a *APIApp) Drain() bool {
	return a.eventLog.Drain(a.grace) && a.module.Consumer.Drain(a.grace)
}

func (a *APIApp) Close() error {
	var firstErr error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			firstErr = err
		}
	}
	if a.postgres != nil {
		if err := a.postgres.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Run starts the replay-side workers. With RESYNC set the full event log is
// replayed through the recovery projector before the process settles into
// waiting for live traffic.
func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.module.Projector.Start(ctx); err != nil {
		return err
	}
	if err := w.module.Consumer.Start(ctx); err != nil {
		return err
	}

	if w.resync {
		w.logger.Info("resync requested, replaying event log",
			"event", "bootstrap_resync_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		if err := w.eventLog.Replay(ctx); err != nil {
			return err
		}
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)

	<-ctx.Done()
	if !w.eventLog.Drain(w.grace) {
		w.logger.Warn("shutdown grace expired with envelope work in flight",
			"event", "bootstrap_drain_incomplete",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return nil
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

type noopNotifier struct{}

func (noopNotifier) PublishProcessed(context.Context, ports.IncidentSummary) (string, error) {
	return "", nil
}

func (noopNotifier) NotifyChanged(context.Context, ports.IncidentSummary) error {
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
