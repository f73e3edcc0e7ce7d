package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"

	"profilegate/internal/platform/config"
	"profilegate/internal/platform/kafka"
	"profilegate/internal/platform/postgres"
	"profilegate/internal/platform/redis"
	"profilegate/internal/profile/extraction"
	"profilegate/internal/profile/handler"
	profilemetrics "profilegate/internal/profile/metrics"
	"profilegate/internal/profile/pipeline"
	"profilegate/internal/profile/service"
	"profilegate/internal/profile/store"
	audit "profilegate/pkg/platform/audit"
	"profilegate/pkg/platform/audit/publisher"
	auditkafka "profilegate/pkg/platform/audit/store/kafka"
	auditmemory "profilegate/pkg/platform/audit/store/memory"
	auditpg "profilegate/pkg/platform/audit/store/postgres"
	"profilegate/pkg/platform/circuit"
)

const auditBuffer = 256

// app owns every long-lived resource so they can be released in one place.
type app struct {
	profileHandler *handler.Handler
	health         store.Backend
	breaker        *circuit.Breaker

	pool      *pgxpool.Pool
	redis     *redis.Client
	kafka     *kgo.Client
	publisher *publisher.Publisher
	log       *slog.Logger
}

func buildApp(ctx context.Context, cfg config.Config, reg prometheus.Registerer, log *slog.Logger) (_ *app, err error) {
	a := &app{log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	m := profilemetrics.New(reg)

	profiles, err := a.profileStore(ctx, cfg, m)
	if err != nil {
		return nil, err
	}
	a.health = profiles

	auditStore, err := a.auditStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.publisher = publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(auditBuffer),
		publisher.WithLogger(log),
	)

	a.breaker = circuit.New("ocr",
		circuit.WithFailureThreshold(cfg.Extraction.BreakerThreshold),
		circuit.WithCooldown(cfg.Extraction.BreakerCooldown),
	)
	extractor := extraction.New(cfg.Extraction.URL, cfg.Extraction.Model,
		extraction.WithTimeout(cfg.Extraction.Timeout),
		extraction.WithBreaker(a.breaker),
		extraction.WithMetrics(m),
		extraction.WithLogger(log),
	)
	reconciler := pipeline.New(extractor,
		pipeline.WithMetrics(m),
		pipeline.WithLogger(log),
	)
	svc := service.New(profiles, reconciler,
		service.WithLogger(log),
		service.WithAuditPublisher(a.publisher),
		service.WithAuditTrail(a.publisher),
	)
	a.profileHandler = handler.New(svc, log)
	return a, nil
}

// profileStore picks Postgres when DATABASE_URL is set, otherwise memory,
// and puts the Redis cache in front when REDIS_URL is set.
func (a *app) profileStore(ctx context.Context, cfg config.Config, m *profilemetrics.Metrics) (store.Backend, error) {
	var backend store.Backend
	if cfg.Database.URL != "" {
		pool, err := postgres.Open(ctx, cfg.Database, a.log)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		pg := store.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		backend = pg
	} else {
		a.log.Warn("DATABASE_URL not set, profiles are kept in memory")
		backend = store.NewInMemory()
	}

	rc, err := redis.New(ctx, cfg.Redis, a.log)
	if err != nil {
		return nil, err
	}
	if rc == nil {
		return backend, nil
	}
	a.redis = rc
	return store.NewCached(backend, rc.Client, cfg.Redis.CacheTTL,
		store.WithCacheMetrics(m),
		store.WithCacheLogger(a.log),
	), nil
}

// auditStore prefers the Kafka stream, then the Postgres table, then memory.
func (a *app) auditStore(ctx context.Context, cfg config.Config) (audit.Store, error) {
	client, err := kafka.NewClient(ctx, cfg.Kafka, a.log)
	if err != nil {
		return nil, err
	}
	if client != nil {
		a.kafka = client
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.AuditTopic); err != nil {
			return nil, err
		}
		return auditkafka.New(client, cfg.Kafka.AuditTopic), nil
	}
	if a.pool != nil {
		s := auditpg.New(a.pool)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("audit schema: %w", err)
		}
		return s, nil
	}
	return auditmemory.NewInMemoryStore(), nil
}

// Close drains the audit publisher before closing the clients it writes to.
func (a *app) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("close redis", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
