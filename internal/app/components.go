// Package app assembles the pipeline from configuration. The API server and cdrctl share it.
package app

import (
	"context"
	"time"

	"github.com/gocql/gocql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"cdr-enrichment/internal/config"
	"cdr-enrichment/internal/enrichment"
	"cdr-enrichment/internal/operator"
	"cdr-enrichment/internal/storage"
	"cdr-enrichment/pkg/utils"
)

const lookupCapKey = "cdr:operator:inflight"

// Components are the long-lived collaborators of one process.
type Components struct {
	Store     storage.Store
	Index     storage.SearchIndex
	Lookup    operator.Lookup
	Processor *enrichment.Processor

	postgres  *pgxpool.Pool
	redis     *redis.Client
	cassandra *gocql.Session
}

// Build connects the selected backends and wires the lookup decorators. reg may be nil to
// skip metrics. On error every connection opened so far is closed.
func Build(ctx context.Context, cfg config.Config, log *zap.Logger, reg prometheus.Registerer) (_ *Components, err error) {
	c := &Components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	if cfg.NeedsRedis() {
		c.redis, err = utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			return nil, eris.Wrap(err, "redis init")
		}
	}

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		c.postgres, err = utils.OpenPostgres(ctx, cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxConns: int32(cfg.DB.MaxConns)})
		if err != nil {
			return nil, eris.Wrap(err, "postgres init")
		}
		pg := storage.NewPostgresStore(c.postgres)
		if err = pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		c.Store = pg
	default:
		c.Store = storage.NewMemoryStore()
	}

	switch cfg.Index.Backend {
	case config.BackendRedis:
		c.Index = storage.NewRedisIndex(c.redis, cfg.Index.Stream)
	case config.BackendCassandra:
		c.cassandra, err = utils.OpenCassandra(utils.CassandraConfig{
			Hosts:    cfg.Cassandra.Hosts,
			Keyspace: cfg.Cassandra.Keyspace,
			Username: cfg.Cassandra.Username,
			Password: cfg.Cassandra.Password,
		})
		if err != nil {
			return nil, eris.Wrap(err, "cassandra init")
		}
		ci := storage.NewCassandraIndex(c.cassandra)
		if err = ci.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		c.Index = ci
	default:
		c.Index = storage.NewMemoryIndex()
	}

	c.Lookup = BuildLookup(cfg.Lookup, c.redis)

	opts := []enrichment.Option{enrichment.WithLogger(log)}
	if reg != nil {
		opts = append(opts, enrichment.WithMetrics(enrichment.NewMetrics(reg)))
	}
	c.Processor = enrichment.NewProcessor(c.Store, c.Index, c.Lookup, opts...)

	log.Info("pipeline assembled",
		zap.String("store", cfg.Store.Backend),
		zap.String("index", cfg.Index.Backend),
		zap.Duration("lookup_cache_ttl", cfg.Lookup.CacheTTL),
		zap.Float64("lookup_rate_limit", cfg.Lookup.RateLimit),
		zap.Int("lookup_max_attempts", cfg.Lookup.MaxAttempts),
		zap.Int("lookup_concurrency_cap", cfg.Lookup.ConcurrencyCap),
	)
	return c, nil
}

// BuildLookup layers the decorators innermost first: concurrency cap, rate limit, retry,
// cache. Cache hits therefore skip every limit. rdb may be nil when no Redis-backed
// decorator is enabled.
func BuildLookup(cfg config.LookupConfig, rdb *redis.Client) operator.Lookup {
	var l operator.Lookup = operator.NewSimulated(operator.SimulatedConfig{
		MinLatency:  cfg.MinLatency,
		MaxLatency:  cfg.MaxLatency,
		FailureRate: cfg.FailureRate,
	})

	if cfg.ConcurrencyCap > 0 && rdb != nil {
		l = operator.WithConcurrencyCap(l, utils.RedisSemaphore{
			Client: rdb,
			Key:    lookupCapKey,
			Limit:  cfg.ConcurrencyCap,
			TTL:    30 * time.Second,
		})
	}
	l = operator.WithRateLimit(l, cfg.RateLimit, cfg.RateBurst)
	l = operator.WithRetry(l, operator.RetryConfig{MaxAttempts: cfg.MaxAttempts, JitterFraction: 0.2})
	if rdb != nil {
		l = operator.WithCache(l, rdb, cfg.CacheTTL)
	}
	return l
}

// Ready pings every connected backend.
func (c *Components) Ready(ctx context.Context) error {
	if c.postgres != nil {
		if err := utils.HealthCheck(ctx, c.postgres, 2*time.Second); err != nil {
			return err
		}
	}
	if c.redis != nil {
		if err := c.redis.Ping(ctx).Err(); err != nil {
			return eris.Wrap(err, "redis ping failed")
		}
	}
	if c.cassandra != nil && c.cassandra.Closed() {
		return eris.New("cassandra session closed")
	}
	return nil
}

func (c *Components) Close() {
	if c.cassandra != nil {
		c.cassandra.Close()
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
	if c.postgres != nil {
		c.postgres.Close()
	}
}
